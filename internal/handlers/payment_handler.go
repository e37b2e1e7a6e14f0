package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shuleconnect/backend/internal/config"
	"github.com/shuleconnect/backend/internal/middleware"
	"github.com/shuleconnect/backend/internal/models"
	"github.com/shuleconnect/backend/internal/services/credit"
	"github.com/shuleconnect/backend/internal/services/payment/momo"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PaymentService is the slice of the MoMo service the handler depends on.
type PaymentService interface {
	RequestPayment(ctx context.Context, req momo.PaymentRequest) (*momo.PaymentResponse, error)
	GetPayment(ctx context.Context, referenceID string) (*models.PaymentTransaction, error)
}

// TransactionWatcher starts (or attaches to) status polling for a transaction.
type TransactionWatcher interface {
	WatchTransaction(referenceID string, onComplete momo.CompletionFunc) *momo.Watch
}

// CreditGranter applies credit grants for completed transactions.
type CreditGranter interface {
	Grant(ctx context.Context, referenceID string, userID uuid.UUID, credits int) error
}

// PaymentHandler handles the mobile money payment endpoints
type PaymentHandler struct {
	cfg      *config.Config
	payments PaymentService
	watcher  TransactionWatcher
	ledger   CreditGranter
	catalog  *credit.Catalog
	log      *logrus.Entry
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(cfg *config.Config, payments PaymentService, watcher TransactionWatcher, ledger CreditGranter, catalog *credit.Catalog, log *logrus.Entry) *PaymentHandler {
	return &PaymentHandler{
		cfg:      cfg,
		payments: payments,
		watcher:  watcher,
		ledger:   ledger,
		catalog:  catalog,
		log:      log,
	}
}

// RequestPaymentBody is the request body for initiating a credit purchase.
type RequestPaymentBody struct {
	Amount       float64 `json:"amount" binding:"required,gt=0"`
	Currency     string  `json:"currency" binding:"required"`
	PhoneNumber  string  `json:"phoneNumber" binding:"required"`
	Reference    string  `json:"reference" binding:"required"`
	Description  string  `json:"description"`
	PayerMessage string  `json:"payerMessage"`
	PayeeNote    string  `json:"payeeNote"`
}

// RequestPayment initiates a request-to-pay for a credit package and starts
// status polling for it. On confirmed completion the poller grants the
// package's credits through the ledger.
func (h *PaymentHandler) RequestPayment(c *gin.Context) {
	var body RequestPaymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}

	resp, err := h.payments.RequestPayment(c.Request.Context(), momo.PaymentRequest{
		UserID:            userID,
		Amount:            body.Amount,
		Currency:          body.Currency,
		PhoneNumber:       body.PhoneNumber,
		ExternalReference: body.Reference,
		Description:       body.Description,
		PayerMessage:      body.PayerMessage,
		PayeeNote:         body.PayeeNote,
	})
	if err != nil {
		var validationErr *momo.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   validationErr.Reason,
				"field":   validationErr.Field,
			})
			return
		}
		h.log.WithError(err).Error("payment initiation failed")
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "payment initiation failed"})
		return
	}

	h.watcher.WatchTransaction(resp.ReferenceID, func(tx *models.PaymentTransaction) {
		if err := h.ledger.Grant(context.Background(), tx.ReferenceID, tx.UserID, tx.CreditsPurchased); err != nil {
			h.log.WithError(err).WithField("reference_id", tx.ReferenceID).
				Error("credit fulfillment failed")
		}
	})

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"referenceId":   resp.ReferenceID,
		"transactionId": resp.TransactionID,
		"status":        resp.Status,
		"message":       resp.Message,
		"mode":          resp.Mode,
	})
}

// PaymentStatus returns the stored state of a transaction.
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	referenceID := c.Param("referenceId")

	tx, err := h.payments.GetPayment(c.Request.Context(), referenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transaction not found"})
			return
		}
		h.log.WithError(err).Error("failed to fetch payment status")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to fetch payment status"})
		return
	}

	resp := gin.H{
		"success":       true,
		"referenceId":   tx.ReferenceID,
		"transactionId": tx.ID,
		"status":        tx.Status,
		"amount":        tx.Amount,
		"currency":      tx.Currency,
		"payer":         tx.PhoneNumber,
		"mode":          tx.Mode,
	}
	if tx.Reason != "" {
		resp["reason"] = tx.Reason
	}
	c.JSON(http.StatusOK, resp)
}

// TestCredentials reports whether the provider credentials are configured,
// with remediation instructions when any is absent. Only presence booleans
// are ever returned.
func (h *PaymentHandler) TestCredentials(c *gin.Context) {
	if err := h.cfg.ValidateCredentials(); err != nil {
		var credErr *config.CredentialError
		if errors.As(err, &credErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":     false,
				"error":       credErr.Error(),
				"remediation": credErr.Remediation(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"credentials": gin.H{
			"apiUserId":  h.cfg.MoMo.APIUserID != "",
			"apiKey":     h.cfg.MoMo.APIKey != "",
			"primaryKey": h.cfg.MoMo.SubscriptionKey != "",
		},
		"environment": h.cfg.MoMo.TargetEnvironment,
		"baseUrl":     h.cfg.MoMo.BaseURL,
	})
}

// GetConfig returns the sanitized configuration view.
func (h *PaymentHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.cfg.Sanitized())
}

// CreditPackages lists the purchasable credit packages.
func (h *PaymentHandler) CreditPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"packages": h.catalog.List(),
	})
}
