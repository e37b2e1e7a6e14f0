package momo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shuleconnect/backend/internal/models"
	"github.com/shuleconnect/backend/internal/phone"
	"github.com/shuleconnect/backend/internal/services/credit"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ValidationError rejects a payment request before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ProviderClient is the slice of the MoMo API the service depends on.
type ProviderClient interface {
	RequestToPay(ctx context.Context, referenceID string, request RequestToPayRequest) error
	GetTransactionStatus(ctx context.Context, referenceID string) (*TransactionStatus, error)
}

// TransactionStore persists payment transactions.
type TransactionStore interface {
	Create(ctx context.Context, tx *models.PaymentTransaction) error
	GetByReferenceID(ctx context.Context, referenceID string) (*models.PaymentTransaction, error)
	GetByExternalReference(ctx context.Context, externalReference string) (*models.PaymentTransaction, error)
	// MarkTerminal applies a one-way status transition out of pending. It
	// reports whether the transition was applied; a transaction already in a
	// terminal state is left untouched.
	MarkTerminal(ctx context.Context, referenceID string, status models.PaymentStatus, financialID, reason string) (bool, error)
	// SetMode records the mode a still-pending transaction settled on after
	// initiation fell back to the mock responder.
	SetMode(ctx context.Context, referenceID string, mode models.PaymentMode) error
}

// ServiceConfig holds the payment bounds the initiator validates against.
type ServiceConfig struct {
	Currency  string
	MinAmount float64
	MaxAmount float64
	// StrictMode disables the mock fallback: provider failures become hard
	// errors instead of simulated acknowledgments.
	StrictMode bool
}

// Service orchestrates payment initiation: validation, package resolution,
// reference generation, the provider call, and the mock fallback.
type Service struct {
	store   TransactionStore
	client  ProviderClient
	mock    *MockResponder
	catalog *credit.Catalog
	cfg     ServiceConfig
	log     *logrus.Entry
}

// NewService creates a new MoMo payment service.
func NewService(store TransactionStore, client ProviderClient, mock *MockResponder, catalog *credit.Catalog, cfg ServiceConfig, log *logrus.Entry) *Service {
	return &Service{
		store:   store,
		client:  client,
		mock:    mock,
		catalog: catalog,
		cfg:     cfg,
		log:     log,
	}
}

// PaymentRequest represents a request to collect a credit purchase via MoMo.
type PaymentRequest struct {
	UserID            uuid.UUID
	Amount            float64
	Currency          string
	PhoneNumber       string
	ExternalReference string
	Description       string
	PayerMessage      string
	PayeeNote         string
}

// PaymentResponse represents the outcome of an initiation. Its shape is
// identical for real and mock transactions; only Mode differs.
type PaymentResponse struct {
	TransactionID uuid.UUID
	ReferenceID   string
	Status        models.PaymentStatus
	Mode          models.PaymentMode
	Message       string
}

// RequestPayment validates the request, resolves the credit package for the
// amount, persists a pending transaction and then calls the provider's
// request-to-pay endpoint. The pending row goes in first: an acknowledged
// charge must never exist without a stored record. Auth, forbidden and
// availability failures fall back to the mock responder unless strict mode is
// on. A repeated external reference returns the original transaction instead
// of initiating a second charge.
func (s *Service) RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if req.Currency != s.cfg.Currency {
		return nil, &ValidationError{Field: "currency", Reason: "unsupported currency"}
	}
	if req.Amount < s.cfg.MinAmount {
		return nil, &ValidationError{Field: "amount", Reason: "amount below minimum"}
	}
	if req.Amount > s.cfg.MaxAmount {
		return nil, &ValidationError{Field: "amount", Reason: "amount above maximum"}
	}
	if req.ExternalReference == "" {
		return nil, &ValidationError{Field: "reference", Reason: "reference is required"}
	}

	pkg, ok := s.catalog.ByPrice(req.Amount)
	if !ok {
		return nil, &ValidationError{Field: "amount", Reason: "no credit package priced at this amount"}
	}

	msisdn, err := phone.NormalizeAndValidate(req.PhoneNumber)
	if err != nil {
		reason := "malformed phone number"
		if errors.Is(err, phone.ErrUnknownCarrier) {
			reason = "unrecognized carrier"
		}
		return nil, &ValidationError{Field: "phoneNumber", Reason: reason}
	}

	// Idempotency: a duplicate external reference is ignored, not re-charged.
	if existing, err := s.store.GetByExternalReference(ctx, req.ExternalReference); err == nil {
		s.log.WithFields(logrus.Fields{
			"external_reference": req.ExternalReference,
			"reference_id":       existing.ReferenceID,
		}).Info("duplicate external reference, returning existing transaction")
		return &PaymentResponse{
			TransactionID: existing.ID,
			ReferenceID:   existing.ReferenceID,
			Status:        existing.Status,
			Mode:          existing.Mode,
			Message:       "payment request already exists for this reference",
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check external reference: %w", err)
	}

	referenceID := uuid.New().String()

	tx := models.PaymentTransaction{
		ReferenceID:       referenceID,
		ExternalReference: req.ExternalReference,
		UserID:            req.UserID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		PhoneNumber:       msisdn,
		Status:            models.PaymentStatusPending,
		Mode:              models.PaymentModeReal,
		CreditsPurchased:  pkg.TotalCredits(),
		PayerMessage:      req.PayerMessage,
		PayeeNote:         req.PayeeNote,
		Description:       req.Description,
	}

	if err := s.store.Create(ctx, &tx); err != nil {
		return nil, fmt.Errorf("failed to save MoMo transaction: %w", err)
	}

	providerReq := RequestToPayRequest{
		Amount:       formatAmount(req.Amount),
		Currency:     req.Currency,
		ExternalID:   req.ExternalReference,
		PayerMessage: req.PayerMessage,
		PayeeNote:    req.PayeeNote,
		Payer: Payer{
			PartyIDType: "MSISDN",
			PartyID:     msisdn,
		},
	}

	if err := s.client.RequestToPay(ctx, referenceID, providerReq); err != nil {
		if s.cfg.StrictMode || !fallbackEligible(err) {
			s.fail(ctx, referenceID, "provider rejected the request to pay")
			return nil, fmt.Errorf("failed to initiate MoMo payment: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"reference_id": referenceID,
			"error":        err.Error(),
		}).Warn("provider request failed, falling back to mock responder")

		if err := s.mock.Respond(ctx, referenceID); err != nil {
			s.fail(ctx, referenceID, "mock responder failed")
			return nil, fmt.Errorf("mock responder failed: %w", err)
		}
		if err := s.store.SetMode(ctx, referenceID, models.PaymentModeMock); err != nil {
			return nil, fmt.Errorf("failed to record mock mode: %w", err)
		}
		tx.Mode = models.PaymentModeMock
	}

	s.log.WithFields(logrus.Fields{
		"reference_id": referenceID,
		"amount":       req.Amount,
		"currency":     req.Currency,
		"mode":         tx.Mode,
	}).Info("payment request initiated")

	return &PaymentResponse{
		TransactionID: tx.ID,
		ReferenceID:   referenceID,
		Status:        models.PaymentStatusPending,
		Mode:          tx.Mode,
		Message:       "Payment request initiated successfully",
	}, nil
}

// fail closes out a pending row whose initiation did not conclude. No charge
// is in flight on these paths, so failed is accurate, and the sweeper would
// otherwise only reap the row after the full polling budget.
func (s *Service) fail(ctx context.Context, referenceID, reason string) {
	if _, err := s.store.MarkTerminal(ctx, referenceID, models.PaymentStatusFailed, "", reason); err != nil {
		s.log.WithError(err).WithField("reference_id", referenceID).
			Error("failed to mark transaction failed")
	}
}

// GetPayment returns the stored transaction for a reference id.
func (s *Service) GetPayment(ctx context.Context, referenceID string) (*models.PaymentTransaction, error) {
	tx, err := s.store.GetByReferenceID(ctx, referenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction not found: %s: %w", referenceID, err)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// fallbackEligible reports whether a provider error is absorbed by the mock
// fallback path. Anything outside the taxonomy (e.g. a 400 on our own
// request) stays a hard failure.
func fallbackEligible(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrUnavailable)
}

// formatAmount renders an amount the way the provider expects.
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
