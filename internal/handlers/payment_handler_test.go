package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shuleconnect/backend/internal/config"
	"github.com/shuleconnect/backend/internal/models"
	"github.com/shuleconnect/backend/internal/services/credit"
	"github.com/shuleconnect/backend/internal/services/payment/momo"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) RequestPayment(ctx context.Context, req momo.PaymentRequest) (*momo.PaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*momo.PaymentResponse), args.Error(1)
}

func (m *MockPaymentService) GetPayment(ctx context.Context, referenceID string) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

type MockWatcher struct {
	mock.Mock
}

func (m *MockWatcher) WatchTransaction(referenceID string, onComplete momo.CompletionFunc) *momo.Watch {
	args := m.Called(referenceID, onComplete)
	return args.Get(0).(*momo.Watch)
}

type MockGranter struct {
	mock.Mock
}

func (m *MockGranter) Grant(ctx context.Context, referenceID string, userID uuid.UUID, credits int) error {
	args := m.Called(ctx, referenceID, userID, credits)
	return args.Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		MoMo: config.MoMoConfig{
			APIUserID:         "user-12345",
			APIKey:            "key-67890",
			SubscriptionKey:   "subscription-abcdef",
			TargetEnvironment: "sandbox",
			BaseURL:           "https://sandbox.momodeveloper.mtn.com",
			Currency:          "UGX",
			MinAmount:         500,
			MaxAmount:         5000000,
		},
	}
}

type handlerFixture struct {
	handler  *PaymentHandler
	payments *MockPaymentService
	watcher  *MockWatcher
	granter  *MockGranter
}

func newFixture(cfg *config.Config) *handlerFixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	payments := new(MockPaymentService)
	watcher := new(MockWatcher)
	granter := new(MockGranter)
	handler := NewPaymentHandler(cfg, payments, watcher, granter, credit.DefaultCatalog(), logrus.NewEntry(logger))

	return &handlerFixture{handler: handler, payments: payments, watcher: watcher, granter: granter}
}

// newRouter stubs the auth middleware with a fixed user id. The real JWT
// middleware is covered by its own tests.
func newRouter(f *handlerFixture, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	authed := router.Group("/")
	if userID != uuid.Nil {
		authed.Use(func(c *gin.Context) {
			c.Set("user_id", userID)
		})
	}
	authed.POST("/request-payment", f.handler.RequestPayment)
	authed.GET("/payment-status/:referenceId", f.handler.PaymentStatus)

	router.GET("/test-credentials", f.handler.TestCredentials)
	router.GET("/config", f.handler.GetConfig)
	router.GET("/credit-packages", f.handler.CreditPackages)
	return router
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return got
}

func paymentBody() map[string]interface{} {
	return map[string]interface{}{
		"amount":      25000,
		"currency":    "UGX",
		"phoneNumber": "0771234567",
		"reference":   "order-1",
	}
}

func TestRequestPaymentEndpoint(t *testing.T) {
	f := newFixture(testConfig())
	userID := uuid.New()
	router := newRouter(f, userID)

	resp := &momo.PaymentResponse{
		TransactionID: uuid.New(),
		ReferenceID:   "ref-123",
		Status:        models.PaymentStatusPending,
		Mode:          models.PaymentModeReal,
		Message:       "Payment request initiated successfully",
	}

	f.payments.On("RequestPayment", mock.Anything, mock.MatchedBy(func(req momo.PaymentRequest) bool {
		return req.UserID == userID && req.Amount == 25000 && req.ExternalReference == "order-1"
	})).Return(resp, nil)

	var onComplete momo.CompletionFunc
	f.watcher.On("WatchTransaction", "ref-123", mock.Anything).
		Run(func(args mock.Arguments) {
			onComplete = args.Get(1).(momo.CompletionFunc)
		}).Return(&momo.Watch{})

	rec := doJSON(router, http.MethodPost, "/request-payment", paymentBody())

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "ref-123", got["referenceId"])
	assert.Equal(t, "pending", got["status"])
	assert.Equal(t, "real", got["mode"])

	// The registered completion callback grants the package's credits.
	require.NotNil(t, onComplete)
	f.granter.On("Grant", mock.Anything, "ref-123", userID, 175).Return(nil)
	onComplete(&models.PaymentTransaction{
		ReferenceID:      "ref-123",
		UserID:           userID,
		CreditsPurchased: 175,
		Status:           models.PaymentStatusCompleted,
	})
	f.granter.AssertCalled(t, "Grant", mock.Anything, "ref-123", userID, 175)
}

func TestRequestPaymentRequiresAuth(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.Nil)

	rec := doJSON(router, http.MethodPost, "/request-payment", paymentBody())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.payments.AssertNotCalled(t, "RequestPayment", mock.Anything, mock.Anything)
}

func TestRequestPaymentUnknownAmount(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	f.payments.On("RequestPayment", mock.Anything, mock.Anything).
		Return(nil, &momo.ValidationError{Field: "amount", Reason: "no credit package priced at this amount"})

	body := paymentBody()
	body["amount"] = 12345
	rec := doJSON(router, http.MethodPost, "/request-payment", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "no credit package priced at this amount", got["error"])
	assert.Equal(t, "amount", got["field"])
	f.watcher.AssertNotCalled(t, "WatchTransaction", mock.Anything, mock.Anything)
}

// Out-of-bounds amounts report the bounds violation, not a catalog miss:
// 50 is both below the minimum and not a package price.
func TestRequestPaymentBelowMinimumReportsBounds(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	f.payments.On("RequestPayment", mock.Anything, mock.MatchedBy(func(req momo.PaymentRequest) bool {
		return req.Amount == 50
	})).Return(nil, &momo.ValidationError{Field: "amount", Reason: "amount below minimum"})

	body := paymentBody()
	body["amount"] = 50
	rec := doJSON(router, http.MethodPost, "/request-payment", body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "amount below minimum", got["error"])
}

func TestRequestPaymentMissingFields(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	rec := doJSON(router, http.MethodPost, "/request-payment", map[string]interface{}{
		"amount": 25000,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.payments.AssertNotCalled(t, "RequestPayment", mock.Anything, mock.Anything)
}

func TestRequestPaymentValidationFailure(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	f.payments.On("RequestPayment", mock.Anything, mock.Anything).
		Return(nil, &momo.ValidationError{Field: "phoneNumber", Reason: "unrecognized carrier"})

	rec := doJSON(router, http.MethodPost, "/request-payment", paymentBody())

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "unrecognized carrier", got["error"])
	assert.Equal(t, "phoneNumber", got["field"])
	f.watcher.AssertNotCalled(t, "WatchTransaction", mock.Anything, mock.Anything)
}

func TestRequestPaymentProviderFailure(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	f.payments.On("RequestPayment", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("failed to initiate MoMo payment: %w", momo.ErrUnauthorized))

	rec := doJSON(router, http.MethodPost, "/request-payment", paymentBody())

	require.Equal(t, http.StatusBadGateway, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, false, got["success"])
	f.watcher.AssertNotCalled(t, "WatchTransaction", mock.Anything, mock.Anything)
}

func TestPaymentStatusEndpoint(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	tx := &models.PaymentTransaction{
		ReferenceID: "ref-123",
		Amount:      25000,
		Currency:    "UGX",
		PhoneNumber: "256771234567",
		Status:      models.PaymentStatusCompleted,
		Mode:        models.PaymentModeReal,
	}
	tx.ID = uuid.New()
	f.payments.On("GetPayment", mock.Anything, "ref-123").Return(tx, nil)

	rec := doJSON(router, http.MethodGet, "/payment-status/ref-123", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "ref-123", got["referenceId"])
	assert.Equal(t, "completed", got["status"])
	assert.Equal(t, "256771234567", got["payer"])
	assert.NotContains(t, got, "reason")
}

func TestPaymentStatusIncludesFailureReason(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	tx := &models.PaymentTransaction{
		ReferenceID: "ref-123",
		Status:      models.PaymentStatusFailed,
		Reason:      "PAYER_REJECTED",
	}
	f.payments.On("GetPayment", mock.Anything, "ref-123").Return(tx, nil)

	rec := doJSON(router, http.MethodGet, "/payment-status/ref-123", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "PAYER_REJECTED", got["reason"])
}

func TestPaymentStatusNotFound(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	f.payments.On("GetPayment", mock.Anything, "missing").
		Return(nil, fmt.Errorf("transaction not found: missing: %w", gorm.ErrRecordNotFound))

	rec := doJSON(router, http.MethodGet, "/payment-status/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentStatusStoreFailure(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.New())

	f.payments.On("GetPayment", mock.Anything, "ref-123").
		Return(nil, errors.New("connection refused"))

	rec := doJSON(router, http.MethodGet, "/payment-status/ref-123", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTestCredentialsEndpoint(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.Nil)

	rec := doJSON(router, http.MethodGet, "/test-credentials", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	creds := got["credentials"].(map[string]interface{})
	assert.Equal(t, true, creds["apiUserId"])
	assert.Equal(t, true, creds["apiKey"])
	assert.Equal(t, true, creds["primaryKey"])
	assert.Equal(t, "sandbox", got["environment"])
}

func TestTestCredentialsMissing(t *testing.T) {
	cfg := testConfig()
	cfg.MoMo.APIKey = ""
	cfg.MoMo.SubscriptionKey = ""
	f := newFixture(cfg)
	router := newRouter(f, uuid.Nil)

	rec := doJSON(router, http.MethodGet, "/test-credentials", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, false, got["success"])
	remediation := got["remediation"].([]interface{})
	assert.Len(t, remediation, 2)
}

func TestGetConfigNeverLeaksSecrets(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.Nil)

	rec := doJSON(router, http.MethodGet, "/config", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "user...", got["apiUserId"])
	assert.NotContains(t, rec.Body.String(), "subscription-abcdef")
	assert.NotContains(t, rec.Body.String(), "key-67890")
}

func TestCreditPackagesEndpoint(t *testing.T) {
	f := newFixture(testConfig())
	router := newRouter(f, uuid.Nil)

	rec := doJSON(router, http.MethodGet, "/credit-packages", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	packages := got["packages"].([]interface{})
	require.Len(t, packages, 4)

	first := packages[0].(map[string]interface{})
	assert.Equal(t, "starter-pack", first["slug"])
	assert.Equal(t, float64(10000), first["price"])
}
