package momo

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/shuleconnect/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

// MockProviderClient is a mock implementation of ProviderClient
type MockProviderClient struct {
	mock.Mock
}

func (m *MockProviderClient) RequestToPay(ctx context.Context, referenceID string, request RequestToPayRequest) error {
	args := m.Called(ctx, referenceID, request)
	return args.Error(0)
}

func (m *MockProviderClient) GetTransactionStatus(ctx context.Context, referenceID string) (*TransactionStatus, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransactionStatus), args.Error(1)
}

// MockTransactionStore is a mock implementation of TransactionStore
type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) Create(ctx context.Context, tx *models.PaymentTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionStore) GetByReferenceID(ctx context.Context, referenceID string) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionStore) GetByExternalReference(ctx context.Context, externalReference string) (*models.PaymentTransaction, error) {
	args := m.Called(ctx, externalReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentTransaction), args.Error(1)
}

func (m *MockTransactionStore) MarkTerminal(ctx context.Context, referenceID string, status models.PaymentStatus, financialID, reason string) (bool, error) {
	args := m.Called(ctx, referenceID, status, financialID, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionStore) SetMode(ctx context.Context, referenceID string, mode models.PaymentMode) error {
	args := m.Called(ctx, referenceID, mode)
	return args.Error(0)
}

// fakeClock is a deterministic Clock: every wait fires immediately and
// advances virtual time by the requested duration.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
