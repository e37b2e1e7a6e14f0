package momo

import (
	"context"
	"time"

	"github.com/shuleconnect/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// MockResponder simulates provider responses under the same contract as the
// live client. It is triggered only on real-path failure (and only when strict
// mode is off) so the rest of the pipeline stays exercisable without live
// credentials. It never touches the network, and every invocation is logged:
// a mock transaction must stay distinguishable from a real one.
type MockResponder struct {
	// ackDelay is the simulated latency before acknowledging a request to pay.
	ackDelay time.Duration
	// completeAfter is how long after creation a mock transaction reports
	// SUCCESSFUL when polled.
	completeAfter time.Duration
	clock         Clock
	log           *logrus.Entry
}

// NewMockResponder creates a mock responder with the given simulated delays.
func NewMockResponder(ackDelay, completeAfter time.Duration, clock Clock, log *logrus.Entry) *MockResponder {
	return &MockResponder{
		ackDelay:      ackDelay,
		completeAfter: completeAfter,
		clock:         clock,
		log:           log,
	}
}

// Respond simulates the provider acknowledging a request to pay for the given
// reference id. It returns once the simulated delay has elapsed.
func (m *MockResponder) Respond(ctx context.Context, referenceID string) error {
	m.log.WithField("reference_id", referenceID).Warn("provider unavailable, responding in mock mode")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(m.ackDelay):
		return nil
	}
}

// TransactionStatus synthesizes a deterministic status for a mock
// transaction: pending until completeAfter has elapsed since creation, then
// SUCCESSFUL.
func (m *MockResponder) TransactionStatus(_ context.Context, tx *models.PaymentTransaction) (*TransactionStatus, error) {
	status := "PENDING"
	financialID := ""
	if m.clock.Now().Sub(tx.CreatedAt) >= m.completeAfter {
		status = providerStatusSuccessful
		financialID = "MOCK-" + tx.ReferenceID[:8]
	}

	return &TransactionStatus{
		Amount:                 formatAmount(tx.Amount),
		Currency:               tx.Currency,
		ExternalID:             tx.ExternalReference,
		Payer:                  Payer{PartyIDType: "MSISDN", PartyID: tx.PhoneNumber},
		Status:                 status,
		FinancialTransactionID: financialID,
	}, nil
}
