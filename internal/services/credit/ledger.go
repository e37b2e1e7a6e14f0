package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shuleconnect/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// FulfillmentError reports a ledger write that failed after a confirmed
// payment: money has moved but credit was not granted. It requires operator
// reconciliation and must never trigger a second charge attempt.
type FulfillmentError struct {
	ReferenceID string
	Err         error
}

func (e *FulfillmentError) Error() string {
	return fmt.Sprintf("fulfillment failed for transaction %s: %v", e.ReferenceID, e.Err)
}

func (e *FulfillmentError) Unwrap() error { return e.Err }

// LedgerStore persists credit grants. ApplyGrant must be atomic
// insert-if-absent on the source transaction id; the uniqueness constraint
// lives in the store, not in caller-side check-then-write.
type LedgerStore interface {
	// ApplyGrant writes the ledger entry and increments the user's balance in
	// one transaction. It reports false without error when an entry for the
	// same source transaction already exists.
	ApplyGrant(ctx context.Context, entry *models.CreditLedgerEntry) (bool, error)
}

// FulfillmentAlert carries everything an operator (or the retry worker)
// needs to reconcile a failed grant.
type FulfillmentAlert struct {
	ReferenceID string    `json:"reference_id"`
	UserID      uuid.UUID `json:"user_id"`
	Credits     int       `json:"credits"`
	Reason      string    `json:"reason"`
}

// Alerter surfaces fulfillment failures for operator-visible reconciliation.
type Alerter interface {
	FulfillmentFailed(ctx context.Context, alert FulfillmentAlert) error
}

// Ledger applies purchased credit grants exactly once per confirmed
// transaction.
type Ledger struct {
	store  LedgerStore
	alerts Alerter
	log    *logrus.Entry
}

// NewLedger creates a credit fulfillment ledger.
func NewLedger(store LedgerStore, alerts Alerter, log *logrus.Entry) *Ledger {
	return &Ledger{
		store:  store,
		alerts: alerts,
		log:    log,
	}
}

// Grant credits a user for a completed transaction. A duplicate or replayed
// completion for the same reference id is a no-op. A store failure is
// surfaced as a FulfillmentError and queued for reconciliation.
func (l *Ledger) Grant(ctx context.Context, referenceID string, userID uuid.UUID, credits int) error {
	err := l.apply(ctx, referenceID, userID, credits)
	if err == nil {
		return nil
	}

	alert := FulfillmentAlert{
		ReferenceID: referenceID,
		UserID:      userID,
		Credits:     credits,
		Reason:      err.Error(),
	}
	if alertErr := l.alerts.FulfillmentFailed(ctx, alert); alertErr != nil {
		l.log.WithError(alertErr).WithField("reference_id", referenceID).
			Error("failed to queue fulfillment alert")
	}
	return err
}

// RetryGrant re-attempts a previously failed grant without re-alerting; the
// reconciliation worker owns the retry schedule. Retrying is safe because
// the grant is keyed on the source transaction id.
func (l *Ledger) RetryGrant(ctx context.Context, alert FulfillmentAlert) error {
	return l.apply(ctx, alert.ReferenceID, alert.UserID, alert.Credits)
}

func (l *Ledger) apply(ctx context.Context, referenceID string, userID uuid.UUID, credits int) error {
	entry := &models.CreditLedgerEntry{
		SourceTransactionID: referenceID,
		UserID:              userID,
		CreditsGranted:      credits,
		AppliedAt:           time.Now(),
	}

	applied, err := l.store.ApplyGrant(ctx, entry)
	if err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"reference_id": referenceID,
			"user_id":      userID,
			"credits":      credits,
		}).Error("ledger write failed after confirmed payment")
		return &FulfillmentError{ReferenceID: referenceID, Err: err}
	}

	if !applied {
		l.log.WithField("reference_id", referenceID).
			Info("credits already granted for transaction, ignoring duplicate completion")
		return nil
	}

	l.log.WithFields(logrus.Fields{
		"reference_id": referenceID,
		"user_id":      userID,
		"credits":      credits,
	}).Info("credits granted")
	return nil
}
