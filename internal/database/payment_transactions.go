package database

import (
	"context"
	"time"

	"github.com/shuleconnect/backend/internal/models"
	"gorm.io/gorm"
)

// PaymentTransactionRepo is the gorm-backed store for payment transactions.
type PaymentTransactionRepo struct {
	db *gorm.DB
}

// NewPaymentTransactionRepo creates a payment transaction repository.
func NewPaymentTransactionRepo(db *gorm.DB) *PaymentTransactionRepo {
	return &PaymentTransactionRepo{db: db}
}

// Create persists a new payment transaction.
func (r *PaymentTransactionRepo) Create(ctx context.Context, tx *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// GetByReferenceID fetches a transaction by its provider-facing reference id.
func (r *PaymentTransactionRepo) GetByReferenceID(ctx context.Context, referenceID string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	if err := r.db.WithContext(ctx).Where("reference_id = ?", referenceID).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetByExternalReference fetches a transaction by the caller's idempotency key.
func (r *PaymentTransactionRepo) GetByExternalReference(ctx context.Context, externalReference string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	if err := r.db.WithContext(ctx).Where("external_reference = ?", externalReference).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// MarkTerminal applies a one-way status transition. The guarded WHERE keeps
// transitions one-directional: a transaction already terminal is never
// rewritten, and the caller learns whether it won the transition.
func (r *PaymentTransactionRepo) MarkTerminal(ctx context.Context, referenceID string, status models.PaymentStatus, financialID, reason string) (bool, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if financialID != "" {
		updates["financial_id"] = financialID
	}
	if reason != "" {
		updates["reason"] = reason
	}
	if status == models.PaymentStatusCompleted {
		updates["completed_at"] = time.Now()
	}

	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("reference_id = ? AND status = ?", referenceID, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetMode records the mode a still-pending transaction settled on. The
// pending guard keeps terminal rows immutable.
func (r *PaymentTransactionRepo) SetMode(ctx context.Context, referenceID string, mode models.PaymentMode) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("reference_id = ? AND status = ?", referenceID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"mode":       mode,
			"updated_at": time.Now(),
		}).Error
}

// MarkStaleTimedOut times out pending transactions created before the cutoff.
// Used by the sweeper for transactions whose polling loop never concluded
// (e.g. a process restart).
func (r *PaymentTransactionRepo) MarkStaleTimedOut(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":     models.PaymentStatusTimedOut,
			"reason":     "no confirmation observed within polling budget",
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}
