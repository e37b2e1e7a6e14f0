package database

import (
	"context"
	"time"

	"github.com/shuleconnect/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditLedgerRepo is the gorm-backed store for credit grants.
type CreditLedgerRepo struct {
	db *gorm.DB
}

// NewCreditLedgerRepo creates a credit ledger repository.
func NewCreditLedgerRepo(db *gorm.DB) *CreditLedgerRepo {
	return &CreditLedgerRepo{db: db}
}

// ApplyGrant inserts the ledger entry and increments the user's balance in a
// single database transaction. The insert rides on the unique index over
// source_transaction_id: a conflicting entry affects zero rows, the balance
// is left alone, and the grant is reported as a duplicate. No check-then-write.
func (r *CreditLedgerRepo) ApplyGrant(ctx context.Context, entry *models.CreditLedgerEntry) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_transaction_id"}},
			DoNothing: true,
		}).Create(entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true

		now := time.Now()
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"credits":    gorm.Expr("credit_balances.credits + ?", entry.CreditsGranted),
				"updated_at": now,
			}),
		}).Create(&models.CreditBalance{
			UserID:    entry.UserID,
			Credits:   entry.CreditsGranted,
			UpdatedAt: now,
		}).Error
	})
	return applied, err
}
