package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createCreditLedgerTablesMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_credit_ledger_tables",
		Migrate: func(tx *gorm.DB) error {
			// The unique constraint on source_transaction_id carries the
			// exactly-once fulfillment invariant.
			if err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS credit_ledger_entries (
					id UUID PRIMARY KEY,
					source_transaction_id UUID NOT NULL UNIQUE,
					user_id UUID NOT NULL,
					credits_granted INT NOT NULL,
					applied_at TIMESTAMP WITH TIME ZONE NOT NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				)
			`).Error; err != nil {
				return err
			}
			if err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_credit_ledger_entries_user_id
					ON credit_ledger_entries (user_id)
			`).Error; err != nil {
				return err
			}
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS credit_balances (
					user_id UUID PRIMARY KEY,
					credits INT NOT NULL DEFAULT 0,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				)
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Exec("DROP TABLE IF EXISTS credit_balances").Error; err != nil {
				return err
			}
			return tx.Exec("DROP TABLE IF EXISTS credit_ledger_entries").Error
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createCreditLedgerTablesMigration())
}
