package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createPaymentTransactionsTableMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_payment_transactions_table",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE TABLE IF NOT EXISTS payment_transactions (
					id UUID PRIMARY KEY,
					reference_id UUID NOT NULL UNIQUE,
					external_reference VARCHAR(100) NOT NULL UNIQUE,
					user_id UUID,
					amount DECIMAL(20,2) NOT NULL,
					currency VARCHAR(3) NOT NULL,
					phone_number VARCHAR(20) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'pending',
					mode VARCHAR(10) NOT NULL,
					credits_purchased INT NOT NULL DEFAULT 0,
					payer_message VARCHAR(255),
					payee_note VARCHAR(255),
					description TEXT,
					financial_id VARCHAR(100),
					reason VARCHAR(255),
					completed_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				)
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP TABLE IF EXISTS payment_transactions").Error
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createPaymentTransactionsTableMigration())
}
