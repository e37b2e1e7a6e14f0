package models

import (
	"time"

	"github.com/google/uuid"
)

// CreditLedgerEntry records a credit grant for a completed payment. The
// unique index on SourceTransactionID is the exactly-once guarantee: at most
// one entry per source transaction ever exists, enforced by the store rather
// than the caller.
type CreditLedgerEntry struct {
	Base
	SourceTransactionID string    `gorm:"type:uuid;uniqueIndex;not null" json:"source_transaction_id"`
	UserID              uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	CreditsGranted      int       `gorm:"not null" json:"credits_granted"`
	AppliedAt           time.Time `gorm:"not null" json:"applied_at"`
}

// CreditBalance is the running per-user credit balance, incremented in the
// same database transaction as the ledger entry insert.
type CreditBalance struct {
	UserID    uuid.UUID `gorm:"type:uuid;primary_key" json:"user_id"`
	Credits   int       `gorm:"not null;default:0" json:"credits"`
	UpdatedAt time.Time `json:"updated_at"`
}
