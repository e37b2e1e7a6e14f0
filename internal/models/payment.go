package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the canonical status of a payment transaction.
// Transitions are one-directional: pending moves into exactly one terminal
// value and never reverts.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusTimedOut  PaymentStatus = "timed_out"
)

// Terminal reports whether the status absorbs further transitions.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusTimedOut
}

// PaymentMode records whether a transaction went through the live provider or
// the fallback mock responder. A mock transaction must never be
// indistinguishable from a real one in storage.
type PaymentMode string

const (
	PaymentModeReal PaymentMode = "real"
	PaymentModeMock PaymentMode = "mock"
)

// PaymentTransaction represents a mobile money request-to-pay collection.
type PaymentTransaction struct {
	Base
	// ReferenceID is the provider-facing reference (the X-Reference-Id header
	// on the request-to-pay call). Globally unique, immutable after creation.
	ReferenceID string `gorm:"type:uuid;uniqueIndex;not null" json:"reference_id"`
	// ExternalReference is the caller-supplied idempotency key.
	ExternalReference string        `gorm:"type:varchar(100);uniqueIndex;not null" json:"external_reference"`
	UserID            uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	Amount            float64       `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency          string        `gorm:"type:varchar(3);not null" json:"currency"`
	PhoneNumber       string        `gorm:"type:varchar(20);not null" json:"phone_number"`
	Status            PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Mode              PaymentMode   `gorm:"type:varchar(10);not null" json:"mode"`
	CreditsPurchased  int           `gorm:"not null" json:"credits_purchased"`
	PayerMessage      string        `gorm:"type:varchar(255)" json:"payer_message"`
	PayeeNote         string        `gorm:"type:varchar(255)" json:"payee_note"`
	Description       string        `gorm:"type:text" json:"description"`
	FinancialID       string        `gorm:"type:varchar(100)" json:"financial_id"`
	Reason            string        `gorm:"type:varchar(255)" json:"reason"`
	CompletedAt       *time.Time    `json:"completed_at"`
}
