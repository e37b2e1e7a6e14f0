package queue

import (
	"encoding/json"
	"time"
)

// JobType identifies a queue and its handler.
type JobType string

const (
	// JobTypeFulfillmentRetry retries credit grants that failed after a
	// confirmed payment. Retrying is safe: grants are keyed on the source
	// transaction id.
	JobTypeFulfillmentRetry JobType = "fulfillment_retry"
)

// Job represents a queued unit of work
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	CreatedAt   time.Time       `json:"created_at"`
}
