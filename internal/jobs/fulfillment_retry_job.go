package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shuleconnect/backend/internal/queue"
	"github.com/shuleconnect/backend/internal/services/credit"
	"github.com/sirupsen/logrus"
)

// GrantRetrier re-attempts a failed credit grant.
type GrantRetrier interface {
	RetryGrant(ctx context.Context, alert credit.FulfillmentAlert) error
}

// NewFulfillmentRetryHandler returns the queue handler that re-attempts
// credit grants for confirmed payments. The grant is keyed on the source
// transaction id, so a retry can never double-credit, and it never touches
// the provider, so it can never double-charge.
func NewFulfillmentRetryHandler(ledger GrantRetrier, log *logrus.Entry) queue.Handler {
	return func(ctx context.Context, job queue.Job) error {
		var alert credit.FulfillmentAlert
		if err := json.Unmarshal(job.Payload, &alert); err != nil {
			return fmt.Errorf("invalid fulfillment retry payload: %w", err)
		}

		log.WithFields(logrus.Fields{
			"job_id":       job.ID,
			"reference_id": alert.ReferenceID,
			"attempt":      job.Attempts + 1,
		}).Info("retrying credit grant")

		return ledger.RetryGrant(ctx, alert)
	}
}
