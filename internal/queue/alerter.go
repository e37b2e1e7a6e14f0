package queue

import (
	"context"

	"github.com/shuleconnect/backend/internal/services/credit"
	"github.com/sirupsen/logrus"
)

// FulfillmentAlerter routes fulfillment failures onto the reconciliation
// queue. The failure is also logged at error level so operators see it even
// if the queue write fails.
type FulfillmentAlerter struct {
	queue *RedisQueue
	log   *logrus.Entry
}

// NewFulfillmentAlerter creates a queue-backed fulfillment alerter.
func NewFulfillmentAlerter(queue *RedisQueue, log *logrus.Entry) *FulfillmentAlerter {
	return &FulfillmentAlerter{queue: queue, log: log}
}

// FulfillmentFailed records a confirmed payment whose credit grant failed and
// queues it for retry. It must never re-attempt the charge itself.
func (a *FulfillmentAlerter) FulfillmentFailed(ctx context.Context, alert credit.FulfillmentAlert) error {
	a.log.WithFields(logrus.Fields{
		"reference_id": alert.ReferenceID,
		"user_id":      alert.UserID,
		"credits":      alert.Credits,
		"reason":       alert.Reason,
	}).Error("payment confirmed but credit grant failed, queued for reconciliation")

	_, err := a.queue.Enqueue(ctx, JobTypeFulfillmentRetry, alert)
	return err
}
