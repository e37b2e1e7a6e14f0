package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// StaleTransactionStore is the store slice the sweeper needs.
type StaleTransactionStore interface {
	MarkStaleTimedOut(ctx context.Context, cutoff time.Time) (int64, error)
}

// StaleTransactionSweeper times out pending transactions whose polling loop
// never concluded, e.g. after a process restart. It only ever touches rows
// still pending; terminal rows are absorbing.
type StaleTransactionSweeper struct {
	store     StaleTransactionStore
	staleAge  time.Duration
	scheduler *gocron.Scheduler
	log       *logrus.Entry
}

// NewStaleTransactionSweeper creates a sweeper. staleAge should exceed the
// polling budget so the sweeper never races an active loop.
func NewStaleTransactionSweeper(store StaleTransactionStore, staleAge time.Duration, log *logrus.Entry) *StaleTransactionSweeper {
	return &StaleTransactionSweeper{
		store:     store,
		staleAge:  staleAge,
		scheduler: gocron.NewScheduler(time.UTC),
		log:       log,
	}
}

// Start schedules the sweep to run every minute.
func (s *StaleTransactionSweeper) Start() {
	if _, err := s.scheduler.Every(1).Minute().Do(s.sweep); err != nil {
		s.log.WithError(err).Error("failed to schedule stale transaction sweep")
		return
	}
	s.scheduler.StartAsync()
}

// Stop stops the scheduler.
func (s *StaleTransactionSweeper) Stop() {
	s.scheduler.Stop()
}

func (s *StaleTransactionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-s.staleAge)
	swept, err := s.store.MarkStaleTimedOut(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Error("stale transaction sweep failed")
		return
	}
	if swept > 0 {
		s.log.WithField("count", swept).Warn("timed out stale pending transactions")
	}
}
