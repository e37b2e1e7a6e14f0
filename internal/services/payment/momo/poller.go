package momo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shuleconnect/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrPollTimeout indicates polling exhausted its attempt budget without the
// provider reaching a terminal status. This is distinct from a provider
// rejection: no confirmation was observed, the payment may still settle.
var ErrPollTimeout = errors.New("momo: status polling exceeded attempt budget")

// CompletionFunc is invoked exactly once when a watched transaction reaches
// Completed. The transaction carries the credits to grant.
type CompletionFunc func(tx *models.PaymentTransaction)

// PollerConfig bounds the polling loop. The overall wall-clock budget is
// InitialDelay + MaxAttempts*Interval.
type PollerConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

// Poller drives transaction status reconciliation. Exactly one polling loop
// exists per reference id; a second Watch for the same id attaches to the
// running loop. Each loop issues status queries strictly sequentially, so an
// old pending response can never overwrite a later terminal one.
type Poller struct {
	store  TransactionStore
	client ProviderClient
	mock   *MockResponder
	cfg    PollerConfig
	clock  Clock
	log    *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]*Watch
}

// NewPoller creates a poller whose loops live until Shutdown is called.
func NewPoller(store TransactionStore, client ProviderClient, mock *MockResponder, cfg PollerConfig, clock Clock, log *logrus.Entry) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		store:  store,
		client: client,
		mock:   mock,
		cfg:    cfg,
		clock:  clock,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]*Watch),
	}
}

// Shutdown cancels every active polling loop. Cancellation is cooperative:
// each loop checks it at the top of every iteration and issues no further
// queries once cancelled.
func (p *Poller) Shutdown() {
	p.cancel()
}

// Watch represents one polling loop. Waiters block on Done and read the
// outcome with Result.
type Watch struct {
	referenceID string
	done        chan struct{}
	cancel      context.CancelFunc

	mu     sync.Mutex
	status models.PaymentStatus
	err    error
}

// Done is closed when the loop reaches a terminal outcome or is cancelled.
func (w *Watch) Done() <-chan struct{} { return w.done }

// Cancel stops the polling loop for this reference id. The loop is shared:
// every caller attached to the same reference id holds the same Watch, so
// cancelling stops polling for all of them.
func (w *Watch) Cancel() { w.cancel() }

// Result returns the final status and error once Done is closed.
func (w *Watch) Result() (models.PaymentStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status, w.err
}

func (w *Watch) finish(status models.PaymentStatus, err error) {
	w.mu.Lock()
	w.status = status
	w.err = err
	w.mu.Unlock()
	close(w.done)
}

// WatchTransaction starts (or attaches to) the polling loop for a reference
// id. onComplete runs at most once, and only on the watch that applied the
// Completed transition.
func (p *Poller) WatchTransaction(referenceID string, onComplete CompletionFunc) *Watch {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.active[referenceID]; ok {
		p.log.WithField("reference_id", referenceID).Debug("attaching to existing polling loop")
		return w
	}

	ctx, cancel := context.WithCancel(p.ctx)
	w := &Watch{
		referenceID: referenceID,
		done:        make(chan struct{}),
		cancel:      cancel,
	}
	p.active[referenceID] = w

	go p.run(ctx, w, onComplete)
	return w
}

func (p *Poller) release(referenceID string) {
	p.mu.Lock()
	delete(p.active, referenceID)
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context, w *Watch, onComplete CompletionFunc) {
	defer p.release(w.referenceID)

	log := p.log.WithField("reference_id", w.referenceID)

	tx, err := p.store.GetByReferenceID(ctx, w.referenceID)
	if err != nil {
		w.finish("", err)
		return
	}
	if tx.Status.Terminal() {
		w.finish(tx.Status, nil)
		return
	}

	// Initial grace delay before the first status query.
	if !p.wait(ctx, p.cfg.InitialDelay) {
		w.finish(models.PaymentStatusPending, ctx.Err())
		return
	}

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			log.Info("polling cancelled")
			w.finish(models.PaymentStatusPending, ctx.Err())
			return
		}

		status, err := p.check(ctx, tx)
		if err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("status query failed")
		} else {
			mapped := mapProviderStatus(status.Status)
			if mapped.Terminal() {
				p.settle(ctx, w, tx, mapped, status, onComplete)
				return
			}
			log.WithField("attempt", attempt).Debug("transaction still pending")
		}

		if attempt < p.cfg.MaxAttempts && !p.wait(ctx, p.cfg.Interval) {
			log.Info("polling cancelled")
			w.finish(models.PaymentStatusPending, ctx.Err())
			return
		}
	}

	// Attempt budget exhausted without a terminal provider status.
	if _, err := p.store.MarkTerminal(ctx, tx.ReferenceID, models.PaymentStatusTimedOut, "", "no confirmation observed within polling budget"); err != nil {
		log.WithError(err).Error("failed to mark transaction timed out")
	}
	log.Warn("polling timed out, retain the reference id for support")
	w.finish(models.PaymentStatusTimedOut, ErrPollTimeout)
}

// check issues a single status query: the provider endpoint for real
// transactions, the mock responder for mock ones.
func (p *Poller) check(ctx context.Context, tx *models.PaymentTransaction) (*TransactionStatus, error) {
	if tx.Mode == models.PaymentModeMock {
		return p.mock.TransactionStatus(ctx, tx)
	}
	return p.client.GetTransactionStatus(ctx, tx.ReferenceID)
}

// settle applies a terminal transition and fires the completion callback when
// this loop won the transition.
func (p *Poller) settle(ctx context.Context, w *Watch, tx *models.PaymentTransaction, mapped models.PaymentStatus, status *TransactionStatus, onComplete CompletionFunc) {
	log := p.log.WithFields(logrus.Fields{
		"reference_id": tx.ReferenceID,
		"status":       mapped,
		"mode":         tx.Mode,
	})

	applied, err := p.store.MarkTerminal(ctx, tx.ReferenceID, mapped, status.FinancialTransactionID, status.Reason)
	if err != nil {
		log.WithError(err).Error("failed to apply status transition")
		w.finish(mapped, err)
		return
	}

	log.WithField("applied", applied).Info("transaction reached terminal status")

	if applied && mapped == models.PaymentStatusCompleted && onComplete != nil {
		tx.Status = mapped
		tx.FinancialID = status.FinancialTransactionID
		onComplete(tx)
	}
	w.finish(mapped, nil)
}

// wait blocks for d or until cancellation; it reports false when cancelled.
func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.clock.After(d):
		return true
	}
}

// mapProviderStatus maps the provider's raw status vocabulary onto the
// canonical payment states. Anything unrecognized is still pending.
func mapProviderStatus(raw string) models.PaymentStatus {
	switch raw {
	case providerStatusSuccessful:
		return models.PaymentStatusCompleted
	case providerStatusFailed, providerStatusRejected:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}
