package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler processes a single job. A returned error requeues the job.
type Handler func(ctx context.Context, job Job) error

// Worker processes jobs of one type from a queue
type Worker struct {
	queue      *RedisQueue
	jobType    JobType
	handler    Handler
	numWorkers int
	wg         sync.WaitGroup
	quit       chan struct{}
	log        *logrus.Entry
}

// NewWorker creates a new worker
func NewWorker(queue *RedisQueue, jobType JobType, handler Handler, numWorkers int, log *logrus.Entry) *Worker {
	return &Worker{
		queue:      queue,
		jobType:    jobType,
		handler:    handler,
		numWorkers: numWorkers,
		quit:       make(chan struct{}),
		log:        log,
	}
}

// Start starts the worker goroutines
func (w *Worker) Start() {
	w.log.WithFields(logrus.Fields{
		"workers":  w.numWorkers,
		"job_type": w.jobType,
	}).Info("starting queue workers")

	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}
}

// Stop stops the worker and waits for in-flight jobs
func (w *Worker) Stop() {
	close(w.quit)
	w.wg.Wait()
}

func (w *Worker) process(workerID int) {
	defer w.wg.Done()

	log := w.log.WithField("worker", workerID)

	for {
		select {
		case <-w.quit:
			log.Debug("worker stopped")
			return
		default:
			ctx := context.Background()

			job, err := w.queue.Dequeue(ctx, w.jobType, 1*time.Second)
			if err != nil {
				log.WithError(err).Warn("failed to dequeue job")
				time.Sleep(1 * time.Second)
				continue
			}
			if job == nil {
				continue
			}

			if err := w.handler(ctx, *job); err != nil {
				log.WithError(err).WithField("job_id", job.ID).Warn("job failed")
				if err := w.queue.Requeue(ctx, job); err != nil {
					log.WithError(err).WithField("job_id", job.ID).Error("failed to requeue job")
				}
			}
		}
	}
}
