package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	queuePrefix     = "queue:"
	deadLetterQueue = "queue:dead"

	defaultMaxAttempts = 5
)

// RedisQueue is a Redis-backed job queue.
type RedisQueue struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedisQueue creates a Redis-backed queue.
func NewRedisQueue(client *redis.Client, log *logrus.Entry) *RedisQueue {
	return &RedisQueue{
		client: client,
		log:    log,
	}
}

// Enqueue pushes a job onto the queue for its type.
func (q *RedisQueue) Enqueue(ctx context.Context, jobType JobType, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Payload:     data,
		MaxAttempts: defaultMaxAttempts,
		CreatedAt:   time.Now(),
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	if err := q.client.LPush(ctx, queuePrefix+string(jobType), raw).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_type": jobType,
	}).Debug("job enqueued")

	return job.ID, nil
}

// Dequeue blocks up to timeout for the next job of the given type. It
// returns nil when the queue stays empty.
func (q *RedisQueue) Dequeue(ctx context.Context, jobType JobType, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, queuePrefix+string(jobType)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	// BRPOP returns [key, value]
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Requeue puts a failed job back, moving it to the dead letter queue once
// its attempt budget is spent.
func (q *RedisQueue) Requeue(ctx context.Context, job *Job) error {
	job.Attempts++

	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if job.Attempts >= job.MaxAttempts {
		q.log.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"job_type": job.Type,
			"attempts": job.Attempts,
		}).Error("job exhausted retries, moving to dead letter queue")
		return q.client.LPush(ctx, deadLetterQueue, raw).Err()
	}

	return q.client.LPush(ctx, queuePrefix+string(job.Type), raw).Err()
}
