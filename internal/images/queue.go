package images

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	jobsKey   = "images:jobs"        // Pending image jobs (LPUSH/BRPOP)
	failedKey = "images:jobs:failed" // Jobs that errored, re-queued by the janitor
)

// Job is one background image-generation request for a slide.
type Job struct {
	ID         string    `json:"id"`
	DeckID     string    `json:"deck_id"`
	SlideID    string    `json:"slide_id"`
	Prompt     string    `json:"prompt"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Enqueuer is what the generation pipeline sees; nil means no image
// generator is configured and enqueueing is skipped.
type Enqueuer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Queue is a Redis-list backed job queue shared between the API and the
// worker process.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal image job: %w", err)
	}
	if err := q.client.LPush(ctx, jobsKey, data).Err(); err != nil {
		return fmt.Errorf("enqueue image job: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. Returns (nil, nil) when the
// wait times out.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	res, err := q.client.BRPop(ctx, timeout, jobsKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue image job: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal image job: %w", err)
	}
	return &job, nil
}

// MarkFailed parks a job on the failed list for the janitor to retry.
func (q *Queue) MarkFailed(ctx context.Context, job *Job) error {
	job.Attempts++
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal failed job: %w", err)
	}
	return q.client.LPush(ctx, failedKey, data).Err()
}

// RequeueFailed moves every parked job back onto the work queue and returns
// how many moved.
func (q *Queue) RequeueFailed(ctx context.Context) (int, error) {
	moved := 0
	for {
		data, err := q.client.RPop(ctx, failedKey).Result()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("pop failed job: %w", err)
		}
		if err := q.client.LPush(ctx, jobsKey, data).Err(); err != nil {
			return moved, fmt.Errorf("requeue job: %w", err)
		}
		moved++
	}
}

// Depth reports the pending queue length.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, jobsKey).Result()
}
