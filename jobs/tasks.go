// Package jobs hosts the background task plumbing. The only task today
// is resolver cache warmup: after a permission mutation wipes the whole
// resolution namespace, recently queried role combinations are
// re-resolved so hot authorization paths do not stampede the store.
package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskResolverWarmup re-resolves recently queried role combinations.
	TaskResolverWarmup = "resolver:warmup"
)

// NewResolverWarmupTask constructs an Asynq task. The task carries no
// payload; the set of combinations to warm lives in Redis.
func NewResolverWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskResolverWarmup, nil)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueResolverWarmup schedules a warmup run. Duplicate pending runs
// are harmless; each re-resolution overwrites with an equal value.
func (c *Client) EnqueueResolverWarmup(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewResolverWarmupTask(), asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
