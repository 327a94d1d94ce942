package worker

import (
	"context"
	"fmt"

	"teamflow/backend/internal/activity"
	"teamflow/backend/internal/mail"
)

// FanoutQueue defers activity writes to the worker pool.
type FanoutQueue struct {
	queue *JobQueue
}

func NewFanoutQueue(queue *JobQueue) *FanoutQueue {
	return &FanoutQueue{queue: queue}
}

func (q *FanoutQueue) EnqueueFanout(ctx context.Context, ev *activity.Event) error {
	_, err := q.queue.Enqueue(ctx, QueueHighPriority, JobTypeActivityFanout, ev)
	return err
}

// FanoutHandler writes a queued event. A retried job may write the same
// event twice if the first attempt committed and then timed out.
func FanoutHandler(store *activity.Store) JobHandler {
	return func(ctx context.Context, job *Job) error {
		var ev activity.Event
		if err := job.Decode(&ev); err != nil {
			return err
		}
		if _, err := store.Write(ctx, ev); err != nil {
			return fmt.Errorf("write activity event: %w", err)
		}
		return nil
	}
}

// EmailQueue is a mail.Sender that sends through the worker pool.
type EmailQueue struct {
	queue *JobQueue
}

func NewEmailQueue(queue *JobQueue) *EmailQueue {
	return &EmailQueue{queue: queue}
}

func (q *EmailQueue) Send(ctx context.Context, msg mail.Message) error {
	_, err := q.queue.Enqueue(ctx, QueueLowPriority, JobTypeEmailNotification, msg)
	return err
}

func EmailHandler(sender mail.Sender) JobHandler {
	return func(ctx context.Context, job *Job) error {
		var msg mail.Message
		if err := job.Decode(&msg); err != nil {
			return err
		}
		return sender.Send(ctx, msg)
	}
}
