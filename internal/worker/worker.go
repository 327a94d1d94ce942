// Package worker runs background jobs from Redis lists. Failed jobs are
// retried with exponential backoff through a scheduled set and end up in a
// dead-letter list after MaxTries attempts.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"teamflow/backend/internal/logging"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type JobType string

const (
	JobTypeActivityFanout    JobType = "activity_fanout"
	JobTypeEmailNotification JobType = "email_notification"
)

const (
	QueueHighPriority = "high_priority"
	QueueDefault      = "default"
	QueueLowPriority  = "low_priority"

	scheduledKey = "jobs:scheduled"
	deadQueueKey = "jobs:dead"
)

type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Queue     string          `json:"queue"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	MaxTries  int             `json:"max_tries"`
	CreatedAt time.Time       `json:"created_at"`
	ProcessAt time.Time       `json:"process_at"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

type JobHandler func(ctx context.Context, job *Job) error

type WorkerConfig struct {
	RedisClient  *redis.Client
	Concurrency  int
	PollInterval time.Duration
	Queues       []string
	JobTimeout   time.Duration
	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase time.Duration
	// DrainTimeout is how long Stop lets running jobs finish before
	// cancelling them. Defaults to JobTimeout.
	DrainTimeout time.Duration
	Logger       *logging.Logger
}

type Worker struct {
	client       *redis.Client
	handlers     map[JobType]JobHandler
	queues       []string
	concurrency  int
	pollInterval time.Duration
	jobTimeout   time.Duration
	retryBase    time.Duration
	drainTimeout time.Duration
	logger       *logging.Logger
	now          func() time.Time

	mu     sync.RWMutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// jobCtx outlives the polling context so running jobs can finish
	// during shutdown; abort cancels it once the drain window is over.
	jobCtx context.Context
	abort  context.CancelFunc
}

func NewWorker(config WorkerConfig) *Worker {
	w := &Worker{
		client:       config.RedisClient,
		handlers:     make(map[JobType]JobHandler),
		queues:       config.Queues,
		concurrency:  config.Concurrency,
		pollInterval: config.PollInterval,
		jobTimeout:   config.JobTimeout,
		retryBase:    config.RetryBase,
		drainTimeout: config.DrainTimeout,
		logger:       config.Logger.WithComponent("worker"),
		now:          time.Now,
	}
	if len(w.queues) == 0 {
		w.queues = []string{QueueHighPriority, QueueDefault, QueueLowPriority}
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 5 * time.Second
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 30 * time.Second
	}
	if w.retryBase <= 0 {
		w.retryBase = 30 * time.Second
	}
	if w.drainTimeout <= 0 {
		w.drainTimeout = w.jobTimeout
	}
	return w
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Start launches the consumers and the scheduler. Stop, or cancelling ctx,
// ends polling; jobs already running keep their own context until Stop's
// drain window closes.
func (w *Worker) Start(ctx context.Context) {
	w.jobCtx, w.abort = context.WithCancel(context.WithoutCancel(ctx))
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.logger.Info("starting worker", "concurrency", w.concurrency, "queues", w.queues)
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.consume(ctx)
	}
	w.wg.Add(1)
	go w.schedule(ctx)
}

func (w *Worker) Stop() {
	w.logger.Info("stopping worker")
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(w.drainTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		w.logger.Warn("drain window elapsed, cancelling running jobs", "drain_timeout", w.drainTimeout)
		if w.abort != nil {
			w.abort()
		}
		<-done
	}
	if w.abort != nil {
		w.abort()
	}
	w.logger.Info("worker stopped")
}

func (w *Worker) consume(ctx context.Context) {
	defer w.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.processNextJob(ctx, w.pollInterval); err != nil && ctx.Err() == nil {
			w.logger.Error("error processing job", "error", err)
			sleep(ctx, time.Second)
		}
	}
}

func (w *Worker) schedule(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.promoteDue(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("promoting scheduled jobs failed", "error", err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// processNextJob pops one job, waiting up to timeout. It reports whether a
// job was handled.
func (w *Worker) processNextJob(ctx context.Context, timeout time.Duration) (bool, error) {
	result, err := w.client.BLPop(ctx, timeout, w.queues...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to pop job: %w", err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("invalid job result")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return false, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.Queue == "" {
		job.Queue = result[0]
	}
	return true, w.executeJob(ctx, &job)
}

func (w *Worker) executeJob(ctx context.Context, job *Job) error {
	w.mu.RLock()
	handler, exists := w.handlers[job.Type]
	w.mu.RUnlock()

	if !exists {
		return w.moveToDeadQueue(ctx, job, fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	logger := w.logger.With("job_id", job.ID, "job_type", string(job.Type))
	logger.Debug("processing job", "attempt", job.Attempts+1)

	base := ctx
	if w.jobCtx != nil {
		base = w.jobCtx
	}
	jobCtx, cancel := context.WithTimeout(base, w.jobTimeout)
	defer cancel()

	err := handler(jobCtx, job)
	if err == nil {
		logger.Debug("job completed")
		return nil
	}

	job.Attempts++
	if job.Attempts < job.MaxTries {
		logger.Warn("job failed, retrying", "attempt", job.Attempts, "max_tries", job.MaxTries, "error", err)
		return w.retryJob(ctx, job)
	}

	logger.Error("job failed permanently", "attempts", job.Attempts, "error", err)
	return w.moveToDeadQueue(ctx, job, err)
}

func (w *Worker) retryJob(ctx context.Context, job *Job) error {
	delay := w.retryBase * time.Duration(1<<(job.Attempts-1))
	job.ProcessAt = w.now().Add(delay)

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return w.client.ZAdd(context.WithoutCancel(ctx), scheduledKey, redis.Z{
		Score:  float64(job.ProcessAt.UnixMilli()),
		Member: data,
	}).Err()
}

// promoteDue moves scheduled jobs whose time has come back onto their queue.
func (w *Worker) promoteDue(ctx context.Context) (int, error) {
	until := strconv.FormatInt(w.now().UnixMilli(), 10)
	members, err := w.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{Min: "-inf", Max: until}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, member := range members {
		removed, err := w.client.ZRem(ctx, scheduledKey, member).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			w.logger.Error("dropping unreadable scheduled job", "error", err)
			continue
		}
		queue := job.Queue
		if queue == "" {
			queue = QueueDefault
		}
		if err := w.client.RPush(ctx, queue, member).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

type deadJob struct {
	Job      *Job      `json:"original_job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func (w *Worker) moveToDeadQueue(ctx context.Context, job *Job, jobErr error) error {
	data, err := json.Marshal(deadJob{Job: job, Error: jobErr.Error(), FailedAt: w.now()})
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	return w.client.RPush(context.WithoutCancel(ctx), deadQueueKey, data).Err()
}

type JobQueue struct {
	client   *redis.Client
	maxTries int
}

func NewJobQueue(client *redis.Client, maxTries int) *JobQueue {
	if maxTries <= 0 {
		maxTries = 3
	}
	return &JobQueue{client: client, maxTries: maxTries}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload interface{}) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.Must(uuid.NewV4()).String(),
		Type:      jobType,
		Queue:     queue,
		Payload:   raw,
		MaxTries:  q.maxTries,
		CreatedAt: now,
		ProcessAt: now,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, queue, data).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}
	return job, nil
}

func (q *JobQueue) GetQueueSize(ctx context.Context, queue string) (int64, error) {
	return q.client.LLen(ctx, queue).Result()
}

func (q *JobQueue) DeadCount(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, deadQueueKey).Result()
}

func (q *JobQueue) ScheduledCount(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, scheduledKey).Result()
}
