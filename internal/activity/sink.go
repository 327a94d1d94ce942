package activity

import (
	"context"
	"sync"
	"time"

	"teamflow/backend/internal/logging"
)

// Sink accepts events once the operation that produced them has committed.
// Publish never returns an error: fan-out failures are logged only.
type Sink interface {
	Publish(ctx context.Context, ev *Event)
}

// writeTimeout bounds deferred writes that no longer have a request context.
const writeTimeout = 10 * time.Second

func logFailure(logger *logging.Logger, ev *Event, err error) {
	logger.Error("activity fan-out failed",
		"actor_id", ev.ActorID.String(),
		"task_ids", ev.TaskIDs(),
		"entries", len(ev.Entries),
		"notices", len(ev.Notices),
		"error", err,
	)
}

// InlineSink writes before Publish returns.
type InlineSink struct {
	store  *Store
	logger *logging.Logger
}

func NewInlineSink(store *Store, logger *logging.Logger) *InlineSink {
	return &InlineSink{store: store, logger: logger.WithComponent("fanout")}
}

func (s *InlineSink) Publish(ctx context.Context, ev *Event) {
	if ev.Empty() {
		return
	}
	if _, err := s.store.Write(context.WithoutCancel(ctx), *ev); err != nil {
		logFailure(s.logger, ev, err)
	}
}

// AsyncSink writes on a background goroutine so the response is not held
// up. Close waits for in-flight writes.
type AsyncSink struct {
	store  *Store
	logger *logging.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncSink(store *Store, logger *logging.Logger) *AsyncSink {
	return &AsyncSink{store: store, logger: logger.WithComponent("fanout")}
}

func (s *AsyncSink) Publish(ctx context.Context, ev *Event) {
	if ev.Empty() {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.write(context.WithoutCancel(ctx), ev)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		s.write(writeCtx, ev)
	}()
}

func (s *AsyncSink) write(ctx context.Context, ev *Event) {
	if _, err := s.store.Write(ctx, *ev); err != nil {
		logFailure(s.logger, ev, err)
	}
}

// Flush blocks until every event published so far has been written.
func (s *AsyncSink) Flush() {
	s.wg.Wait()
}

// Close stops accepting background work and drains pending writes. Events
// published after Close are written inline.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// Enqueuer hands an event to a durable job queue.
type Enqueuer interface {
	EnqueueFanout(ctx context.Context, ev *Event) error
}

// QueueSink defers writes to the worker pool. When the queue is unavailable
// the event is written inline instead of being dropped.
type QueueSink struct {
	queue    Enqueuer
	fallback *InlineSink
	logger   *logging.Logger
}

func NewQueueSink(queue Enqueuer, store *Store, logger *logging.Logger) *QueueSink {
	return &QueueSink{
		queue:    queue,
		fallback: NewInlineSink(store, logger),
		logger:   logger.WithComponent("fanout"),
	}
}

func (s *QueueSink) Publish(ctx context.Context, ev *Event) {
	if ev.Empty() {
		return
	}
	if err := s.queue.EnqueueFanout(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("fan-out enqueue failed, writing inline", "error", err)
		s.fallback.Publish(ctx, ev)
	}
}

