package cache

import (
	"context"
	"sync"
	"time"

	"teamflow/backend/internal/logging"
)

// WarmupJob loads one value into the cache ahead of the first read.
type WarmupJob struct {
	Key      string
	TTL      time.Duration
	Priority int
	Load     func(ctx context.Context) (interface{}, error)
	// Stale, when set, reports that the loaded value was superseded. A stale
	// value is not written, or is removed again if it went stale mid-write.
	Stale func() bool
}

type WarmupResult struct {
	Warmed int `json:"warmed"`
	Failed int `json:"failed"`
}

// Warmer drains queued jobs highest priority first with bounded concurrency.
type Warmer struct {
	cache       Cache
	concurrency int
	queue       *PriorityQueue
	logger      *logging.Logger
}

func NewWarmer(c Cache, concurrency int, logger *logging.Logger) *Warmer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Warmer{
		cache:       c,
		concurrency: concurrency,
		queue:       NewPriorityQueue(),
		logger:      logger.WithComponent("cache_warmer"),
	}
}

func (w *Warmer) Add(job WarmupJob) {
	w.queue.Push(job)
}

func (w *Warmer) Pending() int {
	return w.queue.Len()
}

// Warm runs every queued job. It stops handing out jobs once ctx is done;
// jobs already started finish.
func (w *Warmer) Warm(ctx context.Context) WarmupResult {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result WarmupResult
		slots  = make(chan struct{}, w.concurrency)
	)

	for ctx.Err() == nil {
		job, ok := w.queue.Pop()
		if !ok {
			break
		}
		slots <- struct{}{}
		wg.Add(1)
		go func(job WarmupJob) {
			defer func() {
				<-slots
				wg.Done()
			}()

			err := w.run(ctx, job)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				w.logger.Warn("cache warmup failed", "key", job.Key, "error", err)
				return
			}
			result.Warmed++
		}(job)
	}
	wg.Wait()
	return result
}

func (w *Warmer) run(ctx context.Context, job WarmupJob) error {
	value, err := job.Load(ctx)
	if err != nil {
		return err
	}
	if job.Stale != nil && job.Stale() {
		return nil
	}
	if err := w.cache.Set(ctx, job.Key, value, job.TTL); err != nil {
		return err
	}
	if job.Stale != nil && job.Stale() {
		return w.cache.Delete(context.WithoutCancel(ctx), job.Key)
	}
	return nil
}
