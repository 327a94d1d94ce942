package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"teamflow/backend/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityQueue_HighestFirst(t *testing.T) {
	pq := NewPriorityQueue()
	pq.Push(WarmupJob{Key: "low", Priority: 1})
	pq.Push(WarmupJob{Key: "high", Priority: 9})
	pq.Push(WarmupJob{Key: "mid", Priority: 5})
	assert.Equal(t, 3, pq.Len())

	var keys []string
	for {
		job, ok := pq.Pop()
		if !ok {
			break
		}
		keys = append(keys, job.Key)
	}
	assert.Equal(t, []string{"high", "mid", "low"}, keys)
}

func TestWarmer_LoadsInPriorityOrder(t *testing.T) {
	c := NewMemoryCache(10)
	w := NewWarmer(c, 1, logging.Nop())

	var (
		mu    sync.Mutex
		order []string
	)
	load := func(key string) func(context.Context) (interface{}, error) {
		return func(context.Context) (interface{}, error) {
			mu.Lock()
			order = append(order, key)
			mu.Unlock()
			return sample{Name: key}, nil
		}
	}
	w.Add(WarmupJob{Key: "b", TTL: time.Minute, Priority: 1, Load: load("b")})
	w.Add(WarmupJob{Key: "a", TTL: time.Minute, Priority: 2, Load: load("a")})

	res := w.Warm(context.Background())
	assert.Equal(t, WarmupResult{Warmed: 2}, res)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Zero(t, w.Pending())

	var got sample
	require.NoError(t, c.Get(context.Background(), "b", &got))
	assert.Equal(t, "b", got.Name)
}

func TestWarmer_CountsFailures(t *testing.T) {
	c := NewMemoryCache(10)
	w := NewWarmer(c, 3, logging.Nop())

	w.Add(WarmupJob{Key: "ok", TTL: time.Minute, Load: func(context.Context) (interface{}, error) {
		return sample{Name: "ok"}, nil
	}})
	w.Add(WarmupJob{Key: "bad", TTL: time.Minute, Load: func(context.Context) (interface{}, error) {
		return nil, errors.New("compose failed")
	}})

	res := w.Warm(context.Background())
	assert.Equal(t, WarmupResult{Warmed: 1, Failed: 1}, res)
	assert.Equal(t, 1, c.Len())
}

func TestWarmer_StopsOnCancelledContext(t *testing.T) {
	w := NewWarmer(NewMemoryCache(10), 1, logging.Nop())
	w.Add(WarmupJob{Key: "never", Load: func(context.Context) (interface{}, error) {
		return sample{}, nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, WarmupResult{}, w.Warm(ctx))
	assert.Equal(t, 1, w.Pending())
}

func TestWarmer_SkipsStaleValues(t *testing.T) {
	c := NewMemoryCache(10)
	w := NewWarmer(c, 1, logging.Nop())

	w.Add(WarmupJob{
		Key:   "superseded",
		TTL:   time.Minute,
		Load:  func(context.Context) (interface{}, error) { return sample{Name: "old"}, nil },
		Stale: func() bool { return true },
	})

	res := w.Warm(context.Background())
	assert.Equal(t, WarmupResult{Warmed: 1}, res)
	assert.Zero(t, c.Len())
}
