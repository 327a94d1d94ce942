package cache

import (
	"container/heap"
	"sync"
)

type queueItem struct {
	job   WarmupJob
	index int
}

type warmupHeap []*queueItem

func (h warmupHeap) Len() int { return len(h) }

func (h warmupHeap) Less(i, j int) bool {
	return h[i].job.Priority > h[j].job.Priority
}

func (h warmupHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *warmupHeap) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *warmupHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// PriorityQueue hands out warmup jobs highest priority first.
type PriorityQueue struct {
	mu    sync.Mutex
	items warmupHeap
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

func (pq *PriorityQueue) Push(job WarmupJob) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	heap.Push(&pq.items, &queueItem{job: job})
}

func (pq *PriorityQueue) Pop() (WarmupJob, bool) {
	pq.mu.Lock()
	defer pq.mu.Unlock()

	if len(pq.items) == 0 {
		return WarmupJob{}, false
	}
	return heap.Pop(&pq.items).(*queueItem).job, true
}

func (pq *PriorityQueue) Len() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.items)
}
