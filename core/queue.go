package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// WorkItem is one unit of pool work.
type WorkItem = ResultFunc

// QueuedItem is a work item waiting in a pool queue.
type QueuedItem struct {
	ID   string
	Item WorkItem
}

// =============================================================================
// WorkQueue: FIFO queue of pool items
// =============================================================================

type WorkQueue struct {
	mu    sync.Mutex
	items []QueuedItem
}

func NewWorkQueue() *WorkQueue {
	return &WorkQueue{
		items: make([]QueuedItem, 0, defaultQueueCap),
	}
}

func (q *WorkQueue) Push(id string, item WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, QueuedItem{ID: id, Item: item})
}

func (q *WorkQueue) Pop() (QueuedItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return QueuedItem{}, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = QueuedItem{}
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return item, true
}

// Contains reports whether an item with id is waiting.
func (q *WorkQueue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (q *WorkQueue) MaybeCompact() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maybeCompactLocked()
}

func (q *WorkQueue) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]QueuedItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]QueuedItem, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *WorkQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all items from the queue and releases references
func (q *WorkQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = make([]QueuedItem, 0, defaultQueueCap)
}
