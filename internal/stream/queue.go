package stream

import "sync"

// DefaultQueueCapacity bounds the outbound queue while disconnected.
const DefaultQueueCapacity = 100

// sendQueue is a bounded FIFO of envelopes awaiting transmission. When the
// queue is full the oldest entry is evicted to admit the newest.
type sendQueue struct {
	mu       sync.Mutex
	items    []Envelope
	capacity int
	dropped  uint64
}

func newSendQueue(capacity int) *sendQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &sendQueue{
		items:    make([]Envelope, 0, capacity),
		capacity: capacity,
	}
}

// Push appends env, evicting the oldest entry when the queue is full.
// It reports whether an eviction happened.
func (q *sendQueue) Push(env Envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	evicted := false
	if len(q.items) >= q.capacity {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, env)
	return evicted
}

// Pop removes and returns the oldest entry.
func (q *sendQueue) Pop() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Envelope{}, false
	}
	env := q.items[0]
	copy(q.items, q.items[1:])
	q.items = q.items[:len(q.items)-1]
	return env, true
}

// Len returns the number of queued envelopes.
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many envelopes were evicted since creation.
func (q *sendQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear discards all queued envelopes.
func (q *sendQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}
