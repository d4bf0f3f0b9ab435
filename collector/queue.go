package collector

import "sync"

type entry struct {
	event    Event
	attempts int
}

// queue provides bounded, non-blocking storage for captured events.
// When full, new events are dropped.
type queue struct {
	mu       sync.Mutex
	entries  []entry
	capacity int
	dropped  uint64
}

func newQueue(capacity int) *queue {
	return &queue{
		entries:  make([]entry, 0, capacity),
		capacity: capacity,
	}
}

// TryAdd enqueues without blocking. If full, returns false and increments drop count.
func (q *queue) TryAdd(event Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		q.dropped++
		return false
	}

	q.entries = append(q.entries, entry{event: event})
	return true
}

// PopBatch removes and returns up to n entries from the head.
func (q *queue) PopBatch(n int) []entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 || n <= 0 {
		return nil
	}
	if n > len(q.entries) {
		n = len(q.entries)
	}

	batch := make([]entry, n)
	copy(batch, q.entries[:n])

	remaining := copy(q.entries, q.entries[n:])
	clear(q.entries[remaining:])
	q.entries = q.entries[:remaining]
	return batch
}

// RequeueFront puts a batch back ahead of everything queued, keeping its order.
// If the result would exceed capacity, the newest entries are evicted and
// counted as dropped. It returns the number of evicted entries.
func (q *queue) RequeueFront(batch []entry) int {
	if len(batch) == 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	merged := make([]entry, 0, max(q.capacity, len(batch)+len(q.entries)))
	merged = append(merged, batch...)
	merged = append(merged, q.entries...)

	evicted := 0
	if len(merged) > q.capacity {
		evicted = len(merged) - q.capacity
		clear(merged[q.capacity:])
		merged = merged[:q.capacity]
		q.dropped += uint64(evicted)
	}

	q.entries = merged
	return evicted
}

// Dropped returns the number of events dropped due to the queue being full.
func (q *queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Len returns the current number of queued events.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
