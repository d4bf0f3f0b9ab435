package sink

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStorage keeps the most recent maxEvents events in memory.
type MemStorage struct {
	lock      sync.Mutex
	events    []json.RawMessage
	maxEvents int
}

func NewMemStorage(maxEvents int) *MemStorage {
	if maxEvents <= 0 {
		maxEvents = 1
	}
	return &MemStorage{maxEvents: maxEvents}
}

func (s *MemStorage) Store(_ context.Context, events []json.RawMessage) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.events = append(s.events, events...)
	if overflow := len(s.events) - s.maxEvents; overflow > 0 {
		s.events = append(s.events[:0], s.events[overflow:]...)
	}
	storedEventsMetric.WithLabelValues("memory").Add(float64(len(events)))
	return nil
}

// Count returns how many events are currently retained.
func (s *MemStorage) Count(context.Context) (int64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return int64(len(s.events)), nil
}

// Events returns a copy of the retained events, oldest first.
func (s *MemStorage) Events() []json.RawMessage {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]json.RawMessage(nil), s.events...)
}

func (s *MemStorage) HealthCheck() error {
	return nil
}
