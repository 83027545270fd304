package behavior

import (
	"context"
	"sort"
	"sync"
	"time"

	"call-screener/internal/models"
)

// EventStore is the rolling, capped per-caller event log.
// Implementations enforce the TTL and the per-hash cap after every Append.
type EventStore interface {
	Append(ctx context.Context, event models.CallerEvent) error
	// Count returns events for hash at or after since. An empty eventType counts every type.
	Count(ctx context.Context, hash string, eventType models.CallerEventType, since time.Time) (int, error)
	// Events returns events for hash at or after since, oldest first
	Events(ctx context.Context, hash string, since time.Time) ([]models.CallerEvent, error)
	// Purge drops every event older than the retention window
	Purge(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// MemoryEventStore keeps events in process memory
type MemoryEventStore struct {
	mu        sync.Mutex
	events    map[string][]models.CallerEvent
	retention time.Duration
	capacity  int
	now       func() time.Time
}

// NewMemoryEventStore creates an in-memory event store
func NewMemoryEventStore(retention time.Duration, capacity int) *MemoryEventStore {
	return &MemoryEventStore{
		events:    make(map[string][]models.CallerEvent),
		retention: retention,
		capacity:  capacity,
		now:       time.Now,
	}
}

// Append inserts the event then trims by age and per-hash cap
func (s *MemoryEventStore) Append(ctx context.Context, event models.CallerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.events[event.NumberHash]
	i := sort.Search(len(list), func(i int) bool {
		return list[i].OccurredAt.After(event.OccurredAt)
	})
	list = append(list, models.CallerEvent{})
	copy(list[i+1:], list[i:])
	list[i] = event
	s.events[event.NumberHash] = list

	s.purgeLocked()
	s.capLocked(event.NumberHash)
	return nil
}

// Count implements EventStore
func (s *MemoryEventStore) Count(ctx context.Context, hash string, eventType models.CallerEventType, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.events[hash] {
		if e.OccurredAt.Before(since) {
			continue
		}
		if eventType == "" || e.EventType == eventType {
			count++
		}
	}
	return count, nil
}

// Events implements EventStore
func (s *MemoryEventStore) Events(ctx context.Context, hash string, since time.Time) ([]models.CallerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.CallerEvent
	for _, e := range s.events[hash] {
		if !e.OccurredAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Purge implements EventStore
func (s *MemoryEventStore) Purge(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(), nil
}

// Reset implements EventStore
func (s *MemoryEventStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]models.CallerEvent)
	return nil
}

func (s *MemoryEventStore) purgeLocked() int {
	cutoff := s.now().Add(-s.retention)
	removed := 0
	for hash, list := range s.events {
		i := sort.Search(len(list), func(i int) bool {
			return !list[i].OccurredAt.Before(cutoff)
		})
		if i == 0 {
			continue
		}
		removed += i
		if i == len(list) {
			delete(s.events, hash)
			continue
		}
		s.events[hash] = append([]models.CallerEvent(nil), list[i:]...)
	}
	return removed
}

func (s *MemoryEventStore) capLocked(hash string) {
	list := s.events[hash]
	if len(list) <= s.capacity {
		return
	}
	s.events[hash] = append([]models.CallerEvent(nil), list[len(list)-s.capacity:]...)
}
