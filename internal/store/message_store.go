package store

import (
	"sync"

	"github.com/iarcanar99/MBB-Dalamud-sub001/domain"
)

// DefaultCapacity is the number of recent events kept in history
const DefaultCapacity = 10

// MessageStore keeps a bounded history of recent events plus a single
// "latest unconsumed" slot for polling consumers.
type MessageStore struct {
	mu        sync.Mutex
	ring      []domain.IngestEvent
	head      int // index of the oldest entry
	count     int
	latest    domain.IngestEvent
	hasLatest bool
}

// NewMessageStore creates a store holding at most capacity events
func NewMessageStore(capacity int) *MessageStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageStore{
		ring: make([]domain.IngestEvent, capacity),
	}
}

// Push appends event to history, evicting the oldest entry when full, and
// makes it the latest event.
func (s *MessageStore) Push(event domain.IngestEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	capacity := len(s.ring)
	if s.count < capacity {
		s.ring[(s.head+s.count)%capacity] = event
		s.count++
	} else {
		s.ring[s.head] = event
		s.head = (s.head + 1) % capacity
	}

	s.latest = event
	s.hasLatest = true
}

// TakeLatest returns and clears the latest event
func (s *MessageStore) TakeLatest() (domain.IngestEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasLatest {
		return domain.IngestEvent{}, false
	}
	event := s.latest
	s.latest = domain.IngestEvent{}
	s.hasLatest = false
	return event, true
}

// PeekLatest returns the latest event without consuming it
func (s *MessageStore) PeekLatest() (domain.IngestEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasLatest
}

// DrainAll returns the history in arrival order and clears the store,
// including the latest slot.
func (s *MessageStore) DrainAll() []domain.IngestEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.snapshotLocked()

	for i := range s.ring {
		s.ring[i] = domain.IngestEvent{}
	}
	s.head = 0
	s.count = 0
	s.latest = domain.IngestEvent{}
	s.hasLatest = false

	return events
}

// Recent returns the history in arrival order without clearing it
func (s *MessageStore) Recent() []domain.IngestEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Len returns the number of events in history
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Capacity returns the maximum history size
func (s *MessageStore) Capacity() int {
	return len(s.ring)
}

func (s *MessageStore) snapshotLocked() []domain.IngestEvent {
	events := make([]domain.IngestEvent, 0, s.count)
	for i := 0; i < s.count; i++ {
		events = append(events, s.ring[(s.head+i)%len(s.ring)])
	}
	return events
}
