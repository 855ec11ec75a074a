package journal

import "sync"

// MemoryStore is a thread-safe in-memory Store. Events are lost on exit.
type MemoryStore struct {
	mu     sync.RWMutex
	order  []string
	events map[string][]Event
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string][]Event)}
}

func (s *MemoryStore) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ConnID]; !ok {
		s.order = append(s.order, ev.ConnID)
	}
	s.events[ev.ConnID] = append(s.events[ev.ConnID], ev)
	return nil
}

func (s *MemoryStore) List(connID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events, ok := s.events[connID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Event(nil), events...), nil
}

func (s *MemoryStore) Connections() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *MemoryStore) Close() error { return nil }
