package domain

import (
	"sort"
	"sync"
)

// SelectionSet holds the seat IDs the local user has picked for the current
// checkout attempt. It is safe for concurrent use because the channel event
// loop and the UI mutate it from different goroutines.
type SelectionSet struct {
	mu    sync.Mutex
	seats map[string]struct{}
}

func NewSelectionSet() *SelectionSet {
	return &SelectionSet{seats: make(map[string]struct{})}
}

func (s *SelectionSet) Add(seatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats[seatID] = struct{}{}
}

// Remove deletes seatID and reports whether it was present.
func (s *SelectionSet) Remove(seatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seats[seatID]
	delete(s.seats, seatID)
	return ok
}

func (s *SelectionSet) Contains(seatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seats[seatID]
	return ok
}

func (s *SelectionSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seats = make(map[string]struct{})
}

func (s *SelectionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seats)
}

// IDs returns the selected seat IDs in a stable order.
func (s *SelectionSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.seats))
	for id := range s.seats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}
