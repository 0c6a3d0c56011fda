package descriptor

import "sync"

// Store is the ordered, append-only collection of registered descriptors.
// Registration order is preserved and is the tie-breaker every derived
// artifact (graph, load order) uses, so repeated resolution over an unchanged
// store is reproducible.
type Store struct {
	mu      sync.RWMutex
	byName  map[string]int
	ordered []Descriptor
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byName: make(map[string]int),
	}
}

// Register adds a descriptor to the store. It returns a *DuplicateNameError
// if the name is already taken; the store is unchanged in that case.
func (s *Store) Register(d Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[d.Name]; ok {
		return &DuplicateNameError{Name: d.Name}
	}

	s.byName[d.Name] = len(s.ordered)
	s.ordered = append(s.ordered, d.clone())
	return nil
}

// Get returns the descriptor registered under name, or a *NotFoundError.
func (s *Store) Get(name string) (Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byName[name]
	if !ok {
		return Descriptor{}, &NotFoundError{Name: name}
	}
	return s.ordered[idx].clone(), nil
}

// All returns every registered descriptor in registration order.
func (s *Store) All() []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Descriptor, len(s.ordered))
	for i, d := range s.ordered {
		out[i] = d.clone()
	}
	return out
}

// Len returns the number of registered descriptors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}
