package world

import (
	"fmt"
	"sort"
	"sync"
)

// Manager provides thread-safe lookup of loaded locations.
type Manager struct {
	mu        sync.RWMutex
	locations map[string]*Location
}

// NewManager indexes locs by ID.
//
// Postcondition: Returns an error on duplicate location IDs.
func NewManager(locs []*Location) (*Manager, error) {
	m := &Manager{locations: make(map[string]*Location, len(locs))}
	for _, l := range locs {
		if _, exists := m.locations[l.ID]; exists {
			return nil, fmt.Errorf("duplicate location ID: %q", l.ID)
		}
		m.locations[l.ID] = l
	}
	return m, nil
}

// Get returns the location with id.
func (m *Manager) Get(id string) (*Location, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.locations[id]
	return l, ok
}

// All returns every location ordered by tier, then ID.
func (m *Manager) All() []*Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ValidateEnemies checks that every enemy and boss referenced by a location
// resolves through exists.
func (m *Manager) ValidateEnemies(exists func(templateID string) bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.locations {
		for _, e := range l.Enemies {
			if !exists(e) {
				return fmt.Errorf("location %q: unknown enemy template %q", l.ID, e)
			}
		}
		if l.Boss != "" && !exists(l.Boss) {
			return fmt.Errorf("location %q: unknown boss template %q", l.ID, l.Boss)
		}
	}
	return nil
}
