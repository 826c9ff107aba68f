// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for tests and for running without a database file.
//
// Characteristics:
//   - Progress is keyed by owner and puzzle name.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"sync"
)

type memKey struct{ owner, name string }

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.RWMutex
	progress map[memKey]Progress
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{progress: make(map[memKey]Progress)}
}

// Save adds or replaces the owner's progress on a puzzle.
func (m *memory) Save(ctx context.Context, p Progress) error {
	if err := p.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[memKey{p.Owner, p.PuzzleName}] = p.stamp()
	return nil
}

// Get looks up the owner's progress on a puzzle.
func (m *memory) Get(ctx context.Context, owner, name string) (Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.progress[memKey{owner, name}]; ok {
		return p, nil
	}
	return Progress{}, ErrNotFound
}

// List returns the owner's progress, most recently updated first.
func (m *memory) List(ctx context.Context, owner string) ([]Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Progress{}
	for k, p := range m.progress {
		if k.owner == owner {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Claim moves progress from one owner to another. Entries the new owner
// already has are kept and the old owner's copies are dropped.
func (m *memory) Claim(ctx context.Context, from, to string) error {
	if from == "" || to == "" || from == to {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, p := range m.progress {
		if k.owner != from {
			continue
		}
		delete(m.progress, k)
		nk := memKey{to, k.name}
		if _, ok := m.progress[nk]; ok {
			continue
		}
		p.Owner = to
		m.progress[nk] = p
	}
	return nil
}
