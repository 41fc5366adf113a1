package vault

import (
	"sort"
	"sync"
)

// MemBackend keeps variable sets in memory. It substitutes for the file
// backend in tests and is safe for concurrent use.
type MemBackend struct {
	mu   sync.RWMutex
	sets map[Scope]Variables
}

// NewMemBackend returns an empty in-memory Backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{sets: make(map[Scope]Variables)}
}

// Load returns a copy of the stored set, or an empty set for an unknown scope.
func (b *MemBackend) Load(scope Scope) (Variables, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	vars, ok := b.sets[scope]
	if !ok {
		return Variables{}, nil
	}
	return vars.Clone(), nil
}

// Save stores a copy of the set.
func (b *MemBackend) Save(scope Scope, vars Variables) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sets[scope] = vars.Clone()
	return nil
}

// Scopes returns every stored scope, sorted by namespace then environment.
func (b *MemBackend) Scopes() ([]Scope, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	scopes := make([]Scope, 0, len(b.sets))
	for scope := range b.sets {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool {
		if scopes[i].Namespace != scopes[j].Namespace {
			return scopes[i].Namespace < scopes[j].Namespace
		}
		return scopes[i].Environment < scopes[j].Environment
	})

	return scopes, nil
}
