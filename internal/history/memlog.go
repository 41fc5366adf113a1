package history

import (
	"fmt"
	"sort"
	"sync"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/vault"
)

// MemLog keeps history in memory. It substitutes for the file log in
// tests and is safe for concurrent use.
type MemLog struct {
	mu      sync.RWMutex
	entries map[vault.Scope][]Entry
}

// NewMemLog returns an empty in-memory Log.
func NewMemLog() *MemLog {
	return &MemLog{entries: make(map[vault.Scope][]Entry)}
}

// Append records an entry, assigning the next sequence ID for the scope.
func (l *MemLog) Append(scope vault.Scope, entry Entry) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var maxSeq int64
	for _, e := range l.entries[scope] {
		if e.SequenceID > maxSeq {
			maxSeq = e.SequenceID
		}
	}
	entry.SequenceID = maxSeq + 1
	entry.Snapshot = entry.Snapshot.Clone()
	l.entries[scope] = append(l.entries[scope], entry)

	return entry.SequenceID, nil
}

// List returns entries most recent first, without snapshots.
func (l *MemLog) List(scope vault.Scope, limit, offset int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	sorted := append([]Entry(nil), l.entries[scope]...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SequenceID > sorted[j].SequenceID
	})

	if offset >= len(sorted) {
		return []Entry{}, nil
	}
	sorted = sorted[offset:]
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	out := make([]Entry, 0, len(sorted))
	for _, e := range sorted {
		e.Snapshot = nil
		out = append(out, e)
	}

	return out, nil
}

// Get returns one entry with a copy of its snapshot.
func (l *MemLog) Get(scope vault.Scope, seq int64) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries[scope] {
		if e.SequenceID == seq {
			e.Snapshot = e.Snapshot.Clone()
			return &e, nil
		}
	}

	return nil, fmt.Errorf("%w: history entry %d for %s", kerrors.ErrNotFound, seq, scope)
}

// Latest returns the most recent entry, or (nil, nil) with no history.
func (l *MemLog) Latest(scope vault.Scope) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.entries[scope]
	if len(entries) == 0 {
		return nil, nil
	}

	latest := entries[0]
	for _, e := range entries[1:] {
		if e.SequenceID > latest.SequenceID {
			latest = e
		}
	}
	latest.Snapshot = latest.Snapshot.Clone()

	return &latest, nil
}

// Compact drops all but the newest keepLast entries for a scope.
func (l *MemLog) Compact(scope vault.Scope, keepLast int) (int, error) {
	if keepLast < 1 {
		return 0, fmt.Errorf("%w: compact must keep at least one entry", kerrors.ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.entries[scope]
	if len(entries) <= keepLast {
		return 0, nil
	}

	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SequenceID < sorted[j].SequenceID
	})
	l.entries[scope] = sorted[len(sorted)-keepLast:]

	return len(entries) - keepLast, nil
}
