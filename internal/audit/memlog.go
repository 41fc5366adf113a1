package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// MemLog keeps audit entries in memory. It substitutes for the file log
// in tests and is safe for concurrent use.
type MemLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemLog returns an empty in-memory Log.
func NewMemLog() *MemLog {
	return &MemLog{}
}

// Append records an entry, filling in a fresh ID and timestamp when missing.
func (l *MemLog) Append(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)

	return nil
}

// Query returns matching entries most recent first.
func (l *MemLog) Query(filter Filter) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if filter.Matches(l.entries[i]) {
			matched = append(matched, l.entries[i])
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []Entry{}, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// Export writes matching entries to w as JSON Lines in chronological order.
func (l *MemLog) Export(w io.Writer, filter Filter) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	count := 0
	for _, e := range l.entries {
		if !filter.Matches(e) {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return count, fmt.Errorf("failed to marshal audit entry: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return count, fmt.Errorf("failed to write audit entry: %w", err)
		}
		count++
	}

	return count, nil
}
