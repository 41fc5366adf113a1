package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileLog appends audit entries to <root>/audit/audit.jsonl.
type FileLog struct {
	root string
}

// NewFileLog returns a Log rooted at the given store directory.
func NewFileLog(root string) *FileLog {
	return &FileLog{root: root}
}

// Path returns the location of the audit log file.
func (l *FileLog) Path() string {
	return filepath.Join(l.root, "audit", "audit.jsonl")
}

// Append writes one entry as a JSON line, filling in a fresh ID and the
// current timestamp when they are missing.
func (l *FileLog) Append(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = Now()
	}

	path := l.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// Query returns matching entries most recent first.
func (l *FileLog) Query(filter Filter) ([]Entry, error) {
	entries, err := l.readEntries()
	if err != nil {
		return nil, err
	}

	var matched []Entry
	for _, e := range entries {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}

	// Entries are appended chronologically; reverse for newest first.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
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
func (l *FileLog) Export(w io.Writer, filter Filter) (int, error) {
	entries, err := l.readEntries()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, e := range entries {
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

// readEntries reads all entries from the audit log file.
// Returns an empty slice if the log doesn't exist.
func (l *FileLog) readEntries() ([]Entry, error) {
	data, err := os.ReadFile(l.Path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				// Skip malformed entries.
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
