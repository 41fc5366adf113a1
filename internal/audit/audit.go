package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/tawa-dev/tawa/internal/vault"
)

// DefaultQueryLimit caps Query results when the caller does not set a limit.
const DefaultQueryLimit = 100

// TimestampFormat is RFC3339 with microseconds, always UTC.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// Outcome values for an Entry.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry represents a single audit log entry. Raw variable values never
// appear in an entry; value details carry truncated SHA-256 hashes instead.
type Entry struct {
	ID        string       `json:"id"`    // UUID assigned on append.
	Timestamp string       `json:"ts"`    // RFC3339 with microseconds.
	Actor     string       `json:"actor"` // Who performed the action.
	Action    vault.Action `json:"op"`    // Action name.
	Outcome   string       `json:"outcome"`

	// Optional fields depending on the action.
	Namespace   string         `json:"namespace,omitempty"`
	Environment string         `json:"environment,omitempty"`
	Resource    string         `json:"resource,omitempty"` // Variable key, or "*" for whole-set actions.
	Error       string         `json:"error,omitempty"`    // Failure reason for outcome=failure.
	Details     map[string]any `json:"details,omitempty"`
}

// Time parses the entry timestamp.
func (e Entry) Time() (time.Time, error) {
	return time.Parse(TimestampFormat, e.Timestamp)
}

// Now formats the current time in the log's timestamp format.
func Now() string {
	return time.Now().UTC().Format(TimestampFormat)
}

// FormatTime renders t in the log's timestamp format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// HashValue returns a truncated SHA-256 hex digest of a variable value,
// safe to record in the audit trail.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	Actions     []vault.Action
	Actor       string
	Namespace   string
	Environment string
	Outcome     string

	// Since and Until bound the entry timestamp. Zero values are open ends.
	Since time.Time
	Until time.Time

	Limit  int
	Offset int
}

// Matches reports whether an entry passes the filter, ignoring Limit and
// Offset.
func (f Filter) Matches(e Entry) bool {
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if e.Action == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Namespace != "" && e.Namespace != f.Namespace {
		return false
	}
	if f.Environment != "" && e.Environment != f.Environment {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		ts, err := e.Time()
		if err != nil {
			// Entries with unreadable timestamps never match a bounded query.
			return false
		}
		if !f.Since.IsZero() && ts.Before(f.Since) {
			return false
		}
		if !f.Until.IsZero() && !ts.Before(f.Until) {
			return false
		}
	}
	return true
}

// Log is an append-only audit trail, independent from history.
//
// Append errors are surfaced so callers can decide what to do with them;
// the store treats them as best-effort after a mutation has persisted.
type Log interface {
	// Append records an entry. A missing ID or Timestamp is filled in.
	Append(entry Entry) error

	// Query returns matching entries most recent first. A filter limit
	// <= 0 means DefaultQueryLimit.
	Query(filter Filter) ([]Entry, error)

	// Export writes matching entries to w as JSON Lines in chronological
	// order, ignoring the filter's Limit and Offset. Returns the number
	// of entries written.
	Export(w io.Writer, filter Filter) (int, error)
}
