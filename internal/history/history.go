package history

import (
	"time"

	"github.com/tawa-dev/tawa/internal/vault"
)

// DefaultListLimit caps List results when the caller does not set a limit.
const DefaultListLimit = 50

// TimestampFormat is RFC3339 with microseconds, always UTC.
const TimestampFormat = "2006-01-02T15:04:05.000000Z"

// Entry is one recorded mutation of a variable set.
type Entry struct {
	// SequenceID numbers entries per scope, starting at 1 and increasing
	// strictly by one. Assigned by Append.
	SequenceID int64 `json:"seq"`

	Timestamp   string       `json:"ts"`
	Actor       string       `json:"actor"`
	Action      vault.Action `json:"action"`
	Description string       `json:"description"`

	// Snapshot is the full variable set after the mutation. List omits
	// it; Get and Latest populate it.
	Snapshot vault.Variables `json:"-"`
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

// Log is an append-only record of mutations, one sequence per scope.
//
// Implementations are not required to be safe for concurrent appends on
// the same scope. The store serializes mutations through per-scope locks,
// which is also what makes assigned sequence IDs gapless.
type Log interface {
	// Append records an entry, assigning the next sequence ID for the
	// scope. Any SequenceID already set on the entry is ignored.
	Append(scope vault.Scope, entry Entry) (int64, error)

	// List returns entries most recent first, without snapshots.
	// A limit <= 0 means DefaultListLimit. Offset skips entries from
	// the most recent end.
	List(scope vault.Scope, limit, offset int) ([]Entry, error)

	// Get returns one entry with its snapshot.
	// Returns ErrNotFound if the sequence ID does not exist.
	Get(scope vault.Scope, seq int64) (*Entry, error)

	// Latest returns the most recent entry with its snapshot, or
	// (nil, nil) when the scope has no history.
	Latest(scope vault.Scope) (*Entry, error)

	// Compact drops all but the newest keepLast entries for a scope.
	// Surviving entries keep their sequence IDs. Returns the number of
	// entries removed.
	Compact(scope vault.Scope, keepLast int) (int, error)
}
