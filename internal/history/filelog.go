package history

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tawa-dev/tawa/internal/cipher"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/vault"
)

// historyFileSuffix is the extension of a per-scope history file.
const historyFileSuffix = ".history.jsonl"

// FileLog stores history as JSON Lines at
// <root>/data/<namespace>/<environment>.history.jsonl. Snapshots are
// encrypted inside each line, so the history file leaks no more than the
// variable set file does.
type FileLog struct {
	root   string
	cipher *cipher.Cipher
}

// NewFileLog returns a Log rooted at the given store directory.
func NewFileLog(root string, c *cipher.Cipher) *FileLog {
	return &FileLog{root: root, cipher: c}
}

// fileEntry is the on-disk form of an Entry. The snapshot field holds the
// base64 of the encrypted canonical variable set.
type fileEntry struct {
	SequenceID  int64  `json:"seq"`
	Timestamp   string `json:"ts"`
	Actor       string `json:"actor"`
	Action      string `json:"action"`
	Description string `json:"description"`
	Snapshot    string `json:"snapshot"`
}

// Append encrypts the snapshot, assigns the next sequence ID, and writes
// one line to the scope's history file.
func (l *FileLog) Append(scope vault.Scope, entry Entry) (int64, error) {
	entries, err := l.readFileEntries(scope)
	if err != nil {
		return 0, err
	}

	var maxSeq int64
	for _, fe := range entries {
		if fe.SequenceID > maxSeq {
			maxSeq = fe.SequenceID
		}
	}
	entry.SequenceID = maxSeq + 1

	plaintext, err := entry.Snapshot.Encode()
	if err != nil {
		return 0, err
	}
	sealed, err := l.cipher.Encrypt(plaintext)
	if err != nil {
		return 0, fmt.Errorf("encrypting history snapshot for %s: %w", scope, err)
	}

	line, err := json.Marshal(fileEntry{
		SequenceID:  entry.SequenceID,
		Timestamp:   entry.Timestamp,
		Actor:       entry.Actor,
		Action:      string(entry.Action),
		Description: entry.Description,
		Snapshot:    base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal history entry: %w", err)
	}

	path := l.historyPath(scope)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return 0, fmt.Errorf("failed to create namespace directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to open history for %s: %w", scope, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return 0, fmt.Errorf("failed to append history for %s: %w", scope, err)
	}

	return entry.SequenceID, nil
}

// List returns entries most recent first with snapshots omitted.
// Malformed lines are skipped.
func (l *FileLog) List(scope vault.Scope, limit, offset int) ([]Entry, error) {
	fileEntries, err := l.readFileEntries(scope)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	sort.Slice(fileEntries, func(i, j int) bool {
		return fileEntries[i].SequenceID > fileEntries[j].SequenceID
	})

	if offset >= len(fileEntries) {
		return []Entry{}, nil
	}
	fileEntries = fileEntries[offset:]
	if len(fileEntries) > limit {
		fileEntries = fileEntries[:limit]
	}

	entries := make([]Entry, 0, len(fileEntries))
	for _, fe := range fileEntries {
		entries = append(entries, Entry{
			SequenceID:  fe.SequenceID,
			Timestamp:   fe.Timestamp,
			Actor:       fe.Actor,
			Action:      vault.Action(fe.Action),
			Description: fe.Description,
		})
	}

	return entries, nil
}

// Get returns one entry with its decrypted snapshot.
func (l *FileLog) Get(scope vault.Scope, seq int64) (*Entry, error) {
	fileEntries, err := l.readFileEntries(scope)
	if err != nil {
		return nil, err
	}

	for _, fe := range fileEntries {
		if fe.SequenceID != seq {
			continue
		}
		return l.decode(scope, fe)
	}

	return nil, fmt.Errorf("%w: history entry %d for %s", kerrors.ErrNotFound, seq, scope)
}

// Latest returns the most recent entry with its snapshot, or (nil, nil)
// when the scope has no history.
func (l *FileLog) Latest(scope vault.Scope) (*Entry, error) {
	fileEntries, err := l.readFileEntries(scope)
	if err != nil {
		return nil, err
	}
	if len(fileEntries) == 0 {
		return nil, nil
	}

	latest := fileEntries[0]
	for _, fe := range fileEntries[1:] {
		if fe.SequenceID > latest.SequenceID {
			latest = fe
		}
	}

	return l.decode(scope, latest)
}

// Compact rewrites the history file keeping only the newest keepLast
// entries. Sequence IDs are preserved; malformed lines are dropped.
func (l *FileLog) Compact(scope vault.Scope, keepLast int) (int, error) {
	if keepLast < 1 {
		return 0, fmt.Errorf("%w: compact must keep at least one entry", kerrors.ErrValidation)
	}

	fileEntries, err := l.readFileEntries(scope)
	if err != nil {
		return 0, err
	}
	if len(fileEntries) <= keepLast {
		return 0, nil
	}

	sort.Slice(fileEntries, func(i, j int) bool {
		return fileEntries[i].SequenceID < fileEntries[j].SequenceID
	})
	kept := fileEntries[len(fileEntries)-keepLast:]
	removed := len(fileEntries) - len(kept)

	var buf []byte
	for _, fe := range kept {
		line, err := json.Marshal(fe)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal history entry: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	path := l.historyPath(scope)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf, 0600); err != nil {
		return 0, fmt.Errorf("failed to write compacted history for %s: %w", scope, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to replace history for %s: %w", scope, err)
	}

	return removed, nil
}

func (l *FileLog) decode(scope vault.Scope, fe fileEntry) (*Entry, error) {
	sealed, err := base64.StdEncoding.DecodeString(fe.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: history entry %d for %s has an unreadable snapshot", kerrors.ErrCorruptStore, fe.SequenceID, scope)
	}
	plaintext, err := l.cipher.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypting history snapshot %d for %s: %w", fe.SequenceID, scope, err)
	}
	snapshot, err := vault.DecodeVariables(plaintext)
	if err != nil {
		return nil, err
	}

	return &Entry{
		SequenceID:  fe.SequenceID,
		Timestamp:   fe.Timestamp,
		Actor:       fe.Actor,
		Action:      vault.Action(fe.Action),
		Description: fe.Description,
		Snapshot:    snapshot,
	}, nil
}

// readFileEntries parses the scope's history file. A missing file yields
// no entries. Malformed lines are skipped so one damaged line cannot take
// the whole history down.
func (l *FileLog) readFileEntries(scope vault.Scope) ([]fileEntry, error) {
	data, err := os.ReadFile(l.historyPath(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history for %s: %w", scope, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []fileEntry
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var fe fileEntry
			if err := json.Unmarshal(line, &fe); err != nil {
				// Skip malformed entries.
				continue
			}
			entries = append(entries, fe)
		}
	}

	return entries, nil
}

func (l *FileLog) historyPath(scope vault.Scope) string {
	return filepath.Join(l.root, "data", scope.Namespace, scope.Environment+historyFileSuffix)
}
