// Package lockfile serializes access to variable sets across processes.
//
// Every variable set has a companion .lock file next to its data file.
// Writers take the lock exclusively, readers share it, and both honor a
// bounded wait. The lock file is separate from the data file so that
// atomic rename of the data file never invalidates a held lock. Locks use
// flock(2)-style advisory locking, so two tawa processes on the same
// machine exclude each other just like two goroutines in one process do.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
)

const (
	// DefaultTimeout bounds how long callers wait for a contended lock.
	DefaultTimeout = 5 * time.Second

	// retryDelay is the poll interval while waiting for a lock.
	retryDelay = 50 * time.Millisecond
)

// Manager hands out per-resource file locks rooted at the store directory.
// Variable set locks live under data/, the audit lock under audit/.
type Manager struct {
	root    string
	timeout time.Duration
}

// NewManager returns a Manager for the given store root. A timeout of
// zero means DefaultTimeout.
func NewManager(root string, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{root: root, timeout: timeout}
}

// Exclusive acquires the writer lock for one variable set. The returned
// release function must be called exactly once, typically via defer.
//
// Returns ErrLockTimeout if the lock is still held by another writer or
// reader when the wait budget expires.
func (m *Manager) Exclusive(ctx context.Context, namespace, environment string) (func(), error) {
	return m.acquire(ctx, m.setLockPath(namespace, environment), true)
}

// Shared acquires the reader lock for one variable set. Multiple readers
// may hold it at once; a writer excludes them all.
func (m *Manager) Shared(ctx context.Context, namespace, environment string) (func(), error) {
	return m.acquire(ctx, m.setLockPath(namespace, environment), false)
}

// Audit acquires the exclusive lock guarding the global audit log.
func (m *Manager) Audit(ctx context.Context) (func(), error) {
	return m.acquire(ctx, filepath.Join(m.root, "audit", "audit.lock"), true)
}

func (m *Manager) setLockPath(namespace, environment string) string {
	return filepath.Join(m.root, "data", namespace, environment+".lock")
}

func (m *Manager) acquire(ctx context.Context, path string, exclusive bool) (func(), error) {
	// The lock file's directory must exist before flock can create it.
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(path)

	waitCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var locked bool
	var err error
	if exclusive {
		locked, err = lock.TryLockContext(waitCtx, retryDelay)
	} else {
		locked, err = lock.TryRLockContext(waitCtx, retryDelay)
	}

	if !locked {
		// A cancelled parent context wins over our own deadline.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("failed to acquire lock on %s: %w", path, err)
		}
		return nil, fmt.Errorf("%w: %s", kerrors.ErrLockTimeout, path)
	}

	return func() {
		// Unlock also closes the underlying file handle.
		_ = lock.Unlock()
	}, nil
}
