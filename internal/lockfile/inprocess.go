package lockfile

import (
	"context"
	"fmt"
	"sync"
	"time"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
)

// inProcessRetryDelay is the poll interval for in-process lock waits.
const inProcessRetryDelay = 5 * time.Millisecond

// InProcess serializes access with plain mutexes instead of lock files.
// It backs memory-only stores and tests. It gives no cross-process
// exclusion; production stores use Manager.
type InProcess struct {
	timeout time.Duration

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
	audit sync.Mutex
}

// NewInProcess returns an in-process lock manager. A timeout of zero
// means DefaultTimeout.
func NewInProcess(timeout time.Duration) *InProcess {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &InProcess{timeout: timeout, locks: make(map[string]*sync.RWMutex)}
}

// Exclusive acquires the writer lock for one variable set.
func (p *InProcess) Exclusive(ctx context.Context, namespace, environment string) (func(), error) {
	lock := p.scopeLock(namespace, environment)
	if err := p.wait(ctx, namespace+"/"+environment, lock.TryLock); err != nil {
		return nil, err
	}
	return lock.Unlock, nil
}

// Shared acquires the reader lock for one variable set.
func (p *InProcess) Shared(ctx context.Context, namespace, environment string) (func(), error) {
	lock := p.scopeLock(namespace, environment)
	if err := p.wait(ctx, namespace+"/"+environment, lock.TryRLock); err != nil {
		return nil, err
	}
	return lock.RUnlock, nil
}

// Audit acquires the exclusive lock guarding the audit log.
func (p *InProcess) Audit(ctx context.Context) (func(), error) {
	if err := p.wait(ctx, "audit", p.audit.TryLock); err != nil {
		return nil, err
	}
	return p.audit.Unlock, nil
}

func (p *InProcess) scopeLock(namespace, environment string) *sync.RWMutex {
	key := namespace + "/" + environment
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.RWMutex{}
		p.locks[key] = lock
	}
	return lock
}

func (p *InProcess) wait(ctx context.Context, name string, try func() bool) error {
	deadline := time.Now().Add(p.timeout)
	for {
		if try() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", kerrors.ErrLockTimeout, name)
		}
		time.Sleep(inProcessRetryDelay)
	}
}
