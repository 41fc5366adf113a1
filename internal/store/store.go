package store

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tawa-dev/tawa/internal/audit"
	"github.com/tawa-dev/tawa/internal/cipher"
	"github.com/tawa-dev/tawa/internal/configs"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/history"
	"github.com/tawa-dev/tawa/internal/lockfile"
	logger "github.com/tawa-dev/tawa/internal/logging"
	"github.com/tawa-dev/tawa/internal/vault"
)

// defaultActor labels history and audit entries when the caller does not
// say who is acting. The CLI always resolves a real actor name first.
const defaultActor = "unknown"

// Locker serializes store access. Manager from the lockfile package
// implements it with advisory file locks for cross-process safety;
// InProcess backs memory-only stores.
type Locker interface {
	Exclusive(ctx context.Context, namespace, environment string) (func(), error)
	Shared(ctx context.Context, namespace, environment string) (func(), error)
	Audit(ctx context.Context) (func(), error)
}

// Config assembles a Store from its parts. Backend, History, and Audit
// are required; everything else has a sensible default.
type Config struct {
	Backend vault.Backend
	History history.Log
	Audit   audit.Log

	// Locks serializes access across processes. Nil means in-process
	// locking only, which is enough for memory-backed stores.
	Locks Locker

	// StoreDir is the store root on disk. Backup and Restore need it;
	// leave it empty for memory-backed stores.
	StoreDir string

	// TemplatesFile is the default templates file for ApplyTemplate.
	TemplatesFile string

	// Rand is the randomness source for generated template values.
	// Nil means crypto/rand.
	Rand io.Reader

	// Now is the clock for history and audit timestamps. Nil means time.Now.
	Now func() time.Time

	Logger logger.Logger

	// HistoryListLimit and AuditQueryLimit override the default page
	// sizes. Zero keeps the package defaults.
	HistoryListLimit int
	AuditQueryLimit  int
}

// Store coordinates all operations on variable sets.
type Store struct {
	backend vault.Backend
	history history.Log
	audit   audit.Log
	locks   Locker

	storeDir      string
	templatesFile string
	rand          io.Reader
	now           func() time.Time
	log           logger.Logger

	historyLimit int
	auditLimit   int
}

// New builds a Store from cfg.
//
// Returns ErrValidation when a required part is missing.
func New(cfg Config) (*Store, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("%w: store requires a backend", kerrors.ErrValidation)
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("%w: store requires a history log", kerrors.ErrValidation)
	}
	if cfg.Audit == nil {
		return nil, fmt.Errorf("%w: store requires an audit log", kerrors.ErrValidation)
	}

	locks := cfg.Locks
	if locks == nil {
		locks = lockfile.NewInProcess(0)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	historyLimit := cfg.HistoryListLimit
	if historyLimit <= 0 {
		historyLimit = history.DefaultListLimit
	}
	auditLimit := cfg.AuditQueryLimit
	if auditLimit <= 0 {
		auditLimit = audit.DefaultQueryLimit
	}

	return &Store{
		backend:       cfg.Backend,
		history:       cfg.History,
		audit:         cfg.Audit,
		locks:         locks,
		storeDir:      cfg.StoreDir,
		templatesFile: cfg.TemplatesFile,
		rand:          cfg.Rand,
		now:           now,
		log:           cfg.Logger,
		historyLimit:  historyLimit,
		auditLimit:    auditLimit,
	}, nil
}

// Open wires a file-backed Store from settings: the key file, the
// encrypted backend, the history and audit logs, and cross-process locks,
// all rooted at the configured store directory.
//
// Returns ErrKeyNotFound if the key file does not exist yet.
func Open(settings *configs.Settings, log logger.Logger) (*Store, error) {
	c, err := cipher.ReadKeyFile(settings.KeyFile)
	if err != nil {
		return nil, err
	}

	timeout, err := settings.LockTimeoutDuration()
	if err != nil {
		return nil, err
	}

	return New(Config{
		Backend:          vault.NewFileBackend(settings.StoreDir, c),
		History:          history.NewFileLog(settings.StoreDir, c),
		Audit:            audit.NewFileLog(settings.StoreDir),
		Locks:            lockfile.NewManager(settings.StoreDir, timeout),
		StoreDir:         settings.StoreDir,
		TemplatesFile:    settings.TemplatesFile,
		Logger:           log,
		HistoryListLimit: settings.HistoryListLimit,
		AuditQueryLimit:  settings.AuditQueryLimit,
	})
}

// mutationOutcome is what a mutation's compute step produces: the new set
// to persist plus how to describe the change in history and audit.
type mutationOutcome struct {
	action      vault.Action
	resource    string
	description string
	details     map[string]any
	vars        vault.Variables
}

// runMutation is the write pipeline shared by every mutation: validate
// the scope, take the exclusive lock, load, compute, persist, append
// history, record the audit entry. The audit append is best-effort. A
// history append failure fails the operation even though the new set has
// already persisted; the next successful mutation snapshots it.
func (s *Store) runMutation(ctx context.Context, scope vault.Scope, actor string, intended vault.Action, resource string, compute func(current vault.Variables) (*mutationOutcome, error)) (*mutationOutcome, int64, error) {
	actor = normalizeActor(actor)

	if err := scope.Validate(); err != nil {
		s.recordFailure(scope, actor, intended, resource, err, nil)
		return nil, 0, err
	}

	release, err := s.locks.Exclusive(ctx, scope.Namespace, scope.Environment)
	if err != nil {
		s.recordFailure(scope, actor, intended, resource, err, nil)
		return nil, 0, err
	}
	defer release()

	current, err := s.backend.Load(scope)
	if err != nil {
		s.recordFailure(scope, actor, intended, resource, err, nil)
		return nil, 0, err
	}

	outcome, err := compute(current)
	if err != nil {
		s.recordFailure(scope, actor, intended, resource, err, nil)
		return nil, 0, err
	}

	if err := s.backend.Save(scope, outcome.vars); err != nil {
		s.recordFailure(scope, actor, outcome.action, outcome.resource, err, outcome.details)
		return nil, 0, err
	}

	seq, err := s.history.Append(scope, history.Entry{
		Timestamp:   history.FormatTime(s.now()),
		Actor:       actor,
		Action:      outcome.action,
		Description: outcome.description,
		Snapshot:    outcome.vars,
	})
	if err != nil {
		err = fmt.Errorf("recording history for %s: %w", scope, err)
		s.recordFailure(scope, actor, outcome.action, outcome.resource, err, outcome.details)
		return nil, 0, err
	}

	details := outcome.details
	if details == nil {
		details = map[string]any{}
	}
	details["seq"] = seq
	s.recordSuccess(scope, actor, outcome.action, outcome.resource, details)

	s.log.Debugf("%s on %s by %s recorded as version %d", outcome.action, scope, actor, seq)
	return outcome, seq, nil
}

// runRead is the read pipeline: validate the scope, take the shared lock,
// run fn, record the audit entry. fn returns the detail fields for the
// success entry.
func (s *Store) runRead(ctx context.Context, scope vault.Scope, actor string, action vault.Action, resource string, fn func() (map[string]any, error)) error {
	actor = normalizeActor(actor)

	if err := scope.Validate(); err != nil {
		s.recordFailure(scope, actor, action, resource, err, nil)
		return err
	}

	release, err := s.locks.Shared(ctx, scope.Namespace, scope.Environment)
	if err != nil {
		s.recordFailure(scope, actor, action, resource, err, nil)
		return err
	}
	defer release()

	details, err := fn()
	if err != nil {
		s.recordFailure(scope, actor, action, resource, err, nil)
		return err
	}

	s.recordSuccess(scope, actor, action, resource, details)
	return nil
}

func (s *Store) recordSuccess(scope vault.Scope, actor string, action vault.Action, resource string, details map[string]any) {
	s.appendAudit(audit.Entry{
		Actor:       actor,
		Action:      action,
		Outcome:     audit.OutcomeSuccess,
		Namespace:   scope.Namespace,
		Environment: scope.Environment,
		Resource:    resource,
		Details:     details,
	})
}

func (s *Store) recordFailure(scope vault.Scope, actor string, action vault.Action, resource string, opErr error, details map[string]any) {
	s.appendAudit(audit.Entry{
		Actor:       actor,
		Action:      action,
		Outcome:     audit.OutcomeFailure,
		Namespace:   scope.Namespace,
		Environment: scope.Environment,
		Resource:    resource,
		Error:       opErr.Error(),
		Details:     details,
	})
}

// appendAudit records an entry without letting audit trouble fail the
// operation that produced it.
func (s *Store) appendAudit(entry audit.Entry) {
	entry.Timestamp = audit.FormatTime(s.now())
	if err := s.audit.Append(entry); err != nil {
		s.log.Warnf("failed to record audit entry for %s: %v", entry.Action, err)
	}
}

func normalizeActor(actor string) string {
	if strings.TrimSpace(actor) == "" {
		return defaultActor
	}
	return actor
}
