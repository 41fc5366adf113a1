package store

import (
	"context"
	"fmt"
	"io"

	"github.com/tawa-dev/tawa/internal/audit"
	"github.com/tawa-dev/tawa/internal/diff"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/history"
	"github.com/tawa-dev/tawa/internal/vault"
)

// Get returns the value of one variable.
//
// Returns ErrNotFound if the key does not exist in the scope.
func (s *Store) Get(ctx context.Context, opts GetOptions) (string, error) {
	var value string
	err := s.runRead(ctx, opts.Scope, opts.Actor, vault.ActionRead, opts.Key, func() (map[string]any, error) {
		vars, err := s.backend.Load(opts.Scope)
		if err != nil {
			return nil, err
		}

		v, ok := vars[opts.Key]
		if !ok {
			return nil, fmt.Errorf("%w: variable %q in %s", kerrors.ErrNotFound, opts.Key, opts.Scope)
		}
		value = v
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// List returns the whole variable set for a scope. A scope that has
// never been written lists as empty.
func (s *Store) List(ctx context.Context, opts ListOptions) (vault.Variables, error) {
	var vars vault.Variables
	err := s.runRead(ctx, opts.Scope, opts.Actor, vault.ActionList, "*", func() (map[string]any, error) {
		loaded, err := s.backend.Load(opts.Scope)
		if err != nil {
			return nil, err
		}
		vars = loaded
		return map[string]any{"count": len(loaded)}, nil
	})
	if err != nil {
		return nil, err
	}
	return vars, nil
}

// History lists recorded versions for a scope, most recent first. The
// entries carry no snapshots; HistoryEntry fetches one with its snapshot.
func (s *Store) History(ctx context.Context, opts HistoryOptions) ([]history.Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = s.historyLimit
	}

	var entries []history.Entry
	err := s.runRead(ctx, opts.Scope, opts.Actor, vault.ActionHistoryRead, "*", func() (map[string]any, error) {
		listed, err := s.history.List(opts.Scope, limit, opts.Offset)
		if err != nil {
			return nil, err
		}
		entries = listed
		return map[string]any{"count": len(listed)}, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// HistoryEntry returns one recorded version with its full snapshot.
//
// Returns ErrNotFound if the version does not exist.
func (s *Store) HistoryEntry(ctx context.Context, opts HistoryEntryOptions) (*history.Entry, error) {
	var entry *history.Entry
	err := s.runRead(ctx, opts.Scope, opts.Actor, vault.ActionHistoryRead, "*", func() (map[string]any, error) {
		found, err := s.history.Get(opts.Scope, opts.SequenceID)
		if err != nil {
			return nil, err
		}
		entry = found
		return map[string]any{"seq": opts.SequenceID}, nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DiffVersions compares two recorded versions of one scope.
//
// Returns ErrNotFound if either version does not exist.
func (s *Store) DiffVersions(ctx context.Context, opts DiffVersionsOptions) (*DiffVersionsResult, error) {
	result := &DiffVersionsResult{Scope: opts.Scope, From: opts.From, To: opts.To}
	err := s.runRead(ctx, opts.Scope, opts.Actor, vault.ActionDiffRead, "*", func() (map[string]any, error) {
		if opts.From < 1 {
			return nil, fmt.Errorf("%w: diff requires a from version", kerrors.ErrValidation)
		}

		fromEntry, err := s.history.Get(opts.Scope, opts.From)
		if err != nil {
			return nil, err
		}

		var toSnapshot vault.Variables
		if opts.To == 0 {
			latest, err := s.history.Latest(opts.Scope)
			if err != nil {
				return nil, err
			}
			if latest == nil {
				return nil, fmt.Errorf("%w: no history for %s", kerrors.ErrNotFound, opts.Scope)
			}
			result.To = latest.SequenceID
			toSnapshot = latest.Snapshot
		} else {
			toEntry, err := s.history.Get(opts.Scope, opts.To)
			if err != nil {
				return nil, err
			}
			toSnapshot = toEntry.Snapshot
		}

		result.Diff = diff.Compare(map[string]string(fromEntry.Snapshot), map[string]string(toSnapshot))
		return map[string]any{
			"from":    result.From,
			"to":      result.To,
			"changes": result.Diff.Count(),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DiffEnvironments compares the current variable sets of two environments
// in the same namespace. The diff reads A as before and B as after: a key
// only in B is added, a key only in A is removed.
func (s *Store) DiffEnvironments(ctx context.Context, opts DiffEnvironmentsOptions) (*DiffEnvironmentsResult, error) {
	actor := normalizeActor(opts.Actor)
	scopeA := vault.Scope{Namespace: opts.Namespace, Environment: opts.EnvironmentA}
	scopeB := vault.Scope{Namespace: opts.Namespace, Environment: opts.EnvironmentB}
	auditScope := vault.Scope{Namespace: opts.Namespace}
	auditDetails := map[string]any{
		"environment_a": opts.EnvironmentA,
		"environment_b": opts.EnvironmentB,
	}

	fail := func(err error) (*DiffEnvironmentsResult, error) {
		s.recordFailure(auditScope, actor, vault.ActionDiffRead, "*", err, auditDetails)
		return nil, err
	}

	if err := scopeA.Validate(); err != nil {
		return fail(err)
	}
	if err := scopeB.Validate(); err != nil {
		return fail(err)
	}
	if opts.EnvironmentA == opts.EnvironmentB {
		return fail(fmt.Errorf("%w: environments to compare must differ", kerrors.ErrValidation))
	}

	// Both shared locks, always in sorted order.
	first, second := scopeA, scopeB
	if second.Environment < first.Environment {
		first, second = second, first
	}

	releaseFirst, err := s.locks.Shared(ctx, first.Namespace, first.Environment)
	if err != nil {
		return fail(err)
	}
	defer releaseFirst()

	releaseSecond, err := s.locks.Shared(ctx, second.Namespace, second.Environment)
	if err != nil {
		return fail(err)
	}
	defer releaseSecond()

	varsA, err := s.backend.Load(scopeA)
	if err != nil {
		return fail(err)
	}
	varsB, err := s.backend.Load(scopeB)
	if err != nil {
		return fail(err)
	}

	change := diff.Compare(map[string]string(varsA), map[string]string(varsB))

	successDetails := map[string]any{
		"environment_a": opts.EnvironmentA,
		"environment_b": opts.EnvironmentB,
		"changes":       change.Count(),
	}
	s.recordSuccess(auditScope, actor, vault.ActionDiffRead, "*", successDetails)

	return &DiffEnvironmentsResult{
		Namespace:    opts.Namespace,
		EnvironmentA: opts.EnvironmentA,
		EnvironmentB: opts.EnvironmentB,
		Diff:         change,
	}, nil
}

// Scopes lists every stored scope, sorted by namespace then environment.
// The listing takes no locks and is not audited.
func (s *Store) Scopes(ctx context.Context) ([]vault.Scope, error) {
	return s.backend.Scopes()
}

// AuditQuery returns audit entries matching the filter, most recent
// first. Queries are not themselves audited.
func (s *Store) AuditQuery(ctx context.Context, opts AuditQueryOptions) ([]audit.Entry, error) {
	filter := opts.Filter
	if filter.Limit <= 0 {
		filter.Limit = s.auditLimit
	}
	return s.audit.Query(filter)
}

// AuditExport streams matching audit entries to w as JSON Lines in
// chronological order. The export itself is recorded in the trail. The
// audit lock is held while streaming so the export sees a stable file.
func (s *Store) AuditExport(ctx context.Context, w io.Writer, opts AuditExportOptions) (*AuditExportResult, error) {
	actor := normalizeActor(opts.Actor)

	release, err := s.locks.Audit(ctx)
	if err != nil {
		s.recordFailure(vault.Scope{}, actor, vault.ActionAuditExport, "*", err, nil)
		return nil, err
	}
	defer release()

	count, err := s.audit.Export(w, opts.Filter)
	if err != nil {
		s.recordFailure(vault.Scope{}, actor, vault.ActionAuditExport, "*", err, nil)
		return nil, err
	}

	s.recordSuccess(vault.Scope{}, actor, vault.ActionAuditExport, "*", map[string]any{"count": count})
	return &AuditExportResult{Count: count}, nil
}
