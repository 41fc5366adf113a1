package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/tawa-dev/tawa/internal/audit"
	"github.com/tawa-dev/tawa/internal/diff"
	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/template"
	"github.com/tawa-dev/tawa/internal/vault"
)

// Set creates or updates one variable.
//
// Returns ErrValidation for a malformed key or oversized value and
// ErrLockTimeout when the scope stays contended past the lock timeout.
func (s *Store) Set(ctx context.Context, opts SetOptions) (*SetResult, error) {
	outcome, seq, err := s.runMutation(ctx, opts.Scope, opts.Actor, vault.ActionUpdate, opts.Key, func(current vault.Variables) (*mutationOutcome, error) {
		if err := vault.ValidateKey(opts.Key); err != nil {
			return nil, err
		}
		if err := vault.ValidateValue(opts.Key, opts.Value); err != nil {
			return nil, err
		}

		action := vault.ActionAdd
		description := fmt.Sprintf("Added %s", opts.Key)
		details := map[string]any{
			"value_hash":   audit.HashValue(opts.Value),
			"value_length": len(opts.Value),
		}
		if previous, exists := current[opts.Key]; exists {
			action = vault.ActionUpdate
			description = fmt.Sprintf("Updated %s", opts.Key)
			details["previous_hash"] = audit.HashValue(previous)
		}
		if opts.Description != "" {
			description = opts.Description
		}

		next := current.Clone()
		next[opts.Key] = opts.Value

		return &mutationOutcome{
			action:      action,
			resource:    opts.Key,
			description: description,
			details:     details,
			vars:        next,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &SetResult{
		Scope:      opts.Scope,
		Key:        opts.Key,
		Action:     outcome.action,
		SequenceID: seq,
	}, nil
}

// Delete removes one variable.
//
// Returns ErrNotFound if the key does not exist in the scope.
func (s *Store) Delete(ctx context.Context, opts DeleteOptions) (*DeleteResult, error) {
	_, seq, err := s.runMutation(ctx, opts.Scope, opts.Actor, vault.ActionDelete, opts.Key, func(current vault.Variables) (*mutationOutcome, error) {
		previous, exists := current[opts.Key]
		if !exists {
			return nil, fmt.Errorf("%w: variable %q in %s", kerrors.ErrNotFound, opts.Key, opts.Scope)
		}

		description := fmt.Sprintf("Deleted %s", opts.Key)
		if opts.Description != "" {
			description = opts.Description
		}

		next := current.Clone()
		delete(next, opts.Key)

		return &mutationOutcome{
			action:      vault.ActionDelete,
			resource:    opts.Key,
			description: description,
			details:     map[string]any{"previous_hash": audit.HashValue(previous)},
			vars:        next,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &DeleteResult{Scope: opts.Scope, Key: opts.Key, SequenceID: seq}, nil
}

// BulkReplace swaps the whole variable set for a new one. The previous
// set survives in history, so a mistaken replace can be rolled back.
//
// Returns ErrValidation when neither or both input forms are given, or
// when any replacement pair fails validation. Nothing persists unless
// the whole replacement set is valid.
func (s *Store) BulkReplace(ctx context.Context, opts BulkReplaceOptions) (*BulkReplaceResult, error) {
	var change diff.Diff
	outcome, seq, err := s.runMutation(ctx, opts.Scope, opts.Actor, vault.ActionBulkReplace, "*", func(current vault.Variables) (*mutationOutcome, error) {
		replacement, err := resolveReplacement(opts)
		if err != nil {
			return nil, err
		}
		if err := replacement.ValidateSet(); err != nil {
			return nil, err
		}

		change = diff.Compare(map[string]string(current), map[string]string(replacement))

		description := fmt.Sprintf("Replaced all variables (%d keys)", len(replacement))
		if opts.Description != "" {
			description = opts.Description
		}

		return &mutationOutcome{
			action:      vault.ActionBulkReplace,
			resource:    "*",
			description: description,
			details: map[string]any{
				"count":   len(replacement),
				"added":   len(change.Added),
				"removed": len(change.Removed),
				"changed": len(change.Changed),
			},
			vars: replacement,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &BulkReplaceResult{
		Scope:      opts.Scope,
		Count:      len(outcome.vars),
		SequenceID: seq,
		Diff:       change,
	}, nil
}

func resolveReplacement(opts BulkReplaceOptions) (vault.Variables, error) {
	switch {
	case opts.Variables != nil && opts.DotenvContent != nil:
		return nil, fmt.Errorf("%w: bulk replace takes variables or dotenv content, not both", kerrors.ErrValidation)
	case opts.Variables != nil:
		return opts.Variables.Clone(), nil
	case opts.DotenvContent != nil:
		return vault.ParseDotenv(opts.DotenvContent), nil
	default:
		return nil, fmt.Errorf("%w: bulk replace requires variables or dotenv content", kerrors.ErrValidation)
	}
}

// Rollback restores a recorded version as a new mutation. The history
// log keeps growing; nothing is rewritten or deleted.
//
// Returns ErrNotFound if the target version does not exist.
func (s *Store) Rollback(ctx context.Context, opts RollbackOptions) (*RollbackResult, error) {
	var change diff.Diff
	_, seq, err := s.runMutation(ctx, opts.Scope, opts.Actor, vault.ActionRollback, "*", func(current vault.Variables) (*mutationOutcome, error) {
		if opts.TargetSequenceID < 1 {
			return nil, fmt.Errorf("%w: rollback target must be a positive version", kerrors.ErrValidation)
		}

		entry, err := s.history.Get(opts.Scope, opts.TargetSequenceID)
		if err != nil {
			return nil, err
		}

		restored := entry.Snapshot.Clone()
		change = diff.Compare(map[string]string(current), map[string]string(restored))

		description := fmt.Sprintf("Rolled back to version %d", opts.TargetSequenceID)
		if opts.Description != "" {
			description = opts.Description
		}

		return &mutationOutcome{
			action:      vault.ActionRollback,
			resource:    "*",
			description: description,
			details: map[string]any{
				"target_seq": opts.TargetSequenceID,
				"added":      len(change.Added),
				"removed":    len(change.Removed),
				"changed":    len(change.Changed),
			},
			vars: restored,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &RollbackResult{
		Scope:            opts.Scope,
		TargetSequenceID: opts.TargetSequenceID,
		SequenceID:       seq,
		Diff:             change,
	}, nil
}

// ApplyTemplate renders a named template and layers it over the scope's
// existing variables. Template values win on conflict; marker values get
// fresh random secrets on every application.
//
// Returns ErrFileNotFound if the templates file is missing, ErrNotFound
// if the template name is not defined, and ErrInvalidTemplate for a
// malformed templates file.
func (s *Store) ApplyTemplate(ctx context.Context, opts ApplyTemplateOptions) (*ApplyTemplateResult, error) {
	var change diff.Diff
	var generated []string

	outcome, seq, err := s.runMutation(ctx, opts.Scope, opts.Actor, vault.ActionTemplateApply, "*", func(current vault.Variables) (*mutationOutcome, error) {
		path := opts.TemplatesFile
		if path == "" {
			path = s.templatesFile
		}

		templates, err := template.LoadFile(path)
		if err != nil {
			return nil, err
		}

		tpl, ok := templates[opts.Template]
		if !ok {
			return nil, fmt.Errorf("%w: template %q in %s", kerrors.ErrNotFound, opts.Template, path)
		}

		rendered, err := template.Render(tpl, s.rand)
		if err != nil {
			return nil, err
		}
		if err := vault.Variables(rendered).ValidateSet(); err != nil {
			return nil, err
		}

		var generatedKeys []string
		for key, value := range tpl.Variables {
			if value == template.Marker {
				generatedKeys = append(generatedKeys, key)
			}
		}
		sort.Strings(generatedKeys)
		generated = generatedKeys

		merged := vault.Variables(template.Merge(map[string]string(current), rendered))
		change = diff.Compare(map[string]string(current), map[string]string(merged))

		description := fmt.Sprintf("Applied template %s", opts.Template)
		if opts.Description != "" {
			description = opts.Description
		}

		return &mutationOutcome{
			action:      vault.ActionTemplateApply,
			resource:    "*",
			description: description,
			details: map[string]any{
				"template":  opts.Template,
				"generated": append([]string(nil), generated...),
				"added":     len(change.Added),
				"changed":   len(change.Changed),
			},
			vars: merged,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &ApplyTemplateResult{
		Scope:         opts.Scope,
		Template:      opts.Template,
		GeneratedKeys: generated,
		Count:         len(outcome.vars),
		SequenceID:    seq,
		Diff:          change,
	}, nil
}

// CompactHistory drops all but the newest KeepLast history entries for a
// scope. Surviving entries keep their version numbers and numbering
// continues from the highest one. The audit trail records the compaction;
// the history log itself does not.
func (s *Store) CompactHistory(ctx context.Context, opts CompactHistoryOptions) (*CompactHistoryResult, error) {
	actor := normalizeActor(opts.Actor)

	if err := opts.Scope.Validate(); err != nil {
		s.recordFailure(opts.Scope, actor, vault.ActionHistoryCompact, "*", err, nil)
		return nil, err
	}

	release, err := s.locks.Exclusive(ctx, opts.Scope.Namespace, opts.Scope.Environment)
	if err != nil {
		s.recordFailure(opts.Scope, actor, vault.ActionHistoryCompact, "*", err, nil)
		return nil, err
	}
	defer release()

	removed, err := s.history.Compact(opts.Scope, opts.KeepLast)
	if err != nil {
		s.recordFailure(opts.Scope, actor, vault.ActionHistoryCompact, "*", err, nil)
		return nil, err
	}

	s.recordSuccess(opts.Scope, actor, vault.ActionHistoryCompact, "*", map[string]any{
		"removed": removed,
		"keep":    opts.KeepLast,
	})
	s.log.Infof("compacted history for %s: removed %d entries", opts.Scope, removed)

	return &CompactHistoryResult{Scope: opts.Scope, KeepLast: opts.KeepLast, Removed: removed}, nil
}
