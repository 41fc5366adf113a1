package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
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

var testScope = vault.Scope{Namespace: "platform", Environment: "production"}

// storeFixture bundles a Store with direct handles on its logs so tests
// can inspect what the operations recorded.
type storeFixture struct {
	store   *Store
	history history.Log
	audit   audit.Log

	// dir is the store root for file-backed fixtures, empty for memory.
	dir string
}

func newFileFixture(t *testing.T) storeFixture {
	t.Helper()

	root := t.TempDir()
	key, err := cipher.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	c := cipher.New(key)

	hist := history.NewFileLog(root, c)
	aud := audit.NewFileLog(root)
	st, err := New(Config{
		Backend:  vault.NewFileBackend(root, c),
		History:  hist,
		Audit:    aud,
		Locks:    lockfile.NewManager(root, 0),
		StoreDir: root,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return storeFixture{store: st, history: hist, audit: aud, dir: root}
}

func newMemFixture(t *testing.T) storeFixture {
	t.Helper()

	hist := history.NewMemLog()
	aud := audit.NewMemLog()
	st, err := New(Config{
		Backend: vault.NewMemBackend(),
		History: hist,
		Audit:   aud,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return storeFixture{store: st, history: hist, audit: aud}
}

// forEachStore runs a subtest against a file-backed and a memory-backed
// store.
func forEachStore(t *testing.T, fn func(t *testing.T, fx storeFixture)) {
	t.Helper()
	t.Run("file", func(t *testing.T) {
		fn(t, newFileFixture(t))
	})
	t.Run("mem", func(t *testing.T) {
		fn(t, newMemFixture(t))
	})
}

func mustSet(t *testing.T, fx storeFixture, key, value string) *SetResult {
	t.Helper()
	result, err := fx.store.Set(context.Background(), SetOptions{
		Scope: testScope,
		Key:   key,
		Value: value,
		Actor: "alice",
	})
	if err != nil {
		t.Fatalf("Set %s failed: %v", key, err)
	}
	return result
}

func queryAudit(t *testing.T, fx storeFixture, filter audit.Filter) []audit.Entry {
	t.Helper()
	entries, err := fx.audit.Query(filter)
	if err != nil {
		t.Fatalf("audit query failed: %v", err)
	}
	return entries
}

func TestNewRequiresCoreParts(t *testing.T) {
	_, err := New(Config{})
	if !errors.Is(err, kerrors.ErrValidation) {
		t.Errorf("Expected ErrValidation for empty config, got %v", err)
	}

	_, err = New(Config{Backend: vault.NewMemBackend()})
	if !errors.Is(err, kerrors.ErrValidation) {
		t.Errorf("Expected ErrValidation without logs, got %v", err)
	}
}

func TestSetAddsNewVariable(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()

		result := mustSet(t, fx, "DATABASE_URL", "postgres://db.internal/app")
		if result.Action != vault.ActionAdd {
			t.Errorf("Expected action add, got %s", result.Action)
		}
		if result.SequenceID != 1 {
			t.Errorf("Expected sequence 1, got %d", result.SequenceID)
		}

		value, err := fx.store.Get(ctx, GetOptions{Scope: testScope, Key: "DATABASE_URL", Actor: "alice"})
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if value != "postgres://db.internal/app" {
			t.Errorf("Expected stored value, got %q", value)
		}
	})
}

func TestSetUpdatesExistingVariable(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		mustSet(t, fx, "DEBUG", "false")
		result := mustSet(t, fx, "DEBUG", "true")

		if result.Action != vault.ActionUpdate {
			t.Errorf("Expected action update, got %s", result.Action)
		}
		if result.SequenceID != 2 {
			t.Errorf("Expected sequence 2, got %d", result.SequenceID)
		}

		vars, err := fx.store.List(context.Background(), ListOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(vars) != 1 || vars["DEBUG"] != "true" {
			t.Errorf("Expected {DEBUG: true}, got %v", vars)
		}
	})
}

func TestSetRejectsInvalidInput(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()

		_, err := fx.store.Set(ctx, SetOptions{Scope: testScope, Key: "bad key", Value: "v", Actor: "alice"})
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Errorf("Expected ErrValidation for bad key, got %v", err)
		}

		_, err = fx.store.Set(ctx, SetOptions{Scope: testScope, Key: "KEY", Value: strings.Repeat("v", vault.MaxValueLength+1), Actor: "alice"})
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Errorf("Expected ErrValidation for oversized value, got %v", err)
		}

		_, err = fx.store.Set(ctx, SetOptions{Scope: vault.Scope{Namespace: "a/b", Environment: "prod"}, Key: "KEY", Value: "v", Actor: "alice"})
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Errorf("Expected ErrValidation for bad scope, got %v", err)
		}

		entries, err := fx.history.List(testScope, 10, 0)
		if err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("Rejected mutations must not create history, got %d entries", len(entries))
		}
	})
}

func TestGetMissingVariable(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		mustSet(t, fx, "PRESENT", "yes")

		_, err := fx.store.Get(context.Background(), GetOptions{Scope: testScope, Key: "ABSENT", Actor: "alice"})
		if !errors.Is(err, kerrors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestListUnwrittenScopeIsEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		vars, err := fx.store.List(context.Background(), ListOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(vars) != 0 {
			t.Errorf("Expected empty set, got %v", vars)
		}
	})
}

func TestDeleteRemovesVariable(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "TEMP_KEY", "temp")

		result, err := fx.store.Delete(ctx, DeleteOptions{Scope: testScope, Key: "TEMP_KEY", Actor: "alice"})
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if result.SequenceID != 2 {
			t.Errorf("Expected sequence 2, got %d", result.SequenceID)
		}

		_, err = fx.store.Get(ctx, GetOptions{Scope: testScope, Key: "TEMP_KEY", Actor: "alice"})
		if !errors.Is(err, kerrors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestDeleteMissingVariable(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		_, err := fx.store.Delete(context.Background(), DeleteOptions{Scope: testScope, Key: "GHOST", Actor: "alice"})
		if !errors.Is(err, kerrors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}

		failures := queryAudit(t, fx, audit.Filter{
			Actions: []vault.Action{vault.ActionDelete},
			Outcome: audit.OutcomeFailure,
		})
		if len(failures) != 1 {
			t.Fatalf("Expected 1 failure audit entry, got %d", len(failures))
		}
		if failures[0].Error == "" {
			t.Error("Expected failure entry to carry the error")
		}
		if failures[0].Resource != "GHOST" {
			t.Errorf("Expected resource GHOST, got %s", failures[0].Resource)
		}
	})
}

func TestBulkReplaceWithVariables(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "KEEP", "old")
		mustSet(t, fx, "DROP", "gone")

		result, err := fx.store.BulkReplace(ctx, BulkReplaceOptions{
			Scope:     testScope,
			Variables: vault.Variables{"KEEP": "new", "FRESH": "added"},
			Actor:     "alice",
		})
		if err != nil {
			t.Fatalf("BulkReplace failed: %v", err)
		}

		if result.Count != 2 {
			t.Errorf("Expected count 2, got %d", result.Count)
		}
		if result.SequenceID != 3 {
			t.Errorf("Expected sequence 3, got %d", result.SequenceID)
		}
		if len(result.Diff.Added) != 1 || len(result.Diff.Removed) != 1 || len(result.Diff.Changed) != 1 {
			t.Errorf("Unexpected diff: %+v", result.Diff)
		}

		vars, err := fx.store.List(ctx, ListOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(vars) != 2 || vars["KEEP"] != "new" || vars["FRESH"] != "added" {
			t.Errorf("Unexpected set after replace: %v", vars)
		}
	})
}

func TestBulkReplaceWithDotenvContent(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		content := []byte("# imported\nAPI_KEY=abc123\nDEBUG=false\n")
		result, err := fx.store.BulkReplace(context.Background(), BulkReplaceOptions{
			Scope:         testScope,
			DotenvContent: content,
			Actor:         "alice",
		})
		if err != nil {
			t.Fatalf("BulkReplace failed: %v", err)
		}
		if result.Count != 2 {
			t.Errorf("Expected 2 variables, got %d", result.Count)
		}

		value, err := fx.store.Get(context.Background(), GetOptions{Scope: testScope, Key: "API_KEY", Actor: "alice"})
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if value != "abc123" {
			t.Errorf("Expected abc123, got %q", value)
		}
	})
}

func TestBulkReplaceRequiresExactlyOneSource(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()

		_, err := fx.store.BulkReplace(ctx, BulkReplaceOptions{Scope: testScope, Actor: "alice"})
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Errorf("Expected ErrValidation with no source, got %v", err)
		}

		_, err = fx.store.BulkReplace(ctx, BulkReplaceOptions{
			Scope:         testScope,
			Variables:     vault.Variables{"A": "1"},
			DotenvContent: []byte("B=2"),
			Actor:         "alice",
		})
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Errorf("Expected ErrValidation with both sources, got %v", err)
		}
	})
}

func TestBulkReplaceValidatesBeforePersisting(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "SURVIVOR", "intact")

		_, err := fx.store.BulkReplace(ctx, BulkReplaceOptions{
			Scope:     testScope,
			Variables: vault.Variables{"OK": "fine", "bad key": "nope"},
			Actor:     "alice",
		})
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Fatalf("Expected ErrValidation, got %v", err)
		}

		vars, err := fx.store.List(ctx, ListOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(vars) != 1 || vars["SURVIVOR"] != "intact" {
			t.Errorf("Failed replace must not change the set, got %v", vars)
		}

		entries, err := fx.history.List(testScope, 10, 0)
		if err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("Failed replace must not append history, got %d entries", len(entries))
		}
	})
}

func TestHistoryRecordsEveryMutation(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "A", "1")
		mustSet(t, fx, "A", "2")
		if _, err := fx.store.Delete(ctx, DeleteOptions{Scope: testScope, Key: "A", Actor: "bob"}); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		entries, err := fx.store.History(ctx, HistoryOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(entries) != 3 {
			t.Fatalf("Expected 3 entries, got %d", len(entries))
		}

		wantActions := []vault.Action{vault.ActionDelete, vault.ActionUpdate, vault.ActionAdd}
		wantSeqs := []int64{3, 2, 1}
		for i, entry := range entries {
			if entry.Action != wantActions[i] {
				t.Errorf("Entry %d: expected action %s, got %s", i, wantActions[i], entry.Action)
			}
			if entry.SequenceID != wantSeqs[i] {
				t.Errorf("Entry %d: expected sequence %d, got %d", i, wantSeqs[i], entry.SequenceID)
			}
			if entry.Snapshot != nil {
				t.Errorf("Entry %d: listings must omit snapshots", i)
			}
		}
		if entries[0].Actor != "bob" {
			t.Errorf("Expected actor bob on the delete, got %s", entries[0].Actor)
		}
	})
}

func TestLatestSnapshotMatchesCurrentSet(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "A", "1")
		mustSet(t, fx, "B", "2")
		if _, err := fx.store.Delete(ctx, DeleteOptions{Scope: testScope, Key: "A", Actor: "alice"}); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		entry, err := fx.store.HistoryEntry(ctx, HistoryEntryOptions{Scope: testScope, SequenceID: 3, Actor: "alice"})
		if err != nil {
			t.Fatalf("HistoryEntry failed: %v", err)
		}

		current, err := fx.store.List(ctx, ListOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}

		if len(entry.Snapshot) != len(current) {
			t.Fatalf("Snapshot has %d keys, current set has %d", len(entry.Snapshot), len(current))
		}
		for key, want := range current {
			if entry.Snapshot[key] != want {
				t.Errorf("Snapshot differs at %s: expected %q, got %q", key, want, entry.Snapshot[key])
			}
		}
	})
}

func TestHistoryDescriptions(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "FIRST", "1")
		if _, err := fx.store.Set(ctx, SetOptions{
			Scope:       testScope,
			Key:         "SECOND",
			Value:       "2",
			Actor:       "alice",
			Description: "Rotate the session secret",
		}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		entries, err := fx.store.History(ctx, HistoryOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if entries[0].Description != "Rotate the session secret" {
			t.Errorf("Expected custom description, got %q", entries[0].Description)
		}
		if entries[1].Description != "Added FIRST" {
			t.Errorf("Expected generated description, got %q", entries[1].Description)
		}
	})
}

func TestDiffVersions(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "A", "1")
		if _, err := fx.store.BulkReplace(ctx, BulkReplaceOptions{
			Scope:     testScope,
			Variables: vault.Variables{"A": "2", "B": "1"},
			Actor:     "alice",
		}); err != nil {
			t.Fatalf("BulkReplace failed: %v", err)
		}

		result, err := fx.store.DiffVersions(ctx, DiffVersionsOptions{Scope: testScope, From: 1, To: 2, Actor: "alice"})
		if err != nil {
			t.Fatalf("DiffVersions failed: %v", err)
		}
		if len(result.Diff.Added) != 1 || result.Diff.Added["B"] != "1" {
			t.Errorf("Expected B added, got %v", result.Diff.Added)
		}
		if change, ok := result.Diff.Changed["A"]; !ok || change.Old != "1" || change.New != "2" {
			t.Errorf("Expected A changed 1 -> 2, got %v", result.Diff.Changed)
		}

		// To zero means the latest version.
		latest, err := fx.store.DiffVersions(ctx, DiffVersionsOptions{Scope: testScope, From: 1, Actor: "alice"})
		if err != nil {
			t.Fatalf("DiffVersions to latest failed: %v", err)
		}
		if latest.To != 2 {
			t.Errorf("Expected To resolved to 2, got %d", latest.To)
		}
	})
}

func TestDiffVersionsMissingVersion(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		mustSet(t, fx, "A", "1")

		_, err := fx.store.DiffVersions(context.Background(), DiffVersionsOptions{Scope: testScope, From: 1, To: 99, Actor: "alice"})
		if !errors.Is(err, kerrors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestRollbackRestoresVersionAsNewEntry(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "CONFIG", "v1")
		mustSet(t, fx, "CONFIG", "v2")
		mustSet(t, fx, "EXTRA", "added-later")

		result, err := fx.store.Rollback(ctx, RollbackOptions{Scope: testScope, TargetSequenceID: 1, Actor: "alice"})
		if err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}

		if result.SequenceID != 4 {
			t.Errorf("Rollback must append, expected sequence 4, got %d", result.SequenceID)
		}

		vars, err := fx.store.List(ctx, ListOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(vars) != 1 || vars["CONFIG"] != "v1" {
			t.Errorf("Expected set restored to version 1, got %v", vars)
		}

		if change, ok := result.Diff.Changed["CONFIG"]; !ok || change.Old != "v2" || change.New != "v1" {
			t.Errorf("Expected CONFIG change v2 -> v1, got %v", result.Diff.Changed)
		}
		if _, ok := result.Diff.Removed["EXTRA"]; !ok {
			t.Errorf("Expected EXTRA removed, got %v", result.Diff.Removed)
		}

		entries, err := fx.store.History(ctx, HistoryOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(entries) != 4 {
			t.Errorf("Expected 4 history entries, got %d", len(entries))
		}
		if entries[0].Action != vault.ActionRollback {
			t.Errorf("Expected rollback action, got %s", entries[0].Action)
		}
		if entries[0].Description != "Rolled back to version 1" {
			t.Errorf("Unexpected description: %q", entries[0].Description)
		}
	})
}

func TestRollbackMissingTarget(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		mustSet(t, fx, "A", "1")

		_, err := fx.store.Rollback(context.Background(), RollbackOptions{Scope: testScope, TargetSequenceID: 42, Actor: "alice"})
		if !errors.Is(err, kerrors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}

		_, err = fx.store.Rollback(context.Background(), RollbackOptions{Scope: testScope, TargetSequenceID: 0, Actor: "alice"})
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Errorf("Expected ErrValidation for target 0, got %v", err)
		}
	})
}

func TestDiffEnvironments(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		production := vault.Scope{Namespace: "platform", Environment: "production"}
		staging := vault.Scope{Namespace: "platform", Environment: "staging"}

		if _, err := fx.store.BulkReplace(ctx, BulkReplaceOptions{
			Scope:     production,
			Variables: vault.Variables{"SHARED": "prod-value", "PROD_ONLY": "1"},
			Actor:     "alice",
		}); err != nil {
			t.Fatalf("BulkReplace production failed: %v", err)
		}
		if _, err := fx.store.BulkReplace(ctx, BulkReplaceOptions{
			Scope:     staging,
			Variables: vault.Variables{"SHARED": "staging-value", "STAGING_ONLY": "1"},
			Actor:     "alice",
		}); err != nil {
			t.Fatalf("BulkReplace staging failed: %v", err)
		}

		result, err := fx.store.DiffEnvironments(ctx, DiffEnvironmentsOptions{
			Namespace:    "platform",
			EnvironmentA: "production",
			EnvironmentB: "staging",
			Actor:        "alice",
		})
		if err != nil {
			t.Fatalf("DiffEnvironments failed: %v", err)
		}

		if _, ok := result.Diff.Added["STAGING_ONLY"]; !ok {
			t.Errorf("Expected STAGING_ONLY added, got %v", result.Diff.Added)
		}
		if _, ok := result.Diff.Removed["PROD_ONLY"]; !ok {
			t.Errorf("Expected PROD_ONLY removed, got %v", result.Diff.Removed)
		}
		if change, ok := result.Diff.Changed["SHARED"]; !ok || change.Old != "prod-value" || change.New != "staging-value" {
			t.Errorf("Expected SHARED changed, got %v", result.Diff.Changed)
		}
	})
}

func TestDiffEnvironmentsSameEnvironment(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		_, err := fx.store.DiffEnvironments(context.Background(), DiffEnvironmentsOptions{
			Namespace:    "platform",
			EnvironmentA: "production",
			EnvironmentB: "production",
			Actor:        "alice",
		})
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})
}

func TestScopesListing(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "A", "1")
		if _, err := fx.store.Set(ctx, SetOptions{
			Scope: vault.Scope{Namespace: "analytics", Environment: "dev"},
			Key:   "B",
			Value: "2",
			Actor: "alice",
		}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		scopes, err := fx.store.Scopes(ctx)
		if err != nil {
			t.Fatalf("Scopes failed: %v", err)
		}
		if len(scopes) != 2 {
			t.Fatalf("Expected 2 scopes, got %d", len(scopes))
		}
		if scopes[0] != (vault.Scope{Namespace: "analytics", Environment: "dev"}) {
			t.Errorf("Expected analytics/dev first, got %s", scopes[0])
		}
	})
}

func TestCompactHistory(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			mustSet(t, fx, "KEY", fmt.Sprintf("v%d", i))
		}

		result, err := fx.store.CompactHistory(ctx, CompactHistoryOptions{Scope: testScope, KeepLast: 2, Actor: "alice"})
		if err != nil {
			t.Fatalf("CompactHistory failed: %v", err)
		}
		if result.Removed != 3 {
			t.Errorf("Expected 3 removed, got %d", result.Removed)
		}

		entries, err := fx.store.History(ctx, HistoryOptions{Scope: testScope, Actor: "alice"})
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("Expected 2 surviving entries, got %d", len(entries))
		}
		if entries[0].SequenceID != 5 || entries[1].SequenceID != 4 {
			t.Errorf("Survivors must keep their sequence IDs, got %d and %d", entries[0].SequenceID, entries[1].SequenceID)
		}

		// Numbering continues past the compaction.
		next := mustSet(t, fx, "KEY", "v6")
		if next.SequenceID != 6 {
			t.Errorf("Expected sequence 6 after compaction, got %d", next.SequenceID)
		}
	})
}

func TestAuditTrailRecordsOperations(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "DB_PASSWORD", "hunter2-super-secret")
		if _, err := fx.store.Get(ctx, GetOptions{Scope: testScope, Key: "DB_PASSWORD", Actor: "bob"}); err != nil {
			t.Fatalf("Get failed: %v", err)
		}

		adds := queryAudit(t, fx, audit.Filter{Actions: []vault.Action{vault.ActionAdd}})
		if len(adds) != 1 {
			t.Fatalf("Expected 1 add entry, got %d", len(adds))
		}
		entry := adds[0]
		if entry.Actor != "alice" {
			t.Errorf("Expected actor alice, got %s", entry.Actor)
		}
		if entry.Namespace != "platform" || entry.Environment != "production" {
			t.Errorf("Unexpected scope on audit entry: %s/%s", entry.Namespace, entry.Environment)
		}
		if entry.Resource != "DB_PASSWORD" {
			t.Errorf("Expected resource DB_PASSWORD, got %s", entry.Resource)
		}
		if entry.Outcome != audit.OutcomeSuccess {
			t.Errorf("Expected success outcome, got %s", entry.Outcome)
		}
		if hash, ok := entry.Details["value_hash"].(string); !ok || hash == "hunter2-super-secret" {
			t.Errorf("Audit must record a hash, not the value: %v", entry.Details)
		}

		reads := queryAudit(t, fx, audit.Filter{Actions: []vault.Action{vault.ActionRead}, Actor: "bob"})
		if len(reads) != 1 {
			t.Errorf("Expected 1 read entry for bob, got %d", len(reads))
		}
	})
}

func TestAuditTrailNeverStoresPlaintext(t *testing.T) {
	fx := newFileFixture(t)
	mustSet(t, fx, "DB_PASSWORD", "hunter2-super-secret")

	raw, err := os.ReadFile(filepath.Join(fx.dir, "audit", "audit.jsonl"))
	if err != nil {
		t.Fatalf("Failed to read audit file: %v", err)
	}
	if strings.Contains(string(raw), "hunter2-super-secret") {
		t.Error("Audit file contains a plaintext value")
	}
}

func TestEmptyActorDefaults(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		if _, err := fx.store.Set(context.Background(), SetOptions{Scope: testScope, Key: "KEY", Value: "v"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		entries, err := fx.history.List(testScope, 1, 0)
		if err != nil {
			t.Fatalf("history list failed: %v", err)
		}
		if entries[0].Actor != "unknown" {
			t.Errorf("Expected actor unknown, got %s", entries[0].Actor)
		}
	})
}

func TestAuditQueryDefaultLimit(t *testing.T) {
	hist := history.NewMemLog()
	aud := audit.NewMemLog()
	st, err := New(Config{
		Backend:         vault.NewMemBackend(),
		History:         hist,
		Audit:           aud,
		AuditQueryLimit: 2,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := st.Set(ctx, SetOptions{Scope: testScope, Key: fmt.Sprintf("KEY_%d", i), Value: "v", Actor: "alice"}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	entries, err := st.AuditQuery(ctx, AuditQueryOptions{})
	if err != nil {
		t.Fatalf("AuditQuery failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected configured limit of 2 entries, got %d", len(entries))
	}
}

func TestAuditExportRecordsItself(t *testing.T) {
	forEachStore(t, func(t *testing.T, fx storeFixture) {
		ctx := context.Background()
		mustSet(t, fx, "A", "1")

		var sb strings.Builder
		result, err := fx.store.AuditExport(ctx, &sb, AuditExportOptions{Actor: "auditor"})
		if err != nil {
			t.Fatalf("AuditExport failed: %v", err)
		}
		if result.Count < 1 {
			t.Errorf("Expected at least 1 exported entry, got %d", result.Count)
		}
		if len(strings.Split(strings.TrimSpace(sb.String()), "\n")) != result.Count {
			t.Errorf("Exported line count does not match result count")
		}

		exports := queryAudit(t, fx, audit.Filter{Actions: []vault.Action{vault.ActionAuditExport}})
		if len(exports) != 1 {
			t.Errorf("Expected the export itself to be audited, got %d entries", len(exports))
		}
		if exports[0].Actor != "auditor" {
			t.Errorf("Expected actor auditor, got %s", exports[0].Actor)
		}
	})
}

func TestLockTimeoutSurfaced(t *testing.T) {
	root := t.TempDir()
	key, err := cipher.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	c := cipher.New(key)

	st, err := New(Config{
		Backend:  vault.NewFileBackend(root, c),
		History:  history.NewFileLog(root, c),
		Audit:    audit.NewFileLog(root),
		Locks:    lockfile.NewManager(root, 200*time.Millisecond),
		StoreDir: root,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	holder := lockfile.NewManager(root, time.Second)
	release, err := holder.Exclusive(context.Background(), testScope.Namespace, testScope.Environment)
	if err != nil {
		t.Fatalf("holder Exclusive failed: %v", err)
	}
	defer release()

	ctx := context.Background()
	_, err = st.Set(ctx, SetOptions{Scope: testScope, Key: "KEY", Value: "v", Actor: "alice"})
	if !errors.Is(err, kerrors.ErrLockTimeout) {
		t.Errorf("Expected ErrLockTimeout on write, got %v", err)
	}

	_, err = st.Get(ctx, GetOptions{Scope: testScope, Key: "KEY", Actor: "alice"})
	if !errors.Is(err, kerrors.ErrLockTimeout) {
		t.Errorf("Expected ErrLockTimeout on read, got %v", err)
	}

	aud := audit.NewFileLog(root)
	failures, err := aud.Query(audit.Filter{Outcome: audit.OutcomeFailure})
	if err != nil {
		t.Fatalf("audit query failed: %v", err)
	}
	if len(failures) != 2 {
		t.Errorf("Expected 2 failure audit entries, got %d", len(failures))
	}
}

func TestOpenWiresFileStore(t *testing.T) {
	dataDir := t.TempDir()
	keyFile := filepath.Join(t.TempDir(), "store.key")

	key, err := cipher.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if err := cipher.WriteKeyFile(keyFile, key); err != nil {
		t.Fatalf("WriteKeyFile failed: %v", err)
	}

	settings := &configs.Settings{
		StoreDir:    dataDir,
		KeyFile:     keyFile,
		LockTimeout: "1s",
	}

	st, err := Open(settings, logger.Logger{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	ctx := context.Background()
	if _, err := st.Set(ctx, SetOptions{Scope: testScope, Key: "KEY", Value: "value", Actor: "alice"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := st.Get(ctx, GetOptions{Scope: testScope, Key: "KEY", Actor: "alice"})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "value" {
		t.Errorf("Expected value, got %q", got)
	}
}

func TestOpenMissingKeyFile(t *testing.T) {
	settings := &configs.Settings{
		StoreDir: t.TempDir(),
		KeyFile:  filepath.Join(t.TempDir(), "missing.key"),
	}

	_, err := Open(settings, logger.Logger{})
	if !errors.Is(err, kerrors.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}
