package store

import (
	"github.com/tawa-dev/tawa/internal/audit"
	"github.com/tawa-dev/tawa/internal/diff"
	"github.com/tawa-dev/tawa/internal/vault"
)

// GetOptions configures a single-variable read.
type GetOptions struct {
	Scope vault.Scope
	Key   string

	// Actor is recorded in the audit trail.
	Actor string
}

// ListOptions configures a whole-set read.
type ListOptions struct {
	Scope vault.Scope
	Actor string
}

// SetOptions configures creating or updating one variable.
type SetOptions struct {
	Scope vault.Scope
	Key   string
	Value string
	Actor string

	// Description overrides the generated history description.
	Description string
}

// SetResult describes a completed set operation.
type SetResult struct {
	Scope vault.Scope
	Key   string

	// Action is add when the key was new, update when it existed.
	Action vault.Action

	// SequenceID is the history version this mutation created.
	SequenceID int64
}

// DeleteOptions configures removing one variable.
type DeleteOptions struct {
	Scope       vault.Scope
	Key         string
	Actor       string
	Description string
}

// DeleteResult describes a completed delete operation.
type DeleteResult struct {
	Scope      vault.Scope
	Key        string
	SequenceID int64
}

// BulkReplaceOptions configures replacing a whole variable set. Exactly
// one of Variables and DotenvContent must be set.
type BulkReplaceOptions struct {
	Scope vault.Scope

	// Variables is the replacement set.
	Variables vault.Variables

	// DotenvContent is dotenv-formatted replacement content, typically a
	// file a user uploaded or exported earlier.
	DotenvContent []byte

	Actor       string
	Description string
}

// BulkReplaceResult describes a completed bulk replace.
type BulkReplaceResult struct {
	Scope      vault.Scope
	Count      int
	SequenceID int64

	// Diff is the change from the previous set to the replacement.
	Diff diff.Diff
}

// HistoryOptions configures a history listing.
type HistoryOptions struct {
	Scope vault.Scope

	// Limit caps the number of entries. Zero means the configured default.
	Limit int

	// Offset skips entries from the most recent end.
	Offset int

	Actor string
}

// HistoryEntryOptions configures fetching one history entry with its
// snapshot.
type HistoryEntryOptions struct {
	Scope      vault.Scope
	SequenceID int64
	Actor      string
}

// DiffVersionsOptions configures comparing two recorded versions.
type DiffVersionsOptions struct {
	Scope vault.Scope

	// From is the older version.
	From int64

	// To is the newer version. Zero means the latest recorded version.
	To int64

	Actor string
}

// DiffVersionsResult describes the change between two versions.
type DiffVersionsResult struct {
	Scope vault.Scope
	From  int64
	To    int64
	Diff  diff.Diff
}

// RollbackOptions configures restoring a recorded version.
type RollbackOptions struct {
	Scope vault.Scope

	// TargetSequenceID is the version to restore.
	TargetSequenceID int64

	Actor       string
	Description string
}

// RollbackResult describes a completed rollback.
type RollbackResult struct {
	Scope            vault.Scope
	TargetSequenceID int64

	// SequenceID is the new history version the rollback created.
	SequenceID int64

	// Diff is the change from the pre-rollback set to the restored one.
	Diff diff.Diff
}

// DiffEnvironmentsOptions configures comparing two environments within
// one namespace.
type DiffEnvironmentsOptions struct {
	Namespace    string
	EnvironmentA string
	EnvironmentB string
	Actor        string
}

// DiffEnvironmentsResult describes the change from environment A to B.
type DiffEnvironmentsResult struct {
	Namespace    string
	EnvironmentA string
	EnvironmentB string
	Diff         diff.Diff
}

// ApplyTemplateOptions configures rendering a named template into a scope.
type ApplyTemplateOptions struct {
	Scope vault.Scope

	// Template is the template name in the templates file.
	Template string

	// TemplatesFile overrides the configured templates file.
	TemplatesFile string

	Actor       string
	Description string
}

// ApplyTemplateResult describes a completed template application.
type ApplyTemplateResult struct {
	Scope    vault.Scope
	Template string

	// GeneratedKeys are the keys that received fresh random values, sorted.
	GeneratedKeys []string

	// Count is the number of variables the template defined.
	Count int

	SequenceID int64

	// Diff is the change the template made to the existing set.
	Diff diff.Diff
}

// ExportOptions configures rendering a variable set for download.
type ExportOptions struct {
	Scope vault.Scope

	// Format is one of FormatEnv, FormatJSON, FormatYAML.
	Format string

	Actor string
}

// ExportResult carries the rendered content and a suggested filename.
type ExportResult struct {
	Scope    vault.Scope
	Format   string
	Filename string
	Count    int
	Content  []byte
}

// AuditQueryOptions configures an audit trail query.
type AuditQueryOptions struct {
	Filter audit.Filter
}

// AuditExportOptions configures streaming the audit trail out.
type AuditExportOptions struct {
	Filter audit.Filter
	Actor  string
}

// AuditExportResult describes a completed audit export.
type AuditExportResult struct {
	Count int
}

// CompactHistoryOptions configures dropping old history entries.
type CompactHistoryOptions struct {
	Scope vault.Scope

	// KeepLast is how many of the newest entries survive.
	KeepLast int

	Actor string
}

// CompactHistoryResult describes a completed compaction.
type CompactHistoryResult struct {
	Scope    vault.Scope
	KeepLast int
	Removed  int
}

// BackupOptions configures archiving the store directory.
type BackupOptions struct {
	// OutputPath is the archive path. Empty means
	// tawa-store-YYYY-MM-DD.tar.gz in the working directory.
	OutputPath string

	Actor string
}

// BackupResult describes a created backup archive.
type BackupResult struct {
	OutputPath string
	FileCount  int
}

// RestoreOptions configures extracting a backup archive into the store.
type RestoreOptions struct {
	ArchivePath string
	Actor       string
}

// RestoreResult describes a completed restore.
type RestoreResult struct {
	ArchivePath string
	FileCount   int
}
