// Package audit provides the append-only audit trail for store operations.
//
// Every operation against the store, reads included, is recorded in a
// single global audit log, independent from the per-scope history. This
// provides accountability and helps teams understand who accessed which
// variables and when. Failed operations are recorded too, with
// outcome=failure and the reason.
//
// # Log Format
//
// The audit log is stored as JSON Lines (one JSON object per line) at:
//
//	<store>/audit/audit.jsonl
//
// Each entry contains:
//   - ID (UUID) and timestamp (RFC3339 with microseconds, UTC)
//   - Actor and action name
//   - Namespace, environment, and resource where applicable
//   - Outcome (success or failure) and action-specific details
//
// Raw variable values never appear in the log. Where a value matters,
// entries carry a truncated SHA-256 hash from HashValue.
//
// # Failure Handling
//
// Append returns errors, but the store treats them as best-effort once a
// mutation has persisted: a full disk should not roll back a completed
// write. Callers that need stronger guarantees can check the error.
//
// # Reading Logs
//
// Query filters by action, actor, scope, outcome, and time range, newest
// first. Export streams matching entries as JSON Lines in chronological
// order. Malformed lines are silently skipped to handle partial writes.
package audit
