// Package store is the coordination layer over the vault. Every read and
// mutation of a variable set goes through a Store, which serializes access
// with per-scope locks and records what happened: mutations append to the
// history log and the audit trail, reads to the audit trail only.
package store
