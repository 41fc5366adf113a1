package vault

// Backend persists variable sets. The file-backed implementation is the
// production path; the in-memory one backs tests that don't need a disk.
//
// Implementations are not required to be safe for concurrent use on the
// same scope. The store serializes access through per-scope locks before
// touching a backend.
type Backend interface {
	// Load returns the current set for a scope. A scope that has never
	// been written loads as an empty set, not an error.
	Load(scope Scope) (Variables, error)

	// Save replaces the set for a scope. The write is atomic: a reader
	// never observes a partially written set.
	Save(scope Scope, vars Variables) error

	// Scopes enumerates every scope that currently has a stored set,
	// sorted by namespace then environment.
	Scopes() ([]Scope, error)
}
