// Package errors provides typed error values for the Tawa store.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. This makes
// error handling more robust and refactoring-safe.
//
// # Error Categories
//
// Errors are grouped by category:
//
//   - Lookup errors: Requested resource missing (ErrNotFound, ErrScopeNotFound)
//   - Validation errors: Malformed input (ErrValidation, ErrUnknownFormat)
//   - Integrity errors: Undecryptable or corrupt data (ErrIntegrity, ErrCorruptStore)
//   - Key errors: Encryption key misconfiguration, fatal at startup (ErrKeyNotFound)
//   - Concurrency errors: Lock contention (ErrLockTimeout)
//
// # Usage
//
// Return errors from internal packages:
//
//	if !keyPattern.MatchString(key) {
//	    return fmt.Errorf("%w: invalid key name %q", errors.ErrValidation, key)
//	}
//
// Handle errors in the CLI layer:
//
//	result, err := store.Set(ctx, opts)
//	if errors.Is(err, terrors.ErrLockTimeout) {
//	    // Show user-friendly message
//	}
package errors
