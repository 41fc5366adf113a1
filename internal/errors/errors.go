package errors

import (
	"errors"
	"fmt"
)

// Lookup errors indicate a requested resource does not exist.
var (
	// ErrNotFound indicates a variable, history entry, or template could not be located.
	ErrNotFound = errors.New("not found")

	// ErrScopeNotFound indicates no variable set exists for the namespace and environment.
	ErrScopeNotFound = errors.New("variable set not found")
)

// Validation errors indicate the caller supplied malformed input.
var (
	// ErrValidation indicates a name or payload failed validation.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownFormat indicates an unsupported export format was requested.
	// It matches ErrValidation under errors.Is.
	ErrUnknownFormat = fmt.Errorf("%w: unknown export format", ErrValidation)

	// ErrInvalidTemplate indicates the template file is malformed or incomplete.
	// It matches ErrValidation under errors.Is.
	ErrInvalidTemplate = fmt.Errorf("%w: invalid template definition", ErrValidation)
)

// Integrity errors indicate stored data could not be authenticated or parsed.
var (
	// ErrIntegrity indicates ciphertext failed authentication, typically a wrong
	// key or tampered data.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrCorruptStore indicates a store file exists but cannot be read as valid data.
	ErrCorruptStore = errors.New("store file is corrupt")
)

// Key errors indicate problems with the encryption key configuration. These are
// fatal at startup.
var (
	// ErrKeyNotFound indicates the encryption key file could not be located.
	ErrKeyNotFound = errors.New("encryption key not found")

	// ErrInvalidKeyLength indicates the encryption key has an unexpected length.
	ErrInvalidKeyLength = errors.New("invalid encryption key length")

	// ErrInvalidKeyEncoding indicates the encryption key is not valid base64.
	ErrInvalidKeyEncoding = errors.New("invalid encryption key encoding")
)

// Concurrency errors indicate contention on a locked resource.
var (
	// ErrLockTimeout indicates a lock could not be acquired within the configured wait.
	ErrLockTimeout = errors.New("timed out waiting for lock")
)

// File errors indicate issues with file discovery or access.
var (
	// ErrFileNotFound indicates a specific file could not be located.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidArchive indicates the backup archive structure is invalid.
	ErrInvalidArchive = errors.New("invalid archive structure")
)
