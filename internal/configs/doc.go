// Package configs manages store configuration for Tawa.
//
// Configuration is stored in TOML format at <user config dir>/tawa/config.toml
// (TAWA_CONFIG overrides the location). The file records where the store
// lives, where the encryption key file lives, the lock wait budget, and
// default paging limits.
//
// # Resolution Order
//
// LoadSettings builds the effective settings in three layers, later layers
// winning:
//
//  1. Built-in defaults under the XDG data directory
//  2. The config file, when present
//  3. Environment variables (TAWA_STORE_DIR, TAWA_KEY_FILE, TAWA_LOCK_TIMEOUT)
//
// A missing config file is not an error; first use works with defaults
// alone once a key exists.
//
// # No Globals
//
// Settings are loaded once at startup and passed explicitly to the store
// constructor. Nothing in this package holds mutable package-level state,
// which keeps tests free of save-and-restore choreography.
package configs
