// Package utils provides shared utility functions for the tawa CLI.
//
// This package contains general-purpose helpers used across multiple packages.
// Functions are organized into logical groups:
//
// # System Utilities
//
// Functions for interacting with the operating system:
//   - GetUsername: returns the current system username
//
// # String Utilities
//
// Functions for string manipulation and formatting:
//   - FormatPaths: formats file paths for human-readable output
//
// # I/O Utilities
//
// Functions for reading from stdin and other I/O operations:
//   - ReadStdin: reads all data from standard input
//
// # Terminal Utilities
//
// Functions for terminal detection and interaction:
//   - IsTerminal: checks if stdin is a terminal
//   - ReadPassphrase: prompts for a value with echo disabled
package utils
