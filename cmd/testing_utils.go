// Package cmd contains testing utilities shared between command tests.
// This file provides common functions for pointing the CLI at a throwaway
// store, running commands, and capturing their output.
package cmd

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/tawa-dev/tawa/internal/cipher"
	"github.com/tawa-dev/tawa/internal/configs"
)

// testStore describes the throwaway store a test runs against.
type testStore struct {
	Dir           string
	ConfigPath    string
	KeyFile       string
	TemplatesFile string
}

// setupTestStore points every TAWA_* environment variable at a temp
// directory and writes a fresh encryption key there, so commands under
// test never touch the real user store. t.Setenv restores the
// environment afterwards.
func setupTestStore(t *testing.T) testStore {
	t.Helper()

	tempDir := t.TempDir()
	ts := testStore{
		Dir:           filepath.Join(tempDir, "store"),
		ConfigPath:    filepath.Join(tempDir, "config.toml"),
		KeyFile:       filepath.Join(tempDir, "keys", "store.key"),
		TemplatesFile: filepath.Join(tempDir, "templates.yaml"),
	}

	t.Setenv(configs.EnvConfigFile, ts.ConfigPath)
	t.Setenv(configs.EnvStoreDir, ts.Dir)
	t.Setenv(configs.EnvKeyFile, ts.KeyFile)
	t.Setenv(configs.EnvTemplatesFile, ts.TemplatesFile)
	t.Setenv("TAWA_ACTOR", "testuser")

	key, err := cipher.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate test key: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(ts.KeyFile), 0700); err != nil {
		t.Fatalf("Failed to create key directory: %v", err)
	}
	if err := cipher.WriteKeyFile(ts.KeyFile, key); err != nil {
		t.Fatalf("Failed to write test key: %v", err)
	}

	t.Cleanup(ResetGlobalState)
	return ts
}

// setupUninitializedStore is setupTestStore without the key file, for
// exercising the paths a fresh machine hits.
func setupUninitializedStore(t *testing.T) testStore {
	t.Helper()

	tempDir := t.TempDir()
	ts := testStore{
		Dir:           filepath.Join(tempDir, "store"),
		ConfigPath:    filepath.Join(tempDir, "config.toml"),
		KeyFile:       filepath.Join(tempDir, "keys", "store.key"),
		TemplatesFile: filepath.Join(tempDir, "templates.yaml"),
	}

	t.Setenv(configs.EnvConfigFile, ts.ConfigPath)
	t.Setenv(configs.EnvStoreDir, ts.Dir)
	t.Setenv(configs.EnvKeyFile, ts.KeyFile)
	t.Setenv(configs.EnvTemplatesFile, ts.TemplatesFile)
	t.Setenv("TAWA_ACTOR", "testuser")

	t.Cleanup(ResetGlobalState)
	return ts
}

// runCommand resets global command state, then executes the CLI with the
// given arguments, capturing everything written to stdout and stderr.
func runCommand(args ...string) (string, error) {
	ResetGlobalState()
	RootCmd.SetArgs(args)
	return captureOutput(func() error {
		return RootCmd.Execute()
	})
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	// Save original stdout and stderr
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	// Create pipes to capture output
	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	// Replace stdout and stderr
	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	// Channel to collect output
	outputChan := make(chan string, 2)

	// Start goroutines to read from pipes
	go func() {
		var buf bytes.Buffer
		_, err := io.Copy(&buf, stdoutReader)
		if err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}()

	go func() {
		var buf bytes.Buffer
		_, err := io.Copy(&buf, stderrReader)
		if err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}()

	// Execute the function
	err := fn()

	// Close writers to signal EOF
	stdoutWriter.Close()
	stderrWriter.Close()

	// Restore original stdout and stderr
	os.Stdout = originalStdout
	os.Stderr = originalStderr

	// Collect output
	stdout := <-outputChan
	stderr := <-outputChan

	return stdout + stderr, err
}
