package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
)

// TestExportCommand contains integration tests for the `tawa export` command.
func TestExportCommand(t *testing.T) {
	t.Run("ExportEnvToStdout", func(t *testing.T) {
		setupTestStore(t)

		if _, err := runCommand("-n", "payments", "-e", "production", "set", "ZEBRA", "last"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := runCommand("-n", "payments", "-e", "production", "set", "ALPHA", "first"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		output, err := runCommand("-n", "payments", "-e", "production", "export")
		if err != nil {
			t.Errorf("Command failed: %v", err)
		}
		if output != "ALPHA=first\nZEBRA=last\n" {
			t.Errorf("Expected sorted dotenv output, got %q", output)
		}
	})

	t.Run("ExportJSON", func(t *testing.T) {
		setupTestStore(t)

		if _, err := runCommand("-n", "payments", "-e", "production", "set", "ALPHA", "first"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		output, err := runCommand("-n", "payments", "-e", "production", "export", "--format", "json")
		if err != nil {
			t.Errorf("Command failed: %v", err)
		}
		if !strings.Contains(output, `"ALPHA": "first"`) {
			t.Errorf("Expected JSON object output, got %q", output)
		}
	})

	t.Run("ExportYAMLToFile", func(t *testing.T) {
		ts := setupTestStore(t)
		outFile := filepath.Join(filepath.Dir(ts.TemplatesFile), "vars.yaml")

		if _, err := runCommand("-n", "payments", "-e", "production", "set", "ALPHA", "first"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := runCommand("-n", "payments", "-e", "production", "set", "ZEBRA", "last"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		output, err := runCommand("-n", "payments", "-e", "production", "export", "--format", "yaml", "-o", outFile)
		if err != nil {
			t.Errorf("Command failed: %v", err)
		}
		if !strings.Contains(output, "Exported 2 variables") {
			t.Errorf("Expected export confirmation not found in output: %s", output)
		}

		content, err := os.ReadFile(outFile)
		if err != nil {
			t.Fatalf("Failed to read exported file: %v", err)
		}
		if !strings.Contains(string(content), "ALPHA: first") {
			t.Errorf("Expected YAML content in exported file, got %q", string(content))
		}
	})

	t.Run("ExportDefaultFormatAfterOverride", func(t *testing.T) {
		setupTestStore(t)

		if _, err := runCommand("-n", "payments", "-e", "production", "set", "ALPHA", "first"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if _, err := runCommand("-n", "payments", "-e", "production", "export", "--format", "json"); err != nil {
			t.Fatalf("JSON export failed: %v", err)
		}

		output, err := runCommand("-n", "payments", "-e", "production", "export")
		if err != nil {
			t.Errorf("Command failed: %v", err)
		}
		if output != "ALPHA=first\n" {
			t.Errorf("Expected the format flag to reset to env between runs, got %q", output)
		}
	})

	t.Run("ExportUnknownFormat", func(t *testing.T) {
		setupTestStore(t)

		if _, err := runCommand("-n", "payments", "-e", "production", "set", "ALPHA", "first"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		_, err := runCommand("-n", "payments", "-e", "production", "export", "--format", "xml")
		if !errors.Is(err, kerrors.ErrUnknownFormat) {
			t.Errorf("Expected ErrUnknownFormat, got %v", err)
		}
	})

	t.Run("ExportWithoutScope", func(t *testing.T) {
		setupTestStore(t)

		_, err := runCommand("export")
		if !errors.Is(err, kerrors.ErrValidation) {
			t.Errorf("Expected ErrValidation, got %v", err)
		}
	})
}
