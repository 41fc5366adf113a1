package configs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadTOML(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "test.toml")

	originalData := Settings{
		StoreDir:         "/var/lib/tawa",
		KeyFile:          "/etc/tawa/store.key",
		LockTimeout:      "3s",
		HistoryListLimit: 10,
	}

	err := SaveTOML(testFile, originalData)
	if err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	loadedData := Settings{}
	err = LoadTOML(testFile, &loadedData)
	if err != nil {
		t.Fatalf("LoadTOML failed: %v", err)
	}

	if loadedData != originalData {
		t.Errorf("Expected %+v, got %+v", originalData, loadedData)
	}
}

func TestLoadTOMLNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "nonexistent.toml")

	data := Settings{}
	err := LoadTOML(testFile, &data)
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
}

func TestSaveTOMLCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "subdir", "test.toml")

	data := Settings{StoreDir: "/tmp/store"}
	err := SaveTOML(testFile, data)
	if err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	if _, err := os.Stat(testFile); os.IsNotExist(err) {
		t.Fatal("File was not created")
	}
}

func TestSaveTOMLPermissions(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "perms.toml")

	if err := SaveTOML(testFile, Settings{}); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	info, err := os.Stat(testFile)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected permissions 0600, got %o", info.Mode().Perm())
	}
}
