package utils

import (
	"strings"
	"testing"
)

func TestGetUsername(t *testing.T) {
	username, err := GetUsername()
	if err != nil {
		t.Fatalf("GetUsername failed: %v", err)
	}
	if username == "" {
		t.Fatal("Expected non-empty username")
	}
}

func TestFormatPaths(t *testing.T) {
	result := FormatPaths([]string{"/tmp/a", "/tmp/b"})

	if !strings.HasPrefix(result, "\n") {
		t.Errorf("Expected leading newline, got %q", result)
	}
	for _, path := range []string{"/tmp/a", "/tmp/b"} {
		if !strings.Contains(result, "    - "+path+"\n") {
			t.Errorf("Expected formatted line for %q in %q", path, result)
		}
	}
}
