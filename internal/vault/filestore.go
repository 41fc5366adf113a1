package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tawa-dev/tawa/internal/cipher"
)

// varsFileSuffix is the extension of an encrypted variable set file.
const varsFileSuffix = ".vars.enc"

// FileBackend stores each variable set as one encrypted file at
// <root>/data/<namespace>/<environment>.vars.enc.
type FileBackend struct {
	root   string
	cipher *cipher.Cipher
}

// NewFileBackend returns a Backend rooted at the given store directory.
func NewFileBackend(root string, c *cipher.Cipher) *FileBackend {
	return &FileBackend{root: root, cipher: c}
}

// Load reads and decrypts the set for a scope. A missing file means the
// scope has never been written and loads as an empty set.
//
// Returns ErrIntegrity if decryption fails and ErrCorruptStore if the
// decrypted payload is not valid.
func (b *FileBackend) Load(scope Scope) (Variables, error) {
	ciphertext, err := os.ReadFile(b.varsPath(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return Variables{}, nil
		}
		return nil, fmt.Errorf("failed to read variable set for %s: %w", scope, err)
	}

	plaintext, err := b.cipher.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypting variable set for %s: %w", scope, err)
	}

	return DecodeVariables(plaintext)
}

// Save encrypts and writes the set for a scope. The data lands in a
// temporary file in the same directory first and is renamed into place,
// so a crash mid-write never leaves a truncated set behind.
func (b *FileBackend) Save(scope Scope, vars Variables) error {
	plaintext, err := vars.Encode()
	if err != nil {
		return err
	}

	ciphertext, err := b.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting variable set for %s: %w", scope, err)
	}

	path := b.varsPath(scope)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create namespace directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, ciphertext, 0600); err != nil {
		return fmt.Errorf("failed to write variable set for %s: %w", scope, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace variable set for %s: %w", scope, err)
	}

	return nil
}

// Scopes walks the data directory and returns every stored scope, sorted
// by namespace then environment.
func (b *FileBackend) Scopes() ([]Scope, error) {
	dataDir := filepath.Join(b.root, "data")
	namespaces, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var scopes []Scope
	for _, nsEntry := range namespaces {
		if !nsEntry.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dataDir, nsEntry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read namespace %s: %w", nsEntry.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), varsFileSuffix) {
				continue
			}
			scopes = append(scopes, Scope{
				Namespace:   nsEntry.Name(),
				Environment: strings.TrimSuffix(f.Name(), varsFileSuffix),
			})
		}
	}

	sort.Slice(scopes, func(i, j int) bool {
		if scopes[i].Namespace != scopes[j].Namespace {
			return scopes[i].Namespace < scopes[j].Namespace
		}
		return scopes[i].Environment < scopes[j].Environment
	})

	return scopes, nil
}

func (b *FileBackend) varsPath(scope Scope) string {
	return filepath.Join(b.root, "data", scope.Namespace, scope.Environment+varsFileSuffix)
}
