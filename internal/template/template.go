// Package template renders variable set templates, generating fresh
// random secrets where a definition asks for one.
package template

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"gopkg.in/yaml.v3"
)

// Marker is the value that requests a generated secret. A template
// variable whose value equals the marker gets a fresh cryptographically
// random value on every render.
const Marker = "__GENERATE__"

// generatedBytes is the entropy per generated secret. The rendered value
// is its URL-safe base64 form, 43 characters.
const generatedBytes = 32

// Template is one named variable set definition.
type Template struct {
	Description string            `yaml:"description"`
	Variables   map[string]string `yaml:"variables"`
}

// Parse reads a templates file: a YAML map of template name to definition.
//
// Returns ErrInvalidTemplate when the document does not have that shape.
func Parse(data []byte) (map[string]Template, error) {
	var templates map[string]Template
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidTemplate, err)
	}
	if templates == nil {
		templates = map[string]Template{}
	}
	return templates, nil
}

// LoadFile parses the templates file at path.
//
// Returns ErrFileNotFound if the file does not exist.
func LoadFile(path string) (map[string]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	return Parse(data)
}

// Render resolves a template into concrete values. Literal values pass
// through; marker values are replaced with fresh random secrets drawn
// from random. A nil random means crypto/rand.
func Render(tpl Template, random io.Reader) (map[string]string, error) {
	if random == nil {
		random = rand.Reader
	}

	rendered := make(map[string]string, len(tpl.Variables))
	for key, value := range tpl.Variables {
		if value == Marker {
			generated, err := GenerateValue(random)
			if err != nil {
				return nil, fmt.Errorf("generating value for %s: %w", key, err)
			}
			rendered[key] = generated
			continue
		}
		rendered[key] = value
	}

	return rendered, nil
}

// Merge layers rendered template values over an existing set. Template
// values win on conflict; existing keys the template doesn't mention
// survive. Neither input is mutated.
func Merge(existing, rendered map[string]string) map[string]string {
	merged := make(map[string]string, len(existing)+len(rendered))
	for key, value := range existing {
		merged[key] = value
	}
	for key, value := range rendered {
		merged[key] = value
	}
	return merged
}

// GenerateValue draws one secret from random: 32 bytes encoded as
// URL-safe base64 without padding.
func GenerateValue(random io.Reader) (string, error) {
	buf := make([]byte, generatedBytes)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
