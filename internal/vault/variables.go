package vault

import (
	"encoding/json"
	"fmt"
	"regexp"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
)

// MaxValueLength caps the byte length of a single variable value.
const MaxValueLength = 4096

var (
	// segmentPattern constrains namespace and environment names.
	segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

	// keyPattern constrains variable key names. Keys cannot start with
	// a dot or dash, which keeps them usable in dotenv files.
	keyPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]{0,127}$`)
)

// Variables is one named set of key-value pairs.
type Variables map[string]string

// Clone returns an independent copy of the set.
func (v Variables) Clone() Variables {
	out := make(Variables, len(v))
	for key, value := range v {
		out[key] = value
	}
	return out
}

// Scope addresses one variable set by namespace and environment.
type Scope struct {
	Namespace   string
	Environment string
}

// String renders the scope as namespace/environment.
func (s Scope) String() string {
	return s.Namespace + "/" + s.Environment
}

// Validate checks both scope segments against the naming rules.
//
// Returns ErrValidation for empty or malformed segments.
func (s Scope) Validate() error {
	if !segmentPattern.MatchString(s.Namespace) {
		return fmt.Errorf("%w: invalid namespace %q", kerrors.ErrValidation, s.Namespace)
	}
	if !segmentPattern.MatchString(s.Environment) {
		return fmt.Errorf("%w: invalid environment %q", kerrors.ErrValidation, s.Environment)
	}
	return nil
}

// ValidateKey checks a variable key name against the naming rules.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: invalid key name %q", kerrors.ErrValidation, key)
	}
	return nil
}

// ValidateValue checks a variable value against the size limit.
func ValidateValue(key, value string) error {
	if len(value) > MaxValueLength {
		return fmt.Errorf("%w: value for %q exceeds %d bytes", kerrors.ErrValidation, key, MaxValueLength)
	}
	return nil
}

// ValidateSet checks every pair in a set.
func (v Variables) ValidateSet() error {
	for key, value := range v {
		if err := ValidateKey(key); err != nil {
			return err
		}
		if err := ValidateValue(key, value); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes a set to its canonical form: a JSON object with keys
// in sorted order. Identical sets always produce identical bytes, which
// keeps encrypted files and history snapshots comparable.
func (v Variables) Encode() ([]byte, error) {
	if v == nil {
		v = Variables{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode variables: %w", err)
	}
	return data, nil
}

// DecodeVariables parses the canonical form back into a set.
//
// Returns ErrCorruptStore if the bytes are not a valid JSON object.
func DecodeVariables(data []byte) (Variables, error) {
	var v Variables
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrCorruptStore, err)
	}
	if v == nil {
		v = Variables{}
	}
	return v, nil
}
