package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
)

// Environment variables that override config file values.
const (
	EnvConfigFile    = "TAWA_CONFIG"
	EnvStoreDir      = "TAWA_STORE_DIR"
	EnvKeyFile       = "TAWA_KEY_FILE"
	EnvLockTimeout   = "TAWA_LOCK_TIMEOUT"
	EnvTemplatesFile = "TAWA_TEMPLATES_FILE"
)

// Settings is the store configuration, read once at startup and passed
// explicitly to whatever needs it. There is no global settings state.
type Settings struct {
	// StoreDir is the store root. Variable sets and history live under
	// <StoreDir>/data, the audit trail under <StoreDir>/audit.
	StoreDir string `toml:"store_dir"`

	// KeyFile is the base64 key file. It deliberately defaults to a
	// location outside StoreDir so backup archives of the store never
	// contain the key.
	KeyFile string `toml:"key_file"`

	// LockTimeout bounds waits on contended locks ("5s", "500ms", ...).
	LockTimeout string `toml:"lock_timeout"`

	// TemplatesFile is the YAML file holding named variable set templates.
	TemplatesFile string `toml:"templates_file"`

	// HistoryListLimit is the default page size for history listings.
	HistoryListLimit int `toml:"history_list_limit"`

	// AuditQueryLimit is the default page size for audit queries.
	AuditQueryLimit int `toml:"audit_query_limit"`
}

// DefaultSettings returns settings pointing at the user's data directory.
func DefaultSettings() (*Settings, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("error getting home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return &Settings{
		StoreDir:         filepath.Join(dataDir, "tawa", "store"),
		KeyFile:          filepath.Join(dataDir, "tawa", "keys", "store.key"),
		LockTimeout:      "5s",
		TemplatesFile:    filepath.Join(dataDir, "tawa", "templates.yaml"),
		HistoryListLimit: 50,
		AuditQueryLimit:  100,
	}, nil
}

// ConfigPath returns the config file location: TAWA_CONFIG if set,
// otherwise <user config dir>/tawa/config.toml.
func ConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return path, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}
	return filepath.Join(configDir, "tawa", "config.toml"), nil
}

// LoadSettings builds the effective settings: defaults, overlaid by the
// config file when it exists, overlaid by environment variables.
func LoadSettings() (*Settings, error) {
	settings, err := DefaultSettings()
	if err != nil {
		return nil, err
	}

	configPath, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(configPath); statErr == nil {
		if err := LoadTOML(configPath, settings); err != nil {
			return nil, fmt.Errorf("error reading config at %s: %w", configPath, err)
		}
	}

	if dir := os.Getenv(EnvStoreDir); dir != "" {
		settings.StoreDir = dir
	}
	if keyFile := os.Getenv(EnvKeyFile); keyFile != "" {
		settings.KeyFile = keyFile
	}
	if timeout := os.Getenv(EnvLockTimeout); timeout != "" {
		settings.LockTimeout = timeout
	}
	if templates := os.Getenv(EnvTemplatesFile); templates != "" {
		settings.TemplatesFile = templates
	}

	return settings, nil
}

// Save writes the settings to the config file location.
func (s *Settings) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(configPath, s)
}

// LockTimeoutDuration parses the configured lock timeout.
//
// Returns ErrValidation for an unparseable value.
func (s *Settings) LockTimeoutDuration() (time.Duration, error) {
	if s.LockTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.LockTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid lock_timeout %q", kerrors.ErrValidation, s.LockTimeout)
	}
	return d, nil
}
