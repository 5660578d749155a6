package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/taskcomm/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "taskcomm"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# taskcomm configuration
# Run: taskcomm --help

# Optional: override the task communication root.
# Can also be set via TASKCOMM_COMM_ROOT or --comm-root.
# comm_root: ~/.config/taskcomm/comm

# Optional: override the archive root.
# archive_root: ~/.config/taskcomm/archive

# Optional: override the observability journal location.
# journal_path: ~/.config/taskcomm/journal.db

# Optional: lease TTL in seconds (default 30).
# lease_ttl_seconds: 30
`
