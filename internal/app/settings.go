package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	CommRoot        string `yaml:"comm_root"`
	ArchiveRoot     string `yaml:"archive_root"`
	JournalPath     string `yaml:"journal_path"`
	LeaseTTLSeconds int    `yaml:"lease_ttl_seconds"`
}

const defaultLeaseTTLSeconds = 30

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load
// singleton for config. overrideMu and the override fields implement
// mutex-protected process-wide overrides for CLI flags.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex overrides are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	overrideMu          sync.RWMutex
	commRootOverride    string
	archiveRootOverride string
	journalPathOverride string
)

// SetCommRootOverride sets a process-wide communication root override.
// Intended for CLI flag support (--comm-root).
func SetCommRootOverride(path string) {
	overrideMu.Lock()
	commRootOverride = path
	overrideMu.Unlock()
}

// SetArchiveRootOverride sets a process-wide archive root override.
func SetArchiveRootOverride(path string) {
	overrideMu.Lock()
	archiveRootOverride = path
	overrideMu.Unlock()
}

// SetJournalPathOverride sets a process-wide journal path override.
func SetJournalPathOverride(path string) {
	overrideMu.Lock()
	journalPathOverride = path
	overrideMu.Unlock()
}

func getOverrides() (commRoot, archiveRoot, journalPath string) {
	overrideMu.RLock()
	defer overrideMu.RUnlock()
	return commRootOverride, archiveRootOverride, journalPathOverride
}

// LoadSettings loads configuration once using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/taskcomm/config.yaml
// 2) /etc/taskcomm/config.yaml
// 3) ./config.yaml (lowest priority; allows repo-local overrides if desired)
// Environment variables are handled separately in the resolvers.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		dir, err := ConfigDir()
		if err != nil {
			settingsErr = err
			return
		}

		for _, path := range []string{
			filepath.Join(dir, "config.yaml"),
			filepath.Join(string(os.PathSeparator), "etc", "taskcomm", "config.yaml"),
			"config.yaml",
		} {
			s, err := loadSettingsFile(path)
			if err == nil {
				settings = s
				return
			}
			if !errors.Is(err, os.ErrNotExist) {
				settingsErr = err
				return
			}
		}
	})

	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
