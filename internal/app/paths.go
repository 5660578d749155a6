package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// GetCommRoot resolves the task communication root.
// Order of precedence:
// 1) CLI override (--comm-root)
// 2) Environment variable: TASKCOMM_COMM_ROOT
// 3) config.yaml: comm_root
// 4) Default: ~/.config/taskcomm/comm
// The directory is created if missing.
func GetCommRoot() (string, error) {
	override, _, _ := getOverrides()
	return resolveDir(override, "TASKCOMM_COMM_ROOT", func(s Settings) string { return s.CommRoot }, "comm")
}

// GetArchiveRoot resolves the archive root, defaulting to
// ~/.config/taskcomm/archive. Same precedence as GetCommRoot.
func GetArchiveRoot() (string, error) {
	_, override, _ := getOverrides()
	return resolveDir(override, "TASKCOMM_ARCHIVE_ROOT", func(s Settings) string { return s.ArchiveRoot }, "archive")
}

// GetJournalPath resolves the observability journal location, defaulting
// to ~/.config/taskcomm/journal.db. An explicit "off" disables the
// journal entirely (empty return, no error).
func GetJournalPath() (string, error) {
	_, _, override := getOverrides()
	if override != "" {
		return journalValue(override)
	}
	if env := os.Getenv("TASKCOMM_JOURNAL_PATH"); env != "" {
		return journalValue(env)
	}
	cfg, err := LoadSettings()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JournalPath != "" {
		return journalValue(cfg.JournalPath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "journal.db"), nil
}

// GetLeaseTTL resolves the lease TTL from TASKCOMM_LEASE_TTL_SECONDS or
// config.yaml, falling back to the built-in default. Invalid values fall
// back rather than fail: a bad TTL should never brick the CLI.
func GetLeaseTTL() time.Duration {
	if env := os.Getenv("TASKCOMM_LEASE_TTL_SECONDS"); env != "" {
		if secs, err := strconv.Atoi(env); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if cfg, err := LoadSettings(); err == nil && cfg.LeaseTTLSeconds > 0 {
		return time.Duration(cfg.LeaseTTLSeconds) * time.Second
	}
	return defaultLeaseTTLSeconds * time.Second
}

func journalValue(v string) (string, error) {
	if v == "off" {
		return "", nil
	}
	return v, nil
}

func resolveDir(override, envVar string, fromSettings func(Settings) string, defaultName string) (string, error) {
	if override != "" {
		return ensureDir(override)
	}
	if env := os.Getenv(envVar); env != "" {
		return ensureDir(env)
	}
	cfg, err := LoadSettings()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if v := fromSettings(cfg); v != "" {
		return ensureDir(v)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return ensureDir(filepath.Join(dir, defaultName))
}

func ensureDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return path, nil
}
