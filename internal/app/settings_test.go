package app

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resetSettingsStateForTest() {
	settingsOnce = sync.Once{}
	settings = Settings{}
	settingsErr = nil
	SetCommRootOverride("")
	SetArchiveRootOverride("")
	SetJournalPathOverride("")
}

func TestLoadSettings_PrefersUserConfigOverLocal(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	workdir := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workdir))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	userConfigPath := filepath.Join(home, ".config", "taskcomm", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte("comm_root: /tmp/from-user\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "config.yaml"), []byte("comm_root: /tmp/from-local\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-user", s.CommRoot)
}

func TestLoadSettings_FallsBackToLocalConfig(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	workdir := t.TempDir()
	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(workdir))
	t.Cleanup(func() { _ = os.Chdir(oldwd) })

	require.NoError(t, os.WriteFile(filepath.Join(workdir, "config.yaml"), []byte("comm_root: /tmp/from-local\n"), 0o600))

	s, err := LoadSettings()
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-local", s.CommRoot)
}

func TestLoadSettings_InvalidYAMLReturnsError(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	userConfigPath := filepath.Join(home, ".config", "taskcomm", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userConfigPath), 0o755))
	require.NoError(t, os.WriteFile(userConfigPath, []byte("comm_root: ["), 0o600))

	_, err := LoadSettings()
	require.Error(t, err)
}

func TestLoadSettingsFile_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "comm_root: /tmp/comm\n" +
		"archive_root: /tmp/archive\n" +
		"journal_path: /tmp/journal.db\n" +
		"lease_ttl_seconds: 45\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := loadSettingsFile(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/comm", s.CommRoot)
	require.Equal(t, "/tmp/archive", s.ArchiveRoot)
	require.Equal(t, "/tmp/journal.db", s.JournalPath)
	require.Equal(t, 45, s.LeaseTTLSeconds)
}

func TestGetCommRoot_PrioritizesCLIOverride(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TASKCOMM_COMM_ROOT", filepath.Join(home, "env-comm"))

	overridePath := filepath.Join(home, "cli-comm")
	SetCommRootOverride(overridePath)

	resolved, err := GetCommRoot()
	require.NoError(t, err)
	require.Equal(t, overridePath, resolved)
	require.DirExists(t, resolved)
}

func TestGetCommRoot_EnvBeatsConfigAndDefault(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	envPath := filepath.Join(home, "env-comm")
	t.Setenv("TASKCOMM_COMM_ROOT", envPath)

	resolved, err := GetCommRoot()
	require.NoError(t, err)
	require.Equal(t, envPath, resolved)
}

func TestGetCommRoot_DefaultsUnderConfigDir(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TASKCOMM_COMM_ROOT", "")

	resolved, err := GetCommRoot()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "taskcomm", "comm"), resolved)
	require.DirExists(t, resolved)
}

func TestGetArchiveRoot_DefaultsUnderConfigDir(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TASKCOMM_ARCHIVE_ROOT", "")

	resolved, err := GetArchiveRoot()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "taskcomm", "archive"), resolved)
}

func TestGetJournalPath(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TASKCOMM_JOURNAL_PATH", "")

	// Default.
	path, err := GetJournalPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "taskcomm", "journal.db"), path)

	// Env override.
	t.Setenv("TASKCOMM_JOURNAL_PATH", "/tmp/custom.db")
	path, err = GetJournalPath()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.db", path)

	// "off" disables the journal.
	t.Setenv("TASKCOMM_JOURNAL_PATH", "off")
	path, err = GetJournalPath()
	require.NoError(t, err)
	require.Empty(t, path)

	// CLI override beats env.
	SetJournalPathOverride("/tmp/cli.db")
	path, err = GetJournalPath()
	require.NoError(t, err)
	require.Equal(t, "/tmp/cli.db", path)
}

func TestGetLeaseTTL(t *testing.T) {
	resetSettingsStateForTest()
	t.Cleanup(resetSettingsStateForTest)

	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Setenv("TASKCOMM_LEASE_TTL_SECONDS", "")
	require.Equal(t, 30*time.Second, GetLeaseTTL())

	t.Setenv("TASKCOMM_LEASE_TTL_SECONDS", "90")
	require.Equal(t, 90*time.Second, GetLeaseTTL())

	// Invalid values fall back rather than fail.
	t.Setenv("TASKCOMM_LEASE_TTL_SECONDS", "not-a-number")
	require.Equal(t, 30*time.Second, GetLeaseTTL())

	t.Setenv("TASKCOMM_LEASE_TTL_SECONDS", "-5")
	require.Equal(t, 30*time.Second, GetLeaseTTL())
}

func TestEnsureConfigDirWritesDefaultConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())
	configFile := filepath.Join(home, ".config", "taskcomm", "config.yaml")
	require.FileExists(t, configFile)

	// Existing config is left alone.
	require.NoError(t, os.WriteFile(configFile, []byte("comm_root: /keep\n"), 0o600))
	require.NoError(t, EnsureConfigDir())
	data, err := os.ReadFile(configFile)
	require.NoError(t, err)
	require.Equal(t, "comm_root: /keep\n", string(data))
}
