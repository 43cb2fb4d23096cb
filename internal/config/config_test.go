package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wcq/internal/ignore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wcq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
database: "/var/lib/wcq/meta.db"
adm_dir: "_svn"
log:
  level: debug
  format: json
queue:
  duplicate_props: last-wins
ignore:
  global: ["*.o", "*~"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/wcq/meta.db", cfg.Database)
	assert.Equal(t, "_svn", cfg.AdmDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DuplicatePropsLastWins, cfg.Queue.DuplicateProps)
	assert.Equal(t, []string{"*.o", "*~"}, cfg.Ignore.Global)
	assert.Len(t, cfg.QueueOptions(), 1)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAdmDir, cfg.AdmDir)
	assert.Equal(t, filepath.Join(DefaultAdmDir, DefaultDatabaseName), cfg.Database)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, DuplicatePropsReject, cfg.Queue.DuplicateProps)
	assert.Equal(t, ignore.DefaultGlobalIgnores, cfg.Ignore.Global)
	assert.Empty(t, cfg.QueueOptions())
}

func TestLoad_DatabaseFollowsAdmDir(t *testing.T) {
	cfg, err := Load(writeConfig(t, "adm_dir: _svn\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("_svn", DefaultDatabaseName), cfg.Database)
}

func TestLoad_ExpandEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WCQ_TEST_DIR", dir)

	path := filepath.Join(dir, "wcq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: ${WCQ_TEST_DIR}/meta.db\n"), 0o644))

	cfg, err := Load("$WCQ_TEST_DIR/wcq.yaml")
	require.NoError(t, err)
	assert.Equal(t, dir+"/meta.db", cfg.Database)
}

func TestLoad_EmptyIgnoreListKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, "ignore:\n  global: []\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Ignore.Global)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "log: [", "failed to parse config file"},
		{"bad level", "log:\n  level: loud\n", "invalid log.level"},
		{"bad format", "log:\n  format: xml\n", "invalid log.format"},
		{"bad policy", "queue:\n  duplicate_props: first-wins\n", "invalid queue.duplicate_props"},
		{"bad pattern", "ignore:\n  global: [\"[abc\"]\n", "ignore.global"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultAdmDir, cfg.AdmDir)
}

func TestIsAdmDir(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsAdmDir(".svn"))
	assert.False(t, cfg.IsAdmDir("svn"))

	cfg.AdmDir = "_svn"
	assert.True(t, cfg.IsAdmDir("_svn"))
	assert.True(t, cfg.IsAdmDir(".svn"))
	assert.False(t, cfg.IsAdmDir(".git"))
}
