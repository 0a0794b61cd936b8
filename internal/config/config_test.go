package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoadOptions{
		DotEnv:  filepath.Join(t.TempDir(), "missing.env"),
		Environ: map[string]string{},
	})
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "tapline.yaml", `
store: development
dev_db_path: /from/yaml.db
log_level: warn
log_format: json
`)
	dotenv := writeFile(t, dir, ".env", "TAPLINE_LOG_LEVEL=debug\nTAPLINE_DEV_DB_PATH=/from/dotenv.db\n")

	cfg, err := Load(LoadOptions{
		File:    file,
		DotEnv:  dotenv,
		Environ: map[string]string{"TAPLINE_DEV_DB_PATH": "/from/env.db"},
	})
	require.NoError(t, err)

	assert.Equal(t, LocationDevelopment, cfg.Store, "yaml applies when nothing overrides it")
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel, ".env overrides yaml")
	assert.Equal(t, "/from/env.db", cfg.DevDBPath, "environment overrides .env")
	assert.Equal(t, "@every 15m", cfg.CheckpointSchedule, "defaults survive")
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"unknown store", map[string]string{"TAPLINE_STORE": "cloud"}},
		{"unknown level", map[string]string{"TAPLINE_LOG_LEVEL": "loud"}},
		{"unknown format", map[string]string{"TAPLINE_LOG_FORMAT": "xml"}},
		{"bad schedule", map[string]string{"TAPLINE_CHECKPOINT_SCHEDULE": "every tuesday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoadOptions{
				DotEnv:  filepath.Join(t.TempDir(), "missing.env"),
				Environ: tt.environ,
			})
			assert.Error(t, err)
		})
	}
}

func TestValidate_DevelopmentNeedsPath(t *testing.T) {
	cfg := Default()
	cfg.Store = LocationDevelopment
	cfg.DevDBPath = ""
	assert.ErrorContains(t, cfg.Validate(), "TAPLINE_DEV_DB_PATH")
}

func TestLoad_UnreadableFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml"), Environ: map[string]string{}})
	assert.Error(t, err)

	bad := writeFile(t, t.TempDir(), "bad.yaml", "store: [unterminated\n")
	_, err = Load(LoadOptions{File: bad, Environ: map[string]string{}})
	assert.Error(t, err)

	wrong := writeFile(t, t.TempDir(), "wrong.yaml", "store: cloud\n")
	_, err = Load(LoadOptions{File: wrong, Environ: map[string]string{}})
	assert.ErrorContains(t, err, "unknown store location")
}

func TestParseStoreLocation(t *testing.T) {
	for in, want := range map[string]StoreLocation{
		"memory":        LocationMemory,
		" Development ": LocationDevelopment,
		"PRODUCTION":    LocationProduction,
	} {
		got, err := ParseStoreLocation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseStoreLocation("")
	assert.Error(t, err)
}

func TestDatabasePath(t *testing.T) {
	cfg := Default()

	cfg.Store = LocationMemory
	path, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", path)

	cfg.Store = LocationDevelopment
	cfg.DevDBPath = "./dev.db"
	path, err = cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "./dev.db", path)

	cfg.Store = LocationProduction
	cfg.DataDir = "/srv/data"
	path, err = cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/data", "Tapline", "tapline.db"), path)
}

func TestUserDataDir(t *testing.T) {
	none := func(string) string { return "" }
	vars := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	assert.Equal(t, filepath.Join("/Users/ada", "Library", "Application Support"),
		userDataDir("darwin", "/Users/ada", none))
	assert.Equal(t, filepath.Join("/home/ada", ".local", "share"),
		userDataDir("linux", "/home/ada", none))
	assert.Equal(t, "/xdg", userDataDir("linux", "/home/ada", vars(map[string]string{"XDG_DATA_HOME": "/xdg"})))
	assert.Equal(t, `C:\Users\ada\AppData\Roaming`,
		userDataDir("windows", `C:\Users\ada`, vars(map[string]string{"AppData": `C:\Users\ada\AppData\Roaming`})))
}
