package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithDataDir(t *testing.T) *Config {
	t.Helper()

	t.Setenv("ROLLCALL_DATA_DIR", t.TempDir())
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := loadWithDataDir(t)

	assert.Equal(t, DefaultThreshold, cfg.Threshold)
	assert.Equal(t, DefaultWindowCapacity, cfg.WindowCapacity)
	assert.Equal(t, DefaultFrameSkip, cfg.FrameSkip)
	assert.Equal(t, DefaultTickIntervalMS, cfg.TickIntervalMS)
	assert.Equal(t, DefaultEncoderDims, cfg.EncoderDims)
	assert.Equal(t, DefaultAPIPort, cfg.APIPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join(cfg.DataDir, "attendance.sqlite3"), cfg.DBPath)
}

func TestLoadConfigCreatesDataDirs(t *testing.T) {
	cfg := loadWithDataDir(t)

	info, err := os.Stat(filepath.Join(cfg.DataDir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadConfigFromFile(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ROLLCALL_DATA_DIR", dataDir)

	content := `
[recognition]
threshold = 0.45
window_capacity = 20

[session]
tick_interval_ms = 50

[api]
port = 9090

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(content), 0644))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.45, cfg.Threshold)
	assert.Equal(t, 20, cfg.WindowCapacity)
	assert.Equal(t, 50, cfg.TickIntervalMS)
	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultFrameSkip, cfg.FrameSkip)
}

func TestEnvOverridesFile(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ROLLCALL_DATA_DIR", dataDir)

	content := `
[recognition]
threshold = 0.45
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(content), 0644))

	t.Setenv("ROLLCALL_THRESHOLD", "0.3")
	t.Setenv("ROLLCALL_WINDOW_CAPACITY", "5")
	t.Setenv("ROLLCALL_DB_PATH", "/tmp/other.sqlite3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.Threshold)
	assert.Equal(t, 5, cfg.WindowCapacity)
	assert.Equal(t, "/tmp/other.sqlite3", cfg.DBPath)
}

func TestLoadConfigBadTOML(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("ROLLCALL_DATA_DIR", dataDir)

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte("not [valid"), 0644))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Threshold:      0.6,
			WindowCapacity: 10,
			FrameSkip:      2,
			TickIntervalMS: 10,
			EncoderDims:    128,
			APIPort:        8080,
		}
	}

	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"zero threshold":       func(c *Config) { c.Threshold = 0 },
		"negative capacity":    func(c *Config) { c.WindowCapacity = -1 },
		"zero frame skip":      func(c *Config) { c.FrameSkip = 0 },
		"zero tick":            func(c *Config) { c.TickIntervalMS = 0 },
		"oversized dimensions": func(c *Config) { c.EncoderDims = 70000 },
		"port out of range":    func(c *Config) { c.APIPort = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
