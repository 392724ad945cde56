package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultThreshold      = 0.6
	DefaultWindowCapacity = 10
	DefaultFrameSkip      = 2
	DefaultTickIntervalMS = 10
	DefaultEncoderDims    = 128
	DefaultAPIPort        = 8080
)

// Config holds the application configuration
type Config struct {
	DataDir        string
	DBPath         string
	ConfigPath     string
	Threshold      float64
	WindowCapacity int
	FrameSkip      int
	TickIntervalMS int
	EncoderDims    int
	APIPort        int
	LogLevel       string
	LogFile        string
}

type fileConfig struct {
	Storage struct {
		DataDir string `toml:"data_dir"`
		DBPath  string `toml:"db_path"`
	} `toml:"storage"`
	Recognition struct {
		Threshold      float64 `toml:"threshold"`
		WindowCapacity int     `toml:"window_capacity"`
		FrameSkip      int     `toml:"frame_skip"`
		EncoderDims    int     `toml:"encoder_dims"`
	} `toml:"recognition"`
	Session struct {
		TickIntervalMS int `toml:"tick_interval_ms"`
	} `toml:"session"`
	API struct {
		Port int `toml:"port"`
	} `toml:"api"`
	Logging struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"logging"`
}

// LoadConfig loads configuration from file, environment variables, and defaults
func LoadConfig() (*Config, error) {
	dataDir := "db"
	if dir := os.Getenv("ROLLCALL_DATA_DIR"); dir != "" {
		dataDir = dir
	}

	if err := EnsureDataDirs(dataDir); err != nil {
		return nil, err
	}

	configPath := filepath.Join(dataDir, "config.toml")

	cfg := &Config{
		DataDir:        dataDir,
		DBPath:         filepath.Join(dataDir, "attendance.sqlite3"),
		ConfigPath:     configPath,
		Threshold:      DefaultThreshold,
		WindowCapacity: DefaultWindowCapacity,
		FrameSkip:      DefaultFrameSkip,
		TickIntervalMS: DefaultTickIntervalMS,
		EncoderDims:    DefaultEncoderDims,
		APIPort:        DefaultAPIPort,
		LogLevel:       "info",
		LogFile:        filepath.Join(dataDir, "logs", "rollcall.log"),
	}

	// Try to load config from file if it exists
	if _, err := os.Stat(configPath); err == nil {
		fileData, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var parsed fileConfig
		if err := toml.Unmarshal(fileData, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}

		if parsed.Storage.DataDir != "" {
			cfg.DataDir = parsed.Storage.DataDir
		}
		if parsed.Storage.DBPath != "" {
			cfg.DBPath = parsed.Storage.DBPath
		}
		if parsed.Recognition.Threshold != 0 {
			cfg.Threshold = parsed.Recognition.Threshold
		}
		if parsed.Recognition.WindowCapacity != 0 {
			cfg.WindowCapacity = parsed.Recognition.WindowCapacity
		}
		if parsed.Recognition.FrameSkip != 0 {
			cfg.FrameSkip = parsed.Recognition.FrameSkip
		}
		if parsed.Recognition.EncoderDims != 0 {
			cfg.EncoderDims = parsed.Recognition.EncoderDims
		}
		if parsed.Session.TickIntervalMS != 0 {
			cfg.TickIntervalMS = parsed.Session.TickIntervalMS
		}
		if parsed.API.Port != 0 {
			cfg.APIPort = parsed.API.Port
		}
		if parsed.Logging.Level != "" {
			cfg.LogLevel = parsed.Logging.Level
		}
		if parsed.Logging.File != "" {
			cfg.LogFile = parsed.Logging.File
		}
	}

	// Apply environment variable overrides
	if dbPath := os.Getenv("ROLLCALL_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if threshold := os.Getenv("ROLLCALL_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Threshold = v
		}
	}
	if capacity := os.Getenv("ROLLCALL_WINDOW_CAPACITY"); capacity != "" {
		if v, err := strconv.Atoi(capacity); err == nil {
			cfg.WindowCapacity = v
		}
	}
	if skip := os.Getenv("ROLLCALL_FRAME_SKIP"); skip != "" {
		if v, err := strconv.Atoi(skip); err == nil {
			cfg.FrameSkip = v
		}
	}
	if tick := os.Getenv("ROLLCALL_TICK_INTERVAL_MS"); tick != "" {
		if v, err := strconv.Atoi(tick); err == nil {
			cfg.TickIntervalMS = v
		}
	}
	if dims := os.Getenv("ROLLCALL_ENCODER_DIMS"); dims != "" {
		if v, err := strconv.Atoi(dims); err == nil {
			cfg.EncoderDims = v
		}
	}
	if port := os.Getenv("ROLLCALL_API_PORT"); port != "" {
		if v, err := strconv.Atoi(port); err == nil {
			cfg.APIPort = v
		}
	}
	if level := os.Getenv("ROLLCALL_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if logFile := os.Getenv("ROLLCALL_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	return cfg, nil
}

// EnsureDataDirs creates the data directory tree if it does not exist yet.
func EnsureDataDirs(dataDir string) error {
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "logs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate verifies the configuration is usable.
func (c *Config) Validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("recognition threshold must be positive")
	}
	if c.WindowCapacity <= 0 {
		return fmt.Errorf("window capacity must be positive")
	}
	if c.FrameSkip < 1 {
		return fmt.Errorf("frame skip must be at least 1")
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.EncoderDims <= 0 || c.EncoderDims > 65535 {
		return fmt.Errorf("encoder dimensions out of range: %d", c.EncoderDims)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("api port out of range: %d", c.APIPort)
	}
	return nil
}
