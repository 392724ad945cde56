package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger writing to both stderr and the log file.
func NewLogger(level, logFile string) (*zap.Logger, error) {
	return newLogger(level, logFile, true)
}

// NewFileLogger builds a zap logger writing to the log file only.
// Useful when stderr belongs to an interactive CLI.
func NewFileLogger(level, logFile string) (*zap.Logger, error) {
	return newLogger(level, logFile, false)
}

func newLogger(level, logFile string, includeStderr bool) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := parseLevel(level)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), lvl),
	}
	if includeStderr {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stderr), lvl))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
