package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rollcall/rollcall/internal/config"
	"github.com/rollcall/rollcall/internal/face"
	"github.com/rollcall/rollcall/internal/logging"
	"github.com/rollcall/rollcall/internal/session"
	"github.com/rollcall/rollcall/internal/storage"
)

// App wires configuration, logging, storage and the session manager
// together for the CLI and the HTTP server.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *storage.DB
	Manager *session.Manager
}

// New initializes the application stack.
func New() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewFileLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := storage.NewDB(cfg)
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	encoder := face.NewGridEncoder(cfg.EncoderDims)
	manager := session.NewManager(db, cfg, logger, encoder)

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Manager: manager,
	}, nil
}

// Close releases all held resources.
func (a *App) Close() {
	a.Manager.CloseAll()
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.Logger.Sync()
}
