package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/heartmarshall/gazetteer-backend/internal/app"
	"github.com/heartmarshall/gazetteer-backend/internal/config"
)

// loadConfig honours --config, then CONFIG_PATH, then ./config.yaml.
func loadConfig() (*config.Config, *slog.Logger, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.NewLogger(cfg.Log), nil
}

// buildContainer loads configuration and wires the application graph.
func buildContainer(ctx context.Context) (*app.Container, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewContainer(ctx, cfg, logger)
}
