package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/facevote/internal/camera"
	"github.com/kozaktomas/facevote/internal/config"
	"github.com/kozaktomas/facevote/internal/database"
	"github.com/kozaktomas/facevote/internal/database/postgres"
	"github.com/kozaktomas/facevote/internal/detector"
	"github.com/kozaktomas/facevote/internal/protocol"
)

// openStore connects to PostgreSQL and returns the store with a close func.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (database.Store, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, errors.New("DATABASE_URL environment variable is required")
	}
	if err := postgres.Initialize(&cfg.Database, logger); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	store, err := database.GetStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if pool := postgres.GetGlobalPool(); pool != nil {
			if err := pool.Close(); err != nil {
				logger.Warn("closing database", zap.Error(err))
			}
		}
	}
	return store, closeFn, nil
}

// openCamera builds the camera-backed descriptor source. The detector model
// is loaded on first use, or immediately with preload.
func openCamera(cfg *config.Config, logger *zap.Logger, preload bool) (*protocol.CameraSource, func(), error) {
	loader := detector.NewProcessLoader(cfg.Detector.Command, cfg.Detector.Args, logger)
	if preload {
		if _, err := loader.Load(); err != nil {
			return nil, nil, fmt.Errorf("loading face detector: %w", err)
		}
	}
	cam := camera.NewFFmpeg(cfg.Camera.Device, cfg.Camera.Format, cfg.Camera.FrameRate, logger)
	closeFn := func() {
		if err := loader.Close(); err != nil {
			logger.Warn("closing detector", zap.Error(err))
		}
	}
	return protocol.NewCameraSource(cam, loader), closeFn, nil
}
