package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/threadloom/backend/internal/realtime"
	"github.com/threadloom/backend/internal/router"
	"github.com/threadloom/backend/internal/validators"
	"github.com/threadloom/backend/pkg/config"
	"github.com/threadloom/backend/pkg/logging"
	"github.com/threadloom/backend/pkg/storage"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments configure through the process
	// environment.
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	db, err := config.InitDB(cfg, logger)
	if err != nil {
		logger.Fatal("initializing databases", zap.Error(err))
	}
	defer db.CloseDB()

	var mediaStore *storage.MediaStore
	if cfg.FirebaseCredentialsPath != "" && cfg.StorageBucket != "" {
		mediaStore, err = storage.NewMediaStore(context.Background(), cfg.FirebaseCredentialsPath, cfg.StorageBucket, cfg.SignedURLTTL, logger)
		if err != nil {
			logger.Fatal("initializing media store", zap.Error(err))
		}
	} else {
		logger.Warn("media store not configured, media uploads disabled")
	}

	hub := realtime.NewHub()

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	if err := router.SetupRoutes(e, db, cfg, hub, mediaStore, logger); err != nil {
		logger.Fatal("setting up routes", zap.Error(err))
	}

	logger.Info("starting server", zap.String("port", cfg.Port))
	if err := e.Start(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
