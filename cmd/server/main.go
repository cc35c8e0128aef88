package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/david/casematch/internal/api"
	"github.com/david/casematch/internal/app"
	"github.com/david/casematch/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()

	if err := cfg.Validate(); err != nil {
		zap.L().Fatal("Invalid configuration", zap.Error(err))
	}

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize", zap.Error(err))
	}
	defer a.Close()

	srv := api.NewServer(api.Deps{
		Store:       a.Store,
		Pipeline:    a.Pipeline,
		Scorer:      a.Scorer,
		Auth:        a.Auth,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	zap.L().Info("Server starting", zap.Int("port", cfg.Server.Port), zap.String("oracle", cfg.Oracle.Provider))
	if err := srv.Start(cfg.Server.Port); err != nil {
		zap.L().Error("Server stopped", zap.Error(err))
	}
}
