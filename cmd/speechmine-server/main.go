package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BeckettFrey/speech-diarizer/internal/config"
	"github.com/BeckettFrey/speech-diarizer/internal/server"
	"github.com/BeckettFrey/speech-diarizer/speechmine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	defaults, err := speechmine.LoadOptions(cfg.OptionsPath)
	if err != nil {
		logger.Fatal("load search options", zap.String("path", cfg.OptionsPath), zap.Error(err))
	}

	svc := speechmine.NewService(nil, logger.Named("search"))
	e := server.New(cfg, svc, defaults, logger)

	go func() {
		logger.Info("server.start",
			zap.String("addr", cfg.Addr()),
			zap.String("environment", cfg.Environment),
			zap.String("data_dir", cfg.DataDir),
		)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server.start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("server.shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("server.shutdown", zap.Error(err))
		return
	}
	logger.Info("server.stopped")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
