package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/draftsync-backend/internal/app"
	"github.com/yungbote/draftsync-backend/internal/platform/dotenv"
	"github.com/yungbote/draftsync-backend/internal/platform/envutil"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

func main() {
	loaded := dotenv.Load(".")

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if len(loaded) > 0 {
		log.Info("Loaded env files", "files", loaded)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, log)
	if err != nil {
		log.Fatal("Failed to init app", "error", err)
	}
	if err := a.Start(); err != nil {
		log.Fatal("Failed to start background workers", "error", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped", "error", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.DrainWindow)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown incomplete", "error", err)
		os.Exit(1)
	}
}
