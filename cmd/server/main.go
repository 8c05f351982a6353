package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yungbote/coursegen-backend/internal/app"
	"github.com/yungbote/coursegen-backend/internal/observability"
	"github.com/yungbote/coursegen-backend/internal/platform/envutil"
)

func main() {
	if envutil.Bool("DEV_MODE", false) {
		// .env is optional in development.
		_ = godotenv.Load()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx)
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}

	env := "production"
	if application.Cfg.DevMode {
		env = "development"
	}
	shutdownOTel := observability.InitOTel(ctx, application.Log, observability.OtelConfig{
		ServiceName: "coursegen-backend",
		Environment: env,
		Version:     envutil.String("APP_VERSION", "dev"),
	})

	if err := application.Start(ctx); err != nil {
		application.Log.Error("start failed", "error", err)
		application.Shutdown(context.Background())
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- application.Run() }()

	exitCode := 0
	select {
	case <-ctx.Done():
		application.Log.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			application.Log.Error("HTTP server failed", "error", err)
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	application.Shutdown(shutdownCtx)
	if shutdownOTel != nil {
		_ = shutdownOTel(shutdownCtx)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
