package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/api"
	"github.com/andresuchdata/rxstock/backend-go/internal/app"
	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/andresuchdata/rxstock/backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger.Configure(cfg.App.LogLevel, cfg.App.LogFormat)

	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Log.Fatal().Err(err).Msg("server stopped with error")
	}
	logger.Log.Info().Msg("server exited")
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg *config.Config) error {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialise application: %w", err)
	}
	defer application.Close()

	if err := application.DB.Migrate(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(application.Services(), cfg.Server.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Info().
			Str("port", cfg.Server.Port).
			Str("driver", application.DB.Driver()).
			Msg("starting server")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
