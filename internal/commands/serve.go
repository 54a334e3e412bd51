package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gestor-financiero/internal/migrations"
	"gestor-financiero/internal/repository"
	"gestor-financiero/internal/repository/memory"
	"gestor-financiero/pkg/config"
	"gestor-financiero/pkg/postgres"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// serve runs app on port until ctx is cancelled, then shuts it down.
func serve(ctx context.Context, app *fiber.App, port string, appLogger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + port
		appLogger.Info("Server starting", zap.String("address", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down server")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
		return err
	}
	return nil
}

var errUnknownBackend = errors.New("unknown repository backend")

// openRepositories connects the configured persistence backend. The returned
// cleanup releases it and is never nil.
func openRepositories(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (*repository.Set, func(), error) {
	switch cfg.Repository.Backend {
	case "memory":
		appLogger.Warn("Using in-memory repositories, data is lost on restart")
		return memory.NewSet(), func() {}, nil
	case "postgres", "":
		pool, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			db := postgres.StdlibDB(pool)
			err := migrations.Up(ctx, db)
			_ = db.Close()
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
			appLogger.Info("Database migrations applied")
		}
		return repository.NewPostgresSet(pool, appLogger), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownBackend, cfg.Repository.Backend)
	}
}
