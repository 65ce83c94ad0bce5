package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/walletsvc/wallet_service/internal/asset"
	"github.com/walletsvc/wallet_service/internal/auth"
	"github.com/walletsvc/wallet_service/internal/config"
	"github.com/walletsvc/wallet_service/internal/infra"
	"github.com/walletsvc/wallet_service/internal/logging"
	"github.com/walletsvc/wallet_service/internal/server"
	"github.com/walletsvc/wallet_service/migrations"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.Database.URL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := infra.Migrate(ctx, db, migrations.FS, logger); err != nil {
				logger.Error("run migrations", "error", err)
				os.Exit(1)
			}
		}
	}

	var cache *redis.Client
	if cfg.Redis.URL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	assets, err := asset.New(ctx, cfg.Assets)
	if err != nil {
		logger.Error("init asset store", "error", err)
		os.Exit(1)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTTL)

	srv, err := server.New(cfg, db, cache, assets, tokens, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
