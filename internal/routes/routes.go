package routes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/walletsvc/wallet_service/internal/asset"
	"github.com/walletsvc/wallet_service/internal/batch"
	"github.com/walletsvc/wallet_service/internal/config"
	"github.com/walletsvc/wallet_service/internal/infra"
	"github.com/walletsvc/wallet_service/internal/ledger"
	"github.com/walletsvc/wallet_service/internal/middleware"
	"github.com/walletsvc/wallet_service/internal/notification"
	"github.com/walletsvc/wallet_service/internal/transfer"
	"github.com/walletsvc/wallet_service/internal/trust"
	"github.com/walletsvc/wallet_service/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development; in-memory stores are used instead.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Assets asset.Store
	Tokens middleware.TokenValidator
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.App.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.App.Env)
		}
	}
	if d.Tokens == nil {
		return fmt.Errorf("token validator is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	if disk, ok := d.Assets.(*asset.DiskStore); ok {
		app.Static("/assets", disk.Dir(), fiber.Static{ModifyResponse: assetHeaders})
	}

	var (
		walletRepo wallet.Repository
		trustRepo  trust.Repository
		led        ledger.Ledger
		tx         infra.TxRunner
	)
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
		trustRepo = trust.NewPostgresRepository(d.DB)
		led = ledger.NewPostgresLedger(d.DB)
		tx = infra.NewTxManager(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
		trustRepo = trust.NewMemoryRepository(walletRepo)
		led = ledger.NewInMemory()
		tx = infra.NoopTx{}
		d.Logger.Warn("running with in-memory stores")
	}

	trustSvc := trust.NewService(trustRepo, walletRepo, d.Logger)
	walletSvc := wallet.NewService(walletRepo, trustSvc, led, d.Assets, tx, d.Logger)
	transferSvc := transfer.NewService(led, walletSvc, notification.NewLoggerNotifier(d.Logger), d.Logger)
	pipeline := batch.NewPipeline(walletSvc, transferSvc, tx, d.Cfg.Batch, d.Logger)

	if err := led.EnsureAccount(context.Background(), ledger.IssuanceAccountCode); err != nil {
		return fmt.Errorf("ensure issuance account: %w", err)
	}

	api := app.Group("/api/v1")
	registerPing(api)

	protected := api.Group("",
		middleware.JWTAuth(d.Tokens),
		middleware.Idempotency(d.Cache, d.Cfg.Idempotency.TTL, d.Logger),
	)
	batchLimit := middleware.RateLimit(d.Cache, "batch", d.Cfg.Batch.RateLimitPerMinute, d.Logger)

	trustHandler := trust.NewHandler(trustSvc)
	RegisterWalletRoutes(protected,
		wallet.NewHandler(walletSvc),
		trustHandler,
		transfer.NewHandler(transferSvc),
		batch.NewHandler(pipeline, d.Cfg.Batch.UploadDir),
		batchLimit,
	)
	RegisterTrustRoutes(protected, trustHandler)
	return nil
}

// assetHeaders stops browsers from sniffing or executing uploaded files.
func assetHeaders(c *fiber.Ctx) error {
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderContentSecurityPolicy, "default-src 'none'; sandbox")
	return nil
}
