package routes

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/doithe/doithe/internal/config"
	"github.com/doithe/doithe/internal/exchange"
	"github.com/doithe/doithe/internal/inventory"
	"github.com/doithe/doithe/internal/ledger"
	"github.com/doithe/doithe/internal/logging"
	"github.com/doithe/doithe/internal/middleware"
	"github.com/doithe/doithe/internal/notification"
	"github.com/doithe/doithe/internal/purchase"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Outside of dev the stores must be real, even though main also checks.
	if !isDev(d.Cfg.AppEnv) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var ledgerStore ledger.Store
	if d.DB != nil {
		ledgerStore = ledger.NewPostgresStore(d.DB, d.Cfg.WalletLockTimeout)
	} else {
		ledgerStore = ledger.NewMemory(d.Cfg.WalletLockTimeout)
	}
	ledgerSvc := ledger.NewService(ledgerStore, logging.WithComponent(d.Logger, "ledger"))

	var sealer *inventory.Sealer
	if d.Cfg.CardSealKey != "" {
		var err error
		sealer, err = inventory.NewSealer(d.Cfg.CardSealKey)
		if err != nil {
			return err
		}
	}
	var inventoryStore inventory.Store
	if d.DB != nil {
		inventoryStore = inventory.NewPostgresStore(d.DB)
	} else {
		inventoryStore = inventory.NewMemory()
	}
	inventorySvc := inventory.NewService(inventoryStore, sealer, logging.WithComponent(d.Logger, "inventory"))

	notifier := notification.NewLoggerNotifier(d.Logger)
	purchaseSvc := purchase.NewService(inventorySvc, ledgerSvc, notifier, logging.WithComponent(d.Logger, "purchase"))
	exchangeSvc, err := exchange.NewService(ledgerSvc, d.Cfg.ExchangePenaltyRate, notifier, logging.WithComponent(d.Logger, "exchange"))
	if err != nil {
		return err
	}

	ledgerHandler := ledger.NewHandler(ledgerSvc)
	inventoryHandler := inventory.NewHandler(inventorySvc)
	purchaseHandler := purchase.NewHandler(purchaseSvc)
	exchangeHandler := exchange.NewHandler(exchangeSvc)

	api := app.Group("/api/v1")
	RegisterLedgerRoutes(api, ledgerHandler)
	RegisterInventoryRoutes(api, inventoryHandler, purchaseHandler)
	RegisterExchangeRoutes(api, exchangeHandler)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}
