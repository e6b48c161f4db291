package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dealroom/backend/internal/config"
	"github.com/dealroom/backend/internal/db"
	"github.com/dealroom/backend/internal/events"
	apphttp "github.com/dealroom/backend/internal/http"
	"github.com/dealroom/backend/internal/http/dto"
	"github.com/dealroom/backend/internal/http/handlers"
	"github.com/dealroom/backend/internal/repositories"
	"github.com/dealroom/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var store repositories.Store
	switch cfg.StorageDriver {
	case config.StorageMemory:
		store = repositories.NewMemoryStore()
	default:
		pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, cfg.DBRetryAttempts, cfg.DBRetryDelay, log)
		if err != nil {
			log.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()

		if err := db.RunMigrations(ctx, pool, cfg.MigrationsDir, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		store = repositories.NewPostgresStore(pool)
	}

	// Events
	var (
		rdb        *redis.Client
		publisher  events.Publisher
		subscriber events.Subscriber
	)
	if cfg.RedisURL != "" {
		rdb, err = db.NewRedisClient(ctx, db.RedisOptions{URL: cfg.RedisURL, Role: "api", Attempts: cfg.DBRetryAttempts, Delay: cfg.DBRetryDelay}, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb, log)
		subscriber = events.NewRedisSubscriber(rdb, log)
	} else {
		bus := events.NewLocalBus()
		publisher, subscriber = bus, bus
	}

	// Services
	ledger := services.NewAuditLedger(store, publisher, log)
	machine := services.NewDealStateMachine(log)
	dealService := services.NewDealService(store, ledger, machine, log)
	partyService := services.NewPartyService(store, ledger, log)
	pofService := services.NewPoFService(store, ledger, machine, log)
	escrowService := services.NewEscrowService(store, ledger, machine, log)
	signingService := services.NewSigningService(store, ledger, machine, log)
	contingencyService := services.NewContingencyService(store, ledger, log)
	milestoneService := services.NewMilestoneService(store, ledger, log)
	recordsService := services.NewRecordsService(store, ledger, log)

	// The in-memory store lives in this process only, so the worker's checks
	// run here instead.
	if cfg.StorageDriver == config.StorageMemory {
		watcher := services.NewWatcher(store, ledger, publisher, log)
		go watcher.Run(ctx, cfg.DeadlineScanInterval, cfg.ChainVerifyWindow)
	}

	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to subscribe to deal events", zap.Error(err))
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(dto.ErrorResponse{Error: err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, apphttp.Handlers{
		Deal:      handlers.NewDealHandler(dealService, ledger, log),
		Party:     handlers.NewPartyHandler(partyService, log),
		PoF:       handlers.NewPoFHandler(pofService, log),
		Escrow:    handlers.NewEscrowHandler(escrowService, log),
		PSBT:      handlers.NewPSBTHandler(signingService, log),
		Checklist: handlers.NewChecklistHandler(contingencyService, milestoneService, log),
		Records:   handlers.NewRecordsHandler(recordsService, log),
		WS:        wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr), zap.String("storage", cfg.StorageDriver))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
