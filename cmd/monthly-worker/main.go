package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"monthly/internal/amqp"
	"monthly/internal/config"
	applog "monthly/internal/log"
	"monthly/internal/remote"
	"monthly/internal/remote/drive"
	"monthly/internal/remote/memory"
	"monthly/internal/storage"
	ledgersync "monthly/internal/sync"
	"monthly/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.DefaultConfig()).WithComponent("worker")
	applog.SetDefault(logger)

	logger.Info("Starting monthly-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.RemoteBackend == "none" {
		logger.Error("Worker requires a remote backend (set REMOTE_BACKEND to memory or drive)")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var remoteStore remote.Store
	switch cfg.RemoteBackend {
	case "drive":
		cli, err := drive.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Drive client", "error", err)
			os.Exit(1)
		}
		remoteStore = cli
		logger.Info("Initialized Drive remote backend")
	default:
		remoteStore = memory.New()
		logger.Info("Initialized memory remote backend")
	}

	session := ledgersync.NewSession()
	session.Bind(cfg.RemoteIdentity)

	// The worker syncs straight off the database: every push reads the
	// latest persisted snapshot, so edits made by the API process are
	// always included.
	controller := ledgersync.NewController(session, repo, remoteStore)
	syncWorker := worker.NewSyncWorker(controller, cfg.SyncInterval)

	// One pull at startup; a missing remote document seeds it from local
	// state instead.
	if err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup sync failed", "error", err)
		// Don't exit - continue with normal operation
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeLedgerChanges(gctx, func(msg *amqp.LedgerChangedMessage) error {
			return syncWorker.HandleChange(gctx, msg)
		})
	})
	g.Go(func() error {
		return syncWorker.RunPeriodicPush(gctx)
	})
	g.Go(func() error {
		return syncWorker.RunWatch(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
