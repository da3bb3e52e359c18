package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"monthly/internal/amqp"
	"monthly/internal/config"
	apphttp "monthly/internal/http"
	"monthly/internal/ledger"
	applog "monthly/internal/log"
	"monthly/internal/remote"
	"monthly/internal/remote/drive"
	"monthly/internal/remote/memory"
	"monthly/internal/services"
	"monthly/internal/storage"
	ledgersync "monthly/internal/sync"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snap, found, err := repo.LoadInitial(ctx)
	if err != nil {
		logger.Error("Failed to load ledger from SQLite", "error", err)
		os.Exit(1)
	}
	l := ledger.FromSnapshot(snap)
	logger.Info("Loaded ledger", "periods", len(snap.Periods), "existing", found)

	// Change notifications are optional; without AMQP the worker relies on
	// its periodic push.
	var publisher services.ChangePublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change notifications disabled", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

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
	case "memory":
		remoteStore = memory.New()
		logger.Info("Initialized memory remote backend")
	default:
		logger.Info("Remote sync disabled", "backend", cfg.RemoteBackend)
	}

	session := ledgersync.NewSession()
	if cfg.RemoteIdentity != "" {
		session.Bind(cfg.RemoteIdentity)
		logger.Info("Bound remote identity", "identity", cfg.RemoteIdentity)
	}

	svc := services.NewLedgerService(l, repo, publisher, session)
	if _, err := svc.EnsureDefaultPeriod(ctx); err != nil {
		logger.Error("Failed to ensure default period", "error", err)
		os.Exit(1)
	}

	// The controller syncs through the service, so pulls and handler
	// mutations share one lock.
	var controller *ledgersync.Controller
	if remoteStore != nil {
		controller = ledgersync.NewController(session, svc, remoteStore)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, controller)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting monthly server", "port", cfg.Port, "remote_backend", cfg.RemoteBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
