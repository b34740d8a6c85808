package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/api"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/config"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/events/logpub"
	interfaces "github.com/sheikh-saqib/revenue-sharing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/ledger"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/logging"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/sharing"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/storage"
	"github.com/sheikh-saqib/revenue-sharing-ledger/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Env)
	slog.SetDefault(logger)

	if cfg.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := api.NewHTTPMetrics(registry)
	poolMetrics := sharing.NewMetrics(registry)

	ctx := context.Background()

	var db *sql.DB
	if cfg.NeedsPostgres() {
		db, err = postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Error("db connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	}

	ledgerStore, err := storage.NewLedgerStore(cfg.Ledger.Backend, db)
	if err != nil {
		logger.Error("ledger store init failed", "error", err)
		os.Exit(1)
	}
	ledgerService := ledger.NewLedger(ledgerStore, cfg.Ledger.IssuerAccount, logger)
	ledgerService.Protect(cfg.Pool.Account)

	checkpoints, closeCheckpoints, err := storage.NewCheckpointStore(cfg.Checkpoints, db)
	if err != nil {
		logger.Error("checkpoint store init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeCheckpoints(); err != nil {
			logger.Error("checkpoint store close failed", "error", err)
		}
	}()

	publisher, closePublisher := newPublisher(cfg, logger)
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Error("publisher close failed", "error", err)
		}
	}()

	shareholders, units := cfg.ShareLists()
	engine, err := sharing.New(ctx, shareholders, units,
		sharing.Asset{Ledger: ledgerService, Account: cfg.Pool.Account},
		sharing.Options{
			Store:     checkpoints,
			Publisher: publisher,
			Logger:    logger,
			Metrics:   poolMetrics,
		},
	)
	if err != nil {
		logger.Error("revenue pool init failed", "error", err)
		os.Exit(1)
	}

	router := gin.New()
	router.Use(api.RequestID())
	router.Use(api.Logger(logger, httpMetrics))
	router.Use(api.Recovery(logger))
	router.GET(cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	api.New(engine, ledgerService, logger).Register(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("http server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	waitForShutdown(httpServer, logger)
}

// newPublisher picks Kafka when brokers are configured and the log otherwise.
func newPublisher(cfg *config.Config, logger *slog.Logger) (interfaces.EventPublisher, func() error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("no kafka brokers configured, payouts go to the log")
		return logpub.NewPublisher(logger), func() error { return nil }
	}
	p := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	logger.Info("publishing payouts to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return p, p.Close
}

func waitForShutdown(httpServer *http.Server, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
