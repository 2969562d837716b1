package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/statuskeep/statusd/internal/config"
	"github.com/statuskeep/statusd/internal/httpapi"
	"github.com/statuskeep/statusd/internal/logging"
	"github.com/statuskeep/statusd/internal/metrics"
	"github.com/statuskeep/statusd/internal/monitor"
	"github.com/statuskeep/statusd/internal/probe"
	"github.com/statuskeep/statusd/internal/repo"
	"github.com/statuskeep/statusd/internal/repo/memory"
	"github.com/statuskeep/statusd/internal/repo/sqlite"
	"github.com/statuskeep/statusd/internal/scheduler"
	"github.com/statuskeep/statusd/internal/uptime"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $STATUSD_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal("metrics_register_failed", zap.Error(err))
	}

	var store repo.Store
	if cfg.Database.Path != "" {
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			logger.Fatal("db_open_failed", zap.Error(err))
		}
		defer db.Close()
		store = db
	} else {
		logger.Warn("db_path_empty_using_memory_store")
		store = memory.New()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Seed/update the service table from config. A failure here is logged
	// and tolerated: the engine keeps monitoring whatever list is stored.
	if err := monitor.SyncServices(ctx, logger, store, cfg.Services); err != nil {
		logger.Error("service_sync_failed", zap.Error(err))
	}

	probes := probe.NewRegistry(probe.NewHTTPChecker(cfg.Monitor.Timeout()))
	engine := monitor.NewEngine(logger, store, probes, cfg.Monitor.Timeout(), cfg.Monitor.Retention())

	driver := scheduler.NewDriver(logger, engine, cfg.Monitor.Interval(), 24*time.Hour)
	go driver.Run(ctx)

	agg := uptime.New(store, store)
	api := httpapi.NewServer(logger, store, agg, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Server.Address))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_serve_failed", zap.Error(err))
	}
	logger.Info("shutdown_complete")
}
