// Command server runs the simulation service: an HTTP API for submitting
// and tracking backtest jobs, persisted run results, report rendering, a
// per-job WebSocket progress stream, and Prometheus metrics.
//
// Storage is selected by configuration: with DSNs configured, bars live in
// ClickHouse and run results in PostgreSQL; otherwise everything stays in
// memory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backtest-lab/internal/api"
	"backtest-lab/internal/config"
	"backtest-lab/internal/jobs"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/simulation"
	"backtest-lab/internal/storage"
	chstore "backtest-lab/internal/storage/clickhouse"
	"backtest-lab/internal/storage/memory"
	"backtest-lab/internal/storage/migrations"
	pgstore "backtest-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	barStore, resultStore, curveStore, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("backtest_lab")

	runner := simulation.NewRunner(simulation.RunnerOptions{
		BarStore:    barStore,
		ResultStore: resultStore,
		CurveStore:  curveStore,
		Cache:       memory.NewResultCache(),
		Metrics:     metrics,
		Logger:      logger,
	})
	scheduler := jobs.NewScheduler(jobs.SchedulerOptions{
		Runner:        runner,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Metrics:       metrics,
		Logger:        logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := api.NewServer(addr, api.Options{
		Scheduler:   scheduler,
		BarStore:    barStore,
		ResultStore: resultStore,
		Metrics:     metrics,
		BaseConfig:  cfg.Simulation,
		Logger:      logger,
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Printf("received signal %v, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			logger.Fatalf("server: %v", err)
		}
		return
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown: %v", err)
	}
	if err := scheduler.Shutdown(shutdownCtx); err != nil {
		logger.Printf("scheduler shutdown: %v", err)
	}
	logger.Println("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// createStores wires bar, result and equity-curve storage from the config.
// Both DSNs must be set together; the returned cleanup closes whatever was
// opened.
func createStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (storage.BarStore, storage.RunResultStore, storage.EquityCurveStore, func(), error) {
	if cfg.Storage.PostgresDSN == "" && cfg.Storage.ClickhouseDSN == "" {
		logger.Println("no DSNs configured, using in-memory storage")
		return memory.NewBarStore(), memory.NewRunResultStore(), memory.NewEquityCurveStore(), func() {}, nil
	}
	if cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickhouseDSN == "" {
		return nil, nil, nil, nil, fmt.Errorf("postgres_dsn and clickhouse_dsn must both be set")
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return chstore.NewBarStore(conn), pgstore.NewRunResultStore(pool), chstore.NewEquityPointStore(conn), cleanup, nil
}
