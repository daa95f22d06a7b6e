// Command watch follows the burn hook's program logs over WebSocket and
// records every execution.
//
// Executions go to ClickHouse when a DSN is configured; the resume point goes
// to Redis, else PostgreSQL, else memory.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"solana-burn-hook/internal/config"
	"solana-burn-hook/internal/logging"
	"solana-burn-hook/internal/observability"
	"solana-burn-hook/internal/solana"
	"solana-burn-hook/internal/storage"
	chstore "solana-burn-hook/internal/storage/clickhouse"
	"solana-burn-hook/internal/storage/memory"
	"solana-burn-hook/internal/storage/migrations"
	pgstore "solana-burn-hook/internal/storage/postgres"
	redisstore "solana-burn-hook/internal/storage/redis"
	"solana-burn-hook/internal/watcher"
)

func main() {
	config.LoadEnvFile("")

	configPath := flag.String("config", os.Getenv("BURN_HOOK_CONFIG"), "YAML config file")
	useMemory := flag.Bool("use-memory", false, "Ignore configured databases and keep everything in memory")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[watch] %v", err)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("[watch] %v", err)
	}
	logger := log.WithField("component", "watch")

	programID, err := cfg.ProgramID()
	if err != nil {
		logger.Fatal(err)
	}
	if cfg.Solana.WSEndpoint == "" {
		logger.Fatal("solana.ws_endpoint (or SOLANA_WS_ENDPOINT) is required")
	}
	if *useMemory {
		cfg.Storage = config.StorageConfig{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics(observability.DefaultNamespace)

	stores, cleanup, err := createStores(ctx, cfg.Storage, metrics)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	if cfg.Solana.RPCEndpoint != "" {
		logClusterSlot(ctx, cfg, metrics, logger)
	}

	wsConfig := solana.DefaultWSConfig()
	wsConfig.ReconnectDelay = time.Duration(cfg.Solana.ReconnectSec) * time.Second
	wsConfig.SubscribeTimeout = time.Duration(cfg.Solana.SubscribeSec) * time.Second
	wsConfig.Buffer = cfg.Solana.MessageBuffer
	wsConfig.OnReconnect = metrics.WSReconnects.Inc
	ws, err := solana.NewWSClient(ctx, cfg.Solana.WSEndpoint, &wsConfig)
	if err != nil {
		logger.Fatalf("connect websocket: %v", err)
	}
	defer ws.Close()

	w, err := watcher.New(watcher.Options{
		ProgramID:  programID,
		WS:         ws,
		Executions: stores.executions,
		Progress:   stores.progress,
		Metrics:    metrics,
		Commitment: cfg.Solana.Commitment,
		Logger:     log.WithField("component", "watcher"),
	})
	if err != nil {
		logger.Fatal(err)
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("received signal %v, shutting down", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warnf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go startHTTPServer(cfg.MetricsAddr, logger)

	err = w.Run(ctx)
	done <- err
	if err != nil {
		logger.Fatalf("watcher: %v", err)
	}
	logger.Info("shutdown complete")
}

type watchStores struct {
	executions storage.ExecutionStore
	progress   storage.ProgressStore
}

// createStores opens the configured backends. Unconfigured backends fall back to memory.
func createStores(ctx context.Context, cfg config.StorageConfig, metrics *observability.Metrics) (*watchStores, func(), error) {
	stores := &watchStores{
		executions: memory.NewExecutionStore(),
		progress:   memory.NewProgressStore(),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.executions = storage.InstrumentExecutions(chstore.NewExecutionStore(conn), metrics, "clickhouse")
	}

	switch {
	case cfg.RedisURL != "":
		rdb, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { rdb.Close() })
		key := cfg.ProgressKey
		if key == "" {
			key = redisstore.DefaultProgressKey
		}
		stores.progress = redisstore.NewProgressStore(rdb, key)
	case cfg.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithMaxConns(cfg.PostgresMaxConns))
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.progress = pgstore.NewProgressStore(pool)
	}

	return stores, cleanup, nil
}

// logClusterSlot reports the cluster's current slot so lag is visible at startup.
func logClusterSlot(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *log.Entry) {
	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint,
		solana.WithTimeout(cfg.Solana.Timeout()),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
		solana.WithCommitment(cfg.Solana.Commitment),
		solana.WithLatencyObserver(metrics.RecordRPCLatency),
	)
	slot, err := rpc.GetSlot(ctx)
	if err != nil {
		logger.WithError(err).Warn("get cluster slot")
		return
	}
	metrics.UpdateHighestSlot(slot)
	logger.WithField("slot", slot).Info("cluster slot")
}

func startHTTPServer(addr string, logger *log.Entry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())

	logger.Infof("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("http server")
	}
}
