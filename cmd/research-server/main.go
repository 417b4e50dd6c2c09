// cmd/research-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"research-agent/internal/api"
	"research-agent/internal/common/config"
	"research-agent/internal/common/database"
	"research-agent/internal/common/logger"
	"research-agent/internal/common/observability"
	"research-agent/internal/common/reasoning"
	"research-agent/internal/models"
	"research-agent/internal/session"

	as "research-agent/internal/workers/research/answer-synthesis"
	qg "research-agent/internal/workers/research/quality-gate"
	qp "research-agent/internal/workers/research/query-planner"
	rl "research-agent/internal/workers/research/research-loop"
	ws "research-agent/internal/workers/research/web-search"
	"research-agent/internal/workers/routing/coordinator"
	ra "research-agent/internal/workers/routing/remote-agent"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting research server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis with retry (optional) ---
	var redis *database.RedisClient
	var cache *goredis.Client
	var store models.SessionStore = session.NewMemoryStore()
	if cfg.Database.Redis.Address != "" {
		err = retryWithBackoff(func() error {
			var err error
			redis, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")

		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		cache = redis.GetClient()
		store = session.NewRedisStore(cache, cfg.Session.KeyPrefix, time.Duration(cfg.Session.TTL)*time.Second)
		zapLog.Info("Redis connected successfully")
	} else {
		zapLog.Warn("No Redis address configured, sessions are kept in memory and search results are not cached")
	}

	// --- Init reasoning service ---
	// A missing key is reported per request instead of stopping the process.
	var reasoner reasoning.Reasoner
	gemini, err := reasoning.NewGeminiClient(ctx, cfg.APIs.GenAI, log)
	if err != nil {
		zapLog.Error("reasoning client unavailable", zap.Error(err))
	} else {
		reasoner = gemini
	}

	// --- Research pipeline ---
	var plannerReasoner reasoning.Reasoner
	if cfg.Research.ReasoningPlanner {
		plannerReasoner = reasoner
	}
	planner := qp.NewPlanner(plannerReasoner, log)
	searcher := ws.NewHandler(ws.LoadConfig(cfg.APIs.WebSearch), cache, obs, log)
	gate := qg.NewGate(qg.LoadConfig(cfg.Research), log)
	synthesizer := as.NewHandler(as.LoadConfig(cfg.Research), reasoner, obs, log)
	loop := rl.NewLoop(planner, searcher, gate, synthesizer, rl.LoadConfig(cfg.Research), obs, log)

	// --- Remote agents: resolved once before serving ---
	agentCfg := ra.LoadConfig(cfg.RemoteAgents)
	registry := ra.Initialize(ctx, agentCfg, log)
	router := ra.NewRouter(registry, agentCfg, obs, log)
	zapLog.Info("Remote agent registry initialized",
		zap.Int("configured", len(agentCfg.Endpoints)),
		zap.Strings("registered", registry.Names()),
	)

	coord := coordinator.New(cfg.Coordinator.Mode, reasoner, loop, router, obs, log)
	zapLog.Info("Coordinator ready", zap.String("mode", coord.Mode()), zap.Bool("reasoning", coord.Ready()))

	deps := api.Dependencies{
		Config:      cfg,
		Coordinator: coord,
		Sessions:    session.NewManager(store, cfg.Server.ContextWindow, log),
		Agents:      registry,
		Obs:         obs,
		Logger:      log,
	}
	if redis != nil {
		deps.Redis = redis
	}
	server := api.NewServer(deps)
	httpServer := server.HTTPServer()

	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Metrics/pprof server ---
	if cfg.Server.MetricsAddress != "" && cfg.Server.MetricsAddress != cfg.Server.Address {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			zapLog.Info("Metrics server listening", zap.String("address", cfg.Server.MetricsAddress))
			if err := http.ListenAndServe(cfg.Server.MetricsAddress, nil); err != nil {
				zapLog.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining streams...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}

	zapLog.Info("Research server stopped gracefully")
}
