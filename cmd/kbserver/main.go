// Package main is the entry point for the knowledge-base server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PerformanceSuite/knowledgebeast/internal/config"
	"github.com/PerformanceSuite/knowledgebeast/pkg/auth"
	"github.com/PerformanceSuite/knowledgebeast/pkg/observability"
	"github.com/PerformanceSuite/knowledgebeast/pkg/project"
	"github.com/PerformanceSuite/knowledgebeast/pkg/resilience"
	"github.com/PerformanceSuite/knowledgebeast/pkg/retry"
	"github.com/PerformanceSuite/knowledgebeast/pkg/retrieval"
	"github.com/PerformanceSuite/knowledgebeast/pkg/semanticcache"
	"github.com/PerformanceSuite/knowledgebeast/pkg/vectorstore"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("knowledgebeast\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n", version, buildTime, gitCommit)
		os.Exit(0)
	}

	logger := observability.NewLogger("knowledgebeast")
	logger.Info("starting knowledgebeast", map[string]interface{}{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	metrics := observability.NewPrometheusMetrics()
	tracer := observability.NewOtelTracer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	breakerConfig := resilience.Config{
		FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		FailureWindow:    cfg.CircuitBreaker.FailureWindow,
		RecoveryTimeout:  cfg.CircuitBreaker.RecoveryTimeout,
	}
	retryConfig := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		InitialWait: cfg.Retry.InitialWait,
		Multiplier:  cfg.Retry.Multiplier,
		MaxWait:     cfg.Retry.MaxWait,
	}

	backendFactory := func(p project.Project) (vectorstore.Backend, error) {
		raw := vectorstore.NewInMemoryBackend(p.ID)
		return vectorstore.NewResilientAdapter(p.ID, raw, retryConfig, breakerConfig, logger, metrics, tracer), nil
	}
	embedFactory := func(p project.Project) retrieval.EmbedFunc {
		// The real embedding-model runtime is an external collaborator;
		// wiring one in is the composition root's job, not the core's.
		return func(_ context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("no embedding backend configured for model %q", p.EmbeddingModel)
		}
	}

	projectManager := project.New(backendFactory, embedFactory, project.Config{
		EmbedCacheCapacity: cfg.LRU.CacheCapacity,
		Semantic: semanticcache.Config{
			SimilarityThreshold: cfg.SemanticCache.SimilarityThreshold,
			TTL:                 time.Duration(cfg.SemanticCache.TTLSeconds) * time.Second,
			MaxEntries:          cfg.SemanticCache.MaxEntries,
		},
		Retrieval: retrieval.Config{Alpha: cfg.Search.Alpha},
	}, logger, metrics, tracer)

	// authManager is wired here so the eventual HTTP surface can share one
	// instance across requests; this core exposes no transport of its own.
	authManager := auth.NewManager()
	logger.Info("auth manager ready", nil)
	_ = authManager

	go projectManager.StartCleanupSweep(ctx, cfg.SemanticCache.CleanupInterval)

	healthServer := startHealthServer(cfg, logger, metrics)

	sig := <-sigChan
	logger.Info("received shutdown signal", map[string]interface{}{"signal": sig.String()})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown health server", map[string]interface{}{"error": err.Error()})
	}

	projectManager.CleanupAll()
	cancel()
	logger.Info("shutdown complete", nil)
}

func startHealthServer(cfg *config.Config, logger observability.Logger, metrics *observability.PrometheusMetrics) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "healthy")
	})
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler: mux,
	}

	go func() {
		logger.Info("starting health and metrics server", map[string]interface{}{"port": cfg.Service.MetricsPort})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	return server
}
