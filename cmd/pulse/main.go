package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dhruv1108git/pulse/internal/config"
	dbRedis "github.com/dhruv1108git/pulse/internal/db/redis"
	"github.com/dhruv1108git/pulse/internal/domain"
	"github.com/dhruv1108git/pulse/internal/domain/scoring"
	logpkg "github.com/dhruv1108git/pulse/internal/logger"
	"github.com/dhruv1108git/pulse/internal/metrics"
	incidentrepo "github.com/dhruv1108git/pulse/internal/repository/incident"
	"github.com/dhruv1108git/pulse/internal/repository/intentcache"
	queryrepo "github.com/dhruv1108git/pulse/internal/repository/query"
	chiTransport "github.com/dhruv1108git/pulse/internal/transport/chi"
	openaiTransport "github.com/dhruv1108git/pulse/internal/transport/openai"
	"github.com/dhruv1108git/pulse/internal/transport/sms"
	healthuc "github.com/dhruv1108git/pulse/internal/usecase/health"
	intentuc "github.com/dhruv1108git/pulse/internal/usecase/intent"
	relayuc "github.com/dhruv1108git/pulse/internal/usecase/relay"
	safetyuc "github.com/dhruv1108git/pulse/internal/usecase/safety"
	"github.com/dhruv1108git/pulse/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting pulse API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Both supported drivers speak RESP; one rueidis client covers redis and
	// valkey alike.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterRelayMetrics()
	metrics.RegisterAIMetrics()

	// AI adapters. Either can be disabled by leaving its model empty: the
	// classifier then always falls back to the heuristic, and scoring runs
	// keyword-only.
	var generator intentuc.TextGenerator
	if cfg.AI.Generator.Model != "" {
		generator = openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:  cfg.AI.Generator.APIKey,
			BaseURL: cfg.AI.Generator.BaseURL,
			Model:   cfg.AI.Generator.Model,
			Logger:  logger,
		})
		logger.Info("Text generator created", zap.String("model", cfg.AI.Generator.Model))
	}

	var embedder domain.Embedder
	var aiChecker healthuc.AIChecker
	if cfg.AI.Embedder.Model != "" {
		emb := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.AI.Embedder.APIKey,
			BaseURL:    cfg.AI.Embedder.BaseURL,
			Model:      cfg.AI.Embedder.Model,
			Dimensions: cfg.AI.Embedder.Dimensions,
			Logger:     logger,
		})
		embedder = emb
		aiChecker = emb
		logger.Info("Embedder created",
			zap.String("model", cfg.AI.Embedder.Model),
			zap.Int("dimensions", cfg.AI.Embedder.Dimensions),
		)
	}

	// Intent classification: model-backed when a generator is configured,
	// cached in the store either way.
	classifier := buildClassifier(generator, store, cfg.Relay, logger)

	// Repositories
	queryRepo := queryrepo.New(store)
	incidentRepo := incidentrepo.New(store)

	// Notifier. Unconfigured credentials still produce a notifier; it reports
	// undelivered dispatches instead of dropping them.
	notifier := sms.New(&sms.Config{
		AccountSID: cfg.Notifier.AccountSID,
		AuthToken:  cfg.Notifier.AuthToken,
		From:       cfg.Notifier.From,
		To:         cfg.Notifier.To,
		Logger:     logger,
	})

	engine := scoring.NewEngine(scoringConfig(cfg.Scoring))

	// Use case services
	relaySvc := relayuc.New(
		queryRepo, incidentRepo, incidentRepo, classifier,
		embedder, notifier, engine, logger,
	).WithLimits(cfg.Relay.TopN, cfg.Relay.SearchLimit)
	safetySvc := safetyuc.New(incidentRepo)
	healthSvc := healthuc.New(store, aiChecker)

	// HTTP server
	server := chiTransport.NewServer(relaySvc, safetySvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// heuristicClassifier satisfies the relay contract when no model is configured.
type heuristicClassifier struct{}

func (heuristicClassifier) Classify(
	_ context.Context, text string, _ *domain.GeoPoint,
) (domain.QueryIntent, error) {
	return intentuc.Heuristic(text), nil
}

// buildClassifier assembles the chain: OpenAI generator -> parser -> cached.
func buildClassifier(
	generator intentuc.TextGenerator,
	store interface {
		Get(ctx context.Context, key string) ([]byte, error)
		SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	},
	relayCfg config.RelayConfig,
	logger *zap.Logger,
) relayuc.IntentParser {
	if generator == nil {
		return heuristicClassifier{}
	}

	svc := intentuc.New(generator)
	return intentcache.New(
		svc, store,
		time.Duration(relayCfg.IntentCacheTTLSec)*time.Second,
		metrics.IntentCacheTotal, logger,
	)
}

func scoringConfig(sc config.ScoringConfig) scoring.Config {
	return scoring.Config{
		Weights: scoring.Weights{
			Text:     sc.TextWeight,
			Vector:   sc.VectorWeight,
			Geo:      sc.GeoWeight,
			Recency:  sc.RecencyWeight,
			Severity: sc.SeverityWeight,
		},
		GeoScaleKm:   sc.GeoScaleKm,
		RecencyScale: time.Duration(sc.RecencyScaleHrs * float64(time.Hour)),
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.IntoContext(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
