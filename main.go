// main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brandview-ai/brandview-workflows/internal/analyzer"
	"github.com/brandview-ai/brandview-workflows/internal/config"
	"github.com/brandview-ai/brandview-workflows/internal/providers"
	"github.com/brandview-ai/brandview-workflows/internal/resilience"
	"github.com/brandview-ai/brandview-workflows/internal/scoring"
	"github.com/brandview-ai/brandview-workflows/internal/store"
	"github.com/brandview-ai/brandview-workflows/services"
	"github.com/brandview-ai/brandview-workflows/workflows"
)

const maxCompetitorMentions = 10

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("dev.env"); err != nil {
			log.Printf("Note: No .env or dev.env file loaded: %v", err)
		} else {
			log.Printf("Loaded dev.env file for local development")
		}
	} else {
		log.Printf("Loaded .env file")
	}

	cfg := config.Load()

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting brandview-workflows",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.String("database_host", cfg.Database.Host),
		zap.String("database_name", cfg.Database.Name))

	for provider, key := range map[string]string{
		"openai":     cfg.OpenAIAPIKey,
		"anthropic":  cfg.AnthropicAPIKey,
		"perplexity": cfg.PerplexityAPIKey,
		"gemini":     cfg.GeminiAPIKey,
	} {
		if key == "" {
			logger.Warn("provider API key not loaded", zap.String("provider", provider))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := store.NewClient(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbClient.Close()
	logger.Info("connected to database")

	if err := store.Migrate(databaseURL(cfg.Database), "file://migrations"); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("schema migrations applied")

	pipelineStore := store.NewStore(dbClient)

	var redisClient *redis.Client
	cache := resilience.NewMemoryCache()
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-memory cache", zap.Error(err))
			redisClient = nil
		} else {
			cache = resilience.NewRedisCache(redisClient)
			logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	costService := services.NewCostService()

	requested := []string{
		providers.ProviderOpenAI,
		providers.ProviderAnthropic,
		providers.ProviderPerplexity,
		providers.ProviderGemini,
	}
	clients, skipped := providers.NewClients(requested, cfg, costService)
	for provider, reason := range skipped {
		logger.Warn("provider disabled", zap.String("provider", provider), zap.String("reason", reason))
	}
	logger.Info("provider adapters initialized", zap.Int("configured", len(clients)))

	budget := resilience.NewBudgetTracker(cfg.Pipeline.DailyBudgetUSD, cfg.Pipeline.MonthlyBudgetUSD)
	limiter := resilience.NewRateLimiter(cfg.Pipeline.RateLimitPerSecond, cfg.Pipeline.RateLimitBurst)
	breakers := resilience.NewBreakerGroup(cfg.Pipeline.BreakerThreshold, cfg.Pipeline.BreakerCooldown)

	orchestrator := services.NewOrchestratorService(
		clients, skipped, cache, budget, limiter, breakers, costService, cfg.Pipeline, logger)
	generator := services.NewQueryGeneratorService(cfg, costService, budget, logger)
	progress := services.NewProgressService(redisClient, logger)
	notifier := services.NewWebhookNotifier(cfg.WebhookURL, logger)

	processor := workflows.NewAuditProcessor(
		pipelineStore.AuditJobs,
		pipelineStore.Companies,
		pipelineStore.Queries,
		pipelineStore.Responses,
		pipelineStore.Analyses,
		pipelineStore.Summaries,
		generator,
		orchestrator,
		analyzer.New(maxCompetitorMentions),
		scoring.NewCalculator(cfg.Scoring),
		progress,
		notifier,
		cfg.Pipeline,
		logger,
	)

	worker := workflows.NewWorker(pipelineStore.AuditJobs, processor, cfg.Pipeline.PollInterval, logger)
	go worker.Run(ctx)

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"service":"brandview-workflows","status":"running"}`))
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := dbClient.DB.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/audits", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var request struct {
			CompanyID  uuid.UUID `json:"company_id"`
			QueryCount int       `json:"query_count"`
			Providers  []string  `json:"providers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error":"invalid request: %v"}`, err)
			return
		}
		if request.QueryCount <= 0 {
			request.QueryCount = 10
		}
		job, err := pipelineStore.AuditJobs.Enqueue(r.Context(), request.CompanyID, request.QueryCount, request.Providers)
		if err != nil {
			logger.Error("failed to enqueue audit", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"failed to enqueue audit"}`))
			return
		}
		logger.Info("audit job enqueued", zap.String("job_id", job.AuditJobID.String()))
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(job)
	})

	mux.HandleFunc("/audits/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var request struct {
			AuditJobID uuid.UUID `json:"audit_job_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"error":"invalid request: %v"}`, err)
			return
		}
		if err := pipelineStore.AuditJobs.RequestCancel(r.Context(), request.AuditJobID); err != nil {
			logger.Error("failed to request cancel", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":"failed to request cancel"}`))
			return
		}
		logger.Info("audit cancellation requested", zap.String("job_id", request.AuditJobID.String()))
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"cancel_requested"}`))
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// databaseURL rebuilds the migration connection string from the parsed
// config so migrations and the pool share one source of truth.
func databaseURL(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password),
		cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)
}
