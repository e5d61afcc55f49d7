// services/orchestrator.go
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brandview-ai/brandview-workflows/internal/config"
	"github.com/brandview-ai/brandview-workflows/internal/models"
	"github.com/brandview-ai/brandview-workflows/internal/providers"
	"github.com/brandview-ai/brandview-workflows/internal/resilience"
)

// Rough token estimate used to reserve budget before a call resolves. The
// reservation is replaced by the actual cost on success and released on
// failure, so only the in-flight window is pessimistic.
const (
	estimatePromptOverhead = 64
	estimateOutputTokens   = 800
)

type orchestrator struct {
	clients  map[string]providers.Client
	skipped  map[string]string
	cache    resilience.ResultCache
	budget   *resilience.BudgetTracker
	limiter  *resilience.RateLimiter
	breakers *resilience.BreakerGroup
	costs    CostService
	pipeline config.PipelineConfig
	logger   *zap.Logger
}

// NewOrchestratorService wires the provider adapters to the resilience
// layer. skipped records providers requested by the job but left
// unconfigured; the orchestrator reports them per query so the response
// count invariant holds.
func NewOrchestratorService(
	clients map[string]providers.Client,
	skipped map[string]string,
	cache resilience.ResultCache,
	budget *resilience.BudgetTracker,
	limiter *resilience.RateLimiter,
	breakers *resilience.BreakerGroup,
	costs CostService,
	pipeline config.PipelineConfig,
	logger *zap.Logger,
) OrchestratorService {
	return &orchestrator{
		clients:  clients,
		skipped:  skipped,
		cache:    cache,
		budget:   budget,
		limiter:  limiter,
		breakers: breakers,
		costs:    costs,
		pipeline: pipeline,
		logger:   logger.Named("Orchestrator"),
	}
}

func (o *orchestrator) Providers() []string {
	names := make([]string, 0, len(o.clients))
	for name := range o.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *orchestrator) Skipped() map[string]string {
	return o.skipped
}

// cacheOptions is the option set serialized into the cache key. Two calls
// share an entry only when provider and model both match.
type cacheOptions struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ExecuteQuery fans the query out to every provider the job requested,
// concurrently, and returns exactly one response row per requested
// provider. Providers that could not be configured resolve to skipped
// rows so the response count invariant holds. A provider failure never
// aborts the query: it resolves to a failed or skipped row instead.
func (o *orchestrator) ExecuteQuery(ctx context.Context, job *models.AuditJob, query *models.Query) []*models.ProviderResponse {
	requested := []string(job.Providers)
	if len(requested) == 0 {
		requested = o.Providers()
	}

	var mu sync.Mutex
	responses := make([]*models.ProviderResponse, 0, len(requested))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, name := range requested {
		name = strings.ToLower(name)

		client, ok := o.clients[name]
		if !ok {
			reason, known := o.skipped[name]
			if !known {
				reason = "provider not configured"
			}
			// Goroutines for earlier providers may already be appending.
			mu.Lock()
			responses = append(responses, o.skippedResponse(job, query, name, "", reason))
			mu.Unlock()
			continue
		}

		group.Go(func() error {
			response := o.runProvider(groupCtx, job, query, client)
			mu.Lock()
			responses = append(responses, response)
			mu.Unlock()
			return nil
		})
	}
	group.Wait()

	sort.Slice(responses, func(i, j int) bool {
		return responses[i].Provider < responses[j].Provider
	})
	return responses
}

// runProvider resolves one (query, provider) pair to exactly one response
// row: cache check, budget reservation, rate limit, then the adapter call
// behind the circuit breaker with bounded retries.
func (o *orchestrator) runProvider(ctx context.Context, job *models.AuditJob, query *models.Query, client providers.Client) *models.ProviderResponse {
	provider := client.Name()
	model := client.Model()
	started := time.Now()

	if ctx.Err() != nil {
		return o.skippedResponse(job, query, provider, model, "job cancelled before dispatch")
	}

	key := resilience.CacheKey(query.Text, cacheOptions{Provider: provider, Model: model})
	if cached, hit, err := o.cache.Get(ctx, key); err == nil && hit {
		o.logger.Debug("cache hit",
			zap.String("provider", provider),
			zap.String("query_id", query.QueryID.String()))
		response := o.okResponse(job, query, provider, cached.Model, started)
		response.ResponseText = cached.Text
		response.InputTokens = cached.InputTokens
		response.OutputTokens = cached.OutputTokens
		response.CostUSD = cached.CostUSD
		response.Cached = true
		return response
	} else if err != nil {
		o.logger.Warn("cache lookup failed", zap.String("provider", provider), zap.Error(err))
	}

	webSearch := provider == providers.ProviderPerplexity
	estimate := o.costs.CalculateCost(provider, model,
		len(query.Text)/4+estimatePromptOverhead, estimateOutputTokens, webSearch)

	if err := o.budget.Reserve(provider, estimate); err != nil {
		o.logger.Warn("provider skipped over budget",
			zap.String("provider", provider),
			zap.String("job_id", job.AuditJobID.String()))
		return o.skippedResponse(job, query, provider, model, err.Error())
	}

	if err := o.limiter.Acquire(ctx, provider, o.pipeline.RateLimitWait); err != nil {
		o.budget.Release(provider, estimate)
		if ctx.Err() != nil {
			return o.skippedResponse(job, query, provider, model, "job cancelled before dispatch")
		}
		return o.skippedResponse(job, query, provider, model, err.Error())
	}

	result, err := o.callWithRetries(ctx, client, query.Text)
	if err != nil {
		o.budget.Release(provider, estimate)
		if ctx.Err() != nil {
			return o.skippedResponse(job, query, provider, model, "job cancelled during dispatch")
		}
		if errors.Is(err, resilience.ErrProviderUnavailable) {
			return o.skippedResponse(job, query, provider, model, err.Error())
		}
		o.logger.Warn("provider call failed",
			zap.String("provider", provider),
			zap.String("query_id", query.QueryID.String()),
			zap.Error(err))
		return o.failedResponse(job, query, provider, model, started, err.Error())
	}

	o.budget.Commit(provider, estimate, result.CostUSD)

	if err := o.cache.Set(ctx, key, &resilience.CachedResponse{
		Text:         result.Text,
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      result.CostUSD,
	}, o.pipeline.CacheTTL); err != nil {
		o.logger.Warn("cache write failed", zap.String("provider", provider), zap.Error(err))
	}

	response := o.okResponse(job, query, provider, result.Model, started)
	response.ResponseText = result.Text
	response.InputTokens = result.InputTokens
	response.OutputTokens = result.OutputTokens
	response.CostUSD = result.CostUSD
	return response
}

// callWithRetries runs the adapter through the provider's breaker with a
// per-call timeout and exponential backoff between attempts. An open
// breaker or a non-retryable error stops the attempt window early.
func (o *orchestrator) callWithRetries(ctx context.Context, client providers.Client, queryText string) (*providers.Response, error) {
	attempts := o.pipeline.MaxRetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var result *providers.Response
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := o.pipeline.RetryBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = o.breakers.Execute(client.Name(), func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.pipeline.ProviderTimeout)
			defer cancel()

			response, callErr := client.RunQuery(callCtx, queryText)
			if callErr != nil {
				return callErr
			}
			result = response
			return nil
		})
		if lastErr == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !resilience.Retryable(lastErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (o *orchestrator) okResponse(job *models.AuditJob, query *models.Query, provider, model string, started time.Time) *models.ProviderResponse {
	return &models.ProviderResponse{
		ResponseID: uuid.New(),
		QueryID:    query.QueryID,
		AuditJobID: job.AuditJobID,
		Provider:   provider,
		Model:      model,
		Status:     models.ResponseStatusOK,
		LatencyMs:  time.Since(started).Milliseconds(),
		CreatedAt:  time.Now(),
	}
}

func (o *orchestrator) failedResponse(job *models.AuditJob, query *models.Query, provider, model string, started time.Time, reason string) *models.ProviderResponse {
	return &models.ProviderResponse{
		ResponseID: uuid.New(),
		QueryID:    query.QueryID,
		AuditJobID: job.AuditJobID,
		Provider:   provider,
		Model:      model,
		Status:     models.ResponseStatusFailed,
		FailReason: &reason,
		LatencyMs:  time.Since(started).Milliseconds(),
		CreatedAt:  time.Now(),
	}
}

func (o *orchestrator) skippedResponse(job *models.AuditJob, query *models.Query, provider, model string, reason string) *models.ProviderResponse {
	return &models.ProviderResponse{
		ResponseID: uuid.New(),
		QueryID:    query.QueryID,
		AuditJobID: job.AuditJobID,
		Provider:   provider,
		Model:      model,
		Status:     models.ResponseStatusSkipped,
		FailReason: &reason,
		CreatedAt:  time.Now(),
	}
}
