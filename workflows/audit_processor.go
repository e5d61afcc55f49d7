// workflows/audit_processor.go
package workflows

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/brandview-ai/brandview-workflows/internal/analyzer"
	"github.com/brandview-ai/brandview-workflows/internal/config"
	"github.com/brandview-ai/brandview-workflows/internal/models"
	"github.com/brandview-ai/brandview-workflows/internal/scoring"
	"github.com/brandview-ai/brandview-workflows/services"
)

// AuditProcessor drives one claimed audit job through the phase state
// machine: generating_queries → executing_queries → analyzing_responses →
// calculating_scores → finalizing. Each phase persists its output before
// the next begins, so a crash leaves a resumable trail rather than a
// half-written mystery. The processor is the job's single writer.
type AuditProcessor struct {
	jobs      services.AuditJobStore
	companies services.CompanyStore
	queries   services.QueryStore
	responses services.ResponseStore
	analyses  services.AnalysisStore
	summaries services.SummaryStore

	generator    services.QueryGeneratorService
	orchestrator services.OrchestratorService
	analyzer     *analyzer.Analyzer
	calculator   *scoring.Calculator
	progress     services.ProgressService
	notifier     services.NotifierService

	pipeline config.PipelineConfig
	logger   *zap.Logger
}

// NewAuditProcessor wires the processor. All collaborators are required
// except the notifier, which may be a no-op.
func NewAuditProcessor(
	jobs services.AuditJobStore,
	companies services.CompanyStore,
	queries services.QueryStore,
	responses services.ResponseStore,
	analyses services.AnalysisStore,
	summaries services.SummaryStore,
	generator services.QueryGeneratorService,
	orchestrator services.OrchestratorService,
	responseAnalyzer *analyzer.Analyzer,
	calculator *scoring.Calculator,
	progress services.ProgressService,
	notifier services.NotifierService,
	pipeline config.PipelineConfig,
	logger *zap.Logger,
) *AuditProcessor {
	return &AuditProcessor{
		jobs:         jobs,
		companies:    companies,
		queries:      queries,
		responses:    responses,
		analyses:     analyses,
		summaries:    summaries,
		generator:    generator,
		orchestrator: orchestrator,
		analyzer:     responseAnalyzer,
		calculator:   calculator,
		progress:     progress,
		notifier:     notifier,
		pipeline:     pipeline,
		logger:       logger.Named("AuditProcessor"),
	}
}

// ProcessAudit runs one claimed job to a terminal state. The returned
// error is non-nil only for unrecoverable failures; cancellation and
// partial provider failure resolve to terminal states without an error.
func (p *AuditProcessor) ProcessAudit(ctx context.Context, job *models.AuditJob) error {
	logger := p.logger.With(zap.String("job_id", job.AuditJobID.String()))
	logger.Info("processing audit job",
		zap.String("company_id", job.CompanyID.String()),
		zap.Int("query_count", job.QueryCount))

	company, err := p.companies.GetByID(ctx, job.CompanyID)
	if err != nil {
		return p.failJob(ctx, job, fmt.Errorf("load company: %w", err))
	}

	if cancelled, err := p.cancelled(ctx, job); err != nil {
		return p.failJob(ctx, job, err)
	} else if cancelled {
		return p.cancelJob(ctx, job, models.PhaseGeneratingQueries)
	}

	// Phase 1: query generation.
	if err := p.enterPhase(ctx, job, models.PhaseGeneratingQueries, 0); err != nil {
		return p.failJob(ctx, job, err)
	}
	generated, err := p.generator.GenerateQueries(ctx, job, company)
	if err != nil {
		return p.failJob(ctx, job, fmt.Errorf("generate queries: %w", err))
	}
	if err := p.queries.BulkCreate(ctx, generated); err != nil {
		return p.failJob(ctx, job, fmt.Errorf("persist queries: %w", err))
	}
	logger.Info("queries generated", zap.Int("count", len(generated)))

	// Phase 2: provider execution.
	if err := p.enterPhase(ctx, job, models.PhaseExecutingQueries, 5); err != nil {
		return p.failJob(ctx, job, err)
	}
	collected, cancelled, err := p.executeQueries(ctx, job, generated)
	if err != nil {
		return p.failJob(ctx, job, err)
	}
	if cancelled {
		return p.cancelJob(ctx, job, models.PhaseExecutingQueries)
	}

	// Phase 3: response analysis.
	if err := p.enterPhase(ctx, job, models.PhaseAnalyzingResponses, 65); err != nil {
		return p.failJob(ctx, job, err)
	}
	if cancelled, err := p.cancelled(ctx, job); err != nil {
		return p.failJob(ctx, job, err)
	} else if cancelled {
		return p.cancelJob(ctx, job, models.PhaseAnalyzingResponses)
	}

	queryText := make(map[uuid.UUID]string, len(generated))
	for _, query := range generated {
		queryText[query.QueryID] = query.Text
	}

	jobAnalyses := make([]*models.ResponseAnalysis, 0, len(collected))
	scored := make([]scoring.ScoredResponse, 0, len(collected))
	for _, response := range collected {
		if response.Status != models.ResponseStatusOK {
			continue
		}
		analysis := p.analyzer.Analyze(analyzer.Input{
			ResponseText: response.ResponseText,
			QueryText:    queryText[response.QueryID],
			BrandName:    company.Name,
			BrandDomain:  company.Domain,
			Competitors:  company.Competitors,
		})
		analysis.AnalysisID = uuid.New()
		analysis.ResponseID = response.ResponseID
		analysis.AuditJobID = job.AuditJobID
		analysis.GEOScore = p.calculator.GEOScore(analysis, response.Provider)
		analysis.SOVScore = p.calculator.SOVScore(analysis)
		analysis.CreatedAt = time.Now()

		jobAnalyses = append(jobAnalyses, analysis)
		scored = append(scored, scoring.ScoredResponse{Provider: response.Provider, Analysis: analysis})
	}
	if err := p.analyses.BulkCreate(ctx, jobAnalyses); err != nil {
		return p.failJob(ctx, job, fmt.Errorf("persist analyses: %w", err))
	}
	logger.Info("responses analyzed", zap.Int("analyzed", len(jobAnalyses)))

	// Phase 4: score aggregation.
	if err := p.enterPhase(ctx, job, models.PhaseCalculatingScores, 90); err != nil {
		return p.failJob(ctx, job, err)
	}
	if cancelled, err := p.cancelled(ctx, job); err != nil {
		return p.failJob(ctx, job, err)
	} else if cancelled {
		return p.cancelJob(ctx, job, models.PhaseCalculatingScores)
	}

	aggregate := p.calculator.Aggregate(scored)
	summary := p.buildSummary(job, aggregate, collected)

	// Phase 5: finalize.
	if err := p.enterPhase(ctx, job, models.PhaseFinalizing, 100); err != nil {
		return p.failJob(ctx, job, err)
	}
	if err := p.summaries.Create(ctx, summary); err != nil {
		return p.failJob(ctx, job, fmt.Errorf("persist score summary: %w", err))
	}
	if err := p.jobs.Finish(ctx, job.AuditJobID, models.JobStatusCompleted, nil); err != nil {
		return p.failJob(ctx, job, fmt.Errorf("complete job: %w", err))
	}

	p.publish(ctx, job, models.JobStatusCompleted, 100, "")
	p.progress.CloseJob(job.AuditJobID)

	if err := p.notifier.NotifyCompletion(ctx, &services.CompletionNotification{
		AuditJobID:      job.AuditJobID,
		CompanyID:       job.CompanyID,
		GEOScore:        summary.GEOScore,
		SOVScore:        summary.SOVScore,
		VisibilityScore: summary.VisibilityScore,
		ResponseCount:   summary.ResponseCount,
		CompletedAt:     time.Now(),
	}); err != nil {
		logger.Warn("completion notification failed", zap.Error(err))
	}

	logger.Info("audit job completed",
		zap.Float64("geo_score", summary.GEOScore),
		zap.Float64("visibility_score", summary.VisibilityScore),
		zap.Int("response_count", summary.ResponseCount))
	return nil
}

// executeQueries dispatches queries under the concurrency bound, streaming
// response rows to a dedicated persistence pool so store latency never
// stalls the dispatch loop. It stops dispatching (but drains in-flight
// work) when cancellation is requested.
func (p *AuditProcessor) executeQueries(ctx context.Context, job *models.AuditJob, generated []*models.Query) ([]*models.ProviderResponse, bool, error) {
	concurrency := int64(p.pipeline.QueryConcurrency)
	if concurrency <= 0 {
		concurrency = 1
	}

	persistWorkers := p.pipeline.PersistWorkers
	if persistWorkers <= 0 {
		persistWorkers = 1
	}

	persistCh := make(chan *models.ProviderResponse, persistWorkers*4)
	var persistWg sync.WaitGroup
	var persistErrOnce sync.Once
	var persistErr error

	for i := 0; i < persistWorkers; i++ {
		persistWg.Add(1)
		go func() {
			defer persistWg.Done()
			for response := range persistCh {
				if err := p.responses.Create(ctx, response); err != nil {
					persistErrOnce.Do(func() { persistErr = err })
				}
			}
		}()
	}

	sem := semaphore.NewWeighted(concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	collected := make([]*models.ProviderResponse, 0, len(generated)*2)

	total := len(generated)
	var done int

	cancelled := false
	var dispatchErr error
	for _, query := range generated {
		flag, err := p.cancelled(ctx, job)
		if err != nil {
			dispatchErr = err
			break
		}
		if flag {
			cancelled = true
			break
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			cancelled = true
			break
		}

		wg.Add(1)
		go func(query *models.Query) {
			defer wg.Done()
			defer sem.Release(1)

			rows := p.orchestrator.ExecuteQuery(ctx, job, query)

			mu.Lock()
			collected = append(collected, rows...)
			done++
			percentage := 5 + models.PhaseWeights[models.PhaseExecutingQueries]*float64(done)/float64(total)
			mu.Unlock()

			for _, row := range rows {
				persistCh <- row
			}
			p.publish(ctx, job, models.PhaseExecutingQueries, percentage, "")
		}(query)
	}

	wg.Wait()
	close(persistCh)
	persistWg.Wait()

	if dispatchErr != nil {
		return nil, false, dispatchErr
	}
	if persistErr != nil {
		return nil, false, fmt.Errorf("persist provider responses: %w", persistErr)
	}
	return collected, cancelled, nil
}

func (p *AuditProcessor) buildSummary(job *models.AuditJob, aggregate *scoring.Aggregate, collected []*models.ProviderResponse) *models.AuditScoreSummary {
	var okCount, failedCount, skippedCount int
	for _, response := range collected {
		switch response.Status {
		case models.ResponseStatusOK:
			okCount++
		case models.ResponseStatusFailed:
			failedCount++
		case models.ResponseStatusSkipped:
			skippedCount++
		}
	}

	return &models.AuditScoreSummary{
		SummaryID:           uuid.New(),
		AuditJobID:          job.AuditJobID,
		GEOScore:            aggregate.GEOScore,
		SOVScore:            aggregate.SOVScore,
		VisibilityScore:     aggregate.VisibilityScore,
		SentimentScore:      aggregate.SentimentScore,
		RecommendationScore: aggregate.RecommendationScore,
		ResponseCount:       okCount,
		FailedCount:         failedCount,
		SkippedCount:        skippedCount,
		ProviderScores:      aggregate.ProviderScores,
		CompetitorStandings: aggregate.CompetitorStandings,
		CreatedAt:           time.Now(),
	}
}

// enterPhase persists the phase transition and reports the cumulative
// progress of the phases already completed.
func (p *AuditProcessor) enterPhase(ctx context.Context, job *models.AuditJob, phase string, percentage float64) error {
	if err := p.jobs.SetPhase(ctx, job.AuditJobID, phase); err != nil {
		return fmt.Errorf("enter phase %s: %w", phase, err)
	}
	p.publish(ctx, job, phase, percentage, "")
	return nil
}

func (p *AuditProcessor) cancelled(ctx context.Context, job *models.AuditJob) (bool, error) {
	if ctx.Err() != nil {
		return true, nil
	}
	flag, err := p.jobs.CancelRequested(ctx, job.AuditJobID)
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag, nil
}

// cancelJob resolves a cooperative cancellation: terminal status, final
// event, stream teardown. Cancellation is not an error.
func (p *AuditProcessor) cancelJob(ctx context.Context, job *models.AuditJob, phase string) error {
	p.logger.Info("audit job cancelled",
		zap.String("job_id", job.AuditJobID.String()),
		zap.String("phase", phase))

	if err := p.jobs.Finish(ctx, job.AuditJobID, models.JobStatusCancelled, nil); err != nil {
		p.logger.Error("failed to mark job cancelled",
			zap.String("job_id", job.AuditJobID.String()), zap.Error(err))
	}
	p.publish(ctx, job, models.JobStatusCancelled, 0, "")
	p.progress.CloseJob(job.AuditJobID)
	return nil
}

// failJob resolves an unrecoverable error: terminal status with the
// human-readable cause, error event, stream teardown.
func (p *AuditProcessor) failJob(ctx context.Context, job *models.AuditJob, cause error) error {
	p.logger.Error("audit job failed",
		zap.String("job_id", job.AuditJobID.String()),
		zap.Error(cause))

	message := cause.Error()
	if err := p.jobs.Finish(ctx, job.AuditJobID, models.JobStatusFailed, &message); err != nil {
		p.logger.Error("failed to mark job failed",
			zap.String("job_id", job.AuditJobID.String()), zap.Error(err))
	}
	p.publish(ctx, job, models.JobStatusFailed, 0, message)
	p.progress.CloseJob(job.AuditJobID)
	return cause
}

func (p *AuditProcessor) publish(ctx context.Context, job *models.AuditJob, phase string, percentage float64, errorMessage string) {
	p.progress.Publish(ctx, models.ProgressEvent{
		JobID:      job.AuditJobID,
		Phase:      phase,
		Percentage: percentage,
		Error:      errorMessage,
		Timestamp:  time.Now(),
	})
}
