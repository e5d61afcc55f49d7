// workflows/audit_processor_test.go
package workflows

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brandview-ai/brandview-workflows/internal/analyzer"
	"github.com/brandview-ai/brandview-workflows/internal/config"
	"github.com/brandview-ai/brandview-workflows/internal/models"
	"github.com/brandview-ai/brandview-workflows/internal/scoring"
	"github.com/brandview-ai/brandview-workflows/internal/store"
	"github.com/brandview-ai/brandview-workflows/services"
)

// In-memory fakes for the store contracts.

type fakeJobStore struct {
	mu           sync.Mutex
	jobs         map[uuid.UUID]*models.AuditJob
	queue        []*models.AuditJob
	phases       []string
	cancelAfter  int // CancelRequested reads before the flag flips; -1 never
	cancelChecks int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[uuid.UUID]*models.AuditJob{}, cancelAfter: -1}
}

func (s *fakeJobStore) add(job *models.AuditJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.AuditJobID] = job
	if job.Status == models.JobStatusQueued {
		s.queue = append(s.queue, job)
	}
}

func (s *fakeJobStore) GetByID(_ context.Context, jobID uuid.UUID) (*models.AuditJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job, nil
}

func (s *fakeJobStore) ClaimNextQueued(_ context.Context) (*models.AuditJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, store.ErrNotFound
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	job.Status = models.JobStatusProcessing
	return job, nil
}

func (s *fakeJobStore) SetPhase(_ context.Context, jobID uuid.UUID, phase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = append(s.phases, phase)
	if job, ok := s.jobs[jobID]; ok {
		job.Phase = &phase
	}
	return nil
}

func (s *fakeJobStore) Finish(_ context.Context, jobID uuid.UUID, status string, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobID]; ok {
		job.Status = status
		job.ErrorMessage = errorMessage
	}
	return nil
}

func (s *fakeJobStore) CancelRequested(_ context.Context, jobID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelChecks++
	return s.cancelAfter >= 0 && s.cancelChecks > s.cancelAfter, nil
}

func (s *fakeJobStore) recordedPhases() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.phases...)
}

type fakeCompanyStore struct {
	company *models.Company
}

func (s *fakeCompanyStore) GetByID(_ context.Context, companyID uuid.UUID) (*models.Company, error) {
	if s.company == nil {
		return nil, store.ErrNotFound
	}
	return s.company, nil
}

type fakeQueryStore struct {
	mu      sync.Mutex
	queries []*models.Query
}

func (s *fakeQueryStore) BulkCreate(_ context.Context, queries []*models.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, queries...)
	return nil
}

func (s *fakeQueryStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]*models.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Query(nil), s.queries...), nil
}

type fakeResponseStore struct {
	mu        sync.Mutex
	responses []*models.ProviderResponse
	createErr error
}

func (s *fakeResponseStore) Create(_ context.Context, response *models.ProviderResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.responses = append(s.responses, response)
	return nil
}

func (s *fakeResponseStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]*models.ProviderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.ProviderResponse(nil), s.responses...), nil
}

func (s *fakeResponseStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

type fakeAnalysisStore struct {
	mu       sync.Mutex
	analyses []*models.ResponseAnalysis
}

func (s *fakeAnalysisStore) BulkCreate(_ context.Context, analyses []*models.ResponseAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses = append(s.analyses, analyses...)
	return nil
}

type fakeSummaryStore struct {
	mu      sync.Mutex
	summary *models.AuditScoreSummary
}

func (s *fakeSummaryStore) Create(_ context.Context, summary *models.AuditScoreSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
	return nil
}

// fakeOrchestrator resolves every (query, provider) pair via a scriptable
// function, mirroring the real orchestrator's contract.
type fakeOrchestrator struct {
	providers []string
	execute   func(job *models.AuditJob, query *models.Query, provider string) *models.ProviderResponse
}

func (o *fakeOrchestrator) ExecuteQuery(_ context.Context, job *models.AuditJob, query *models.Query) []*models.ProviderResponse {
	responses := make([]*models.ProviderResponse, 0, len(o.providers))
	for _, provider := range o.providers {
		responses = append(responses, o.execute(job, query, provider))
	}
	return responses
}

func (o *fakeOrchestrator) Providers() []string { return o.providers }

func (o *fakeOrchestrator) Skipped() map[string]string { return nil }

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []*services.CompletionNotification
}

func (n *fakeNotifier) NotifyCompletion(_ context.Context, notification *services.CompletionNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return nil
}

type failingGenerator struct{}

func (failingGenerator) GenerateQueries(context.Context, *models.AuditJob, *models.Company) ([]*models.Query, error) {
	return nil, errors.New("llm unavailable")
}

// Fixture wiring.

type processorFixture struct {
	jobs      *fakeJobStore
	companies *fakeCompanyStore
	queries   *fakeQueryStore
	responses *fakeResponseStore
	analyses  *fakeAnalysisStore
	summaries *fakeSummaryStore
	notifier  *fakeNotifier
	progress  services.ProgressService
	processor *AuditProcessor
	job       *models.AuditJob
}

func okExecution(job *models.AuditJob, query *models.Query, provider string) *models.ProviderResponse {
	return &models.ProviderResponse{
		ResponseID:   uuid.New(),
		QueryID:      query.QueryID,
		AuditJobID:   job.AuditJobID,
		Provider:     provider,
		Model:        provider + "-model",
		ResponseText: "Acme is a strong choice for project tracking. YCorp is also popular with larger teams.",
		Status:       models.ResponseStatusOK,
		InputTokens:  20,
		OutputTokens: 80,
		CostUSD:      0.002,
		CreatedAt:    time.Now(),
	}
}

func failedExecution(job *models.AuditJob, query *models.Query, provider string) *models.ProviderResponse {
	reason := "upstream 500"
	return &models.ProviderResponse{
		ResponseID: uuid.New(),
		QueryID:    query.QueryID,
		AuditJobID: job.AuditJobID,
		Provider:   provider,
		Status:     models.ResponseStatusFailed,
		FailReason: &reason,
		CreatedAt:  time.Now(),
	}
}

func newProcessorFixture(queryCount int, execute func(*models.AuditJob, *models.Query, string) *models.ProviderResponse) *processorFixture {
	logger := zap.NewNop()
	cfg := config.Load()

	company := &models.Company{
		CompanyID:   uuid.New(),
		Name:        "Acme",
		Domain:      "acme.com",
		Industry:    "Project Management",
		Competitors: []string{"YCorp", "ZCorp"},
	}
	job := &models.AuditJob{
		AuditJobID: uuid.New(),
		CompanyID:  company.CompanyID,
		QueryCount: queryCount,
		Providers:  []string{"openai", "anthropic"},
		Status:     models.JobStatusProcessing,
		CreatedAt:  time.Now(),
	}

	fixture := &processorFixture{
		jobs:      newFakeJobStore(),
		companies: &fakeCompanyStore{company: company},
		queries:   &fakeQueryStore{},
		responses: &fakeResponseStore{},
		analyses:  &fakeAnalysisStore{},
		summaries: &fakeSummaryStore{},
		notifier:  &fakeNotifier{},
		progress:  services.NewProgressService(nil, logger),
		job:       job,
	}
	fixture.jobs.jobs[job.AuditJobID] = job

	pipeline := cfg.Pipeline
	pipeline.QueryConcurrency = 2
	pipeline.PersistWorkers = 2

	fixture.processor = NewAuditProcessor(
		fixture.jobs,
		fixture.companies,
		fixture.queries,
		fixture.responses,
		fixture.analyses,
		fixture.summaries,
		services.NewQueryGeneratorService(&config.Config{}, services.NewCostService(), nil, logger),
		&fakeOrchestrator{providers: []string{"openai", "anthropic"}, execute: execute},
		analyzer.New(10),
		scoring.NewCalculator(cfg.Scoring),
		fixture.progress,
		fixture.notifier,
		pipeline,
		logger,
	)
	return fixture
}

func TestProcessAuditCompletes(t *testing.T) {
	fixture := newProcessorFixture(3, okExecution)
	events := fixture.progress.Subscribe(fixture.job.AuditJobID)

	err := fixture.processor.ProcessAudit(context.Background(), fixture.job)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, fixture.job.Status)
	assert.Nil(t, fixture.job.ErrorMessage)

	assert.Equal(t, []string{
		models.PhaseGeneratingQueries,
		models.PhaseExecutingQueries,
		models.PhaseAnalyzingResponses,
		models.PhaseCalculatingScores,
		models.PhaseFinalizing,
	}, fixture.jobs.recordedPhases())

	// 3 queries x 2 providers, every row persisted.
	assert.Equal(t, 6, fixture.responses.count())
	assert.Len(t, fixture.analyses.analyses, 6)

	summary := fixture.summaries.summary
	require.NotNil(t, summary)
	assert.Equal(t, fixture.job.AuditJobID, summary.AuditJobID)
	assert.Equal(t, 6, summary.ResponseCount)
	assert.Equal(t, 0, summary.FailedCount)
	assert.Equal(t, 0, summary.SkippedCount)
	assert.Greater(t, summary.GEOScore, 0.0)
	assert.Greater(t, summary.VisibilityScore, 0.0)
	require.Contains(t, summary.ProviderScores, "openai")
	assert.Equal(t, 3, summary.ProviderScores["openai"].ResponseCount)

	require.Len(t, fixture.notifier.notifications, 1)
	assert.Equal(t, fixture.job.AuditJobID, fixture.notifier.notifications[0].AuditJobID)

	// The event stream ends at terminal state with the channel closed.
	var last models.ProgressEvent
	for event := range events {
		last = event
	}
	assert.Equal(t, models.JobStatusCompleted, last.Phase)
	assert.Equal(t, 100.0, last.Percentage)
}

func TestProcessAuditCancelledMidExecution(t *testing.T) {
	fixture := newProcessorFixture(4, okExecution)
	// First check passes at job start, second passes for the first query,
	// the third (second query) observes the flag.
	fixture.jobs.cancelAfter = 2

	err := fixture.processor.ProcessAudit(context.Background(), fixture.job)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCancelled, fixture.job.Status)
	assert.Nil(t, fixture.job.ErrorMessage)
	assert.Nil(t, fixture.summaries.summary)
	assert.Empty(t, fixture.notifier.notifications)

	// The first query was in flight and drained; later queries never
	// dispatched.
	assert.Equal(t, 2, fixture.responses.count())

	phases := fixture.jobs.recordedPhases()
	assert.Contains(t, phases, models.PhaseExecutingQueries)
	assert.NotContains(t, phases, models.PhaseAnalyzingResponses)
}

func TestProcessAuditCancelledBeforeStart(t *testing.T) {
	fixture := newProcessorFixture(3, okExecution)
	fixture.jobs.cancelAfter = 0

	err := fixture.processor.ProcessAudit(context.Background(), fixture.job)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCancelled, fixture.job.Status)
	assert.Empty(t, fixture.queries.queries)
	assert.Equal(t, 0, fixture.responses.count())
}

func TestProcessAuditPartialProviderFailure(t *testing.T) {
	execute := func(job *models.AuditJob, query *models.Query, provider string) *models.ProviderResponse {
		if provider == "anthropic" {
			return failedExecution(job, query, provider)
		}
		return okExecution(job, query, provider)
	}
	fixture := newProcessorFixture(3, execute)

	err := fixture.processor.ProcessAudit(context.Background(), fixture.job)
	require.NoError(t, err)

	// Partial provider failure still completes the audit with the
	// shortfall accounted for.
	assert.Equal(t, models.JobStatusCompleted, fixture.job.Status)

	summary := fixture.summaries.summary
	require.NotNil(t, summary)
	assert.Equal(t, 3, summary.ResponseCount)
	assert.Equal(t, 3, summary.FailedCount)
	assert.Len(t, fixture.analyses.analyses, 3)
	assert.NotContains(t, summary.ProviderScores, "anthropic")
}

func TestProcessAuditGeneratorFailureFailsJob(t *testing.T) {
	fixture := newProcessorFixture(3, okExecution)
	fixture.processor.generator = failingGenerator{}

	err := fixture.processor.ProcessAudit(context.Background(), fixture.job)
	require.Error(t, err)

	assert.Equal(t, models.JobStatusFailed, fixture.job.Status)
	require.NotNil(t, fixture.job.ErrorMessage)
	assert.Contains(t, *fixture.job.ErrorMessage, "generate queries")
	assert.Empty(t, fixture.notifier.notifications)
}

func TestProcessAuditPersistenceFailureFailsJob(t *testing.T) {
	fixture := newProcessorFixture(2, okExecution)
	fixture.responses.createErr = errors.New("connection reset")

	err := fixture.processor.ProcessAudit(context.Background(), fixture.job)
	require.Error(t, err)

	assert.Equal(t, models.JobStatusFailed, fixture.job.Status)
	require.NotNil(t, fixture.job.ErrorMessage)
	assert.Contains(t, *fixture.job.ErrorMessage, "persist provider responses")
}

func TestWorkerDrainsQueue(t *testing.T) {
	fixture := newProcessorFixture(2, okExecution)

	queued := &models.AuditJob{
		AuditJobID: fixture.job.AuditJobID,
		CompanyID:  fixture.job.CompanyID,
		QueryCount: 2,
		Providers:  []string{"openai", "anthropic"},
		Status:     models.JobStatusQueued,
		CreatedAt:  time.Now(),
	}
	fixture.jobs.jobs[queued.AuditJobID] = queued
	fixture.jobs.queue = []*models.AuditJob{queued}

	worker := NewWorker(fixture.jobs, fixture.processor, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		fixture.jobs.mu.Lock()
		defer fixture.jobs.mu.Unlock()
		return queued.Status == models.JobStatusCompleted
	}, 400*time.Millisecond, 10*time.Millisecond)

	cancel()
	<-done
	assert.Empty(t, fixture.jobs.queue)
}
