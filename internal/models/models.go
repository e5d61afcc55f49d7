// internal/models/models.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Audit job lifecycle statuses. A job is terminal once it is completed,
// failed, or cancelled.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// Pipeline phases, in execution order.
const (
	PhaseGeneratingQueries  = "generating_queries"
	PhaseExecutingQueries   = "executing_queries"
	PhaseAnalyzingResponses = "analyzing_responses"
	PhaseCalculatingScores  = "calculating_scores"
	PhaseFinalizing         = "finalizing"
)

// PhaseWeights drives the 0-100 progress percentage reported at each phase
// boundary. Values sum to 100.
var PhaseWeights = map[string]float64{
	PhaseGeneratingQueries:  5,
	PhaseExecutingQueries:   60,
	PhaseAnalyzingResponses: 25,
	PhaseCalculatingScores:  10,
}

// Sentiment classifications assigned by the analyzer.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
	SentimentMixed    = "mixed"
)

// Provider response statuses. Skipped and failed rows are recorded
// explicitly so a response shortfall is always accounted for.
const (
	ResponseStatusOK      = "ok"
	ResponseStatusFailed  = "failed"
	ResponseStatusSkipped = "skipped"
)

// AuditJob is one scheduled audit run. Mutated only by the job processor
// that claimed it.
type AuditJob struct {
	AuditJobID      uuid.UUID      `db:"audit_job_id" json:"audit_job_id"`
	CompanyID       uuid.UUID      `db:"company_id" json:"company_id"`
	QueryCount      int            `db:"query_count" json:"query_count"`
	Providers       pq.StringArray `db:"providers" json:"providers"`
	Status          string         `db:"status" json:"status"`
	Phase           *string        `db:"phase" json:"phase,omitempty"`
	ErrorMessage    *string        `db:"error_message" json:"error_message,omitempty"`
	CancelRequested bool           `db:"cancel_requested" json:"cancel_requested"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	StartedAt       *time.Time     `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *AuditJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// Company is the audited company context read from the company data store.
type Company struct {
	CompanyID   uuid.UUID      `db:"company_id" json:"company_id"`
	Name        string         `db:"name" json:"name"`
	Domain      string         `db:"domain" json:"domain"`
	Industry    string         `db:"industry" json:"industry"`
	Competitors pq.StringArray `db:"competitors" json:"competitors"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Query is one generated search-style query. Immutable once stored.
type Query struct {
	QueryID    uuid.UUID `db:"query_id" json:"query_id"`
	AuditJobID uuid.UUID `db:"audit_job_id" json:"audit_job_id"`
	Text       string    `db:"text" json:"text"`
	Category   string    `db:"category" json:"category"`
	Intent     string    `db:"intent" json:"intent"`
	Priority   int       `db:"priority" json:"priority"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ProviderResponse is one provider's answer to one query. Created once per
// (query, provider) pair and never mutated; re-runs create new rows.
type ProviderResponse struct {
	ResponseID   uuid.UUID `db:"response_id" json:"response_id"`
	QueryID      uuid.UUID `db:"query_id" json:"query_id"`
	AuditJobID   uuid.UUID `db:"audit_job_id" json:"audit_job_id"`
	Provider     string    `db:"provider" json:"provider"`
	Model        string    `db:"model" json:"model"`
	ResponseText string    `db:"response_text" json:"response_text"`
	Status       string    `db:"status" json:"status"`
	FailReason   *string   `db:"fail_reason" json:"fail_reason,omitempty"`
	LatencyMs    int64     `db:"latency_ms" json:"latency_ms"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	CostUSD      float64   `db:"cost_usd" json:"cost_usd"`
	Cached       bool      `db:"cached" json:"cached"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CompetitorMention is one competitor found in a response text.
type CompetitorMention struct {
	Name        string   `json:"name"`
	Count       int      `json:"count"`
	PositionPct *float64 `json:"position_pct,omitempty"`
	Sentiment   string   `json:"sentiment"`
}

// CompetitorMentionList stores competitor mentions as a JSONB column.
type CompetitorMentionList []CompetitorMention

func (l CompetitorMentionList) Value() (driver.Value, error) {
	if l == nil {
		l = CompetitorMentionList{}
	}
	return json.Marshal(l)
}

func (l *CompetitorMentionList) Scan(src interface{}) error {
	if src == nil {
		*l = CompetitorMentionList{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into CompetitorMentionList", src)
	}
	return json.Unmarshal(b, l)
}

// ResponseAnalysis holds the analyzer output for exactly one provider
// response. Written once; immutable thereafter.
//
// BrandPositionPct is nil when the brand does not appear in the text.
// Zero means "mentioned in the very first characters" and is a distinct,
// valid value.
type ResponseAnalysis struct {
	AnalysisID         uuid.UUID             `db:"analysis_id" json:"analysis_id"`
	ResponseID         uuid.UUID             `db:"response_id" json:"response_id"`
	AuditJobID         uuid.UUID             `db:"audit_job_id" json:"audit_job_id"`
	BrandMentioned     bool                  `db:"brand_mentioned" json:"brand_mentioned"`
	BrandMentionCount  int                   `db:"brand_mention_count" json:"brand_mention_count"`
	BrandPositionPct   *float64              `db:"brand_position_pct" json:"brand_position_pct,omitempty"`
	Sentiment          string                `db:"sentiment" json:"sentiment"`
	Relevance          float64               `db:"relevance" json:"relevance"`
	CompetitorMentions CompetitorMentionList `db:"competitor_mentions" json:"competitor_mentions"`
	HasList            bool                  `db:"has_list" json:"has_list"`
	SourceCount        int                   `db:"source_count" json:"source_count"`
	GEOScore           float64               `db:"geo_score" json:"geo_score"`
	SOVScore           float64               `db:"sov_score" json:"sov_score"`
	CreatedAt          time.Time             `db:"created_at" json:"created_at"`
}

// CompetitorMentionTotal is the total number of competitor mentions across
// all tracked competitors in one analysis.
func (a *ResponseAnalysis) CompetitorMentionTotal() int {
	total := 0
	for _, m := range a.CompetitorMentions {
		total += m.Count
	}
	return total
}

// ProviderScore is the per-provider score subtotal retained for
// comparative reporting.
type ProviderScore struct {
	GEOScore      float64 `json:"geo_score"`
	SOVScore      float64 `json:"sov_score"`
	ResponseCount int     `json:"response_count"`
}

// ProviderScoreMap stores per-provider subtotals as a JSONB column.
type ProviderScoreMap map[string]ProviderScore

func (m ProviderScoreMap) Value() (driver.Value, error) {
	if m == nil {
		m = ProviderScoreMap{}
	}
	return json.Marshal(m)
}

func (m *ProviderScoreMap) Scan(src interface{}) error {
	if src == nil {
		*m = ProviderScoreMap{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ProviderScoreMap", src)
	}
	return json.Unmarshal(b, m)
}

// CompetitorStanding aggregates one competitor across all of a job's
// queries: shared-query overlap, average first-mention position, and
// head-to-head wins/losses against the target brand.
type CompetitorStanding struct {
	Name        string   `json:"name"`
	Overlap     int      `json:"overlap"`
	AvgPosition *float64 `json:"avg_position,omitempty"`
	Wins        int      `json:"wins"`
	Losses      int      `json:"losses"`
}

// CompetitorStandingList stores competitor standings as a JSONB column.
type CompetitorStandingList []CompetitorStanding

func (l CompetitorStandingList) Value() (driver.Value, error) {
	if l == nil {
		l = CompetitorStandingList{}
	}
	return json.Marshal(l)
}

func (l *CompetitorStandingList) Scan(src interface{}) error {
	if src == nil {
		*l = CompetitorStandingList{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into CompetitorStandingList", src)
	}
	return json.Unmarshal(b, l)
}

// AuditScoreSummary aggregates all of a job's analyses. One per job,
// computed at finalization.
type AuditScoreSummary struct {
	SummaryID           uuid.UUID              `db:"summary_id" json:"summary_id"`
	AuditJobID          uuid.UUID              `db:"audit_job_id" json:"audit_job_id"`
	GEOScore            float64                `db:"geo_score" json:"geo_score"`
	SOVScore            float64                `db:"sov_score" json:"sov_score"`
	VisibilityScore     float64                `db:"visibility_score" json:"visibility_score"`
	SentimentScore      float64                `db:"sentiment_score" json:"sentiment_score"`
	RecommendationScore float64                `db:"recommendation_score" json:"recommendation_score"`
	ResponseCount       int                    `db:"response_count" json:"response_count"`
	FailedCount         int                    `db:"failed_count" json:"failed_count"`
	SkippedCount        int                    `db:"skipped_count" json:"skipped_count"`
	ProviderScores      ProviderScoreMap       `db:"provider_scores" json:"provider_scores"`
	CompetitorStandings CompetitorStandingList `db:"competitor_standings" json:"competitor_standings"`
	CreatedAt           time.Time              `db:"created_at" json:"created_at"`
}

// ProgressEvent is one job-progress notification pushed to subscribers.
type ProgressEvent struct {
	JobID      uuid.UUID `json:"jobId"`
	Phase      string    `json:"phase"`
	Percentage float64   `json:"percentage"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
