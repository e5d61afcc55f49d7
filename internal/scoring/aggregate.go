// internal/scoring/aggregate.go
package scoring

import "github.com/brandview-ai/brandview-workflows/internal/models"

// ScoredResponse pairs an analysis with the provider that produced it.
type ScoredResponse struct {
	Provider string
	Analysis *models.ResponseAnalysis
}

// Aggregate is the job-level roll-up over all analyzed responses.
type Aggregate struct {
	GEOScore            float64
	SOVScore            float64
	VisibilityScore     float64
	SentimentScore      float64
	RecommendationScore float64
	ProviderScores      models.ProviderScoreMap
	CompetitorStandings models.CompetitorStandingList
}

// Visibility blend. GEO carries most of the signal; SOV and raw mention
// rate keep a brand that dominates few answers from outranking one that
// shows up everywhere.
const (
	visibilityGEOShare     = 0.5
	visibilitySOVShare     = 0.3
	visibilityMentionShare = 0.2
)

// Aggregate rolls per-response scores into the job summary. Job-level GEO
// and SOV are arithmetic means over all per-response scores; per-provider
// subtotals are retained for comparative reporting. An empty input yields
// a zero aggregate.
func (c *Calculator) Aggregate(responses []ScoredResponse) *Aggregate {
	aggregate := &Aggregate{
		ProviderScores:      models.ProviderScoreMap{},
		CompetitorStandings: models.CompetitorStandingList{},
	}
	if len(responses) == 0 {
		return aggregate
	}

	var geoSum, sovSum, sentimentSum float64
	mentioned := 0
	recommended := 0

	providerTotals := map[string]*models.ProviderScore{}

	for _, item := range responses {
		analysis := item.Analysis

		geoSum += analysis.GEOScore
		sovSum += analysis.SOVScore

		if analysis.BrandMentioned {
			mentioned++
			sentimentSum += sentimentValue(analysis.Sentiment)
			if analysis.HasList {
				recommended++
			}
		}

		totals, ok := providerTotals[item.Provider]
		if !ok {
			totals = &models.ProviderScore{}
			providerTotals[item.Provider] = totals
		}
		totals.GEOScore += analysis.GEOScore
		totals.SOVScore += analysis.SOVScore
		totals.ResponseCount++
	}

	count := float64(len(responses))
	aggregate.GEOScore = clamp(geoSum / count)
	aggregate.SOVScore = clamp(sovSum / count)

	mentionRate := float64(mentioned) / count * 100
	aggregate.VisibilityScore = clamp(
		aggregate.GEOScore*visibilityGEOShare +
			aggregate.SOVScore*visibilitySOVShare +
			mentionRate*visibilityMentionShare)

	if mentioned > 0 {
		aggregate.SentimentScore = clamp(sentimentSum / float64(mentioned))
		aggregate.RecommendationScore = clamp(float64(recommended) / float64(mentioned) * 100)
	}

	for provider, totals := range providerTotals {
		n := float64(totals.ResponseCount)
		aggregate.ProviderScores[provider] = models.ProviderScore{
			GEOScore:      clamp(totals.GEOScore / n),
			SOVScore:      clamp(totals.SOVScore / n),
			ResponseCount: totals.ResponseCount,
		}
	}

	aggregate.CompetitorStandings = competitorStandings(responses)
	return aggregate
}
