// internal/scoring/sov.go
package scoring

import "github.com/brandview-ai/brandview-workflows/internal/models"

// SOVScore computes share of voice for one response as a percentage:
// brand mentions over brand plus competitor mentions, with each side's
// mentions scaled by the configured sentiment multiplier. A response with
// no mentions of anything scores exactly 0, never NaN.
func (c *Calculator) SOVScore(analysis *models.ResponseAnalysis) float64 {
	brandRaw := float64(analysis.BrandMentionCount)
	brandWeighted := brandRaw * c.multiplier(analysis.Sentiment)

	competitorWeighted := 0.0
	competitorRaw := 0.0
	for _, mention := range analysis.CompetitorMentions {
		competitorRaw += float64(mention.Count)
		competitorWeighted += float64(mention.Count) * c.multiplier(mention.Sentiment)
	}

	if brandRaw == 0 && competitorRaw == 0 {
		return 0
	}

	total := brandWeighted + competitorWeighted
	if total <= 0 {
		return 0
	}
	return clamp(brandWeighted / total * 100)
}

func (c *Calculator) multiplier(sentiment string) float64 {
	switch sentiment {
	case models.SentimentPositive:
		return c.cfg.SOVPositiveMultiplier
	case models.SentimentNegative:
		return c.cfg.SOVNegativeMultiplier
	default:
		return c.cfg.SOVNeutralMultiplier
	}
}
