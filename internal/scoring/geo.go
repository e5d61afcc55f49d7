// internal/scoring/geo.go
package scoring

import (
	"github.com/brandview-ai/brandview-workflows/internal/config"
	"github.com/brandview-ai/brandview-workflows/internal/models"
)

// Calculator turns response analyses into GEO and SOV scores. Weights,
// sentiment multipliers, and provider authority come from configuration:
// they are business tuning, not code.
type Calculator struct {
	cfg config.ScoringConfig
}

func NewCalculator(cfg config.ScoringConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// defaultAuthority applies to providers missing from the authority table.
const defaultAuthority = 50

// GEOScore computes the 0-100 visibility score for one response: a
// weighted combination of mention frequency, sentiment polarity, query
// relevance, first-mention position (earlier is higher), and the
// responding provider's source authority. Each factor is normalized to
// [0,100] before weighting and the result is clamped.
func (c *Calculator) GEOScore(analysis *models.ResponseAnalysis, provider string) float64 {
	frequency := clamp(float64(analysis.BrandMentionCount) * 25)

	sentiment := sentimentValue(analysis.Sentiment)
	if !analysis.BrandMentioned {
		sentiment = 0
	}

	relevance := clamp(analysis.Relevance)

	position := 0.0
	if analysis.BrandPositionPct != nil {
		position = clamp(100 - *analysis.BrandPositionPct)
	}

	authority, ok := c.cfg.ProviderAuthority[provider]
	if !ok {
		authority = defaultAuthority
	}
	authority = clamp(authority)

	weightSum := c.cfg.GEOWeightFrequency + c.cfg.GEOWeightSentiment +
		c.cfg.GEOWeightRelevance + c.cfg.GEOWeightPosition + c.cfg.GEOWeightAuthority
	if weightSum <= 0 {
		return 0
	}

	weighted := frequency*c.cfg.GEOWeightFrequency +
		sentiment*c.cfg.GEOWeightSentiment +
		relevance*c.cfg.GEOWeightRelevance +
		position*c.cfg.GEOWeightPosition +
		authority*c.cfg.GEOWeightAuthority

	return clamp(weighted / weightSum)
}

// sentimentValue maps a sentiment class onto a 0-100 polarity scale.
func sentimentValue(sentiment string) float64 {
	switch sentiment {
	case models.SentimentPositive:
		return 100
	case models.SentimentMixed:
		return 60
	case models.SentimentNeutral:
		return 50
	case models.SentimentNegative:
		return 20
	default:
		return 50
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
