package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

// buildText places marker at roughly pct percent through a text of the
// given length.
func buildText(prefixLen int, marker string, totalLen int) string {
	unit := "word "
	prefix := strings.Repeat(unit, prefixLen/len(unit))
	tailLen := totalLen - len(prefix) - len(marker)
	tail := strings.Repeat(unit, 1+tailLen/len(unit))[:tailLen]
	return prefix + marker + tail
}

func TestAnalyzeBrandAtTenPercentPositive(t *testing.T) {
	marker := "XCorp is the best and most recommended option. "
	text := buildText(30, marker, 300)

	analysis := New(10).Analyze(Input{
		ResponseText: text,
		QueryText:    "X pricing",
		BrandName:    "XCorp",
	})

	assert.True(t, analysis.BrandMentioned)
	require.NotNil(t, analysis.BrandPositionPct)
	assert.InDelta(t, 10, *analysis.BrandPositionPct, 1)
	assert.Equal(t, models.SentimentPositive, analysis.Sentiment)
}

func TestAnalyzeBrandAbsentPositionIsNil(t *testing.T) {
	analysis := New(10).Analyze(Input{
		ResponseText: "Plenty of tools exist for this problem, none named here.",
		QueryText:    "best tools",
		BrandName:    "XCorp",
	})

	assert.False(t, analysis.BrandMentioned)
	assert.Nil(t, analysis.BrandPositionPct, "absent brand must yield nil position, not zero")
	assert.Equal(t, 0, analysis.BrandMentionCount)
	assert.Equal(t, models.SentimentNeutral, analysis.Sentiment)
}

func TestAnalyzeBrandAtTextStartPositionIsZero(t *testing.T) {
	analysis := New(10).Analyze(Input{
		ResponseText: "XCorp ships a capable product used by many teams.",
		QueryText:    "X review",
		BrandName:    "XCorp",
	})

	assert.True(t, analysis.BrandMentioned)
	require.NotNil(t, analysis.BrandPositionPct, "position zero is a valid value distinct from not-found")
	assert.Equal(t, 0.0, *analysis.BrandPositionPct)
}

func TestAnalyzeSubdomainCountsAsBrandMention(t *testing.T) {
	analysis := New(10).Analyze(Input{
		ResponseText: "Their docs at https://blog.acme.com/pricing cover the plans in depth.",
		QueryText:    "acme pricing",
		BrandName:    "Acme Corporation",
		BrandDomain:  "https://www.acme.com/",
	})

	assert.True(t, analysis.BrandMentioned, "subdomain presence counts as a root-domain mention")
	assert.GreaterOrEqual(t, analysis.BrandMentionCount, 1)
}

func TestAnalyzeNameInsideDomainCountsOnce(t *testing.T) {
	analysis := New(10).Analyze(Input{
		ResponseText: "Acme is a solid pick. Compare plans at acme.com before deciding.",
		QueryText:    "acme plans",
		BrandName:    "Acme",
		BrandDomain:  "acme.com",
	})

	assert.True(t, analysis.BrandMentioned)
	// The name hit inside "acme.com" overlaps the domain hit; the pair
	// counts as one mention alongside the standalone "Acme".
	assert.Equal(t, 2, analysis.BrandMentionCount)
	require.NotNil(t, analysis.BrandPositionPct)
	assert.Equal(t, 0.0, *analysis.BrandPositionPct)
}

func TestAnalyzeEmptyAndMalformedResponses(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace only", text: "   \n\t  "},
		{name: "binary garbage", text: string([]byte{0x00, 0x01, 0xff, 0xfe})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := New(10).Analyze(Input{
				ResponseText: tt.text,
				QueryText:    "X pricing",
				BrandName:    "XCorp",
			})

			require.NotNil(t, analysis)
			assert.False(t, analysis.BrandMentioned)
			assert.Nil(t, analysis.BrandPositionPct)
			assert.Equal(t, models.SentimentNeutral, analysis.Sentiment)
			assert.Empty(t, analysis.CompetitorMentions)
		})
	}
}

func TestAnalyzeSentimentClassification(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "negative",
			text: "XCorp is unreliable and overpriced compared to alternatives.",
			want: models.SentimentNegative,
		},
		{
			name: "mixed",
			text: "XCorp has an excellent feature set but the pricing is expensive.",
			want: models.SentimentMixed,
		},
		{
			name: "neutral",
			text: "XCorp offers plans at several tiers for different team sizes.",
			want: models.SentimentNeutral,
		},
		{
			// "strong" inside "strongest" and "reliable" inside
			// "unreliable" must not register as lexicon hits.
			name: "embedded lexicon words",
			text: "XCorp is the strongest contender despite being unreliable at scale.",
			want: models.SentimentNegative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis := New(10).Analyze(Input{
				ResponseText: tt.text,
				QueryText:    "X pricing",
				BrandName:    "XCorp",
			})
			assert.Equal(t, tt.want, analysis.Sentiment)
		})
	}
}

func TestAnalyzeCompetitorMentions(t *testing.T) {
	text := "For this use case, YCorp is the strongest option. ZCorp also competes here, and YCorp keeps improving. XCorp trails both."

	analysis := New(10).Analyze(Input{
		ResponseText: text,
		QueryText:    "best option",
		BrandName:    "XCorp",
		Competitors:  []string{"YCorp", "ZCorp", "XCorp", "AbsentCo"},
	})

	require.Len(t, analysis.CompetitorMentions, 2, "brand itself and absent competitors are excluded")

	byName := map[string]models.CompetitorMention{}
	for _, m := range analysis.CompetitorMentions {
		byName[m.Name] = m
	}

	require.Contains(t, byName, "YCorp")
	assert.Equal(t, 2, byName["YCorp"].Count)
	require.NotNil(t, byName["YCorp"].PositionPct)

	require.Contains(t, byName, "ZCorp")
	assert.Equal(t, 1, byName["ZCorp"].Count)

	assert.Equal(t, 3, analysis.CompetitorMentionTotal())
}

func TestAnalyzeCompetitorCap(t *testing.T) {
	text := "ACo BCo CCo DCo all appear here."

	analysis := New(2).Analyze(Input{
		ResponseText: text,
		QueryText:    "tools",
		BrandName:    "XCorp",
		Competitors:  []string{"ACo", "BCo", "CCo", "DCo"},
	})

	assert.Len(t, analysis.CompetitorMentions, 2)
}

func TestAnalyzeWordBoundary(t *testing.T) {
	// "Nova" must not fire inside "Innovate".
	analysis := New(10).Analyze(Input{
		ResponseText: "Innovate Labs builds developer tooling.",
		QueryText:    "developer tools",
		BrandName:    "Nova",
	})

	assert.False(t, analysis.BrandMentioned)
}

func TestAnalyzeRelevanceAndFeatures(t *testing.T) {
	text := "XCorp pricing tiers start at $9.\n- Starter\n- Growth\nSee https://xcorp.com/pricing and https://review.example.com for details."

	analysis := New(10).Analyze(Input{
		ResponseText: text,
		QueryText:    "XCorp pricing tiers",
		BrandName:    "XCorp",
	})

	assert.InDelta(t, 100, analysis.Relevance, 0.001)
	assert.True(t, analysis.HasList)
	assert.Equal(t, 2, analysis.SourceCount)
}
