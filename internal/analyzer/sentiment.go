// internal/analyzer/sentiment.go
package analyzer

import (
	"strings"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

// Lexicon-based sentiment around a mention. The window is deliberately
// narrow: tone three paragraphs away says little about how the brand
// itself was framed.
const sentimentWindow = 280

var positiveTerms = []string{
	"best", "leading", "excellent", "great", "strong", "recommended",
	"reliable", "popular", "top choice", "outstanding", "innovative",
	"easy to use", "powerful", "well-regarded", "trusted", "favorite",
	"impressive", "robust", "seamless", "affordable",
}

var negativeTerms = []string{
	"worst", "poor", "weak", "avoid", "unreliable", "expensive",
	"limited", "lacking", "outdated", "difficult", "clunky",
	"disappointing", "overpriced", "buggy", "slow", "complaints",
	"downside", "drawback", "falls short", "struggles",
}

// classifySentiment scores the text window around the first mention.
func classifySentiment(lowerText string, mentionOffset int) string {
	start := mentionOffset - sentimentWindow/2
	if start < 0 {
		start = 0
	}
	end := mentionOffset + sentimentWindow/2
	if end > len(lowerText) {
		end = len(lowerText)
	}
	window := lowerText[start:end]

	positives := 0
	for _, term := range positiveTerms {
		positives += countBounded(window, term)
	}
	negatives := 0
	for _, term := range negativeTerms {
		negatives += countBounded(window, term)
	}

	return sentimentFromCounts(positives, negatives)
}

// countBounded counts whole-word occurrences of term. Substring hits like
// "reliable" inside "unreliable" must not register.
func countBounded(window, term string) int {
	count := 0
	offset := 0
	for {
		idx := strings.Index(window[offset:], term)
		if idx < 0 {
			return count
		}
		absolute := offset + idx
		if boundedAt(window, absolute, len(term)) {
			count++
		}
		offset = absolute + len(term)
	}
}

func sentimentFromCounts(positives, negatives int) string {
	switch {
	case positives > 0 && negatives > 0:
		return models.SentimentMixed
	case positives > 0:
		return models.SentimentPositive
	case negatives > 0:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
