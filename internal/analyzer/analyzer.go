// internal/analyzer/analyzer.go
package analyzer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

// Analyzer extracts brand and competitor presence from one provider
// response. It is deterministic: no model calls, only text analysis, so
// re-running an audit over stored responses reproduces identical analyses.
type Analyzer struct {
	maxCompetitors int
}

// Input describes one response to analyze.
type Input struct {
	ResponseText string
	QueryText    string
	BrandName    string
	BrandDomain  string
	Competitors  []string
}

// New creates an analyzer that reports at most maxCompetitors competitor
// mentions per response.
func New(maxCompetitors int) *Analyzer {
	if maxCompetitors <= 0 {
		maxCompetitors = 10
	}
	return &Analyzer{maxCompetitors: maxCompetitors}
}

var (
	urlPattern  = regexp.MustCompile(`https?://[^\s)>\]]+`)
	listPattern = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+\S`)
)

// Analyze produces the analysis for one response. Malformed or empty text
// yields an empty analysis with neutral sentiment, never an error: the
// pipeline counts these as zero-information results and keeps going.
//
// BrandPositionPct stays nil when the brand is absent. Position 0 means the
// text opens with the brand and is a distinct, valid value.
func (a *Analyzer) Analyze(in Input) *models.ResponseAnalysis {
	analysis := &models.ResponseAnalysis{
		Sentiment:          models.SentimentNeutral,
		CompetitorMentions: models.CompetitorMentionList{},
	}

	text := strings.TrimSpace(in.ResponseText)
	if text == "" || in.BrandName == "" {
		return analysis
	}

	lowerText := strings.ToLower(text)

	brandCount, brandFirst := findMentions(lowerText, brandTerms(in.BrandName, in.BrandDomain))
	if brandCount > 0 {
		analysis.BrandMentioned = true
		analysis.BrandMentionCount = brandCount
		position := positionPct(brandFirst, len(text))
		analysis.BrandPositionPct = &position
		analysis.Sentiment = classifySentiment(lowerText, brandFirst)
	}

	for _, competitor := range in.Competitors {
		if len(analysis.CompetitorMentions) >= a.maxCompetitors {
			break
		}
		competitor = strings.TrimSpace(competitor)
		if competitor == "" || strings.EqualFold(competitor, in.BrandName) {
			continue
		}

		count, first := findMentions(lowerText, brandTerms(competitor, ""))
		if count == 0 {
			continue
		}

		position := positionPct(first, len(text))
		analysis.CompetitorMentions = append(analysis.CompetitorMentions, models.CompetitorMention{
			Name:        competitor,
			Count:       count,
			PositionPct: &position,
			Sentiment:   classifySentiment(lowerText, first),
		})
	}

	analysis.Relevance = relevance(lowerText, in.QueryText)
	analysis.HasList = listPattern.MatchString(text)
	analysis.SourceCount = len(urlPattern.FindAllString(text, -1))

	return analysis
}

// brandTerms expands a brand into the lowercase terms that count as a
// mention: the name itself and, when a domain is known, the bare domain.
// Subdomain hits (blog.brand.com) land via the substring match on the root
// domain and count as mentions of the brand.
func brandTerms(name, domain string) []string {
	terms := []string{strings.ToLower(strings.TrimSpace(name))}

	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	domain = strings.TrimSuffix(domain, "/")
	if domain != "" {
		terms = append(terms, domain)
	}
	return terms
}

// findMentions counts occurrences of any term and returns the byte offset
// of the earliest one, or -1 when nothing matched. Name terms match on word
// boundaries so "X" does not fire inside "eXample"; domain terms match as
// substrings so subdomains count. Overlapping hits count once: when the
// name is a prefix of the domain, "acme.com" is one mention, not two.
func findMentions(lowerText string, terms []string) (count int, first int) {
	type span struct{ start, end int }
	var spans []span

	for i, term := range terms {
		if term == "" {
			continue
		}
		wordBounded := i == 0 && !strings.Contains(term, ".")

		offset := 0
		for {
			idx := strings.Index(lowerText[offset:], term)
			if idx < 0 {
				break
			}
			absolute := offset + idx
			if !wordBounded || boundedAt(lowerText, absolute, len(term)) {
				spans = append(spans, span{start: absolute, end: absolute + len(term)})
			}
			offset = absolute + len(term)
		}
	}

	if len(spans) == 0 {
		return 0, -1
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	first = spans[0].start
	lastEnd := 0
	for _, s := range spans {
		if s.start < lastEnd {
			continue
		}
		count++
		lastEnd = s.end
	}
	return count, first
}

func boundedAt(text string, start, length int) bool {
	if start > 0 && isWordChar(text[start-1]) {
		return false
	}
	end := start + length
	if end < len(text) && isWordChar(text[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func positionPct(offset, textLen int) float64 {
	if textLen == 0 || offset < 0 {
		return 0
	}
	return float64(offset) / float64(textLen) * 100
}

// relevance scores how many of the query's content words appear in the
// response, 0-100.
func relevance(lowerText, query string) float64 {
	words := contentWords(query)
	if len(words) == 0 {
		return 0
	}

	matched := 0
	for _, word := range words {
		if strings.Contains(lowerText, word) {
			matched++
		}
	}
	return float64(matched) / float64(len(words)) * 100
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "best": true,
	"for": true, "how": true, "in": true, "is": true, "of": true,
	"or": true, "the": true, "to": true, "top": true, "vs": true,
	"what": true, "which": true, "who": true, "with": true,
}

func contentWords(query string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, "?.,!\"'")
		if word == "" || stopwords[word] {
			continue
		}
		words = append(words, word)
	}
	return words
}
