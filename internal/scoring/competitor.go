// internal/scoring/competitor.go
package scoring

import (
	"sort"

	"github.com/brandview-ai/brandview-workflows/internal/models"
)

// competitorStandings aggregates every tracked competitor across the job:
// how many responses it shared with the brand's queries, its average
// first-mention position, and head-to-head wins/losses (competitor ranks
// above vs below the brand when both appear in one response).
func competitorStandings(responses []ScoredResponse) models.CompetitorStandingList {
	type tally struct {
		overlap     int
		positionSum float64
		positioned  int
		wins        int
		losses      int
	}
	tallies := map[string]*tally{}

	for _, item := range responses {
		analysis := item.Analysis
		for _, mention := range analysis.CompetitorMentions {
			entry, ok := tallies[mention.Name]
			if !ok {
				entry = &tally{}
				tallies[mention.Name] = entry
			}
			entry.overlap++

			if mention.PositionPct != nil {
				entry.positionSum += *mention.PositionPct
				entry.positioned++
			}

			// Head-to-head only counts when both sides appear.
			if analysis.BrandMentioned && analysis.BrandPositionPct != nil && mention.PositionPct != nil {
				if *mention.PositionPct < *analysis.BrandPositionPct {
					entry.wins++
				} else {
					entry.losses++
				}
			}
		}
	}

	standings := make(models.CompetitorStandingList, 0, len(tallies))
	for name, entry := range tallies {
		standing := models.CompetitorStanding{
			Name:    name,
			Overlap: entry.overlap,
			Wins:    entry.wins,
			Losses:  entry.losses,
		}
		if entry.positioned > 0 {
			avg := entry.positionSum / float64(entry.positioned)
			standing.AvgPosition = &avg
		}
		standings = append(standings, standing)
	}

	// Deterministic output order: most overlap first, then name.
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Overlap != standings[j].Overlap {
			return standings[i].Overlap > standings[j].Overlap
		}
		return standings[i].Name < standings[j].Name
	})
	return standings
}
