package models

import (
	"sort"
	"strings"
)

const maxShortSymbolLen = 5

// ScoreSearchHits assigns a deterministic match score to every hit, sorts by
// score descending then symbol ascending, and truncates to limit. Used when
// the upstream search endpoint does not report a relevance score of its own.
//
// The score is the sum of every satisfied rule: exact symbol +100, symbol
// prefix +80, symbol substring +50, exact name +90, name prefix +60, name
// word-boundary +40, name substring +20, plus +10 for symbols of five
// characters or fewer. Matching is case-insensitive.
func ScoreSearchHits(query string, hits []*SearchHit, limit int) []*SearchHit {
	q := strings.ToLower(strings.TrimSpace(query))

	for _, h := range hits {
		h.MatchScore = scoreHit(q, h)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].MatchScore != hits[j].MatchScore {
			return hits[i].MatchScore > hits[j].MatchScore
		}
		return hits[i].Symbol < hits[j].Symbol
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func scoreHit(q string, h *SearchHit) float64 {
	if q == "" {
		return 0
	}

	symbol := strings.ToLower(h.Symbol)
	name := strings.ToLower(h.Name)
	score := 0.0

	if symbol == q {
		score += 100
	}
	if strings.HasPrefix(symbol, q) {
		score += 80
	}
	if strings.Contains(symbol, q) {
		score += 50
	}

	if name == q {
		score += 90
	}
	if strings.HasPrefix(name, q) {
		score += 60
	}
	if wordBoundaryMatch(name, q) {
		score += 40
	}
	if strings.Contains(name, q) {
		score += 20
	}

	if len(h.Symbol) <= maxShortSymbolLen {
		score += 10
	}
	return score
}

// wordBoundaryMatch reports whether any whitespace-delimited word of name
// starts with q.
func wordBoundaryMatch(name, q string) bool {
	for _, word := range strings.Fields(name) {
		if strings.HasPrefix(word, q) {
			return true
		}
	}
	return false
}
