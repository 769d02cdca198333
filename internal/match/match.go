// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match selects, among search results, the one that corresponds to
// a known title.
//
// The combined score blends partial-ratio fuzzy similarity with word-count
// similarity: (1-w)·fuzzy + w·length. The length term lowers results that
// contain the known title inside a much longer title.
package match

import (
	"strings"

	"github.com/pdiddy/cite-hustle/pkg/types"
)

// Defaults for the scorer.
const (
	DefaultThreshold    = 85.0
	DefaultLengthWeight = 0.3
)

// LengthSimilarity is min(words)/max(words)·100, or 0 when either side has no words.
func LengthSimilarity(a, b string) float64 {
	wa, wb := len(strings.Fields(a)), len(strings.Fields(b))
	if wa == 0 || wb == 0 {
		return 0
	}
	if wa > wb {
		wa, wb = wb, wa
	}
	return float64(wa) / float64(wb) * 100
}

// Combine blends a fuzzy score and a length score with weight w on length.
func Combine(fuzzy, length, w float64) float64 {
	return (1-w)*fuzzy + w*length
}

// Score returns the combined similarity of known and candidate in [0,100].
// It is deterministic and insensitive to case.
func Score(known, candidate string, weight float64) float64 {
	return Combine(PartialRatio(known, candidate), LengthSimilarity(known, candidate), weight)
}

// Selection is the scorer's decision for one search-results page.
type Selection struct {
	// Best is the highest scoring candidate; meaningful only when Found.
	Best  types.Candidate
	Score float64

	// Found reports whether there was any candidate at all.
	Found bool

	// Accepted reports whether Score reached the threshold.
	Accepted bool

	// Scores holds every candidate's score, in input order.
	Scores []float64
}

// Select scores every candidate against known, picks the maximum with ties
// going to the earliest rank, and accepts it when score >= threshold.
func Select(known string, candidates []types.Candidate, threshold, weight float64) Selection {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = Score(known, c.Title, weight)
	}

	best := -1
	for i := range candidates {
		if best < 0 || scores[i] > scores[best] ||
			(scores[i] == scores[best] && candidates[i].Rank < candidates[best].Rank) {
			best = i
		}
	}

	sel := Selection{Scores: scores}
	if best < 0 {
		return sel
	}
	sel.Found = true
	sel.Best = candidates[best]
	sel.Score = scores[best]
	sel.Accepted = sel.Score >= threshold
	return sel
}

// Pick applies the selection policy to precomputed scores listed in rank
// order. It returns the winning index (-1 when empty) and whether it is accepted.
func Pick(scores []float64, threshold float64) (int, bool) {
	best := -1
	for i, s := range scores {
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return -1, false
	}
	return best, scores[best] >= threshold
}
