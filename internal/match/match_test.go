// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cite-hustle/pkg/types"
)

func TestPartialRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Real Earnings Management", "Real Earnings Management", 100},
		{"prefix of longer", "Real Earnings Management", "Real Earnings Management and the Cost of Debt", 100},
		{"order independent", "Real Earnings Management and the Cost of Debt", "Real Earnings Management", 100},
		{"substring in middle", "world", "hello world again", 100},
		{"case insensitive", "REAL earnings", "real Earnings", 100},
		{"disjoint", "abc", "xyz", 0},
		{"one substitution", "abcd", "xxabcexx", 75},
		{"empty vs text", "", "abc", 0},
		{"both empty", "", "", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PartialRatio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestPartialRatio_EdgeWindow(t *testing.T) {
	// The best alignment is "def" hanging off the left edge of the second string.
	assert.InDelta(t, 200.0*3/9, PartialRatio("abcdef", "defxyz"), 1e-9)
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 75.0, Ratio("abcd", "abce"), 1e-9)
	assert.InDelta(t, 100.0, Ratio("Same", "same"), 1e-9)
	assert.InDelta(t, 100.0, Ratio("", ""), 1e-9)
}

func TestLengthSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Real Earnings Management", "Real Earnings Management Practices", 75},
		{"Real Earnings Management", "Real Earnings Management and the Cost of Debt", 37.5},
		{"one two", "one  two ", 100},
		{"", "anything", 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, LengthSimilarity(tt.a, tt.b), 1e-9, "%q vs %q", tt.a, tt.b)
	}
}

func TestScore_Deterministic(t *testing.T) {
	known := "The Effect of Disclosure on the Cost of Capital"
	cand := "The effect of disclosure on the cost of equity capital"
	first := Score(known, cand, DefaultLengthWeight)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Score(known, cand, DefaultLengthWeight))
	}
	assert.Equal(t, first, Score(strings.ToUpper(known), strings.ToLower(cand), DefaultLengthWeight))
	assert.GreaterOrEqual(t, first, 0.0)
	assert.LessOrEqual(t, first, 100.0)
}

func TestSelect_PrefersCloserLength(t *testing.T) {
	known := "Real Earnings Management"
	cands := []types.Candidate{
		{Title: "Real Earnings Management and the Cost of Debt", URL: "https://example.test/a", Rank: 0},
		{Title: "Real Earnings Management Practices", URL: "https://example.test/b", Rank: 1},
	}

	sel := Select(known, cands, DefaultThreshold, DefaultLengthWeight)
	require.True(t, sel.Found)
	require.Len(t, sel.Scores, 2)
	assert.InDelta(t, 81.25, sel.Scores[0], 1e-9)
	assert.InDelta(t, 92.5, sel.Scores[1], 1e-9)
	assert.Equal(t, "https://example.test/b", sel.Best.URL)
	assert.True(t, sel.Accepted)
}

func TestSelect_SupersetRejected(t *testing.T) {
	known := "Audit Committee Expertise"
	cands := []types.Candidate{
		{Title: "Audit Committee Expertise and Financial Reporting Quality in Emerging Market Firms Worldwide", Rank: 0},
	}
	sel := Select(known, cands, DefaultThreshold, DefaultLengthWeight)
	require.True(t, sel.Found)
	// fuzzy 100, length 3/12 words.
	assert.InDelta(t, 77.5, sel.Score, 1e-9)
	assert.False(t, sel.Accepted)
}

func TestSelect_TieGoesToEarliestRank(t *testing.T) {
	cands := []types.Candidate{
		{Title: "Tax Avoidance and Firm Value", URL: "late", Rank: 3},
		{Title: "Tax Avoidance and Firm Value", URL: "early", Rank: 1},
		{Title: "Tax Avoidance and Firm Value", URL: "middle", Rank: 2},
	}
	sel := Select("Tax Avoidance and Firm Value", cands, DefaultThreshold, DefaultLengthWeight)
	assert.Equal(t, "early", sel.Best.URL)
	assert.True(t, sel.Accepted)
}

func TestSelect_NoCandidates(t *testing.T) {
	sel := Select("Anything", nil, DefaultThreshold, DefaultLengthWeight)
	assert.False(t, sel.Found)
	assert.False(t, sel.Accepted)
	assert.Empty(t, sel.Scores)
}

func TestSelect_WeightZeroIsPureFuzzy(t *testing.T) {
	cands := []types.Candidate{{Title: "Real Earnings Management and the Cost of Debt"}}
	sel := Select("Real Earnings Management", cands, DefaultThreshold, 0)
	assert.InDelta(t, 100, sel.Score, 1e-9)
	assert.True(t, sel.Accepted)
}

func TestPick_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		wantIdx  int
		accepted bool
	}{
		{"exactly at threshold", []float64{85}, 0, true},
		{"just below threshold", []float64{84.99}, 0, false},
		{"best of several", []float64{70, 86, 85.5}, 1, true},
		{"tie keeps first", []float64{90, 90}, 0, true},
		{"empty", nil, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, ok := Pick(tt.scores, 85)
			if idx != tt.wantIdx || ok != tt.accepted {
				t.Errorf("Pick(%v, 85) = (%d, %v), want (%d, %v)", tt.scores, idx, ok, tt.wantIdx, tt.accepted)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	assert.InDelta(t, 81.25, Combine(100, 37.5, 0.3), 1e-9)
	assert.InDelta(t, 92.5, Combine(100, 75, 0.3), 1e-9)
	assert.InDelta(t, 85, Combine(85, 85, 0.3), 1e-9)
}
