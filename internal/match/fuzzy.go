// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package match

import "strings"

// PartialRatio scores how well the shorter of a and b fits inside the
// longer, from 0 to 100, ignoring case. The shorter string is compared with
// every equal-length window of the longer one, plus the shrinking windows
// that hang off either edge; each window is scored by normalized indel
// similarity and the best window wins.
func PartialRatio(a, b string) float64 {
	s1 := []rune(strings.ToLower(a))
	s2 := []rune(strings.ToLower(b))
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}
	if len(s1) == 0 {
		if len(s2) == 0 {
			return 100
		}
		return 0
	}

	m, n := len(s1), len(s2)
	best := 0.0
	consider := func(window []rune) bool {
		r := indelRatio(s1, window)
		if r > best {
			best = r
		}
		return best == 100
	}

	// Windows anchored at the left edge, growing to full length.
	for i := 1; i < m; i++ {
		if consider(s2[:i]) {
			return best
		}
	}
	// Full-length windows.
	for i := 0; i+m <= n; i++ {
		if consider(s2[i : i+m]) {
			return best
		}
	}
	// Windows anchored at the right edge, shrinking.
	for i := n - m + 1; i < n; i++ {
		if consider(s2[i:]) {
			return best
		}
	}
	return best
}

// Ratio is the normalized indel similarity of the whole strings, ignoring case.
func Ratio(a, b string) float64 {
	s1 := []rune(strings.ToLower(a))
	s2 := []rune(strings.ToLower(b))
	if len(s1)+len(s2) == 0 {
		return 100
	}
	return indelRatio(s1, s2)
}

// indelRatio is 2·LCS/(len(a)+len(b))·100.
func indelRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(a, b)) / float64(total)
}

// lcsLength returns the length of the longest common subsequence of a and b.
func lcsLength(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
