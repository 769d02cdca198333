// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package challenge classifies loaded pages as normal content, an anti-bot
// verification challenge, or a hard block, and waits for the clearance
// signal after a challenge.
package challenge

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/cite-hustle/internal/browser"
)

// Verdict is the classification of one loaded page.
type Verdict int

const (
	Normal Verdict = iota
	Challenge
	Blocked
)

func (v Verdict) String() string {
	switch v {
	case Normal:
		return "normal"
	case Challenge:
		return "challenge"
	case Blocked:
		return "blocked"
	}
	return "unknown"
}

// DefaultChallengeMarkers are lower-case substrings found only on a
// verification interstitial: its orchestration script, options object, form,
// widget, and copy. The provider's bot-detection script under
// /cdn-cgi/challenge-platform/scripts/ also ships on normal pages and is not
// a marker.
var DefaultChallengeMarkers = []string{
	"/cdn-cgi/challenge-platform/h/b/orchestrate/",
	"/cdn-cgi/challenge-platform/h/g/orchestrate/",
	"cf_chl_opt",
	`id="challenge-form"`,
	"cf-turnstile",
	"checking your browser",
	"just a moment...",
	"verify you are human",
	"verifying you are human",
}

// DefaultChallengeSelectors match challenge widgets that carry no telling copy.
var DefaultChallengeSelectors = []string{
	`iframe[src*="challenges.cloudflare.com"]`,
	`#challenge-stage`,
	`#challenge-running`,
}

// DefaultBlockMarkers are lower-case substrings of an explicit denial or
// rate-limit page.
var DefaultBlockMarkers = []string{
	"too many requests",
	"access denied",
	"error 1020",
	"error 1015",
	"you have been blocked",
	"you are being rate limited",
}

// Detector applies the classification rules. The zero value uses the defaults.
type Detector struct {
	ChallengeMarkers   []string
	ChallengeSelectors []string
	BlockMarkers       []string
}

// Classify evaluates, in order: challenge markers, then denial status or
// copy, then normal. It never fails; an unreadable page is the caller's
// transport error.
func (d Detector) Classify(p browser.Page) Verdict {
	lower := strings.ToLower(p.HTML)

	if containsAny(lower, orDefault(d.ChallengeMarkers, DefaultChallengeMarkers)) ||
		matchesAny(p.HTML, orDefault(d.ChallengeSelectors, DefaultChallengeSelectors)) {
		return Challenge
	}
	if p.Status == http.StatusForbidden || p.Status == http.StatusTooManyRequests {
		return Blocked
	}
	if containsAny(lower, orDefault(d.BlockMarkers, DefaultBlockMarkers)) {
		return Blocked
	}
	return Normal
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// matchesAny runs the selectors only on documents small enough to be an
// interstitial; full pages may embed the same widgets in a login form.
func matchesAny(html string, selectors []string) bool {
	if len(html) > interstitialMaxSize || len(selectors) == 0 {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	for _, sel := range selectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// interstitialMaxSize bounds the document size treated as a possible interstitial.
const interstitialMaxSize = 32 << 10
