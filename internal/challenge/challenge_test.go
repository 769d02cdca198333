// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package challenge

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/cite-hustle/internal/browser"
)

func TestClassify(t *testing.T) {
	bigPage := "<html><body><iframe src=\"https://challenges.cloudflare.com/x\"></iframe>" + strings.Repeat("<p>paper</p>", 5000) + "</body></html>"
	const botScript = `<script src="/cdn-cgi/challenge-platform/scripts/jsd/main.js"></script>`

	tests := []struct {
		name string
		page browser.Page
		want Verdict
	}{
		{"normal results", browser.Page{HTML: `<html><body><h3 data-component="Typography"><a href="/x">X</a></h3></body></html>`, Status: 200}, Normal},
		{"checking your browser copy", browser.Page{HTML: `<title>Just a moment...</title><p>Checking your browser before accessing</p>`, Status: 503}, Challenge},
		{"challenge platform script", browser.Page{HTML: `<script src="/cdn-cgi/challenge-platform/h/b/orchestrate/jsch/v1"></script>`}, Challenge},
		{"turnstile widget", browser.Page{HTML: `<div class="cf-turnstile" data-sitekey="x"></div>`}, Challenge},
		{"challenge iframe only", browser.Page{HTML: `<html><body><iframe src="https://challenges.cloudflare.com/cdn"></iframe></body></html>`}, Challenge},
		{"challenge wins over 403", browser.Page{HTML: `<p>Verify you are human</p>`, Status: 403}, Challenge},
		{"status 403", browser.Page{HTML: `<html><body>Forbidden</body></html>`, Status: 403}, Blocked},
		{"status 429", browser.Page{HTML: `<html></html>`, Status: 429}, Blocked},
		{"too many requests copy", browser.Page{HTML: `<h1>Too Many Requests</h1>`}, Blocked},
		{"error 1020", browser.Page{HTML: `<span>Error 1020</span> Access denied`}, Blocked},
		{"large page with embedded widget", browser.Page{HTML: bigPage, Status: 200}, Normal},
		{"results page with bot-detection script", browser.Page{HTML: `<html><body><h3 data-component="Typography"><a href="/x">X</a></h3>` + botScript + `</body></html>`, Status: 200}, Normal},
		{"challenge words in ordinary classes", browser.Page{HTML: `<html><body><div id="challenges-section" class="grand-challenge">Climate challenge</div></body></html>`, Status: 200}, Normal},
		{"challenge options object", browser.Page{HTML: `<script>window._cf_chl_opt={cvId:'3'};</script>`}, Challenge},
		{"challenge form", browser.Page{HTML: `<form id="challenge-form" action="/x" method="POST"></form>`}, Challenge},
		{"challenge stage only", browser.Page{HTML: `<html><body><div id="challenge-stage"></div></body></html>`}, Challenge},
	}
	var d Detector
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Classify(tt.page); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_CustomMarkers(t *testing.T) {
	d := Detector{
		ChallengeMarkers: []string{"please wait while we verify"},
		BlockMarkers:     []string{"banned"},
	}
	assert.Equal(t, Challenge, d.Classify(browser.Page{HTML: "Please wait while we verify"}))
	assert.Equal(t, Blocked, d.Classify(browser.Page{HTML: "you are BANNED"}))
	assert.Equal(t, Normal, d.Classify(browser.Page{HTML: "too many requests"}))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "normal", Normal.String())
	assert.Equal(t, "challenge", Challenge.String())
	assert.Equal(t, "blocked", Blocked.String())
	assert.Equal(t, "unknown", Verdict(9).String())
}

// cookieSession holds stale as the clearance cookie until the n-th poll,
// then a fresh value.
type cookieSession struct {
	browser.Session
	stale    string
	appearAt int
	polls    int
}

func (s *cookieSession) Cookie(_ context.Context, name string) string {
	s.polls++
	if name != DefaultClearanceCookie {
		return ""
	}
	if s.appearAt > 0 && s.polls >= s.appearAt {
		return "fresh"
	}
	return s.stale
}

// instantAfter fires immediately and records the simulated elapsed time.
func instantAfter(elapsed *time.Duration) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		*elapsed += d
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
}

func TestAwaitClearance(t *testing.T) {
	tests := []struct {
		name        string
		appearAt    int
		timeout     time.Duration
		want        bool
		wantPolls   int
		wantElapsed time.Duration
	}{
		{"already cleared", 1, 15 * time.Second, true, 1, 0},
		// Poll 13 happens at t=6s with a 500ms interval.
		{"cleared at six seconds", 13, 15 * time.Second, true, 13, 6 * time.Second},
		{"never cleared", 0, 15 * time.Second, false, 31, 15 * time.Second},
		{"cleared after timeout", 40, 15 * time.Second, false, 31, 15 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var elapsed time.Duration
			r := NewResolver(500 * time.Millisecond)
			r.After = instantAfter(&elapsed)
			s := &cookieSession{appearAt: tt.appearAt}

			got := r.AwaitClearance(context.Background(), s, tt.timeout)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantPolls, s.polls)
			assert.Equal(t, tt.wantElapsed, elapsed)
		})
	}
}

func TestAwaitClearanceSince_IgnoresStaleCookie(t *testing.T) {
	var elapsed time.Duration
	r := NewResolver(500 * time.Millisecond)
	r.After = instantAfter(&elapsed)

	s := &cookieSession{stale: "old"}
	assert.False(t, r.AwaitClearanceSince(context.Background(), s, "old", 15*time.Second))
	assert.Equal(t, 31, s.polls)

	s = &cookieSession{stale: "old", appearAt: 5}
	assert.True(t, r.AwaitClearanceSince(context.Background(), s, "old", 15*time.Second))
	assert.Equal(t, 5, s.polls)

	s = &cookieSession{stale: "old"}
	assert.True(t, r.AwaitClearance(context.Background(), s, 15*time.Second), "any value counts without a baseline")
	assert.Equal(t, 1, s.polls)
}

func TestAwaitClearance_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewResolver(time.Hour)
	s := &cookieSession{}
	assert.False(t, r.AwaitClearance(ctx, s, 24*time.Hour))
	assert.Equal(t, 1, s.polls)
}

func TestAwaitClearance_RealClock(t *testing.T) {
	r := NewResolver(5 * time.Millisecond)
	s := &cookieSession{appearAt: 3}
	start := time.Now()
	assert.True(t, r.AwaitClearance(context.Background(), s, time.Second))
	assert.Less(t, time.Since(start), time.Second)
}
