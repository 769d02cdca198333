// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package navigate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cite-hustle/internal/browser"
	"github.com/pdiddy/cite-hustle/internal/challenge"
)

const (
	normalHTML    = `<html><body><h3 data-component="Typography"><a href="/p">Paper</a></h3></body></html>`
	challengeHTML = `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`
	blockedHTML   = `<html><body><h1>Too Many Requests</h1></body></html>`
)

// step is one scripted response to Navigate.
type step struct {
	html   string
	status int
	err    error
}

// fakeSession replays scripted loads and grants a fresh clearance cookie on
// a chosen poll of a chosen attempt.
type fakeSession struct {
	steps []step
	loads int

	// clearOnLoad is the load number whose challenge clears (-1 for every
	// load); clearAtPoll the Cookie call within that load on which a fresh
	// value appears.
	clearOnLoad int
	clearAtPoll int
	polls       int

	// stale is the clearance cookie held before any challenge clears.
	stale string

	// content is what Content re-reads; empty means a normal page.
	content string
}

func (f *fakeSession) Navigate(ctx context.Context, url string) (browser.Page, error) {
	st := f.steps[f.loads%len(f.steps)]
	f.loads++
	f.polls = 0
	if st.err != nil {
		return browser.Page{}, st.err
	}
	return browser.Page{URL: url, HTML: st.html, Status: st.status}, nil
}

func (f *fakeSession) Content(ctx context.Context) (browser.Page, error) {
	html := f.content
	if html == "" {
		html = normalHTML
	}
	return browser.Page{HTML: html, Status: 200, Cookies: []string{"cf_clearance"}}, nil
}

func (f *fakeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (f *fakeSession) Cookie(ctx context.Context, name string) string {
	f.polls++
	clears := f.clearOnLoad == -1 || (f.clearOnLoad > 0 && f.clearOnLoad == f.loads)
	if clears && f.polls >= f.clearAtPoll {
		return fmt.Sprintf("fresh-%d", f.loads)
	}
	return f.stale
}

func (f *fakeSession) Close() error { return nil }

// newTestNavigator returns a navigator whose clock and sleeps are virtual.
func newTestNavigator(s browser.Session, maxAttempts int) (*Navigator, *[]time.Duration) {
	var sleeps []time.Duration
	r := challenge.NewResolver(500 * time.Millisecond)
	r.After = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Time{}
		return ch
	}
	n := &Navigator{
		Session:          s,
		Resolver:         r,
		MaxAttempts:      maxAttempts,
		BackoffBase:      time.Second,
		BackoffFactor:    2,
		ClearanceTimeout: 15 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		},
	}
	return n, &sleeps
}

func TestNavigate_NormalFirstLoad(t *testing.T) {
	s := &fakeSession{steps: []step{{html: normalHTML, status: 200}}}
	n, sleeps := newTestNavigator(s, 3)

	res, err := n.Navigate(context.Background(), "https://example.test/search")
	require.NoError(t, err)
	assert.Equal(t, OutcomeLoaded, res.Outcome)
	assert.Equal(t, 1, res.Loads)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, *sleeps)
	assert.Equal(t, []State{StateIdle, StateNavigating, StateLoaded, StateSuccess}, res.Trace)
}

func TestNavigate_BlockedShortCircuits(t *testing.T) {
	tests := []struct {
		name string
		st   step
	}{
		{"denial copy", step{html: blockedHTML, status: 200}},
		{"status 429", step{html: "<html></html>", status: 429}},
		{"status 403", step{html: "<html></html>", status: 403}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSession{steps: []step{tt.st}}
			n, sleeps := newTestNavigator(s, 3)

			res, err := n.Navigate(context.Background(), "https://example.test/p")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBlocked)
			assert.Equal(t, KindBlocked, KindOf(err))
			assert.Equal(t, 1, s.loads, "blocked must not retry")
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, OutcomeBlocked, res.Outcome)
			assert.Empty(t, *sleeps)
		})
	}
}

func TestNavigate_ChallengeClearedWithoutRetry(t *testing.T) {
	// Poll 13 is t=6s at a 500ms interval, inside the 15s timeout.
	s := &fakeSession{
		steps:       []step{{html: challengeHTML, status: 503}},
		clearOnLoad: 1,
		clearAtPoll: 13,
	}
	n, sleeps := newTestNavigator(s, 3)

	res, err := n.Navigate(context.Background(), "https://example.test/search")
	require.NoError(t, err)
	assert.Equal(t, OutcomeChallengePassed, res.Outcome)
	assert.Equal(t, 1, res.Loads)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 13, s.polls)
	assert.Empty(t, *sleeps)
	assert.Contains(t, res.Page.HTML, "Typography")
	assert.Equal(t, []State{
		StateIdle, StateNavigating, StateChallengeDetected, StateAwaitingClearance,
		StateCleared, StateLoaded, StateSuccess,
	}, res.Trace)
}

func TestNavigate_ChallengeClearsOnSecondAttempt(t *testing.T) {
	s := &fakeSession{
		steps:       []step{{html: challengeHTML}},
		clearOnLoad: 2,
		clearAtPoll: 1,
	}
	n, sleeps := newTestNavigator(s, 3)

	res, err := n.Navigate(context.Background(), "https://example.test/search")
	require.NoError(t, err)
	assert.Equal(t, OutcomeChallengePassed, res.Outcome)
	assert.Equal(t, 2, res.Loads)
	assert.Equal(t, []time.Duration{2 * time.Second}, *sleeps)
}

func TestNavigate_ChallengeExhausted(t *testing.T) {
	s := &fakeSession{steps: []step{{html: challengeHTML}}}
	n, sleeps := newTestNavigator(s, 3)

	res, err := n.Navigate(context.Background(), "https://example.test/search")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeUnresolved)
	assert.Equal(t, 3, s.loads)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
	assert.Equal(t, StateFailure, res.Trace[len(res.Trace)-1])

	var ne *NavError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, "challenge-timeout: https://example.test/search after 3 attempt(s)", ne.Error())
}

func TestNavigate_StaleClearanceCookieIgnored(t *testing.T) {
	s := &fakeSession{
		steps:   []step{{html: challengeHTML, status: 503}},
		stale:   "from-earlier-item",
		content: challengeHTML,
	}
	n, sleeps := newTestNavigator(s, 3)

	res, err := n.Navigate(context.Background(), "https://example.test/search")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeUnresolved)
	assert.Equal(t, 3, res.Loads)
	assert.Equal(t, OutcomeBlocked, res.Outcome)
	assert.Empty(t, res.Page.HTML)
	assert.Len(t, *sleeps, 2)
}

func TestNavigate_StaleCookieThenFreshClearance(t *testing.T) {
	s := &fakeSession{
		steps:       []step{{html: challengeHTML}},
		stale:       "from-earlier-item",
		clearOnLoad: 1,
		clearAtPoll: 4,
	}
	n, _ := newTestNavigator(s, 3)

	res, err := n.Navigate(context.Background(), "https://example.test/search")
	require.NoError(t, err)
	assert.Equal(t, OutcomeChallengePassed, res.Outcome)
	assert.Equal(t, 4, s.polls)
	assert.Equal(t, 1, res.Loads)
}

func TestNavigate_StillChallengeAfterCookie(t *testing.T) {
	s := &fakeSession{
		steps:       []step{{html: challengeHTML}},
		clearOnLoad: -1,
		clearAtPoll: 1,
		content:     challengeHTML,
	}
	n, _ := newTestNavigator(s, 2)

	res, err := n.Navigate(context.Background(), "https://example.test/search")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChallengeUnresolved)
	assert.Equal(t, 2, res.Loads)
	assert.Contains(t, res.Trace, StateCleared)
	assert.Equal(t, StateFailure, res.Trace[len(res.Trace)-1])
}

func TestNavigate_BlockedAfterClearance(t *testing.T) {
	s := &fakeSession{
		steps:       []step{{html: challengeHTML}},
		clearOnLoad: 1,
		clearAtPoll: 1,
		content:     blockedHTML,
	}
	n, sleeps := newTestNavigator(s, 3)

	_, err := n.Navigate(context.Background(), "https://example.test/search")
	assert.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, 1, s.loads)
	assert.Empty(t, *sleeps)
}

func TestNavigate_TransportErrorRetried(t *testing.T) {
	boom := errors.New("connection reset by peer")
	s := &fakeSession{steps: []step{{err: boom}, {err: boom}, {html: normalHTML}}}
	n, sleeps := newTestNavigator(s, 3)

	res, err := n.Navigate(context.Background(), "https://example.test/p")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Loads)
	assert.Len(t, *sleeps, 2)
}

func TestNavigate_TransportErrorExhausted(t *testing.T) {
	boom := errors.New("i/o timeout")
	s := &fakeSession{steps: []step{{err: boom}}}
	n, _ := newTestNavigator(s, 2)

	_, err := n.Navigate(context.Background(), "https://example.test/p")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, 2, s.loads)
}

func TestNavigate_LoadsNeverExceedMaxAttempts(t *testing.T) {
	scripts := [][]step{
		{{html: challengeHTML}},
		{{err: errors.New("reset")}},
		{{err: errors.New("reset")}, {html: challengeHTML}},
		{{html: challengeHTML}, {html: blockedHTML}},
	}
	for _, script := range scripts {
		for maxAttempts := 1; maxAttempts <= 5; maxAttempts++ {
			s := &fakeSession{steps: script}
			n, _ := newTestNavigator(s, maxAttempts)
			res, _ := n.Navigate(context.Background(), "https://example.test/p")
			if s.loads > maxAttempts || res.Loads != s.loads {
				t.Errorf("loads = %d (result %d), maxAttempts = %d", s.loads, res.Loads, maxAttempts)
			}
		}
	}
}

func TestNavigate_ZeroMaxAttemptsLoadsOnce(t *testing.T) {
	s := &fakeSession{steps: []step{{html: challengeHTML}}}
	n, _ := newTestNavigator(s, 0)
	_, err := n.Navigate(context.Background(), "https://example.test/p")
	assert.ErrorIs(t, err, ErrChallengeUnresolved)
	assert.Equal(t, 1, s.loads)
}

func TestNavigate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeSession{steps: []step{{html: normalHTML}}}
	n, _ := newTestNavigator(s, 3)

	_, err := n.Navigate(ctx, "https://example.test/p")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.loads)
}

func TestBackoff(t *testing.T) {
	n := &Navigator{BackoffBase: 5 * time.Second, BackoffFactor: 2}
	assert.Equal(t, 10*time.Second, n.Backoff(1))
	assert.Equal(t, 20*time.Second, n.Backoff(2))
	assert.Equal(t, 40*time.Second, n.Backoff(3))

	n.BackoffFactor = 0
	assert.Equal(t, 5*time.Second, n.Backoff(4))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "challenge-timeout", KindChallengeTimeout.String())
	assert.Equal(t, "blocked", KindBlocked.String())
	assert.Equal(t, "transport-error", KindTransport.String())
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
