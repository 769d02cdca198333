// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package challenge

import (
	"context"
	"time"

	"github.com/pdiddy/cite-hustle/internal/browser"
)

// DefaultClearanceCookie is set by the anti-bot layer once its client-side
// challenge completes.
const DefaultClearanceCookie = "cf_clearance"

// DefaultPollInterval is how often the resolver checks for the cookie.
const DefaultPollInterval = 500 * time.Millisecond

// Resolver waits for the clearance signal. It solves nothing; the browser
// runs the challenge script itself.
type Resolver struct {
	Cookie       string
	PollInterval time.Duration

	// After is the clock; nil means time.After. Tests substitute a fake.
	After func(time.Duration) <-chan time.Time
}

// NewResolver returns a Resolver polling for the default cookie every poll
// (or DefaultPollInterval when poll is not positive).
func NewResolver(poll time.Duration) *Resolver {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Resolver{Cookie: DefaultClearanceCookie, PollInterval: poll}
}

// CookieName is the clearance cookie the resolver waits for.
func (r *Resolver) CookieName() string {
	if r.Cookie == "" {
		return DefaultClearanceCookie
	}
	return r.Cookie
}

// AwaitClearance polls s for the clearance cookie. It returns true as soon
// as the cookie appears and false once timeout elapses or ctx is done.
func (r *Resolver) AwaitClearance(ctx context.Context, s browser.Session, timeout time.Duration) bool {
	return r.AwaitClearanceSince(ctx, s, "", timeout)
}

// AwaitClearanceSince is AwaitClearance for a session that may already hold
// a clearance cookie from an earlier page: only a value other than stale
// counts as the signal.
func (r *Resolver) AwaitClearanceSince(ctx context.Context, s browser.Session, stale string, timeout time.Duration) bool {
	cookie := r.CookieName()
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	after := r.After
	if after == nil {
		after = time.After
	}

	for waited := time.Duration(0); ; waited += interval {
		if v := s.Cookie(ctx, cookie); v != "" && v != stale {
			return true
		}
		if waited >= timeout {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-after(interval):
		}
	}
}
