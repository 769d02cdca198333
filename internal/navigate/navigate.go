// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package navigate drives one page load through challenge detection,
// clearance waiting, and bounded exponential-backoff retry.
//
// States:
//
//	Idle -> Navigating -> {Loaded | ChallengeDetected | BlockedDetected}
//	ChallengeDetected -> AwaitingClearance -> {Cleared -> Loaded | TimedOut}
//	-> Success | Failure
package navigate

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/cite-hustle/internal/browser"
	"github.com/pdiddy/cite-hustle/internal/challenge"
	"github.com/pdiddy/cite-hustle/internal/pacing"
	"github.com/pdiddy/cite-hustle/pkg/types"
)

// State is one node of the navigation state machine.
type State int

const (
	StateIdle State = iota
	StateNavigating
	StateLoaded
	StateChallengeDetected
	StateBlockedDetected
	StateAwaitingClearance
	StateCleared
	StateTimedOut
	StateSuccess
	StateFailure
)

var stateNames = [...]string{
	"idle", "navigating", "loaded", "challenge-detected", "blocked-detected",
	"awaiting-clearance", "cleared", "timed-out", "success", "failure",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Outcome summarizes how a navigation ended.
type Outcome int

const (
	OutcomeLoaded Outcome = iota
	OutcomeChallengePassed
	OutcomeBlocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeChallengePassed:
		return "challenge-passed"
	}
	return "blocked"
}

// Result is what one Navigate call observed.
type Result struct {
	Page    browser.Page
	Outcome Outcome

	// Attempts is the number of attempts started; Loads the number of page
	// loads issued. Loads never exceeds the configured maximum.
	Attempts int
	Loads    int
	Trace    []State
}

func (r *Result) enter(s State) {
	r.Trace = append(r.Trace, s)
}

// Navigator owns no state between calls; the session carries cookies.
type Navigator struct {
	Session          browser.Session
	Detector         challenge.Detector
	Resolver         *challenge.Resolver
	MaxAttempts      int
	BackoffBase      time.Duration
	BackoffFactor    float64
	ClearanceTimeout time.Duration

	// Sleep performs backoff waits; nil means pacing.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error

	Log *logrus.Entry
}

// New builds a Navigator over s from cfg.
func New(s browser.Session, cfg types.ScrapeConfig, log *logrus.Entry) *Navigator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Navigator{
		Session:          s,
		Resolver:         challenge.NewResolver(cfg.ClearancePoll),
		MaxAttempts:      cfg.MaxAttempts,
		BackoffBase:      cfg.BackoffBase,
		BackoffFactor:    cfg.BackoffFactor,
		ClearanceTimeout: cfg.ClearanceTimeout,
		Log:              log.WithField("component", "navigate"),
	}
}

// Backoff returns the wait after a failed attempt: BackoffBase·BackoffFactor^attempt.
func (n *Navigator) Backoff(attempt int) time.Duration {
	factor := n.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	return time.Duration(float64(n.BackoffBase) * math.Pow(factor, float64(attempt)))
}

// Navigate loads url, retrying challenges and transport errors up to
// MaxAttempts loads. A Blocked verdict fails at once. Failures are *NavError;
// a cancelled ctx returns ctx.Err().
func (n *Navigator) Navigate(ctx context.Context, url string) (Result, error) {
	maxAttempts := n.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	resolver := n.Resolver
	if resolver == nil {
		resolver = challenge.NewResolver(0)
	}
	log := n.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("url", url)

	res := Result{Outcome: OutcomeBlocked}
	res.enter(StateIdle)

	lastKind := KindChallengeTimeout
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempts = attempt
		res.enter(StateNavigating)

		stale := n.Session.Cookie(ctx, resolver.CookieName())
		page, err := n.Session.Navigate(ctx, url)
		res.Loads++
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			lastKind, lastErr = KindTransport, err
			log.WithFields(logrus.Fields{"attempt": attempt, "error": err}).Warn("page load failed")
			if err := n.backoff(ctx, attempt, maxAttempts, log); err != nil {
				return res, err
			}
			continue
		}

		verdict := n.Detector.Classify(page)
		log.WithFields(logrus.Fields{"attempt": attempt, "verdict": verdict, "status": page.Status}).Debug("page classified")

		switch verdict {
		case challenge.Normal:
			res.enter(StateLoaded)
			res.enter(StateSuccess)
			res.Page = page
			res.Outcome = OutcomeLoaded
			return res, nil

		case challenge.Blocked:
			res.enter(StateBlockedDetected)
			res.enter(StateFailure)
			log.WithField("attempt", attempt).Warn("hard block detected")
			return res, &NavError{Kind: KindBlocked, URL: url, Attempts: attempt}
		}

		res.enter(StateChallengeDetected)
		res.enter(StateAwaitingClearance)
		if resolver.AwaitClearanceSince(ctx, n.Session, stale, n.ClearanceTimeout) {
			res.enter(StateCleared)
			cleared, err := n.Session.Content(ctx)
			var after challenge.Verdict
			if err == nil {
				after = n.Detector.Classify(cleared)
			}
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				lastKind, lastErr = KindTransport, err
			case after == challenge.Normal:
				res.enter(StateLoaded)
				res.enter(StateSuccess)
				res.Page = cleared
				res.Outcome = OutcomeChallengePassed
				log.WithField("attempt", attempt).Info("challenge cleared")
				return res, nil
			case after == challenge.Blocked:
				res.enter(StateBlockedDetected)
				res.enter(StateFailure)
				log.WithField("attempt", attempt).Warn("hard block after clearance")
				return res, &NavError{Kind: KindBlocked, URL: url, Attempts: attempt}
			default:
				// A new cookie arrived but the document is still the interstitial.
				res.enter(StateTimedOut)
				lastKind, lastErr = KindChallengeTimeout, nil
				log.WithField("attempt", attempt).Warn("page still a challenge after clearance cookie")
			}
		} else {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.enter(StateTimedOut)
			lastKind, lastErr = KindChallengeTimeout, nil
			log.WithField("attempt", attempt).Warn("challenge not cleared before timeout")
		}
		if err := n.backoff(ctx, attempt, maxAttempts, log); err != nil {
			return res, err
		}
	}

	res.enter(StateFailure)
	return res, &NavError{Kind: lastKind, URL: url, Attempts: maxAttempts, Err: lastErr}
}

// backoff sleeps before the next attempt, if one remains.
func (n *Navigator) backoff(ctx context.Context, attempt, maxAttempts int, log *logrus.Entry) error {
	if attempt >= maxAttempts {
		return nil
	}
	d := n.Backoff(attempt)
	log.WithFields(logrus.Fields{"attempt": attempt, "backoff": d}).Info("retrying after backoff")
	sleep := n.Sleep
	if sleep == nil {
		sleep = pacing.Sleep
	}
	return sleep(ctx, d)
}
