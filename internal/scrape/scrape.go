// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scrape drives work items through search, matching, and landing
// page extraction, recording exactly one result per item.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/cite-hustle/internal/browser"
	"github.com/pdiddy/cite-hustle/internal/extract"
	"github.com/pdiddy/cite-hustle/internal/match"
	"github.com/pdiddy/cite-hustle/internal/navigate"
	"github.com/pdiddy/cite-hustle/internal/pacing"
	"github.com/pdiddy/cite-hustle/pkg/types"
)

// SearchURLBase is the search endpoint used when the config leaves
// SearchURL empty. The escaped title is appended to it.
var SearchURLBase = types.DefaultSearchURL

// Queue yields work items until it is exhausted.
type Queue interface {
	Next(ctx context.Context) (types.WorkItem, bool, error)
}

// Recorder persists results. An error from SaveResult stops the batch.
type Recorder interface {
	SaveResult(ctx context.Context, r types.MatchResult) error
}

// ArtifactSink stores raw landing page markup.
type ArtifactSink interface {
	SaveHTML(id, html string) (string, error)
}

// SliceQueue serves items from a slice in order.
type SliceQueue struct {
	Items []types.WorkItem
	next  int
}

// Next returns the next item of the slice.
func (q *SliceQueue) Next(ctx context.Context) (types.WorkItem, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.WorkItem{}, false, err
	}
	if q.next >= len(q.Items) {
		return types.WorkItem{}, false, nil
	}
	it := q.Items[q.next]
	q.next++
	return it, true, nil
}

// BatchResult holds the outcome of a batch run.
type BatchResult struct {
	Succeeded int
	NoMatch   int
	Failed    int
}

// Total returns the number of items recorded.
func (r BatchResult) Total() int {
	return r.Succeeded + r.NoMatch + r.Failed
}

// HasFailures reports whether any item failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

func (r *BatchResult) add(o BatchResult) {
	r.Succeeded += o.Succeeded
	r.NoMatch += o.NoMatch
	r.Failed += o.Failed
}

func (r *BatchResult) count(d types.Disposition) {
	switch d {
	case types.DispositionMatched:
		r.Succeeded++
	case types.DispositionNoMatch:
		r.NoMatch++
	default:
		r.Failed++
	}
}

// Driver processes items one at a time over a single session.
type Driver struct {
	Session   browser.Session
	Navigator *navigate.Navigator
	Pacing    *pacing.Policy
	Config    types.ScrapeConfig
	Recorder  Recorder

	// Artifacts receives landing page markup when Config.SaveHTML is set.
	// Nil disables saving.
	Artifacts ArtifactSink

	Log *logrus.Entry

	// Sleep performs pacing and settle waits; nil means pacing.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// NewDriver wires a Driver and its Navigator over s.
func NewDriver(s browser.Session, cfg types.ScrapeConfig, rec Recorder, artifacts ArtifactSink, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Driver{
		Session:   s,
		Navigator: navigate.New(s, cfg, log),
		Pacing:    pacing.New(cfg, nil),
		Config:    cfg,
		Recorder:  rec,
		Artifacts: artifacts,
		Log:       log.WithField("component", "scrape"),
	}
}

// Run drains q, printing one status line per item and a summary to w.
// Per-item failures are recorded and the batch continues; a Recorder error
// or cancellation ends it. An item interrupted by cancellation is left
// unrecorded so a later run picks it up.
func (d *Driver) Run(ctx context.Context, q Queue, w io.Writer) (BatchResult, error) {
	result, err := d.run(ctx, q, w)
	fmt.Fprintf(w, "\nBatch summary: %d matched, %d no match, %d failed (total: %d)\n",
		result.Succeeded, result.NoMatch, result.Failed, result.Total())
	return result, err
}

func (d *Driver) run(ctx context.Context, q Queue, w io.Writer) (BatchResult, error) {
	var result BatchResult
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item, ok, err := q.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			return result, fmt.Errorf("fetching next item: %w", err)
		}
		if !ok {
			return result, nil
		}

		if i > 0 && d.Pacing != nil {
			delay := d.Pacing.NextDelay()
			d.log().WithField("delay", delay).Debug("pausing before next item")
			if err := d.sleep(ctx, delay); err != nil {
				return result, err
			}
		}

		res, err := d.Process(ctx, item)
		if err != nil {
			fmt.Fprintf(w, "interrupted: %s\n", item.ID)
			return result, err
		}

		// The item is complete; record it even if cancellation arrives now.
		if err := d.Recorder.SaveResult(context.WithoutCancel(ctx), res); err != nil {
			return result, fmt.Errorf("recording %s: %w", item.ID, err)
		}
		result.count(res.Disposition)
		printResult(w, res)
	}
}

func printResult(w io.Writer, r types.MatchResult) {
	switch r.Disposition {
	case types.DispositionMatched:
		fmt.Fprintf(w, "matched: %s (score %.1f) %s\n", r.ID, r.Score, r.URL)
	case types.DispositionNoMatch:
		fmt.Fprintf(w, "no match: %s (best %.1f)\n", r.ID, r.Score)
	default:
		fmt.Fprintf(w, "failed:  %s (%s)\n", r.ID, r.ErrorReason)
	}
}

// Process searches for item, selects the best candidate, and reads its
// landing page. Failures become a failed MatchResult; only cancellation is
// returned as an error.
func (d *Driver) Process(ctx context.Context, item types.WorkItem) (types.MatchResult, error) {
	log := d.log().WithField("doi", item.ID)
	res := types.MatchResult{ID: item.ID, ScrapedAt: d.now()}

	searchURL := d.searchURL(item.Title)
	if _, err := d.Navigator.Navigate(ctx, searchURL); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log.WithError(err).Warn("search page failed")
		return failed(res, err), nil
	}

	cands, err := extract.Candidates(ctx, d.Session, extract.CandidateOptions{
		MaxResults:     d.Config.MaxResults,
		ResultsTimeout: d.Config.ResultsTimeout,
		SettleDelay:    d.Config.SettleDelay,
		Sleep:          d.Sleep,
		Log:            log,
	})
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log.WithError(err).Warn("candidate extraction failed")
		return failed(res, err), nil
	}

	sel := match.Select(item.Title, cands, d.Config.SimilarityThreshold, d.Config.LengthWeight)
	res.Score = sel.Score
	log = log.WithFields(logrus.Fields{"candidates": len(cands), "score": sel.Score})
	if !sel.Accepted {
		log.Info("no candidate above threshold")
		res.Disposition = types.DispositionNoMatch
		return res, nil
	}

	res.URL = sel.Best.URL
	res.LandingID = extract.LandingID(sel.Best.URL)
	log = log.WithField("url", res.URL)

	nav, err := d.Navigator.Navigate(ctx, sel.Best.URL)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log.WithError(err).Warn("landing page failed")
		return failed(res, err), nil
	}

	res.Disposition = types.DispositionMatched
	abstract, strategy := extract.AbstractWithStrategy(nav.Page.HTML)
	res.Abstract = abstract
	if abstract == "" {
		log.Warn("landing page has no abstract")
	} else {
		log.WithField("strategy", strategy).Debug("abstract extracted")
	}

	if d.Config.SaveHTML && d.Artifacts != nil {
		path, err := d.Artifacts.SaveHTML(item.ID, nav.Page.HTML)
		if err != nil {
			log.WithError(err).Warn("saving landing page markup")
		} else {
			res.HTMLPath = path
		}
	}

	log.Info("matched")
	return res, nil
}

func failed(r types.MatchResult, err error) types.MatchResult {
	r.Disposition = types.DispositionFailed
	r.ErrorReason = Reason(err)
	return r
}

// Categorize maps an error to the triage tag recorded with failed results.
func Categorize(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, navigate.ErrBlocked):
		return navigate.KindBlocked.String()
	case errors.Is(err, navigate.ErrChallengeUnresolved):
		return navigate.KindChallengeTimeout.String()
	case errors.Is(err, navigate.ErrTransport):
		return navigate.KindTransport.String()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "extraction-error"
}

// Reason formats err as "<tag>: <detail>".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var ne *navigate.NavError
	if errors.As(err, &ne) {
		return ne.Error()
	}
	return Categorize(err) + ": " + err.Error()
}

func (d *Driver) searchURL(title string) string {
	base := d.Config.SearchURL
	if base == "" {
		base = SearchURLBase
	}
	return base + url.QueryEscape(title)
}

func (d *Driver) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	return pacing.Sleep(ctx, dur)
}

func (d *Driver) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Driver) log() *logrus.Entry {
	if d.Log != nil {
		return d.Log
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
