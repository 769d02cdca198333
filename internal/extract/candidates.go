// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract pulls search-result candidates and abstracts out of
// loaded SSRN pages.
package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/cite-hustle/internal/browser"
	"github.com/pdiddy/cite-hustle/internal/pacing"
	"github.com/pdiddy/cite-hustle/pkg/types"
)

// ResultSelector matches the title links of an SSRN results page.
const ResultSelector = "h3[data-component='Typography'] a"

// CandidateOptions tunes Candidates.
type CandidateOptions struct {
	MaxResults     int
	ResultsTimeout time.Duration
	SettleDelay    time.Duration

	// Sleep performs the settle pause; nil means pacing.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
	Log   *logrus.Entry
}

// Candidates waits for the result list on the session's current page,
// pauses to let it settle, re-reads the document, and returns the parsed
// candidates in rank order. A list that never renders yields no candidates
// and no error; only a failure to read the document is an error.
func Candidates(ctx context.Context, s browser.Session, opts CandidateOptions) ([]types.Candidate, error) {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	if err := s.WaitFor(ctx, ResultSelector, opts.ResultsTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithError(err).Info("result list not present")
		return nil, nil
	}

	if opts.SettleDelay > 0 {
		sleep := opts.Sleep
		if sleep == nil {
			sleep = pacing.Sleep
		}
		if err := sleep(ctx, opts.SettleDelay); err != nil {
			return nil, err
		}
	}

	page, err := s.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("re-reading results page: %w", err)
	}

	cands, skipped, err := ParseCandidates(page.HTML, page.URL, opts.MaxResults)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		log.WithFields(logrus.Fields{"skipped": skipped, "kept": len(cands)}).Info("skipped incomplete results")
	}
	return cands, nil
}

// ParseCandidates extracts up to limit candidates (all when limit <= 0) from a
// results page. Entries missing a title or a link are skipped and counted.
// Relative links are resolved against base.
func ParseCandidates(html, base string, limit int) ([]types.Candidate, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("parsing results page: %w", err)
	}
	baseURL, _ := url.Parse(base)

	var cands []types.Candidate
	skipped := 0
	doc.Find(ResultSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if limit > 0 && len(cands) >= limit {
			return false
		}
		title := normalizeSpace(sel.Text())
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if title == "" || href == "" {
			skipped++
			return true
		}
		cands = append(cands, types.Candidate{
			Title: title,
			URL:   resolve(baseURL, href),
			Rank:  i,
		})
		return true
	})
	return cands, skipped, nil
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// normalizeSpace collapses runs of whitespace to single spaces.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
