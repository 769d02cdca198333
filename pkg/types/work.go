// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the records shared between the scraping engine, the
// store, and the CLI.
package types

import "time"

// WorkItem is one bibliographic record awaiting a landing page.
// The engine never mutates it.
type WorkItem struct {
	// ID is the stable key, normally a DOI (e.g. "10.2308/accr-50000").
	ID string `json:"id" yaml:"id"`

	// Title is the known title used for searching and matching.
	Title string `json:"title" yaml:"title"`

	// Authors is an optional free-form author list.
	Authors string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Journal is the journal name, for reporting only.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// Candidate is one search-result entry considered for matching.
type Candidate struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`

	// Rank is the 0-based position in the search results.
	Rank int `json:"rank" yaml:"rank"`
}

// Disposition is the terminal state of a WorkItem.
type Disposition string

const (
	DispositionMatched Disposition = "matched"
	DispositionNoMatch Disposition = "no_match"
	DispositionFailed  Disposition = "failed"
)

// Valid reports whether d is one of the three terminal dispositions.
func (d Disposition) Valid() bool {
	switch d {
	case DispositionMatched, DispositionNoMatch, DispositionFailed:
		return true
	}
	return false
}

// MatchResult is the single outcome recorded for a WorkItem.
// A non-empty URL always carries a Score at or above the acceptance threshold.
type MatchResult struct {
	ID  string `json:"id" yaml:"id"`
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// LandingID is the repository's own identifier parsed from URL (SSRN abstract_id).
	LandingID string `json:"landing_id,omitempty" yaml:"landing_id,omitempty"`

	Abstract    string      `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Score       float64     `json:"score" yaml:"score"`
	Disposition Disposition `json:"disposition" yaml:"disposition"`

	// ErrorReason is a triage string such as "blocked: ..." for failed items.
	ErrorReason string `json:"error_reason,omitempty" yaml:"error_reason,omitempty"`

	// HTMLPath locates the saved landing page markup, if any.
	HTMLPath string `json:"html_path,omitempty" yaml:"html_path,omitempty"`

	ScrapedAt time.Time `json:"scraped_at" yaml:"scraped_at"`
}
