// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/cite-hustle/pkg/types"
)

// YearCount is the number of articles published in one year.
type YearCount struct {
	Year  int `json:"year" yaml:"year"`
	Count int `json:"count" yaml:"count"`
}

// Stats summarizes scraping progress.
type Stats struct {
	Articles        int         `json:"articles" yaml:"articles"`
	Matched         int         `json:"matched" yaml:"matched"`
	NoMatch         int         `json:"no_match" yaml:"no_match"`
	Failed          int         `json:"failed" yaml:"failed"`
	Pending         int         `json:"pending" yaml:"pending"`
	WithAbstract    int         `json:"with_abstract" yaml:"with_abstract"`
	MissingAbstract int         `json:"missing_abstract" yaml:"missing_abstract"`
	Claimed         int         `json:"claimed" yaml:"claimed"`
	RecentYears     []YearCount `json:"recent_years,omitempty" yaml:"recent_years,omitempty"`
}

// Scraped returns the number of items with any result.
func (s Stats) Scraped() int {
	return s.Matched + s.NoMatch + s.Failed
}

// Statistics computes progress counts.
func (s *Store) Statistics(ctx context.Context) (Stats, error) {
	var st Stats
	counts := []struct {
		dest  *int
		query string
	}{
		{&st.Articles, `SELECT count(*) FROM articles`},
		{&st.Matched, `SELECT count(*) FROM landing_pages WHERE disposition = 'matched'`},
		{&st.NoMatch, `SELECT count(*) FROM landing_pages WHERE disposition = 'no_match'`},
		{&st.Failed, `SELECT count(*) FROM landing_pages WHERE disposition = 'failed'`},
		{&st.Pending, `SELECT count(*) ` + pendingFrom},
		{&st.WithAbstract, `SELECT count(*) FROM landing_pages WHERE abstract IS NOT NULL AND abstract != ''`},
		{&st.MissingAbstract, `SELECT count(*) FROM landing_pages WHERE disposition = 'matched' AND (abstract IS NULL OR abstract = '')`},
		{&st.Claimed, `SELECT count(*) FROM claims`},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return st, fmt.Errorf("computing statistics: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT year, count(*) FROM articles WHERE year IS NOT NULL AND year > 0
		 GROUP BY year ORDER BY year DESC LIMIT 5`)
	if err != nil {
		return st, fmt.Errorf("counting by year: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var yc YearCount
		if err := rows.Scan(&yc.Year, &yc.Count); err != nil {
			return st, fmt.Errorf("scanning year count: %w", err)
		}
		st.RecentYears = append(st.RecentYears, yc)
	}
	return st, rows.Err()
}

// SearchHit is one title search result.
type SearchHit struct {
	Item     types.WorkItem
	Score    float64
	Abstract string
}

// SearchTitles finds articles whose title matches query, using the FTS5
// index when present and a LIKE scan otherwise.
func (s *Store) SearchTitles(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if s.fts {
		hits, err := s.searchFTS(ctx, query, limit)
		if err == nil {
			return hits, nil
		}
	}
	return s.searchLike(ctx, query, limit)
}

func (s *Store) searchFTS(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.doi, a.title, COALESCE(a.authors, ''), COALESCE(a.year, 0), COALESCE(a.journal, ''),
			-bm25(articles_fts), COALESCE(p.abstract, '')
		 FROM articles_fts
		 JOIN articles a ON a.rowid = articles_fts.rowid
		 LEFT JOIN landing_pages p ON p.doi = a.doi
		 WHERE articles_fts MATCH ?
		 ORDER BY bm25(articles_fts)
		 LIMIT ?`,
		ftsQuery(query), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	return scanHits(rows)
}

func (s *Store) searchLike(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.doi, a.title, COALESCE(a.authors, ''), COALESCE(a.year, 0), COALESCE(a.journal, ''),
			0, COALESCE(p.abstract, '')
		 FROM articles a
		 LEFT JOIN landing_pages p ON p.doi = a.doi
		 WHERE a.title LIKE '%' || ? || '%'
		 ORDER BY a.year DESC, a.doi
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("title search: %w", err)
	}
	return scanHits(rows)
}

func scanHits(rows *sql.Rows) ([]SearchHit, error) {
	defer rows.Close()
	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.Item.ID, &h.Item.Title, &h.Item.Authors, &h.Item.Year,
			&h.Item.Journal, &h.Score, &h.Abstract); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery quotes each term so user input cannot inject FTS5 syntax.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// ResetFailed deletes failed results so their items are offered again.
// With olderThan > 0 only results scraped before now-olderThan are removed.
func (s *Store) ResetFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	q := `DELETE FROM landing_pages WHERE disposition = 'failed'`
	var args []any
	if olderThan > 0 {
		q += ` AND scraped_at < ?`
		args = append(args, s.now().Add(-olderThan).UTC().Format(timeFmt))
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("resetting failed results: %w", err)
	}
	return res.RowsAffected()
}

// MissingAbstracts returns matched results that have saved markup but no abstract.
func (s *Store) MissingAbstracts(ctx context.Context) ([]types.MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, resultSelect+`
		WHERE disposition = 'matched'
		  AND html_path IS NOT NULL AND html_path != ''
		  AND (abstract IS NULL OR abstract = '')
		ORDER BY doi`)
	if err != nil {
		return nil, fmt.Errorf("querying missing abstracts: %w", err)
	}
	return scanResults(rows)
}

// UpdateAbstract sets the abstract of an existing result.
func (s *Store) UpdateAbstract(ctx context.Context, id, abstract string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE landing_pages SET abstract = ? WHERE doi = ?`, abstract, id)
	if err != nil {
		return fmt.Errorf("updating abstract %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	return nil
}
