// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists work items and their match results in SQLite.
// It is the queue the scraper pulls from (items without a result) and the
// recorder it writes to.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/cite-hustle/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ClaimTTL is how long a claim blocks other workers before it is treated as
// abandoned by a crashed run.
var ClaimTTL = time.Hour

// timeFmt is fixed width so stored timestamps compare correctly as text.
const timeFmt = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the cite-hustle SQLite database.
type Store struct {
	db  *sql.DB
	fts bool
	now func() time.Time
}

// Open opens or creates the database at dbPath and ensures the schema.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=10000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// HasFullText reports whether the FTS5 title index is available.
func (s *Store) HasFullText() bool {
	return s.fts
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			doi TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors TEXT,
			year INTEGER,
			journal TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS landing_pages (
			doi TEXT PRIMARY KEY REFERENCES articles(doi),
			url TEXT,
			landing_id TEXT,
			html_path TEXT,
			abstract TEXT,
			match_score REAL,
			disposition TEXT NOT NULL,
			error_message TEXT,
			scraped_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS claims (
			doi TEXT PRIMARY KEY REFERENCES articles(doi),
			run_id TEXT NOT NULL,
			claimed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS processing_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			doi TEXT,
			stage TEXT,
			status TEXT,
			error_message TEXT,
			run_id TEXT,
			processed_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_year ON articles(year)`,
		`CREATE INDEX IF NOT EXISTS idx_landing_disposition ON landing_pages(disposition)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_log_doi ON processing_log(doi)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	s.fts = s.createFullText() == nil
	return nil
}

// createFullText builds the FTS5 title index. A driver built without FTS5
// fails here and search falls back to LIKE.
func (s *Store) createFullText() error {
	var exists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='articles_fts'`,
	).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ftsStatements := []string{
		`CREATE VIRTUAL TABLE articles_fts USING fts5(title, content=articles, content_rowid=rowid)`,
		`CREATE TRIGGER articles_ai AFTER INSERT ON articles BEGIN
			INSERT INTO articles_fts(rowid, title) VALUES (new.rowid, new.title);
		END`,
		`CREATE TRIGGER articles_ad AFTER DELETE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title) VALUES('delete', old.rowid, old.title);
		END`,
		`CREATE TRIGGER articles_au AFTER UPDATE ON articles BEGIN
			INSERT INTO articles_fts(articles_fts, rowid, title) VALUES('delete', old.rowid, old.title);
			INSERT INTO articles_fts(rowid, title) VALUES (new.rowid, new.title);
		END`,
		`INSERT INTO articles_fts(articles_fts) VALUES('rebuild')`,
	}
	for _, stmt := range ftsStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ImportSummary holds counts from an import.
type ImportSummary struct {
	Inserted int
	Updated  int
	Skipped  int
}

// Total returns the number of items processed.
func (s ImportSummary) Total() int {
	return s.Inserted + s.Updated + s.Skipped
}

// ImportItems upserts work items into articles. Items without an ID or a
// title are skipped.
func (s *Store) ImportItems(ctx context.Context, items []types.WorkItem) (ImportSummary, error) {
	var summary ImportSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(timeFmt)
	for _, it := range items {
		id := strings.TrimSpace(it.ID)
		title := strings.TrimSpace(it.Title)
		if id == "" || title == "" {
			summary.Skipped++
			continue
		}

		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM articles WHERE doi = ?`, id).Scan(&existing); err != nil {
			return summary, fmt.Errorf("checking article %s: %w", id, err)
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO articles (doi, title, authors, year, journal, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(doi) DO UPDATE SET
				title=excluded.title, authors=excluded.authors,
				year=excluded.year, journal=excluded.journal`,
			id, title, it.Authors, it.Year, it.Journal, now,
		)
		if err != nil {
			return summary, fmt.Errorf("upserting article %s: %w", id, err)
		}
		if existing > 0 {
			summary.Updated++
		} else {
			summary.Inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("committing import: %w", err)
	}
	return summary, nil
}

// pendingFrom selects articles that have no landing_pages row.
const pendingFrom = `FROM articles a LEFT JOIN landing_pages p ON p.doi = a.doi WHERE p.doi IS NULL`

// Pending returns items with no result yet, newest year first, then by DOI.
// A limit <= 0 returns all.
func (s *Store) Pending(ctx context.Context, limit int) ([]types.WorkItem, error) {
	q := `SELECT a.doi, a.title, COALESCE(a.authors, ''), COALESCE(a.year, 0), COALESCE(a.journal, '') ` +
		pendingFrom + ` ORDER BY a.year DESC, a.doi`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pending items: %w", err)
	}
	defer rows.Close()

	var items []types.WorkItem
	for rows.Next() {
		var it types.WorkItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Authors, &it.Year, &it.Journal); err != nil {
			return nil, fmt.Errorf("scanning pending item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Article returns the work item stored under id.
func (s *Store) Article(ctx context.Context, id string) (types.WorkItem, error) {
	var it types.WorkItem
	err := s.db.QueryRowContext(ctx,
		`SELECT doi, title, COALESCE(authors, ''), COALESCE(year, 0), COALESCE(journal, '')
		 FROM articles WHERE doi = ?`, id,
	).Scan(&it.ID, &it.Title, &it.Authors, &it.Year, &it.Journal)
	if errors.Is(err, sql.ErrNoRows) {
		return it, fmt.Errorf("article %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return it, fmt.Errorf("reading article %s: %w", id, err)
	}
	return it, nil
}

// ClaimNext atomically claims one pending item for runID. Items claimed by
// another run within ClaimTTL are skipped. ok is false when nothing is left.
func (s *Store) ClaimNext(ctx context.Context, runID string) (item types.WorkItem, ok bool, err error) {
	now := s.now().UTC()
	stale := now.Add(-ClaimTTL).Format(timeFmt)

	var id string
	err = s.db.QueryRowContext(ctx,
		`INSERT OR REPLACE INTO claims (doi, run_id, claimed_at)
		 SELECT a.doi, ?, ? FROM articles a
		 LEFT JOIN landing_pages p ON p.doi = a.doi
		 LEFT JOIN claims c ON c.doi = a.doi
		 WHERE p.doi IS NULL AND (c.doi IS NULL OR c.claimed_at < ?)
		 ORDER BY a.year DESC, a.doi
		 LIMIT 1
		 RETURNING doi`,
		runID, now.Format(timeFmt), stale,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return item, false, nil
	}
	if err != nil {
		return item, false, fmt.Errorf("claiming item: %w", err)
	}

	item, err = s.Article(ctx, id)
	if err != nil {
		return item, false, err
	}
	return item, true, nil
}

// Release drops the claim on id so another worker may take it.
func (s *Store) Release(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE doi = ?`, id); err != nil {
		return fmt.Errorf("releasing claim %s: %w", id, err)
	}
	return nil
}

// ReleaseRun drops every claim held by runID.
func (s *Store) ReleaseRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("releasing claims of run %s: %w", runID, err)
	}
	return nil
}

// SaveResult records r as the single result for its item, clears any claim,
// and appends a processing_log entry, all in one transaction.
func (s *Store) SaveResult(ctx context.Context, runID string, r types.MatchResult) error {
	if !r.Disposition.Valid() {
		return fmt.Errorf("result %s has invalid disposition %q", r.ID, r.Disposition)
	}
	scrapedAt := r.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO landing_pages (doi, url, landing_id, html_path, abstract, match_score, disposition, error_message, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doi) DO UPDATE SET
			url=excluded.url, landing_id=excluded.landing_id, html_path=excluded.html_path,
			abstract=excluded.abstract, match_score=excluded.match_score,
			disposition=excluded.disposition, error_message=excluded.error_message,
			scraped_at=excluded.scraped_at`,
		r.ID, nullable(r.URL), nullable(r.LandingID), nullable(r.HTMLPath), nullable(r.Abstract),
		r.Score, string(r.Disposition), nullable(r.ErrorReason), scrapedAt.UTC().Format(timeFmt),
	)
	if err != nil {
		return fmt.Errorf("saving result %s: %w", r.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE doi = ?`, r.ID); err != nil {
		return fmt.Errorf("clearing claim %s: %w", r.ID, err)
	}
	if err := logProcessing(ctx, tx, r.ID, "scrape", string(r.Disposition), r.ErrorReason, runID, s.now()); err != nil {
		return err
	}
	return tx.Commit()
}

// Result returns the stored result for id.
func (s *Store) Result(ctx context.Context, id string) (types.MatchResult, error) {
	rows, err := s.db.QueryContext(ctx, resultSelect+` WHERE doi = ?`, id)
	if err != nil {
		return types.MatchResult{}, fmt.Errorf("reading result %s: %w", id, err)
	}
	results, err := scanResults(rows)
	if err != nil {
		return types.MatchResult{}, err
	}
	if len(results) == 0 {
		return types.MatchResult{}, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	return results[0], nil
}

// LogProcessing appends a processing_log entry outside of SaveResult.
func (s *Store) LogProcessing(ctx context.Context, id, stage, status, message, runID string) error {
	return logProcessing(ctx, s.db, id, stage, status, message, runID, s.now())
}

// ProcessingEntry is one processing_log row.
type ProcessingEntry struct {
	ID          string
	Stage       string
	Status      string
	Message     string
	RunID       string
	ProcessedAt time.Time
}

// History returns the processing_log entries for id, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]ProcessingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doi, stage, status, COALESCE(error_message, ''), COALESCE(run_id, ''), processed_at
		 FROM processing_log WHERE doi = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []ProcessingEntry
	for rows.Next() {
		var e ProcessingEntry
		var at string
		if err := rows.Scan(&e.ID, &e.Stage, &e.Status, &e.Message, &e.RunID, &at); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		e.ProcessedAt, _ = time.Parse(timeFmt, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func logProcessing(ctx context.Context, db execer, id, stage, status, message, runID string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO processing_log (doi, stage, status, error_message, run_id, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, stage, status, nullable(message), nullable(runID), at.UTC().Format(timeFmt),
	)
	if err != nil {
		return fmt.Errorf("logging processing for %s: %w", id, err)
	}
	return nil
}

const resultSelect = `SELECT doi, COALESCE(url, ''), COALESCE(landing_id, ''), COALESCE(html_path, ''),
	COALESCE(abstract, ''), COALESCE(match_score, 0), disposition, COALESCE(error_message, ''), scraped_at
	FROM landing_pages`

func scanResults(rows *sql.Rows) ([]types.MatchResult, error) {
	defer rows.Close()
	var out []types.MatchResult
	for rows.Next() {
		var r types.MatchResult
		var disp, at string
		if err := rows.Scan(&r.ID, &r.URL, &r.LandingID, &r.HTMLPath, &r.Abstract,
			&r.Score, &disp, &r.ErrorReason, &at); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.Disposition = types.Disposition(disp)
		r.ScrapedAt, _ = time.Parse(timeFmt, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
