// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cite-hustle/pkg/types"
)

// ItemFile is the on-disk form of a batch of work items, as produced by a
// metadata collector:
//
//	source: crossref
//	items:
//	  - id: 10.2308/accr-50000
//	    title: Real Earnings Management Practices
//	    authors: A. Author; B. Author
//	    year: 2019
//	    journal: The Accounting Review
type ItemFile struct {
	Source string           `yaml:"source,omitempty"`
	Items  []types.WorkItem `yaml:"items"`
}

// ReadItemFile loads an item file from disk.
func ReadItemFile(path string) (*ItemFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading item file: %w", err)
	}
	var f ItemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing item file: %w", err)
	}
	return &f, nil
}

// ImportFile reads path, imports its items, and logs one import entry.
func (s *Store) ImportFile(ctx context.Context, path string) (ImportSummary, error) {
	f, err := ReadItemFile(path)
	if err != nil {
		return ImportSummary{}, err
	}
	summary, err := s.ImportItems(ctx, f.Items)
	if err != nil {
		return summary, err
	}
	source := f.Source
	if source == "" {
		source = path
	}
	if err := s.LogProcessing(ctx, "", "import", "success",
		fmt.Sprintf("%s: %d inserted, %d updated, %d skipped", source, summary.Inserted, summary.Updated, summary.Skipped), ""); err != nil {
		return summary, err
	}
	return summary, nil
}

// ExportResults writes every stored result to path as YAML, for sharing or
// loading into other tools.
func (s *Store) ExportResults(ctx context.Context, path string) (int, error) {
	rows, err := s.db.QueryContext(ctx, resultSelect+` ORDER BY doi`)
	if err != nil {
		return 0, fmt.Errorf("querying results: %w", err)
	}
	results, err := scanResults(rows)
	if err != nil {
		return 0, err
	}

	doc := struct {
		ExportedAt time.Time           `yaml:"exported_at"`
		Results    []types.MatchResult `yaml:"results"`
	}{ExportedAt: s.now().UTC(), Results: results}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return 0, fmt.Errorf("marshaling results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return len(results), nil
}
