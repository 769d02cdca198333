// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/cite-hustle/internal/artifact"
	"github.com/pdiddy/cite-hustle/internal/extract"
	"github.com/pdiddy/cite-hustle/pkg/types"
)

// AbstractStore is the part of the store re-extraction needs.
type AbstractStore interface {
	MissingAbstracts(ctx context.Context) ([]types.MatchResult, error)
	UpdateAbstract(ctx context.Context, id, abstract string) error
}

// ReextractResult counts the outcome of a re-extraction pass.
type ReextractResult struct {
	Updated      int
	StillMissing int
	Failed       int
}

// Total returns the number of results examined.
func (r ReextractResult) Total() int {
	return r.Updated + r.StillMissing + r.Failed
}

// Reextract runs the abstract extractor again over saved landing pages of
// matched results that have no abstract. Unreadable files are counted as
// failed; a store error ends the pass.
func Reextract(ctx context.Context, s AbstractStore, w io.Writer) (ReextractResult, error) {
	var result ReextractResult

	rows, err := s.MissingAbstracts(ctx)
	if err != nil {
		return result, err
	}

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		html, err := artifact.Load(r.HTMLPath)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", r.ID, err)
			result.Failed++
			continue
		}
		abstract, strategy := extract.AbstractWithStrategy(html)
		if abstract == "" {
			fmt.Fprintf(w, "missing: %s\n", r.ID)
			result.StillMissing++
			continue
		}
		if err := s.UpdateAbstract(ctx, r.ID, abstract); err != nil {
			return result, fmt.Errorf("updating %s: %w", r.ID, err)
		}
		fmt.Fprintf(w, "updated: %s (%s)\n", r.ID, strategy)
		result.Updated++
	}

	fmt.Fprintf(w, "\nRe-extraction summary: %d updated, %d still missing, %d failed (total: %d)\n",
		result.Updated, result.StillMissing, result.Failed, result.Total())
	return result, nil
}
