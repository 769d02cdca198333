// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"

	"github.com/pdiddy/cite-hustle/pkg/types"
)

// PendingQueue hands out a snapshot of pending items in order. It suits a
// single worker; concurrent workers use ClaimQueue.
type PendingQueue struct {
	items []types.WorkItem
	next  int
}

// NewPendingQueue snapshots up to limit pending items (all when limit <= 0).
func NewPendingQueue(ctx context.Context, s *Store, limit int) (*PendingQueue, error) {
	items, err := s.Pending(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &PendingQueue{items: items}, nil
}

// Len returns the number of items in the snapshot.
func (q *PendingQueue) Len() int { return len(q.items) }

// Next returns the next item in the snapshot.
func (q *PendingQueue) Next(ctx context.Context) (types.WorkItem, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.WorkItem{}, false, err
	}
	if q.next >= len(q.items) {
		return types.WorkItem{}, false, nil
	}
	it := q.items[q.next]
	q.next++
	return it, true, nil
}

// ClaimQueue pulls items through ClaimNext, so any number of workers can
// share the table without processing an item twice.
type ClaimQueue struct {
	Store *Store
	RunID string
}

// Next claims the next pending item for the queue's run.
func (q *ClaimQueue) Next(ctx context.Context) (types.WorkItem, bool, error) {
	return q.Store.ClaimNext(ctx, q.RunID)
}

// RunRecorder saves results on behalf of one run.
type RunRecorder struct {
	Store *Store
	RunID string
}

// Recorder returns a RunRecorder for runID.
func (s *Store) Recorder(runID string) RunRecorder {
	return RunRecorder{Store: s, RunID: runID}
}

// SaveResult records r under the recorder's run.
func (r RunRecorder) SaveResult(ctx context.Context, res types.MatchResult) error {
	return r.Store.SaveResult(ctx, r.RunID, res)
}
