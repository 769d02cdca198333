// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/cite-hustle/internal/browser"
	"github.com/pdiddy/cite-hustle/internal/store"
	"github.com/pdiddy/cite-hustle/pkg/types"
)

// SessionFactory opens a session owned by one worker.
type SessionFactory func(ctx context.Context) (browser.Session, error)

// ParallelOptions configures RunParallel.
type ParallelOptions struct {
	Store     *store.Store
	Config    types.ScrapeConfig
	Artifacts ArtifactSink

	// Limit caps the number of items claimed across all workers; <= 0 is unlimited.
	Limit int

	Log *logrus.Entry

	// Sleep replaces every wait (pacing, settle, backoff); nil uses real time.
	Sleep func(ctx context.Context, d time.Duration) error

	// After replaces the clearance-poll clock; nil uses real time.
	After func(time.Duration) <-chan time.Time
}

// RunParallel starts n workers, each with its own session and run ID,
// pulling items from the store through ClaimNext. The first fatal error
// cancels the others. Claims left by interrupted items are released.
func RunParallel(ctx context.Context, n int, newSession SessionFactory, opts ParallelOptions, w io.Writer) (BatchResult, error) {
	if n < 1 {
		n = 1
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	var (
		mu     sync.Mutex
		total  BatchResult
		budget = newBudget(opts.Limit)
		out    = &syncWriter{w: w}
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		runID := uuid.NewString()
		wlog := log.WithFields(logrus.Fields{"worker": i, "run_id": runID})

		g.Go(func() error {
			defer func() {
				if err := opts.Store.ReleaseRun(context.WithoutCancel(ctx), runID); err != nil {
					wlog.WithError(err).Warn("releasing claims")
				}
			}()

			sess, err := newSession(gctx)
			if err != nil {
				return fmt.Errorf("worker %d: opening session: %w", i, err)
			}
			defer sess.Close()

			d := NewDriver(sess, opts.Config, opts.Store.Recorder(runID), opts.Artifacts, wlog)
			d.Sleep = opts.Sleep
			d.Navigator.Sleep = opts.Sleep
			if opts.After != nil {
				d.Navigator.Resolver.After = opts.After
			}

			q := &budgetQueue{q: &store.ClaimQueue{Store: opts.Store, RunID: runID}, budget: budget}
			res, err := d.run(gctx, q, out)

			mu.Lock()
			total.add(res)
			mu.Unlock()
			return err
		})
	}

	err := g.Wait()
	fmt.Fprintf(w, "\nBatch summary: %d matched, %d no match, %d failed (total: %d)\n",
		total.Succeeded, total.NoMatch, total.Failed, total.Total())
	return total, err
}

// budget is a shared item allowance; a negative value means unlimited.
type budget struct {
	left atomic.Int64
}

func newBudget(limit int) *budget {
	b := &budget{}
	if limit <= 0 {
		b.left.Store(-1)
	} else {
		b.left.Store(int64(limit))
	}
	return b
}

func (b *budget) take() bool {
	for {
		n := b.left.Load()
		if n < 0 {
			return true
		}
		if n == 0 {
			return false
		}
		if b.left.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// budgetQueue stops handing out items once the shared budget is spent.
type budgetQueue struct {
	q      Queue
	budget *budget
}

func (b *budgetQueue) Next(ctx context.Context) (types.WorkItem, bool, error) {
	if !b.budget.take() {
		return types.WorkItem{}, false, nil
	}
	return b.q.Next(ctx)
}

// syncWriter serializes progress lines from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
