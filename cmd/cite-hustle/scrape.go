// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/cite-hustle/internal/artifact"
	"github.com/pdiddy/cite-hustle/internal/browser"
	"github.com/pdiddy/cite-hustle/internal/scrape"
	"github.com/pdiddy/cite-hustle/internal/store"
	"github.com/pdiddy/cite-hustle/pkg/types"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Find SSRN landing pages for pending items",
	Long: `Scrape searches SSRN for every imported item that has no result yet,
picks the best matching search result, and records its URL and abstract.

Requests are paced with randomized delays. Interstitial challenges are
waited out; hard blocks are recorded as failures. Press Ctrl-C to stop;
the next run resumes with the items that are still pending.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().Int("limit", 0, "maximum number of items to process (0 = all)")
	scrapeCmd.Flags().Duration("delay", 0, "base delay between items (overrides scrape.base_delay)")
	scrapeCmd.Flags().Int("workers", 1, "number of parallel browser sessions")
	scrapeCmd.Flags().Bool("headless", true, "run the browser without a window")
	scrapeCmd.Flags().Bool("http", false, "use a plain HTTP client instead of a browser")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	workers, _ := cmd.Flags().GetInt("workers")
	useHTTP, _ := cmd.Flags().GetBool("http")
	if delay, _ := cmd.Flags().GetDuration("delay"); delay > 0 {
		cfg.Scrape.BaseDelay = delay
	}
	if cmd.Flags().Changed("headless") {
		cfg.Scrape.Browser.Headless, _ = cmd.Flags().GetBool("headless")
	}

	log := newLogger(cmd, cfg.LogLevel)
	entry := logrus.NewEntry(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	newSession := sessionFactory(cfg.Scrape, useHTTP, entry)
	artifacts := artifact.Dir{Path: cfg.Storage.HTMLDir}

	var result scrape.BatchResult
	if workers <= 1 {
		result, err = scrapeSequential(ctx, st, cfg.Scrape, newSession, artifacts, limit, entry)
	} else {
		result, err = scrape.RunParallel(ctx, workers, newSession, scrape.ParallelOptions{
			Store:     st,
			Config:    cfg.Scrape,
			Artifacts: artifacts,
			Limit:     limit,
			Log:       entry,
		}, os.Stdout)
	}
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Interrupted; pending items will be picked up by the next run.")
			return nil
		}
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d item(s) failed; see status or reset-failed", result.Failed)
	}
	return nil
}

func scrapeSequential(ctx context.Context, st *store.Store, cfg types.ScrapeConfig, newSession scrape.SessionFactory,
	artifacts scrape.ArtifactSink, limit int, log *logrus.Entry) (scrape.BatchResult, error) {
	q, err := store.NewPendingQueue(ctx, st, limit)
	if err != nil {
		return scrape.BatchResult{}, err
	}
	if q.Len() == 0 {
		fmt.Println("Nothing to scrape.")
		return scrape.BatchResult{}, nil
	}

	sess, err := newSession(ctx)
	if err != nil {
		return scrape.BatchResult{}, err
	}
	defer sess.Close()

	runID := uuid.NewString()
	log = log.WithField("run_id", runID)
	log.WithField("items", q.Len()).Info("starting scrape")

	d := scrape.NewDriver(sess, cfg, st.Recorder(runID), artifacts, log)
	return d.Run(ctx, q, os.Stdout)
}

func sessionFactory(cfg types.ScrapeConfig, useHTTP bool, log *logrus.Entry) scrape.SessionFactory {
	return func(ctx context.Context) (browser.Session, error) {
		if useHTTP {
			return browser.NewHTTPSession(nil, cfg.Browser.UserAgent, cfg.Browser.PageTimeout)
		}
		return browser.NewRodSession(ctx, cfg.Browser, log)
	}
}
