// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cite-hustle/internal/scrape"
)

// --- init subcommand ---

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and data directories",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := os.MkdirAll(cfg.Storage.HTMLDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", cfg.Storage.HTMLDir, err)
	}
	fmt.Printf("Initialized %s\n", cfg.Storage.DBPath)
	fmt.Printf("Landing pages will be saved under %s\n", cfg.Storage.HTMLDir)
	if !st.HasFullText() {
		fmt.Println("FTS5 is unavailable; search falls back to substring matching.")
	}
	return nil
}

// --- import subcommand ---

var importCmd = &cobra.Command{
	Use:   "import <items.yaml>",
	Short: "Import work items from a YAML file",
	Long: `Import reads a YAML file with an items list (id, title, authors,
year, journal) and upserts each item. Items without an id or a title are
skipped. Re-importing updates metadata and keeps existing results.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sum, err := st.ImportFile(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Imported %s: %d inserted, %d updated, %d skipped (total: %d)\n",
		args[0], sum.Inserted, sum.Updated, sum.Skipped, sum.Total())
	return nil
}

// --- reextract subcommand ---

var reextractCmd = &cobra.Command{
	Use:   "reextract",
	Short: "Re-run abstract extraction over saved landing pages",
	Long: `Reextract reads the saved HTML of matched items that have no
abstract and runs the extractor again, without any network access.`,
	RunE: runReextract,
}

func runReextract(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	_, err = scrape.Reextract(context.Background(), st, os.Stdout)
	return err
}

// --- status subcommand ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scraping progress",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Statistics(context.Background())
	if err != nil {
		return err
	}

	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		data, err := yaml.Marshal(&stats)
		if err != nil {
			return fmt.Errorf("marshaling statistics: %w", err)
		}
		os.Stdout.Write(data)
		return nil
	}

	fmt.Printf("Articles:          %d\n", stats.Articles)
	fmt.Printf("Scraped:           %d\n", stats.Scraped())
	fmt.Printf("  matched:         %d\n", stats.Matched)
	fmt.Printf("  no match:        %d\n", stats.NoMatch)
	fmt.Printf("  failed:          %d\n", stats.Failed)
	fmt.Printf("Pending:           %d\n", stats.Pending)
	fmt.Printf("With abstract:     %d\n", stats.WithAbstract)
	fmt.Printf("Missing abstract:  %d\n", stats.MissingAbstract)
	if stats.Claimed > 0 {
		fmt.Printf("Claimed:           %d\n", stats.Claimed)
	}
	if len(stats.RecentYears) > 0 {
		fmt.Println("\nRecent years:")
		for _, yc := range stats.RecentYears {
			fmt.Printf("  %d  %d\n", yc.Year, yc.Count)
		}
	}
	return nil
}

// --- search subcommand ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search imported titles",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := st.SearchTitles(context.Background(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No matching titles.")
		return nil
	}
	for _, h := range hits {
		mark := " "
		if h.Abstract != "" {
			mark = "*"
		}
		fmt.Printf("%s %-28s %4d  %s\n", mark, h.Item.ID, h.Item.Year, h.Item.Title)
	}
	return nil
}

// --- reset-failed subcommand ---

var resetFailedCmd = &cobra.Command{
	Use:   "reset-failed",
	Short: "Forget failed results so the items are scraped again",
	RunE:  runResetFailed,
}

func runResetFailed(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	olderThan, _ := cmd.Flags().GetDuration("older-than")
	n, err := st.ResetFailed(context.Background(), olderThan)
	if err != nil {
		return err
	}
	fmt.Printf("Reset %d failed item(s)\n", n)
	return nil
}

// --- export subcommand ---

var exportCmd = &cobra.Command{
	Use:   "export <results.yaml>",
	Short: "Write all results to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ExportResults(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d result(s) to %s\n", n, args[0])
	return nil
}

func init() {
	statusCmd.Flags().Bool("yaml", false, "print statistics as YAML")
	searchCmd.Flags().Int("limit", 20, "maximum number of results")
	resetFailedCmd.Flags().Duration("older-than", 0, "only reset failures older than this (0 = all)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reextractCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(resetFailedCmd)
	rootCmd.AddCommand(exportCmd)
}
