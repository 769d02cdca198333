// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/viper"

	"github.com/pdiddy/cite-hustle/internal/secrets"
	"github.com/pdiddy/cite-hustle/pkg/types"
)

const defaultDataDir = "data"

// setDefaults registers every configuration key with its default so that
// config files and CITE_HUSTLE_* variables can override any of them.
func setDefaults(v *viper.Viper) {
	d := types.DefaultScrapeConfig()

	v.SetDefault("data_dir", defaultDataDir)
	v.SetDefault("db_path", "")
	v.SetDefault("html_dir", "")
	v.SetDefault("log_level", "info")

	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.user_agent", d.Browser.UserAgent)
	v.SetDefault("browser.proxy_url", "")
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.page_timeout", d.Browser.PageTimeout)

	v.SetDefault("scrape.base_delay", d.BaseDelay)
	v.SetDefault("scrape.distraction_probability", d.DistractionProbability)
	v.SetDefault("scrape.distraction_min", d.DistractionMin)
	v.SetDefault("scrape.distraction_max", d.DistractionMax)
	v.SetDefault("scrape.similarity_threshold", d.SimilarityThreshold)
	v.SetDefault("scrape.length_weight", d.LengthWeight)
	v.SetDefault("scrape.max_attempts", d.MaxAttempts)
	v.SetDefault("scrape.backoff_base", d.BackoffBase)
	v.SetDefault("scrape.backoff_factor", d.BackoffFactor)
	v.SetDefault("scrape.clearance_timeout", d.ClearanceTimeout)
	v.SetDefault("scrape.clearance_poll", d.ClearancePoll)
	v.SetDefault("scrape.search_url", d.SearchURL)
	v.SetDefault("scrape.max_results", d.MaxResults)
	v.SetDefault("scrape.results_timeout", d.ResultsTimeout)
	v.SetDefault("scrape.settle_delay", d.SettleDelay)
	v.SetDefault("scrape.save_html", d.SaveHTML)
}

// loadConfig reads the resolved keys from v, fills credentials from the
// secrets directory, and validates the scrape settings.
func loadConfig(v *viper.Viper) (types.Config, error) {
	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	storage := types.DefaultStorageConfig(dataDir)
	if p := v.GetString("db_path"); p != "" {
		storage.DBPath = p
	}
	if p := v.GetString("html_dir"); p != "" {
		storage.HTMLDir = p
	}

	cfg := types.Config{
		Storage:  storage,
		LogLevel: v.GetString("log_level"),
		Scrape: types.ScrapeConfig{
			Browser: types.BrowserConfig{
				Headless:    v.GetBool("browser.headless"),
				UserAgent:   v.GetString("browser.user_agent"),
				ProxyURL:    secretDefault(secrets.ProxyURL, v.GetString("browser.proxy_url")),
				RemoteURL:   secretDefault(secrets.BrowserWSURL, v.GetString("browser.remote_url")),
				PageTimeout: v.GetDuration("browser.page_timeout"),
			},
			BaseDelay:              v.GetDuration("scrape.base_delay"),
			DistractionProbability: v.GetFloat64("scrape.distraction_probability"),
			DistractionMin:         v.GetDuration("scrape.distraction_min"),
			DistractionMax:         v.GetDuration("scrape.distraction_max"),
			SimilarityThreshold:    v.GetFloat64("scrape.similarity_threshold"),
			LengthWeight:           v.GetFloat64("scrape.length_weight"),
			MaxAttempts:            v.GetInt("scrape.max_attempts"),
			BackoffBase:            v.GetDuration("scrape.backoff_base"),
			BackoffFactor:          v.GetFloat64("scrape.backoff_factor"),
			ClearanceTimeout:       v.GetDuration("scrape.clearance_timeout"),
			ClearancePoll:          v.GetDuration("scrape.clearance_poll"),
			SearchURL:              v.GetString("scrape.search_url"),
			MaxResults:             v.GetInt("scrape.max_results"),
			ResultsTimeout:         v.GetDuration("scrape.results_timeout"),
			SettleDelay:            v.GetDuration("scrape.settle_delay"),
			SaveHTML:               v.GetBool("scrape.save_html"),
		},
	}
	return cfg, cfg.Scrape.Validate()
}
