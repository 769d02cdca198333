// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConfigValidation is returned (wrapped) when a configuration fails validation.
var ErrConfigValidation = errors.New("invalid configuration")

// DefaultSearchURL is the SSRN keyword search endpoint. The URL-escaped title
// is appended to it.
const DefaultSearchURL = "https://papers.ssrn.com/sol3/results.cfm?txtKey_Words="

// BrowserConfig holds settings for the browser session.
type BrowserConfig struct {
	// Headless hides the browser window. It affects observability only.
	Headless bool `json:"headless" yaml:"headless"`

	// UserAgent overrides the browser User-Agent when non-empty.
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`

	// ProxyURL routes browser traffic through a proxy (e.g. "socks5://host:1080").
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty"`

	// RemoteURL connects to an already running browser over its DevTools
	// WebSocket instead of launching one.
	RemoteURL string `json:"remote_url,omitempty" yaml:"remote_url,omitempty"`

	// PageTimeout bounds a single page load.
	PageTimeout time.Duration `json:"page_timeout" yaml:"page_timeout"`
}

// ScrapeConfig holds every tunable of the scraping engine.
type ScrapeConfig struct {
	Browser BrowserConfig `json:"browser" yaml:"browser"`

	// BaseDelay is the center of the inter-item pause (default 5s).
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// DistractionProbability is the chance of adding an extra long pause (default 0.12).
	DistractionProbability float64 `json:"distraction_probability" yaml:"distraction_probability"`

	// DistractionMin and DistractionMax bound the extra pause (default 30s-120s).
	DistractionMin time.Duration `json:"distraction_min" yaml:"distraction_min"`
	DistractionMax time.Duration `json:"distraction_max" yaml:"distraction_max"`

	// SimilarityThreshold is the minimum combined score (0-100) for a match (default 85).
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// LengthWeight is the weight (0-1) of word-count similarity in the combined score (default 0.3).
	LengthWeight float64 `json:"length_weight" yaml:"length_weight"`

	// MaxAttempts bounds page loads per navigation (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// BackoffBase and BackoffFactor shape the retry delay: base * factor^attempt.
	BackoffBase   time.Duration `json:"backoff_base" yaml:"backoff_base"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`

	// ClearanceTimeout bounds the wait for the clearance cookie (default 15s).
	ClearanceTimeout time.Duration `json:"clearance_timeout" yaml:"clearance_timeout"`

	// ClearancePoll is the cookie polling interval (default 500ms).
	ClearancePoll time.Duration `json:"clearance_poll" yaml:"clearance_poll"`

	// SearchURL is the search endpoint prefix (default DefaultSearchURL).
	SearchURL string `json:"search_url" yaml:"search_url"`

	// MaxResults caps the candidates read from a results page (default 8).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// ResultsTimeout bounds the wait for the result list to render (default 10s).
	ResultsTimeout time.Duration `json:"results_timeout" yaml:"results_timeout"`

	// SettleDelay is the pause before re-reading the result list (default 1s).
	SettleDelay time.Duration `json:"settle_delay" yaml:"settle_delay"`

	// SaveHTML stores landing page markup for offline re-extraction.
	SaveHTML bool `json:"save_html" yaml:"save_html"`
}

// StorageConfig locates the database and artifact directories.
type StorageConfig struct {
	// DataDir is the base directory (default "data").
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// DBPath is the SQLite database file (default DataDir/cite-hustle.db).
	DBPath string `json:"db_path" yaml:"db_path"`

	// HTMLDir holds saved landing pages (default DataDir/html).
	HTMLDir string `json:"html_dir" yaml:"html_dir"`
}

// Config groups all settings.
type Config struct {
	Scrape   ScrapeConfig  `json:"scrape" yaml:"scrape"`
	Storage  StorageConfig `json:"storage" yaml:"storage"`
	LogLevel string        `json:"log_level" yaml:"log_level"`
}

// DefaultScrapeConfig returns the engine defaults.
func DefaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		Browser: BrowserConfig{
			Headless:    true,
			PageTimeout: 60 * time.Second,
		},
		BaseDelay:              5 * time.Second,
		DistractionProbability: 0.12,
		DistractionMin:         30 * time.Second,
		DistractionMax:         120 * time.Second,
		SimilarityThreshold:    85,
		LengthWeight:           0.3,
		MaxAttempts:            3,
		BackoffBase:            5 * time.Second,
		BackoffFactor:          2,
		ClearanceTimeout:       15 * time.Second,
		ClearancePoll:          500 * time.Millisecond,
		SearchURL:              DefaultSearchURL,
		MaxResults:             8,
		ResultsTimeout:         10 * time.Second,
		SettleDelay:            time.Second,
		SaveHTML:               true,
	}
}

// DefaultStorageConfig returns storage paths rooted at dataDir.
func DefaultStorageConfig(dataDir string) StorageConfig {
	if dataDir == "" {
		dataDir = "data"
	}
	return StorageConfig{
		DataDir: dataDir,
		DBPath:  dataDir + "/cite-hustle.db",
		HTMLDir: dataDir + "/html",
	}
}

// Validate reports every invalid field at once.
func (c ScrapeConfig) Validate() error {
	var problems []string
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 100 {
		problems = append(problems, fmt.Sprintf("similarity_threshold %v outside [0,100]", c.SimilarityThreshold))
	}
	if c.LengthWeight < 0 || c.LengthWeight > 1 {
		problems = append(problems, fmt.Sprintf("length_weight %v outside [0,1]", c.LengthWeight))
	}
	if c.MaxAttempts < 1 {
		problems = append(problems, fmt.Sprintf("max_attempts %d must be >= 1", c.MaxAttempts))
	}
	if c.BackoffFactor < 1 {
		problems = append(problems, fmt.Sprintf("backoff_factor %v must be >= 1", c.BackoffFactor))
	}
	if c.BackoffBase < 0 || c.BaseDelay < 0 {
		problems = append(problems, "delays must not be negative")
	}
	if c.ClearanceTimeout <= 0 {
		problems = append(problems, "clearance_timeout must be positive")
	}
	if c.ClearancePoll <= 0 {
		problems = append(problems, "clearance_poll must be positive")
	}
	if c.ResultsTimeout <= 0 {
		problems = append(problems, "results_timeout must be positive")
	}
	if c.DistractionProbability < 0 || c.DistractionProbability > 1 {
		problems = append(problems, fmt.Sprintf("distraction_probability %v outside [0,1]", c.DistractionProbability))
	}
	if c.DistractionMin > c.DistractionMax {
		problems = append(problems, "distraction_min exceeds distraction_max")
	}
	if c.MaxResults < 1 {
		problems = append(problems, fmt.Sprintf("max_results %d must be >= 1", c.MaxResults))
	}
	if c.SearchURL == "" {
		problems = append(problems, "search_url is empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigValidation, strings.Join(problems, "; "))
	}
	return nil
}
