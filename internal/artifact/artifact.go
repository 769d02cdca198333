// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package artifact stores raw landing-page markup on disk for offline
// re-extraction.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir writes HTML files under a single directory.
type Dir struct {
	Path string
}

var slugReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// Slug turns a work item ID (usually a DOI) into a safe file stem. Slashes
// become underscores. An ID that already holds an underscore, or any other
// replaced character, gets a short hash of the raw ID appended so that
// distinct IDs never share a file.
func Slug(id string) string {
	slug := slugReplacer.Replace(strings.TrimSpace(id))
	if strings.ContainsAny(id, "_\\: ") {
		sum := sha256.Sum256([]byte(id))
		slug += "-" + hex.EncodeToString(sum[:4])
	}
	return slug
}

// SaveHTML writes html to <Path>/<slug>.html through a temporary file and
// a rename, so readers never observe a partial file. It returns the path.
func (d Dir) SaveHTML(id, html string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("empty artifact id")
	}
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", d.Path, err)
	}
	dest := filepath.Join(d.Path, Slug(id)+".html")

	tmpFile, err := os.CreateTemp(d.Path, ".artifact-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.WriteString(html)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing artifact: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return dest, nil
}

// Load reads a previously saved artifact.
func Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading artifact %s: %w", path, err)
	}
	return string(data), nil
}
