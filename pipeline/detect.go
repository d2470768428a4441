package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// ChangeDetector decides whether work must be redone for an ontology, from
// file modification time and content hash comparison against the last
// stored result.
type ChangeDetector struct {
	redownloadAfter      time.Duration
	forceRegenerateAfter time.Duration
	now                  func() time.Time
}

// NewChangeDetector creates a detector with the given staleness windows.
func NewChangeDetector(redownloadAfter, forceRegenerateAfter time.Duration) *ChangeDetector {
	return &ChangeDetector{
		redownloadAfter:      redownloadAfter,
		forceRegenerateAfter: forceRegenerateAfter,
		now:                  time.Now,
	}
}

// ShouldDownload reports whether the raw file must be downloaded. A cached
// file younger than the redownload window is reused.
func (d *ChangeDetector) ShouldDownload(rawPath string) bool {
	info, err := os.Stat(rawPath)
	if err != nil {
		return true
	}
	return d.now().Sub(info.ModTime()) >= d.redownloadAfter
}

// Changed reports whether the ontology content changed. Unchanged requires
// the current hash to equal the stored hash AND the raw file to be younger
// than the force-regenerate window; everything else counts as changed.
func (d *ChangeDetector) Changed(currentHash, storedHash, rawPath string) bool {
	if storedHash == "" || currentHash != storedHash {
		return true
	}
	info, err := os.Stat(rawPath)
	if err != nil {
		return true
	}
	return d.now().Sub(info.ModTime()) >= d.forceRegenerateAfter
}

// HashFile computes the SHA-256 content hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
