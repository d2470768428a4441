// Package fetch downloads raw ontology files and sanity-checks them before
// the pipeline hands them to the toolchain.
package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// bucketErrorMarker appears in storage-bucket error pages served in place of
// ontology content when a purl is misconfigured.
const bucketErrorMarker = "ListBucketResult"

// ErrNotAnOntology is returned when the downloaded file looks like a storage
// bucket error page or is too short to check.
var ErrNotAnOntology = errors.New("downloaded file is not an ontology")

// Fetcher downloads ontology files over HTTP.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewFetcher creates a fetcher with the given per-download timeout.
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Download retrieves url into dest, creating parent directories as needed.
// The file is written through a temp file and renamed so a failed download
// never clobbers a previously cached copy.
func (f *Fetcher) Download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move downloaded file: %w", err)
	}

	f.logger.Debug("Downloaded ontology file",
		slog.String("url", url),
		slog.String("dest", dest),
		slog.Int64("bytes", written))
	return nil
}

// Verify reads the first minLines lines of the file and rejects it when it
// contains a storage-bucket error marker instead of ontology content. A file
// too short to read minLines lines is rejected as well.
func Verify(path string, minLines int) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file for verification: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	read := 0
	for read < minLines && scanner.Scan() {
		if strings.Contains(scanner.Text(), bucketErrorMarker) {
			return fmt.Errorf("%w: bucket error page detected", ErrNotAnOntology)
		}
		read++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read file for verification: %w", err)
	}
	if read < minLines {
		return fmt.Errorf("%w: file has fewer than %d lines", ErrNotAnOntology, minLines)
	}
	return nil
}
