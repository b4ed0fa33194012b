// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads and unpacks runtime distribution archives.
//
// Downloads stream straight to disk while feeding a sha256 hasher in the
// same pass, so checksum verification never re-reads the file. Extraction
// supports the three archive formats upstream runtime distributions use:
// gzip tar, xz tar, and zip.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultTimeout   = 10 * time.Minute
	defaultUserAgent = "polyrun"
)

var (
	// ErrVersionNotFound is returned when the upstream answers 404 for an
	// archive or catalog URL, meaning the requested version does not exist.
	ErrVersionNotFound = errors.New("fetch: version not found (404), check available versions")

	// ErrChecksumMismatch is returned when the downloaded bytes do not hash
	// to the expected value. The download is discarded, never kept.
	ErrChecksumMismatch = errors.New("fetch: checksum mismatch")
)

type (
	// ProgressFunc receives download progress. total is -1 when the server
	// did not announce a content length.
	ProgressFunc func(received, total int64)

	// Job describes a single checksum-verified download.
	Job struct {
		// URL is the archive source.
		URL string
		// Dest is the target file path. Written via temp file + rename so a
		// failed download never leaves a partial file at Dest.
		Dest string
		// SHA256 is the expected hex digest; empty skips verification.
		SHA256 string
		// Progress is an optional progress sink.
		Progress ProgressFunc
	}

	// Fetcher performs HTTP downloads and catalog requests.
	Fetcher struct {
		client    *http.Client
		userAgent string
		logger    *log.Logger
	}

	// Option configures a Fetcher.
	Option func(*Fetcher)
)

// WithHTTPClient overrides the HTTP client (tests point this at httptest servers).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent overrides the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithLogger overrides the logger.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sane defaults for large archive downloads.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download streams job.URL to job.Dest, hashing on the way down when a
// checksum is expected. HTTP 404 maps to ErrVersionNotFound; a digest
// mismatch maps to ErrChecksumMismatch and removes the partial file.
func (f *Fetcher) Download(ctx context.Context, job Job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: download %s: %w", job.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("fetch: %s: %w", job.URL, ErrVersionNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: download %s: unexpected status %s", job.URL, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(job.Dest), 0o755); err != nil {
		return fmt.Errorf("fetch: create destination directory: %w", err)
	}

	// Temp file in the destination directory so the final rename stays on
	// one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(job.Dest), filepath.Base(job.Dest)+".download-*")
	if err != nil {
		return fmt.Errorf("fetch: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	var src io.Reader = resp.Body
	if job.SHA256 != "" {
		src = io.TeeReader(resp.Body, hasher)
	}
	if job.Progress != nil {
		src = &progressReader{
			reader:   src,
			total:    resp.ContentLength,
			progress: job.Progress,
		}
	}

	written, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("fetch: write %s: %w", job.Dest, err)
	}

	if job.SHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, job.SHA256) {
			return fmt.Errorf("fetch: %s: expected %s, got %s: %w",
				filepath.Base(job.Dest), job.SHA256, got, ErrChecksumMismatch)
		}
	}

	if err := os.Rename(tmpPath, job.Dest); err != nil {
		return fmt.Errorf("fetch: finalize download: %w", err)
	}

	f.logger.Debug("downloaded archive", "url", job.URL, "bytes", written)
	return nil
}

// GetJSON fetches url and decodes the response body into out.
// 404 maps to ErrVersionNotFound so callers can special-case it.
func (f *Fetcher) GetJSON(ctx context.Context, url string, out any) error {
	body, err := f.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("fetch: decode %s: %w", url, err)
	}
	return nil
}

// GetText fetches url and returns the response body as a string.
func (f *Fetcher) GetText(ctx context.Context, url string) (string, error) {
	body, err := f.get(ctx, url, "")
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("fetch: read %s: %w", url, err)
	}
	return string(data), nil
}

func (f *Fetcher) get(ctx context.Context, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: get %s: %w", url, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: %s: %w", url, ErrVersionNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: get %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// progressReader forwards reads while reporting cumulative progress.
type progressReader struct {
	reader   io.Reader
	total    int64
	received int64
	progress ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.received += int64(n)
		r.progress(r.received, r.total)
	}
	return n, err
}
