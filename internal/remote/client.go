// Package remote mirrors raw inputs from an S3-compatible object store or a
// plain HTTP URL into a local directory.
package remote

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/polar-layers/internal/domain"
	"github.com/couchcryptid/polar-layers/internal/observability"
)

// Object is one entry of a bucket listing.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// SyncReport counts what Sync did.
type SyncReport struct {
	Downloaded int
	Skipped    int
	Bytes      int64
}

// Client talks to an S3-compatible endpoint with anonymous requests. Objects
// are addressed path-style: <endpoint>/<bucket>/<key>.
type Client struct {
	endpoint   string
	bucket     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics

	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewClient creates an object store client.
func NewClient(endpoint, bucket string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		bucket:   bucket,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:     logger,
		metrics:    metrics,
		attempts:   3,
		backoff:    250 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
}

// List returns every object under prefix, following continuation tokens.
func (c *Client) List(ctx context.Context, prefix string) ([]Object, error) {
	var (
		out   []Object
		token string
	)
	for {
		params := url.Values{
			"list-type": {"2"},
			"prefix":    {prefix},
		}
		if token != "" {
			params.Set("continuation-token", token)
		}
		u := fmt.Sprintf("%s/%s?%s", c.endpoint, url.PathEscape(c.bucket), params.Encode())

		page, err := c.listPage(ctx, u)
		if err != nil {
			return nil, err
		}
		for _, o := range page.Contents {
			if strings.HasSuffix(o.Key, "/") {
				continue
			}
			out = append(out, Object{Key: o.Key, Size: o.Size, ETag: strings.Trim(o.ETag, `"`), LastModified: o.LastModified})
		}
		if !page.IsTruncated || page.NextContinuationToken == "" {
			return out, nil
		}
		token = page.NextContinuationToken
	}
}

func (c *Client) listPage(ctx context.Context, u string) (listBucketResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return listBucketResult{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return listBucketResult{}, fmt.Errorf("list bucket %s: %w", c.bucket, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return listBucketResult{}, fmt.Errorf("list bucket %s: status %d: %s", c.bucket, resp.StatusCode, body)
	}
	var page listBucketResult
	if err := xml.NewDecoder(resp.Body).Decode(&page); err != nil {
		return listBucketResult{}, fmt.Errorf("decode listing: %w", err)
	}
	return page, nil
}

// Sync downloads every object under prefix into dir, keeping the key path
// relative to prefix. Objects whose local copy already has the listed size
// are skipped.
func (c *Client) Sync(ctx context.Context, prefix, dir string) (SyncReport, error) {
	objects, err := c.List(ctx, prefix)
	if err != nil {
		return SyncReport{}, err
	}

	var rep SyncReport
	for _, o := range objects {
		rel := strings.TrimPrefix(strings.TrimPrefix(o.Key, prefix), "/")
		local, err := safeJoin(dir, rel)
		if err != nil {
			return rep, err
		}
		if fi, err := os.Stat(local); err == nil && fi.Size() == o.Size {
			rep.Skipped++
			continue
		}
		u := fmt.Sprintf("%s/%s/%s", c.endpoint, url.PathEscape(c.bucket), escapeKey(o.Key))
		n, err := c.download(ctx, u, local)
		if err != nil {
			return rep, err
		}
		rep.Downloaded++
		rep.Bytes += n
		if c.metrics != nil {
			c.metrics.RemoteObjectsSynced.Inc()
		}
		c.logger.Debug("object synced", "key", o.Key, "path", local, "bytes", n)
	}
	c.logger.Info("remote sync complete", "bucket", c.bucket, "prefix", prefix,
		"downloaded", rep.Downloaded, "skipped", rep.Skipped)
	return rep, nil
}

// Fetch mirrors a single http(s) URL into dir/<host>/<path> and returns the
// local path. An existing file is reused.
func (c *Client) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("source url %q: unsupported scheme", rawURL)
	}
	local, err := safeJoin(dir, path.Join(u.Host, u.Path))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	if _, err := c.download(ctx, u.String(), local); err != nil {
		return "", err
	}
	if c.metrics != nil {
		c.metrics.RemoteObjectsSynced.Inc()
	}
	return local, nil
}

// statusError is a non-2xx response other than 404.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("download %s: status %d", e.url, e.code)
}

// retryable reports whether a failed download is worth another attempt:
// server errors and transport failures, but not 404s or cancellation.
func retryable(err error) bool {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// download retries downloadOnce with exponential backoff.
func (c *Client) download(ctx context.Context, u, dest string) (int64, error) {
	backoff := c.backoff
	for attempt := 1; ; attempt++ {
		n, err := c.downloadOnce(ctx, u, dest)
		if err == nil || attempt >= c.attempts || !retryable(err) {
			return n, err
		}
		c.logger.Warn("download failed, retrying", "url", u, "attempt", attempt, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return 0, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
}

// downloadOnce streams a GET response into a temp file beside dest and
// renames it into place.
func (c *Client) downloadOnce(ctx context.Context, u, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("download %s: %w", u, domain.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return 0, &statusError{url: u, code: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create mirror dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return 0, fmt.Errorf("download %s: %w", u, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return 0, fmt.Errorf("install %s: %w", dest, err)
	}
	return n, nil
}

// safeJoin joins rel under dir and rejects keys that escape it.
func safeJoin(dir, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes the mirror directory", rel)
	}
	return filepath.Join(dir, clean), nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// ListObjectsV2 response types.

type listBucketResult struct {
	XMLName               xml.Name      `xml:"ListBucketResult"`
	Contents              []listContent `xml:"Contents"`
	IsTruncated           bool          `xml:"IsTruncated"`
	NextContinuationToken string        `xml:"NextContinuationToken"`
}

type listContent struct {
	Key          string    `xml:"Key"`
	Size         int64     `xml:"Size"`
	ETag         string    `xml:"ETag"`
	LastModified time.Time `xml:"LastModified"`
}
