package bulkdata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single archive download. Weekly TXT zips
	// run to tens of megabytes.
	DefaultTimeout = 10 * time.Minute
	// DefaultRequestsPerSecond paces requests to the bulk data host.
	DefaultRequestsPerSecond = 1.0
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

// Client downloads weekly archives.
type Client struct {
	client    *http.Client
	limiter   *rate.Limiter
	baseURL   string
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a download client. Zero config values fall back to defaults.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "patentgrant/1.0"
	}

	return &Client{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// URL returns the download URL for ref.
func (c *Client) URL(ref ArchiveRef) string {
	return ArchiveURL(c.baseURL, ref)
}

// Download streams the zip for ref into w and returns the number of bytes copied.
func (c *Client) Download(ctx context.Context, ref ArchiveRef, w io.Writer) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	url := c.URL(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", ref.ZipName(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("archive download failed", "url", url, "status", resp.StatusCode)
		return 0, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read %s: %w", ref.ZipName(), err)
	}

	c.logger.Info("archive downloaded",
		slog.String("archive", ref.ZipName()),
		slog.Int64("bytes", n),
		slog.Duration("elapsed", time.Since(start)),
	)
	return n, nil
}

// StatusError reports a non-200 response from the bulk data host.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
