package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "briefclaw/1.0 (+https://github.com/jholhewres/briefclaw)"
	maxBodyBytes     = 5 << 20
)

// Options are shared by all fetchers.
type Options struct {
	// Client is the HTTP client. Nil uses a client without its own timeout;
	// every call is bounded by Timeout through its context.
	Client *http.Client

	// Timeout bounds each HTTP call.
	Timeout time.Duration

	// MaxItems truncates list sources. Zero means unlimited.
	MaxItems int

	Logger *slog.Logger
}

// base holds the plumbing every fetcher shares.
type base struct {
	name    string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func newBase(name string, opts Options) base {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return base{
		name:    name,
		client:  opts.Client,
		timeout: opts.Timeout,
		logger:  opts.Logger.With("component", "sources"),
	}
}

// Name returns the source name used in logs, metrics and the snapshot.
func (b base) Name() string { return b.name }

// get performs a GET bounded by the fetcher timeout and returns the body of
// a 2xx response.
func (b base) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, vs := range header {
		req.Header[k] = vs
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body))
	}

	b.logger.Debug("fetched", "source", b.name, "status", resp.StatusCode,
		"bytes", len(body), "duration_ms", time.Since(start).Milliseconds())
	return body, nil
}

// getJSON performs get and decodes the body into out.
func (b base) getJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	body, err := b.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	return nil
}

func snippet(body []byte) string {
	const n = 160
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

func truncateItems[T any](items []T, max int) []T {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
