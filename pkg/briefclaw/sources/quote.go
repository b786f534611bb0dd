package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
)

// QuoteSource fetches a random quote from a quotable-style API.
type QuoteSource struct {
	base
	cfg config.QuoteConfig
}

// NewQuote creates the daily quote fetcher.
func NewQuote(cfg config.QuoteConfig, opts Options) *QuoteSource {
	return &QuoteSource{base: newBase("quote", opts), cfg: cfg}
}

type quotableResponse struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// Fetch returns at most one DailyQuote.
func (q *QuoteSource) Fetch(ctx context.Context) Result[DailyQuote] {
	var resp quotableResponse
	if err := q.getJSON(ctx, q.cfg.URL, nil, &resp); err != nil {
		return failed[DailyQuote](q.logger, q.name, err)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return failed[DailyQuote](q.logger, q.name, fmt.Errorf("quote response has no content"))
	}
	author := strings.TrimSpace(resp.Author)
	if author == "" {
		author = "Unknown"
	}
	return OK(q.name, []DailyQuote{{Content: content, Author: author}})
}

var _ Fetcher[DailyQuote] = (*QuoteSource)(nil)
