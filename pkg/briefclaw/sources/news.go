package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
)

// News fetches top headlines from a NewsAPI-compatible endpoint.
type News struct {
	base
	cfg      config.NewsConfig
	maxItems int
}

// NewNews creates the news headline fetcher.
func NewNews(cfg config.NewsConfig, opts Options) *News {
	return &News{
		base:     newBase("newsapi", opts),
		cfg:      cfg,
		maxItems: cfg.PageSize,
	}
}

// Bucket returns the briefing bucket the headlines go to.
func (n *News) Bucket() string { return n.cfg.Bucket }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Fetch returns the current top headlines. Without an API key it returns
// Empty without making a request.
func (n *News) Fetch(ctx context.Context) Result[Article] {
	if n.cfg.APIKey == "" {
		n.logger.Debug("news API key not configured, skipping", "source", n.name)
		return Empty[Article](n.name)
	}

	q := url.Values{}
	if n.cfg.Country != "" {
		q.Set("country", n.cfg.Country)
	}
	q.Set("pageSize", strconv.Itoa(n.cfg.PageSize))
	q.Set("apiKey", n.cfg.APIKey)
	endpoint := strings.TrimRight(n.cfg.BaseURL, "/") + "/v2/top-headlines?" + q.Encode()

	var resp newsAPIResponse
	if err := n.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return failed[Article](n.logger, n.name, err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return failed[Article](n.logger, n.name, fmt.Errorf("news API status %q: %s", resp.Status, resp.Message))
	}

	articles := make([]Article, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		title := strings.TrimSpace(a.Title)
		if title == "" || title == "[Removed]" {
			continue
		}
		src := a.Source.Name
		if src == "" {
			src = n.name
		}
		published, _ := time.Parse(time.RFC3339, a.PublishedAt)
		articles = append(articles, Article{
			Title:     title,
			URL:       strings.TrimSpace(a.URL),
			Source:    src,
			Published: published,
		})
	}
	return OK(n.name, truncateItems(articles, n.maxItems))
}

var _ ArticleFetcher = (*News)(nil)
