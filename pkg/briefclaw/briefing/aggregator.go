// Package briefing assembles the daily briefing: it fans out to every
// source, groups and deduplicates the headlines, renders one document and
// hands it to the delivery client.
package briefing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/metrics"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/sources"
	"golang.org/x/sync/errgroup"
)

// HeadlineSummarizer produces the AI digest from collected titles.
type HeadlineSummarizer interface {
	Name() string
	Summarize(ctx context.Context, titles []string) sources.Result[string]
}

// Fetchers is the set of sources one run fans out to. Nil fields are skipped.
type Fetchers struct {
	Articles  []sources.ArticleFetcher
	Weather   sources.Fetcher[sources.Weather]
	Quote     sources.Fetcher[sources.DailyQuote]
	Stocks    sources.Fetcher[sources.QuoteRecord]
	Crypto    sources.Fetcher[sources.QuoteRecord]
	Sentiment sources.Fetcher[sources.SentimentIndex]
	Summary   HeadlineSummarizer
}

// Bucket is one named news grouping after dedup and truncation.
type Bucket struct {
	Name     string
	Title    string
	Articles []sources.Article
}

// Snapshot is everything one run collected.
type Snapshot struct {
	Buckets   []Bucket
	Weather   *sources.Weather
	Quote     *sources.DailyQuote
	Stocks    []sources.QuoteRecord
	Crypto    []sources.QuoteRecord
	Sentiment *sources.SentimentIndex

	// Summary is the AI digest, or a tagged "unavailable" line when the
	// LLM call failed. Empty when skipped.
	Summary string

	// Sources maps each source that produced data to its item count.
	// Sources with nothing to show are omitted.
	Sources map[string]int

	// Failed lists the sources whose fetch failed.
	Failed []string
}

// Empty reports whether no source produced data.
func (s *Snapshot) Empty() bool { return len(s.Sources) == 0 }

// Titles returns every bucketed headline title in render order.
func (s *Snapshot) Titles() []string {
	var titles []string
	for _, b := range s.Buckets {
		for _, a := range b.Articles {
			titles = append(titles, a.Title)
		}
	}
	return titles
}

// Aggregator runs the fetchers concurrently and builds a Snapshot.
type Aggregator struct {
	fetchers  Fetchers
	buckets   []config.BucketConfig
	bucketMax int
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

// NewAggregator creates an Aggregator. buckets fixes the bucket render order.
func NewAggregator(f Fetchers, buckets []config.BucketConfig, bucketMax int, rec *metrics.Recorder, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		fetchers:  f,
		buckets:   buckets,
		bucketMax: bucketMax,
		metrics:   rec,
		logger:    logger.With("component", "aggregator"),
	}
}

// Collect invokes every fetcher concurrently and waits for all of them; a
// failing source never cancels the others. The summary runs afterwards
// over the collected titles.
func (a *Aggregator) Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{Sources: make(map[string]int)}

	var (
		g         errgroup.Group
		articles  = make([]sources.Result[sources.Article], len(a.fetchers.Articles))
		weather   sources.Result[sources.Weather]
		quote     sources.Result[sources.DailyQuote]
		stocks    sources.Result[sources.QuoteRecord]
		crypto    sources.Result[sources.QuoteRecord]
		sentiment sources.Result[sources.SentimentIndex]
	)

	for i, f := range a.fetchers.Articles {
		i, f := i, f
		g.Go(func() error {
			articles[i] = f.Fetch(ctx)
			return nil
		})
	}
	goFetch(ctx, &g, a.fetchers.Weather, &weather)
	goFetch(ctx, &g, a.fetchers.Quote, &quote)
	goFetch(ctx, &g, a.fetchers.Stocks, &stocks)
	goFetch(ctx, &g, a.fetchers.Crypto, &crypto)
	goFetch(ctx, &g, a.fetchers.Sentiment, &sentiment)
	_ = g.Wait()

	for _, r := range articles {
		a.note(snap, r.Source, r.Status, len(r.Items))
	}
	snap.Buckets = a.bucketize(a.fetchers.Articles, articles)

	if a.fetchers.Weather != nil {
		a.note(snap, weather.Source, weather.Status, len(weather.Items))
		if w, ok := weather.First(); ok {
			snap.Weather = &w
		}
	}
	if a.fetchers.Quote != nil {
		a.note(snap, quote.Source, quote.Status, len(quote.Items))
		if q, ok := quote.First(); ok {
			snap.Quote = &q
		}
	}
	if a.fetchers.Stocks != nil {
		a.note(snap, stocks.Source, stocks.Status, len(stocks.Items))
		if stocks.HasData() {
			snap.Stocks = stocks.Items
		}
	}
	if a.fetchers.Crypto != nil {
		a.note(snap, crypto.Source, crypto.Status, len(crypto.Items))
		if crypto.HasData() {
			snap.Crypto = crypto.Items
		}
	}
	if a.fetchers.Sentiment != nil {
		a.note(snap, sentiment.Source, sentiment.Status, len(sentiment.Items))
		if s, ok := sentiment.First(); ok {
			snap.Sentiment = &s
		}
	}

	if a.fetchers.Summary != nil {
		if titles := snap.Titles(); len(titles) > 0 {
			sum := a.fetchers.Summary.Summarize(ctx, titles)
			a.note(snap, sum.Source, sum.Status, len(sum.Items))
			if len(sum.Items) > 0 {
				snap.Summary = sum.Items[0]
			}
		}
	}

	a.logger.Info("collection done",
		"sources_with_data", len(snap.Sources),
		"failed", len(snap.Failed),
		"buckets", len(snap.Buckets),
	)
	return snap
}

// CollectHeadlines fetches only the news sources and returns the bucketed,
// deduplicated headlines in render order.
func (a *Aggregator) CollectHeadlines(ctx context.Context) []sources.Article {
	var g errgroup.Group
	results := make([]sources.Result[sources.Article], len(a.fetchers.Articles))
	for i, f := range a.fetchers.Articles {
		i, f := i, f
		g.Go(func() error {
			results[i] = f.Fetch(ctx)
			a.metrics.RecordFetch(results[i].Source, string(results[i].Status))
			return nil
		})
	}
	_ = g.Wait()

	var out []sources.Article
	for _, b := range a.bucketize(a.fetchers.Articles, results) {
		out = append(out, b.Articles...)
	}
	return out
}

// goFetch schedules one single-kind fetch when the fetcher is configured.
func goFetch[T any](ctx context.Context, g *errgroup.Group, f sources.Fetcher[T], dst *sources.Result[T]) {
	if f == nil {
		return
	}
	g.Go(func() error {
		*dst = f.Fetch(ctx)
		return nil
	})
}

// note records one fetch outcome in the snapshot and the metrics.
func (a *Aggregator) note(snap *Snapshot, source string, status sources.Status, n int) {
	a.metrics.RecordFetch(source, string(status))
	switch {
	case status == sources.StatusOK && n > 0:
		snap.Sources[source] += n
	case status == sources.StatusFailed:
		snap.Failed = append(snap.Failed, source)
	}
}

// bucketize concatenates results per bucket in fetcher order, dedups,
// truncates, and drops empty buckets.
func (a *Aggregator) bucketize(fetchers []sources.ArticleFetcher, results []sources.Result[sources.Article]) []Bucket {
	grouped := make(map[string][]sources.Article, len(a.buckets))
	for i, f := range fetchers {
		if !results[i].HasData() {
			continue
		}
		grouped[f.Bucket()] = append(grouped[f.Bucket()], results[i].Items...)
	}

	var out []Bucket
	for _, bc := range a.buckets {
		items := Dedup(grouped[bc.Name])
		if a.bucketMax > 0 && len(items) > a.bucketMax {
			items = items[:a.bucketMax]
		}
		if len(items) == 0 {
			continue
		}
		out = append(out, Bucket{Name: bc.Name, Title: bc.Title, Articles: items})
	}
	return out
}

// Dedup removes articles whose normalized title was already seen. The first
// occurrence wins and order is preserved. Dedup is idempotent.
func Dedup(articles []sources.Article) []sources.Article {
	if len(articles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(articles))
	out := make([]sources.Article, 0, len(articles))
	for _, a := range articles {
		key := NormalizeTitle(a.Title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	return out
}

// NormalizeTitle trims, collapses whitespace and lowercases a title.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}
