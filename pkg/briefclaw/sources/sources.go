// Package sources implements the briefing's data fetchers: news headlines,
// RSS/Atom feeds, weather, the daily quote, stock and crypto quotes, the
// fear & greed index and the LLM headline summary.
//
// Every fetcher is fail-soft. It never returns a Go error to its caller;
// instead it returns a Result whose Status says whether it produced data,
// produced nothing, or failed, with the failure detail in Err.
package sources

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Article is one headline from a news API or feed.
type Article struct {
	Title     string
	URL       string
	Source    string
	Published time.Time
}

// QuoteRecord is a stock or crypto quote.
type QuoteRecord struct {
	Name      string
	Symbol    string
	Price     decimal.Decimal
	ChangePct decimal.Decimal
	MarketCap *decimal.Decimal
}

// Up reports whether the change is zero or positive.
func (q QuoteRecord) Up() bool { return !q.ChangePct.IsNegative() }

// SentimentIndex is a fear & greed snapshot.
type SentimentIndex struct {
	Value          int
	Classification string
}

// Weather is the current conditions for one city.
type Weather struct {
	City        string
	Description string
	TempC       float64
	Humidity    int
}

// DailyQuote is an inspirational quote.
type DailyQuote struct {
	Content string
	Author  string
}

// Status classifies a fetch outcome.
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// Result is the typed outcome of one fetch.
type Result[T any] struct {
	Source string
	Items  []T
	Status Status
	Err    error
}

// HasData reports whether the fetch succeeded with at least one item.
func (r Result[T]) HasData() bool {
	return r.Status == StatusOK && len(r.Items) > 0
}

// First returns the first item, for single-value fetchers.
func (r Result[T]) First() (T, bool) {
	var zero T
	if !r.HasData() {
		return zero, false
	}
	return r.Items[0], true
}

// OK wraps items; an empty slice yields an Empty result.
func OK[T any](source string, items []T) Result[T] {
	if len(items) == 0 {
		return Empty[T](source)
	}
	return Result[T]{Source: source, Items: items, Status: StatusOK}
}

// Empty is a successful fetch with nothing to show (including an unconfigured source).
func Empty[T any](source string) Result[T] {
	return Result[T]{Source: source, Status: StatusEmpty}
}

// Failed records a transport, status or parse failure.
func Failed[T any](source string, err error) Result[T] {
	return Result[T]{Source: source, Status: StatusFailed, Err: err}
}

// Fetcher is implemented by every source.
type Fetcher[T any] interface {
	Name() string
	Fetch(ctx context.Context) Result[T]
}

// ArticleFetcher is a news source assigned to a briefing bucket.
type ArticleFetcher interface {
	Fetcher[Article]
	Bucket() string
}

// failed logs a fetch failure at warn and returns the Failed result.
func failed[T any](logger *slog.Logger, source string, err error) Result[T] {
	logger.Warn("fetch failed", "source", source, "error", err)
	return Failed[T](source, err)
}
