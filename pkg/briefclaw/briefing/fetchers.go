package briefing

import (
	"log/slog"
	"net/http"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/sources"
)

// BuildFetchers wires the configured sources. Disabled sections are left
// nil and skipped by the Aggregator. The news API comes first so its
// bucket keeps configured source order ahead of the feeds.
func BuildFetchers(cfg *config.Config, completer llm.Completer, client *http.Client, logger *slog.Logger) Fetchers {
	sc := cfg.Sources
	opts := sources.Options{
		Client:   client,
		Timeout:  sc.FetchTimeout,
		MaxItems: sc.MaxItemsPerSource,
		Logger:   logger,
	}

	var f Fetchers
	if !sc.News.Disabled {
		f.Articles = append(f.Articles, sources.NewNews(sc.News, opts))
	}
	for _, feed := range sc.Feeds {
		f.Articles = append(f.Articles, sources.NewRSS(feed, sc.MaxAge, opts))
	}
	if !sc.Weather.Disabled {
		f.Weather = sources.NewWeather(sc.Weather, opts)
	}
	if !sc.Quote.Disabled {
		f.Quote = sources.NewQuote(sc.Quote, opts)
	}
	if !sc.Stocks.Disabled && len(sc.Stocks.Symbols) > 0 {
		f.Stocks = sources.NewStocks(sc.Stocks, opts)
	}
	if !sc.Crypto.Disabled && len(sc.Crypto.Coins) > 0 {
		f.Crypto = sources.NewCrypto(sc.Crypto, opts)
	}
	if !sc.Sentiment.Disabled {
		f.Sentiment = sources.NewSentiment(sc.Sentiment, opts)
	}
	if !sc.Summary.Disabled && completer != nil {
		f.Summary = sources.NewSummarizer(completer, sc.Summary, logger)
	}
	return f
}
