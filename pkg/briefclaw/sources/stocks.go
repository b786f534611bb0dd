package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Stocks fetches equity and index quotes from Yahoo Finance. The batched
// spark endpoint is tried first; when it yields nothing each symbol is
// fetched from quoteSummary.
type Stocks struct {
	base
	cfg config.StocksConfig
}

// NewStocks creates the stock quote fetcher.
func NewStocks(cfg config.StocksConfig, opts Options) *Stocks {
	return &Stocks{base: newBase("stocks", opts), cfg: cfg}
}

// Yahoo rejects requests without a browser-like agent.
var yahooHeader = http.Header{"User-Agent": []string{"Mozilla/5.0"}}

type sparkResponse struct {
	Spark struct {
		Result []struct {
			Symbol   string `json:"symbol"`
			Response []struct {
				Meta struct {
					RegularMarketPrice decimal.Decimal `json:"regularMarketPrice"`
					PreviousClose      decimal.Decimal `json:"previousClose"`
					ChartPreviousClose decimal.Decimal `json:"chartPreviousClose"`
				} `json:"meta"`
			} `json:"response"`
		} `json:"result"`
	} `json:"spark"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			Price struct {
				RegularMarketPrice struct {
					Raw decimal.Decimal `json:"raw"`
				} `json:"regularMarketPrice"`
				RegularMarketChangePercent struct {
					Raw decimal.Decimal `json:"raw"`
				} `json:"regularMarketChangePercent"`
			} `json:"price"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// Fetch returns quotes in configured symbol order.
func (s *Stocks) Fetch(ctx context.Context) Result[QuoteRecord] {
	if len(s.cfg.Symbols) == 0 {
		return Empty[QuoteRecord](s.name)
	}

	quotes, err := s.fetchSpark(ctx)
	if err != nil {
		s.logger.Warn("spark fetch failed, falling back to quoteSummary", "source", s.name, "error", err)
	}
	if len(quotes) > 0 {
		return OK(s.name, quotes)
	}

	quotes, fbErr := s.fetchSummaries(ctx)
	if len(quotes) > 0 {
		return OK(s.name, quotes)
	}
	if fbErr == nil {
		fbErr = err
	}
	if fbErr == nil {
		return Empty[QuoteRecord](s.name)
	}
	return failed[QuoteRecord](s.logger, s.name, fbErr)
}

func (s *Stocks) fetchSpark(ctx context.Context) ([]QuoteRecord, error) {
	symbols := make([]string, 0, len(s.cfg.Symbols))
	for _, sym := range s.cfg.Symbols {
		symbols = append(symbols, sym.Symbol)
	}
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))
	q.Set("range", "1d")
	q.Set("interval", "1d")
	endpoint := strings.TrimRight(s.cfg.BaseURL, "/") + "/v8/finance/spark?" + q.Encode()

	var resp sparkResponse
	if err := s.getJSON(ctx, endpoint, yahooHeader, &resp); err != nil {
		return nil, err
	}

	bySymbol := make(map[string]QuoteRecord, len(resp.Spark.Result))
	for _, r := range resp.Spark.Result {
		if len(r.Response) == 0 {
			continue
		}
		meta := r.Response[0].Meta
		prev := meta.PreviousClose
		if prev.IsZero() {
			prev = meta.ChartPreviousClose
		}
		bySymbol[r.Symbol] = QuoteRecord{
			Symbol:    r.Symbol,
			Price:     meta.RegularMarketPrice,
			ChangePct: percentChange(meta.RegularMarketPrice, prev),
		}
	}

	quotes := make([]QuoteRecord, 0, len(s.cfg.Symbols))
	for _, sym := range s.cfg.Symbols {
		if q, ok := bySymbol[sym.Symbol]; ok {
			q.Name = sym.Name
			quotes = append(quotes, q)
		}
	}
	return quotes, nil
}

func (s *Stocks) fetchSummaries(ctx context.Context) ([]QuoteRecord, error) {
	var (
		quotes  []QuoteRecord
		lastErr error
	)
	root := strings.TrimRight(s.cfg.BaseURL, "/")
	for _, sym := range s.cfg.Symbols {
		endpoint := root + "/v10/finance/quoteSummary/" + url.PathEscape(sym.Symbol) + "?modules=price"
		var resp quoteSummaryResponse
		if err := s.getJSON(ctx, endpoint, yahooHeader, &resp); err != nil {
			lastErr = fmt.Errorf("%s: %w", sym.Symbol, err)
			continue
		}
		if len(resp.QuoteSummary.Result) == 0 {
			continue
		}
		price := resp.QuoteSummary.Result[0].Price
		quotes = append(quotes, QuoteRecord{
			Name:      sym.Name,
			Symbol:    sym.Symbol,
			Price:     price.RegularMarketPrice.Raw,
			ChangePct: price.RegularMarketChangePercent.Raw.Mul(hundred),
		})
	}
	return quotes, lastErr
}

// percentChange returns (price-prev)/prev*100, or zero without a previous close.
func percentChange(price, prev decimal.Decimal) decimal.Decimal {
	if prev.IsZero() {
		return decimal.Zero
	}
	return price.Sub(prev).Div(prev).Mul(hundred)
}

var _ Fetcher[QuoteRecord] = (*Stocks)(nil)
