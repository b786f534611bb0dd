package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/shopspring/decimal"
)

// Crypto fetches coin prices from the CoinGecko simple price API.
type Crypto struct {
	base
	cfg config.CryptoConfig
}

// NewCrypto creates the crypto price fetcher.
func NewCrypto(cfg config.CryptoConfig, opts Options) *Crypto {
	return &Crypto{base: newBase("crypto", opts), cfg: cfg}
}

type coinPrice struct {
	USD       decimal.Decimal     `json:"usd"`
	Change24h decimal.NullDecimal `json:"usd_24h_change"`
	MarketCap decimal.NullDecimal `json:"usd_market_cap"`
}

// Fetch returns quotes in configured coin order; coins missing from the
// response are skipped.
func (c *Crypto) Fetch(ctx context.Context) Result[QuoteRecord] {
	if len(c.cfg.Coins) == 0 {
		return Empty[QuoteRecord](c.name)
	}

	ids := make([]string, 0, len(c.cfg.Coins))
	for _, coin := range c.cfg.Coins {
		ids = append(ids, coin.ID)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_market_cap", "true")
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/v3/simple/price?" + q.Encode()

	var resp map[string]coinPrice
	if err := c.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return failed[QuoteRecord](c.logger, c.name, err)
	}

	quotes := make([]QuoteRecord, 0, len(c.cfg.Coins))
	for _, coin := range c.cfg.Coins {
		p, ok := resp[coin.ID]
		if !ok {
			continue
		}
		rec := QuoteRecord{
			Name:      coin.Symbol,
			Symbol:    coin.Symbol,
			Price:     p.USD,
			ChangePct: p.Change24h.Decimal,
		}
		if p.MarketCap.Valid {
			mc := p.MarketCap.Decimal
			rec.MarketCap = &mc
		}
		quotes = append(quotes, rec)
	}
	return OK(c.name, quotes)
}

var _ Fetcher[QuoteRecord] = (*Crypto)(nil)
