package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
)

// SentimentTier is one band of the fear & greed scale.
type SentimentTier struct {
	Emoji string
	Label string
}

// Tiers from most fearful to most greedy. Each applies up to and including
// its Max value.
var sentimentTiers = []struct {
	Max  int
	Tier SentimentTier
}{
	{25, SentimentTier{"😱", "Extreme Fear"}},
	{45, SentimentTier{"😰", "Fear"}},
	{55, SentimentTier{"😐", "Neutral"}},
	{75, SentimentTier{"😊", "Greed"}},
	{100, SentimentTier{"🤑", "Extreme Greed"}},
}

// Tier maps an index value to its band. Values above 100 fall in the top band.
func Tier(value int) SentimentTier {
	for _, t := range sentimentTiers {
		if value <= t.Max {
			return t.Tier
		}
	}
	return sentimentTiers[len(sentimentTiers)-1].Tier
}

// Sentiment fetches the alternative.me fear & greed index.
type Sentiment struct {
	base
	cfg config.SentimentConfig
}

// NewSentiment creates the fear & greed fetcher.
func NewSentiment(cfg config.SentimentConfig, opts Options) *Sentiment {
	return &Sentiment{base: newBase("sentiment", opts), cfg: cfg}
}

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// Fetch returns at most one SentimentIndex.
func (s *Sentiment) Fetch(ctx context.Context) Result[SentimentIndex] {
	var resp fngResponse
	if err := s.getJSON(ctx, s.cfg.URL, nil, &resp); err != nil {
		return failed[SentimentIndex](s.logger, s.name, err)
	}
	if len(resp.Data) == 0 {
		return failed[SentimentIndex](s.logger, s.name, fmt.Errorf("sentiment response has no data"))
	}

	d := resp.Data[0]
	value, err := strconv.Atoi(strings.TrimSpace(d.Value))
	if err != nil || value < 0 || value > 100 {
		return failed[SentimentIndex](s.logger, s.name, fmt.Errorf("invalid sentiment value %q", d.Value))
	}
	class := d.Classification
	if class == "" {
		class = Tier(value).Label
	}
	return OK(s.name, []SentimentIndex{{Value: value, Classification: class}})
}

var _ Fetcher[SentimentIndex] = (*Sentiment)(nil)
