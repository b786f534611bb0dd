// Package config defines the BriefClaw configuration structures, their
// defaults, and the loader that merges config.yaml, .env files, environment
// variables and the OS keyring.
package config

import (
	"time"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels/discord"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels/telegram"
)

// Config holds all BriefClaw configuration. It is static for the lifetime of
// the process.
type Config struct {
	// Name is shown in the briefing footer and the /start greeting.
	Name string `yaml:"name" validate:"required"`

	// Platform selects the messaging channel: "telegram" or "discord".
	Platform string `yaml:"platform" validate:"oneof=telegram discord"`

	// Destination is the chat (Telegram) or channel (Discord) ID that
	// receives the scheduled briefing.
	Destination string `yaml:"destination" validate:"required"`

	// AuthorizedUserID restricts commands to one sender. Empty allows everyone.
	AuthorizedUserID string `yaml:"authorized_user_id"`

	// Timezone is the IANA zone used for the push time and the header date.
	Timezone string `yaml:"timezone" validate:"required,timezone"`

	Telegram  telegram.Config `yaml:"telegram"`
	Discord   discord.Config  `yaml:"discord"`
	LLM       LLMConfig       `yaml:"llm"`
	Sources   SourcesConfig   `yaml:"sources"`
	Briefing  BriefingConfig  `yaml:"briefing"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Delivery  DeliveryConfig  `yaml:"delivery"`
	Assistant AssistantConfig `yaml:"assistant"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the OpenAI-compatible chat completion endpoint.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// SourcesConfig configures every source fetcher.
type SourcesConfig struct {
	// FetchTimeout bounds each individual HTTP call.
	FetchTimeout time.Duration `yaml:"fetch_timeout" validate:"gt=0"`

	// MaxItemsPerSource truncates each news/RSS source before bucketing.
	MaxItemsPerSource int `yaml:"max_items_per_source" validate:"gte=1"`

	// MaxAge drops RSS items published longer ago than this. Zero disables the filter.
	MaxAge time.Duration `yaml:"max_age" validate:"gte=0"`

	News      NewsConfig      `yaml:"news"`
	Feeds     []FeedConfig    `yaml:"feeds" validate:"dive"`
	Weather   WeatherConfig   `yaml:"weather"`
	Quote     QuoteConfig     `yaml:"quote"`
	Stocks    StocksConfig    `yaml:"stocks"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Summary   SummaryConfig   `yaml:"summary"`
}

// NewsConfig configures the top-headlines news API.
type NewsConfig struct {
	Disabled bool   `yaml:"disabled"`
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	APIKey   string `yaml:"api_key"`
	Country  string `yaml:"country"`
	PageSize int    `yaml:"page_size" validate:"gte=1,lte=100"`
	Bucket   string `yaml:"bucket" validate:"required"`
}

// FeedConfig is one RSS or Atom feed and the bucket it contributes to.
type FeedConfig struct {
	Name   string `yaml:"name" validate:"required"`
	URL    string `yaml:"url" validate:"required,url"`
	Bucket string `yaml:"bucket" validate:"required"`
}

// WeatherConfig configures the current-weather API.
type WeatherConfig struct {
	Disabled bool   `yaml:"disabled"`
	BaseURL  string `yaml:"base_url" validate:"required,url"`
	APIKey   string `yaml:"api_key"`
	City     string `yaml:"city" validate:"required"`
	Lang     string `yaml:"lang"`
}

// QuoteConfig configures the daily-quote API.
type QuoteConfig struct {
	Disabled bool   `yaml:"disabled"`
	URL      string `yaml:"url" validate:"required,url"`
	Fallback string `yaml:"fallback"`
}

// StocksConfig configures equity quotes.
type StocksConfig struct {
	Disabled bool           `yaml:"disabled"`
	BaseURL  string         `yaml:"base_url" validate:"required,url"`
	Symbols  []SymbolConfig `yaml:"symbols" validate:"dive"`
}

// SymbolConfig maps a ticker to its display name.
type SymbolConfig struct {
	Symbol string `yaml:"symbol" validate:"required"`
	Name   string `yaml:"name" validate:"required"`
}

// CryptoConfig configures cryptocurrency prices.
type CryptoConfig struct {
	Disabled bool         `yaml:"disabled"`
	BaseURL  string       `yaml:"base_url" validate:"required,url"`
	Coins    []CoinConfig `yaml:"coins" validate:"dive"`
}

// CoinConfig maps a provider coin ID to its display symbol.
type CoinConfig struct {
	ID     string `yaml:"id" validate:"required"`
	Symbol string `yaml:"symbol" validate:"required"`
}

// SentimentConfig configures the fear & greed index.
type SentimentConfig struct {
	Disabled bool   `yaml:"disabled"`
	URL      string `yaml:"url" validate:"required,url"`
}

// SummaryConfig configures the LLM-generated headline digest.
type SummaryConfig struct {
	Disabled  bool   `yaml:"disabled"`
	MaxTitles int    `yaml:"max_titles" validate:"gte=1"`
	Prompt    string `yaml:"prompt" validate:"required"`
}

// BriefingConfig controls document assembly.
type BriefingConfig struct {
	// Title appears in the header line.
	Title string `yaml:"title" validate:"required"`

	// Buckets lists the news buckets in render order.
	Buckets []BucketConfig `yaml:"buckets" validate:"required,dive"`

	// BucketMaxItems caps each bucket after dedup.
	BucketMaxItems int `yaml:"bucket_max_items" validate:"gte=1"`

	// QuoteFallback is shown when the daily quote fetch fails.
	QuoteFallback string `yaml:"quote_fallback"`
}

// BucketConfig names one news bucket and its section title.
type BucketConfig struct {
	Name  string `yaml:"name" validate:"required"`
	Title string `yaml:"title" validate:"required"`
}

// ScheduleConfig configures the daily trigger.
type ScheduleConfig struct {
	// PushTime is the local "HH:MM" at which the briefing fires.
	PushTime string `yaml:"push_time" validate:"required,hhmm"`

	// RunOnStart fires one briefing immediately when serve starts.
	RunOnStart bool `yaml:"run_on_start"`

	// JobTimeout bounds one scheduled pipeline run.
	JobTimeout time.Duration `yaml:"job_timeout" validate:"gt=0"`
}

// DeliveryConfig configures outbound sends.
type DeliveryConfig struct {
	// MessageLimit overrides the platform's per-message limit when lower. Zero uses the platform max.
	MessageLimit int `yaml:"message_limit" validate:"gte=0"`

	// SendDelay is the pause between consecutive chunk sends.
	SendDelay time.Duration `yaml:"send_delay" validate:"gte=0"`
}

// AssistantConfig configures the chat surface.
type AssistantConfig struct {
	// MaxHistory caps the conversation buffer (turns).
	MaxHistory int `yaml:"max_history" validate:"gte=2"`

	// SystemPrompt is prepended to every chat completion.
	SystemPrompt string `yaml:"system_prompt"`

	// AnalysisPrompt instructs the /ai analysis over fresh titles.
	AnalysisPrompt string `yaml:"analysis_prompt" validate:"required"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address for /metrics and /healthz. Empty disables the server.
	Listen string `yaml:"listen"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Name:     "BriefClaw",
		Platform: "telegram",
		Timezone: "Asia/Taipei",
		Telegram: telegram.DefaultConfig(),
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
		},
		Sources: SourcesConfig{
			FetchTimeout:      15 * time.Second,
			MaxItemsPerSource: 3,
			MaxAge:            24 * time.Hour,
			News: NewsConfig{
				BaseURL:  "https://newsapi.org",
				Country:  "tw",
				PageSize: 10,
				Bucket:   "world",
			},
			Feeds: []FeedConfig{
				{Name: "The Verge AI", URL: "https://www.theverge.com/rss/ai-artificial-intelligence/index.xml", Bucket: "ai"},
				{Name: "TechCrunch AI", URL: "https://techcrunch.com/category/artificial-intelligence/feed/", Bucket: "ai"},
				{Name: "MIT Tech Review AI", URL: "https://www.technologyreview.com/topic/artificial-intelligence/feed", Bucket: "ai"},
				{Name: "Hacker News", URL: "https://hnrss.org/frontpage", Bucket: "tech"},
			},
			Weather: WeatherConfig{
				BaseURL: "https://api.openweathermap.org",
				City:    "Taipei",
				Lang:    "zh_tw",
			},
			Quote: QuoteConfig{
				URL: "https://api.quotable.io/random",
			},
			Stocks: StocksConfig{
				BaseURL: "https://query1.finance.yahoo.com",
				Symbols: []SymbolConfig{
					{Symbol: "^GSPC", Name: "S&P 500"},
					{Symbol: "^IXIC", Name: "Nasdaq"},
					{Symbol: "^DJI", Name: "Dow Jones"},
					{Symbol: "AAPL", Name: "Apple"},
					{Symbol: "MSFT", Name: "Microsoft"},
					{Symbol: "NVDA", Name: "NVIDIA"},
					{Symbol: "GOOGL", Name: "Google"},
					{Symbol: "TSLA", Name: "Tesla"},
					{Symbol: "META", Name: "Meta"},
					{Symbol: "AMZN", Name: "Amazon"},
				},
			},
			Crypto: CryptoConfig{
				BaseURL: "https://api.coingecko.com",
				Coins: []CoinConfig{
					{ID: "bitcoin", Symbol: "BTC"},
					{ID: "ethereum", Symbol: "ETH"},
					{ID: "solana", Symbol: "SOL"},
					{ID: "binancecoin", Symbol: "BNB"},
					{ID: "ripple", Symbol: "XRP"},
					{ID: "dogecoin", Symbol: "DOGE"},
					{ID: "cardano", Symbol: "ADA"},
					{ID: "toncoin", Symbol: "TON"},
				},
			},
			Sentiment: SentimentConfig{
				URL: "https://api.alternative.me/fng/?limit=1",
			},
			Summary: SummaryConfig{
				MaxTitles: 20,
				Prompt: "Summarize today's most important news in three to five short bullet points. " +
					"Plain text only, no markdown.",
			},
		},
		Briefing: BriefingConfig{
			Title: "Morning Briefing",
			Buckets: []BucketConfig{
				{Name: "world", Title: "📰 *Top Headlines*"},
				{Name: "tech", Title: "💻 *Tech*"},
				{Name: "ai", Title: "🤖 *AI News*"},
			},
			BucketMaxItems: 8,
			QuoteFallback:  "Every day is a new beginning!",
		},
		Schedule: ScheduleConfig{
			PushTime:   "08:00",
			RunOnStart: true,
			JobTimeout: 5 * time.Minute,
		},
		Delivery: DeliveryConfig{
			SendDelay: time.Second,
		},
		Assistant: AssistantConfig{
			MaxHistory:   20,
			SystemPrompt: "You are a concise, friendly assistant. Answer in the user's language.",
			AnalysisPrompt: "Here are today's headlines. Identify the three most significant stories, " +
				"explain briefly why they matter, and note any common thread. Keep it under 200 words.",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// MessageLimit returns the effective per-message size limit for the
// configured platform.
func (c *Config) MessageLimit() int {
	max := telegram.MaxMessageLength
	if c.Platform == "discord" {
		max = discord.MaxMessageLength
	}
	if c.Delivery.MessageLimit > 0 && c.Delivery.MessageLimit < max {
		return c.Delivery.MessageLimit
	}
	return max
}

// Location resolves Timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// BotToken returns the credential of the configured platform.
func (c *Config) BotToken() string {
	if c.Platform == "discord" {
		return c.Discord.Token
	}
	return c.Telegram.Token
}
