package commands

import (
	"log/slog"
	"net/http"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/briefing"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels/discord"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels/telegram"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/delivery"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/metrics"
)

// newChannel builds the configured platform channel.
func newChannel(cfg *config.Config, logger *slog.Logger) channels.Channel {
	if cfg.Platform == "discord" {
		return discord.New(cfg.Discord, logger)
	}
	return telegram.New(cfg.Telegram, logger)
}

func newLLM(cfg *config.Config, logger *slog.Logger) *llm.Client {
	return llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
}

func newDelivery(cfg *config.Config, sender delivery.Sender, rec *metrics.Recorder, logger *slog.Logger) *delivery.Client {
	return delivery.New(sender, delivery.Config{
		Destination: cfg.Destination,
		Limit:       cfg.MessageLimit(),
		SendDelay:   cfg.Delivery.SendDelay,
	}, rec, logger)
}

// newPipeline wires fetchers, aggregator and formatter. out may be nil for
// render-only use.
func newPipeline(cfg *config.Config, completer *llm.Client, out briefing.Deliverer, rec *metrics.Recorder, logger *slog.Logger) *briefing.Pipeline {
	fetchers := briefing.BuildFetchers(cfg, completer, &http.Client{}, logger)
	agg := briefing.NewAggregator(fetchers, cfg.Briefing.Buckets, cfg.Briefing.BucketMaxItems, rec, logger)
	formatter := &briefing.Formatter{
		Title:         cfg.Briefing.Title,
		Footer:        "🤖 " + cfg.Name,
		QuoteFallback: cfg.Briefing.QuoteFallback,
		Location:      cfg.Location(),
	}
	return briefing.NewPipeline(briefing.PipelineConfig{
		Aggregator:     agg,
		Formatter:      formatter,
		Deliverer:      out,
		LLM:            completer,
		AnalysisPrompt: cfg.Assistant.AnalysisPrompt,
		Metrics:        rec,
		Logger:         logger,
	})
}
