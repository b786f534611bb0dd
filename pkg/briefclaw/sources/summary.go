package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
)

// Summarizer asks the LLM for a short digest of the collected headlines.
type Summarizer struct {
	llm    llm.Completer
	cfg    config.SummaryConfig
	logger *slog.Logger
}

// NewSummarizer creates the LLM headline summarizer.
func NewSummarizer(completer llm.Completer, cfg config.SummaryConfig, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{llm: completer, cfg: cfg, logger: logger.With("component", "sources")}
}

// Name returns "summary".
func (s *Summarizer) Name() string { return "summary" }

// Summarize returns a plain-text digest of titles. A missing API key yields
// Empty. Any other failure yields a Failed result whose single item is a
// tagged "[AI summary unavailable: ...]" line.
func (s *Summarizer) Summarize(ctx context.Context, titles []string) Result[string] {
	if len(titles) == 0 {
		return Empty[string](s.Name())
	}
	if s.cfg.MaxTitles > 0 && len(titles) > s.cfg.MaxTitles {
		titles = titles[:s.cfg.MaxTitles]
	}

	var b strings.Builder
	for i, t := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}

	text, err := s.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: s.cfg.Prompt},
		{Role: llm.RoleUser, Content: b.String()},
	})
	if errors.Is(err, llm.ErrNoAPIKey) {
		return Empty[string](s.Name())
	}
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		s.logger.Warn("fetch failed", "source", s.Name(), "error", err)
		r := Failed[string](s.Name(), err)
		r.Items = []string{UnavailableTag("AI summary", err)}
		return r
	}
	return OK(s.Name(), []string{strings.TrimSpace(text)})
}

// UnavailableTag renders the tagged placeholder used when an LLM-backed
// result could not be produced.
func UnavailableTag(what string, err error) string {
	return fmt.Sprintf("[%s unavailable: %v]", what, err)
}
