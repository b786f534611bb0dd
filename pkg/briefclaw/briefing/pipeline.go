package briefing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/metrics"
)

var (
	// ErrNoData is returned when every source came back empty or failed.
	// The "no data" notice has already been delivered when Run returns it.
	ErrNoData = errors.New("briefing: no source produced data")

	// ErrRunInProgress is returned when Run is called while another run
	// is still in flight.
	ErrRunInProgress = errors.New("briefing: a run is already in progress")
)

// Run outcomes, as reported by LastRun and the run counter.
const (
	OutcomeOK             = "ok"
	OutcomeNoData         = "no_data"
	OutcomeDeliveryFailed = "delivery_failed"
)

// Deliverer sends one rendered document to the configured destination.
type Deliverer interface {
	Deliver(ctx context.Context, text string) error
}

// RunStatus describes the most recent completed run.
type RunStatus struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Outcome  string
	Err      error
}

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	Aggregator *Aggregator
	Formatter  *Formatter
	Deliverer  Deliverer

	// LLM and AnalysisPrompt back Analyze. A nil LLM disables it.
	LLM            llm.Completer
	AnalysisPrompt string

	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

// Pipeline runs Collect, Render and Deliver as one briefing.
type Pipeline struct {
	agg            *Aggregator
	formatter      *Formatter
	out            Deliverer
	llm            llm.Completer
	analysisPrompt string
	metrics        *metrics.Recorder
	logger         *slog.Logger

	running atomic.Bool
	now     func() time.Time

	mu   sync.Mutex
	last *RunStatus
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		agg:            cfg.Aggregator,
		formatter:      cfg.Formatter,
		out:            cfg.Deliverer,
		llm:            cfg.LLM,
		analysisPrompt: cfg.AnalysisPrompt,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger.With("component", "pipeline"),
		now:            time.Now,
	}
}

// Run collects, renders and delivers one briefing to the configured
// destination. When no source produced data it delivers the "no data"
// notice instead and returns ErrNoData. Only one run may be in flight; a
// concurrent call returns ErrRunInProgress without doing anything.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.RunFor(ctx, p.out)
}

// RunFor is Run with the document sent through out instead of the
// configured deliverer. It shares Run's in-flight guard.
func (p *Pipeline) RunFor(ctx context.Context, out Deliverer) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer p.running.Store(false)

	status := &RunStatus{ID: uuid.New().String(), Started: p.now()}
	logger := p.logger.With("run_id", status.ID)
	logger.Info("briefing run started")

	err := p.run(ctx, out, logger)

	status.Duration = p.now().Sub(status.Started)
	status.Err = err
	switch {
	case err == nil:
		status.Outcome = OutcomeOK
	case errors.Is(err, ErrNoData):
		status.Outcome = OutcomeNoData
	default:
		status.Outcome = OutcomeDeliveryFailed
	}
	p.metrics.RecordRun(status.Outcome, status.Duration)

	p.mu.Lock()
	p.last = status
	p.mu.Unlock()

	if err != nil {
		logger.Error("briefing run finished", "outcome", status.Outcome, "duration", status.Duration, "error", err)
	} else {
		logger.Info("briefing run finished", "outcome", status.Outcome, "duration", status.Duration)
	}
	return err
}

func (p *Pipeline) run(ctx context.Context, out Deliverer, logger *slog.Logger) error {
	snap := p.agg.Collect(ctx)
	now := p.now()

	if snap.Empty() {
		logger.Warn("no source produced data", "failed", snap.Failed)
		if err := out.Deliver(ctx, p.formatter.NoDataNotice(now, snap.Failed)); err != nil {
			return fmt.Errorf("deliver no-data notice: %w", err)
		}
		return ErrNoData
	}

	doc := p.formatter.Render(snap, now)
	logger.Debug("document rendered", "bytes", len(doc), "sources", len(snap.Sources))
	if err := out.Deliver(ctx, doc); err != nil {
		return fmt.Errorf("deliver briefing: %w", err)
	}
	return nil
}

// Render collects and renders a briefing without delivering it.
func (p *Pipeline) Render(ctx context.Context) (string, error) {
	snap := p.agg.Collect(ctx)
	now := p.now()
	if snap.Empty() {
		return p.formatter.NoDataNotice(now, snap.Failed), ErrNoData
	}
	return p.formatter.Render(snap, now), nil
}

// Analyze fetches fresh headlines and asks the LLM for an analysis of them.
func (p *Pipeline) Analyze(ctx context.Context) (string, error) {
	if p.llm == nil {
		return "", llm.ErrNoAPIKey
	}
	articles := p.agg.CollectHeadlines(ctx)
	if len(articles) == 0 {
		return "", ErrNoData
	}

	var b strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, a.Title)
	}
	text, err := p.llm.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: p.analysisPrompt},
		{Role: llm.RoleUser, Content: b.String()},
	})
	if err != nil {
		return "", fmt.Errorf("analysis: %w", err)
	}
	return text, nil
}

// Running reports whether a run is in flight.
func (p *Pipeline) Running() bool { return p.running.Load() }

// LastRun returns the most recent completed run, or nil before the first.
func (p *Pipeline) LastRun() *RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	s := *p.last
	return &s
}
