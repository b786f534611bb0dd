package briefing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/sources"
)

type recordingDeliverer struct {
	mu    sync.Mutex
	texts []string
	err   error
	block chan struct{}
}

func (d *recordingDeliverer) Deliver(_ context.Context, text string) error {
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return d.err
}

type stubCompleter struct {
	reply string
	err   error
	got   []llm.Message
}

func (s *stubCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	s.got = messages
	return s.reply, s.err
}

func newTestPipeline(f Fetchers, out Deliverer, completer llm.Completer) *Pipeline {
	p := NewPipeline(PipelineConfig{
		Aggregator:     NewAggregator(f, testBuckets, 8, nil, nil),
		Formatter:      testFormatter(),
		Deliverer:      out,
		LLM:            completer,
		AnalysisPrompt: "Analyze these headlines.",
	})
	p.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }
	return p
}

func TestPipelineRun(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(Fetchers{Articles: []sources.ArticleFetcher{feed("newsapi", "world", "Big story")}}, out, nil)

	if p.LastRun() != nil {
		t.Fatal("LastRun should be nil before the first run")
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.texts) != 1 || !strings.Contains(out.texts[0], "Big story") {
		t.Fatalf("delivered = %q", out.texts)
	}
	last := p.LastRun()
	if last == nil || last.Outcome != OutcomeOK || last.ID == "" {
		t.Errorf("LastRun = %+v", last)
	}
}

func TestPipelineRunAllSourcesFailed(t *testing.T) {
	out := &recordingDeliverer{}
	f := Fetchers{
		Articles: []sources.ArticleFetcher{brokenFeed("a", "ai"), brokenFeed("b", "tech"), brokenFeed("c", "world")},
		Weather:  &fakeFetcher[sources.Weather]{res: sources.Failed[sources.Weather]("weather", errors.New("timeout"))},
	}
	p := newTestPipeline(f, out, nil)

	err := p.Run(context.Background())
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("Run() error = %v, want ErrNoData", err)
	}
	if len(out.texts) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(out.texts))
	}
	if strings.TrimSpace(out.texts[0]) == "" {
		t.Fatal("delivered an empty body")
	}
	if !strings.Contains(out.texts[0], "No data could be collected") {
		t.Errorf("expected the no-data notice, got %q", out.texts[0])
	}
	if got := p.LastRun().Outcome; got != OutcomeNoData {
		t.Errorf("Outcome = %q", got)
	}
}

func TestPipelineRunDeliveryFailure(t *testing.T) {
	cause := errors.New("network down")
	out := &recordingDeliverer{err: cause}
	p := newTestPipeline(Fetchers{Articles: []sources.ArticleFetcher{feed("newsapi", "world", "Story")}}, out, nil)

	err := p.Run(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, cause)
	}
	if got := p.LastRun().Outcome; got != OutcomeDeliveryFailed {
		t.Errorf("Outcome = %q", got)
	}
}

func TestPipelineRunInProgress(t *testing.T) {
	out := &recordingDeliverer{block: make(chan struct{})}
	p := newTestPipeline(Fetchers{Articles: []sources.ArticleFetcher{feed("newsapi", "world", "Story")}}, out, nil)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	deadline := time.Now().Add(2 * time.Second)
	for !p.Running() {
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := p.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent Run() error = %v, want ErrRunInProgress", err)
	}

	close(out.block)
	if err := <-done; err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if len(out.texts) != 1 {
		t.Errorf("deliveries = %d, want 1", len(out.texts))
	}
	if p.Running() {
		t.Error("Running() still true after the run finished")
	}
}

func TestPipelineRender(t *testing.T) {
	out := &recordingDeliverer{}
	p := newTestPipeline(Fetchers{Articles: []sources.ArticleFetcher{feed("newsapi", "world", "Story")}}, out, nil)

	doc, err := p.Render(context.Background())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(doc, "Story") {
		t.Errorf("doc = %q", doc)
	}
	if len(out.texts) != 0 {
		t.Error("Render must not deliver")
	}
}

func TestPipelineAnalyze(t *testing.T) {
	f := Fetchers{Articles: []sources.ArticleFetcher{feed("ai-feed", "ai", "Model A", "Model B")}}

	t.Run("ok", func(t *testing.T) {
		c := &stubCompleter{reply: "Both models matter."}
		got, err := newTestPipeline(f, &recordingDeliverer{}, c).Analyze(context.Background())
		if err != nil || got != "Both models matter." {
			t.Fatalf("Analyze() = %q, %v", got, err)
		}
		if len(c.got) != 2 || c.got[0].Content != "Analyze these headlines." {
			t.Fatalf("messages = %+v", c.got)
		}
		if !strings.Contains(c.got[1].Content, "1. Model A\n2. Model B") {
			t.Errorf("user message = %q", c.got[1].Content)
		}
	})

	t.Run("llm error", func(t *testing.T) {
		c := &stubCompleter{err: errors.New("quota")}
		if _, err := newTestPipeline(f, &recordingDeliverer{}, c).Analyze(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("no headlines", func(t *testing.T) {
		empty := Fetchers{Articles: []sources.ArticleFetcher{brokenFeed("a", "ai")}}
		_, err := newTestPipeline(empty, &recordingDeliverer{}, &stubCompleter{}).Analyze(context.Background())
		if !errors.Is(err, ErrNoData) {
			t.Errorf("Analyze() error = %v, want ErrNoData", err)
		}
	})

	t.Run("no llm", func(t *testing.T) {
		_, err := newTestPipeline(f, &recordingDeliverer{}, nil).Analyze(context.Background())
		if !errors.Is(err, llm.ErrNoAPIKey) {
			t.Errorf("Analyze() error = %v, want ErrNoAPIKey", err)
		}
	})
}
