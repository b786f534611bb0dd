package briefing

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/sources"
)

type fakeArticles struct {
	name   string
	bucket string
	res    sources.Result[sources.Article]
}

func (f *fakeArticles) Name() string   { return f.name }
func (f *fakeArticles) Bucket() string { return f.bucket }
func (f *fakeArticles) Fetch(context.Context) sources.Result[sources.Article] {
	return f.res
}

type fakeFetcher[T any] struct {
	name string
	res  sources.Result[T]
}

func (f *fakeFetcher[T]) Name() string                           { return f.name }
func (f *fakeFetcher[T]) Fetch(context.Context) sources.Result[T] { return f.res }

type fakeSummarizer struct {
	mu     sync.Mutex
	titles []string
	res    sources.Result[string]
}

func (f *fakeSummarizer) Name() string { return "summary" }
func (f *fakeSummarizer) Summarize(_ context.Context, titles []string) sources.Result[string] {
	f.mu.Lock()
	f.titles = titles
	f.mu.Unlock()
	return f.res
}

func articles(source string, titles ...string) []sources.Article {
	out := make([]sources.Article, len(titles))
	for i, t := range titles {
		out[i] = sources.Article{Title: t, URL: "https://example.com/" + t, Source: source}
	}
	return out
}

func feed(name, bucket string, titles ...string) *fakeArticles {
	return &fakeArticles{name: name, bucket: bucket, res: sources.OK(name, articles(name, titles...))}
}

func brokenFeed(name, bucket string) *fakeArticles {
	return &fakeArticles{name: name, bucket: bucket, res: sources.Failed[sources.Article](name, errors.New("boom"))}
}

func titlesOf(list []sources.Article) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Title
	}
	return out
}

var testBuckets = []config.BucketConfig{
	{Name: "world", Title: "📰 *Top Headlines*"},
	{Name: "tech", Title: "💻 *Tech*"},
	{Name: "ai", Title: "🤖 *AI News*"},
}

func TestCollectThreeFeedsIntoOneBucket(t *testing.T) {
	f := Fetchers{Articles: []sources.ArticleFetcher{
		brokenFeed("feed-a", "ai"),
		feed("feed-b", "ai", "B1", "B2"),
		feed("feed-c", "ai", "C1", "C2", "C3"),
	}}
	agg := NewAggregator(f, testBuckets, 8, nil, nil)

	snap := agg.Collect(context.Background())
	if len(snap.Buckets) != 1 {
		t.Fatalf("got %d buckets, want 1", len(snap.Buckets))
	}
	b := snap.Buckets[0]
	if b.Name != "ai" || b.Title != "🤖 *AI News*" {
		t.Errorf("bucket = %s %q", b.Name, b.Title)
	}
	want := []string{"B1", "B2", "C1", "C2", "C3"}
	if got := titlesOf(b.Articles); !reflect.DeepEqual(got, want) {
		t.Errorf("titles = %v, want %v", got, want)
	}
	if _, ok := snap.Sources["feed-a"]; ok {
		t.Error("failed source should be omitted from Sources")
	}
	if snap.Sources["feed-b"] != 2 || snap.Sources["feed-c"] != 3 {
		t.Errorf("Sources = %v", snap.Sources)
	}
	if !reflect.DeepEqual(snap.Failed, []string{"feed-a"}) {
		t.Errorf("Failed = %v", snap.Failed)
	}
	if snap.Empty() {
		t.Error("snapshot with data reported Empty")
	}
}

func TestCollectDedupAcrossSources(t *testing.T) {
	f := Fetchers{Articles: []sources.ArticleFetcher{
		feed("feed-b", "ai", "Model launch", "Chip news"),
		feed("feed-c", "ai", "model   LAUNCH ", "Other story"),
	}}
	snap := NewAggregator(f, testBuckets, 8, nil, nil).Collect(context.Background())

	got := snap.Buckets[0].Articles
	if want := []string{"Model launch", "Chip news", "Other story"}; !reflect.DeepEqual(titlesOf(got), want) {
		t.Fatalf("titles = %v, want %v", titlesOf(got), want)
	}
	if got[0].Source != "feed-b" {
		t.Errorf("first occurrence should win, got source %q", got[0].Source)
	}
}

func TestCollectBucketsOrderCapAndOmission(t *testing.T) {
	f := Fetchers{Articles: []sources.ArticleFetcher{
		feed("hn", "tech", "T1", "T2", "T3", "T4"),
		feed("newsapi", "world", "W1"),
		brokenFeed("ai-feed", "ai"),
	}}
	snap := NewAggregator(f, testBuckets, 3, nil, nil).Collect(context.Background())

	var names []string
	for _, b := range snap.Buckets {
		names = append(names, b.Name)
		if len(b.Articles) > 3 {
			t.Errorf("bucket %s has %d items, cap is 3", b.Name, len(b.Articles))
		}
	}
	if want := []string{"world", "tech"}; !reflect.DeepEqual(names, want) {
		t.Errorf("bucket order = %v, want %v", names, want)
	}
	if got := titlesOf(snap.Buckets[1].Articles); !reflect.DeepEqual(got, []string{"T1", "T2", "T3"}) {
		t.Errorf("truncation should keep the first items, got %v", got)
	}
}

func TestCollectAllFailed(t *testing.T) {
	f := Fetchers{
		Articles:  []sources.ArticleFetcher{brokenFeed("a", "ai"), brokenFeed("b", "tech")},
		Weather:   &fakeFetcher[sources.Weather]{res: sources.Failed[sources.Weather]("weather", errors.New("timeout"))},
		Quote:     &fakeFetcher[sources.DailyQuote]{res: sources.Empty[sources.DailyQuote]("quote")},
		Sentiment: &fakeFetcher[sources.SentimentIndex]{res: sources.Failed[sources.SentimentIndex]("sentiment", errors.New("bad json"))},
	}
	sum := &fakeSummarizer{}
	f.Summary = sum

	snap := NewAggregator(f, testBuckets, 8, nil, nil).Collect(context.Background())
	if !snap.Empty() {
		t.Fatalf("Empty() = false, Sources = %v", snap.Sources)
	}
	if len(snap.Buckets) != 0 || snap.Weather != nil || snap.Quote != nil || snap.Sentiment != nil {
		t.Errorf("unexpected data in empty snapshot: %+v", snap)
	}
	if len(snap.Failed) != 4 {
		t.Errorf("Failed = %v, want 4 entries", snap.Failed)
	}
	if sum.titles != nil {
		t.Error("summarizer should be skipped without titles")
	}
}

func TestCollectSingleValueSourcesAndSummary(t *testing.T) {
	sum := &fakeSummarizer{res: sources.OK("summary", []string{"Digest."})}
	f := Fetchers{
		Articles:  []sources.ArticleFetcher{feed("newsapi", "world", "W1", "W2")},
		Weather:   &fakeFetcher[sources.Weather]{res: sources.OK("weather", []sources.Weather{{City: "Taipei", TempC: 25}})},
		Quote:     &fakeFetcher[sources.DailyQuote]{res: sources.OK("quote", []sources.DailyQuote{{Content: "Go.", Author: "Rob"}})},
		Sentiment: &fakeFetcher[sources.SentimentIndex]{res: sources.OK("sentiment", []sources.SentimentIndex{{Value: 50, Classification: "Neutral"}})},
		Summary:   sum,
	}

	snap := NewAggregator(f, testBuckets, 8, nil, nil).Collect(context.Background())
	if snap.Weather == nil || snap.Weather.City != "Taipei" {
		t.Errorf("Weather = %+v", snap.Weather)
	}
	if snap.Quote == nil || snap.Quote.Author != "Rob" {
		t.Errorf("Quote = %+v", snap.Quote)
	}
	if snap.Sentiment == nil || snap.Sentiment.Value != 50 {
		t.Errorf("Sentiment = %+v", snap.Sentiment)
	}
	if snap.Summary != "Digest." {
		t.Errorf("Summary = %q", snap.Summary)
	}
	if !reflect.DeepEqual(sum.titles, []string{"W1", "W2"}) {
		t.Errorf("summarizer titles = %v", sum.titles)
	}
}

func TestCollectFailedSummaryIsTagged(t *testing.T) {
	failed := sources.Failed[string]("summary", errors.New("rate limited"))
	failed.Items = []string{sources.UnavailableTag("AI summary", errors.New("rate limited"))}
	f := Fetchers{
		Articles: []sources.ArticleFetcher{feed("newsapi", "world", "W1")},
		Summary:  &fakeSummarizer{res: failed},
	}

	snap := NewAggregator(f, testBuckets, 8, nil, nil).Collect(context.Background())
	if snap.Summary != "[AI summary unavailable: rate limited]" {
		t.Errorf("Summary = %q", snap.Summary)
	}
	if _, ok := snap.Sources["summary"]; ok {
		t.Error("failed summary should not count as a source with data")
	}
}

func TestCollectHeadlines(t *testing.T) {
	f := Fetchers{Articles: []sources.ArticleFetcher{
		feed("ai-feed", "ai", "A1", "Same"),
		feed("newsapi", "world", "W1", "same"),
	}}
	got := NewAggregator(f, testBuckets, 8, nil, nil).CollectHeadlines(context.Background())
	if want := []string{"W1", "same", "A1", "Same"}; !reflect.DeepEqual(titlesOf(got), want) {
		t.Errorf("titles = %v, want %v", titlesOf(got), want)
	}
}

func TestDedup(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, nil},
		{"no duplicates", []string{"a", "b"}, []string{"a", "b"}},
		{"exact duplicate", []string{"a", "b", "a"}, []string{"a", "b"}},
		{"case and spacing", []string{"Hello  World", " hello world ", "x"}, []string{"Hello  World", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Dedup(articles("s", tt.in...))
			if got := titlesOf(once); len(got) != len(tt.want) || (len(got) > 0 && !reflect.DeepEqual(got, tt.want)) {
				t.Fatalf("Dedup = %v, want %v", got, tt.want)
			}
			twice := Dedup(once)
			if !reflect.DeepEqual(titlesOf(twice), titlesOf(once)) {
				t.Errorf("Dedup not idempotent: %v then %v", titlesOf(once), titlesOf(twice))
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("  Big\tNews \n Today "); got != "big news today" {
		t.Errorf("NormalizeTitle = %q", got)
	}
}
