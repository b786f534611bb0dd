package sources

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/config"
	"golang.org/x/net/html/charset"
)

// ErrUnknownFeedFormat is returned when a body parses as neither RSS nor Atom.
var ErrUnknownFeedFormat = errors.New("unable to parse as RSS or Atom")

// RSS fetches one RSS 2.0, RSS 1.0 (RDF) or Atom feed.
type RSS struct {
	base
	cfg      config.FeedConfig
	maxItems int
	maxAge   time.Duration
	now      func() time.Time
}

// NewRSS creates a feed fetcher. maxAge drops items published longer ago;
// zero keeps everything.
func NewRSS(cfg config.FeedConfig, maxAge time.Duration, opts Options) *RSS {
	return &RSS{
		base:     newBase(cfg.Name, opts),
		cfg:      cfg,
		maxItems: opts.MaxItems,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Bucket returns the briefing bucket the feed contributes to.
func (r *RSS) Bucket() string { return r.cfg.Bucket }

// Fetch downloads and parses the feed.
func (r *RSS) Fetch(ctx context.Context) Result[Article] {
	body, err := r.get(ctx, r.cfg.URL, nil)
	if err != nil {
		return failed[Article](r.logger, r.name, err)
	}
	items, err := ParseFeed(body)
	if err != nil {
		return failed[Article](r.logger, r.name, err)
	}

	cutoff := time.Time{}
	if r.maxAge > 0 {
		cutoff = r.now().Add(-r.maxAge)
	}

	articles := make([]Article, 0, len(items))
	for _, it := range items {
		if it.Title == "" {
			continue
		}
		// Items without a parseable date are kept.
		if !cutoff.IsZero() && !it.Published.IsZero() && it.Published.Before(cutoff) {
			continue
		}
		articles = append(articles, Article{
			Title:     it.Title,
			URL:       it.Link,
			Source:    r.name,
			Published: it.Published,
		})
		if r.maxItems > 0 && len(articles) >= r.maxItems {
			break
		}
	}
	return OK(r.name, articles)
}

// FeedItem is the dialect-independent form of a feed entry.
type FeedItem struct {
	Title     string
	Link      string
	Published time.Time
}

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Date    string `xml:"http://purl.org/dc/elements/1.1/ date"`
}

// rdfFeed is RSS 1.0, where items are siblings of the channel.
type rdfFeed struct {
	XMLName xml.Name  `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# RDF"`
	Items   []rssItem `xml:"item"`
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

// ParseFeed tries the RSS 2.0 dialect (channel/item/title,link) first, then
// RSS 1.0 (rdf:RDF/item) and finally Atom (feed/entry/title,link[@href]).
// Declared non-UTF-8 encodings and HTML named entities are accepted.
func ParseFeed(data []byte) ([]FeedItem, error) {
	var rss rssFeed
	if err := decodeFeed(data, &rss); err == nil {
		return rssItems(rss.Channel.Items), nil
	}

	var rdf rdfFeed
	if err := decodeFeed(data, &rdf); err == nil {
		return rssItems(rdf.Items), nil
	}

	var atom atomFeed
	if err := decodeFeed(data, &atom); err == nil {
		items := make([]FeedItem, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			date := e.Published
			if date == "" {
				date = e.Updated
			}
			items = append(items, FeedItem{
				Title:     cleanText(e.Title),
				Link:      atomHref(e.Links),
				Published: parseTime(date),
			})
		}
		return items, nil
	}

	return nil, ErrUnknownFeedFormat
}

// decodeFeed decodes the root element into v. The decoder is lenient:
// HTML entities resolve and the declared charset is honored.
func decodeFeed(data []byte, v any) error {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel
	return d.Decode(v)
}

func rssItems(in []rssItem) []FeedItem {
	items := make([]FeedItem, 0, len(in))
	for _, it := range in {
		date := it.PubDate
		if date == "" {
			date = it.Date
		}
		items = append(items, FeedItem{
			Title:     cleanText(it.Title),
			Link:      strings.TrimSpace(it.Link),
			Published: parseTime(date),
		})
	}
	return items
}

// atomHref prefers the alternate (or rel-less) link, then the first one.
func atomHref(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

// parseTime tries the date layouts seen in the wild and returns the zero
// time when none match.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		time.RFC3339Nano,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// cleanText unescapes double-encoded entities and collapses whitespace
// runs (feeds often wrap titles).
func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

var _ ArticleFetcher = (*RSS)(nil)
