package briefing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/sources"
	"github.com/shopspring/decimal"
)

const ruleLine = "━━━━━━━━━━━━━━━━━━━━"

var (
	mdEscaper   = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	linkEscaper = strings.NewReplacer("[", "(", "]", ")")
	urlEscaper  = strings.NewReplacer(")", "%29", " ", "%20")

	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	trillion = decimal.NewFromInt(1_000_000_000_000)
)

// Formatter renders a Snapshot into the briefing document.
type Formatter struct {
	// Title is the header text, e.g. "Morning Briefing".
	Title string

	// Footer is the closing line.
	Footer string

	// QuoteFallback replaces the daily quote when its fetch failed.
	QuoteFallback string

	// Location sets the header date's zone. Nil uses the time's own zone.
	Location *time.Location
}

// Render builds the document: header, then weather, each news bucket, AI
// summary, stocks, crypto, sentiment and the daily quote, then the footer.
// Sections without data are omitted. Output is deterministic for a given
// snapshot and time.
func (f *Formatter) Render(s *Snapshot, now time.Time) string {
	var sections []string

	if s.Weather != nil {
		sections = append(sections, renderWeather(s.Weather))
	}
	for _, b := range s.Buckets {
		sections = append(sections, renderBucket(b))
	}
	if s.Summary != "" {
		sections = append(sections, "🧠 *AI Summary*\n"+EscapeMarkdown(s.Summary))
	}
	if len(s.Stocks) > 0 {
		sections = append(sections, renderQuotes("📈 *Markets*", s.Stocks))
	}
	if len(s.Crypto) > 0 {
		sections = append(sections, renderQuotes("₿ *Crypto (24h)*", s.Crypto))
	}
	if s.Sentiment != nil {
		sections = append(sections, FormatSentiment(*s.Sentiment))
	}
	if q := f.renderQuote(s.Quote); q != "" {
		sections = append(sections, q)
	}

	var b strings.Builder
	b.WriteString(f.header(now))
	b.WriteString("\n")
	b.WriteString(ruleLine)
	b.WriteString("\n\n")
	for _, sec := range sections {
		b.WriteString(sec)
		b.WriteString("\n\n")
	}
	b.WriteString(ruleLine)
	if f.Footer != "" {
		b.WriteString("\n")
		b.WriteString(f.Footer)
	}
	return b.String()
}

// NoDataNotice is sent instead of an empty briefing when every source failed.
func (f *Formatter) NoDataNotice(now time.Time, failed []string) string {
	var b strings.Builder
	b.WriteString(f.header(now))
	b.WriteString("\n\n⚠️ No data could be collected for today's briefing.")
	if len(failed) > 0 {
		b.WriteString("\nFailed sources: ")
		b.WriteString(EscapeMarkdown(strings.Join(failed, ", ")))
	}
	b.WriteString("\nThe next briefing runs at the usual time.")
	return b.String()
}

func (f *Formatter) header(now time.Time) string {
	if f.Location != nil {
		now = now.In(f.Location)
	}
	return fmt.Sprintf("☀️ *%s | %s*", f.Title, now.Format("2006-01-02 Monday"))
}

func (f *Formatter) renderQuote(q *sources.DailyQuote) string {
	switch {
	case q != nil:
		return fmt.Sprintf("✨ *Quote of the Day*\n💬 %s\n— %s", EscapeMarkdown(q.Content), EscapeMarkdown(q.Author))
	case f.QuoteFallback != "":
		return "✨ *Quote of the Day*\n💬 " + EscapeMarkdown(f.QuoteFallback)
	default:
		return ""
	}
}

func renderWeather(w *sources.Weather) string {
	return fmt.Sprintf("🌤 *Weather · %s*\n🌡️ %s°C · %s · 💧 %d%%",
		EscapeMarkdown(w.City),
		strconv.FormatFloat(w.TempC, 'f', 1, 64),
		EscapeMarkdown(w.Description),
		w.Humidity,
	)
}

func renderBucket(bk Bucket) string {
	var b strings.Builder
	b.WriteString(bk.Title)
	for i, a := range bk.Articles {
		b.WriteString("\n")
		b.WriteString(FormatArticle(i+1, a))
		if a.Source != "" && a.Source != bk.Name {
			b.WriteString("\n   📌 ")
			b.WriteString(EscapeMarkdown(a.Source))
		}
	}
	return b.String()
}

func renderQuotes(title string, quotes []sources.QuoteRecord) string {
	var b strings.Builder
	b.WriteString(title)
	for _, q := range quotes {
		b.WriteString("\n")
		b.WriteString(FormatQuote(q))
	}
	return b.String()
}

// FormatArticle renders "N. [title](url)", or "N. title" without a URL.
func FormatArticle(n int, a sources.Article) string {
	if a.URL == "" {
		return fmt.Sprintf("%d. %s", n, EscapeMarkdown(a.Title))
	}
	return fmt.Sprintf("%d. [%s](%s)", n, linkEscaper.Replace(a.Title), urlEscaper.Replace(a.URL))
}

// FormatQuote renders one stock or crypto line, e.g.
// "🔴 BTC: $45,000.12 (-2.35%) | MCap $2.50T".
func FormatQuote(q sources.QuoteRecord) string {
	indicator := "🟢"
	if !q.Up() {
		indicator = "🔴"
	}
	label := EscapeMarkdown(q.Symbol)
	if q.Name != "" && q.Name != q.Symbol {
		label = fmt.Sprintf("%s (%s)", EscapeMarkdown(q.Name), EscapeMarkdown(q.Symbol))
	}
	line := fmt.Sprintf("%s %s: %s (%s)", indicator, label, FormatPrice(q.Price), FormatPercent(q.ChangePct))
	if q.MarketCap != nil && q.MarketCap.IsPositive() {
		line += " | MCap $" + FormatMarketCap(*q.MarketCap)
	}
	return line
}

// FormatPrice renders "$1,234.57" for amounts of at least one unit and
// "$0.1235" (four decimals) below that.
func FormatPrice(p decimal.Decimal) string {
	if p.Abs().LessThan(decimal.NewFromInt(1)) {
		return "$" + p.StringFixed(4)
	}
	return "$" + groupFixed(p, 2)
}

// FormatPercent renders a change with an explicit sign and two decimals.
func FormatPercent(p decimal.Decimal) string {
	s := p.StringFixed(2)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s + "%"
}

// FormatMarketCap scales at 10^6 (M), 10^9 (B) and 10^12 (T); smaller
// values are grouped without decimals.
func FormatMarketCap(mc decimal.Decimal) string {
	switch {
	case mc.GreaterThanOrEqual(trillion):
		return mc.Div(trillion).StringFixed(2) + "T"
	case mc.GreaterThanOrEqual(billion):
		return mc.Div(billion).StringFixed(2) + "B"
	case mc.GreaterThanOrEqual(million):
		return mc.Div(million).StringFixed(2) + "M"
	default:
		return groupFixed(mc, 0)
	}
}

// FormatSentiment renders the fear & greed line.
func FormatSentiment(s sources.SentimentIndex) string {
	return fmt.Sprintf("%s *Fear & Greed Index:* %d (%s)", sources.Tier(s.Value).Emoji, s.Value, EscapeMarkdown(s.Classification))
}

// groupFixed renders d with places decimals and thousands separators.
func groupFixed(d decimal.Decimal, places int32) string {
	fixed := d.StringFixed(places)
	intPart, frac, hasFrac := strings.Cut(fixed, ".")
	n, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return fixed
	}
	grouped := humanize.Comma(n)
	if intPart == "-0" {
		grouped = "-0"
	}
	if hasFrac {
		return grouped + "." + frac
	}
	return grouped
}

// EscapeMarkdown escapes the characters the Markdown parse mode treats as
// markup, so arbitrary text can be embedded in a rich message.
func EscapeMarkdown(s string) string {
	return mdEscaper.Replace(s)
}
