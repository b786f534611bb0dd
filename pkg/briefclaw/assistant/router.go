// Package assistant implements the inbound command surface: slash commands
// that trigger briefings, analyses and housekeeping, plus free-text chat
// with the LLM over a bounded conversation buffer.
//
// Commands:
//
//	/start   - Greeting (or "no permission" for unknown senders)
//	/news    - Run the full briefing now and send it to this chat
//	/ai      - LLM analysis of freshly fetched headlines
//	/clear   - Clear the conversation buffer
//	/status  - Buffer size, next scheduled run and last run outcome
//	/help    - Show available commands
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/briefing"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/sources"
)

// Router states.
const (
	StateIdle          = "idle"
	StateAwaitingFetch = "awaiting-fetch"
)

// Briefer runs briefings and analyses on demand.
type Briefer interface {
	RunFor(ctx context.Context, out briefing.Deliverer) error
	Analyze(ctx context.Context) (string, error)
	LastRun() *briefing.RunStatus
}

// Replier sends text to a chat.
type Replier interface {
	SendText(ctx context.Context, to, text string) error
}

// Typer shows a typing indicator. Optional.
type Typer interface {
	SendTyping(ctx context.Context, to string) error
}

// RouterConfig wires a Router.
type RouterConfig struct {
	// Name is the bot name used in greetings.
	Name string

	// AuthorizedUserID restricts the bot to one sender. Empty allows everyone.
	AuthorizedUserID string

	Briefer Briefer
	Chatter *Chatter
	Session *Session
	Replier Replier
	Typer   Typer

	// NextRun reports the next scheduled briefing, for /status.
	NextRun func() (time.Time, bool)

	Logger *slog.Logger
}

// Router dispatches inbound messages. Handle calls are expected to be
// serialized; Run does that for a message stream.
type Router struct {
	cfg    RouterConfig
	busy   atomic.Bool
	logger *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "BriefClaw"
	}
	return &Router{cfg: cfg, logger: cfg.Logger.With("component", "router")}
}

// Run handles messages one at a time until ctx is done or msgs is closed.
func (r *Router) Run(ctx context.Context, msgs <-chan *channels.IncomingMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := r.Handle(ctx, msg); err != nil {
				r.logger.Error("handle message failed", "from", msg.From, "error", err)
			}
		}
	}
}

// State returns StateAwaitingFetch while /news or /ai is running.
func (r *Router) State() string {
	if r.busy.Load() {
		return StateAwaitingFetch
	}
	return StateIdle
}

// Handle processes one inbound message. The returned error reports a
// failed reply; user-facing failures are answered in the chat.
func (r *Router) Handle(ctx context.Context, msg *channels.IncomingMessage) error {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return nil
	}
	cmd, _ := ParseCommand(content)

	if !r.authorized(msg.From) {
		if cmd == "/start" {
			return r.reply(ctx, msg, "⛔ Sorry, you don't have permission to use this bot.")
		}
		r.logger.Debug("ignoring unauthorized sender", "from", msg.From)
		return nil
	}

	if cmd == "" {
		return r.chat(ctx, msg, content)
	}

	r.logger.Info("command received", "command", cmd, "from", msg.From)
	switch cmd {
	case "/start":
		return r.reply(ctx, msg, fmt.Sprintf("👋 Hi %s! I'm %s.\n\n%s", displayName(msg), r.cfg.Name, helpText()))
	case "/help":
		return r.reply(ctx, msg, helpText())
	case "/news":
		return r.news(ctx, msg)
	case "/ai":
		return r.analyze(ctx, msg)
	case "/clear":
		r.cfg.Session.Clear()
		return r.reply(ctx, msg, "🧹 Conversation history cleared.")
	case "/status":
		return r.reply(ctx, msg, r.status())
	default:
		return r.reply(ctx, msg, fmt.Sprintf("Unknown command %s. Send /help for the list of commands.", cmd))
	}
}

// ParseCommand splits "/cmd@bot args" into a lowercased "/cmd" and its
// arguments. Non-command text yields an empty command.
func ParseCommand(content string) (cmd string, args []string) {
	parts := strings.Fields(content)
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "/") {
		return "", nil
	}
	cmd, _, _ = strings.Cut(strings.ToLower(parts[0]), "@")
	return cmd, parts[1:]
}

func (r *Router) authorized(from string) bool {
	return r.cfg.AuthorizedUserID == "" || from == r.cfg.AuthorizedUserID
}

func (r *Router) news(ctx context.Context, msg *channels.IncomingMessage) error {
	r.busy.Store(true)
	defer r.busy.Store(false)

	if err := r.reply(ctx, msg, "⏳ Fetching the latest briefing..."); err != nil {
		return err
	}
	err := r.cfg.Briefer.RunFor(ctx, chatDeliverer{replier: r.cfg.Replier, to: msg.ChatID})
	switch {
	case err == nil, errors.Is(err, briefing.ErrNoData):
		return nil
	case errors.Is(err, briefing.ErrRunInProgress):
		return r.reply(ctx, msg, "⏳ A briefing is already being prepared. Please try again in a moment.")
	default:
		return fmt.Errorf("briefing for %s: %w", msg.ChatID, err)
	}
}

func (r *Router) analyze(ctx context.Context, msg *channels.IncomingMessage) error {
	r.busy.Store(true)
	defer r.busy.Store(false)

	if err := r.reply(ctx, msg, "🤖 Analyzing today's headlines..."); err != nil {
		return err
	}
	r.typing(ctx, msg)
	text, err := r.cfg.Briefer.Analyze(ctx)
	if err != nil {
		r.logger.Warn("analysis failed", "error", err)
		text = sources.UnavailableTag("AI analysis", err)
	}
	return r.reply(ctx, msg, "🧠 *AI Analysis*\n\n"+text)
}

func (r *Router) chat(ctx context.Context, msg *channels.IncomingMessage, text string) error {
	r.typing(ctx, msg)
	reply, _ := r.cfg.Chatter.Reply(ctx, r.cfg.Session, text)
	return r.reply(ctx, msg, reply)
}

func (r *Router) status() string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *%s status*\n", briefing.EscapeMarkdown(r.cfg.Name))
	fmt.Fprintf(&b, "History: %d/%d turns\n", r.cfg.Session.Len(), r.cfg.Session.Max())

	if r.cfg.NextRun != nil {
		if next, ok := r.cfg.NextRun(); ok {
			fmt.Fprintf(&b, "Next briefing: %s (%s)\n", next.Format("2006-01-02 15:04 MST"), humanize.Time(next))
		}
	}

	if last := r.cfg.Briefer.LastRun(); last != nil {
		fmt.Fprintf(&b, "Last run: %s, %s", briefing.EscapeMarkdown(last.Outcome), humanize.Time(last.Started))
		if last.Err != nil {
			fmt.Fprintf(&b, " (%s)", briefing.EscapeMarkdown(last.Err.Error()))
		}
	} else {
		b.WriteString("Last run: none yet")
	}
	return b.String()
}

func (r *Router) reply(ctx context.Context, msg *channels.IncomingMessage, text string) error {
	return r.cfg.Replier.SendText(ctx, msg.ChatID, text)
}

func (r *Router) typing(ctx context.Context, msg *channels.IncomingMessage) {
	if r.cfg.Typer == nil {
		return
	}
	if err := r.cfg.Typer.SendTyping(ctx, msg.ChatID); err != nil {
		r.logger.Debug("typing indicator failed", "error", err)
	}
}

func displayName(msg *channels.IncomingMessage) string {
	if msg.FromName != "" {
		return msg.FromName
	}
	return "there"
}

func helpText() string {
	return `Available commands:
/news - Get the full briefing now
/ai - AI analysis of today's headlines
/clear - Clear conversation history
/status - Show bot status
/help - Show this message

Any other message is sent to the AI assistant.`
}

// chatDeliverer routes a pipeline document to the chat that asked for it.
type chatDeliverer struct {
	replier Replier
	to      string
}

func (d chatDeliverer) Deliver(ctx context.Context, text string) error {
	return d.replier.SendText(ctx, d.to, text)
}
