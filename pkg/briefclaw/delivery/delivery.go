// Package delivery sends rendered documents to the configured destination.
// Documents are chunked to the platform limit and paced; when a rich send
// fails, the unsent remainder is stripped of markup and resent once as
// plain text.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/briefing"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/metrics"
	"golang.org/x/time/rate"
)

var (
	// ErrDeliveryFailed is returned when both the rich send and the plain
	// retry failed. It wraps both causes.
	ErrDeliveryFailed = errors.New("delivery: rich and plain sends both failed")

	// ErrEmptyMessage is returned for blank documents; nothing is sent.
	ErrEmptyMessage = errors.New("delivery: empty message")
)

// Delivery modes reported to metrics.
const (
	ModeRich   = "rich"
	ModePlain  = "plain"
	ModeFailed = "failed"
)

// Sender is the subset of a channel the client needs.
type Sender interface {
	Send(ctx context.Context, to string, msg *channels.OutgoingMessage) error
}

// Config configures a Client.
type Config struct {
	// Destination is the default chat ID for Deliver.
	Destination string

	// Limit is the per-message byte limit. Zero disables chunking.
	Limit int

	// SendDelay is the minimum spacing between consecutive sends.
	SendDelay time.Duration
}

// Client delivers documents through a Sender.
type Client struct {
	sender  Sender
	cfg     Config
	limiter *rate.Limiter
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// New creates a Client.
func New(sender Sender, cfg Config, rec *metrics.Recorder, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if cfg.SendDelay > 0 {
		limit = rate.Every(cfg.SendDelay)
	}
	return &Client{
		sender:  sender,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		metrics: rec,
		logger:  logger.With("component", "delivery"),
	}
}

// Deliver sends text to the configured destination.
func (c *Client) Deliver(ctx context.Context, text string) error {
	return c.SendText(ctx, c.cfg.Destination, text)
}

// SendText sends text to one chat. Chunks go out in document order with
// rich formatting and link previews disabled. On the first failed chunk the
// unsent remainder is stripped of markup, re-chunked and sent once as plain
// text; if that also fails the error wraps ErrDeliveryFailed and both causes.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	chunks := briefing.SplitMessage(text, c.cfg.Limit)
	sent, richErr := c.sendChunks(ctx, to, chunks, false)
	if richErr == nil {
		c.metrics.RecordDelivery(ModeRich)
		c.logger.Debug("delivered", "to", to, "chunks", len(chunks), "mode", ModeRich)
		return nil
	}
	if ctx.Err() != nil {
		c.metrics.RecordDelivery(ModeFailed)
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, richErr)
	}

	c.logger.Warn("rich send failed, retrying as plain text",
		"to", to, "chunk", sent+1, "of", len(chunks), "error", richErr)

	remainder := briefing.StripMarkup(strings.Join(chunks[sent:], ""))
	plain := briefing.SplitMessage(remainder, c.cfg.Limit)
	if _, plainErr := c.sendChunks(ctx, to, plain, true); plainErr != nil {
		c.metrics.RecordDelivery(ModeFailed)
		c.logger.Error("delivery failed", "to", to, "rich_error", richErr, "plain_error", plainErr)
		return fmt.Errorf("%w: rich: %w; plain: %w", ErrDeliveryFailed, richErr, plainErr)
	}

	c.metrics.RecordDelivery(ModePlain)
	c.logger.Info("delivered", "to", to, "chunks", sent+len(plain), "mode", ModePlain)
	return nil
}

// sendChunks sends chunks in order, stopping at the first failure. It
// returns how many chunks were sent.
func (c *Client) sendChunks(ctx context.Context, to string, chunks []string, plain bool) (int, error) {
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return i, err
		}
		msg := &channels.OutgoingMessage{Content: chunk, Plain: plain, DisablePreview: true}
		if err := c.sender.Send(ctx, to, msg); err != nil {
			return i, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return len(chunks), nil
}
