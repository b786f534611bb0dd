package assistant

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/metrics"
	"github.com/jholhewres/briefclaw/pkg/briefclaw/sources"
)

var errEmptyReply = errors.New("empty reply")

// Chatter runs conversational turns against the LLM.
type Chatter struct {
	llm          llm.Completer
	systemPrompt string
	metrics      *metrics.Recorder
	logger       *slog.Logger
}

// NewChatter creates a Chatter.
func NewChatter(completer llm.Completer, systemPrompt string, rec *metrics.Recorder, logger *slog.Logger) *Chatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chatter{
		llm:          completer,
		systemPrompt: systemPrompt,
		metrics:      rec,
		logger:       logger.With("component", "chat"),
	}
}

// Reply appends text as a user turn, asks the LLM and appends the answer.
// On failure the user turn is rolled back, leaving the session as it was,
// and the returned string is a tagged "[AI reply unavailable: ...]" line
// suitable for sending to the user.
func (c *Chatter) Reply(ctx context.Context, s *Session, text string) (string, error) {
	cp := s.Append(Turn{Role: llm.RoleUser, Content: text})

	reply, err := c.llm.Complete(ctx, s.Messages(c.systemPrompt))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errEmptyReply
	}
	if err != nil {
		s.Rollback(cp)
		c.metrics.RecordChatTurn("failed")
		c.logger.Warn("chat turn failed", "error", err, "history", s.Len())
		return sources.UnavailableTag("AI reply", err), err
	}

	reply = strings.TrimSpace(reply)
	s.Append(Turn{Role: llm.RoleAssistant, Content: reply})
	c.metrics.RecordChatTurn("ok")
	return reply, nil
}
