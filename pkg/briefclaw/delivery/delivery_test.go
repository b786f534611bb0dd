package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels"
)

type sent struct {
	to  string
	msg channels.OutgoingMessage
	at  time.Time
}

// fakeSender records every send; fail decides per call whether it errors.
type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	fail func(n int, msg *channels.OutgoingMessage) error
}

func (f *fakeSender) Send(_ context.Context, to string, msg *channels.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.sent)
	if f.fail != nil {
		if err := f.fail(n, msg); err != nil {
			return err
		}
	}
	f.sent = append(f.sent, sent{to: to, msg: *msg, at: time.Now()})
	return nil
}

func failRich(err error) func(int, *channels.OutgoingMessage) error {
	return func(_ int, msg *channels.OutgoingMessage) error {
		if !msg.Plain {
			return err
		}
		return nil
	}
}

func lines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%02d. *item* [link](https://example.com/%d)\n", i, i)
	}
	return b.String()
}

func TestDeliverSingleChunk(t *testing.T) {
	s := &fakeSender{}
	c := New(s, Config{Destination: "42", Limit: 4096}, nil, nil)

	if err := c.Deliver(context.Background(), "☀️ *Briefing*\nhello"); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(s.sent))
	}
	got := s.sent[0]
	if got.to != "42" || got.msg.Plain || !got.msg.DisablePreview {
		t.Errorf("send = %+v", got)
	}
	if got.msg.Content != "☀️ *Briefing*\nhello" {
		t.Errorf("content = %q", got.msg.Content)
	}
}

func TestDeliverChunksInOrder(t *testing.T) {
	s := &fakeSender{}
	c := New(s, Config{Destination: "42", Limit: 200}, nil, nil)
	doc := lines(30)

	if err := c.Deliver(context.Background(), doc); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(s.sent) < 2 {
		t.Fatalf("sends = %d, want several", len(s.sent))
	}
	var joined strings.Builder
	for i, m := range s.sent {
		if len(m.msg.Content) > 200 {
			t.Errorf("chunk %d exceeds limit: %d bytes", i, len(m.msg.Content))
		}
		joined.WriteString(m.msg.Content)
	}
	if joined.String() != doc {
		t.Error("chunks were not delivered in document order")
	}
}

func TestDeliverFallsBackToPlain(t *testing.T) {
	s := &fakeSender{fail: failRich(channels.ErrFormatting)}
	c := New(s, Config{Destination: "42", Limit: 4096}, nil, nil)

	err := c.Deliver(context.Background(), "☀️ *Briefing*\n1. [Story](https://example.com/s)")
	if err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(s.sent))
	}
	m := s.sent[0].msg
	if !m.Plain {
		t.Error("retry should be plain")
	}
	if want := "☀️ Briefing\n1. Story (https://example.com/s)"; m.Content != want {
		t.Errorf("plain content = %q, want %q", m.Content, want)
	}
}

func TestDeliverPlainResendsOnlyRemainder(t *testing.T) {
	s := &fakeSender{fail: func(n int, msg *channels.OutgoingMessage) error {
		if n == 1 && !msg.Plain {
			return channels.ErrSendFailed
		}
		return nil
	}}
	c := New(s, Config{Destination: "42", Limit: 200}, nil, nil)
	doc := lines(30)

	if err := c.Deliver(context.Background(), doc); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if s.sent[0].msg.Plain {
		t.Error("first chunk should have gone out rich")
	}
	for i, m := range s.sent[1:] {
		if !m.msg.Plain {
			t.Errorf("send %d after the failure should be plain", i+1)
		}
		if strings.Contains(m.msg.Content, "*") || strings.Contains(m.msg.Content, "](") {
			t.Errorf("plain send %d still has markup: %q", i+1, m.msg.Content)
		}
	}
	if strings.Contains(s.sent[1].msg.Content, "00. ") {
		t.Error("already delivered lines were resent")
	}
}

func TestDeliverBothFail(t *testing.T) {
	richErr := channels.ErrFormatting
	plainErr := errors.New("chat not found")
	s := &fakeSender{fail: func(_ int, msg *channels.OutgoingMessage) error {
		if msg.Plain {
			return plainErr
		}
		return richErr
	}}
	c := New(s, Config{Destination: "42", Limit: 4096}, nil, nil)

	err := c.Deliver(context.Background(), "*hello*")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("error = %v, want ErrDeliveryFailed", err)
	}
	if !errors.Is(err, richErr) || !errors.Is(err, plainErr) {
		t.Errorf("error should wrap both causes: %v", err)
	}
	if len(s.sent) != 0 {
		t.Errorf("sends = %d", len(s.sent))
	}
}

func TestDeliverEmpty(t *testing.T) {
	s := &fakeSender{}
	c := New(s, Config{Destination: "42"}, nil, nil)
	for _, text := range []string{"", "  \n "} {
		if err := c.Deliver(context.Background(), text); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Deliver(%q) error = %v", text, err)
		}
	}
	if len(s.sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestSendTextPacing(t *testing.T) {
	s := &fakeSender{}
	c := New(s, Config{Limit: 200, SendDelay: 40 * time.Millisecond}, nil, nil)

	if err := c.SendText(context.Background(), "7", lines(20)); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if len(s.sent) < 3 {
		t.Fatalf("sends = %d, want at least 3", len(s.sent))
	}
	for i := 1; i < len(s.sent); i++ {
		if gap := s.sent[i].at.Sub(s.sent[i-1].at); gap < 30*time.Millisecond {
			t.Errorf("gap between send %d and %d = %v", i-1, i, gap)
		}
		if s.sent[i].to != "7" {
			t.Errorf("send %d went to %q", i, s.sent[i].to)
		}
	}
}

func TestSendTextCanceled(t *testing.T) {
	s := &fakeSender{}
	c := New(s, Config{Limit: 100, SendDelay: time.Hour}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.SendText(ctx, "7", lines(10))
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("error = %v, want ErrDeliveryFailed", err)
	}
	if len(s.sent) != 1 {
		t.Errorf("sends = %d, want only the first chunk", len(s.sent))
	}
}
