package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/channels"
)

func newTestBot(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := DefaultConfig()
	cfg.Token = "TEST"
	cfg.BaseURL = srv.URL
	return New(cfg, nil)
}

func TestSendRichMessage(t *testing.T) {
	var got map[string]any
	var path string
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	err := bot.Send(context.Background(), "42", &channels.OutgoingMessage{
		Content:        "*hello*",
		DisablePreview: true,
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if path != "/botTEST/sendMessage" {
		t.Errorf("path = %q", path)
	}
	if got["chat_id"].(float64) != 42 {
		t.Errorf("chat_id = %v", got["chat_id"])
	}
	if got["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %v, want Markdown", got["parse_mode"])
	}
	if got["disable_web_page_preview"] != true {
		t.Errorf("disable_web_page_preview = %v", got["disable_web_page_preview"])
	}
}

func TestSendPlainMessageOmitsParseMode(t *testing.T) {
	var got map[string]any
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	if err := bot.Send(context.Background(), "42", &channels.OutgoingMessage{Content: "hi", Plain: true}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, ok := got["parse_mode"]; ok {
		t.Errorf("plain message should not carry parse_mode, got %v", got["parse_mode"])
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantMessage string
	}{
		{
			name:        "formatting error",
			status:      http.StatusBadRequest,
			body:        `{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: Can't find end of the entity starting at byte offset 10"}`,
			wantErr:     channels.ErrFormatting,
			wantMessage: "can't parse entities",
		},
		{
			name:        "chat not found",
			status:      http.StatusBadRequest,
			body:        `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`,
			wantErr:     channels.ErrSendFailed,
			wantMessage: "chat not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			err := bot.Send(context.Background(), "1", &channels.OutgoingMessage{Content: "x"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantMessage) {
				t.Errorf("error %q should mention %q", err, tt.wantMessage)
			}
		})
	}
}

func TestSendInvalidChatID(t *testing.T) {
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if err := bot.Send(context.Background(), "not-a-number", &channels.OutgoingMessage{Content: "x"}); err == nil {
		t.Fatal("expected error for invalid chat ID")
	}
}

func TestConnectRequiresToken(t *testing.T) {
	bot := New(DefaultConfig(), nil)
	if err := bot.Connect(context.Background()); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestProcessUpdate(t *testing.T) {
	bot := New(Config{Token: "x"}, nil)

	bot.processUpdate(tgUpdate{UpdateID: 1, Message: &tgMessage{
		MessageID: 7,
		From:      &tgUser{ID: 99, FirstName: "Ada", LastName: "L"},
		Chat:      tgChat{ID: 123, Type: "private"},
		Date:      1700000000,
		Text:      "/news",
	}})
	// Non-text updates are ignored.
	bot.processUpdate(tgUpdate{UpdateID: 2, Message: &tgMessage{MessageID: 8, Chat: tgChat{ID: 123}}})

	select {
	case msg := <-bot.Receive():
		if msg.From != "99" || msg.ChatID != "123" || msg.Content != "/news" || msg.FromName != "Ada L" {
			t.Errorf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("expected one incoming message")
	}
	select {
	case msg := <-bot.Receive():
		t.Fatalf("unexpected second message: %+v", msg)
	default:
	}
}

func TestProcessUpdateIgnoresEdits(t *testing.T) {
	bot := New(Config{Token: "x"}, nil)

	var u tgUpdate
	raw := `{"update_id":5,"edited_message":{"message_id":7,"from":{"id":99},"chat":{"id":123},"date":1700000000,"text":"/news"}}`
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		t.Fatal(err)
	}
	bot.processUpdate(u)

	select {
	case msg := <-bot.Receive():
		t.Fatalf("edited message was dispatched: %+v", msg)
	default:
	}
}

func TestGetUpdatesRequestsNewMessagesOnly(t *testing.T) {
	var got map[string]any
	bot := newTestBot(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true,"result":[]}`))
	})

	if _, err := bot.getUpdates(context.Background(), 0, 10, 0); err != nil {
		t.Fatalf("getUpdates() error = %v", err)
	}
	allowed, _ := got["allowed_updates"].([]any)
	if len(allowed) != 1 || allowed[0] != "message" {
		t.Errorf("allowed_updates = %v, want [message]", got["allowed_updates"])
	}
}

func TestIsFormattingError(t *testing.T) {
	tests := []struct {
		desc string
		want bool
	}{
		{"Bad Request: can't parse entities: unsupported start tag", true},
		{"Bad Request: Can't find end of the entity starting at byte offset 3", true},
		{"Forbidden: bot was blocked by the user", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isFormattingError(tt.desc); got != tt.want {
			t.Errorf("isFormattingError(%q) = %v, want %v", tt.desc, got, tt.want)
		}
	}
}
