package assistant

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
)

func user(s string) Turn      { return Turn{Role: llm.RoleUser, Content: s} }
func assistant(s string) Turn { return Turn{Role: llm.RoleAssistant, Content: s} }

func TestSessionSlidingWindow(t *testing.T) {
	s := NewSession(4)
	s.Append(user("1"), assistant("1"))
	s.Append(user("2"), assistant("2"))
	s.Append(user("3"), assistant("3"))

	want := []Turn{user("2"), assistant("2"), user("3"), assistant("3")}
	if got := s.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
	if s.Len() != 4 {
		t.Errorf("Len() = %d", s.Len())
	}
}

func TestSessionRollbackRestoresEvicted(t *testing.T) {
	s := NewSession(2)
	s.Append(user("a"), assistant("a"))
	before := s.Snapshot()

	cp := s.Append(user("b"))
	if s.Len() != 2 || s.Snapshot()[0] != assistant("a") {
		t.Fatalf("append should have evicted the oldest turn: %v", s.Snapshot())
	}
	if !s.Rollback(cp) {
		t.Fatal("Rollback() = false")
	}
	if got := s.Snapshot(); !reflect.DeepEqual(got, before) {
		t.Errorf("after rollback = %v, want %v", got, before)
	}
}

func TestSessionRollbackAfterChange(t *testing.T) {
	s := NewSession(10)
	cp := s.Append(user("a"))
	s.Append(assistant("a"))
	if s.Rollback(cp) {
		t.Error("stale checkpoint should not roll back")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestSessionClear(t *testing.T) {
	s := NewSession(10)
	s.Append(user("a"), assistant("b"))
	s.Clear()
	if s.Len() != 0 || len(s.Snapshot()) != 0 {
		t.Errorf("Clear left %v", s.Snapshot())
	}
}

func TestSessionSnapshotIsCopy(t *testing.T) {
	s := NewSession(10)
	s.Append(user("a"))
	snap := s.Snapshot()
	snap[0].Content = "changed"
	if s.Snapshot()[0].Content != "a" {
		t.Error("Snapshot shares memory with the buffer")
	}
}

func TestSessionMessages(t *testing.T) {
	s := NewSession(10)
	s.Append(user("hi"), assistant("hello"))

	got := s.Messages("be brief")
	want := []llm.Message{
		{Role: llm.RoleSystem, Content: "be brief"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Messages() = %v", got)
	}
	if len(s.Messages("")) != 2 {
		t.Error("empty system prompt should be omitted")
	}
}

func TestSessionConcurrentAppend(t *testing.T) {
	s := NewSession(8)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(user("x"))
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	if s.Len() != 8 {
		t.Errorf("Len() = %d, want 8", s.Len())
	}
}

type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   [][]llm.Message
}

func (f *scriptedLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, msgs)
	var reply string
	var err error
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return reply, err
}

func TestChatterReply(t *testing.T) {
	model := &scriptedLLM{replies: []string{" Hello! "}}
	c := NewChatter(model, "system", nil, nil)
	s := NewSession(10)

	got, err := c.Reply(context.Background(), s, "hi")
	if err != nil || got != "Hello!" {
		t.Fatalf("Reply() = %q, %v", got, err)
	}
	if want := []Turn{user("hi"), assistant("Hello!")}; !reflect.DeepEqual(s.Snapshot(), want) {
		t.Errorf("session = %v", s.Snapshot())
	}
	sent := model.calls[0]
	if len(sent) != 2 || sent[0].Role != llm.RoleSystem || sent[1].Content != "hi" {
		t.Errorf("LLM got %v", sent)
	}
}

func TestChatterReplyFailureLeavesBufferUnchanged(t *testing.T) {
	tests := []struct {
		name  string
		model *scriptedLLM
	}{
		{"llm error", &scriptedLLM{errs: []error{nil, errors.New("upstream 500")}, replies: []string{"ok"}}},
		{"empty reply", &scriptedLLM{replies: []string{"ok", "   "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChatter(tt.model, "", nil, nil)
			s := NewSession(2)

			if _, err := c.Reply(context.Background(), s, "first"); err != nil {
				t.Fatalf("first Reply() error = %v", err)
			}
			beforeLen := s.Len()
			beforeLast := s.Snapshot()[beforeLen-1]

			got, err := c.Reply(context.Background(), s, "second")
			if err == nil {
				t.Fatal("expected error")
			}
			if got == "" || got[0] != '[' {
				t.Errorf("reply should be a tagged error line, got %q", got)
			}
			if s.Len() != beforeLen {
				t.Errorf("Len() = %d, want %d", s.Len(), beforeLen)
			}
			if last := s.Snapshot()[s.Len()-1]; last != beforeLast {
				t.Errorf("last turn = %v, want %v", last, beforeLast)
			}
		})
	}
}
