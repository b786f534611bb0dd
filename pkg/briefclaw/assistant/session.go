package assistant

import (
	"sync"

	"github.com/jholhewres/briefclaw/pkg/briefclaw/llm"
)

// Turn is one message in the conversation buffer.
type Turn struct {
	Role    string
	Content string
}

// Checkpoint marks the buffer state before an Append.
type Checkpoint struct {
	turns []Turn
	gen   uint64
}

// Session is the in-memory conversation buffer. It keeps at most max turns,
// dropping the oldest first, and lives until Clear or process exit.
type Session struct {
	mu    sync.Mutex
	max   int
	turns []Turn
	gen   uint64
}

// NewSession creates an empty Session holding at most max turns.
func NewSession(max int) *Session {
	if max < 2 {
		max = 2
	}
	return &Session{max: max}
}

// Append adds turns to the end of the buffer, evicting the oldest turns
// past the cap. The returned Checkpoint restores the previous state.
func (s *Session) Append(turns ...Turn) Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := Checkpoint{turns: append([]Turn(nil), s.turns...), gen: s.gen}
	s.turns = append(s.turns, turns...)
	if over := len(s.turns) - s.max; over > 0 {
		s.turns = append([]Turn(nil), s.turns[over:]...)
	}
	s.gen++
	return cp
}

// Rollback restores the state captured by cp, including any turn the
// Append evicted. It does nothing and returns false when the buffer was
// changed again after that Append.
func (s *Session) Rollback(cp Checkpoint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != cp.gen+1 {
		return false
	}
	s.turns = cp.turns
	s.gen++
	return true
}

// Snapshot returns a copy of the buffer, oldest first.
func (s *Session) Snapshot() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// Clear empties the buffer.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.gen++
}

// Len returns the number of turns held.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// Max returns the buffer cap.
func (s *Session) Max() int { return s.max }

// Messages converts the buffer to LLM messages behind an optional system prompt.
func (s *Session) Messages(system string) []llm.Message {
	turns := s.Snapshot()
	msgs := make([]llm.Message, 0, len(turns)+1)
	if system != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
