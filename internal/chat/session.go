package chat

import (
	"sync"
)

// DefaultWindow is the number of messages kept in a session.
const DefaultWindow = 20

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the conversation history of one project. The agent loop and
// the command handlers share it, so every access goes through the mutex.
type Session struct {
	ID          string
	ProjectRoot string

	history []Message
	window  int
	mu      sync.RWMutex
}

// NewSession creates an empty session for the project at root.
func NewSession(root string, window int) *Session {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Session{
		ID:          SessionID(root),
		ProjectRoot: root,
		window:      window,
	}
}

// AddMessage appends a message and drops the oldest ones beyond the window.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Message{Role: role, Content: content})
	s.trimLocked()
}

func (s *Session) trimLocked() {
	if over := len(s.history) - s.window; over > 0 {
		s.history = append([]Message(nil), s.history[over:]...)
	}
}

// Messages returns a copy of the last n messages, or all of them when n <= 0.
func (s *Session) Messages(n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if n > 0 && len(s.history) > n {
		start = len(s.history) - n
	}
	out := make([]Message, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// LastAssistant returns the most recent assistant message.
func (s *Session) LastAssistant() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].Role == RoleAssistant {
			return s.history[i].Content, true
		}
	}
	return "", false
}

// Contents returns the content of every message, oldest first.
func (s *Session) Contents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.history))
	for i, m := range s.history {
		out[i] = m.Content
	}
	return out
}

// Reset clears the history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Window returns the history cap.
func (s *Session) Window() int {
	return s.window
}
