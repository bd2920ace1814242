package chat

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type Status int

const (
	StatusReady Status = iota
	StatusSubmitted
	StatusStreaming
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusSubmitted:
		return "submitted"
	case StatusStreaming:
		return "streaming"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

var (
	ErrBusy         = errors.New("a request is already in flight")
	ErrEmptyMessage = errors.New("message is empty")
)

// Session is the state of one conversation in the shell. A new thread is a new Session.
type Session struct {
	mu sync.Mutex

	id           string
	model        string
	deepResearch bool
	browsing     bool
	status       Status
	lastErr      error
	messages     []Message
}

func NewSession(model string) *Session {
	if model == "" {
		model = DefaultModel
	}
	return &Session{
		id:    uuid.NewString(),
		model: model,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

func (s *Session) DeepResearch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deepResearch
}

func (s *Session) SetDeepResearch(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deepResearch = on
}

func (s *Session) Browsing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browsing
}

func (s *Session) SetBrowsing(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.browsing = on
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// LastError is the failure of the latest turn, nil unless the status is StatusError.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmit()
}

func (s *Session) canSubmit() bool {
	return s.status == StatusReady || s.status == StatusError
}

// Submit appends the user message and returns the request for this turn.
func (s *Session) Submit(text string) (ChatRequest, error) {
	if strings.TrimSpace(text) == "" {
		return ChatRequest{}, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canSubmit() {
		return ChatRequest{}, ErrBusy
	}

	s.messages = append(s.messages, Message{
		ID:    uuid.NewString(),
		Role:  RoleUser,
		Parts: []Part{TextPart(text)},
	})
	s.status = StatusSubmitted
	s.lastErr = nil

	return ChatRequest{
		ID:             s.id,
		Model:          s.model,
		IsDeepResearch: s.deepResearch,
		IsBrowsing:     s.browsing,
		Messages:       s.snapshot(),
	}, nil
}

// AppendChunk extends the assistant answer of the current turn, opening it on the first chunk.
func (s *Session) AppendChunk(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusSubmitted {
		s.messages = append(s.messages, Message{
			ID:    uuid.NewString(),
			Role:  RoleAssistant,
			Parts: []Part{TextPart("")},
		})
		s.status = StatusStreaming
	}
	if s.status != StatusStreaming {
		return
	}

	last := &s.messages[len(s.messages)-1]
	tail := &last.Parts[len(last.Parts)-1]
	tail.Text += text
}

// Finish closes the current turn. A failed turn leaves the conversation as it is.
func (s *Session) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.status = StatusError
		s.lastErr = err
		return
	}
	s.status = StatusReady
	s.lastErr = nil
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() []Message {
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.clone()
	}
	return out
}
