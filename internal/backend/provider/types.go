package provider

import (
	"context"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is what the backend asks of an upstream model.
type ChatRequest struct {
	Model     string
	Messages  []ChatMessage
	MaxTokens int
}

// Provider streams the answer of an upstream model, one text delta per call of fn.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest, fn func(string) error) error
}

// ModelLister is implemented by providers that can say which models they serve.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// APIError is a non-200 answer of an upstream API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("received non-200 response: %d, error: %s", e.StatusCode, e.Message)
}
