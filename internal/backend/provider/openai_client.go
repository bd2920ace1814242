package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/bz888/sagan/internal/logger"
)

// OpenAIClient speaks the OpenAI chat completions protocol. Groq and the
// Hugging Face router both serve it.
type OpenAIClient struct {
	Client
	name      string
	apiKeyEnv string
	log       *logger.Logger
}

type OpenAIConfig struct {
	Name    string
	BaseURL string
	// APIKeyEnv names the environment variable holding the bearer key.
	APIKeyEnv string
}

func NewOpenAIClient(config OpenAIConfig) (*OpenAIClient, error) {
	client, err := NewClient(ClientConfig{
		BaseURL:    config.BaseURL,
		ModelsPath: "/models",
		ChatPath:   "/chat/completions",
	})
	if err != nil {
		return nil, err
	}
	return &OpenAIClient{
		Client:    *client,
		name:      config.Name,
		apiKeyEnv: config.APIKeyEnv,
		log:       logger.NewLogger(config.Name + " stream chat"),
	}, nil
}

type OpenAIChatRequest struct {
	Model     string              `json:"model"`
	Messages  []OpenAIChatMessage `json:"messages"`
	Stream    bool                `json:"stream"` // Always true for streaming
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

type OpenAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OpenAIChatResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []OpenAIChatChoice `json:"choices"`
	Usage   *OpenAIUsage       `json:"usage,omitempty"` // Usage field, pointer to handle null
}

type OpenAIChatChoice struct {
	Delta        OpenAIChatDelta `json:"delta"`
	FinishReason *string         `json:"finish_reason,omitempty"` // Pointer to handle null
	Index        int             `json:"index"`
}

type OpenAIChatDelta struct {
	Content *string `json:"content,omitempty"` // Pointer to handle null
	Role    *string `json:"role,omitempty"`    // Pointer to handle null
}

type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type OpenAIModelsResponse struct {
	Object string        `json:"object"`
	Data   []OpenAIModel `json:"data"`
}

type OpenAIModel struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (c *OpenAIClient) apiKey() string {
	if c.apiKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.apiKeyEnv)
}

func (c *OpenAIClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if key := c.apiKey(); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}

// Models fetches the model ids the API serves
func (c *OpenAIClient) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GetModelsURL(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var response OpenAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(response.Data))
	for _, model := range response.Data {
		if model.ID != "" {
			ids = append(ids, model.ID)
		}
	}
	return ids, nil
}

// Chat makes a streaming chat request and calls fn with every content delta
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest, fn func(string) error) error {
	apiReq := OpenAIChatRequest{
		Model:     req.Model,
		Stream:    true,
		MaxTokens: req.MaxTokens,
	}
	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, OpenAIChatMessage{Role: m.Role, Content: m.Content})
	}
	return c.stream(ctx, &apiReq, fn)
}

func (c *OpenAIClient) stream(ctx context.Context, data *OpenAIChatRequest, fn func(string) error) error {
	bts, err := json.Marshal(data)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GetChatURL(), bytes.NewReader(bts))
	if err != nil {
		c.log.Error("Failed to build chat request:", err)
		return err
	}
	c.setHeaders(request)
	request.Header.Set("Accept", "text/event-stream")

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		apiErr := decodeAPIError(response)
		c.log.Error("Received error response:", apiErr)
		return apiErr
	}

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		content, done, err := parseSSELine(scanner.Bytes())
		if err != nil {
			c.log.Error("Failed to unmarshal response:", err)
			c.log.Error("Raw response data:", scanner.Text())
			return err
		}
		if done {
			return nil
		}
		if content == "" {
			continue
		}
		if err := fn(content); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// parseSSELine extracts the content delta of one server-sent event line.
func parseSSELine(line []byte) (content string, done bool, err error) {
	line = bytes.TrimSpace(line)
	if !bytes.HasPrefix(line, []byte("data:")) {
		// blank separators, comments and other fields carry no content
		return "", false, nil
	}

	cleanData := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
	if len(cleanData) == 0 {
		return "", false, nil
	}
	if string(cleanData) == "[DONE]" {
		return "", true, nil
	}

	var apiResp OpenAIChatResponse
	if err := json.Unmarshal(cleanData, &apiResp); err != nil {
		return "", false, err
	}

	if len(apiResp.Choices) > 0 && apiResp.Choices[0].Delta.Content != nil {
		return *apiResp.Choices[0].Delta.Content, false, nil
	}
	return "", false, nil
}

func decodeAPIError(response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 64*1024))

	errorMessage := "unknown error"
	var errResp struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		var text string
		switch {
		case json.Unmarshal(errResp.Error, &detail) == nil && detail.Message != "":
			errorMessage = detail.Message
		case json.Unmarshal(errResp.Error, &text) == nil && text != "":
			errorMessage = text
		}
	} else if msg := bytes.TrimSpace(body); len(msg) > 0 {
		errorMessage = string(msg)
	}

	return &APIError{StatusCode: response.StatusCode, Message: errorMessage}
}

// IsAPIError reports whether err came back from an upstream API rather than the network.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
