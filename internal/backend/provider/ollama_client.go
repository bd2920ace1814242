package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bz888/sagan/internal/logger"
)

// OllamaClient represents a client for the Ollama API
type OllamaClient struct {
	Client
	log *logger.Logger
}

// NewOllamaClient creates a new Ollama API client
func NewOllamaClient(baseURL string) (*OllamaClient, error) {
	client, err := NewClient(ClientConfig{
		BaseURL:    baseURL,
		ModelsPath: "/api/tags",
		ChatPath:   "/api/chat",
	})
	if err != nil {
		return nil, err
	}
	return &OllamaClient{
		Client: *client,
		log:    logger.NewLogger("ollama stream chat"),
	}, nil
}

type OllamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []OllamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *OllamaOptions  `json:"options,omitempty"`
}

type OllamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type OllamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type OllamaAPIResponse struct {
	Message OllamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

type ModelsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel is one entry of /api/tags. Only the name is listed.
type OllamaModel struct {
	Name string `json:"name"`
}

// Models lists the locally installed models.
func (c *OllamaClient) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GetModelsURL(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var response ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}

	names := make([]string, len(response.Models))
	for i, model := range response.Models {
		names[i] = model.Name
	}
	return names, nil
}

func (c *OllamaClient) Chat(ctx context.Context, req *ChatRequest, fn func(string) error) error {
	apiReq := OllamaChatRequest{
		Model:  req.Model,
		Stream: true,
	}
	if req.MaxTokens > 0 {
		apiReq.Options = &OllamaOptions{NumPredict: req.MaxTokens}
	}
	for _, m := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, OllamaMessage{Role: m.Role, Content: m.Content})
	}
	return c.stream(ctx, &apiReq, fn)
}

func (c *OllamaClient) stream(ctx context.Context, data *OllamaChatRequest, fn func(string) error) error {
	bts, err := json.Marshal(data)
	if err != nil {
		return err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.GetChatURL(), bytes.NewReader(bts))
	if err != nil {
		c.log.Error("Failed to request on ollama chat:", err)
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/x-ndjson")
	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return decodeAPIError(response)
	}

	scanner := bufio.NewScanner(response.Body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var apiResp OllamaAPIResponse
		if err := json.Unmarshal(line, &apiResp); err != nil {
			c.log.Error("Failed to unmarshal response:", err)
			c.log.Error("Raw response data:", string(line))
			return err
		}
		if apiResp.Error != "" {
			return &APIError{StatusCode: http.StatusOK, Message: apiResp.Error}
		}
		if apiResp.Message.Content != "" {
			if err := fn(apiResp.Message.Content); err != nil {
				return err
			}
		}
		if apiResp.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}
