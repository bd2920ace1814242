package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bz888/sagan/internal/chat"
	"github.com/bz888/sagan/internal/logger"
)

// StatusError is a non-200 answer of the proxy, body included verbatim.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("chat request failed: %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("chat request failed: %d %s", e.Code, body)
}

// Client talks to the chat proxy.
type Client struct {
	base *url.URL
	http *http.Client
	log  *logger.Logger
}

func NewClient(baseURL string) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q: scheme and host are required", baseURL)
	}
	return &Client{
		base: base,
		http: &http.Client{},
		log:  logger.NewLogger("api client"),
	}, nil
}

func (c *Client) endpoint(path string) string {
	return c.base.ResolveReference(&url.URL{Path: path}).String()
}

// Stream sends one chat turn and hands every piece of the answer to onChunk as it arrives.
func (c *Client) Stream(ctx context.Context, req chat.ChatRequest, onChunk func(string)) error {
	requestData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("serialize request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/chat"), bytes.NewReader(requestData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	c.log.Info("Input model:", req.Model, "deep research:", req.IsDeepResearch, "browsing:", req.IsBrowsing)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Error("Failed to close response body:", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	dec := newUTF8Chunker()
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if text := dec.feed(buf[:n]); text != "" {
				onChunk(text)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if rest := dec.flush(); rest != "" {
					onChunk(rest)
				}
				return nil
			}
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}

// Status asks the proxy whether it is up.
func (c *Client) Status(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/status"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("proxy not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return nil
}
