package provider

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Client holds what every upstream client needs: where to go and how.
type Client struct {
	base      *url.URL
	http      *http.Client
	modelsUrl *url.URL
	chatUrl   *url.URL
}

// ClientConfig holds the configuration for the client
type ClientConfig struct {
	BaseURL    string
	ModelsPath string
	ChatPath   string
}

// NewClient creates a new API client with configurable base URL and endpoints
func NewClient(config ClientConfig) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimRight(config.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", config.BaseURL, err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", config.BaseURL)
	}
	return &Client{
		base:      baseURL,
		http:      &http.Client{},
		modelsUrl: baseURL.ResolveReference(&url.URL{Path: strings.TrimLeft(config.ModelsPath, "/")}),
		chatUrl:   baseURL.ResolveReference(&url.URL{Path: strings.TrimLeft(config.ChatPath, "/")}),
	}, nil
}

func (c *Client) GetModelsURL() string {
	return c.modelsUrl.String()
}

func (c *Client) GetChatURL() string {
	return c.chatUrl.String()
}
