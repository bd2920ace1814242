package backend

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	KindOpenAI = "openai"
	KindOllama = "ollama"

	// OllamaPrefix routes "ollama:<name>" to the local model <name>.
	OllamaPrefix = "ollama:"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog maps the model ids clients send onto upstream providers and models.
type Catalog struct {
	Default   string                   `yaml:"default"`
	Models    map[string]ModelEntry    `yaml:"models"`
	Providers map[string]ProviderEntry `yaml:"providers"`
}

type ModelEntry struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// Prompt is appended to the system prompt.
	Prompt    string `yaml:"prompt"`
	MaxTokens int    `yaml:"max_tokens"`
}

type ProviderEntry struct {
	Kind      string `yaml:"kind"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Route is a resolved model id.
type Route struct {
	ID        string
	Provider  string
	Model     string
	Prompt    string
	MaxTokens int
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file. An empty path gives the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) Validate() error {
	for name, p := range c.Providers {
		switch p.Kind {
		case KindOpenAI, KindOllama:
		default:
			return fmt.Errorf("provider %q: unknown kind %q", name, p.Kind)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("provider %q: base_url is required", name)
		}
	}

	for id, m := range c.Models {
		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q: unknown provider %q", id, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("model %q: model is required", id)
		}
		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q: max_tokens must not be negative", id)
		}
	}

	if c.Default == "" {
		return fmt.Errorf("default model is required")
	}
	if _, ok := c.Models[c.Default]; !ok {
		return fmt.Errorf("default model %q is not in the catalog", c.Default)
	}
	return nil
}

// Resolve picks the route for a model id, falling back to the default entry.
func (c *Catalog) Resolve(id string) Route {
	if m, ok := c.Models[id]; ok {
		return route(id, m)
	}

	if name, ok := strings.CutPrefix(id, OllamaPrefix); ok && name != "" {
		if provider := c.ollamaProvider(); provider != "" {
			return Route{ID: id, Provider: provider, Model: name}
		}
	}

	return route(c.Default, c.Models[c.Default])
}

// IDs lists the catalog model ids in order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Models))
	for id := range c.Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Catalog) ollamaProvider() string {
	if p, ok := c.Providers[KindOllama]; ok && p.Kind == KindOllama {
		return KindOllama
	}
	names := make([]string, 0, len(c.Providers))
	for name, p := range c.Providers {
		if p.Kind == KindOllama {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

func route(id string, m ModelEntry) Route {
	return Route{
		ID:        id,
		Provider:  m.Provider,
		Model:     m.Model,
		Prompt:    m.Prompt,
		MaxTokens: m.MaxTokens,
	}
}
