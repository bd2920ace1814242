package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type PartType string

// PartText is the only kind the shell produces. Other kinds are carried through untouched.
const PartText PartType = "text"

// Part is one typed fragment of a message.
type Part struct {
	Type PartType
	Text string

	// raw keeps the original encoding of kinds this package does not model.
	raw json.RawMessage
}

func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

type textPart struct {
	Type PartType `json:"type"`
	Text string   `json:"text"`
}

func (p Part) MarshalJSON() ([]byte, error) {
	if p.Type != PartText && p.raw != nil {
		return p.raw, nil
	}
	return json.Marshal(textPart{Type: p.Type, Text: p.Text})
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type PartType `json:"type"`
		Text *string  `json:"text"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode part: %w", err)
	}

	*p = Part{Type: wire.Type}
	if wire.Text != nil {
		p.Text = *wire.Text
	}
	if wire.Type != PartText {
		p.raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// Content is the legacy content field of a message: a JSON string, or an
// array of strings and {"text": ...} objects.
type Content struct {
	text  string
	items []string
	list  bool
}

func StringContent(s string) Content {
	return Content{text: s}
}

func ListContent(items ...string) Content {
	return Content{items: items, list: true}
}

// Flatten renders the content the way the backend feeds it to a model:
// the string form verbatim, the array form as one line per text item.
func (c Content) Flatten() string {
	if !c.list {
		return c.text
	}
	var b strings.Builder
	for _, item := range c.items {
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.list {
		items := c.items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(c.text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Content{text: s}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("content must be a string or an array: %w", err)
	}

	out := Content{list: true}
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out.items = append(out.items, s)
			continue
		}
		var obj struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Text != nil {
			out.items = append(out.items, *obj.Text)
		}
	}
	*c = out
	return nil
}

type Message struct {
	ID      string   `json:"id,omitempty"`
	Role    Role     `json:"role"`
	Content *Content `json:"content,omitempty"`
	Parts   []Part   `json:"parts,omitempty"`
}

// Text concatenates the text parts in order.
func (m Message) Text() string {
	var b strings.Builder
	for _, part := range m.Parts {
		if part.Type == PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func (m Message) clone() Message {
	m.Parts = append([]Part(nil), m.Parts...)
	return m
}

// ChatRequest is the body the shell sends for one submission.
type ChatRequest struct {
	ID             string    `json:"id,omitempty"`
	Model          string    `json:"model"`
	IsDeepResearch bool      `json:"isDeepResearch"`
	IsBrowsing     bool      `json:"isBrowsing"`
	Messages       []Message `json:"messages"`
}

// ErrorEnvelope is the JSON error body of the proxy and the backend.
type ErrorEnvelope struct {
	Error string `json:"error"`
}
