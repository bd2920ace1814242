package backend

import (
	"strings"

	"github.com/bz888/sagan/internal/backend/provider"
	"github.com/bz888/sagan/internal/chat"
)

const (
	basePrompt = "You are a helpful, expert coding assistant. You provide accurate, concise, and well-formatted code. You are part of a Sagan interface."

	deepResearchPrompt = "\n\n[DEEP RESEARCH MODE ENABLED]\nYou are in Deep Research mode. Provide exhaustive, detailed, and well-cited answers. Explore multiple angles and depths of the topic."

	browsingPrompt = "\n\n[BROWSING MODE ENABLED]\nYou have access to the internet (simulated). When answering, pretend to browse the web for the latest information. Cite your sources."
)

// systemPrompt builds the system message: the base prompt, the mode
// suffixes in order, then the model's own suffix.
func systemPrompt(deepResearch, browsing bool, modelPrompt string) string {
	prompt := basePrompt
	if deepResearch {
		prompt += deepResearchPrompt
	}
	if browsing {
		prompt += browsingPrompt
	}
	return prompt + modelPrompt
}

// flattenMessages turns client messages into plain role/content pairs.
// Messages without any text are dropped.
func flattenMessages(messages []chat.Message) []provider.ChatMessage {
	out := make([]provider.ChatMessage, 0, len(messages))
	for _, m := range messages {
		var b strings.Builder
		if m.Content != nil {
			b.WriteString(m.Content.Flatten())
		}
		for _, part := range m.Parts {
			if part.Text != "" {
				b.WriteString(part.Text)
				b.WriteString("\n")
			}
		}

		content := strings.TrimSpace(b.String())
		if content == "" {
			continue
		}
		out = append(out, provider.ChatMessage{Role: string(m.Role), Content: content})
	}
	return out
}

// buildMessages prepends the system message to the flattened conversation.
func buildMessages(req *chatRequest, route Route) []provider.ChatMessage {
	msgs := flattenMessages(req.Messages)
	system := provider.ChatMessage{
		Role:    provider.RoleSystem,
		Content: systemPrompt(req.IsDeepResearch, req.IsBrowsing, route.Prompt),
	}
	return append([]provider.ChatMessage{system}, msgs...)
}
