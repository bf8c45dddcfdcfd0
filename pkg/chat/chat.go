// Package chat implements the minimal chat subsystem (spec §1: "otherwise
// independent" of the documentation pipeline). It only assembles prompts
// and messages; pkg/api owns the websocket/HTTP transport.
package chat

import (
	"strings"

	"scrivener/pkg/llm"
)

// BuildMessages assembles the message list for one chat turn: an optional
// system persona, optional free-form context, and the user's content.
func BuildMessages(systemPrompt, context, content string) []llm.Message {
	var messages []llm.Message
	if systemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(systemPrompt))
	}
	if context != "" {
		messages = append(messages, llm.NewSystemMessage("Context:\n"+context))
	}
	messages = append(messages, llm.NewUserMessage(content))
	return messages
}

// BuildSuggestPrompt asks the model for a short list of follow-up
// questions a user might want to ask about context (spec §6
// `POST /api/chat/suggest`).
func BuildSuggestPrompt(context string) string {
	return "Given the following context, suggest 3-5 short follow-up questions a developer " +
		"might want to ask next. Reply with one question per line, no numbering or bullets.\n\n" + context
}

// ParseSuggestions splits a suggestion response into individual questions,
// stripping common list markers and blank lines.
func ParseSuggestions(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		q := strings.TrimSpace(line)
		q = strings.TrimLeft(q, "-*•0123456789.) ")
		q = strings.TrimSpace(q)
		if q != "" {
			out = append(out, q)
		}
	}
	return out
}
