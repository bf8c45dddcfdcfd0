package llm

import "time"

// Message is a single turn in a conversation sent to an LLM provider.
type Message struct {
	Role      string         `json:"role"` // "system", "user", "assistant"
	Content   []ContentBlock `json:"content"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// ContentBlock is one piece of a message's content. "thinking" blocks carry
// a provider's extended-reasoning output and are never sent back upstream.
type ContentBlock struct {
	Type string `json:"type"` // "text" | "thinking"
	Text string `json:"text,omitempty"`
}

// StreamChunk is one increment of a streamed LLM response. ContentBlocks
// holds only the newly produced text/thinking for this chunk, never the
// running total.
type StreamChunk struct {
	ContentBlocks []ContentBlock `json:"content_blocks,omitempty"`
	IsFinal       bool           `json:"is_final"`
	FinishReason  string         `json:"finish_reason,omitempty"`
	Usage         *LLMUsage      `json:"usage,omitempty"`
}

// NewTextMessage builds a single-block text message.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:      role,
		Content:   []ContentBlock{{Type: BlockTypeText, Text: text}},
		Timestamp: time.Now().Unix(),
	}
}

func NewSystemMessage(text string) Message    { return NewTextMessage("system", text) }
func NewUserMessage(text string) Message      { return NewTextMessage("user", text) }
func NewAssistantMessage(text string) Message { return NewTextMessage("assistant", text) }

// GetTextContent concatenates all "text" blocks, skipping thinking blocks.
func (m *Message) GetTextContent() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockTypeText {
			out += b.Text
		}
	}
	return out
}

// NewTextChunk wraps a text increment.
func NewTextChunk(text string) StreamChunk {
	return StreamChunk{ContentBlocks: []ContentBlock{{Type: BlockTypeText, Text: text}}}
}

// NewThinkingChunk wraps a reasoning increment.
func NewThinkingChunk(text string) StreamChunk {
	return StreamChunk{ContentBlocks: []ContentBlock{{Type: BlockTypeThinking, Text: text}}}
}

// NewFinalChunk wraps the terminal chunk, carrying the normalized stop
// reason and usage totals.
func NewFinalChunk(reason string, usage *LLMUsage) StreamChunk {
	return StreamChunk{IsFinal: true, FinishReason: reason, Usage: usage}
}
