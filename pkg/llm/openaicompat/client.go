// Package openaicompat implements the LLM client interface against any
// OpenAI-compatible chat-completions streaming endpoint, using the official
// OpenAI Go SDK as the transport. Pointing BaseURL at a self-hosted gateway
// makes the same client usable for any compatible provider.
package openaicompat

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"

	"scrivener/pkg/config"
	"scrivener/pkg/llm"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Client wraps the official OpenAI Go SDK for streaming chat completions.
type Client struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
	sys         *config.SystemConfig
}

// New creates a client for model against baseURL (empty for api.openai.com).
// sys may be nil; it's only consulted for DebugChunks.
func New(apiKey, model, baseURL string, temperature float64, maxTokens int, sys *config.SystemConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	oc := openai.NewClient(opts...)
	return &Client{client: &oc, model: model, temperature: temperature, maxTokens: maxTokens, sys: sys}
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "503")
}

func (c *Client) StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	chunkCh := make(chan llm.StreamChunk, 64)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertMessages(messages),
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)

	go func() {
		defer close(chunkCh)

		dbg := llm.NewStreamDebugger(ctx, "openaicompat", c.sys)
		defer dbg.Close()

		var lastFinishReason string
		var lastUsage *llm.LLMUsage
		var thinkingBuf strings.Builder

		for stream.Next() {
			event := stream.Current()
			raw := rawJSON(event.JSON)
			if raw != "" {
				dbg.WriteString(raw)
			}

			if len(event.Choices) > 0 {
				choice := event.Choices[0]

				if choice.FinishReason != "" {
					lastFinishReason = string(choice.FinishReason)
				}

				if thought := extractReasoning(raw); thought != "" {
					thinkingBuf.WriteString(thought)
					chunkCh <- llm.NewThinkingChunk(thought)
				}

				if choice.Delta.Content != "" {
					chunkCh <- llm.NewTextChunk(choice.Delta.Content)
				}
			}

			if event.Usage.TotalTokens > 0 {
				lastUsage = &llm.LLMUsage{
					PromptTokens:     int(event.Usage.PromptTokens),
					CompletionTokens: int(event.Usage.CompletionTokens),
					TotalTokens:      int(event.Usage.TotalTokens),
				}
			}
		}

		if thinkingBuf.Len() > 0 {
			slog.DebugContext(ctx, "captured reasoning", "chars", thinkingBuf.Len())
		}

		if err := stream.Err(); err != nil {
			chunkCh <- llm.StreamChunk{IsFinal: true, FinishReason: "error"}
			slog.ErrorContext(ctx, "openai-compatible stream error", "error", err)
			return
		}

		reason := llm.StopReasonStop
		if lastFinishReason != "" {
			reason = normalizeStopReason(lastFinishReason)
		}
		chunkCh <- llm.NewFinalChunk(reason, lastUsage)
	}()

	return chunkCh, nil
}

// rawJSON pulls the unexported "raw" string the SDK stashes on every typed
// response for fields it doesn't model yet (here: vendor reasoning deltas).
func rawJSON(v any) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct {
		return ""
	}
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if rt.Field(i).Name == "raw" {
			return rv.Field(i).String()
		}
	}
	return ""
}

// extractReasoning pulls vendor-specific reasoning/thinking fields out of
// the raw chunk JSON; the SDK's typed struct doesn't expose them since they
// are non-standard extensions some OpenAI-compatible providers add.
func extractReasoning(raw string) string {
	if raw == "" {
		return ""
	}
	var payload struct {
		Choices []struct {
			Delta struct {
				ReasoningContent string `json:"reasoning_content"`
				Reasoning        string `json:"reasoning"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil || len(payload.Choices) == 0 {
		return ""
	}
	d := payload.Choices[0].Delta
	if d.ReasoningContent != "" {
		return d.ReasoningContent
	}
	return d.Reasoning
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	items := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{OfString: openai.String(m.GetTextContent())},
				},
			})
		case "assistant":
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(m.GetTextContent())},
				},
			})
		default:
			items = append(items, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(m.GetTextContent())},
				},
			})
		}
	}
	return items
}

func normalizeStopReason(reason string) string {
	switch strings.ToLower(reason) {
	case "stop":
		return llm.StopReasonStop
	case "length":
		return llm.StopReasonLength
	default:
		return reason
	}
}
