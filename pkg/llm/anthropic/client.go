// Package anthropic implements the LLM client interface against the
// Anthropic Messages streaming API directly over HTTP, since that wire
// format (event: content_block_delta / message_stop, x-api-key auth) has no
// counterpart in the OpenAI-compatible SDK this module otherwise uses.
package anthropic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"scrivener/pkg/config"
	"scrivener/pkg/llm"
	"scrivener/pkg/llm/sse"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultBaseURL = "https://api.anthropic.com"
const apiVersion = "2023-06-01"

// Client speaks the Anthropic Messages API directly.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	sys         *config.SystemConfig
}

// New creates a client for model against baseURL (empty for the public API).
// sys may be nil; it's only consulted for DebugChunks.
func New(apiKey, model, baseURL string, temperature float64, maxTokens int, sys *config.SystemConfig) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 0},
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		sys:         sys,
	}
}

func (c *Client) IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "529") ||
		strings.Contains(msg, "503")
}

type messageParam struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model       string         `json:"model"`
	System      string         `json:"system,omitempty"`
	Messages    []messageParam `json:"messages"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature,omitempty"`
	Stream      bool           `json:"stream"`
}

// contentBlockDelta mirrors the subset of the Messages streaming schema
// this client consumes.
type contentBlockDelta struct {
	Type  string `json:"type"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Thinking    string `json:"thinking"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
}

type messageDeltaUsage struct {
	Delta struct {
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type messageStartEvent struct {
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

func (c *Client) StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	var system string
	params := make([]messageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.GetTextContent()
			continue
		}
		params = append(params, messageParam{Role: m.Role, Content: m.GetTextContent()})
	}

	body, err := json.Marshal(requestBody{
		Model:       c.model,
		System:      system,
		Messages:    params,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build anthropic request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("anthropic request failed: status %d: %s", resp.StatusCode, raw)
	}

	chunkCh := make(chan llm.StreamChunk, 64)

	go func() {
		defer close(chunkCh)
		defer resp.Body.Close()

		dbg := llm.NewStreamDebugger(ctx, "anthropic", c.sys)
		defer dbg.Close()

		var inputTokens, outputTokens int
		var finishReason string

		err := sse.Parse(ctx, resp.Body, func(event string, data []byte) error {
			dbg.Write(data)
			switch event {
			case "message_start":
				var ev messageStartEvent
				if err := json.Unmarshal(data, &ev); err == nil {
					inputTokens = ev.Message.Usage.InputTokens
				}
			case "content_block_delta":
				var ev contentBlockDelta
				if err := json.Unmarshal(data, &ev); err != nil {
					return nil
				}
				switch ev.Delta.Type {
				case "text_delta":
					if ev.Delta.Text != "" {
						chunkCh <- llm.NewTextChunk(ev.Delta.Text)
					}
				case "thinking_delta":
					if ev.Delta.Thinking != "" {
						chunkCh <- llm.NewThinkingChunk(ev.Delta.Thinking)
					}
				}
			case "message_delta":
				var ev messageDeltaUsage
				if err := json.Unmarshal(data, &ev); err == nil {
					if ev.Delta.StopReason != "" {
						finishReason = normalizeStopReason(ev.Delta.StopReason)
					}
					if ev.Usage.OutputTokens > 0 {
						outputTokens = ev.Usage.OutputTokens
					}
				}
			case "error":
				return fmt.Errorf("anthropic stream error event: %s", data)
			}
			return nil
		})

		if err != nil {
			chunkCh <- llm.StreamChunk{IsFinal: true, FinishReason: "error"}
			return
		}

		if finishReason == "" {
			finishReason = llm.StopReasonStop
		}
		chunkCh <- llm.NewFinalChunk(finishReason, &llm.LLMUsage{
			PromptTokens:     inputTokens,
			CompletionTokens: outputTokens,
			TotalTokens:      inputTokens + outputTokens,
			StopReason:       finishReason,
		})
	}()

	return chunkCh, nil
}

func normalizeStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return llm.StopReasonStop
	case "max_tokens":
		return llm.StopReasonLength
	default:
		return reason
	}
}
