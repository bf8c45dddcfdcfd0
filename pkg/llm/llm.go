package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// json is the shared json-iterator codec for this package, matching the
// standard library's semantics exactly so existing struct tags keep working.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LLMUsage is a provider-normalized token accounting for one completed call.
type LLMUsage struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	ThoughtsTokens   int    `json:"thoughts_tokens,omitempty"`
	StopReason       string `json:"stop_reason,omitempty"`
}

// LogUsage emits a single structured log line summarizing a call's usage.
func LogUsage(ctx context.Context, model string, usage *LLMUsage) {
	if usage == nil {
		return
	}
	slog.InfoContext(ctx, "llm usage", "model", model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"total_tokens", usage.TotalTokens,
		"thoughts_tokens", usage.ThoughtsTokens,
		"stop_reason", usage.StopReason)
}

// Client is the wire-format-agnostic interface every LLM provider adapter
// implements. A single documentation task may drive many concurrent calls
// through the same Client from different goroutines (one per scheduled
// node); implementations must be safe for concurrent use.
type Client interface {
	// StreamChat issues one streaming completion request and returns a
	// channel of incremental chunks. The channel is closed after the final
	// chunk (IsFinal == true) or when ctx is cancelled.
	StreamChat(ctx context.Context, messages []Message) (<-chan StreamChunk, error)

	// IsTransientError reports whether err is worth a retry (rate limit,
	// 5xx, connection reset) as opposed to a permanent failure.
	IsTransientError(err error) bool
}

// RetryingClient wraps a single atomic Client with bounded retry-with-delay
// on transient errors. Unlike the teacher's FallbackClient, there is only
// ever one provider configured for a documentation run (the spec fixes one
// model per run), so this retries in place rather than falling through to
// a different provider.
type RetryingClient struct {
	Client     Client
	MaxRetries int
	RetryDelay time.Duration
}

func (r *RetryingClient) StreamChat(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * r.RetryDelay):
			}
			slog.WarnContext(ctx, "retrying llm call", "attempt", attempt, "max_retries", maxRetries, "last_error", lastErr)
		}

		ch, err := r.Client.StreamChat(ctx, messages)
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if !r.Client.IsTransientError(err) || attempt == maxRetries {
			break
		}
	}
	return nil, fmt.Errorf("llm call failed after retries: %w", lastErr)
}

func (r *RetryingClient) IsTransientError(err error) bool {
	return r.Client.IsTransientError(err)
}
