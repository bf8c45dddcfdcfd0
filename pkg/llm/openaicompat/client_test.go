package openaicompat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scrivener/pkg/config"
	"scrivener/pkg/llm"
)

// chdir switches the working directory for the duration of the test, since
// StreamDebugger writes under a relative "debug/" path.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestIsTransientError(t *testing.T) {
	c := &Client{}
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("context deadline exceeded"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("request timeout"), true},
		{errors.New("status 429 too many requests"), true},
		{errors.New("status 503 service unavailable"), true},
		{errors.New("status 400 bad request"), false},
		{nil, false},
	}
	for _, c2 := range cases {
		if got := c.IsTransientError(c2.err); got != c2.want {
			t.Errorf("IsTransientError(%v) = %v, want %v", c2.err, got, c2.want)
		}
	}
}

func TestNormalizeStopReason(t *testing.T) {
	cases := map[string]string{
		"stop":      llm.StopReasonStop,
		"STOP":      llm.StopReasonStop,
		"length":    llm.StopReasonLength,
		"tool_call": "tool_call",
	}
	for in, want := range cases {
		if got := normalizeStopReason(in); got != want {
			t.Errorf("normalizeStopReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConvertMessagesMapsRoles(t *testing.T) {
	msgs := []llm.Message{
		llm.NewSystemMessage("be terse"),
		llm.NewUserMessage("hello"),
		llm.NewAssistantMessage("hi there"),
	}
	items := convertMessages(msgs)
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	if items[0].OfSystem == nil {
		t.Errorf("first message should map to OfSystem")
	}
	if items[1].OfUser == nil {
		t.Errorf("second message should map to OfUser")
	}
	if items[2].OfAssistant == nil {
		t.Errorf("third message should map to OfAssistant")
	}
}

func TestExtractReasoningPrefersReasoningContent(t *testing.T) {
	raw := `{"choices":[{"delta":{"reasoning_content":"thinking hard","reasoning":"fallback"}}]}`
	if got := extractReasoning(raw); got != "thinking hard" {
		t.Errorf("extractReasoning() = %q, want %q", got, "thinking hard")
	}
}

func TestExtractReasoningFallsBackToReasoningField(t *testing.T) {
	raw := `{"choices":[{"delta":{"reasoning":"fallback text"}}]}`
	if got := extractReasoning(raw); got != "fallback text" {
		t.Errorf("extractReasoning() = %q, want %q", got, "fallback text")
	}
}

func TestExtractReasoningEmptyForPlainContent(t *testing.T) {
	raw := `{"choices":[{"delta":{"content":"hello"}}]}`
	if got := extractReasoning(raw); got != "" {
		t.Errorf("extractReasoning() = %q, want empty", got)
	}
}

func TestExtractReasoningMalformedJSONReturnsEmpty(t *testing.T) {
	if got := extractReasoning("not json"); got != "" {
		t.Errorf("extractReasoning(malformed) = %q, want empty", got)
	}
	if got := extractReasoning(""); got != "" {
		t.Errorf("extractReasoning(empty) = %q, want empty", got)
	}
}

type rawHolder struct {
	raw string
}

func TestRawJSONExtractsUnexportedField(t *testing.T) {
	h := rawHolder{raw: `{"choices":[]}`}
	if got := rawJSON(h); got != h.raw {
		t.Errorf("rawJSON() = %q, want %q", got, h.raw)
	}
}

func TestRawJSONNonStructReturnsEmpty(t *testing.T) {
	if got := rawJSON("not a struct"); got != "" {
		t.Errorf("rawJSON(string) = %q, want empty", got)
	}
}

func TestStreamChatWritesDebugChunksWhenEnabled(t *testing.T) {
	chdir(t, t.TempDir())

	body := strings.Join([]string{
		`data: {"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"hi"},"finish_reason":null}]}`,
		``,
		`data: {"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		``,
		`data: [DONE]`,
		``,
		``,
	}, "\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := New("test-key", "gpt-4o", srv.URL, 0, 0, &config.SystemConfig{DebugChunks: true})
	chunks, err := c.StreamChat(context.Background(), []llm.Message{llm.NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	for range chunks {
	}

	path := filepath.Join("debug", "chunks", "openaicompat", "chat.log")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected debug log at %s: %v", path, err)
	}
	if !strings.Contains(string(content), "chat.completion.chunk") {
		t.Errorf("debug log = %q, want it to contain the raw streamed event", content)
	}
}
