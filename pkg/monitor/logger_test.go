package monitor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestCustomHandlerFormatsTimeLevelAndMessage(t *testing.T) {
	var buf bytes.Buffer
	h := NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(h)

	logger.Info("hello world")

	out := buf.String()
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("output = %q, want it to contain [INFO]", out)
	}
	if !strings.Contains(out, "hello world") {
		t.Errorf("output = %q, want it to contain the message", out)
	}
}

func TestCustomHandlerIncludesTaskIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	h := NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelInfo})

	ctx := WithTaskID(context.Background(), "task-42")
	r := slog.NewRecord(time.Now(), slog.LevelInfo, "processing", 0)

	if err := h.Handle(ctx, r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.Contains(buf.String(), "[task-42]") {
		t.Errorf("output = %q, want it to contain [task-42]", buf.String())
	}
}

func TestCustomHandlerOmitsTaskIDWhenAbsent(t *testing.T) {
	var buf bytes.Buffer
	h := NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelInfo})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "processing", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	out := buf.String()
	if strings.Count(out, "[") > 2 {
		t.Errorf("output = %q, want no task-id bracket group", out)
	}
}

func TestCustomHandlerEnabledRespectsLevel(t *testing.T) {
	h := NewCustomHandler(&bytes.Buffer{}, slog.HandlerOptions{Level: slog.LevelWarn})

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Errorf("Enabled(Debug) = true, want false when configured level is Warn")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Errorf("Enabled(Error) = false, want true when configured level is Warn")
	}
}

func TestCustomHandlerWithAttrsAppendsToOutput(t *testing.T) {
	var buf bytes.Buffer
	h := NewCustomHandler(&buf, slog.HandlerOptions{Level: slog.LevelInfo})
	withAttrs := h.WithAttrs([]slog.Attr{slog.String("component", "scheduler")})

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "started", 0)
	if err := withAttrs.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if !strings.Contains(buf.String(), `component="scheduler"`) {
		t.Errorf("output = %q, want it to contain component attr", buf.String())
	}
}

func TestCustomHandlerWithGroupIsANoOp(t *testing.T) {
	h := NewCustomHandler(&bytes.Buffer{}, slog.HandlerOptions{Level: slog.LevelInfo})
	if h.WithGroup("ignored") != h {
		t.Errorf("WithGroup() should return the same handler, grouping is unsupported")
	}
}

func TestSetupSlogAcceptsAllLevelStrings(t *testing.T) {
	for _, lvl := range []string{"debug", "warn", "warning", "error", "info", "unknown"} {
		SetupSlog(lvl)
	}
}
