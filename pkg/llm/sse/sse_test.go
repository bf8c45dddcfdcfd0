package sse

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type frame struct {
	event string
	data  string
}

func collect(t *testing.T, body string) []frame {
	t.Helper()
	var frames []frame
	err := Parse(context.Background(), strings.NewReader(body), func(event string, data []byte) error {
		frames = append(frames, frame{event: event, data: string(data)})
		return nil
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return frames
}

func TestParseSingleFrame(t *testing.T) {
	frames := collect(t, "event: message\ndata: hello\n\n")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].event != "message" || frames[0].data != "hello" {
		t.Errorf("frame = %+v, want {message, hello}", frames[0])
	}
}

func TestParseMultipleDataLinesJoinedByNewline(t *testing.T) {
	frames := collect(t, "data: line1\ndata: line2\n\n")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].data != "line1\nline2" {
		t.Errorf("data = %q, want %q", frames[0].data, "line1\nline2")
	}
}

func TestParseMultipleFrames(t *testing.T) {
	frames := collect(t, "event: a\ndata: 1\n\nevent: b\ndata: 2\n\n")
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].event != "a" || frames[1].event != "b" {
		t.Errorf("frames = %+v", frames)
	}
}

func TestParseStopsAtDoneSentinel(t *testing.T) {
	frames := collect(t, "data: hello\n\ndata: [DONE]\n\ndata: never-seen\n\n")
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 (stream should stop at [DONE])", len(frames))
	}
}

func TestParseNoEventNameDefaultsEmpty(t *testing.T) {
	frames := collect(t, "data: hello\n\n")
	if frames[0].event != "" {
		t.Errorf("event = %q, want empty", frames[0].event)
	}
}

func TestParsePropagatesHandlerError(t *testing.T) {
	boom := errors.New("handler failed")
	err := Parse(context.Background(), strings.NewReader("data: hello\n\n"), func(event string, data []byte) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Parse() error = %v, want %v", err, boom)
	}
}

func TestParseTrailingFrameWithoutBlankLine(t *testing.T) {
	// No trailing blank line before EOF; the final frame should still flush.
	frames := collect(t, "event: last\ndata: value")
	if len(frames) != 1 || frames[0].data != "value" {
		t.Errorf("frames = %+v, want one frame with data 'value'", frames)
	}
}

func TestParseRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Parse(ctx, strings.NewReader("data: hello\n\n"), func(event string, data []byte) error {
		t.Fatalf("handler should not be called once context is already cancelled")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Parse() error = %v, want context.Canceled", err)
	}
}
