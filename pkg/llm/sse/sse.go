// Package sse implements the Server-Sent-Events line protocol shared by
// every streaming LLM wire format this module speaks. The frame-accumulation
// logic (event:/data: lines terminated by a blank line, "[DONE]" sentinel)
// is identical across providers; only what a frame's JSON payload means
// differs, which is left to the caller's handler.
package sse

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Handler is invoked once per complete SSE frame with the frame's event
// name (empty if the server omitted it) and its joined data payload.
type Handler func(event string, data []byte) error

// Parse reads r as a stream of SSE frames until EOF, ctx cancellation, a
// handler error, or the literal "[DONE]" data sentinel some APIs use in
// place of closing the connection.
func Parse(ctx context.Context, r io.Reader, handle Handler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	var dataParts []string

	flush := func() error {
		if len(dataParts) == 0 {
			return nil
		}
		data := strings.Join(dataParts, "\n")
		ev := eventType
		eventType, dataParts = "", dataParts[:0]
		if data == "[DONE]" {
			return io.EOF
		}
		return handle(ev, []byte(data))
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			if err := flush(); err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
			continue
		}

		if after, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(after)
		} else if after, ok := strings.CutPrefix(line, "data:"); ok {
			dataParts = append(dataParts, strings.TrimSpace(after))
		}
	}

	if err := flush(); err != nil && err != io.EOF {
		return err
	}
	return scanner.Err()
}
