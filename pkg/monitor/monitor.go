package monitor

import (
	"fmt"
	"io"
	"os"
	"time"
)

// ProgressLine is the minimal shape a console printer needs out of a
// pipeline progress event; pkg/docs builds one from each progress.Event.
type ProgressLine struct {
	Timestamp time.Time
	TaskID    string
	Type      string
	Path      string
	Message   string
}

// ConsolePrinter renders pipeline progress events to a writer, one line per
// event, with a dimmed timestamp the way the teacher's CLI monitor dimmed
// message timestamps.
type ConsolePrinter struct {
	w io.Writer
}

// NewConsolePrinter creates a console printer writing to os.Stdout.
func NewConsolePrinter() *ConsolePrinter {
	return &ConsolePrinter{w: os.Stdout}
}

// Print writes a single progress line.
func (p *ConsolePrinter) Print(ev ProgressLine) {
	ts := ev.Timestamp.Format("15:04:05")
	if ev.Path != "" {
		fmt.Fprintf(p.w, "\033[90m[%s]\033[0m [%s] %s %s\n", ts, ev.TaskID, ev.Type, ev.Path)
		return
	}
	fmt.Fprintf(p.w, "\033[90m[%s]\033[0m [%s] %s %s\n", ts, ev.TaskID, ev.Type, ev.Message)
}

// Startup initializes the global logger and prints the banner. Called once
// from main before anything else touches slog.
func Startup(logLevel string) {
	SetupSlog(logLevel)
	PrintBanner()
}
