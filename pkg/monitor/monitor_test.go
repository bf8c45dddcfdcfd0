package monitor

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"
)

func TestConsolePrinterIncludesPathWhenPresent(t *testing.T) {
	var buf bytes.Buffer
	p := &ConsolePrinter{w: &buf}

	p.Print(ProgressLine{
		Timestamp: time.Now(),
		TaskID:    "task-1",
		Type:      "file_completed",
		Path:      "pkg/foo/bar.go",
	})

	out := buf.String()
	if !strings.Contains(out, "task-1") || !strings.Contains(out, "pkg/foo/bar.go") {
		t.Errorf("output = %q, want it to contain task id and path", out)
	}
}

func TestConsolePrinterFallsBackToMessageWhenNoPath(t *testing.T) {
	var buf bytes.Buffer
	p := &ConsolePrinter{w: &buf}

	p.Print(ProgressLine{
		Timestamp: time.Now(),
		TaskID:    "task-1",
		Type:      "error",
		Message:   "something went wrong",
	})

	out := buf.String()
	if !strings.Contains(out, "something went wrong") {
		t.Errorf("output = %q, want it to contain the message", out)
	}
}

func TestNewConsolePrinterWritesToStdout(t *testing.T) {
	p := NewConsolePrinter()
	if p.w == nil {
		t.Errorf("NewConsolePrinter() has a nil writer")
	}
	if p.w != os.Stdout {
		t.Errorf("NewConsolePrinter() writer is not os.Stdout")
	}
}
