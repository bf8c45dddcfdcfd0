package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel"

	"scrivener/pkg/docs/progress"
)

func newTestHandler() *Handler {
	return New(otel.Tracer("scrivener-test"))
}

func TestStartTaskAndHandleNodeLifecycle(t *testing.T) {
	h := newTestHandler()
	h.StartTask("task-1", "/src")

	h.Handle("task-1", progress.Event{Type: progress.FileStarted, Path: "main.go"})

	h.mu.RLock()
	_, started := h.nodeSpans["task-1:main.go"]
	h.mu.RUnlock()
	if !started {
		t.Fatalf("expected a node span to be tracked after FileStarted")
	}

	h.Handle("task-1", progress.Event{Type: progress.FileCompleted, Path: "main.go"})

	h.mu.RLock()
	_, stillTracked := h.nodeSpans["task-1:main.go"]
	h.mu.RUnlock()
	if stillTracked {
		t.Errorf("expected the node span to be removed after FileCompleted")
	}
}

func TestHandleCompletedEndsTaskSpan(t *testing.T) {
	h := newTestHandler()
	h.StartTask("task-1", "/src")

	h.Handle("task-1", progress.Event{Type: progress.Completed})

	h.mu.RLock()
	_, tracked := h.taskSpans["task-1"]
	h.mu.RUnlock()
	if tracked {
		t.Errorf("expected the task span to be removed after Completed")
	}
}

func TestHandleErrorEndsNodeAndTaskSpans(t *testing.T) {
	h := newTestHandler()
	h.StartTask("task-1", "/src")
	h.Handle("task-1", progress.Event{Type: progress.DirStarted, Path: "pkg"})

	h.Handle("task-1", progress.Event{Type: progress.Error, Path: "pkg", Message: "boom"})

	h.mu.RLock()
	_, nodeTracked := h.nodeSpans["task-1:pkg"]
	_, taskTracked := h.taskSpans["task-1"]
	h.mu.RUnlock()
	if nodeTracked {
		t.Errorf("expected the node span to be removed after Error")
	}
	if taskTracked {
		t.Errorf("expected the task span to be removed after Error")
	}
}

func TestHandleCancelledEndsTaskSpan(t *testing.T) {
	h := newTestHandler()
	h.StartTask("task-1", "/src")

	h.Handle("task-1", progress.Event{Type: progress.Cancelled})

	h.mu.RLock()
	_, tracked := h.taskSpans["task-1"]
	h.mu.RUnlock()
	if tracked {
		t.Errorf("expected the task span to be removed after Cancelled")
	}
}

func TestHandleProgressEventIsANoOp(t *testing.T) {
	h := newTestHandler()
	h.StartTask("task-1", "/src")

	h.Handle("task-1", progress.Event{Type: progress.Progress, ProgressPct: 50})

	h.mu.RLock()
	_, tracked := h.taskSpans["task-1"]
	h.mu.RUnlock()
	if !tracked {
		t.Errorf("a bare progress event should not end the task span")
	}
}

func TestEndNodeForUnknownPathIsANoOp(t *testing.T) {
	h := newTestHandler()
	h.StartTask("task-1", "/src")

	// No FileStarted/DirStarted preceded this; must not panic.
	h.Handle("task-1", progress.Event{Type: progress.FileCompleted, Path: "never-started.go"})
}
