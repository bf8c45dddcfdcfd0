// Package telemetry translates documentation pipeline progress events into
// OpenTelemetry spans: one root span per task, one child span per node
// (file/directory), following the same event-to-span bookkeeping shape as
// the teacher corpus's runtime tracing handler.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scrivener/pkg/docs/progress"
)

// Handler mirrors a task's progress events as spans. It holds no reference to the bus itself; callers drive it by
// calling Handle for every event they receive (from progress.Bus.Subscribe
// or otherwise).
type Handler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	taskSpans map[string]trace.Span
	taskCtxs  map[string]context.Context
	nodeSpans map[string]trace.Span // taskID:path -> span
}

// New creates a Handler using tracer for every span it creates.
func New(tracer trace.Tracer) *Handler {
	return &Handler{
		tracer:    tracer,
		taskSpans: make(map[string]trace.Span),
		taskCtxs:  make(map[string]context.Context),
		nodeSpans: make(map[string]trace.Span),
	}
}

// StartTask opens the root span for a task. Call once, before feeding any
// of that task's events to Handle.
func (h *Handler) StartTask(taskID, sourcePath string) {
	ctx, span := h.tracer.Start(context.Background(), "docs_task:"+taskID,
		trace.WithAttributes(
			attribute.String("scrivener.task_id", taskID),
			attribute.String("scrivener.source_path", sourcePath),
		),
	)

	h.mu.Lock()
	h.taskSpans[taskID] = span
	h.taskCtxs[taskID] = ctx
	h.mu.Unlock()
}

// Handle applies one progress event to the task's spans.
func (h *Handler) Handle(taskID string, ev progress.Event) {
	switch ev.Type {
	case progress.FileStarted, progress.DirStarted:
		h.startNode(taskID, ev)
	case progress.FileCompleted, progress.DirCompleted:
		h.endNode(taskID, ev, true)
	case progress.Error:
		h.endNode(taskID, ev, false)
		h.endTask(taskID, false, ev.Message)
	case progress.Completed:
		h.endTask(taskID, true, "")
	case progress.Cancelled:
		h.endTask(taskID, false, "cancelled")
	}
}

func (h *Handler) startNode(taskID string, ev progress.Event) {
	h.mu.RLock()
	parentCtx, ok := h.taskCtxs[taskID]
	h.mu.RUnlock()
	if !ok {
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "node:"+ev.Path,
		trace.WithAttributes(
			attribute.String("scrivener.task_id", taskID),
			attribute.String("scrivener.path", ev.Path),
			attribute.String("scrivener.event", string(ev.Type)),
		),
	)

	key := taskID + ":" + ev.Path
	h.mu.Lock()
	h.nodeSpans[key] = span
	h.mu.Unlock()
}

func (h *Handler) endNode(taskID string, ev progress.Event, ok bool) {
	key := taskID + ":" + ev.Path
	h.mu.Lock()
	span, found := h.nodeSpans[key]
	if found {
		delete(h.nodeSpans, key)
	}
	h.mu.Unlock()

	if !found {
		return
	}
	if ok {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, ev.Message)
	}
	span.End()
}

func (h *Handler) endTask(taskID string, ok bool, errMsg string) {
	h.mu.Lock()
	span, found := h.taskSpans[taskID]
	if found {
		delete(h.taskSpans, taskID)
		delete(h.taskCtxs, taskID)
	}
	h.mu.Unlock()

	if !found {
		return
	}
	if ok {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}
