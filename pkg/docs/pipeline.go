// Package docs wires the Tree Walker, Depth Scheduler, Node Processor, and
// Aggregator into the documentation pipeline's public surface: a registry
// of running/finished tasks, each owning its own Checkpoint Store and
// Progress Bus (spec §9's "shared-ownership graph": a Task and its Bus
// share a lifetime, but the Bus outlives replay subscribers joining late).
package docs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scrivener/pkg/config"
	"scrivener/pkg/docs/checkpoint"
	"scrivener/pkg/docs/progress"
	"scrivener/pkg/docs/scheduler"
	"scrivener/pkg/docs/task"
	"scrivener/pkg/docs/walker"
	"scrivener/pkg/llm"
	"scrivener/pkg/monitor"
	"scrivener/pkg/telemetry"
	"scrivener/pkg/utils"
)

// Run is one active or finished documentation pipeline run together with
// its progress bus and a cancel func for the goroutine driving it.
type Run struct {
	Task   *task.Task
	Bus    *progress.Bus
	cancel context.CancelFunc
}

// Pipeline owns every Run this process has started, keyed by task ID.
type Pipeline struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	client  llm.Client
	sys     *config.SystemConfig
	tracer  *telemetry.Handler      // nil if tracing isn't configured
	console *monitor.ConsolePrinter
}

// New creates a Pipeline driven by client, using sys for scheduler
// concurrency, LLM timeout, and progress-bus replay sizing. tracer may be
// nil, in which case no spans are emitted. Every run also gets a console
// progress subscriber, the way the teacher's Gateway always carried a
// CLIMonitor regardless of other wiring.
func New(client llm.Client, sys *config.SystemConfig, tracer *telemetry.Handler) *Pipeline {
	return &Pipeline{
		runs:    make(map[string]*Run),
		client:  client,
		sys:     sys,
		tracer:  tracer,
		console: monitor.NewConsolePrinter(),
	}
}

// Start begins a new run over sourcePath, writing artifacts under
// docsPath, and returns immediately with the new Task's ID; the pipeline
// itself executes on a background goroutine.
func (p *Pipeline) Start(ctx context.Context, sourcePath, docsPath string) (string, error) {
	id := utils.NewTaskID()
	t := task.NewTask(id, sourcePath, docsPath)
	bus := progress.New(p.sys.ReplayHistoryLimit)

	runCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.runs[id] = &Run{Task: t, Bus: bus, cancel: cancel}
	p.mu.Unlock()

	if p.tracer != nil {
		p.tracer.StartTask(id, sourcePath)
		events, cancelSub := bus.Subscribe(64)
		go func() {
			defer cancelSub()
			for ev := range events {
				p.tracer.Handle(id, ev)
			}
		}()
	}

	if p.console != nil {
		events, cancelSub := bus.Subscribe(64)
		go func() {
			defer cancelSub()
			for ev := range events {
				p.console.Print(progressLine(id, ev))
			}
		}()
	}

	go p.execute(runCtx, t, bus, sourcePath, docsPath)

	return id, nil
}

func (p *Pipeline) execute(ctx context.Context, t *task.Task, bus *progress.Bus, sourcePath, docsPath string) {
	plan, err := walker.Walk(sourcePath, docsPath, p.sys)
	if err != nil {
		t.SetError(fmt.Sprintf("walk source tree: %v", err))
		bus.Publish(progress.Event{Type: progress.Error, Message: err.Error()})
		return
	}

	store, err := checkpoint.LoadOrInit(docsPath)
	if err != nil {
		t.SetError(fmt.Sprintf("load checkpoint: %v", err))
		bus.Publish(progress.Event{Type: progress.Error, Message: err.Error()})
		return
	}

	err = scheduler.Run(ctx, scheduler.Deps{
		Client:       p.client,
		Store:        store,
		Bus:          bus,
		Task:         t,
		DocsRoot:     docsPath,
		SourceRoot:   sourcePath,
		Concurrency:  p.sys.SchedulerConcurrency,
		LLMTimeoutMs: p.sys.LLMTimeoutMs,
	}, plan)

	if err != nil {
		slog.Error("documentation run ended in error", "task_id", t.ID, "error", err)
	}
}

// progressLine adapts a bus Event into the shape ConsolePrinter renders. A
// timestamp is stamped here rather than trusted from ev.Time so replayed
// history events (which can arrive well after they were published) still
// print the time the console actually saw them.
func progressLine(taskID string, ev progress.Event) monitor.ProgressLine {
	return monitor.ProgressLine{
		Timestamp: time.Now(),
		TaskID:    taskID,
		Type:      string(ev.Type),
		Path:      ev.Path,
		Message:   ev.Message,
	}
}

// Cancel requests cooperative cancellation of a running task. Already
// in-flight node calls finish their current LLM call before observing it.
func (p *Pipeline) Cancel(id string) error {
	p.mu.RLock()
	run, ok := p.runs[id]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown task %q", id)
	}

	run.Task.SetStatus(task.StatusCancelled)
	run.cancel()
	run.Bus.Publish(progress.Event{Type: progress.Cancelled})
	return nil
}

// Get returns the Run for id, if any.
func (p *Pipeline) Get(id string) (*Run, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	run, ok := p.runs[id]
	return run, ok
}

// List returns every task this process has started or is running, most
// recently started first is not guaranteed (map iteration order).
func (p *Pipeline) List() []*task.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*task.Task, 0, len(p.runs))
	for _, run := range p.runs {
		out = append(out, run.Task)
	}
	return out
}

// CancelAll cancels every still-running task, used for graceful shutdown.
func (p *Pipeline) CancelAll() {
	p.mu.RLock()
	runs := make([]*Run, 0, len(p.runs))
	for _, run := range p.runs {
		runs = append(runs, run)
	}
	p.mu.RUnlock()

	for _, run := range runs {
		if run.Task.Status() == task.StatusRunning || run.Task.Status() == task.StatusPending {
			run.Task.SetStatus(task.StatusCancelled)
			run.cancel()
			run.Bus.Publish(progress.Event{Type: progress.Cancelled})
		}
	}
}
