// Package scheduler implements the Depth Scheduler (spec §4.7): it drives
// the Tree Walker's plan strictly from the deepest layer up, running every
// file and directory at a given depth concurrently (bounded) before any
// node at a shallower depth starts, so a directory's prompt can always
// depend on its children's already-completed summaries.
package scheduler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scrivener/pkg/docs/aggregator"
	"scrivener/pkg/docs/checkpoint"
	"scrivener/pkg/docs/docerr"
	"scrivener/pkg/docs/processor"
	"scrivener/pkg/docs/progress"
	"scrivener/pkg/docs/prompt"
	"scrivener/pkg/docs/task"
	"scrivener/pkg/docs/walker"
	"scrivener/pkg/llm"
)

// Deps bundles the dependencies the scheduler wires into each Node
// Processor call.
type Deps struct {
	Client       llm.Client
	Store        *checkpoint.Store
	Bus          *progress.Bus
	Task         *task.Task
	DocsRoot     string
	SourceRoot   string
	Concurrency  int // bounded parallelism per depth layer (spec §4.7, default 4-8)
	LLMTimeoutMs int
}

// Run executes the whole plan: deepest layer first, then shallower layers
// in strict sequence, then the Aggregator once depth 0 completes. It
// returns the first error encountered, after every already-started task in
// the failing layer has finished (fail-fast between layers, not mid-layer,
// spec §4.7).
func Run(ctx context.Context, d Deps, plan *walker.Plan) error {
	d.Task.SetTotals(plan.TotalFiles, plan.TotalDirs, plan.UnrecognizedFiles)
	d.Task.SetStatus(task.StatusRunning)

	layers := append([]walker.Layer(nil), plan.Layers...)
	sort.Slice(layers, func(i, j int) bool { return layers[i].Depth > layers[j].Depth })

	// childSummaries accumulates each node's produced Markdown, keyed by its
	// relative path, so a parent directory's prompt can cite already-written
	// child artifacts (spec §4.8: "guaranteed available by the scheduler").
	childSummaries := make(map[string]string)
	var summaryMu sync.Mutex

	for _, layer := range layers {
		if d.Task.Status() != task.StatusRunning {
			return docerr.Cancelled
		}

		if err := runLayer(ctx, d, layer, childSummaries, &summaryMu); err != nil {
			d.Task.SetError(err.Error())
			d.Bus.Publish(progress.Event{Type: progress.Error, Message: err.Error()})
			return err
		}
	}

	if d.Task.Status() != task.StatusRunning {
		return docerr.Cancelled
	}

	rootSummary := childSummaries["."]
	if err := aggregator.Run(ctx, aggregator.Deps{
		Client:     d.Client,
		Store:      d.Store,
		Bus:        d.Bus,
		DocsRoot:   d.DocsRoot,
		Plan:       plan,
	}, rootSummary); err != nil {
		d.Task.SetError(err.Error())
		d.Bus.Publish(progress.Event{Type: progress.Error, Message: err.Error()})
		return err
	}

	d.Task.SetStatus(task.StatusCompleted)
	d.Bus.Publish(progress.Event{Type: progress.Completed})
	return nil
}

// runLayer processes one depth's files and directories as a single merged
// task list (spec §4.7: never files-then-dirs, never two parallel
// substreams — one worker pool per layer).
func runLayer(ctx context.Context, d Deps, layer walker.Layer, childSummaries map[string]string, summaryMu *sync.Mutex) error {
	// A plain Group, not errgroup.WithContext: that variant cancels its
	// derived context the instant any sibling Go func returns an error,
	// which would abort every other node's in-flight LLM call mid-stream.
	// A node already running is left to finish; only new dispatch for
	// later layers is gated, via the Task.Status() checks below and in Run.
	var g errgroup.Group
	g.SetLimit(concurrency(d.Concurrency))

	procDeps := processor.Deps{
		Client:     d.Client,
		Store:      d.Store,
		Bus:        d.Bus,
		Task:       d.Task,
		DocsRoot:   d.DocsRoot,
		LLMTimeout: time.Duration(d.LLMTimeoutMs) * time.Millisecond,
	}

	for _, n := range layer.Files {
		n := n
		g.Go(func() error {
			if d.Task.Status() != task.StatusRunning {
				return docerr.Cancelled
			}
			_, err := processor.ProcessFile(ctx, procDeps, n)
			if err != nil {
				return err
			}
			md, _ := processor.ReadSummary(mustMDPath(d.DocsRoot, n))
			summaryMu.Lock()
			childSummaries[n.RelativePath] = md
			summaryMu.Unlock()
			return nil
		})
	}

	for _, n := range layer.Dirs {
		n := n
		g.Go(func() error {
			if d.Task.Status() != task.StatusRunning {
				return docerr.Cancelled
			}
			children := childrenOf(n, childSummaries, summaryMu)
			_, err := processor.ProcessDir(ctx, procDeps, n, children)
			if err != nil {
				return err
			}
			md, _ := processor.ReadSummary(mustMDPath(d.DocsRoot, n))
			summaryMu.Lock()
			childSummaries[n.RelativePath] = md
			summaryMu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// childrenOf collects the already-produced summaries for every node whose
// relative path is an immediate child of dir's relative path.
func childrenOf(dir walker.Node, summaries map[string]string, mu *sync.Mutex) []prompt.ChildSummary {
	mu.Lock()
	defer mu.Unlock()

	var out []prompt.ChildSummary
	for path, summary := range summaries {
		if isImmediateChild(dir.RelativePath, path) {
			out = append(out, prompt.ChildSummary{RelativePath: path, Summary: summary})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out
}

func isImmediateChild(parentRel, candidateRel string) bool {
	if candidateRel == parentRel {
		return false
	}
	if parentRel == "." {
		return !strings.Contains(candidateRel, "/")
	}
	prefix := parentRel + "/"
	if len(candidateRel) <= len(prefix) || candidateRel[:len(prefix)] != prefix {
		return false
	}
	return !strings.Contains(candidateRel[len(prefix):], "/")
}

func mustMDPath(docsRoot string, n walker.Node) string {
	md, _ := processor.ArtifactPaths(docsRoot, n)
	return md
}

func concurrency(n int) int {
	if n <= 0 {
		return 6
	}
	return n
}
