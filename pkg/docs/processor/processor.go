// Package processor implements the Node Processor (spec §4.8): the
// per-file / per-directory sub-pipeline of read → prompt → LLM → parse →
// persist → checkpoint → announce.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scrivener/pkg/docs/checkpoint"
	"scrivener/pkg/docs/docerr"
	"scrivener/pkg/docs/fragment"
	"scrivener/pkg/docs/graphmodel"
	"scrivener/pkg/docs/progress"
	"scrivener/pkg/docs/prompt"
	"scrivener/pkg/docs/task"
	"scrivener/pkg/docs/walker"
	"scrivener/pkg/llm"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Deps bundles everything a Node Processor call needs from the run it
// belongs to.
type Deps struct {
	Client     llm.Client
	Store      *checkpoint.Store
	Bus        *progress.Bus
	Task       *task.Task
	DocsRoot   string
	LLMTimeout time.Duration
}

// ArtifactPaths returns the Markdown and graph-fragment paths for a node
// (spec §3's DocArtifact/GraphFragment naming).
func ArtifactPaths(docsRoot string, n walker.Node) (mdPath, graphPath string) {
	if n.Kind == walker.KindDir {
		dir := filepath.Join(docsRoot, filepath.FromSlash(n.RelativePath))
		return filepath.Join(dir, "_dir_summary.md"), filepath.Join(dir, "_dir.graph.json")
	}
	rel := filepath.FromSlash(n.RelativePath)
	base := filepath.Join(docsRoot, rel)
	return base + ".md", base + ".graph.json"
}

// ProcessFile runs the full per-file sub-pipeline (spec §4.8).
func ProcessFile(ctx context.Context, d Deps, n walker.Node) (*graphmodel.Fragment, error) {
	mdPath, graphPath := ArtifactPaths(d.DocsRoot, n)

	if d.Store.VerifyFileCompleted(n.RelativePath) {
		d.Bus.Publish(progress.Event{Type: progress.FileCompleted, Time: now(), Path: n.RelativePath})
		d.Task.MarkDone(n.RelativePath, task.Stats{ProcessedFiles: 1, Skipped: 1})
		publishProgress(d)
		return readFragmentIfPresent(graphPath), nil
	}

	d.Task.MarkStarted(n.RelativePath)
	d.Bus.Publish(progress.Event{Type: progress.FileStarted, Time: now(), Path: n.RelativePath})

	contents, err := os.ReadFile(n.AbsolutePath)
	if err != nil {
		return nil, fail(d, n.RelativePath, docerr.IOf(n.RelativePath, err, "read source file"))
	}

	text, err := callLLM(ctx, d, prompt.File(n.RelativePath, string(contents)))
	if err != nil {
		return nil, fail(d, n.RelativePath, err)
	}

	result, err := fragment.Parse(text)
	if err != nil {
		return nil, fail(d, n.RelativePath, docerr.Contentf(n.RelativePath, "%v", err))
	}

	if err := writeArtifact(mdPath, result.Markdown); err != nil {
		return nil, fail(d, n.RelativePath, docerr.IOf(n.RelativePath, err, "write markdown artifact"))
	}
	if result.Fragment != nil {
		if err := writeFragment(graphPath, *result.Fragment); err != nil {
			return nil, fail(d, n.RelativePath, docerr.IOf(n.RelativePath, err, "write graph fragment"))
		}
	}

	if err := d.Store.MarkFileCompleted(n.RelativePath, mdPath); err != nil {
		return nil, fail(d, n.RelativePath, docerr.Checkpointf(n.RelativePath, err, "mark file completed"))
	}

	d.Bus.Publish(progress.Event{Type: progress.FileCompleted, Time: now(), Path: n.RelativePath})
	d.Task.MarkDone(n.RelativePath, task.Stats{ProcessedFiles: 1})
	publishProgress(d)

	return result.Fragment, nil
}

// ProcessDir runs the full per-directory sub-pipeline. children are the
// already-completed immediate children (spec guarantees this via the
// scheduler's strict depth ordering).
func ProcessDir(ctx context.Context, d Deps, n walker.Node, children []prompt.ChildSummary) (*graphmodel.Fragment, error) {
	mdPath, graphPath := ArtifactPaths(d.DocsRoot, n)

	if d.Store.VerifyDirCompleted(n.RelativePath) {
		d.Bus.Publish(progress.Event{Type: progress.DirCompleted, Time: now(), Path: n.RelativePath})
		d.Task.MarkDone(n.RelativePath, task.Stats{ProcessedDirs: 1, Skipped: 1})
		publishProgress(d)
		return readFragmentIfPresent(graphPath), nil
	}

	d.Task.MarkStarted(n.RelativePath)
	d.Bus.Publish(progress.Event{Type: progress.DirStarted, Time: now(), Path: n.RelativePath})

	text, err := callLLM(ctx, d, prompt.Directory(n.RelativePath, children))
	if err != nil {
		return nil, fail(d, n.RelativePath, err)
	}

	result, err := fragment.Parse(text)
	if err != nil {
		return nil, fail(d, n.RelativePath, docerr.Contentf(n.RelativePath, "%v", err))
	}

	if err := writeArtifact(mdPath, result.Markdown); err != nil {
		return nil, fail(d, n.RelativePath, docerr.IOf(n.RelativePath, err, "write markdown artifact"))
	}
	if result.Fragment != nil {
		if err := writeFragment(graphPath, *result.Fragment); err != nil {
			return nil, fail(d, n.RelativePath, docerr.IOf(n.RelativePath, err, "write graph fragment"))
		}
	}

	if err := d.Store.MarkDirCompleted(n.RelativePath, mdPath); err != nil {
		return nil, fail(d, n.RelativePath, docerr.Checkpointf(n.RelativePath, err, "mark dir completed"))
	}

	d.Bus.Publish(progress.Event{Type: progress.DirCompleted, Time: now(), Path: n.RelativePath})
	d.Task.MarkDone(n.RelativePath, task.Stats{ProcessedDirs: 1})
	publishProgress(d)

	return result.Fragment, nil
}

// ReadSummary reads a previously written artifact's Markdown for use as a
// parent directory's child-summary context.
func ReadSummary(mdPath string) (string, error) {
	raw, err := os.ReadFile(mdPath)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func callLLM(ctx context.Context, d Deps, promptText string) (string, error) {
	// A call already in flight finishes even if the task is cancelled or a
	// sibling node fails (spec: no forced interruption of in-progress LLM
	// I/O). Only an explicit per-call timeout bounds it; cancellation
	// further up only stops new nodes from being dispatched.
	callCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if d.LLMTimeout > 0 {
		callCtx, cancel = context.WithTimeout(callCtx, d.LLMTimeout)
		defer cancel()
	}

	messages := []llm.Message{llm.NewUserMessage(promptText)}
	chunks, err := d.Client.StreamChat(callCtx, messages)
	if err != nil {
		return "", docerr.Transportf("", err, "llm call failed")
	}

	var sb strings.Builder
	for chunk := range chunks {
		for _, block := range chunk.ContentBlocks {
			if block.Type == llm.BlockTypeText {
				sb.WriteString(block.Text)
			}
		}
		if chunk.IsFinal {
			llm.LogUsage(ctx, "", chunk.Usage)
		}
	}

	if callCtx.Err() != nil {
		return "", docerr.Transportf("", callCtx.Err(), "llm call timed out")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", docerr.Protocolf("", "llm returned empty response")
	}
	return text, nil
}

func writeArtifact(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("artifact verification failed for %s", path)
	}
	return nil
}

func writeFragment(path string, frag graphmodel.Fragment) error {
	raw, err := json.MarshalIndent(frag, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readFragmentIfPresent(path string) *graphmodel.Fragment {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var frag graphmodel.Fragment
	if err := json.Unmarshal(raw, &frag); err != nil {
		return nil
	}
	return &frag
}

func fail(d Deps, relPath string, err error) error {
	d.Task.SetError(err.Error())
	d.Bus.Publish(progress.Event{Type: progress.Error, Time: now(), Path: relPath, Message: err.Error()})
	return err
}

func publishProgress(d Deps) {
	pct, stats, current, _, _ := d.Task.Snapshot()
	d.Bus.Publish(progress.Event{
		Type:         progress.Progress,
		Time:         now(),
		ProgressPct:  pct,
		CurrentFiles: current,
		Stats: progress.Stats{
			TotalFiles: stats.TotalFiles, ProcessedFiles: stats.ProcessedFiles,
			TotalDirs: stats.TotalDirs, ProcessedDirs: stats.ProcessedDirs,
			Failed: stats.Failed, Skipped: stats.Skipped,
		},
	})
}

func now() time.Time { return time.Now() }
