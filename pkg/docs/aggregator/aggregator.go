// Package aggregator implements the Aggregator (spec §4.9): once every
// depth layer has completed, it unions all per-node graph fragments into
// the single project-wide graph, synthesizes the directory containment
// edges the per-node fragments can't know about, and writes the two
// project-level Markdown artifacts.
package aggregator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scrivener/pkg/docs/checkpoint"
	"scrivener/pkg/docs/docerr"
	"scrivener/pkg/docs/graphmodel"
	"scrivener/pkg/docs/progress"
	"scrivener/pkg/docs/prompt"
	"scrivener/pkg/docs/walker"
	"scrivener/pkg/llm"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const projectGraphName = "_project_graph.json"

// Deps bundles what the Aggregator needs from the run it finishes.
type Deps struct {
	Client   llm.Client
	Store    *checkpoint.Store
	Bus      *progress.Bus
	DocsRoot string
	Plan     *walker.Plan
}

// Run implements spec §4.9 steps 1-6: collect fragments, union them,
// synthesize directory structure, persist the project graph, then produce
// the two project-level documents from the root directory's summary.
func Run(ctx context.Context, d Deps, rootSummary string) error {
	if d.Store.IsProjectGraphCompleted() {
		return nil
	}

	fragments := collectFragments(d.DocsRoot, d.Plan)
	graph := graphmodel.Aggregate(fragments)

	for _, layer := range d.Plan.Layers {
		for _, dir := range layer.Dirs {
			graph.AddDirectoryNode(dirNodeID(dir.RelativePath), dir.Name)
		}
		for _, f := range layer.Files {
			graph.AddFileNode(fileNodeID(f.RelativePath), f.Name)
		}
	}
	// Every directory gets a contains edge to each of its immediate
	// children, whether that child is a subdirectory or a file (spec
	// §4.9 step 4). Subdirectory edges link to the synthesized directory
	// node; file edges link to the synthesized file node added above, so
	// the edge exists even when a file's own fragment never emitted a
	// node representing itself.
	for _, layer := range d.Plan.Layers {
		for _, dir := range layer.Dirs {
			for _, child := range immediateChildDirs(dir, d.Plan) {
				graph.AddContainsEdge(dirNodeID(dir.RelativePath), dirNodeID(child))
			}
			for _, f := range immediateChildFiles(dir, d.Plan) {
				graph.AddContainsEdge(dirNodeID(dir.RelativePath), fileNodeID(f))
			}
		}
	}

	graphPath := filepath.Join(d.DocsRoot, projectGraphName)
	if err := writeJSON(graphPath, graph); err != nil {
		return docerr.IOf("", err, "write project graph")
	}

	readmeText, err := callLLM(ctx, d.Client, prompt.Readme(rootSummary))
	if err != nil {
		return docerr.Transportf("", err, "generate README")
	}
	if err := writeText(filepath.Join(d.DocsRoot, "README.md"), readmeText); err != nil {
		return docerr.IOf("", err, "write README")
	}

	guideText, err := callLLM(ctx, d.Client, prompt.ReadingGuide(rootSummary))
	if err != nil {
		return docerr.Transportf("", err, "generate reading guide")
	}
	if err := writeText(filepath.Join(d.DocsRoot, "READING_GUIDE.md"), guideText); err != nil {
		return docerr.IOf("", err, "write reading guide")
	}

	if err := d.Store.MarkProjectGraphCompleted(); err != nil {
		return docerr.Checkpointf("", err, "mark project graph completed")
	}
	return nil
}

// collectFragments reads every per-node .graph.json artifact the plan
// could have produced. Missing files (no fragment emitted for that node)
// are silently skipped, matching the per-node parser's "no fragment is not
// an error" rule (spec §4.3).
func collectFragments(docsRoot string, plan *walker.Plan) []graphmodel.Fragment {
	var out []graphmodel.Fragment
	for _, layer := range plan.Layers {
		for _, f := range layer.Files {
			if frag := readFragment(fileGraphPath(docsRoot, f)); frag != nil {
				out = append(out, *frag)
			}
		}
		for _, dir := range layer.Dirs {
			if frag := readFragment(dirGraphPath(docsRoot, dir)); frag != nil {
				out = append(out, *frag)
			}
		}
	}
	return out
}

func readFragment(path string) *graphmodel.Fragment {
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

func fileGraphPath(docsRoot string, n walker.Node) string {
	return filepath.Join(docsRoot, filepath.FromSlash(n.RelativePath)) + ".graph.json"
}

func dirGraphPath(docsRoot string, n walker.Node) string {
	return filepath.Join(docsRoot, filepath.FromSlash(n.RelativePath), "_dir.graph.json")
}

func dirNodeID(relPath string) string {
	if relPath == "." {
		return "dir:."
	}
	return "dir:" + relPath
}

func fileNodeID(relPath string) string {
	return "file:" + relPath
}

// immediateChildDirs returns the relative paths of dir's immediate child
// directories, per the plan's depth layering.
func immediateChildDirs(dir walker.Node, plan *walker.Plan) []string {
	var out []string
	for _, layer := range plan.Layers {
		if layer.Depth != dir.Depth+1 {
			continue
		}
		for _, candidate := range layer.Dirs {
			if isImmediateChild(dir.RelativePath, candidate.RelativePath) {
				out = append(out, candidate.RelativePath)
			}
		}
	}
	return out
}

// immediateChildFiles returns the relative paths of dir's immediate child
// files, per the plan's depth layering.
func immediateChildFiles(dir walker.Node, plan *walker.Plan) []string {
	var out []string
	for _, layer := range plan.Layers {
		if layer.Depth != dir.Depth+1 {
			continue
		}
		for _, f := range layer.Files {
			if isImmediateChild(dir.RelativePath, f.RelativePath) {
				out = append(out, f.RelativePath)
			}
		}
	}
	return out
}

func isImmediateChild(parentRel, candidateRel string) bool {
	if parentRel == "." {
		return !strings.Contains(candidateRel, "/")
	}
	prefix := parentRel + "/"
	if !strings.HasPrefix(candidateRel, prefix) {
		return false
	}
	return !strings.Contains(strings.TrimPrefix(candidateRel, prefix), "/")
}

func callLLM(ctx context.Context, client llm.Client, promptText string) (string, error) {
	// Same rule as the Node Processor: a README/reading-guide call already
	// streaming completes even if the task is cancelled mid-aggregation.
	callCtx := context.WithoutCancel(ctx)
	messages := []llm.Message{llm.NewUserMessage(promptText)}
	chunks, err := client.StreamChat(callCtx, messages)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range chunks {
		for _, block := range chunk.ContentBlocks {
			if block.Type == llm.BlockTypeText {
				sb.WriteString(block.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("llm returned empty response")
	}
	return text, nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, raw)
}

func writeText(path, content string) error {
	return atomicWrite(path, []byte(content))
}

func atomicWrite(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("artifact verification failed for %s", path)
	}
	return nil
}
