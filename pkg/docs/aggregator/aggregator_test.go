package aggregator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"scrivener/pkg/docs/checkpoint"
	"scrivener/pkg/docs/graphmodel"
	"scrivener/pkg/docs/progress"
	"scrivener/pkg/docs/walker"
	"scrivener/pkg/llm"
)

type fakeClient struct{ response string }

func (f *fakeClient) StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.NewTextChunk(f.response)
	close(ch)
	return ch, nil
}

func (f *fakeClient) IsTransientError(err error) bool { return false }

func writeFragmentFile(t *testing.T, path string, frag graphmodel.Fragment) {
	t.Helper()
	raw, err := json.Marshal(frag)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestRunWritesProjectGraphAndProjectDocs(t *testing.T) {
	docsRoot := t.TempDir()
	store, err := checkpoint.LoadOrInit(docsRoot)
	if err != nil {
		t.Fatalf("LoadOrInit() error = %v", err)
	}

	// bar.go is a file directly inside pkg, so per the walker's depth
	// convention (a non-root node's depth is its path-separator count plus
	// one) it sits
	// one layer deeper than the pkg directory itself, same as a nested
	// subdirectory would.
	plan := &walker.Plan{
		Layers: []walker.Layer{
			{Depth: 2, Files: []walker.Node{{Kind: walker.KindFile, RelativePath: "pkg/bar.go", Depth: 2, Name: "bar.go"}}},
			{Depth: 1, Dirs: []walker.Node{{Kind: walker.KindDir, RelativePath: "pkg", Depth: 1, Name: "pkg"}}},
			{Depth: 0, Dirs: []walker.Node{{Kind: walker.KindDir, RelativePath: ".", Depth: 0, Name: "root"}}},
		},
	}

	writeFragmentFile(t, filepath.Join(docsRoot, "pkg", "bar.go.graph.json"), graphmodel.Fragment{
		Nodes: []graphmodel.Node{{ID: "bar.go", Type: "file", Label: "bar.go"}},
	})
	writeFragmentFile(t, filepath.Join(docsRoot, "pkg", "_dir.graph.json"), graphmodel.Fragment{
		Nodes: []graphmodel.Node{{ID: "pkg-summary", Type: "file", Label: "pkg"}},
	})

	d := Deps{
		Client:   &fakeClient{response: "# Project\n\nAn overview."},
		Store:    store,
		Bus:      progress.New(10),
		DocsRoot: docsRoot,
		Plan:     plan,
	}

	if err := Run(context.Background(), d, "root summary"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	graphPath := filepath.Join(docsRoot, "_project_graph.json")
	raw, err := os.ReadFile(graphPath)
	if err != nil {
		t.Fatalf("expected project graph at %s: %v", graphPath, err)
	}
	var graph graphmodel.ProjectGraph
	if err := json.Unmarshal(raw, &graph); err != nil {
		t.Fatalf("Unmarshal(project graph) error = %v", err)
	}
	// bar.go + pkg-summary from fragments, plus synthesized dir:pkg, dir:.,
	// and file:pkg/bar.go nodes.
	if len(graph.Nodes) != 5 {
		t.Errorf("len(graph.Nodes) = %d, want 5", len(graph.Nodes))
	}

	hasEdge := func(source, target string) bool {
		for _, e := range graph.Edges {
			if e.Type == graphmodel.EdgeTypeContains && e.Source == source && e.Target == target {
				return true
			}
		}
		return false
	}
	if !hasEdge("dir:.", "dir:pkg") {
		t.Errorf("expected a synthesized contains edge from root to pkg, got edges: %+v", graph.Edges)
	}
	if !hasEdge("dir:pkg", "file:pkg/bar.go") {
		t.Errorf("expected a synthesized contains edge from pkg to its immediate child file, got edges: %+v", graph.Edges)
	}

	if _, err := os.Stat(filepath.Join(docsRoot, "README.md")); err != nil {
		t.Errorf("expected README.md: %v", err)
	}
	if _, err := os.Stat(filepath.Join(docsRoot, "READING_GUIDE.md")); err != nil {
		t.Errorf("expected READING_GUIDE.md: %v", err)
	}
	if !store.IsProjectGraphCompleted() {
		t.Errorf("checkpoint does not record project graph as completed")
	}
}

func TestRunSkipsWhenAlreadyCompleted(t *testing.T) {
	docsRoot := t.TempDir()
	store, err := checkpoint.LoadOrInit(docsRoot)
	if err != nil {
		t.Fatalf("LoadOrInit() error = %v", err)
	}
	if err := store.MarkProjectGraphCompleted(); err != nil {
		t.Fatalf("MarkProjectGraphCompleted() error = %v", err)
	}

	d := Deps{
		Client:   &fakeClient{response: "should never be called"},
		Store:    store,
		Bus:      progress.New(10),
		DocsRoot: docsRoot,
		Plan:     &walker.Plan{},
	}

	if err := Run(context.Background(), d, "root"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(docsRoot, "README.md")); !os.IsNotExist(err) {
		t.Errorf("expected no README.md to be written when already completed")
	}
}

func TestRunPropagatesLLMEmptyResponseAsError(t *testing.T) {
	docsRoot := t.TempDir()
	store, err := checkpoint.LoadOrInit(docsRoot)
	if err != nil {
		t.Fatalf("LoadOrInit() error = %v", err)
	}

	d := Deps{
		Client:   &fakeClient{response: "   "},
		Store:    store,
		Bus:      progress.New(10),
		DocsRoot: docsRoot,
		Plan:     &walker.Plan{},
	}

	if err := Run(context.Background(), d, "root"); err == nil {
		t.Fatalf("Run() error = nil, want error when README generation returns empty text")
	}
}
