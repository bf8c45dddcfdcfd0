// Package walker implements the Tree Walker (spec §4.6): it enumerates the
// source tree once, classifies files by extension, excludes the ignore set
// and the docs output directory, and groups the result into depth layers
// for the Depth Scheduler.
package walker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"scrivener/pkg/config"
)

// Kind is a SourceNode's category.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "directory"
)

// Node is an item in the plan (spec §3).
type Node struct {
	Kind         Kind
	AbsolutePath string
	RelativePath string // forward-slash, relative to source root
	Depth        int
	Name         string
}

// Layer groups every plan node that shares a depth.
type Layer struct {
	Depth int
	Files []Node
	Dirs  []Node
}

// Plan is the Tree Walker's output: depth layers plus whole-run totals.
type Plan struct {
	Layers       []Layer // sorted by depth descending (deepest first)
	TotalFiles   int     // recognized + unrecognized files actually under the walk
	TotalDirs    int     // every walked directory, empty ones included, plus the root
	// UnrecognizedFiles counts files whose extension isn't in
	// RecognizedExt: they're never scheduled, so they're folded into the
	// task's skipped count up front rather than left uncounted — otherwise
	// processed_files + skipped_files would never reach total_files on a
	// tree that contains any of them (spec §8).
	UnrecognizedFiles int
	RecognizedExt     map[string]bool
}

// defaultIgnoreGlobs are doublestar patterns matched against an entry's basename;
// a fixed ignore-set (spec §3) plus common build-artifact directories.
var defaultIgnoreGlobs = []string{
	"node_modules", ".git", "dist", "build", "target", "vendor",
	"__pycache__", ".venv", "*.egg-info",
}

// Walk builds the Plan rooted at sourceRoot, excluding docsRoot (the output
// directory sentinel, spec §3) and everything matched by sys's ignore
// names/globs or hidden-directory convention.
func Walk(sourceRoot, docsRoot string, sys *config.SystemConfig) (*Plan, error) {
	recognized := make(map[string]bool, len(sys.RecognizedExtensions))
	for _, ext := range sys.RecognizedExtensions {
		recognized["."+strings.TrimPrefix(ext, ".")] = true
	}

	ignore := append([]string(nil), defaultIgnoreGlobs...)
	ignore = append(ignore, sys.IgnoreNames...)

	layerByDepth := make(map[int]*Layer)
	var totalFiles, totalDirs, unrecognizedFiles int

	absDocsRoot, _ := filepath.Abs(docsRoot)

	err := filepath.Walk(sourceRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == sourceRoot {
			rel := "."
			depth := 0
			l := layerFor(layerByDepth, depth)
			l.Dirs = append(l.Dirs, Node{Kind: KindDir, AbsolutePath: path, RelativePath: rel, Depth: depth, Name: filepath.Base(sourceRoot)})
			return nil
		}

		absPath, _ := filepath.Abs(path)
		if absDocsRoot != "" && (absPath == absDocsRoot || strings.HasPrefix(absPath, absDocsRoot+string(filepath.Separator))) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		base := filepath.Base(path)
		if info.IsDir() && strings.HasPrefix(base, ".") {
			return filepath.SkipDir
		}
		if matchesIgnore(base, ignore) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(sourceRoot, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/") + 1

		if info.IsDir() {
			totalDirs++
			l := layerFor(layerByDepth, depth)
			l.Dirs = append(l.Dirs, Node{Kind: KindDir, AbsolutePath: path, RelativePath: rel, Depth: depth, Name: base})
			return nil
		}

		ext := strings.ToLower(filepath.Ext(base))
		if recognized[ext] {
			totalFiles++
			l := layerFor(layerByDepth, depth)
			l.Files = append(l.Files, Node{Kind: KindFile, AbsolutePath: path, RelativePath: rel, Depth: depth, Name: base})
		} else {
			// Unrecognized files are counted but never scheduled (spec
			// §4.6), and folded into skipped up front since nothing
			// downstream will ever mark them processed.
			totalFiles++
			unrecognizedFiles++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	layers := make([]Layer, 0, len(layerByDepth))
	for _, l := range layerByDepth {
		layers = append(layers, *l)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i].Depth > layers[j].Depth })

	return &Plan{
		Layers:            layers,
		TotalFiles:        totalFiles,
		TotalDirs:         totalDirs + 1, // + the root directory itself
		UnrecognizedFiles: unrecognizedFiles,
		RecognizedExt:     recognized,
	}, nil
}

func layerFor(m map[int]*Layer, depth int) *Layer {
	l, ok := m[depth]
	if !ok {
		l = &Layer{Depth: depth}
		m[depth] = l
	}
	return l
}

func matchesIgnore(base string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, base); ok {
			return true
		}
	}
	return false
}
