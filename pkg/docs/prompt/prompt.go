// Package prompt assembles the three prompt shapes the pipeline needs
// (spec §4.2). The builder is pure: given the same inputs it produces the
// same prompt text, with no implicit state.
package prompt

import (
	"fmt"
	"path/filepath"
	"strings"
)

const graphInstruction = `
After the Markdown documentation, append a graph fragment enclosed exactly between these two literal markers on their own lines:

<!-- GRAPH_DATA_START -->
{"nodes": [...], "edges": [...], "imports": [...]}
<!-- GRAPH_DATA_END -->

Each node has {id, label, type, line?} with type one of: file, class, interface, struct, enum, function, method, constant, module, directory.
Each edge has {source, target, type, label?} with type one of: contains, imports, calls, inherits, implements, depends.
Emit only one such block. If you cannot produce a meaningful graph, omit the block entirely rather than emitting an empty or placeholder one.`

// File builds the file-analysis prompt: source contents, a language hint
// derived from the extension, and the graph-fragment instruction.
func File(relativePath, contents string) string {
	lang := strings.TrimPrefix(filepath.Ext(relativePath), ".")
	var b strings.Builder
	fmt.Fprintf(&b, "You are documenting a single source file from a larger codebase.\n\n")
	fmt.Fprintf(&b, "File: %s\nLanguage: %s\n\n", relativePath, lang)
	fmt.Fprintf(&b, "Produce clear Markdown documentation describing this file's purpose, its exported/public surface, and any notable internal structure.\n\n")
	fmt.Fprintf(&b, "```%s\n%s\n```\n", lang, contents)
	b.WriteString(graphInstruction)
	return b.String()
}

// ChildSummary is one child artifact fed into a directory prompt: either a
// file's documentation or an already-produced child directory summary.
type ChildSummary struct {
	RelativePath string
	Summary      string
}

// Directory builds the directory-summary prompt from the already-produced
// child artifacts (spec §4.2: "guaranteed available by the scheduler").
func Directory(relativePath string, children []ChildSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are summarizing a directory in a larger codebase.\n\n")
	fmt.Fprintf(&b, "Directory: %s\n\n", relativePath)
	fmt.Fprintf(&b, "Summarize its purpose and how its contents relate, using the following child summaries as context:\n\n")
	for _, c := range children {
		fmt.Fprintf(&b, "### %s\n%s\n\n", c.RelativePath, c.Summary)
	}
	fmt.Fprintf(&b, "Produce directory-level Markdown documentation. Express relationships between child modules (contains/depends/calls/inherits) in the graph fragment.\n")
	b.WriteString(graphInstruction)
	return b.String()
}

// Readme builds the project-level README prompt, run only in the final
// aggregation phase (spec §4.9 step 6).
func Readme(rootSummary string) string {
	return fmt.Sprintf(
		"Using the following root directory summary as context, write a project README.md: purpose, structure overview, and getting-started pointers.\n\n%s",
		rootSummary)
}

// ReadingGuide builds the project-level reading-guide prompt.
func ReadingGuide(rootSummary string) string {
	return fmt.Sprintf(
		"Using the following root directory summary as context, write a READING_GUIDE.md: a suggested order to read through the codebase for a new contributor, and why.\n\n%s",
		rootSummary)
}
