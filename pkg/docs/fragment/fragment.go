// Package fragment implements the Graph Fragment Parser (spec §4.3): it
// extracts the JSON graph fragment embedded in an LLM's Markdown response
// between two literal HTML-comment markers, validates it against the
// closed node/edge vocabulary, and returns the Markdown with the embedded
// block stripped.
package fragment

import (
	"bytes"
	"fmt"
	"strings"

	"scrivener/pkg/docs/graphmodel"

	"github.com/yuin/goldmark"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Markers are private to the parser (spec §9): callers never need to know
// their literal text, only that Parse understands the protocol.
const (
	startMarker = "<!-- GRAPH_DATA_START -->"
	endMarker   = "<!-- GRAPH_DATA_END -->"
)

// Result is the parsed output of one LLM response.
type Result struct {
	Markdown string
	Fragment *graphmodel.Fragment // nil if no fragment was present or parseable
}

// Parse implements spec §4.3's algorithm. A missing fragment (no markers,
// or malformed JSON between them) is not an error: the Markdown still
// counts as a successful analysis as long as it is non-empty after the
// marked block is stripped and the result trimmed. An empty Markdown
// portion is reported as an error (spec §7 "Content").
func Parse(raw string) (Result, error) {
	startIdx := strings.Index(raw, startMarker)
	if startIdx < 0 {
		return finish(raw, nil)
	}

	afterStart := startIdx + len(startMarker)
	endIdx := strings.Index(raw[afterStart:], endMarker)
	if endIdx < 0 {
		// No close marker: spec §9 treats this as "no fragment" rather than
		// a parse error.
		return finish(raw, nil)
	}
	endIdx += afterStart

	jsonBlock := strings.TrimSpace(raw[afterStart:endIdx])
	doc := raw[:startIdx] + raw[endIdx+len(endMarker):]

	frag, err := decodeFragment(jsonBlock)
	if err != nil {
		// Dropped, not fatal (spec §4.3 step 2): logged by the caller.
		return finish(doc, nil)
	}
	return finish(doc, frag)
}

func finish(markdown string, frag *graphmodel.Fragment) (Result, error) {
	trimmed := strings.TrimSpace(markdown)
	if trimmed == "" {
		return Result{}, fmt.Errorf("markdown portion empty after trim")
	}
	// Well-formedness check only: a render failure here would mean goldmark
	// itself panicked or errored, not that the prose is unusual Markdown.
	var discard bytes.Buffer
	if err := goldmark.New().Convert([]byte(trimmed), &discard); err != nil {
		return Result{}, fmt.Errorf("markdown portion failed to render: %w", err)
	}
	return Result{Markdown: trimmed, Fragment: frag}, nil
}

func decodeFragment(jsonBlock string) (*graphmodel.Fragment, error) {
	if jsonBlock == "" {
		return nil, fmt.Errorf("empty graph data block")
	}

	var generic any
	if err := json.Unmarshal([]byte(jsonBlock), &generic); err != nil {
		return nil, fmt.Errorf("decode graph data: %w", err)
	}
	if err := graphmodel.Validate(generic); err != nil {
		return nil, fmt.Errorf("validate graph data: %w", err)
	}

	var frag graphmodel.Fragment
	if err := json.Unmarshal([]byte(jsonBlock), &frag); err != nil {
		return nil, fmt.Errorf("decode graph fragment: %w", err)
	}
	return &frag, nil
}
