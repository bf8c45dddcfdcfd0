package graphmodel

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Closed vocabularies from spec §3.
const (
	NodeTypeFile      = "file"
	NodeTypeClass     = "class"
	NodeTypeInterface = "interface"
	NodeTypeStruct    = "struct"
	NodeTypeEnum      = "enum"
	NodeTypeFunction  = "function"
	NodeTypeMethod    = "method"
	NodeTypeConstant  = "constant"
	NodeTypeModule    = "module"
	NodeTypeDirectory = "directory"

	EdgeTypeContains   = "contains"
	EdgeTypeImports    = "imports"
	EdgeTypeCalls      = "calls"
	EdgeTypeInherits   = "inherits"
	EdgeTypeImplements = "implements"
	EdgeTypeDepends    = "depends"
)

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["nodes", "edges"],
  "properties": {
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "label": {"type": "string"},
          "type": {"enum": ["file", "class", "interface", "struct", "enum", "function", "method", "constant", "module", "directory"]},
          "line": {"type": "integer"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["source", "target", "type"],
        "properties": {
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "type": {"enum": ["contains", "imports", "calls", "inherits", "implements", "depends"]},
          "label": {"type": "string"}
        }
      }
    },
    "imports": {
      "type": "array",
      "items": {"type": "string"}
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("fragment.json", bytes.NewReader([]byte(schemaJSON))); err != nil {
			compileErr = fmt.Errorf("add fragment schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile("fragment.json")
	})
	return compiled, compileErr
}

// Validate checks raw (the JSON object between the graph-data markers)
// against the closed node/edge type vocabulary before it is trusted as a
// fragment (spec §3's closed sets).
func Validate(raw any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	return s.Validate(raw)
}
