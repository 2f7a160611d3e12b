package sourcemap

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// v3Schema accepts basic (non-index) revision 3 source maps.
const v3Schema = `{
  "type": "object",
  "required": ["version", "mappings", "sources"],
  "properties": {
    "version": {"enum": [3]},
    "file": {"type": "string"},
    "sourceRoot": {"type": ["string", "null"]},
    "sources": {"type": "array", "items": {"type": ["string", "null"]}},
    "sourcesContent": {"type": "array", "items": {"type": ["string", "null"]}},
    "names": {"type": "array", "items": {"type": "string"}},
    "mappings": {"type": "string"}
  },
  "not": {"required": ["sections"]}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(v3Schema))
	})
	return compiledSchema, schemaErr
}

// Validate checks data against the v3 schema.
func Validate(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to compile source map schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSourceMap, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidSourceMap, strings.Join(problems, "; "))
}
