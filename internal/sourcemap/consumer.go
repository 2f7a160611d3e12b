package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSourceMap is returned for maps that cannot be parsed.
var ErrInvalidSourceMap = errors.New("invalid source map")

// ExtensionPrefix marks vendor extension keys carried through a merge.
const ExtensionPrefix = "x_"

// Mapping ties a generated position to an original one. Lines and columns
// are zero-based. A mapping without HasSource marks an unmapped range; one
// with HasSource and an empty Source points at a null sources entry.
type Mapping struct {
	GeneratedLine   int
	GeneratedColumn int
	HasSource       bool
	Source          string
	SourceLine      int
	SourceColumn    int
	Name            string
}

// Parsed is a decoded revision 3 source map.
type Parsed struct {
	Version        int
	File           string
	SourceRoot     string
	Sources        []string
	SourcesContent []*string
	Names          []string
	Mappings       []Mapping
	Extensions     map[string]json.RawMessage
}

type wireMap struct {
	Version        int       `json:"version"`
	File           string    `json:"file"`
	SourceRoot     *string   `json:"sourceRoot"`
	Sources        []*string `json:"sources"`
	SourcesContent []*string `json:"sourcesContent"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// Parse validates and decodes a source map.
func Parse(data []byte) (*Parsed, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	var wire wireMap
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSourceMap, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSourceMap, err)
	}

	parsed := &Parsed{
		Version:        wire.Version,
		File:           wire.File,
		Sources:        make([]string, len(wire.Sources)),
		SourcesContent: wire.SourcesContent,
		Names:          wire.Names,
		Extensions:     make(map[string]json.RawMessage),
	}
	if wire.SourceRoot != nil {
		parsed.SourceRoot = *wire.SourceRoot
	}
	for i, src := range wire.Sources {
		if src != nil {
			parsed.Sources[i] = *src
		}
	}
	for key, value := range fields {
		if strings.HasPrefix(key, ExtensionPrefix) {
			parsed.Extensions[key] = value
		}
	}

	mappings, err := decodeMappings(wire.Mappings, parsed.Sources, parsed.Names)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSourceMap, err)
	}
	parsed.Mappings = mappings
	return parsed, nil
}

// OriginalSources returns each source referenced by at least one mapping,
// in order of first reference.
func (p *Parsed) OriginalSources() []string {
	seen := make(map[string]bool, len(p.Sources))
	var out []string
	for _, m := range p.Mappings {
		if m.Source == "" || seen[m.Source] {
			continue
		}
		seen[m.Source] = true
		out = append(out, m.Source)
	}
	return out
}

func decodeMappings(encoded string, sources, names []string) ([]Mapping, error) {
	var (
		out       []Mapping
		line      int
		srcIndex  int
		srcLine   int
		srcColumn int
		nameIndex int
	)

	for _, group := range strings.Split(encoded, ";") {
		column := 0
		for _, segment := range strings.Split(group, ",") {
			if segment == "" {
				continue
			}
			values, err := decodeSegment(segment)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}

			column += values[0]
			m := Mapping{GeneratedLine: line, GeneratedColumn: column}
			switch len(values) {
			case 1:
			case 4, 5:
				srcIndex += values[1]
				srcLine += values[2]
				srcColumn += values[3]
				if srcIndex < 0 || srcIndex >= len(sources) {
					return nil, fmt.Errorf("line %d: source index %d out of range", line, srcIndex)
				}
				m.HasSource = true
				m.Source = sources[srcIndex]
				m.SourceLine = srcLine
				m.SourceColumn = srcColumn
				if len(values) == 5 {
					nameIndex += values[4]
					if nameIndex < 0 || nameIndex >= len(names) {
						return nil, fmt.Errorf("line %d: name index %d out of range", line, nameIndex)
					}
					m.Name = names[nameIndex]
				}
			default:
				return nil, fmt.Errorf("line %d: segment %q has %d fields", line, segment, len(values))
			}
			if column < 0 || srcLine < 0 || srcColumn < 0 {
				return nil, fmt.Errorf("line %d: negative position in segment %q", line, segment)
			}
			out = append(out, m)
		}
		line++
	}
	return out, nil
}

func decodeSegment(segment string) ([]int, error) {
	values := make([]int, 0, 5)
	for pos := 0; pos < len(segment); {
		value, next, err := readVLQ(segment, pos)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		pos = next
	}
	return values, nil
}
