package sourcemap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// MergeFunc resolves an extension key present in both the generator and an
// incoming section.
type MergeFunc func(key string, oldValue, newValue json.RawMessage) json.RawMessage

// NewValueWins keeps the incoming value.
func NewValueWins(_ string, _, newValue json.RawMessage) json.RawMessage {
	return newValue
}

// Generator accumulates mappings and renders a revision 3 source map.
type Generator struct {
	sourceRoot  string
	startLine   int
	startColumn int

	mappings    []Mapping
	sources     []string
	sourceIndex map[string]int
	names       []string
	nameIndex   map[string]int
	contents    map[string]string
	extensions  map[string]json.RawMessage
}

func NewGenerator() *Generator {
	return &Generator{
		sourceIndex: make(map[string]int),
		nameIndex:   make(map[string]int),
		contents:    make(map[string]string),
		extensions:  make(map[string]json.RawMessage),
	}
}

func (g *Generator) SetSourceRoot(root string) {
	g.sourceRoot = root
}

// SetStartingPosition offsets every mapping added afterwards. The column
// offset only applies to mappings on generated line 0.
func (g *Generator) SetStartingPosition(line, column int) {
	g.startLine = line
	g.startColumn = column
}

// AddMapping records m shifted by the starting position.
func (g *Generator) AddMapping(m Mapping) {
	if m.GeneratedLine == 0 {
		m.GeneratedColumn += g.startColumn
	}
	m.GeneratedLine += g.startLine

	if m.HasSource {
		if _, ok := g.sourceIndex[m.Source]; !ok {
			g.sourceIndex[m.Source] = len(g.sources)
			g.sources = append(g.sources, m.Source)
		}
		if m.Name != "" {
			if _, ok := g.nameIndex[m.Name]; !ok {
				g.nameIndex[m.Name] = len(g.names)
				g.names = append(g.names, m.Name)
			}
		}
	} else {
		m.Source = ""
		m.Name = ""
	}
	g.mappings = append(g.mappings, m)
}

// AddExtension sets an x_ extension, resolving clashes with merge.
func (g *Generator) AddExtension(key string, value json.RawMessage, merge MergeFunc) {
	if old, ok := g.extensions[key]; ok && merge != nil {
		value = merge(key, old, value)
	}
	g.extensions[key] = value
}

// AddSourcesContent attaches content to a source. Content for a source no
// mapping references is not written.
func (g *Generator) AddSourcesContent(source, content string) {
	g.contents[source] = content
}

// MergeSection adds every mapping and extension of p at the current
// starting position. The section's sourceRoot is not carried over.
func (g *Generator) MergeSection(p *Parsed, merge MergeFunc) {
	for _, m := range p.Mappings {
		g.AddMapping(m)
	}
	keys := make([]string, 0, len(p.Extensions))
	for key := range p.Extensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		g.AddExtension(key, p.Extensions[key], merge)
	}
}

// Encode writes the map as JSON with a fixed key order.
func (g *Generator) Encode(w io.Writer, file string) error {
	var buf bytes.Buffer
	buf.WriteString(`{"version":3`)

	if file != "" {
		if err := writeField(&buf, "file", file); err != nil {
			return err
		}
	}
	if g.sourceRoot != "" {
		if err := writeField(&buf, "sourceRoot", g.sourceRoot); err != nil {
			return err
		}
	}
	// A source registered without a name came from a null entry.
	sources := make([]*string, len(g.sources))
	for i := range g.sources {
		if g.sources[i] != "" {
			sources[i] = &g.sources[i]
		}
	}
	if err := writeField(&buf, "sources", sources); err != nil {
		return err
	}
	if len(g.contents) > 0 {
		contents := make([]*string, len(g.sources))
		for i, src := range g.sources {
			if content, ok := g.contents[src]; ok {
				contents[i] = &content
			}
		}
		if err := writeField(&buf, "sourcesContent", contents); err != nil {
			return err
		}
	}
	names := g.names
	if names == nil {
		names = []string{}
	}
	if err := writeField(&buf, "names", names); err != nil {
		return err
	}
	if err := writeField(&buf, "mappings", g.encodeMappings()); err != nil {
		return err
	}

	keys := make([]string, 0, len(g.extensions))
	for key := range g.extensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		var compact bytes.Buffer
		if err := json.Compact(&compact, g.extensions[key]); err != nil {
			return fmt.Errorf("extension %s: %w", key, err)
		}
		if err := writeField(&buf, key, json.RawMessage(compact.Bytes())); err != nil {
			return err
		}
	}
	buf.WriteString("}\n")

	_, err := w.Write(buf.Bytes())
	return err
}

// Bytes renders the map into a fresh slice.
func (g *Generator) Bytes(file string) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.Encode(&buf, file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) encodeMappings() string {
	mappings := make([]Mapping, len(g.mappings))
	copy(mappings, g.mappings)
	sort.SliceStable(mappings, func(i, j int) bool {
		if mappings[i].GeneratedLine != mappings[j].GeneratedLine {
			return mappings[i].GeneratedLine < mappings[j].GeneratedLine
		}
		return mappings[i].GeneratedColumn < mappings[j].GeneratedColumn
	})

	var (
		out       []byte
		line      int
		prevCol   int
		prevSrc   int
		prevLine  int
		prevSrcCl int
		prevName  int
		first     = true
	)
	for _, m := range mappings {
		for line < m.GeneratedLine {
			out = append(out, ';')
			line++
			prevCol = 0
			first = true
		}
		if !first {
			out = append(out, ',')
		}
		first = false

		out = appendVLQ(out, m.GeneratedColumn-prevCol)
		prevCol = m.GeneratedColumn
		if !m.HasSource {
			continue
		}
		src := g.sourceIndex[m.Source]
		out = appendVLQ(out, src-prevSrc)
		prevSrc = src
		out = appendVLQ(out, m.SourceLine-prevLine)
		prevLine = m.SourceLine
		out = appendVLQ(out, m.SourceColumn-prevSrcCl)
		prevSrcCl = m.SourceColumn
		if m.Name != "" {
			name := g.nameIndex[m.Name]
			out = appendVLQ(out, name-prevName)
			prevName = name
		}
	}
	return string(out)
}

func writeField(buf *bytes.Buffer, key string, value any) error {
	encodedKey, err := marshal(key)
	if err != nil {
		return err
	}
	encodedValue, err := marshal(value)
	if err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	buf.WriteByte(',')
	buf.Write(encodedKey)
	buf.WriteByte(':')
	buf.Write(encodedValue)
	return nil
}

// marshal encodes without HTML escaping so output mirrors the input text.
func marshal(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
