// Package manifest loads an on-disk description of a compiler's output into
// an artifact set ready for linking.
package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/morozRed/maplink/internal/artifact"
	"github.com/morozRed/maplink/internal/compilation"
	"github.com/morozRed/maplink/internal/edits"
	"github.com/morozRed/maplink/internal/ignore"
	"github.com/morozRed/maplink/internal/sourcemap"
)

// DefaultFile is looked up when no manifest path is given.
const DefaultFile = "artifacts.yaml"

var (
	ErrMissingModule       = errors.New("manifest does not name a module")
	ErrMissingCompilations = errors.New("manifest does not name a compilations file")
	ErrUnknownEditKind     = errors.New("unknown edit kind")
	ErrInvalidEdit         = errors.New("invalid edit")
)

// Manifest mirrors artifacts.yaml. Relative paths resolve against the
// manifest's directory.
type Manifest struct {
	Module           string            `yaml:"module"`
	Compilations     string            `yaml:"compilations"`
	SourceRoot       string            `yaml:"source_root,omitempty"`
	SourceMaps       []SourceMapEntry  `yaml:"source_maps,omitempty"`
	Edits            []EditEntry       `yaml:"edits,omitempty"`
	GeneratedSources []GeneratedSource `yaml:"generated_sources,omitempty"`
	DiscoverIgnore   []string          `yaml:"discover_ignore,omitempty"`

	dir string
}

// SourceMapEntry names one raw source map. SourceRoot overrides the
// manifest-wide source_root.
type SourceMapEntry struct {
	Permutation int    `yaml:"permutation"`
	Fragment    int    `yaml:"fragment"`
	Path        string `yaml:"path"`
	SourceRoot  string `yaml:"source_root,omitempty"`
}

type EditEntry struct {
	StrongName string    `yaml:"strong_name"`
	Fragment   int       `yaml:"fragment"`
	Ops        []OpEntry `yaml:"ops"`
}

// OpEntry is one edit. A prefix takes its text from script or script_file,
// or only its size from lines.
type OpEntry struct {
	Kind       string `yaml:"kind"`
	Script     string `yaml:"script,omitempty"`
	ScriptFile string `yaml:"script_file,omitempty"`
	Lines      *int   `yaml:"lines,omitempty"`
	Line       int    `yaml:"line,omitempty"`
	Count      int    `yaml:"count,omitempty"`
}

// GeneratedSource is a compiler-generated source file that source maps may
// reference by Path.
type GeneratedSource struct {
	Path string `yaml:"path"`
	File string `yaml:"file"`
}

// Load parses the manifest at path. Unknown keys are rejected.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var m Manifest
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	m.Module = strings.TrimSpace(m.Module)
	if m.Module == "" {
		return nil, ErrMissingModule
	}
	if strings.TrimSpace(m.Compilations) == "" {
		return nil, ErrMissingCompilations
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	m.dir = abs
	return &m, nil
}

// Dir is the directory relative paths resolve against.
func (m *Manifest) Dir() string {
	return m.dir
}

func (m *Manifest) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.dir, filepath.FromSlash(p))
}

// Options controls how a manifest becomes an artifact set.
type Options struct {
	// ValidatePrefixes parses every prefix script as JavaScript.
	ValidatePrefixes bool
	Logger           *slog.Logger
}

// ArtifactSet loads every referenced file.
func (m *Manifest) ArtifactSet(ctx context.Context, opts Options) (*artifact.Set, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	set := artifact.NewSet()

	records, err := compilation.ReadFile(m.resolvePath(m.Compilations))
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		set.Add(rec)
	}

	for _, gen := range m.GeneratedSources {
		data, err := os.ReadFile(m.resolvePath(gen.File))
		if err != nil {
			return nil, fmt.Errorf("failed to read generated source %s: %w", gen.Path, err)
		}
		set.Add(artifact.NewEmitted(gen.Path, data, artifact.Source))
	}

	entries := m.SourceMaps
	if len(entries) == 0 {
		if entries, err = m.discoverSourceMaps(); err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "discovered source maps", "count", len(entries), "dir", m.dir)
	}
	for _, entry := range entries {
		data, err := os.ReadFile(m.resolvePath(entry.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to read source map %s: %w", entry.Path, err)
		}
		root := entry.SourceRoot
		if root == "" {
			root = m.SourceRoot
		}
		set.Add(&sourcemap.Artifact{
			PermutationID: entry.Permutation,
			Fragment:      entry.Fragment,
			Contents:      data,
			SourceRoot:    root,
		})
	}

	for _, entry := range m.Edits {
		editSet, err := m.buildEdits(ctx, entry, opts.ValidatePrefixes)
		if err != nil {
			return nil, err
		}
		if existing, ok := set.Get(editSet.ArtifactKey()); ok {
			prior := existing.(*edits.Set)
			for _, op := range editSet.Ops {
				prior.Append(op)
			}
			continue
		}
		set.Add(editSet)
	}

	return set, nil
}

func (m *Manifest) buildEdits(ctx context.Context, entry EditEntry, validate bool) (*edits.Set, error) {
	strongName := strings.TrimSpace(entry.StrongName)
	if strongName == "" {
		return nil, fmt.Errorf("%w: edit entry without strong_name", ErrInvalidEdit)
	}
	set := edits.NewSet(strongName, entry.Fragment)

	for i, op := range entry.Ops {
		where := fmt.Sprintf("%s fragment %d op %d", strongName, entry.Fragment, i)
		kind, ok := edits.ParseKind(op.Kind)
		if !ok {
			return nil, fmt.Errorf("%w %q (%s)", ErrUnknownEditKind, op.Kind, where)
		}

		script := op.Script
		if op.ScriptFile != "" {
			data, err := os.ReadFile(m.resolvePath(op.ScriptFile))
			if err != nil {
				return nil, fmt.Errorf("failed to read script for %s: %w", where, err)
			}
			script = string(data)
		}

		switch kind {
		case edits.Prefix:
			if op.Lines != nil {
				if *op.Lines < 0 {
					return nil, fmt.Errorf("%w: negative line count (%s)", ErrInvalidEdit, where)
				}
				set.Append(edits.PrefixLinesOp(*op.Lines))
				continue
			}
			if validate {
				if err := edits.ValidateScript(ctx, []byte(script)); err != nil {
					return nil, fmt.Errorf("prefix %s: %w", where, err)
				}
			}
			set.PrefixLines(script)
		case edits.Insert:
			set.Append(edits.InsertOp(op.Line, script))
		case edits.Remove:
			if op.Count < 0 {
				return nil, fmt.Errorf("%w: negative remove count (%s)", ErrInvalidEdit, where)
			}
			set.Append(edits.RemoveOp(op.Line, op.Count))
		}
	}
	return set, nil
}

// discoverSourceMaps finds <permutation>/sourceMap<fragment>.json files
// below the manifest directory.
func (m *Manifest) discoverSourceMaps() ([]SourceMapEntry, error) {
	matcher := ignore.NewDiscoveryMatcher(m.DiscoverIgnore)

	var found []SourceMapEntry
	err := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(m.dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matcher.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !sourcemap.IsSourceMapFile(rel) {
			return nil
		}

		dir, name := filepath.Split(filepath.FromSlash(rel))
		permutation, err := strconv.Atoi(filepath.Base(filepath.Clean(dir)))
		if err != nil {
			return nil
		}
		fragment, ok := sourcemap.FragmentFromFilename(name)
		if !ok || name != sourcemap.FilenameForFragment(fragment) {
			return nil
		}
		found = append(found, SourceMapEntry{Permutation: permutation, Fragment: fragment, Path: rel})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover source maps: %w", err)
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].Permutation != found[j].Permutation {
			return found[i].Permutation < found[j].Permutation
		}
		return found[i].Fragment < found[j].Fragment
	})
	return found, nil
}
