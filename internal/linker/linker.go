// Package linker runs the link pass over a compiled artifact set: one symbol
// map per permutation, then one offset-adjusted source map per fragment.
package linker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/morozRed/maplink/internal/artifact"
	"github.com/morozRed/maplink/internal/compilation"
	"github.com/morozRed/maplink/internal/edits"
	"github.com/morozRed/maplink/internal/ignore"
	"github.com/morozRed/maplink/internal/resolve"
	"github.com/morozRed/maplink/internal/sourcemap"
	"github.com/morozRed/maplink/internal/symbolmap"
)

// ErrDuplicateStrongName means two permutations were given the same strong
// name, so their outputs would overwrite each other.
var ErrDuplicateStrongName = errors.New("strong name assigned to more than one permutation")

// Options configures a Driver.
type Options struct {
	// EmbedContents attaches original source text to merged source maps.
	EmbedContents bool
	// Loader backs content resolution after generated sources. May be nil.
	Loader resolve.Loader
	// EmbedExclude lists sources that are never embedded. May be nil.
	EmbedExclude *ignore.Matcher
	Logger       *slog.Logger
	Observer     Observer
}

// Result counts what a Link call did.
type Result struct {
	Permutations            int `json:"permutations"`
	SymbolMapsWritten       int `json:"symbol_maps_written"`
	SymbolMapsSkipped       int `json:"symbol_maps_skipped"`
	SourceMapsMerged        int `json:"source_maps_merged"`
	SourceMapsPassedThrough int `json:"source_maps_passed_through"`
	SourceMapsDropped       int `json:"source_maps_dropped"`
	UnappliedEdits          int `json:"unapplied_edits"`
	SourcesEmbedded         int `json:"sources_embedded"`
	SourcesMissing          int `json:"sources_missing"`
	SourceMapsDeferred      int `json:"source_maps_deferred"`
}

// Driver owns the permutation to strong name table for one pass.
type Driver struct {
	opts     Options
	logger   *slog.Logger
	observer Observer
	merger   *sourcemap.Merger
}

func New(opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	return &Driver{
		opts:     opts,
		logger:   logger,
		observer: observer,
		merger:   sourcemap.NewMerger(logger),
	}
}

// Link returns a new set derived from in. in itself is left untouched.
// Source maps are only processed when onePermutation is set; a batched link
// leaves raw maps and edit sets in place for a later pass.
func (d *Driver) Link(ctx context.Context, in *artifact.Set, onePermutation bool) (*artifact.Set, Result, error) {
	out := in.Clone()
	var result Result

	strongNames, err := d.linkSymbolMaps(ctx, out, &result)
	if err != nil {
		return nil, result, err
	}

	if !onePermutation {
		result.SourceMapsDeferred = len(artifact.Find[*sourcemap.Artifact](out))
		return out, result, nil
	}
	d.linkSourceMaps(ctx, out, strongNames, &result)
	return out, result, nil
}

func (d *Driver) linkSymbolMaps(ctx context.Context, out *artifact.Set, result *Result) (map[int]string, error) {
	ctx, end := d.observer.Begin(ctx, PhaseSymbolMaps)
	defer end()

	strongNames := make(map[int]string)
	owners := make(map[string]int)

	var buf bytes.Buffer
	writer := symbolmap.NewWriter()
	for _, rec := range artifact.Find[*compilation.Record](out) {
		if owner, ok := owners[rec.StrongName]; ok && owner != rec.PermutationID {
			return nil, fmt.Errorf("%w: %s used by permutations %d and %d",
				ErrDuplicateStrongName, rec.StrongName, owner, rec.PermutationID)
		}
		owners[rec.StrongName] = rec.PermutationID
		strongNames[rec.PermutationID] = rec.StrongName
		result.Permutations++

		if !rec.SymbolMapsEnabled() {
			d.logger.DebugContext(ctx, "symbol map disabled",
				"permutation", rec.PermutationID, "strong_name", rec.StrongName)
			result.SymbolMapsSkipped++
			continue
		}

		buf.Reset()
		name := symbolmap.FileName(rec.StrongName)
		if err := writer.Write(&buf, rec); err != nil {
			d.logger.WarnContext(ctx, "failed to write symbol map", "path", name, "error", err)
			result.SymbolMapsSkipped++
			continue
		}
		out.Add(artifact.NewEmitted(name, buf.Bytes(), artifact.LegacyDeploy))
		result.SymbolMapsWritten++
	}
	return strongNames, nil
}

func (d *Driver) linkSourceMaps(ctx context.Context, out *artifact.Set, strongNames map[int]string, result *Result) {
	ctx, end := d.observer.Begin(ctx, PhaseSourceMaps)
	defer end()

	var resolver *resolve.Resolver
	if d.opts.EmbedContents {
		resolver = resolve.New(out, d.opts.Loader, d.opts.EmbedExclude)
	}

	for _, raw := range artifact.Find[*sourcemap.Artifact](out) {
		out.Remove(raw)

		strongName, ok := strongNames[raw.PermutationID]
		if !ok {
			d.logger.WarnContext(ctx, "source map for unknown permutation",
				"path", raw.PartialPath(), "permutation", raw.PermutationID)
			result.SourceMapsDropped++
			continue
		}
		path := sourcemap.OutputPath(strongName, raw.Fragment)

		found, ok := out.Take(edits.Key(strongName, raw.Fragment))
		editSet, isEdits := found.(*edits.Set)
		if !ok || !isEdits {
			out.Add(artifact.NewEmitted(path, raw.Contents, artifact.LegacyDeploy))
			result.SourceMapsPassedThrough++
			continue
		}

		if unapplied := editSet.Unapplied(); len(unapplied) > 0 {
			d.logger.DebugContext(ctx, "ignoring non-prefix edits",
				"path", path, "count", len(unapplied))
			result.UnappliedEdits += len(unapplied)
		}

		opts := sourcemap.MergeOptions{
			Path:          path,
			PrefixLines:   editSet.TotalPrefixLines(),
			SourceRoot:    raw.SourceRoot,
			EmbedContents: d.opts.EmbedContents,
		}
		if resolver != nil {
			opts.Resolver = resolver
		}
		merged, report, err := d.merger.Merge(ctx, raw.Contents, opts)
		if err != nil {
			d.logger.WarnContext(ctx, "can't write source map",
				"path", path, "fragment", raw.Fragment, "error", err)
			result.SourceMapsDropped++
			continue
		}
		out.Add(artifact.NewEmitted(path, merged, artifact.LegacyDeploy))
		result.SourceMapsMerged++
		result.SourcesEmbedded += len(report.Embedded)
		result.SourcesMissing += len(report.Missing)
	}
}
