// Package output persists emitted artifacts into a deployable directory
// tree and compares a link result against what is already on disk.
package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/morozRed/maplink/internal/artifact"
	"github.com/morozRed/maplink/internal/fileutil"
	"github.com/morozRed/maplink/internal/state"
)

// ErrUnsafePath is returned for artifact paths that would land outside the
// output directory.
var ErrUnsafePath = errors.New("artifact path escapes output directory")

const (
	deployDir  = "deploy"
	privateDir = "private"
	sourceDir  = "src"
)

// Layout maps visibilities onto subdirectories of Dir.
type Layout struct {
	Dir    string
	Module string
}

// RelPath is the slash-separated location of e below Dir.
func (l Layout) RelPath(e *artifact.Emitted) (string, error) {
	clean := path.Clean(strings.TrimPrefix(e.PartialPath, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, e.PartialPath)
	}

	switch e.Visibility {
	case artifact.Deploy, artifact.LegacyDeploy:
		return path.Join(deployDir, l.Module, clean), nil
	case artifact.Private:
		return path.Join(privateDir, clean), nil
	case artifact.Source:
		return path.Join(sourceDir, clean), nil
	default:
		return clean, nil
	}
}

func (l Layout) fullPath(rel string) string {
	return filepath.Join(l.Dir, filepath.FromSlash(rel))
}

// Report summarizes a Persist call. Paths are relative to the output
// directory.
type Report struct {
	Written   []string `json:"written"`
	Unchanged []string `json:"unchanged"`
	// Modified lists outputs edited on disk since the previous run; they
	// are overwritten.
	Modified []string `json:"modified"`
	// Stale lists outputs of the previous run that this run did not produce.
	Stale []string `json:"stale"`
	Bytes int64    `json:"bytes"`
}

// Persist writes every emitted artifact in set. Any failure to create or
// write a destination aborts the whole call.
func Persist(ctx context.Context, set *artifact.Set, layout Layout, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var report Report

	st, err := state.Load(layout.Dir)
	if err != nil {
		return report, fmt.Errorf("failed to load output state: %w", err)
	}

	current := make(map[string]bool)
	for _, e := range artifact.Find[*artifact.Emitted](set) {
		rel, err := layout.RelPath(e)
		if err != nil {
			return report, err
		}
		full := layout.fullPath(rel)
		current[rel] = true

		if prior, ok := st.GetOutput(rel); ok {
			onDisk, err := fileutil.HashFile(full)
			if err == nil && onDisk != prior.Hash {
				logger.WarnContext(ctx, "overwriting output modified since last link", "path", rel)
				report.Modified = append(report.Modified, rel)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return report, fmt.Errorf("failed to inspect %s: %w", rel, err)
			}
		}

		wrote, err := fileutil.WriteIfChangedTracked(full, e.Contents)
		if err != nil {
			return report, fmt.Errorf("failed to persist %s: %w", rel, err)
		}
		if wrote {
			report.Written = append(report.Written, rel)
			logger.DebugContext(ctx, "wrote output", "path", rel, "bytes", len(e.Contents))
		} else {
			report.Unchanged = append(report.Unchanged, rel)
		}
		report.Bytes += int64(len(e.Contents))

		st.SetOutput(rel, state.Output{
			Hash:       fileutil.HashBytes(e.Contents),
			Visibility: e.Visibility.String(),
			Size:       len(e.Contents),
		})
	}

	report.Stale = st.StaleOutputs(current)
	for _, rel := range report.Stale {
		st.Forget(rel)
	}

	st.Module = layout.Module
	if err := st.Save(layout.Dir); err != nil {
		return report, fmt.Errorf("failed to save output state: %w", err)
	}
	return report, nil
}
