// Package resolve finds the text of original source files named by source
// maps, so it can be embedded into the linked map.
package resolve

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/morozRed/maplink/internal/artifact"
	"github.com/morozRed/maplink/internal/fileutil"
	"github.com/morozRed/maplink/internal/ignore"
)

// Loader reads a source file from the module's source path.
type Loader interface {
	Load(name string) (content string, found bool, err error)
}

// Resolver checks generated sources first and then the loader.
type Resolver struct {
	generated map[string]string
	loader    Loader
	exclude   *ignore.Matcher
}

// New indexes every Source-visibility emitted artifact in set. loader and
// exclude may be nil.
func New(set *artifact.Set, loader Loader, exclude *ignore.Matcher) *Resolver {
	r := &Resolver{
		generated: make(map[string]string),
		loader:    loader,
		exclude:   exclude,
	}
	if set != nil {
		for _, emitted := range artifact.Find[*artifact.Emitted](set) {
			if emitted.Visibility == artifact.Source {
				r.generated[emitted.PartialPath] = string(emitted.Contents)
			}
		}
	}
	return r
}

// Resolve returns the content of name. A file that exists nowhere, or that
// matches an exclusion pattern, is (_, false, nil).
func (r *Resolver) Resolve(name string) (string, bool, error) {
	if r.exclude.Match(name, false) {
		return "", false, nil
	}
	if content, ok := r.generated[strings.TrimPrefix(name, "/")]; ok {
		return content, true, nil
	}
	if r.loader == nil {
		return "", false, nil
	}
	return r.loader.Load(name)
}

// DirLoader searches an ordered list of root directories.
type DirLoader struct {
	roots []string
}

func NewDirLoader(roots ...string) *DirLoader {
	kept := make([]string, 0, len(roots))
	for _, root := range roots {
		if strings.TrimSpace(root) != "" {
			kept = append(kept, root)
		}
	}
	return &DirLoader{roots: fileutil.DedupeStrings(kept)}
}

// Load returns the first root's copy of name. Names that climb out of the
// root are never found.
func (l *DirLoader) Load(name string) (string, bool, error) {
	clean := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false, nil
	}
	for _, root := range l.roots {
		full := filepath.Join(root, filepath.FromSlash(clean))
		data, err := os.ReadFile(full)
		if err == nil {
			return string(data), true, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && isDirectory(full) {
			continue
		}
		return "", false, fmt.Errorf("failed to read %s: %w", full, err)
	}
	return "", false, nil
}

func isDirectory(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
