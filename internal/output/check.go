package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/morozRed/maplink/internal/artifact"
)

// ErrCheckFailed is returned when outputs on disk are out of date.
var ErrCheckFailed = errors.New("outputs are out of date")

// contextLines is how many unchanged lines surround each change in a diff.
const contextLines = 2

// Difference is one output whose disk copy does not match.
type Difference struct {
	Path    string `json:"path"`
	Missing bool   `json:"missing"`
	Diff    string `json:"diff,omitempty"`
}

// Check compares each emitted artifact in set with its file under layout
// without writing anything.
func Check(set *artifact.Set, layout Layout) ([]Difference, error) {
	var diffs []Difference
	for _, e := range artifact.Find[*artifact.Emitted](set) {
		rel, err := layout.RelPath(e)
		if err != nil {
			return nil, err
		}
		existing, err := os.ReadFile(layout.fullPath(rel))
		if errors.Is(err, fs.ErrNotExist) {
			diffs = append(diffs, Difference{Path: rel, Missing: true})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", rel, err)
		}
		if string(existing) == string(e.Contents) {
			continue
		}
		diffs = append(diffs, Difference{Path: rel, Diff: LineDiff(string(existing), string(e.Contents))})
	}
	return diffs, nil
}

// LineDiff renders a line-oriented diff of oldText to newText. Removed lines
// start with "-", added lines with "+", and context lines with a space.
func LineDiff(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for i, d := range diffs {
		chunk := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			writePrefixed(&out, "-", chunk)
		case diffmatchpatch.DiffInsert:
			writePrefixed(&out, "+", chunk)
		case diffmatchpatch.DiffEqual:
			writeContext(&out, chunk, i > 0, i < len(diffs)-1)
		}
	}
	return out.String()
}

func writeContext(out *strings.Builder, chunk []string, afterChange, beforeChange bool) {
	head, tail := 0, 0
	if afterChange {
		head = contextLines
	}
	if beforeChange {
		tail = contextLines
	}
	if head+tail >= len(chunk) {
		writePrefixed(out, " ", chunk)
		return
	}
	writePrefixed(out, " ", chunk[:head])
	fmt.Fprintf(out, "@@ %d unchanged lines @@\n", len(chunk)-head-tail)
	writePrefixed(out, " ", chunk[len(chunk)-tail:])
}

func writePrefixed(out *strings.Builder, prefix string, chunk []string) {
	for _, line := range chunk {
		out.WriteString(prefix)
		out.WriteString(line)
		out.WriteByte('\n')
	}
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
