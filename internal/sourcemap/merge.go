package sourcemap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrResolverRequired is returned when embedding is requested without a resolver.
var ErrResolverRequired = errors.New("embedding source contents requires a resolver")

// mergedFile is the "file" value of every merged map.
const mergedFile = "sourceMap"

// ContentResolver looks up the text of an original source file. A missing
// file is (_, false, nil); err is reserved for read failures.
type ContentResolver interface {
	Resolve(name string) (content string, found bool, err error)
}

// MergeOptions drives one merge.
type MergeOptions struct {
	// Path names the output in log records.
	Path          string
	PrefixLines   int
	SourceRoot    string
	EmbedContents bool
	Resolver      ContentResolver
}

// MergeReport lists what happened to each referenced source when embedding.
type MergeReport struct {
	Embedded []string
	Missing  []string
}

// Merger shifts a raw map by prefix lines and optionally embeds sources.
type Merger struct {
	logger *slog.Logger
}

func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Merger{logger: logger}
}

// Merge rewrites raw with every generated line moved down by
// opts.PrefixLines. A source whose content cannot be resolved is logged and
// left without content; only parse and encode failures are returned.
func (m *Merger) Merge(ctx context.Context, raw []byte, opts MergeOptions) ([]byte, MergeReport, error) {
	var report MergeReport
	if opts.PrefixLines < 0 {
		return nil, report, fmt.Errorf("negative prefix line count %d", opts.PrefixLines)
	}
	if opts.EmbedContents && opts.Resolver == nil {
		return nil, report, ErrResolverRequired
	}

	parsed, err := Parse(raw)
	if err != nil {
		return nil, report, err
	}

	gen := NewGenerator()
	gen.SetStartingPosition(opts.PrefixLines, 0)
	gen.MergeSection(parsed, NewValueWins)
	if opts.SourceRoot != "" {
		gen.SetSourceRoot(opts.SourceRoot)
	}

	if opts.EmbedContents {
		for _, name := range parsed.OriginalSources() {
			content, found, err := opts.Resolver.Resolve(name)
			switch {
			case err != nil:
				m.logger.WarnContext(ctx, "failed to read source content",
					"path", opts.Path, "source", name, "error", err)
				report.Missing = append(report.Missing, name)
			case !found:
				m.logger.WarnContext(ctx, "source content not found",
					"path", opts.Path, "source", name)
				report.Missing = append(report.Missing, name)
			default:
				gen.AddSourcesContent(name, content)
				report.Embedded = append(report.Embedded, name)
			}
		}
	}

	out, err := gen.Bytes(mergedFile)
	if err != nil {
		return nil, report, fmt.Errorf("failed to encode source map: %w", err)
	}
	return out, report, nil
}
