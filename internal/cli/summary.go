package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/morozRed/maplink/internal/fileutil"
	"github.com/morozRed/maplink/internal/linker"
	"github.com/morozRed/maplink/internal/output"
	"github.com/morozRed/maplink/internal/symindex"
)

const maxListedPaths = 8

type LinkSummary struct {
	Mode        string              `json:"mode"`
	Module      string              `json:"module"`
	OutputDir   string              `json:"output_dir"`
	Batched     bool                `json:"batched"`
	Result      linker.Result       `json:"result"`
	Report      *output.Report      `json:"report,omitempty"`
	Differences []output.Difference `json:"differences,omitempty"`
	DurationMS  int64               `json:"duration_ms"`
}

// PrintLinkSummary writes summary as indented JSON or as a human table.
func PrintLinkSummary(w io.Writer, summary LinkSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(w, summary)
	}
	configureColor(w)

	fmt.Fprintf(w, "%s %s complete in %dms\n", summary.Mode, summary.Module, summary.DurationMS)
	fmt.Fprintf(w, "output: %s\n", summary.OutputDir)
	fmt.Fprintln(w, renderResultTable(summary.Result, summary.Batched))

	if summary.Report != nil {
		report := summary.Report
		fmt.Fprintf(w, "files: written=%d unchanged=%d (%s)\n",
			len(report.Written), len(report.Unchanged), humanize.Bytes(uint64(max(report.Bytes, 0))))
		if len(report.Written) > 0 {
			fmt.Fprintf(w, "written (%d): %s\n", len(report.Written), SummarizePaths(report.Written, maxListedPaths))
		}
		if len(report.Modified) > 0 {
			color.New(color.FgYellow).Fprintf(w, "overwritten local edits (%d): %s\n",
				len(report.Modified), SummarizePaths(report.Modified, maxListedPaths))
		}
		if len(report.Stale) > 0 {
			color.New(color.FgYellow).Fprintf(w, "stale outputs (%d): %s\n",
				len(report.Stale), SummarizePaths(report.Stale, maxListedPaths))
		}
	}

	if summary.Mode == "check" {
		if len(summary.Differences) == 0 {
			color.New(color.FgGreen).Fprintln(w, "outputs are up to date")
			return nil
		}
		color.New(color.FgRed).Fprintf(w, "%d output(s) differ\n", len(summary.Differences))
		for _, diff := range summary.Differences {
			if diff.Missing {
				color.New(color.FgRed).Fprintf(w, "missing: %s\n", diff.Path)
				continue
			}
			color.New(color.FgCyan).Fprintf(w, "--- %s\n", diff.Path)
			fmt.Fprint(w, diff.Diff)
		}
	}
	return nil
}

func renderResultTable(result linker.Result, batched bool) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"artifact", "outcome", "count"})
	tbl.AppendRow(table.Row{"permutations", "", result.Permutations})
	tbl.AppendRow(table.Row{"symbol maps", status(color.FgGreen, "written"), result.SymbolMapsWritten})
	if result.SymbolMapsSkipped > 0 {
		tbl.AppendRow(table.Row{"symbol maps", status(color.FgYellow, "skipped"), result.SymbolMapsSkipped})
	}
	if batched {
		tbl.AppendRow(table.Row{"source maps", status(color.FgCyan, "deferred"), result.SourceMapsDeferred})
		return tbl.Render()
	}
	tbl.AppendRow(table.Row{"source maps", status(color.FgGreen, "merged"), result.SourceMapsMerged})
	tbl.AppendRow(table.Row{"source maps", status(color.FgGreen, "passthrough"), result.SourceMapsPassedThrough})
	if result.SourceMapsDropped > 0 {
		tbl.AppendRow(table.Row{"source maps", status(color.FgRed, "dropped"), result.SourceMapsDropped})
	}
	if result.UnappliedEdits > 0 {
		tbl.AppendRow(table.Row{"edits", status(color.FgYellow, "unapplied"), result.UnappliedEdits})
	}
	if result.SourcesEmbedded+result.SourcesMissing > 0 {
		tbl.AppendRow(table.Row{"sources", status(color.FgGreen, "embedded"), result.SourcesEmbedded})
		tbl.AppendRow(table.Row{"sources", status(color.FgYellow, "missing"), result.SourcesMissing})
	}
	return tbl.Render()
}

func renderSymbolTable(entries []symindex.Entry) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false

	tbl.AppendHeader(table.Row{"strong name", "class", "member", "source", "fragment"})
	for _, e := range entries {
		member := e.MemberName
		if member == "" {
			member = e.JsniIdent
		}
		source := e.SourceURI
		if source != "" {
			source += ":" + strconv.Itoa(e.SourceLine)
		}
		tbl.AppendRow(table.Row{e.StrongName, e.ClassName, member, source, e.FragmentNumber})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d", len(entries))})
	return tbl.Render()
}

func status(attr color.Attribute, text string) string {
	return color.New(attr).Sprint(text)
}

// configureColor turns colour off unless w is a terminal and NO_COLOR is
// unset.
func configureColor(w io.Writer) {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		color.NoColor = true
		return
	}
	f, ok := w.(*os.File)
	color.NoColor = !ok || !term.IsTerminal(int(f.Fd()))
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}
