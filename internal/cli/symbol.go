package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morozRed/maplink/internal/fileutil"
	"github.com/morozRed/maplink/internal/manifest"
	"github.com/morozRed/maplink/internal/symindex"
)

// RunSymbol answers which original member a JavaScript name stands for,
// using the symbol maps of a previous link.
func RunSymbol(cmd *cobra.Command, args []string) error {
	jsName := strings.TrimSpace(args[0])
	if jsName == "" {
		return fmt.Errorf("symbol name must not be empty")
	}

	cfg, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := commandLogger(cmd, cfg)
	if err != nil {
		return err
	}

	dir, err := OptionalStringFlag(cmd, "dir")
	if err != nil {
		return err
	}
	if dir == "" {
		manifestPath, err := OptionalStringFlag(cmd, "manifest")
		if err != nil {
			return err
		}
		if manifestPath == "" {
			manifestPath = manifest.DefaultFile
		}
		m, err := manifest.Load(manifestPath)
		if err != nil {
			return fmt.Errorf("pass --dir or run next to a manifest: %w", err)
		}
		dir = filepath.Join(cfg.Output.Dir, "deploy", m.Module)
	}

	strongName, err := OptionalStringFlag(cmd, "strong-name")
	if err != nil {
		return err
	}
	rebuild, err := OptionalBoolFlag(cmd, "rebuild")
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to read --limit flag: %w", err)
	}
	if limit < 1 {
		return fmt.Errorf("--limit must be >= 1")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	index, stats, err := symindex.Open(ctx, dir, rebuild, logger)
	if err != nil {
		return err
	}
	defer index.Close()
	if stats.Skipped > 0 {
		logger.WarnContext(ctx, "some symbol maps were not indexed", "dir", dir, "skipped", stats.Skipped)
	}

	entries, err := index.Lookup(ctx, jsName, symindex.Query{StrongName: strongName, Limit: limit})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		return fileutil.WriteJSONL(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "no symbol named %q in %s\n", jsName, dir)
		return nil
	}
	fmt.Fprintln(out, renderSymbolTable(entries))
	return nil
}
