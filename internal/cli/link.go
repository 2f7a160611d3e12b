package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/morozRed/maplink/internal/config"
	"github.com/morozRed/maplink/internal/ignore"
	"github.com/morozRed/maplink/internal/linker"
	"github.com/morozRed/maplink/internal/manifest"
	"github.com/morozRed/maplink/internal/observability"
	"github.com/morozRed/maplink/internal/output"
	"github.com/morozRed/maplink/internal/resolve"
)

// RunLink loads a manifest, links it and persists (or checks) the outputs.
func RunLink(cmd *cobra.Command, args []string) error {
	started := time.Now()

	cfg, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyLinkOverrides(cmd, cfg); err != nil {
		return err
	}
	checkOnly, err := OptionalBoolFlag(cmd, "check")
	if err != nil {
		return err
	}
	asJSON, err := OptionalBoolFlag(cmd, "json")
	if err != nil {
		return err
	}

	logger, err := commandLogger(cmd, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	providers, err := observability.Init(ctx, observability.Config{
		ServiceVersion: cmd.Root().Version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		OTLPHeaders:    observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if shutdownErr := providers.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Warn("telemetry shutdown failed", "error", shutdownErr)
		}
	}()

	manifestPath := manifest.DefaultFile
	if len(args) > 0 {
		manifestPath = args[0]
	}
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}
	input, err := m.ArtifactSet(ctx, manifest.Options{
		ValidatePrefixes: cfg.Link.ValidatePrefixes,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	sourcePaths := cfg.Sources.Paths
	if len(sourcePaths) == 0 {
		sourcePaths = []string{m.Dir()}
	}
	driver := linker.New(linker.Options{
		EmbedContents: cfg.Link.EmbedSourceMapContents,
		Loader:        resolve.NewDirLoader(sourcePaths...),
		EmbedExclude:  ignore.NewMatcher(cfg.Sources.EmbedExclude),
		Logger:        logger,
		Observer:      observability.NewLinkObserver(providers.Tracer, providers.Metrics),
	})
	linked, result, err := driver.Link(ctx, input, cfg.Link.OnePermutation)
	if err != nil {
		return err
	}
	providers.Metrics.RecordLink(ctx, result)

	layout := output.Layout{Dir: cfg.Output.Dir, Module: m.Module}
	summary := LinkSummary{
		Mode:      "link",
		Module:    m.Module,
		OutputDir: cfg.Output.Dir,
		Batched:   !cfg.Link.OnePermutation,
		Result:    result,
	}

	var linkErr error
	if checkOnly {
		summary.Mode = "check"
		diffs, err := output.Check(linked, layout)
		if err != nil {
			return err
		}
		summary.Differences = diffs
		if len(diffs) > 0 {
			linkErr = fmt.Errorf("%w: %d file(s) differ", output.ErrCheckFailed, len(diffs))
		}
	} else {
		report, err := output.Persist(ctx, linked, layout, logger)
		if err != nil {
			return err
		}
		summary.Report = &report
	}

	if cfg.Telemetry.MetricsFile != "" {
		if err := providers.Metrics.WriteTextfile(cfg.Telemetry.MetricsFile); err != nil {
			linkErr = errors.Join(linkErr, err)
		}
	}

	summary.DurationMS = time.Since(started).Milliseconds()
	if err := PrintLinkSummary(cmd.OutOrStdout(), summary, asJSON); err != nil {
		return errors.Join(linkErr, err)
	}
	return linkErr
}

func loadCommandConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := OptionalStringFlag(cmd, "config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyLinkOverrides copies explicitly passed flags over configured values.
func applyLinkOverrides(cmd *cobra.Command, cfg *config.Config) error {
	out, err := OptionalStringFlag(cmd, "out")
	if err != nil {
		return err
	}
	if out != "" {
		cfg.Output.Dir = filepath.Clean(out)
	}

	if flagChanged(cmd, "batched") {
		batched, err := OptionalBoolFlag(cmd, "batched")
		if err != nil {
			return err
		}
		cfg.Link.OnePermutation = !batched
	}
	if flagChanged(cmd, "embed-sources") {
		embed, err := OptionalBoolFlag(cmd, "embed-sources")
		if err != nil {
			return err
		}
		cfg.Link.EmbedSourceMapContents = embed
	}

	metricsFile, err := OptionalStringFlag(cmd, "metrics-file")
	if err != nil {
		return err
	}
	if metricsFile != "" {
		cfg.Telemetry.MetricsFile = metricsFile
	}
	return nil
}

func commandLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return observability.NewLogger(cmd.ErrOrStderr(), level, cfg.Logging.Format), nil
}
