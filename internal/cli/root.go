package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morozRed/maplink/internal/manifest"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "maplink",
		Short: "Link symbol maps and source maps for compiled JavaScript permutations",
		Long: `Maplink is the final linking step after a multi-permutation compile.
It writes one symbol map per permutation, shifts each fragment's source map
past the script prepended to it, and lays everything out for deployment.

Inputs are described by an artifacts.yaml manifest.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	linkCmd := &cobra.Command{
		Use:   "link [manifest]",
		Short: "Link the artifacts described by a manifest (default " + manifest.DefaultFile + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunLink,
	}
	linkCmd.Flags().String("config", "", "Path to maplink.yaml (default: ./maplink.yaml when present)")
	linkCmd.Flags().String("out", "", "Output directory (overrides output.dir)")
	linkCmd.Flags().Bool("batched", false, "Only write symbol maps; leave source maps for a later pass")
	linkCmd.Flags().Bool("embed-sources", false, "Embed original source text into merged source maps")
	linkCmd.Flags().Bool("check", false, "Compare outputs with disk and print differences without writing")
	linkCmd.Flags().Bool("json", false, "Print machine-readable link summary")
	linkCmd.Flags().String("metrics-file", "", "Write Prometheus text metrics to this file")

	symbolCmd := &cobra.Command{
		Use:   "symbol <jsName>",
		Short: "Look up which Java symbol an obfuscated JavaScript name came from",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSymbol,
	}
	symbolCmd.Flags().String("config", "", "Path to maplink.yaml (default: ./maplink.yaml when present)")
	symbolCmd.Flags().String("dir", "", "Directory holding symbol maps (default: <output.dir>/deploy/<module>)")
	symbolCmd.Flags().String("manifest", manifest.DefaultFile, "Manifest used to find the module name when --dir is not set")
	symbolCmd.Flags().String("strong-name", "", "Only match symbols from this permutation")
	symbolCmd.Flags().Bool("rebuild", false, "Rebuild the symbol index before querying")
	symbolCmd.Flags().Bool("json", false, "Print matches as JSON lines")
	symbolCmd.Flags().Int("limit", 50, "Maximum number of matches to return")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "maplink %s\n", version)
		},
	}

	rootCmd.AddCommand(
		linkCmd,
		symbolCmd,
		versionCmd,
	)

	return rootCmd
}
