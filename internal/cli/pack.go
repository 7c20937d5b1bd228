package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vasolab/vasostore/pkg/vaso"
)

func newPackCmd() *cobra.Command {
	var thresholdMB int64

	cmd := &cobra.Command{
		Use:   "pack <project> <archive>",
		Short: "Write a portable zip of a single-file project",
		Long: "Copy the project into a zip archive. External assets at or below the\n" +
			"embed threshold are pulled into the store; larger ones travel as loose\n" +
			"content-addressed files under assets/.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig()
			if err != nil {
				return err
			}
			if thresholdMB > 0 {
				cfg.EmbedThresholdMB = thresholdMB
			}
			if err := vaso.Pack(args[0], args[1], cfg, newLogger()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed: %s\n", args[1])
			return nil
		},
	}
	cmd.Flags().Int64Var(&thresholdMB, "embed-threshold", 0, "embed assets at or below this size in MB (default from config)")
	return cmd
}

func newUnpackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <archive> <dir>",
		Short: "Extract a packed project zip",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectPath, err := vaso.Unpack(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project: %s\n", projectPath)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <bundle> <file>",
		Short: "Export a bundle's current state as a single-file project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig()
			if err != nil {
				return err
			}
			if err := vaso.ExportSingleFile(args[0], args[1], cfg, newLogger()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported: %s\n", args[1])
			return nil
		},
	}
}
