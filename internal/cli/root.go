// Package cli implements the vasostore command-line interface. Commands are
// thin wrappers over pkg/vaso; all persistence logic lives in the library.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	jsonMode  bool
	verbose   bool
}

var flags rootFlags

// NewRootCmd creates the top-level "vasostore" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vasostore",
		Short: "Crash-safe persistence for vascular analysis projects",
		Long: "Vasostore manages vascular analysis project files: single-file stores,\n" +
			"append-only snapshot bundles, portable archives, and legacy-format migration.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInfoCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSnapshotCmd())
	root.AddCommand(newPruneCmd())
	root.AddCommand(newPackCmd())
	root.AddCommand(newUnpackCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newRecoverCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUserError)
	}
}

// newLogger builds the engine logger. Quiet unless --verbose.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
