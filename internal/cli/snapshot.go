package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vasolab/vasostore/pkg/vaso"
)

func newSnapshotCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "snapshot <bundle>",
		Short: "Publish a checkpoint snapshot, or list existing ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if list {
				snaps, err := vaso.ListSnapshots(args[0])
				if err != nil {
					return err
				}
				for _, s := range snaps {
					marker := " "
					if s.Current {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %s  %d bytes  %s\n",
						marker, s.Name, s.Bytes, s.ModTime.UTC().Format("2006-01-02 15:04:05"))
				}
				return nil
			}

			if err := vaso.Snapshot(args[0], cfg, newLogger()); err != nil {
				return err
			}
			fmt.Fprintln(out, "snapshot published")
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list snapshots instead of publishing one")
	return cmd
}

func newPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune <bundle>",
		Short: "Delete old snapshots, keeping the newest ones and HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig()
			if err != nil {
				return err
			}
			if keep == 0 {
				keep = cfg.KeepSnapshots
			}
			deleted, err := vaso.PruneSnapshots(args[0], keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d snapshot(s)\n", len(deleted))
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "snapshots to retain (default from config)")
	return cmd
}
