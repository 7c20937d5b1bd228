package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vasolab/vasostore/pkg/vaso"
)

func newRecoverCmd() *cobra.Command {
	var discard bool

	cmd := &cobra.Command{
		Use:   "recover <project>",
		Short: "Restore a project from its autosave sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			out := cmd.OutOrStdout()

			if discard {
				if err := vaso.DiscardAutosave(path); err != nil {
					return err
				}
				fmt.Fprintln(out, "autosave discarded")
				return nil
			}

			if !vaso.HasAutosave(path) {
				return fmt.Errorf("no autosave found for %s", path)
			}
			cfg, err := engineConfig()
			if err != nil {
				return err
			}
			p, err := vaso.RestoreAutosave(path, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "recovered: %s (%d experiments)\n", p.Name, len(p.Experiments))
			return nil
		},
	}
	cmd.Flags().BoolVar(&discard, "discard", false, "delete the autosave instead of restoring it")
	return cmd
}
