package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vasolab/vasostore/pkg/vaso"
)

func newMigrateCmd() *cobra.Command {
	var toBundle bool

	cmd := &cobra.Command{
		Use:   "migrate <path>",
		Short: "Migrate a legacy archive forward",
		Long: "Rewrite a legacy zip archive as a single-file store, keeping the original\n" +
			"at <path>.bak. With --to-bundle the result is converted into a snapshot\n" +
			"bundle as well. Already-migrated projects are left alone.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := engineConfig()
			if err != nil {
				return err
			}
			log := newLogger()

			if toBundle {
				dir, err := vaso.MigrateToBundle(args[0], cfg, log)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "bundle: %s\n", dir)
				return nil
			}
			if err := vaso.MigrateLegacy(args[0], cfg, log); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated: %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&toBundle, "to-bundle", false, "convert the result into a snapshot bundle")
	return cmd
}
