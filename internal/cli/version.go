package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vasolab/vasostore/pkg/vaso"
)

const modulePath = "github.com/vasolab/vasostore"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vasostore version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "vasostore v%s\nmodule: %s\n", vaso.Version, modulePath)
			return nil
		},
	}
}
