package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/pkg/datafile"
)

const modulePath = "github.com/fabrylab/clickpoints"

// Version is overridden at link time by the build.
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the clickpoints version",
		Args:  usageArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "clickpoints %s\nmodule: %s\nschema version: %d\n",
				Version, modulePath, datafile.CurrentVersion)
			return nil
		},
	}
}
