package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/pkg/datafile"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [file]",
		Short: "Upgrade a project file to the current schema",
		Args:  usageArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.openProject(firstArg(args), datafile.ModeReadWrite)
			if err != nil {
				return err
			}
			defer df.Close()
			v, err := df.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", df.Path(), v)
			return nil
		},
	}
}
