package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/internal/paths"
	"github.com/fabrylab/clickpoints/pkg/datafile"
)

func newCreateCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "create <file>",
		Short: "Create an empty project file",
		Args:  usageArgs(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := paths.ResolveDatabase(args[0], "", "")
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%w: %s exists (use --force to replace it)", errUsage, path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", path, err)
			}

			df, err := a.openProject(path, datafile.ModeWrite)
			if err != nil {
				return err
			}
			defer df.Close()
			id, err := df.ProjectID()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (schema %d, project %s)\n", df.Path(), datafile.CurrentVersion, id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing file")
	return cmd
}
