package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	var database string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long: "Create the configuration directory and a default config.yaml.\n" +
			"An existing config.yaml is left untouched.",
		Args: usageArgs(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := defaultConfig()
			if database != "" {
				abs, err := filepath.Abs(database)
				if err != nil {
					return fmt.Errorf("resolve database: %w", err)
				}
				cfg.Database = abs
			}
			path := a.configPath()
			written, err := writeConfigIfMissing(path, cfg)
			if err != nil {
				return err
			}
			if written {
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "kept existing", path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&database, "database", "", "project file used when a command gets none")
	return cmd
}
