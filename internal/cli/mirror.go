package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/internal/mirror"
	"github.com/fabrylab/clickpoints/pkg/datafile"
)

func newMirrorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy annotations into the shared MySQL database",
	}
	cmd.AddCommand(newMirrorPushCmd(a))
	return cmd
}

func newMirrorPushCmd(a *app) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "push [file]",
		Short: "Upsert the annotations of a project file and prune deleted ones",
		Args:  usageArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				dsn = a.cfg.GetString(cfgKeyMirrorDSN)
			}
			if dsn == "" {
				return fmt.Errorf("%w: no mirror dsn (set --dsn, %s in config.yaml or %s_MIRROR_DSN)", errUsage, cfgKeyMirrorDSN, envPrefix)
			}

			// The project id is assigned on first push, so the file must be writable.
			df, err := a.openProject(firstArg(args), datafile.ModeReadWrite)
			if err != nil {
				return err
			}
			defer df.Close()

			m, err := mirror.Open(dsn, a.log)
			if err != nil {
				return err
			}
			defer m.Close()

			res, err := m.Push(cmd.Context(), df)
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project %s: %d annotations mirrored, %d removed\n", res.ProjectID, res.Upserted, res.Removed)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "MySQL DSN, e.g. user:pass@tcp(host:3306)/clickpoints?parseTime=true")
	return cmd
}
