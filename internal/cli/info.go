package cli

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/pkg/datafile"
	"github.com/fabrylab/clickpoints/pkg/types"
)

type projectInfo struct {
	Path      string         `json:"path"`
	Version   int            `json:"version"`
	ProjectID string         `json:"project_id,omitempty"`
	Counts    map[string]int `json:"counts"`
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info [file]",
		Short: "Show schema version and row counts of a project file",
		Args:  usageArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.openProject(firstArg(args), datafile.ModeRead)
			if err != nil {
				return err
			}
			defer df.Close()

			info := projectInfo{Path: df.Path()}
			if info.Version, err = df.Version(); err != nil {
				return err
			}
			// Read-only files without an identity report none.
			id, err := df.ProjectID()
			switch {
			case err == nil:
				info.ProjectID = id.String()
			case !errors.Is(err, types.ErrReadOnly):
				return err
			}
			if info.Counts, err = df.TableCounts(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, info)
			}
			fmt.Fprintf(out, "path:     %s\nversion:  %d\n", info.Path, info.Version)
			if info.ProjectID != "" {
				fmt.Fprintf(out, "project:  %s\n", info.ProjectID)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "TABLE\tROWS")
			names := make([]string, 0, len(info.Counts))
			for name := range info.Counts {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintf(tw, "%s\t%d\n", name, info.Counts[name])
			}
			return tw.Flush()
		},
	}
}
