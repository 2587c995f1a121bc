package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/pkg/datafile"
)

type optionRow struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Value    string `json:"value"`
	Default  string `json:"default"`
	Stored   bool   `json:"stored"`
}

func newOptionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "option",
		Short: "Read and change project options",
	}
	cmd.AddCommand(newOptionListCmd(a), newOptionGetCmd(a), newOptionSetCmd(a), newOptionResetCmd(a))
	return cmd
}

// splitFileArgs separates an optional leading project file from n trailing arguments.
func splitFileArgs(args []string, n int) (string, []string) {
	if len(args) > n {
		return args[0], args[1:]
	}
	return "", args
}

func newOptionListCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list [file]",
		Short: "List options with their current values",
		Args:  usageArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.openProject(firstArg(args), datafile.ModeRead)
			if err != nil {
				return err
			}
			defer df.Close()

			var rows []optionRow
			for _, o := range df.Options() {
				if o.Spec.Hidden && !all {
					continue
				}
				rows = append(rows, optionRow{
					Key: o.Spec.Key, Category: o.Spec.Category, Kind: o.Spec.Kind.String(),
					Value: o.Value.Format(), Default: o.Spec.Default.Format(), Stored: o.Stored,
				})
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, rows)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "CATEGORY\tKEY\tKIND\tVALUE\tDEFAULT")
			for _, r := range rows {
				marker := ""
				if r.Stored {
					marker = " *"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s%s\t%s\n", r.Category, r.Key, r.Kind, r.Value, marker, r.Default)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include hidden options")
	return cmd
}

func newOptionGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get [file] <key>",
		Short: "Print the value of an option",
		Args:  usageArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, rest := splitFileArgs(args, 1)
			df, err := a.openProject(file, datafile.ModeRead)
			if err != nil {
				return err
			}
			defer df.Close()

			v, err := df.GetOption(rest[0])
			if err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"key": rest[0], "value": v.Format()})
			}
			fmt.Fprintln(cmd.OutOrStdout(), v.Format())
			return nil
		},
	}
}

func newOptionSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set [file] <key> <value>",
		Short: "Change an option; setting the default removes the stored value",
		Args:  usageArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, rest := splitFileArgs(args, 2)
			df, err := a.openProject(file, datafile.ModeReadWrite)
			if err != nil {
				return err
			}
			defer df.Close()

			if err := df.SetOptionString(rest[0], rest[1]); err != nil {
				return err
			}
			v, err := df.GetOption(rest[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", rest[0], v.Format())
			return nil
		},
	}
}

func newOptionResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [file] <key>",
		Short: "Restore the default value of an option",
		Args:  usageArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, rest := splitFileArgs(args, 1)
			df, err := a.openProject(file, datafile.ModeReadWrite)
			if err != nil {
				return err
			}
			defer df.Close()
			return df.ResetOption(rest[0])
		},
	}
}
