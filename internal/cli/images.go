package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/pkg/datafile"
	"github.com/fabrylab/clickpoints/pkg/types"
)

type imageRow struct {
	ID        int64      `json:"id"`
	SortIndex int        `json:"sort_index"`
	Filename  string     `json:"filename"`
	Path      string     `json:"path"`
	Frame     int        `json:"frame"`
	Layer     int64      `json:"layer"`
	Width     *int       `json:"width,omitempty"`
	Height    *int       `json:"height,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func newImagesCmd(a *app) *cobra.Command {
	var (
		layer      string
		start, end int
	)
	cmd := &cobra.Command{
		Use:   "images [file]",
		Short: "List the images of a project file in timeline order",
		Long: "List images ordered by sort index. --start and --end select the\n" +
			"half-open sort index interval [start, end); a negative end is open.",
		Args: usageArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.openProject(firstArg(args), datafile.ModeRead)
			if err != nil {
				return err
			}
			defer df.Close()

			q := types.ImageQuery{}
			if start > 0 || end >= 0 {
				q.FrameRange = types.Between(start, end)
			}
			if layer != "" {
				l, err := df.GetLayerByName(layer)
				if err != nil {
					return fmt.Errorf("layer %q: %w", layer, err)
				}
				q.Layers = []int64{l.ID}
			}

			var rows []imageRow
			for img, err := range df.GetImages(q) {
				if err != nil {
					return err
				}
				rows = append(rows, imageRow{
					ID: img.ID, SortIndex: img.SortIndex, Filename: img.Filename, Path: img.Path,
					Frame: img.Frame, Layer: img.LayerID, Width: img.Width, Height: img.Height, Timestamp: img.Timestamp,
				})
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, rows)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tSORT\tFILENAME\tPATH\tFRAME\tLAYER\tSIZE\tTIMESTAMP")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d\t%d\t%sx%s\t%s\n", r.ID, r.SortIndex, r.Filename, r.Path,
					r.Frame, r.Layer, formatOptionalInt(r.Width), formatOptionalInt(r.Height), formatTimestamp(r.Timestamp))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&layer, "layer", "", "only images of the named layer")
	cmd.Flags().IntVar(&start, "start", 0, "first sort index")
	cmd.Flags().IntVar(&end, "end", -1, "sort index after the last image")
	return cmd
}
