package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/pkg/datafile"
	"github.com/fabrylab/clickpoints/pkg/types"
)

type markerRow struct {
	ID        int64   `json:"id"`
	ImageID   int64   `json:"image"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Type      string  `json:"type,omitempty"`
	TrackID   *int64  `json:"track,omitempty"`
	Processed bool    `json:"processed"`
	Text      string  `json:"text,omitempty"`
}

func newMarkersCmd(a *app) *cobra.Command {
	var (
		typeNames []string
		frames    []int
	)
	cmd := &cobra.Command{
		Use:   "markers [file]",
		Short: "List point markers",
		Args:  usageArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.openProject(firstArg(args), datafile.ModeRead)
			if err != nil {
				return err
			}
			defer df.Close()

			names := make(map[int64]string)
			for mt, err := range df.GetMarkerTypes(types.MarkerTypeQuery{}) {
				if err != nil {
					return err
				}
				names[mt.ID] = mt.Name
			}

			q := types.MarkerQuery{}
			q.TypeNames = typeNames
			q.Frames = frames
			var rows []markerRow
			for m, err := range df.GetMarkers(q) {
				if err != nil {
					return err
				}
				r := markerRow{ID: m.ID, ImageID: m.ImageID, X: m.X, Y: m.Y, TrackID: m.TrackID, Processed: m.Processed, Text: m.Text}
				if m.TypeID != nil {
					r.Type = names[*m.TypeID]
				}
				rows = append(rows, r)
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, rows)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tIMAGE\tX\tY\tTYPE\tTRACK\tTEXT")
			for _, r := range rows {
				fmt.Fprintf(tw, "%d\t%d\t%g\t%g\t%s\t%s\t%s\n", r.ID, r.ImageID, r.X, r.Y, r.Type, formatOptionalID(r.TrackID), r.Text)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&typeNames, "type", nil, "only markers of these type names")
	cmd.Flags().IntSliceVar(&frames, "frame", nil, "only markers on images with these sort indices")
	return cmd
}
