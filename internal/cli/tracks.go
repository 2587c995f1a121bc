package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fabrylab/clickpoints/pkg/datafile"
	"github.com/fabrylab/clickpoints/pkg/types"
)

type trackRow struct {
	ID     int64  `json:"id"`
	TypeID int64  `json:"type"`
	Frames []int  `json:"frames"`
	Text   string `json:"text,omitempty"`
	Hidden bool   `json:"hidden"`
}

func newTracksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List and export tracks",
	}
	cmd.AddCommand(newTracksListCmd(a))
	cmd.AddCommand(newTracksExportCmd(a))
	return cmd
}

func newTracksListCmd(a *app) *cobra.Command {
	var typeNames []string
	cmd := &cobra.Command{
		Use:   "list [file]",
		Short: "List tracks with the sort indices they cover",
		Args:  usageArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.openProject(firstArg(args), datafile.ModeRead)
			if err != nil {
				return err
			}
			defer df.Close()

			tracks, err := types.Collect(df.GetTracks(types.TrackQuery{TypeNames: typeNames}))
			if err != nil {
				return err
			}
			rows := make([]trackRow, 0, len(tracks))
			for _, t := range tracks {
				frames, err := df.TrackFrames(t.ID)
				if err != nil {
					return err
				}
				rows = append(rows, trackRow{ID: t.ID, TypeID: t.TypeID, Frames: frames, Text: t.Text, Hidden: t.Hidden})
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, rows)
			}
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tTYPE\tMARKERS\tFIRST\tLAST\tTEXT")
			for _, r := range rows {
				first, last := "-", "-"
				if len(r.Frames) > 0 {
					first, last = strconv.Itoa(r.Frames[0]), strconv.Itoa(r.Frames[len(r.Frames)-1])
				}
				fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n", r.ID, r.TypeID, len(r.Frames), first, last, r.Text)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringSliceVar(&typeNames, "type", nil, "only tracks of these type names")
	return cmd
}

func newTracksExportCmd(a *app) *cobra.Command {
	var (
		typeNames []string
		offset    bool
		output    string
	)
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export tracks as a dense CSV of track, image, x, y",
		Long: "Write one row per track and image of the default layer. Images a\n" +
			"track has no marker on are written as 0, 0.",
		Args: usageArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.openProject(firstArg(args), datafile.ModeRead)
			if err != nil {
				return err
			}
			defer df.Close()

			arr, err := df.GetTracksNanPadded(types.TrackArrayQuery{TypeNames: typeNames, ApplyOffset: offset})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := writeTrackCSV(w, arr); err != nil {
				return err
			}
			a.log.Info("exported tracks", "tracks", len(arr.TrackIDs), "images", len(arr.ImageIDs))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&typeNames, "type", nil, "only tracks of these type names")
	cmd.Flags().BoolVar(&offset, "offset", false, "apply image offsets to the coordinates")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func writeTrackCSV(w io.Writer, arr *types.TrackArray) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"track", "image", "x", "y"}); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for t, trackID := range arr.TrackIDs {
		for i, imageID := range arr.ImageIDs {
			p := arr.At(t, i)
			rec := []string{
				strconv.FormatInt(trackID, 10),
				strconv.FormatInt(imageID, 10),
				strconv.FormatFloat(p.X, 'g', -1, 64),
				strconv.FormatFloat(p.Y, 'g', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
