package sqlite

import (
	"fmt"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// GetTracksNanPadded exports the selected tracks as a dense
// [track, image, 2] array over the images of one layer in timeline order.
// Images without a marker of a track hold (0, 0), not NaN, to stay
// compatible with existing analysis scripts.
//
// The query walks markers ordered by image, which matches the per-image plan
// for any ratio of tracks to images.
func (df *DataFile) GetTracksNanPadded(q types.TrackArrayQuery) (*types.TrackArray, error) {
	layer, err := df.layerOrDefault(df.db, q.Layer)
	if err != nil {
		return nil, err
	}

	tq := types.TrackQuery{IDs: q.Tracks, Types: q.Types, TypeNames: q.TypeNames}
	tracks, err := types.Collect(df.GetTracks(tq))
	if err != nil {
		return nil, fmt.Errorf("selecting tracks: %w", err)
	}
	images, err := types.Collect(df.GetImages(types.ImageQuery{
		Layers:     []int64{layer},
		FrameRange: q.FrameRange,
		Skip:       q.Skip,
	}))
	if err != nil {
		return nil, fmt.Errorf("selecting images: %w", err)
	}

	trackIDs := make([]int64, len(tracks))
	row := make(map[int64]int, len(tracks))
	for i, t := range tracks {
		trackIDs[i] = t.ID
		row[t.ID] = i
	}
	imageIDs := make([]int64, len(images))
	col := make(map[int64]int, len(images))
	for i, img := range images {
		imageIDs[i] = img.ID
		col[img.ID] = i
	}
	out := types.NewTrackArray(trackIDs, imageIDs)
	if len(tracks) == 0 || len(images) == 0 {
		return out, nil
	}

	f := trackFilter(tq)
	f.add("i.layer = ?", layer)
	within(f, "i.sort_index", q.FrameRange)
	rows, err := df.db.Query(`SELECT m.track, m.image, m.x, m.y, COALESCE(o.x, 0), COALESCE(o.y, 0)
FROM marker m JOIN track t ON t.id = m.track JOIN image i ON i.id = m.image
LEFT JOIN "offset" o ON o.image = m.image`+f.where()+" ORDER BY i.sort_index, m.track", f.args...)
	if err != nil {
		return nil, fmt.Errorf("reading track markers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var track, image int64
		var p, off types.Point
		if err := rows.Scan(&track, &image, &p.X, &p.Y, &off.X, &off.Y); err != nil {
			return nil, err
		}
		t, ok := row[track]
		if !ok {
			continue
		}
		i, ok := col[image]
		if !ok {
			continue
		}
		if q.ApplyOffset {
			p = p.Add(off)
		}
		out.Set(t, i, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
