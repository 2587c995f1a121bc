// This file implements tracks: plain accessors, the per-track marker views
// and the split and merge operations.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"gonum.org/v1/gonum/floats"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// maxConflictIDs bounds the image ids reported by a merge conflict.
const maxConflictIDs = 10

const selectTrack = "SELECT t.id, t.type, t.style, t.text, t.hidden FROM track t"

func scanTrack(s scanner) (*types.Track, error) {
	t := &types.Track{}
	var style, text sql.NullString
	if err := s.Scan(&t.ID, &t.TypeID, &style, &text, &t.Hidden); err != nil {
		return nil, err
	}
	t.Style = style.String
	t.Text = text.String
	return t, nil
}

// GetTrack returns the track with the given id.
func (df *DataFile) GetTrack(id int64) (*types.Track, error) {
	t, err := df.lookupTrack(df.db, id)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (df *DataFile) lookupTrack(q querier, id int64) (*types.Track, error) {
	return scanTrack(q.QueryRow(selectTrack+" WHERE t.id = ?", id))
}

func trackFilter(q types.TrackQuery) *filter {
	f := &filter{}
	in(f, "t.id", q.IDs)
	in(f, "t.type", q.Types)
	inSubquery(f, "t.type", "markertype", "name", q.TypeNames)
	in(f, "t.text", q.Texts)
	flag(f, "t.hidden", q.Hidden)
	return f
}

// GetTracks returns the matching tracks ordered by id.
func (df *DataFile) GetTracks(q types.TrackQuery) iter.Seq2[*types.Track, error] {
	f := trackFilter(q)
	return queryRows(df.db, selectTrack+f.where()+" ORDER BY t.id", f.args, scanTrack)
}

// SetTrack inserts or updates a track. The type must have track mode. On
// update a zero type, style or text keeps the stored value while hidden is
// always written. A new track stays empty until a marker is written with it.
func (df *DataFile) SetTrack(t *types.Track) (*types.Track, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	tx, err := df.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	out, err := df.writeTrack(tx, t)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing track: %w", err)
	}
	return out, nil
}

func (df *DataFile) writeTrack(tx *sql.Tx, t *types.Track) (*types.Track, error) {
	w := *t
	if w.ID != 0 {
		existing, err := df.lookupTrack(tx, w.ID)
		switch {
		case err == nil:
			if w.TypeID == 0 {
				w.TypeID = existing.TypeID
			}
			if w.Style == "" {
				w.Style = existing.Style
			}
			if w.Text == "" {
				w.Text = existing.Text
			}
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("looking up track %d: %w", w.ID, err)
		}
	}
	if w.TypeID == 0 {
		return nil, fmt.Errorf("%w: track needs a type", types.ErrInvalidData)
	}
	if _, err := df.checkType(tx, w.TypeID, types.ModeTrack); err != nil {
		return nil, err
	}
	res, err := tx.Exec(`INSERT INTO track (id, type, style, text, hidden) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET type = excluded.type, style = excluded.style, text = excluded.text, hidden = excluded.hidden`,
		zeroNull(w.ID), w.TypeID, nullString(w.Style), nullString(w.Text), w.Hidden)
	if err != nil {
		return nil, fmt.Errorf("persisting track: %w", translate(err))
	}
	if w.ID == 0 {
		if w.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}
	return df.lookupTrack(tx, w.ID)
}

// DeleteTracks removes the matching tracks together with their markers.
func (df *DataFile) DeleteTracks(q types.TrackQuery) (int64, error) {
	f := trackFilter(q)
	return df.deleteWhere("track", "SELECT t.id FROM track t"+f.where(), f.args)
}

// TrackMarkers returns the markers of a track in timeline order.
func (df *DataFile) TrackMarkers(trackID int64) iter.Seq2[*types.Marker, error] {
	return df.GetMarkers(types.MarkerQuery{Tracks: []int64{trackID}})
}

// TrackPoints returns the positions of a track in timeline order.
func (df *DataFile) TrackPoints(trackID int64) ([]types.TrackPoint, error) {
	rows, err := df.db.Query(`SELECT m.id, m.image, i.sort_index, m.x, m.y FROM marker m
JOIN image i ON i.id = m.image WHERE m.track = ? ORDER BY i.sort_index, m.id`, trackID)
	if err != nil {
		return nil, fmt.Errorf("reading track %d: %w", trackID, err)
	}
	defer rows.Close()
	var out []types.TrackPoint
	for rows.Next() {
		var p types.TrackPoint
		if err := rows.Scan(&p.MarkerID, &p.ImageID, &p.SortIndex, &p.X, &p.Y); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TrackFrames returns the sort indices of the images a track has markers on.
func (df *DataFile) TrackFrames(trackID int64) ([]int, error) {
	points, err := df.TrackPoints(trackID)
	if err != nil {
		return nil, err
	}
	frames := make([]int, len(points))
	for i, p := range points {
		frames[i] = p.SortIndex
	}
	return frames, nil
}

// SplitTrack moves every marker of the track that lies after the given
// marker on the timeline to a new track of the same type and returns it.
func (df *DataFile) SplitTrack(trackID, markerID int64) (*types.Track, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	tx, err := df.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	track, err := df.lookupTrack(tx, trackID)
	if err != nil {
		return nil, doesNotExist(err, "track %d", trackID)
	}
	var sortIndex int
	var owner sql.NullInt64
	err = tx.QueryRow("SELECT i.sort_index, m.track FROM marker m JOIN image i ON i.id = m.image WHERE m.id = ?",
		markerID).Scan(&sortIndex, &owner)
	if err != nil {
		return nil, doesNotExist(err, "marker %d", markerID)
	}
	if !owner.Valid || owner.Int64 != trackID {
		return nil, fmt.Errorf("%w: marker %d is not part of track %d", types.ErrInvalidData, markerID, trackID)
	}

	var after int
	err = tx.QueryRow(`SELECT COUNT(*) FROM marker m JOIN image i ON i.id = m.image
WHERE m.track = ? AND i.sort_index > ?`, trackID, sortIndex).Scan(&after)
	if err != nil {
		return nil, err
	}
	if after == 0 {
		return nil, fmt.Errorf("%w: no markers of track %d after marker %d", types.ErrInvalidData, trackID, markerID)
	}

	split, err := df.writeTrack(tx, &types.Track{TypeID: track.TypeID, Style: track.Style, Text: track.Text, Hidden: track.Hidden})
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(`UPDATE marker SET track = ? WHERE track = ?
AND image IN (SELECT id FROM image WHERE sort_index > ?)`, split.ID, trackID, sortIndex)
	if err != nil {
		return nil, fmt.Errorf("moving markers to track %d: %w", split.ID, translate(err))
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing split: %w", err)
	}
	df.logger.Debug("split track", "track", trackID, "new_track", split.ID, "moved", after)
	return split, nil
}

// MergeTracks moves the markers of track b into track a and removes b.
// Markers of both tracks on the same image fail the merge with a
// MergeConflictError in MergeStrict mode; MergeAverage keeps one marker at the
// mean position instead.
func (df *DataFile) MergeTracks(a, b int64, mode types.MergeMode) (*types.Track, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	if a == b {
		return nil, fmt.Errorf("%w: cannot merge track %d with itself", types.ErrInvalidData, a)
	}
	tx, err := df.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	target, err := df.lookupTrack(tx, a)
	if err != nil {
		return nil, doesNotExist(err, "track %d", a)
	}
	if _, err := df.lookupTrack(tx, b); err != nil {
		return nil, doesNotExist(err, "track %d", b)
	}

	overlaps, err := trackOverlaps(tx, a, b)
	if err != nil {
		return nil, err
	}
	if len(overlaps) > 0 {
		if mode != types.MergeAverage {
			conflict := &types.MergeConflictError{TrackA: a, TrackB: b}
			for _, o := range overlaps[:min(len(overlaps), maxConflictIDs)] {
				conflict.ImageIDs = append(conflict.ImageIDs, o.image)
			}
			return nil, conflict
		}
		for _, o := range overlaps {
			mean := []float64{o.xa, o.ya}
			floats.Add(mean, []float64{o.xb, o.yb})
			floats.Scale(0.5, mean)
			if _, err := tx.Exec("UPDATE marker SET x = ?, y = ? WHERE id = ?", mean[0], mean[1], o.markerA); err != nil {
				return nil, fmt.Errorf("averaging marker %d: %w", o.markerA, err)
			}
			if _, err := tx.Exec("DELETE FROM marker WHERE id = ?", o.markerB); err != nil {
				return nil, fmt.Errorf("removing marker %d: %w", o.markerB, err)
			}
		}
	}

	if _, err := tx.Exec("UPDATE marker SET track = ?, type = ? WHERE track = ?", a, target.TypeID, b); err != nil {
		return nil, fmt.Errorf("moving markers of track %d: %w", b, translate(err))
	}
	if _, err := tx.Exec("DELETE FROM track WHERE id = ?", b); err != nil {
		return nil, fmt.Errorf("removing track %d: %w", b, err)
	}
	out, err := df.lookupTrack(tx, a)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing merge: %w", err)
	}
	df.logger.Debug("merged tracks", "track", a, "merged", b, "overlaps", len(overlaps))
	return out, nil
}

type overlap struct {
	image            int64
	markerA, markerB int64
	xa, ya, xb, yb   float64
}

// trackOverlaps lists the images both tracks have a marker on, in timeline
// order.
func trackOverlaps(tx *sql.Tx, a, b int64) ([]overlap, error) {
	rows, err := tx.Query(`SELECT ma.image, ma.id, mb.id, ma.x, ma.y, mb.x, mb.y
FROM marker ma JOIN marker mb ON mb.image = ma.image JOIN image i ON i.id = ma.image
WHERE ma.track = ? AND mb.track = ? ORDER BY i.sort_index, ma.image`, a, b)
	if err != nil {
		return nil, fmt.Errorf("finding overlapping markers: %w", err)
	}
	defer rows.Close()
	var out []overlap
	for rows.Next() {
		var o overlap
		if err := rows.Scan(&o.image, &o.markerA, &o.markerB, &o.xa, &o.ya, &o.xb, &o.yb); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// trackTypes returns the type of every referenced track and fails for tracks
// that do not exist.
func (df *DataFile) trackTypes(q querier, tracks []int64) (map[int64]int64, error) {
	out := make(map[int64]int64)
	for _, id := range tracks {
		if id == 0 {
			continue
		}
		if _, ok := out[id]; ok {
			continue
		}
		t, err := df.lookupTrack(q, id)
		if err != nil {
			return nil, doesNotExist(err, "track %d", id)
		}
		out[id] = t.TypeID
	}
	return out, nil
}

// tracksOfMarkers returns the distinct tracks the given markers belong to.
func (df *DataFile) tracksOfMarkers(q querier, markers []int64) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	chunk := max(1, df.maxParameters())
	for start := 0; start < len(markers); start += chunk {
		part := markers[start:min(len(markers), start+chunk)]
		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}
		rows, err := q.Query("SELECT DISTINCT track FROM marker WHERE track IS NOT NULL AND id IN ("+placeholders(len(part))+")", args...)
		if err != nil {
			return nil, fmt.Errorf("reading marker tracks: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// deleteTracksIfEmpty removes those of the given tracks that lost their last
// marker through a replace, which the delete trigger does not observe.
func deleteTracksIfEmpty(e execer, tracks []int64) error {
	for _, id := range tracks {
		_, err := e.Exec("DELETE FROM track WHERE id = ? AND NOT EXISTS (SELECT 1 FROM marker WHERE track = ?)", id, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("removing empty track %d: %w", id, err)
		}
	}
	return nil
}
