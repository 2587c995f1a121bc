// This file implements the point marker accessors.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// Markers accept point types, and track types for tracked points.
var markerModes = []types.Mode{types.ModePoint, types.ModeTrack}

const selectMarker = `SELECT m.id, m.image, m.x, m.y, m.type, m.processed, m.track, m.style, m.text
FROM marker m JOIN image i ON i.id = m.image`

func scanMarker(s scanner) (*types.Marker, error) {
	m := &types.Marker{}
	var typ, track sql.NullInt64
	var style, text sql.NullString
	if err := s.Scan(&m.ID, &m.ImageID, &m.X, &m.Y, &typ, &m.Processed, &track, &style, &text); err != nil {
		return nil, err
	}
	m.TypeID = idPtr(typ)
	m.TrackID = idPtr(track)
	m.Style = style.String
	m.Text = text.String
	return m, nil
}

// GetMarker returns the marker with the given id.
func (df *DataFile) GetMarker(id int64) (*types.Marker, error) {
	m, err := scanMarker(df.db.QueryRow(selectMarker+" WHERE m.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func markerFilter(q types.MarkerQuery) *filter {
	f := &filter{}
	geometryFilter(f, "m", q.GeometryQuery)
	in(f, "m.track", q.Tracks)
	return f
}

// GetMarkers returns the matching markers in timeline order.
func (df *DataFile) GetMarkers(q types.MarkerQuery) iter.Seq2[*types.Marker, error] {
	f := markerFilter(q)
	return queryRows(df.db, selectMarker+f.where()+" ORDER BY i.sort_index, m.id", f.args, scanMarker)
}

// GetMarkerCount returns the number of matching markers.
func (df *DataFile) GetMarkerCount(q types.MarkerQuery) (int, error) {
	f := markerFilter(q)
	return count(df.db, "SELECT m.id FROM marker m JOIN image i ON i.id = m.image"+f.where(), f.args)
}

// SetMarker inserts or updates one marker. It is matched by id, then by
// (image, track). A marker needs an id, a type or a track; with a track and
// no type it takes the type of the track. On update the position is always
// written while unset references, style, text and a false processed flag
// keep their stored value.
func (df *DataFile) SetMarker(m *types.Marker) (*types.Marker, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	if m.ID == 0 && m.TypeID == nil && m.TrackID == nil {
		return nil, fmt.Errorf("%w: marker needs an id, a type or a track", types.ErrInvalidData)
	}

	tx, err := df.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	w := *m
	var existing *types.Marker
	if w.ID != 0 {
		if existing, err = df.storedMarker(tx, "m.id = ?", w.ID); err != nil {
			return nil, err
		}
	}
	if existing != nil && w.ImageID == 0 {
		w.ImageID = existing.ImageID
	}
	if w.ImageID == 0 {
		return nil, fmt.Errorf("%w: marker needs an image", types.ErrInvalidData)
	}
	if _, err := df.lookupImage(tx, types.ImageByID(w.ImageID)); err != nil {
		return nil, doesNotExist(err, "image %d", w.ImageID)
	}
	if existing == nil && w.ID == 0 && w.TrackID != nil {
		if existing, err = df.storedMarker(tx, "m.image = ? AND m.track = ?", w.ImageID, *w.TrackID); err != nil {
			return nil, err
		}
		if existing != nil {
			w.ID = existing.ID
		}
	}
	if existing != nil {
		mergeMarker(&w, m, existing)
	}

	if w.TrackID != nil {
		track, err := df.lookupTrack(tx, *w.TrackID)
		if err != nil {
			return nil, doesNotExist(err, "track %d", *w.TrackID)
		}
		if w.TypeID == nil {
			w.TypeID = &track.TypeID
		}
	}
	if w.TypeID != nil {
		allowed := markerModes
		if w.TrackID != nil {
			allowed = []types.Mode{types.ModeTrack}
		}
		if _, err := df.checkType(tx, *w.TypeID, allowed...); err != nil {
			return nil, err
		}
	}

	res, err := tx.Exec(`INSERT INTO marker (id, image, x, y, type, processed, track, style, text)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET image = excluded.image, x = excluded.x, y = excluded.y, type = excluded.type,
processed = excluded.processed, track = excluded.track, style = excluded.style, text = excluded.text`,
		zeroNull(w.ID), w.ImageID, w.X, w.Y, nullID(w.TypeID), w.Processed, nullID(w.TrackID),
		nullString(w.Style), nullString(w.Text))
	if err != nil {
		return nil, fmt.Errorf("persisting marker: %w", translate(err))
	}
	if w.ID == 0 {
		if w.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
	}
	out, err := scanMarker(tx.QueryRow(selectMarker+" WHERE m.id = ?", w.ID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing marker: %w", err)
	}
	return out, nil
}

// storedMarker returns the marker matching cond, or nil when there is none.
func (df *DataFile) storedMarker(q querier, cond string, args ...any) (*types.Marker, error) {
	m, err := scanMarker(q.QueryRow(selectMarker+" WHERE "+cond, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up marker: %w", err)
	}
	return m, nil
}

// mergeMarker fills the fields of w that the caller left unset from the
// stored marker. A new track without a type takes the type of the track.
func mergeMarker(w, given, stored *types.Marker) {
	if given.TrackID == nil {
		w.TrackID = stored.TrackID
		if given.TypeID == nil {
			w.TypeID = stored.TypeID
		}
	}
	if w.Style == "" {
		w.Style = stored.Style
	}
	if w.Text == "" {
		w.Text = stored.Text
	}
	w.Processed = w.Processed || stored.Processed
}

// SetMarkers writes markers column-wise in one transaction and returns the
// number of rows written. Rows with an id or an (image, track) pair that
// already exists replace the stored row.
func (df *DataFile) SetMarkers(c types.MarkerColumns) (int, error) {
	if err := df.writable(); err != nil {
		return 0, err
	}
	if len(c.X) == 0 || len(c.Y) == 0 {
		return 0, fmt.Errorf("%w: x and y are required", types.ErrInvalidData)
	}
	if len(c.IDs) == 0 && len(c.Types) == 0 && len(c.TypeNames) == 0 && len(c.Tracks) == 0 {
		return 0, fmt.Errorf("%w: markers need ids, types or tracks", types.ErrInvalidData)
	}

	tx, err := df.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	images, err := df.resolveImageColumn(tx, c.ImageColumns)
	if err != nil {
		return 0, err
	}
	typeIDs, err := df.resolveTypeColumn(tx, c.ShapeColumns, markerModes...)
	if err != nil {
		return 0, err
	}
	n, err := bulkLength(len(images), len(c.IDs), len(c.X), len(c.Y), len(typeIDs), len(c.Tracks),
		len(c.Processed), len(c.Styles), len(c.Texts))
	if err != nil {
		return 0, err
	}

	trackTypes, err := df.trackTypes(tx, c.Tracks)
	if err != nil {
		return 0, err
	}
	if len(typeIDs) == 0 && len(c.Tracks) > 0 {
		typeIDs = make([]int64, n)
		for i := range n {
			typeIDs[i] = trackTypes[pick(c.Tracks, i)]
		}
	}
	if err := df.checkTrackedTypes(tx, c.Tracks, typeIDs, n); err != nil {
		return 0, err
	}

	var stale []int64
	if len(c.IDs) > 0 {
		if stale, err = df.tracksOfMarkers(tx, c.IDs); err != nil {
			return 0, err
		}
	}

	columns := []string{"image", "x", "y", "type", "processed", "track", "style", "text"}
	withID := len(c.IDs) > 0
	if withID {
		columns = append([]string{"id"}, columns...)
	}
	err = df.replaceRows(tx, "marker", columns, n, func(i int, args []any) []any {
		if withID {
			args = append(args, zeroNull(pick(c.IDs, i)))
		}
		return append(args, pick(images, i), pick(c.X, i), pick(c.Y, i), zeroNull(pick(typeIDs, i)),
			boolInt(pick(c.Processed, i)), zeroNull(pick(c.Tracks, i)),
			nullString(pick(c.Styles, i)), nullString(pick(c.Texts, i)))
	})
	if err != nil {
		return 0, err
	}
	if err := deleteTracksIfEmpty(tx, stale); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing markers: %w", err)
	}
	return n, nil
}

// checkTrackedTypes verifies that every row written with a track carries a
// track type.
func (df *DataFile) checkTrackedTypes(q querier, tracks, typeIDs []int64, n int) error {
	if len(tracks) == 0 || len(typeIDs) == 0 {
		return nil
	}
	checked := make(map[int64]bool)
	for i := range n {
		typ := pick(typeIDs, i)
		if pick(tracks, i) == 0 || typ == 0 || checked[typ] {
			continue
		}
		if _, err := df.checkType(q, typ, types.ModeTrack); err != nil {
			return err
		}
		checked[typ] = true
	}
	return nil
}

// DeleteMarkers removes the matching markers. Tracks left empty are removed
// by the database.
func (df *DataFile) DeleteMarkers(q types.MarkerQuery) (int64, error) {
	f := markerFilter(q)
	return df.deleteWhere("marker", "SELECT m.id FROM marker m JOIN image i ON i.id = m.image"+f.where(), f.args)
}

// CorrectedMarker returns the marker position with the offset of its image
// added.
func (df *DataFile) CorrectedMarker(m *types.Marker) (types.Point, error) {
	off, err := df.imageOffset(m.ImageID)
	if err != nil {
		return types.Point{}, err
	}
	return m.Pos().Add(off), nil
}

// imageOffset returns the offset of an image, zero when none is stored.
func (df *DataFile) imageOffset(imageID int64) (types.Point, error) {
	var p types.Point
	err := df.db.QueryRow(`SELECT COALESCE(o.x, 0), COALESCE(o.y, 0) FROM image i
LEFT JOIN "offset" o ON o.image = i.id WHERE i.id = ?`, imageID).Scan(&p.X, &p.Y)
	if err != nil {
		return types.Point{}, doesNotExist(notFound(err), "image %d", imageID)
	}
	return p, nil
}

// doesNotExist turns a missing related row into ErrDoesNotExist.
func doesNotExist(err error, format string, args ...any) error {
	if errors.Is(err, types.ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", types.ErrDoesNotExist, fmt.Sprintf(format, args...))
	}
	return err
}
