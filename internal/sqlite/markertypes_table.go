// This file implements the marker type accessors and the mode checks every
// geometry write goes through.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/fabrylab/clickpoints/pkg/types"
)

const selectMarkerType = "SELECT id, name, color, mode, style, text, hidden FROM markertype"

func scanMarkerType(s scanner) (*types.MarkerType, error) {
	mt := &types.MarkerType{}
	var style, text sql.NullString
	var mode int
	if err := s.Scan(&mt.ID, &mt.Name, &mt.Color, &mode, &style, &text, &mt.Hidden); err != nil {
		return nil, err
	}
	mt.Mode = types.Mode(mode)
	mt.Style = style.String
	mt.Text = text.String
	return mt, nil
}

// GetMarkerType returns the marker type with the given id.
func (df *DataFile) GetMarkerType(id int64) (*types.MarkerType, error) {
	mt, err := scanMarkerType(df.db.QueryRow(selectMarkerType+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return mt, nil
}

// GetMarkerTypeByName returns the marker type called name.
func (df *DataFile) GetMarkerTypeByName(name string) (*types.MarkerType, error) {
	mt, err := scanMarkerType(df.db.QueryRow(selectMarkerType+" WHERE name = ?", name))
	if err != nil {
		return nil, notFound(err)
	}
	return mt, nil
}

func markerTypeFilter(q types.MarkerTypeQuery) (*filter, error) {
	f := &filter{}
	in(f, "id", q.IDs)
	in(f, "name", q.Names)
	colors := make([]string, len(q.Colors))
	for i, c := range q.Colors {
		n, err := types.NormalizeColor(c)
		if err != nil {
			return nil, err
		}
		colors[i] = n
	}
	in(f, "color", colors)
	modes := make([]int, len(q.Modes))
	for i, m := range q.Modes {
		modes[i] = int(m)
	}
	in(f, "mode", modes)
	flag(f, "hidden", q.Hidden)
	return f, nil
}

// GetMarkerTypes returns the matching marker types ordered by id.
func (df *DataFile) GetMarkerTypes(q types.MarkerTypeQuery) iter.Seq2[*types.MarkerType, error] {
	f, err := markerTypeFilter(q)
	if err != nil {
		return func(yield func(*types.MarkerType, error) bool) { yield(nil, err) }
	}
	return queryRows(df.db, selectMarkerType+f.where()+" ORDER BY id", f.args, scanMarkerType)
}

// SetMarkerType inserts or updates a marker type matched by id, then by
// name. Mode and hidden are always written; an empty color, style or text
// keeps the stored value. A new type without a color picks the next palette
// color.
func (df *DataFile) SetMarkerType(mt *types.MarkerType) (*types.MarkerType, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	if mt.Name == "" {
		return nil, fmt.Errorf("%w: marker type name is required", types.ErrInvalidData)
	}
	if !mt.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidMode, int(mt.Mode))
	}

	tx, err := df.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id := mt.ID
	var existing *types.MarkerType
	if id != 0 {
		existing, err = scanMarkerType(tx.QueryRow(selectMarkerType+" WHERE id = ?", id))
	} else {
		existing, err = scanMarkerType(tx.QueryRow(selectMarkerType+" WHERE name = ?", mt.Name))
	}
	switch {
	case err == nil:
		id = existing.ID
	case errors.Is(err, sql.ErrNoRows):
		existing = nil
	default:
		return nil, fmt.Errorf("looking up marker type: %w", err)
	}

	w := *mt
	if existing != nil {
		if w.Color == "" {
			w.Color = existing.Color
		}
		if w.Style == "" {
			w.Style = existing.Style
		}
		if w.Text == "" {
			w.Text = existing.Text
		}
	}
	if w.Color == "" {
		var n int
		if err := tx.QueryRow("SELECT COUNT(*) FROM markertype").Scan(&n); err != nil {
			return nil, err
		}
		w.Color = types.PaletteColor(n)
	}
	color, err := types.NormalizeColor(w.Color)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`INSERT INTO markertype (id, name, color, mode, style, text, hidden) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color, mode = excluded.mode,
style = excluded.style, text = excluded.text, hidden = excluded.hidden`,
		zeroNull(id), w.Name, color, int(w.Mode), nullString(w.Style), nullString(w.Text), w.Hidden)
	if err != nil {
		return nil, fmt.Errorf("persisting marker type: %w", translate(err))
	}
	out, err := scanMarkerType(tx.QueryRow(selectMarkerType+" WHERE name = ?", mt.Name))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing marker type: %w", err)
	}
	return out, nil
}

// DeleteMarkerTypes removes the matching types and everything drawn with them.
func (df *DataFile) DeleteMarkerTypes(q types.MarkerTypeQuery) (int64, error) {
	f, err := markerTypeFilter(q)
	if err != nil {
		return 0, err
	}
	return df.deleteWhere("markertype", "SELECT id FROM markertype"+f.where(), f.args)
}

// markerTypeByName resolves a type referenced by a write.
func (df *DataFile) markerTypeByName(q querier, name string) (*types.MarkerType, error) {
	mt, err := scanMarkerType(q.QueryRow(selectMarkerType+" WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: marker type %q", types.ErrDoesNotExist, name)
	}
	return mt, err
}

// checkType loads a type referenced by a write and verifies its mode.
func (df *DataFile) checkType(q querier, id int64, allowed ...types.Mode) (*types.MarkerType, error) {
	mt, err := scanMarkerType(q.QueryRow(selectMarkerType+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: marker type %d", types.ErrDoesNotExist, id)
	}
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, mt.Mode) {
		return nil, fmt.Errorf("%w: type %q has mode %s, want %v", types.ErrTypeMismatch, mt.Name, mt.Mode, allowed)
	}
	return mt, nil
}
