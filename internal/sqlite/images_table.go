// This file implements the path, layer, image and offset accessors.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// Paths.

const selectPath = "SELECT id, path FROM path"

func scanPath(s scanner) (*types.Path, error) {
	p := &types.Path{}
	if err := s.Scan(&p.ID, &p.Path); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPath returns the path with the given id.
func (df *DataFile) GetPath(id int64) (*types.Path, error) {
	p, err := scanPath(df.db.QueryRow(selectPath+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func pathFilter(q types.PathQuery) *filter {
	f := &filter{}
	in(f, "id", q.IDs)
	in(f, "path", q.Paths)
	return f
}

// GetPaths returns the matching paths ordered by id.
func (df *DataFile) GetPaths(q types.PathQuery) iter.Seq2[*types.Path, error] {
	f := pathFilter(q)
	return queryRows(df.db, selectPath+f.where()+" ORDER BY id", f.args, scanPath)
}

// SetPath returns the entry for dir, creating it when needed.
func (df *DataFile) SetPath(dir string) (*types.Path, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = "."
	}
	id, err := ensurePath(df.db, dir)
	if err != nil {
		return nil, err
	}
	return &types.Path{ID: id, Path: dir}, nil
}

// DeletePaths removes the matching paths and, by cascade, their images.
func (df *DataFile) DeletePaths(q types.PathQuery) (int64, error) {
	f := pathFilter(q)
	return df.deleteWhere("path", "SELECT id FROM path"+f.where(), f.args)
}

// Layers.

const selectLayer = "SELECT id, name, base_layer FROM layer"

func scanLayer(s scanner) (*types.Layer, error) {
	l := &types.Layer{}
	if err := s.Scan(&l.ID, &l.Name, &l.BaseLayer); err != nil {
		return nil, err
	}
	return l, nil
}

// GetLayer returns the layer with the given id.
func (df *DataFile) GetLayer(id int64) (*types.Layer, error) {
	l, err := scanLayer(df.db.QueryRow(selectLayer+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// GetLayerByName returns the layer called name.
func (df *DataFile) GetLayerByName(name string) (*types.Layer, error) {
	l, err := scanLayer(df.db.QueryRow(selectLayer+" WHERE name = ?", name))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

func layerFilter(q types.LayerQuery) *filter {
	f := &filter{}
	in(f, "id", q.IDs)
	in(f, "name", q.Names)
	in(f, "base_layer", q.BaseLayers)
	return f
}

// GetLayers returns the matching layers ordered by id.
func (df *DataFile) GetLayers(q types.LayerQuery) iter.Seq2[*types.Layer, error] {
	f := layerFilter(q)
	return queryRows(df.db, selectLayer+f.where()+" ORDER BY id", f.args, scanLayer)
}

// SetLayer creates or updates the layer called name. A zero base makes a
// new layer its own base.
func (df *DataFile) SetLayer(name string, base int64) (*types.Layer, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: layer name is required", types.ErrInvalidData)
	}
	tx, err := df.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow("SELECT id FROM layer WHERE name = ?", name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := tx.QueryRow("SELECT COALESCE(MAX(id), 0) + 1 FROM layer").Scan(&id); err != nil {
			return nil, err
		}
		if base == 0 {
			base = id
		}
		if _, err := tx.Exec("INSERT INTO layer (id, name, base_layer) VALUES (?, ?, ?)", id, name, base); err != nil {
			return nil, fmt.Errorf("inserting layer: %w", translate(err))
		}
	case err != nil:
		return nil, fmt.Errorf("looking up layer: %w", err)
	default:
		if base == 0 {
			base = id
		}
		if _, err := tx.Exec("UPDATE layer SET base_layer = ? WHERE id = ?", base, id); err != nil {
			return nil, fmt.Errorf("updating layer: %w", translate(err))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing layer: %w", err)
	}
	return &types.Layer{ID: id, Name: name, BaseLayer: base}, nil
}

// DeleteLayers removes the matching layers together with their images.
func (df *DataFile) DeleteLayers(q types.LayerQuery) (int64, error) {
	f := layerFilter(q)
	return df.deleteWhere("layer", "SELECT id FROM layer"+f.where(), f.args)
}

// layerOrDefault maps the zero layer onto the default layer.
func (df *DataFile) layerOrDefault(q querier, layer int64) (int64, error) {
	if layer != 0 {
		return layer, nil
	}
	err := q.QueryRow(`SELECT id FROM layer ORDER BY name = ? DESC, id = base_layer DESC, id LIMIT 1`,
		types.DefaultLayerName).Scan(&layer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: no layer", types.ErrDoesNotExist)
		}
		return 0, fmt.Errorf("looking up default layer: %w", err)
	}
	return layer, nil
}

// Images.

const selectImage = `SELECT i.id, i.filename, i.ext, i.frame, i.external_id, i.timestamp, i.sort_index,
i.width, i.height, i.path, i.layer, p.path FROM image i JOIN path p ON p.id = i.path`

func scanImage(s scanner) (*types.Image, error) {
	img := &types.Image{}
	var ext, width, height sql.NullInt64
	var ts nullTime
	err := s.Scan(&img.ID, &img.Filename, &img.Ext, &img.Frame, &ext, &ts, &img.SortIndex,
		&width, &height, &img.PathID, &img.LayerID, &img.Path)
	if err != nil {
		return nil, err
	}
	img.ExternalID = idPtr(ext)
	img.Timestamp = ts.t
	img.Width = intPtr(width)
	img.Height = intPtr(height)
	return img, nil
}

// GetImage returns the image ref points at.
func (df *DataFile) GetImage(ref types.ImageRef) (*types.Image, error) {
	return df.lookupImage(df.db, ref)
}

// ResolveImage is GetImage for writes: a reference that matches nothing
// fails with ErrDoesNotExist.
func (df *DataFile) ResolveImage(ref types.ImageRef) (*types.Image, error) {
	img, err := df.lookupImage(df.db, ref)
	if errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("%w: image %+v", types.ErrDoesNotExist, ref)
	}
	return img, err
}

func (df *DataFile) lookupImage(q querier, ref types.ImageRef) (*types.Image, error) {
	var row *sql.Row
	switch {
	case ref.ID != 0:
		row = q.QueryRow(selectImage+" WHERE i.id = ?", ref.ID)
	case ref.Frame != nil:
		layer, err := df.layerOrDefault(q, ref.Layer)
		if err != nil {
			return nil, err
		}
		row = q.QueryRow(selectImage+" WHERE i.sort_index = ? AND i.layer = ? ORDER BY i.id LIMIT 1", *ref.Frame, layer)
	case ref.Filename != "":
		row = q.QueryRow(selectImage+" WHERE i.filename = ? ORDER BY i.id LIMIT 1", ref.Filename)
	default:
		return nil, fmt.Errorf("%w: empty image reference", types.ErrInvalidFilter)
	}
	img, err := scanImage(row)
	if err != nil {
		return nil, notFound(err)
	}
	return img, nil
}

func imageFilterOf(q types.ImageQuery) *filter {
	f := &filter{}
	in(f, "i.id", q.IDs)
	in(f, "i.sort_index", q.Frames)
	within(f, "i.sort_index", q.FrameRange)
	in(f, "i.filename", q.Filenames)
	in(f, "i.ext", q.Exts)
	in(f, "i.external_id", q.ExternalIDs)
	in(f, "i.layer", q.Layers)
	in(f, "i.path", q.Paths)
	return f
}

func imageOrder(o types.ImageOrder) string {
	switch o {
	case types.OrderByTimestamp:
		return " ORDER BY i.timestamp, i.sort_index, i.id"
	case types.OrderByID:
		return " ORDER BY i.id"
	}
	return " ORDER BY i.sort_index, i.layer, i.id"
}

// GetImages returns the matching images, by default in timeline order.
func (df *DataFile) GetImages(q types.ImageQuery) iter.Seq2[*types.Image, error] {
	f := imageFilterOf(q)
	seq := queryRows(df.db, selectImage+f.where()+imageOrder(q.Order), f.args, scanImage)
	if q.Skip <= 1 {
		return seq
	}
	return func(yield func(*types.Image, error) bool) {
		n := 0
		for img, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			keep := n%q.Skip == 0
			n++
			if keep && !yield(img, nil) {
				return
			}
		}
	}
}

// ImageIterator walks the images of layer with sort index in [start, stop),
// keeping every skip-th one. A negative stop runs to the end.
func (df *DataFile) ImageIterator(start, stop, skip int, layer int64) (iter.Seq2[*types.Image, error], error) {
	layer, err := df.layerOrDefault(df.db, layer)
	if err != nil {
		return nil, err
	}
	return df.GetImages(types.ImageQuery{
		FrameRange: types.Between(start, stop),
		Layers:     []int64{layer},
		Skip:       skip,
	}), nil
}

// GetImageCount returns the number of matching images.
func (df *DataFile) GetImageCount(q types.ImageQuery) (int, error) {
	f := imageFilterOf(q)
	n, err := count(df.db, "SELECT i.id FROM image i"+f.where(), f.args)
	if err != nil {
		return 0, fmt.Errorf("counting images: %w", err)
	}
	if q.Skip > 1 {
		n = (n + q.Skip - 1) / q.Skip
	}
	return n, nil
}

// SetImage inserts or updates an image and returns the stored row. An image
// is matched by id, then by (filename, path, frame). On update, zero and nil
// fields keep their stored value. New images with a zero sort index are
// appended to the timeline of their layer.
func (df *DataFile) SetImage(img *types.Image) (*types.Image, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	if img.Filename == "" && img.ID == 0 {
		return nil, fmt.Errorf("%w: image filename is required", types.ErrInvalidData)
	}

	tx, err := df.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	w := *img
	var existing *types.Image
	if w.ID != 0 {
		existing, err = df.lookupImage(tx, types.ImageByID(w.ID))
	} else {
		if w.PathID, err = df.imagePath(tx, w); err != nil {
			return nil, err
		}
		var id int64
		err = tx.QueryRow("SELECT id FROM image WHERE filename = ? AND path = ? AND frame = ?",
			w.Filename, w.PathID, w.Frame).Scan(&id)
		if err == nil {
			w.ID = id
			existing, err = df.lookupImage(tx, types.ImageByID(id))
		}
	}
	if err != nil && !errors.Is(err, types.ErrNotFound) && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up image: %w", err)
	}
	if existing != nil {
		mergeImage(&w, existing)
	}
	if w.Filename == "" {
		return nil, fmt.Errorf("%w: image filename is required", types.ErrInvalidData)
	}
	if w.PathID, err = df.imagePath(tx, w); err != nil {
		return nil, err
	}
	layer, err := df.layerOrDefault(tx, w.LayerID)
	if err != nil {
		return nil, err
	}
	if w.Ext == "" {
		w.Ext = types.Extension(w.Filename)
	}

	if existing == nil && w.SortIndex == 0 {
		if err := tx.QueryRow("SELECT COALESCE(MAX(sort_index) + 1, 0) FROM image WHERE layer = ?", layer).Scan(&w.SortIndex); err != nil {
			return nil, fmt.Errorf("computing sort index: %w", err)
		}
	}

	id := w.ID
	args := []any{w.Filename, w.Ext, w.Frame, nullID(w.ExternalID), formatTime(w.Timestamp), w.SortIndex,
		nullInt(w.Width), nullInt(w.Height), w.PathID, layer}
	if existing != nil {
		_, err = tx.Exec(`UPDATE image SET filename = ?, ext = ?, frame = ?, external_id = ?, timestamp = ?,
sort_index = ?, width = ?, height = ?, path = ?, layer = ? WHERE id = ?`, append(args, id)...)
	} else {
		var res sql.Result
		res, err = tx.Exec(`INSERT INTO image (id, filename, ext, frame, external_id, timestamp, sort_index,
width, height, path, layer) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, append([]any{zeroNull(id)}, args...)...)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("persisting image: %w", translate(err))
	}

	out, err := df.lookupImage(tx, types.ImageByID(id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing image: %w", err)
	}
	df.loader.Cache().Delete(id)
	return out, nil
}

// imagePath returns the path id of img, creating the path entry when needed.
func (df *DataFile) imagePath(q querier, img types.Image) (int64, error) {
	if img.PathID != 0 {
		return img.PathID, nil
	}
	dir := img.Path
	if dir == "" {
		dir = "."
	}
	return ensurePath(q, dir)
}

// mergeImage fills the unset fields of w from the stored image.
func mergeImage(w *types.Image, stored *types.Image) {
	if w.Filename == "" {
		w.Filename = stored.Filename
		if w.Ext == "" {
			w.Ext = stored.Ext
		}
	}
	if w.Frame == 0 {
		w.Frame = stored.Frame
	}
	if w.ExternalID == nil {
		w.ExternalID = stored.ExternalID
	}
	if w.Timestamp == nil {
		w.Timestamp = stored.Timestamp
	}
	if w.SortIndex == 0 {
		w.SortIndex = stored.SortIndex
	}
	if w.Width == nil {
		w.Width = stored.Width
	}
	if w.Height == nil {
		w.Height = stored.Height
	}
	if w.PathID == 0 && w.Path == "" {
		w.PathID = stored.PathID
	}
	if w.LayerID == 0 {
		w.LayerID = stored.LayerID
	}
}

// DeleteImages removes the matching images. Their annotations, masks and
// offsets go with them.
func (df *DataFile) DeleteImages(q types.ImageQuery) (int64, error) {
	f := imageFilterOf(q)
	n, err := df.deleteWhere("image", "SELECT i.id FROM image i"+f.where(), f.args)
	if err == nil {
		df.loader.Cache().Flush()
	}
	return n, err
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// Offsets.

const selectOffset = `SELECT o.id, o.image, o.x, o.y FROM "offset" o JOIN image i ON i.id = o.image`

func scanOffset(s scanner) (*types.Offset, error) {
	o := &types.Offset{}
	if err := s.Scan(&o.ID, &o.ImageID, &o.X, &o.Y); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOffset returns the offset of an image.
func (df *DataFile) GetOffset(imageID int64) (*types.Offset, error) {
	o, err := scanOffset(df.db.QueryRow(selectOffset+" WHERE o.image = ?", imageID))
	if err != nil {
		return nil, notFound(err)
	}
	return o, nil
}

func offsetFilter(q types.OffsetQuery) *filter {
	f := &filter{}
	imageFilter(f, "o", q.ImageFilter)
	in(f, "o.id", q.IDs)
	return f
}

// GetOffsets returns the matching offsets in timeline order.
func (df *DataFile) GetOffsets(q types.OffsetQuery) iter.Seq2[*types.Offset, error] {
	f := offsetFilter(q)
	return queryRows(df.db, selectOffset+f.where()+" ORDER BY i.sort_index, o.id", f.args, scanOffset)
}

// SetOffset stores the offset of an image, replacing a previous one.
func (df *DataFile) SetOffset(imageID int64, x, y float64) (*types.Offset, error) {
	if err := df.writable(); err != nil {
		return nil, err
	}
	if _, err := df.ResolveImage(types.ImageByID(imageID)); err != nil {
		return nil, err
	}
	_, err := df.db.Exec(`INSERT INTO "offset" (image, x, y) VALUES (?, ?, ?)
ON CONFLICT(image) DO UPDATE SET x = excluded.x, y = excluded.y`, imageID, x, y)
	if err != nil {
		return nil, fmt.Errorf("persisting offset: %w", translate(err))
	}
	return df.GetOffset(imageID)
}

// DeleteOffsets removes the matching offsets.
func (df *DataFile) DeleteOffsets(q types.OffsetQuery) (int64, error) {
	f := offsetFilter(q)
	return df.deleteWhere("offset", "SELECT o.id FROM \"offset\" o JOIN image i ON i.id = o.image"+f.where(), f.args)
}
