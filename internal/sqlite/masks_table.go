// This file implements masks and mask types. Mask rasters are stored as
// 8-bit gray PNG blobs holding one palette index per pixel.
package sqlite

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"iter"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func encodeMask(m *types.MaskData) ([]byte, error) {
	if !m.Valid() {
		return nil, types.ErrDtypeMismatch
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, m.Gray()); err != nil {
		return nil, fmt.Errorf("encoding mask: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeMask(blob []byte) (*types.MaskData, error) {
	img, err := png.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decoding mask: %w", err)
	}
	return maskFromAnyImage(img), nil
}

// maskFromAnyImage reads palette indices from gray and paletted images and
// the red channel from anything else, which is how legacy color masks were
// written.
func maskFromAnyImage(img image.Image) *types.MaskData {
	if m, err := types.MaskFromImage(img); err == nil {
		return m
	}
	b := img.Bounds()
	m := types.NewMaskData(b.Dx(), b.Dy())
	for y := range m.Height {
		for x := range m.Width {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			m.Set(x, y, uint8(r>>8))
		}
	}
	return m
}

const selectMask = `SELECT k.id, k.image, k.data FROM mask k JOIN image i ON i.id = k.image`

func scanMask(s scanner) (*types.Mask, error) {
	m := &types.Mask{}
	var blob []byte
	if err := s.Scan(&m.ID, &m.ImageID, &blob); err != nil {
		return nil, err
	}
	data, err := decodeMask(blob)
	if err != nil {
		return nil, fmt.Errorf("mask %d: %w", m.ID, err)
	}
	m.Data = data
	return m, nil
}

// GetMask returns the mask of an image.
func (df *DataFile) GetMask(imageID int64) (*types.Mask, error) {
	m, err := scanMask(df.db.QueryRow(selectMask+" WHERE k.image = ?", imageID))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func maskFilter(q types.MaskQuery) *filter {
	f := &filter{}
	imageFilter(f, "k", q.ImageFilter)
	in(f, "k.id", q.IDs)
	return f
}

// GetMasks returns the matching masks in timeline order. Each mask is decoded
// as it is yielded.
func (df *DataFile) GetMasks(q types.MaskQuery) iter.Seq2[*types.Mask, error] {
	f := maskFilter(q)
	return queryRows(df.db, selectMask+f.where()+" ORDER BY i.sort_index, k.id", f.args, scanMask)
}

// SetMask stores the mask of an image, replacing any previous one. The mask
// must match the image dimensions; an image without known dimensions takes
// those of the mask.
func (df *DataFile) SetMask(imageID int64, data *types.MaskData) (*types.Mask, error) {
	if data == nil || !data.Valid() {
		return nil, types.ErrDtypeMismatch
	}
	if data.Width == 0 || data.Height == 0 {
		return nil, fmt.Errorf("%w: mask of %dx%d pixels", types.ErrInvalidData, data.Width, data.Height)
	}
	var out *types.Mask
	err := df.inTx(func(tx *sql.Tx) error {
		img, err := df.lookupImage(tx, types.ImageByID(imageID))
		if err != nil {
			return doesNotExist(err, "image %d", imageID)
		}
		if img.Width != nil && img.Height != nil {
			if *img.Width != data.Width || *img.Height != data.Height {
				return &types.DimensionError{
					ImageID: imageID, MaskWidth: data.Width, MaskHeight: data.Height,
					ImageWidth: *img.Width, ImageHeight: *img.Height,
				}
			}
		} else {
			if _, err := tx.Exec("UPDATE image SET width = ?, height = ? WHERE id = ?", data.Width, data.Height, imageID); err != nil {
				return fmt.Errorf("recording size of image %d: %w", imageID, err)
			}
		}
		blob, err := encodeMask(data)
		if err != nil {
			return err
		}
		_, err = tx.Exec("INSERT INTO mask (image, data) VALUES (?, ?) ON CONFLICT(image) DO UPDATE SET data = excluded.data",
			imageID, blob)
		if err != nil {
			return fmt.Errorf("persisting mask: %w", translate(err))
		}
		out, err = scanMask(tx.QueryRow(selectMask+" WHERE k.image = ?", imageID))
		return err
	})
	return out, err
}

// DeleteMasks removes the matching masks.
func (df *DataFile) DeleteMasks(q types.MaskQuery) (int64, error) {
	f := maskFilter(q)
	return df.deleteWhere("mask", "SELECT k.id FROM mask k JOIN image i ON i.id = k.image"+f.where(), f.args)
}

const selectMaskType = `SELECT id, name, color, "index" FROM masktype`

func scanMaskType(s scanner) (*types.MaskType, error) {
	mt := &types.MaskType{}
	if err := s.Scan(&mt.ID, &mt.Name, &mt.Color, &mt.Index); err != nil {
		return nil, err
	}
	return mt, nil
}

// GetMaskType returns the mask type with the given id.
func (df *DataFile) GetMaskType(id int64) (*types.MaskType, error) {
	mt, err := scanMaskType(df.db.QueryRow(selectMaskType+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return mt, nil
}

func maskTypeFilter(q types.MaskTypeQuery) (*filter, error) {
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
	in(f, `"index"`, q.Indices)
	return f, nil
}

// GetMaskTypes returns the matching mask types ordered by palette index.
func (df *DataFile) GetMaskTypes(q types.MaskTypeQuery) iter.Seq2[*types.MaskType, error] {
	f, err := maskTypeFilter(q)
	if err != nil {
		return func(yield func(*types.MaskType, error) bool) { yield(nil, err) }
	}
	return queryRows(df.db, selectMaskType+f.where()+` ORDER BY "index"`, f.args, scanMaskType)
}

// SetMaskType inserts or updates a mask type matched by id, then by name. A
// zero index or an empty color keeps the stored value; a new type takes the
// lowest free palette index and the next palette color.
func (df *DataFile) SetMaskType(mt *types.MaskType) (*types.MaskType, error) {
	if mt.Name == "" {
		return nil, fmt.Errorf("%w: mask type name is required", types.ErrInvalidData)
	}
	if mt.Index != 0 && (mt.Index < types.MinMaskIndex || mt.Index > types.MaxMaskIndex) {
		return nil, fmt.Errorf("%w: mask index %d outside %d..%d", types.ErrInvalidData,
			mt.Index, types.MinMaskIndex, types.MaxMaskIndex)
	}
	var out *types.MaskType
	err := df.inTx(func(tx *sql.Tx) error {
		id := mt.ID
		index := mt.Index
		color := mt.Color
		var storedIndex int
		var storedColor string
		var err error
		if id == 0 {
			err = tx.QueryRow(`SELECT id, "index", color FROM masktype WHERE name = ?`, mt.Name).Scan(&id, &storedIndex, &storedColor)
		} else {
			err = tx.QueryRow(`SELECT "index", color FROM masktype WHERE id = ?`, id).Scan(&storedIndex, &storedColor)
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("looking up mask type: %w", err)
		}
		if index == 0 {
			index = storedIndex
		}
		if color == "" {
			color = storedColor
		}
		if index == 0 {
			free, err := lowestFreeMaskIndex(tx)
			if err != nil {
				return err
			}
			index = free
		}
		if color == "" {
			var n int
			if err := tx.QueryRow("SELECT COUNT(*) FROM masktype").Scan(&n); err != nil {
				return err
			}
			color = types.PaletteColor(n)
		}
		if color, err = types.NormalizeColor(color); err != nil {
			return err
		}

		_, err = tx.Exec(`INSERT INTO masktype (id, name, color, "index") VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color, "index" = excluded."index"`,
			zeroNull(id), mt.Name, color, index)
		if err != nil {
			return fmt.Errorf("persisting mask type: %w", translate(err))
		}
		out, err = scanMaskType(tx.QueryRow(selectMaskType+" WHERE name = ?", mt.Name))
		return err
	})
	return out, err
}

func lowestFreeMaskIndex(q querier) (int, error) {
	rows, err := q.Query(`SELECT "index" FROM masktype ORDER BY "index"`)
	if err != nil {
		return 0, fmt.Errorf("reading mask indices: %w", err)
	}
	defer rows.Close()
	next := types.MinMaskIndex
	for rows.Next() {
		var i int
		if err := rows.Scan(&i); err != nil {
			return 0, err
		}
		if i > next {
			break
		}
		if i == next {
			next++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if next > types.MaxMaskIndex {
		return 0, fmt.Errorf("%w: all mask indices are in use", types.ErrIntegrityConflict)
	}
	return next, nil
}

// DeleteMaskTypes removes the matching mask types. Mask pixels keep their
// values.
func (df *DataFile) DeleteMaskTypes(q types.MaskTypeQuery) (int64, error) {
	f, err := maskTypeFilter(q)
	if err != nil {
		return 0, err
	}
	return df.deleteWhere("masktype", "SELECT id FROM masktype"+f.where(), f.args)
}
