package sqlite

import (
	"database/sql"
	"iter"

	"github.com/fabrylab/clickpoints/pkg/types"
)

var selectRectangle = shapeSelect("r.id, r.image, r.x, r.y, r.width, r.height, r.type, r.processed, r.style, r.text", "rectangle", "r")

func scanRectangle(s scanner) (*types.Rectangle, error) {
	r := &types.Rectangle{}
	var typ sql.NullInt64
	var style, text sql.NullString
	if err := s.Scan(&r.ID, &r.ImageID, &r.X, &r.Y, &r.Width, &r.Height, &typ, &r.Processed, &style, &text); err != nil {
		return nil, err
	}
	r.TypeID = idPtr(typ)
	r.Style = style.String
	r.Text = text.String
	return r, nil
}

// GetRectangle returns the rectangle with the given id.
func (df *DataFile) GetRectangle(id int64) (*types.Rectangle, error) {
	r, err := scanRectangle(df.db.QueryRow(selectRectangle+" WHERE r.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

func rectangleFilter(q types.GeometryQuery) *filter {
	f := &filter{}
	geometryFilter(f, "r", q)
	return f
}

// GetRectangles returns the matching rectangles in timeline order.
func (df *DataFile) GetRectangles(q types.GeometryQuery) iter.Seq2[*types.Rectangle, error] {
	f := rectangleFilter(q)
	return queryRows(df.db, selectRectangle+f.where()+" ORDER BY i.sort_index, r.id", f.args, scanRectangle)
}

// SetRectangle inserts or updates a rectangle. Its type must have rectangle
// mode.
func (df *DataFile) SetRectangle(r *types.Rectangle) (*types.Rectangle, error) {
	var out *types.Rectangle
	err := df.inTx(func(tx *sql.Tx) error {
		id, err := df.writeShape(tx, "rectangle", types.ModeRectangle,
			shapeRow{r.ID, r.ImageID, r.TypeID, r.Processed, r.Style, r.Text},
			[]string{"x", "y", "width", "height"}, []any{r.X, r.Y, r.Width, r.Height})
		if err != nil {
			return err
		}
		out, err = scanRectangle(tx.QueryRow(selectRectangle+" WHERE r.id = ?", id))
		return err
	})
	return out, err
}

// SetRectangles writes rectangles column-wise and returns the number of rows
// written.
func (df *DataFile) SetRectangles(c types.RectangleColumns) (int, error) {
	return df.writeShapes("rectangle", types.ModeRectangle, c.ShapeColumns, []string{"x", "y", "width", "height"},
		[]int{len(c.X), len(c.Y), len(c.Width), len(c.Height)},
		func(i int, args []any) []any {
			return append(args, pick(c.X, i), pick(c.Y, i), pick(c.Width, i), pick(c.Height, i))
		})
}

// DeleteRectangles removes the matching rectangles.
func (df *DataFile) DeleteRectangles(q types.GeometryQuery) (int64, error) {
	f := rectangleFilter(q)
	return df.deleteWhere("rectangle", shapeSelect("r.id", "rectangle", "r")+f.where(), f.args)
}

// CorrectedRectangle returns the origin of the rectangle with the image
// offset added.
func (df *DataFile) CorrectedRectangle(r *types.Rectangle) (types.Point, error) {
	off, err := df.imageOffset(r.ImageID)
	if err != nil {
		return types.Point{}, err
	}
	return types.Point{X: r.X, Y: r.Y}.Add(off), nil
}
