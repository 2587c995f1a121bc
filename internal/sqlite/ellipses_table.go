package sqlite

import (
	"database/sql"
	"iter"

	"github.com/fabrylab/clickpoints/pkg/types"
)

var selectEllipse = shapeSelect("e.id, e.image, e.x, e.y, e.width, e.height, e.angle, e.type, e.processed, e.style, e.text", "ellipse", "e")

func scanEllipse(s scanner) (*types.Ellipse, error) {
	e := &types.Ellipse{}
	var typ sql.NullInt64
	var style, text sql.NullString
	if err := s.Scan(&e.ID, &e.ImageID, &e.X, &e.Y, &e.Width, &e.Height, &e.Angle, &typ, &e.Processed, &style, &text); err != nil {
		return nil, err
	}
	e.TypeID = idPtr(typ)
	e.Style = style.String
	e.Text = text.String
	return e, nil
}

// GetEllipse returns the ellipse with the given id.
func (df *DataFile) GetEllipse(id int64) (*types.Ellipse, error) {
	e, err := scanEllipse(df.db.QueryRow(selectEllipse+" WHERE e.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

func ellipseFilter(q types.GeometryQuery) *filter {
	f := &filter{}
	geometryFilter(f, "e", q)
	return f
}

// GetEllipses returns the matching ellipses in timeline order.
func (df *DataFile) GetEllipses(q types.GeometryQuery) iter.Seq2[*types.Ellipse, error] {
	f := ellipseFilter(q)
	return queryRows(df.db, selectEllipse+f.where()+" ORDER BY i.sort_index, e.id", f.args, scanEllipse)
}

// SetEllipse inserts or updates an ellipse. Its type must have ellipse mode.
func (df *DataFile) SetEllipse(e *types.Ellipse) (*types.Ellipse, error) {
	var out *types.Ellipse
	err := df.inTx(func(tx *sql.Tx) error {
		id, err := df.writeShape(tx, "ellipse", types.ModeEllipse,
			shapeRow{e.ID, e.ImageID, e.TypeID, e.Processed, e.Style, e.Text},
			[]string{"x", "y", "width", "height", "angle"}, []any{e.X, e.Y, e.Width, e.Height, e.Angle})
		if err != nil {
			return err
		}
		out, err = scanEllipse(tx.QueryRow(selectEllipse+" WHERE e.id = ?", id))
		return err
	})
	return out, err
}

// SetEllipses writes ellipses column-wise. A missing angle column stores 0.
func (df *DataFile) SetEllipses(c types.EllipseColumns) (int, error) {
	if len(c.Angle) > 1 {
		if _, err := bulkLength(len(c.Angle), len(c.X), len(c.Y), len(c.Width), len(c.Height)); err != nil {
			return 0, err
		}
	}
	return df.writeShapes("ellipse", types.ModeEllipse, c.ShapeColumns, []string{"x", "y", "width", "height", "angle"},
		[]int{len(c.X), len(c.Y), len(c.Width), len(c.Height)},
		func(i int, args []any) []any {
			return append(args, pick(c.X, i), pick(c.Y, i), pick(c.Width, i), pick(c.Height, i), pick(c.Angle, i))
		})
}

// DeleteEllipses removes the matching ellipses.
func (df *DataFile) DeleteEllipses(q types.GeometryQuery) (int64, error) {
	f := ellipseFilter(q)
	return df.deleteWhere("ellipse", shapeSelect("e.id", "ellipse", "e")+f.where(), f.args)
}
