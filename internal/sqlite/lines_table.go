package sqlite

import (
	"database/sql"
	"iter"

	"github.com/fabrylab/clickpoints/pkg/types"
)

var selectLine = shapeSelect("l.id, l.image, l.x1, l.y1, l.x2, l.y2, l.type, l.processed, l.style, l.text", "line", "l")

func scanLine(s scanner) (*types.Line, error) {
	l := &types.Line{}
	var typ sql.NullInt64
	var style, text sql.NullString
	if err := s.Scan(&l.ID, &l.ImageID, &l.X1, &l.Y1, &l.X2, &l.Y2, &typ, &l.Processed, &style, &text); err != nil {
		return nil, err
	}
	l.TypeID = idPtr(typ)
	l.Style = style.String
	l.Text = text.String
	return l, nil
}

// GetLine returns the line with the given id.
func (df *DataFile) GetLine(id int64) (*types.Line, error) {
	l, err := scanLine(df.db.QueryRow(selectLine+" WHERE l.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

func lineFilter(q types.GeometryQuery) *filter {
	f := &filter{}
	geometryFilter(f, "l", q)
	return f
}

// GetLines returns the matching lines in timeline order.
func (df *DataFile) GetLines(q types.GeometryQuery) iter.Seq2[*types.Line, error] {
	f := lineFilter(q)
	return queryRows(df.db, selectLine+f.where()+" ORDER BY i.sort_index, l.id", f.args, scanLine)
}

// SetLine inserts or updates a line. Its type must have line mode.
func (df *DataFile) SetLine(l *types.Line) (*types.Line, error) {
	var out *types.Line
	err := df.inTx(func(tx *sql.Tx) error {
		id, err := df.writeShape(tx, "line", types.ModeLine,
			shapeRow{l.ID, l.ImageID, l.TypeID, l.Processed, l.Style, l.Text},
			[]string{"x1", "y1", "x2", "y2"}, []any{l.X1, l.Y1, l.X2, l.Y2})
		if err != nil {
			return err
		}
		out, err = scanLine(tx.QueryRow(selectLine+" WHERE l.id = ?", id))
		return err
	})
	return out, err
}

// SetLines writes lines column-wise and returns the number of rows written.
func (df *DataFile) SetLines(c types.LineColumns) (int, error) {
	return df.writeShapes("line", types.ModeLine, c.ShapeColumns, []string{"x1", "y1", "x2", "y2"},
		[]int{len(c.X1), len(c.Y1), len(c.X2), len(c.Y2)},
		func(i int, args []any) []any {
			return append(args, pick(c.X1, i), pick(c.Y1, i), pick(c.X2, i), pick(c.Y2, i))
		})
}

// DeleteLines removes the matching lines.
func (df *DataFile) DeleteLines(q types.GeometryQuery) (int64, error) {
	f := lineFilter(q)
	return df.deleteWhere("line", shapeSelect("l.id", "line", "l")+f.where(), f.args)
}

// CorrectedLine returns both end points with the image offset added.
func (df *DataFile) CorrectedLine(l *types.Line) (start, end types.Point, err error) {
	off, err := df.imageOffset(l.ImageID)
	if err != nil {
		return types.Point{}, types.Point{}, err
	}
	return l.Start().Add(off), l.End().Add(off), nil
}
