package sqlite

import (
	"database/sql"
	"fmt"
	"iter"

	"github.com/fabrylab/clickpoints/pkg/types"
)

var selectPolygon = shapeSelect("p.id, p.image, p.type, p.closed, p.processed, p.style, p.text", "polygon", "p")

func scanPolygon(s scanner) (*types.Polygon, error) {
	p := &types.Polygon{}
	var typ sql.NullInt64
	var style, text sql.NullString
	if err := s.Scan(&p.ID, &p.ImageID, &typ, &p.Closed, &p.Processed, &style, &text); err != nil {
		return nil, err
	}
	p.TypeID = idPtr(typ)
	p.Style = style.String
	p.Text = text.String
	return p, nil
}

// GetPolygon returns the polygon with the given id. Its vertices are loaded
// by PolygonPoints.
func (df *DataFile) GetPolygon(id int64) (*types.Polygon, error) {
	p, err := scanPolygon(df.db.QueryRow(selectPolygon+" WHERE p.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func polygonFilter(q types.GeometryQuery) *filter {
	f := &filter{}
	geometryFilter(f, "p", q)
	return f
}

// GetPolygons returns the matching polygons in timeline order.
func (df *DataFile) GetPolygons(q types.GeometryQuery) iter.Seq2[*types.Polygon, error] {
	f := polygonFilter(q)
	return queryRows(df.db, selectPolygon+f.where()+" ORDER BY i.sort_index, p.id", f.args, scanPolygon)
}

// PolygonPoints returns the vertices of p ordered by index, reading them on
// first use and caching them on p.
func (df *DataFile) PolygonPoints(p *types.Polygon) ([]types.Point, error) {
	if p.PointsLoaded() {
		return p.Points(), nil
	}
	pts, err := readPolygonPoints(df.db, p.ID)
	if err != nil {
		return nil, err
	}
	p.AttachPoints(pts)
	return pts, nil
}

func readPolygonPoints(q querier, polygon int64) ([]types.Point, error) {
	rows, err := q.Query(`SELECT x, y FROM polygon_point WHERE polygon = ? ORDER BY "index"`, polygon)
	if err != nil {
		return nil, fmt.Errorf("reading points of polygon %d: %w", polygon, err)
	}
	defer rows.Close()
	pts := []types.Point{}
	for rows.Next() {
		var pt types.Point
		if err := rows.Scan(&pt.X, &pt.Y); err != nil {
			return nil, err
		}
		pts = append(pts, pt)
	}
	return pts, rows.Err()
}

// SetPolygon inserts or updates a polygon. Changed vertices are rewritten:
// indices past the new length are removed and every vertex is upserted.
// The returned polygon carries the vertices and p is marked clean.
func (df *DataFile) SetPolygon(p *types.Polygon) (*types.Polygon, error) {
	var out *types.Polygon
	err := df.inTx(func(tx *sql.Tx) error {
		id, err := df.writeShape(tx, "polygon", types.ModePolygon,
			shapeRow{p.ID, p.ImageID, p.TypeID, p.Processed, p.Style, p.Text},
			[]string{"closed"}, []any{p.Closed})
		if err != nil {
			return err
		}
		if p.Dirty() {
			if err := writePolygonPoints(tx, id, p.Points()); err != nil {
				return err
			}
		}
		if out, err = scanPolygon(tx.QueryRow(selectPolygon+" WHERE p.id = ?", id)); err != nil {
			return err
		}
		pts, err := readPolygonPoints(tx, id)
		if err != nil {
			return err
		}
		out.AttachPoints(pts)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.MarkClean()
	return out, nil
}

func writePolygonPoints(tx *sql.Tx, polygon int64, pts []types.Point) error {
	if _, err := tx.Exec(`DELETE FROM polygon_point WHERE polygon = ? AND "index" >= ?`, polygon, len(pts)); err != nil {
		return fmt.Errorf("trimming points of polygon %d: %w", polygon, err)
	}
	if len(pts) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO polygon_point (polygon, x, y, "index") VALUES (?, ?, ?, ?)
ON CONFLICT(polygon, "index") DO UPDATE SET x = excluded.x, y = excluded.y`)
	if err != nil {
		return fmt.Errorf("preparing polygon points: %w", err)
	}
	defer stmt.Close()
	for i, pt := range pts {
		if _, err := stmt.Exec(polygon, pt.X, pt.Y, i); err != nil {
			return fmt.Errorf("writing point %d of polygon %d: %w", i, polygon, err)
		}
	}
	return nil
}

// DeletePolygons removes the matching polygons and their vertices.
func (df *DataFile) DeletePolygons(q types.GeometryQuery) (int64, error) {
	f := polygonFilter(q)
	return df.deleteWhere("polygon", shapeSelect("p.id", "polygon", "p")+f.where(), f.args)
}
