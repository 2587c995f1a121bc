// Tests for lines, rectangles, ellipses and polygons.
package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func TestShapesCheckTypeMode(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	point := addType(t, df, "cell", types.ModePoint)

	tests := []struct {
		name  string
		write func() error
	}{
		{"line", func() error {
			_, err := df.SetLine(&types.Line{ImageID: img.ID, TypeID: &point.ID})
			return err
		}},
		{"rectangle", func() error {
			_, err := df.SetRectangle(&types.Rectangle{ImageID: img.ID, TypeID: &point.ID})
			return err
		}},
		{"ellipse", func() error {
			_, err := df.SetEllipse(&types.Ellipse{ImageID: img.ID, TypeID: &point.ID})
			return err
		}},
		{"polygon", func() error {
			_, err := df.SetPolygon(&types.Polygon{ImageID: img.ID, TypeID: &point.ID})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.write(), types.ErrTypeMismatch)
		})
	}
}

func TestShapesPartialUpdateKeepsFields(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	ruler := addType(t, df, "ruler", types.ModeLine)
	box := addType(t, df, "box", types.ModeRectangle)
	blob := addType(t, df, "blob", types.ModeEllipse)
	area := addType(t, df, "area", types.ModePolygon)

	type stored struct {
		processed   bool
		style, text string
	}
	const style, text = `{"scale":2}`, "nucleus"
	tests := []struct {
		name  string
		write func(t *testing.T) stored
	}{
		{"line", func(t *testing.T) stored {
			l, err := df.SetLine(&types.Line{ImageID: img.ID, TypeID: &ruler.ID, Processed: true, Style: style, Text: text})
			require.NoError(t, err)
			l, err = df.SetLine(&types.Line{ID: l.ID, X2: 1})
			require.NoError(t, err)
			return stored{l.Processed, l.Style, l.Text}
		}},
		{"rectangle", func(t *testing.T) stored {
			r, err := df.SetRectangle(&types.Rectangle{ImageID: img.ID, TypeID: &box.ID, Processed: true, Style: style, Text: text})
			require.NoError(t, err)
			r, err = df.SetRectangle(&types.Rectangle{ID: r.ID, Width: 2})
			require.NoError(t, err)
			return stored{r.Processed, r.Style, r.Text}
		}},
		{"ellipse", func(t *testing.T) stored {
			e, err := df.SetEllipse(&types.Ellipse{ImageID: img.ID, TypeID: &blob.ID, Processed: true, Style: style, Text: text})
			require.NoError(t, err)
			e, err = df.SetEllipse(&types.Ellipse{ID: e.ID, Angle: 30})
			require.NoError(t, err)
			return stored{e.Processed, e.Style, e.Text}
		}},
		{"polygon", func(t *testing.T) stored {
			p, err := df.SetPolygon(&types.Polygon{ImageID: img.ID, TypeID: &area.ID, Processed: true, Style: style, Text: text})
			require.NoError(t, err)
			p, err = df.SetPolygon(&types.Polygon{ID: p.ID, Closed: true})
			require.NoError(t, err)
			assert.True(t, p.Closed)
			return stored{p.Processed, p.Style, p.Text}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, stored{true, style, text}, tt.write(t))
		})
	}
}

func TestLineRoundTrip(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	ruler := addType(t, df, "ruler", types.ModeLine)

	l, err := df.SetLine(&types.Line{ImageID: img.ID, X1: 0, Y1: 0, X2: 3, Y2: 4, TypeID: &ruler.ID})
	require.NoError(t, err)
	assert.Equal(t, 5.0, l.Length())

	// Updating by id keeps the image and type.
	l, err = df.SetLine(&types.Line{ID: l.ID, X1: 1, Y1: 1, X2: 1, Y2: 3})
	require.NoError(t, err)
	assert.Equal(t, img.ID, l.ImageID)
	assert.Equal(t, ruler.ID, *l.TypeID)
	assert.Equal(t, 2.0, l.Length())

	_, err = df.SetOffset(img.ID, 1, -1)
	require.NoError(t, err)
	start, end, err := df.CorrectedLine(l)
	require.NoError(t, err)
	assert.Equal(t, types.Point{X: 2, Y: 0}, start)
	assert.Equal(t, types.Point{X: 2, Y: 2}, end)
}

func TestSetLinesColumns(t *testing.T) {
	df := setupDataFile(t)
	addImages(t, df, 3)
	addType(t, df, "ruler", types.ModeLine)

	n, err := df.SetLines(types.LineColumns{
		ShapeColumns: types.ShapeColumns{
			ImageColumns: types.ImageColumns{Frames: []int{0, 1, 2}},
			TypeNames:    []string{"ruler"},
		},
		X1: []float64{0}, Y1: []float64{0},
		X2: []float64{1, 2, 3}, Y2: []float64{0},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines, err := types.Collect(df.GetLines(types.GeometryQuery{TypeNames: []string{"ruler"}}))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	for i, l := range lines {
		assert.Equal(t, float64(i+1), l.Length())
	}

	_, err = df.SetLines(types.LineColumns{
		ShapeColumns: types.ShapeColumns{ImageColumns: types.ImageColumns{Frames: []int{0}}, TypeNames: []string{"ruler"}},
		X1:           []float64{0}, Y1: []float64{0}, X2: []float64{1},
	})
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestRectangleRoundTrip(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	box := addType(t, df, "box", types.ModeRectangle)

	r, err := df.SetRectangle(&types.Rectangle{ImageID: img.ID, X: 10, Y: 10, Width: -4, Height: 6, TypeID: &box.ID})
	require.NoError(t, err)
	assert.Equal(t, 24.0, r.Area())

	origin, w, h := r.Normalized()
	assert.Equal(t, types.Point{X: 6, Y: 10}, origin)
	assert.Equal(t, 4.0, w)
	assert.Equal(t, 6.0, h)

	n, err := df.SetRectangles(types.RectangleColumns{
		ShapeColumns: types.ShapeColumns{ImageColumns: types.ImageColumns{Images: []int64{img.ID}}, Types: []int64{box.ID}},
		X:            []float64{0, 1}, Y: []float64{0, 1}, Width: []float64{1}, Height: []float64{1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	deleted, err := df.DeleteRectangles(types.GeometryQuery{IDs: []int64{r.ID}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, 2, countRows(t, df, "rectangle"))
}

func TestEllipseAngleDefaultsToZero(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	addType(t, df, "blob", types.ModeEllipse)

	_, err := df.SetEllipses(types.EllipseColumns{
		ShapeColumns: types.ShapeColumns{ImageColumns: types.ImageColumns{Images: []int64{img.ID}}, TypeNames: []string{"blob"}},
		X:            []float64{5}, Y: []float64{5}, Width: []float64{4}, Height: []float64{2},
	})
	require.NoError(t, err)

	ellipses, err := types.Collect(df.GetEllipses(types.GeometryQuery{}))
	require.NoError(t, err)
	require.Len(t, ellipses, 1)
	assert.Zero(t, ellipses[0].Angle)
	assert.InDelta(t, 6.2832, ellipses[0].Area(), 1e-4)

	_, err = df.SetEllipses(types.EllipseColumns{
		ShapeColumns: types.ShapeColumns{ImageColumns: types.ImageColumns{Images: []int64{img.ID}}, TypeNames: []string{"blob"}},
		X:            []float64{1, 2}, Y: []float64{1}, Width: []float64{1}, Height: []float64{1}, Angle: []float64{0, 1, 2},
	})
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestPolygonPointsRewrite(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	area := addType(t, df, "area", types.ModePolygon)

	p := &types.Polygon{ImageID: img.ID, TypeID: &area.ID, Closed: true}
	p.SetPoints([]types.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 2, Y: 6}, {X: 0, Y: 4}})
	stored, err := df.SetPolygon(p)
	require.NoError(t, err)
	assert.False(t, p.Dirty())
	assert.Len(t, stored.Points(), 5)

	// A clean polygon leaves its vertices alone.
	stored.Text = "renamed"
	again, err := df.SetPolygon(stored)
	require.NoError(t, err)
	assert.Len(t, again.Points(), 5)

	again.SetPoints([]types.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 0, Y: 3}})
	_, err = df.SetPolygon(again)
	require.NoError(t, err)

	loaded, err := df.GetPolygon(stored.ID)
	require.NoError(t, err)
	assert.False(t, loaded.PointsLoaded())
	pts, err := df.PolygonPoints(loaded)
	require.NoError(t, err)
	assert.Equal(t, []types.Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 0, Y: 3}}, pts)
	assert.Equal(t, 4.5, loaded.Area())
	assert.Equal(t, "renamed", loaded.Text)
	assert.Equal(t, 3, countRows(t, df, "polygon_point"))

	_, err = df.DeletePolygons(types.GeometryQuery{IDs: []int64{stored.ID}})
	require.NoError(t, err)
	assert.Zero(t, countRows(t, df, "polygon_point"))
}
