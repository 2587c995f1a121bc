package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectangleSlice(t *testing.T) {
	tests := []struct {
		name     string
		rect     Rectangle
		border   int
		wantRows IndexRange
		wantCols IndexRange
	}{
		{"positive", Rectangle{X: 10, Y: 20, Width: 10, Height: 5}, 0, IndexRange{20, 25}, IndexRange{10, 20}},
		{"negative width", Rectangle{X: 20, Y: 20, Width: -10, Height: 5}, 0, IndexRange{20, 25}, IndexRange{10, 20}},
		{"negative height", Rectangle{X: 10, Y: 25, Width: 10, Height: -5}, 0, IndexRange{20, 25}, IndexRange{10, 20}},
		{"border", Rectangle{X: 10, Y: 20, Width: 10, Height: 5}, 2, IndexRange{18, 27}, IndexRange{8, 22}},
		{"fractional", Rectangle{X: 10.7, Y: 20.2, Width: 3.5, Height: 1.5}, 0, IndexRange{20, 21}, IndexRange{10, 14}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, cols := tt.rect.Slice(tt.border)
			assert.Equal(t, tt.wantRows, rows)
			assert.Equal(t, tt.wantCols, cols)
		})
	}
}

func TestRectangleNegativeMatchesPositive(t *testing.T) {
	neg := Rectangle{X: 20, Y: 20, Width: -10, Height: 10}
	pos := Rectangle{X: 10, Y: 20, Width: 10, Height: 10}
	for _, border := range []int{0, 1, 5} {
		nr, nc := neg.Slice(border)
		pr, pc := pos.Slice(border)
		assert.Equal(t, pr, nr)
		assert.Equal(t, pc, nc)
	}
	o, w, h := neg.Normalized()
	assert.Equal(t, Point{10, 20}, o)
	assert.Equal(t, 10.0, w)
	assert.Equal(t, 10.0, h)
}

func TestPolygonMeasures(t *testing.T) {
	square := []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}

	open := &Polygon{}
	open.SetPoints(square)
	assert.True(t, open.Dirty())
	assert.InDelta(t, 4.0, open.Area(), 1e-12)
	assert.InDelta(t, 6.0, open.Perimeter(), 1e-12)
	assert.Equal(t, Point{1, 1}, open.Center())

	closed := &Polygon{Closed: true}
	closed.AttachPoints(square)
	assert.False(t, closed.Dirty())
	assert.InDelta(t, 8.0, closed.Perimeter(), 1e-12)

	line := &Polygon{Closed: true}
	line.AttachPoints([]Point{{0, 0}, {3, 4}})
	assert.Zero(t, line.Area())
	assert.InDelta(t, 10.0, line.Perimeter(), 1e-12)

	assert.Equal(t, Point{}, (&Polygon{}).Center())
}

func TestPolygonSetPointsCopies(t *testing.T) {
	pts := []Point{{1, 1}, {2, 2}, {3, 1}}
	p := &Polygon{}
	p.SetPoints(pts)
	pts[0] = Point{9, 9}
	assert.Equal(t, Point{1, 1}, p.Points()[0])
	p.MarkClean()
	assert.False(t, p.Dirty())
}

func TestEllipseAndLine(t *testing.T) {
	e := Ellipse{X: 5, Y: 5, Width: 4, Height: -2}
	assert.InDelta(t, 2*math.Pi, e.Area(), 1e-12)
	l := Line{X1: 0, Y1: 0, X2: 3, Y2: 4}
	assert.Equal(t, 5.0, l.Length())
	assert.Equal(t, Point{3, 4}, l.End().Sub(l.Start()))
}
