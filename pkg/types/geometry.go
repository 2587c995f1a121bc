package types

import "math"

// Point is a pixel coordinate, x to the right and y down.
type Point struct {
	X, Y float64
}

// Add returns p shifted by o.
func (p Point) Add(o Point) Point { return Point{p.X + o.X, p.Y + o.Y} }

// Sub returns p shifted by -o.
func (p Point) Sub(o Point) Point { return Point{p.X - o.X, p.Y - o.Y} }

// Marker is a single point annotation, optionally part of a track.
type Marker struct {
	ID        int64
	ImageID   int64
	X, Y      float64
	TypeID    *int64
	Processed bool
	TrackID   *int64
	Style     string
	Text      string
}

// Pos returns the raw position.
func (m *Marker) Pos() Point { return Point{m.X, m.Y} }

// Line is a straight segment annotation.
type Line struct {
	ID        int64
	ImageID   int64
	X1, Y1    float64
	X2, Y2    float64
	TypeID    *int64
	Processed bool
	Style     string
	Text      string
}

// Length returns the euclidean length of the segment.
func (l *Line) Length() float64 { return math.Hypot(l.X2-l.X1, l.Y2-l.Y1) }

// Start returns the first end point.
func (l *Line) Start() Point { return Point{l.X1, l.Y1} }

// End returns the second end point.
func (l *Line) End() Point { return Point{l.X2, l.Y2} }

// Rectangle is an axis aligned box. Width and Height may be negative when the
// box was drawn from its far corner.
type Rectangle struct {
	ID            int64
	ImageID       int64
	X, Y          float64
	Width, Height float64
	TypeID        *int64
	Processed     bool
	Style         string
	Text          string
}

// IndexRange is a half-open range of pixel indices.
type IndexRange struct {
	Start, Stop int
}

// Len returns the number of indices in the range.
func (r IndexRange) Len() int {
	if r.Stop < r.Start {
		return 0
	}
	return r.Stop - r.Start
}

// SliceX returns the column range covered by the rectangle grown by border
// pixels on each side.
func (r *Rectangle) SliceX(border int) IndexRange {
	return sliceAxis(r.X, r.Width, border)
}

// SliceY returns the row range covered by the rectangle grown by border
// pixels on each side.
func (r *Rectangle) SliceY(border int) IndexRange {
	return sliceAxis(r.Y, r.Height, border)
}

// Slice returns the row and the column range of the rectangle.
func (r *Rectangle) Slice(border int) (rows, cols IndexRange) {
	return r.SliceY(border), r.SliceX(border)
}

func sliceAxis(pos, size float64, border int) IndexRange {
	b := float64(border)
	if size < 0 {
		return IndexRange{int(pos + size - b), int(pos + b)}
	}
	return IndexRange{int(pos - b), int(pos + size + b)}
}

// Normalized returns the origin and size of the rectangle with the size made
// positive.
func (r *Rectangle) Normalized() (origin Point, width, height float64) {
	x, y, w, h := r.X, r.Y, r.Width, r.Height
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	return Point{x, y}, w, h
}

// Area returns the absolute area.
func (r *Rectangle) Area() float64 { return math.Abs(r.Width * r.Height) }

// Center returns the middle of the box.
func (r *Rectangle) Center() Point {
	return Point{r.X + r.Width/2, r.Y + r.Height/2}
}

// Ellipse is a rotated ellipse given by its center, full axis lengths and the
// rotation in degrees.
type Ellipse struct {
	ID            int64
	ImageID       int64
	X, Y          float64
	Width, Height float64
	Angle         float64
	TypeID        *int64
	Processed     bool
	Style         string
	Text          string
}

// Area returns the enclosed area.
func (e *Ellipse) Area() float64 { return math.Pi * math.Abs(e.Width*e.Height) / 4 }

// Center returns the center point.
func (e *Ellipse) Center() Point { return Point{e.X, e.Y} }

// PolygonPoint is one stored vertex of a polygon.
type PolygonPoint struct {
	ID        int64
	PolygonID int64
	X, Y      float64
	Index     int
}

// Polygon is an ordered vertex list. Vertices are loaded lazily by the
// DataFile and cached on the value; SetPoints marks them for rewrite on the
// next save.
type Polygon struct {
	ID        int64
	ImageID   int64
	TypeID    *int64
	Closed    bool
	Processed bool
	Style     string
	Text      string

	points []Point
	loaded bool
	dirty  bool
}

// Points returns the cached vertices. It is nil until the polygon was loaded
// or assigned.
func (p *Polygon) Points() []Point { return p.points }

// PointsLoaded reports whether the vertices are cached.
func (p *Polygon) PointsLoaded() bool { return p.loaded }

// SetPoints replaces the vertices and marks them dirty.
func (p *Polygon) SetPoints(pts []Point) {
	p.points = append([]Point(nil), pts...)
	p.loaded = true
	p.dirty = true
}

// AttachPoints caches vertices read from storage without marking them dirty.
func (p *Polygon) AttachPoints(pts []Point) {
	p.points = pts
	p.loaded = true
	p.dirty = false
}

// Dirty reports whether the vertices changed since they were loaded or saved.
func (p *Polygon) Dirty() bool { return p.dirty }

// MarkClean clears the dirty flag after a save.
func (p *Polygon) MarkClean() { p.dirty = false }

// Area returns the enclosed area by the shoelace formula.
func (p *Polygon) Area() float64 {
	n := len(p.points)
	if n < 3 {
		return 0
	}
	var s float64
	for i := range n {
		a, b := p.points[i], p.points[(i+1)%n]
		s += a.X*b.Y - b.X*a.Y
	}
	return math.Abs(s) / 2
}

// Perimeter sums the edge lengths. The closing edge counts only for closed
// polygons.
func (p *Polygon) Perimeter() float64 {
	n := len(p.points)
	var s float64
	for i := 1; i < n; i++ {
		s += math.Hypot(p.points[i].X-p.points[i-1].X, p.points[i].Y-p.points[i-1].Y)
	}
	if p.Closed && n > 1 {
		s += math.Hypot(p.points[0].X-p.points[n-1].X, p.points[0].Y-p.points[n-1].Y)
	}
	return s
}

// Center returns the mean of the vertices.
func (p *Polygon) Center() Point {
	if len(p.points) == 0 {
		return Point{}
	}
	var c Point
	for _, pt := range p.points {
		c.X += pt.X
		c.Y += pt.Y
	}
	n := float64(len(p.points))
	return Point{c.X / n, c.Y / n}
}
