// Package geometry samples decoded rasters: bilinear interpolation, integer
// and sub-pixel crops, and intensity profiles along lines. Every function
// works on the channel mean of a pixel.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// Bilinear interpolates the intensity of p at column x and row y from the
// four surrounding pixels. Neighbours outside the raster count as zero.
func Bilinear(p *types.Pixels, x, y float64) float64 {
	x0, y0 := math.Floor(x), math.Floor(y)
	fx, fy := x-x0, y-y0
	ix, iy := int(x0), int(y0)
	at := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
			return 0
		}
		return p.Intensity(x, y)
	}
	return at(ix, iy)*(1-fx)*(1-fy) +
		at(ix+1, iy)*fx*(1-fy) +
		at(ix, iy+1)*(1-fx)*fy +
		at(ix+1, iy+1)*fx*fy
}

// clip intersects a range with [0, n).
func clip(r types.IndexRange, n int) types.IndexRange {
	return types.IndexRange{Start: max(0, r.Start), Stop: min(n, r.Stop)}
}

// Crop returns the intensities of rows x cols, clipped to the raster. An
// empty intersection yields nil.
func Crop(p *types.Pixels, rows, cols types.IndexRange) *mat.Dense {
	rows, cols = clip(rows, p.Height), clip(cols, p.Width)
	if rows.Len() == 0 || cols.Len() == 0 {
		return nil
	}
	m := mat.NewDense(rows.Len(), cols.Len(), nil)
	for r := range rows.Len() {
		for c := range cols.Len() {
			m.Set(r, c, p.Intensity(cols.Start+c, rows.Start+r))
		}
	}
	return m
}

// SubpixelCrop returns a width x height crop whose top left corner lies at
// the fractional position (x, y). It is the integer crop at the floored
// origin shifted by the fractional part. The region is clipped to the raster.
func SubpixelCrop(p *types.Pixels, x, y float64, width, height int) *mat.Dense {
	ix, iy := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(ix), y-float64(iy)
	rows := clip(types.IndexRange{Start: iy, Stop: iy + height}, p.Height)
	cols := clip(types.IndexRange{Start: ix, Stop: ix + width}, p.Width)
	if rows.Len() == 0 || cols.Len() == 0 {
		return nil
	}
	m := mat.NewDense(rows.Len(), cols.Len(), nil)
	for r := range rows.Len() {
		for c := range cols.Len() {
			m.Set(r, c, Bilinear(p, float64(cols.Start+c)+fx, float64(rows.Start+r)+fy))
		}
	}
	return m
}

// LineProfiles samples width parallel profiles from start to end at unit
// steps. Row k runs at perpendicular distance k-(width-1)/2 from the line.
// A width below one is treated as one.
func LineProfiles(p *types.Pixels, start, end types.Point, width int) *mat.Dense {
	width = max(1, width)
	dx, dy := end.X-start.X, end.Y-start.Y
	length := math.Hypot(dx, dy)
	n := int(length) + 1
	ux, uy := 0.0, 0.0
	if length > 0 {
		ux, uy = dx/length, dy/length
	}
	// Unit normal; negative distances lie on its far side.
	nx, ny := -uy, ux
	m := mat.NewDense(width, n, nil)
	for k := range width {
		d := float64(k) - float64(width-1)/2
		for i := range n {
			t := float64(i)
			m.Set(k, i, Bilinear(p, start.X+ux*t+nx*d, start.Y+uy*t+ny*d))
		}
	}
	return m
}

// LineProfile samples one profile along the line.
func LineProfile(p *types.Pixels, start, end types.Point) *mat.VecDense {
	m := LineProfiles(p, start, end, 1)
	return mat.VecDenseCopyOf(m.RowView(0))
}
