package types

import (
	"image"
	"image/color"
)

// Pixels is a decoded raster with interleaved channels stored row-major.
type Pixels struct {
	Width, Height, Channels int
	Data                    []float64
}

// NewPixels allocates a zero raster.
func NewPixels(width, height, channels int) *Pixels {
	return &Pixels{
		Width:    width,
		Height:   height,
		Channels: channels,
		Data:     make([]float64, width*height*channels),
	}
}

// At returns channel c of the pixel at column x and row y.
func (p *Pixels) At(x, y, c int) float64 {
	return p.Data[(y*p.Width+x)*p.Channels+c]
}

// Set writes channel c of the pixel at column x and row y.
func (p *Pixels) Set(x, y, c int, v float64) {
	p.Data[(y*p.Width+x)*p.Channels+c] = v
}

// Intensity returns the mean over the channels of a pixel.
func (p *Pixels) Intensity(x, y int) float64 {
	o := (y*p.Width + x) * p.Channels
	var s float64
	for c := range p.Channels {
		s += p.Data[o+c]
	}
	return s / float64(p.Channels)
}

// PixelsFromImage converts a decoded image. Gray images yield one channel,
// everything else three (RGB) or four (with alpha for NRGBA/RGBA sources).
// 16-bit gray keeps its full range; color sources are reduced to 8 bits.
func PixelsFromImage(img image.Image) *Pixels {
	b := img.Bounds()
	switch src := img.(type) {
	case *image.Gray:
		p := NewPixels(b.Dx(), b.Dy(), 1)
		for y := range p.Height {
			for x := range p.Width {
				p.Set(x, y, 0, float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return p
	case *image.Gray16:
		p := NewPixels(b.Dx(), b.Dy(), 1)
		for y := range p.Height {
			for x := range p.Width {
				p.Set(x, y, 0, float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y))
			}
		}
		return p
	case *image.RGBA, *image.NRGBA:
		p := NewPixels(b.Dx(), b.Dy(), 4)
		for y := range p.Height {
			for x := range p.Width {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				p.Set(x, y, 0, float64(c.R))
				p.Set(x, y, 1, float64(c.G))
				p.Set(x, y, 2, float64(c.B))
				p.Set(x, y, 3, float64(c.A))
			}
		}
		return p
	}
	p := NewPixels(b.Dx(), b.Dy(), 3)
	for y := range p.Height {
		for x := range p.Width {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			p.Set(x, y, 0, float64(r>>8))
			p.Set(x, y, 1, float64(g>>8))
			p.Set(x, y, 2, float64(bl>>8))
		}
	}
	return p
}
