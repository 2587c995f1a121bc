package types

import "image"

// MaskData is a single channel raster with one palette index per pixel,
// stored row-major.
type MaskData struct {
	Width, Height int
	Pix           []uint8
}

// NewMaskData returns an all-zero mask.
func NewMaskData(width, height int) *MaskData {
	return &MaskData{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the palette index at column x and row y.
func (m *MaskData) At(x, y int) uint8 { return m.Pix[y*m.Width+x] }

// Set writes the palette index at column x and row y.
func (m *MaskData) Set(x, y int, v uint8) { m.Pix[y*m.Width+x] = v }

// Valid reports whether Pix holds exactly one byte per pixel.
func (m *MaskData) Valid() bool {
	return m.Width >= 0 && m.Height >= 0 && len(m.Pix) == m.Width*m.Height
}

// Gray returns the mask as an 8-bit gray image sharing no memory with m.
func (m *MaskData) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(g.Pix, m.Pix)
	return g
}

// MaskFromImage converts a single channel image into mask data. Only gray and
// paletted images carry one byte per pixel; anything else is rejected.
func MaskFromImage(img image.Image) (*MaskData, error) {
	b := img.Bounds()
	m := NewMaskData(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < m.Height; y++ {
			o := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(m.Pix[y*m.Width:(y+1)*m.Width], src.Pix[o:o+m.Width])
		}
	case *image.Paletted:
		for y := 0; y < m.Height; y++ {
			o := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(m.Pix[y*m.Width:(y+1)*m.Width], src.Pix[o:o+m.Width])
		}
	default:
		return nil, ErrDtypeMismatch
	}
	return m, nil
}

// Mask is the annotation raster of one image.
type Mask struct {
	ID      int64
	ImageID int64
	Data    *MaskData
}

// MaskType names the class painted with palette value Index (1..253).
type MaskType struct {
	ID    int64
	Name  string
	Color string
	Index int
}

// Palette index bounds of mask types.
const (
	MinMaskIndex = 1
	MaxMaskIndex = 253
)
