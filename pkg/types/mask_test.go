package types

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskDataGrayRoundTrip(t *testing.T) {
	m := NewMaskData(4, 3)
	m.Set(1, 2, 7)
	m.Set(3, 0, 253)
	require.True(t, m.Valid())

	back, err := MaskFromImage(m.Gray())
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestMaskFromImageSubImage(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 6, 6))
	g.SetGray(3, 4, color.Gray{Y: 5})
	sub := g.SubImage(image.Rect(2, 3, 5, 6))

	m, err := MaskFromImage(sub)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Width)
	assert.Equal(t, 3, m.Height)
	assert.Equal(t, uint8(5), m.At(1, 1))
}

func TestMaskFromImageRejectsColor(t *testing.T) {
	_, err := MaskFromImage(image.NewRGBA(image.Rect(0, 0, 2, 2)))
	assert.ErrorIs(t, err, ErrDtypeMismatch)
}

func TestPixelsFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(1, 0, color.NRGBA{R: 30, G: 60, B: 90, A: 255})
	p := PixelsFromImage(img)
	assert.Equal(t, 4, p.Channels)
	assert.Equal(t, 60.0, p.At(1, 0, 1))

	g := image.NewGray(image.Rect(0, 0, 1, 1))
	g.SetGray(0, 0, color.Gray{Y: 9})
	gp := PixelsFromImage(g)
	assert.Equal(t, 1, gp.Channels)
	assert.Equal(t, 9.0, gp.Intensity(0, 0))
}
