// Tests for pixel access through the reader registry.
package sqlite

import (
	"context"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// writeRamp stores a 20x20 gray PNG whose value is 10*x + y next to the
// project file and registers it.
func writeRamp(t *testing.T, df *DataFile, name string) *types.Image {
	t.Helper()
	g := grayImage(20, 20)
	for y := range 20 {
		for x := range 20 {
			g.SetGray(x, y, color.Gray{Y: uint8(10*x + y)})
		}
	}
	f, err := os.Create(filepath.Join(df.Dir(), name))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, g))
	require.NoError(t, f.Close())

	img, err := df.SetImage(&types.Image{Filename: name})
	require.NoError(t, err)
	return img
}

func TestImageData(t *testing.T) {
	df := setupDataFile(t)
	img := writeRamp(t, df, "ramp.png")

	pix, err := df.ImageData(img)
	require.NoError(t, err)
	assert.Equal(t, 20, pix.Width)
	assert.Equal(t, 34.0, pix.Intensity(3, 4))
	assert.Equal(t, 1, df.loader.Cache().Len())

	missing, err := df.SetImage(&types.Image{Filename: "scan.xyz"})
	require.NoError(t, err)
	_, err = df.ImageData(missing)
	assert.ErrorIs(t, err, types.ErrNoImageReader)
}

func TestPrefetchImages(t *testing.T) {
	df := setupDataFile(t)
	var images []*types.Image
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		images = append(images, writeRamp(t, df, name))
	}
	require.NoError(t, df.PrefetchImages(context.Background(), images, 2))
	assert.Equal(t, 3, df.loader.Cache().Len())
}

func TestCropRectangle(t *testing.T) {
	df := setupDataFile(t)
	img := writeRamp(t, df, "ramp.png")
	other := writeRamp(t, df, "shifted.png")
	box := addType(t, df, "box", types.ModeRectangle)

	r, err := df.SetRectangle(&types.Rectangle{ImageID: img.ID, X: 2, Y: 3, Width: 4, Height: 2, TypeID: &box.ID})
	require.NoError(t, err)

	m, err := df.CropRectangle(r, CropOptions{})
	require.NoError(t, err)
	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 4, cols)
	assert.Equal(t, 23.0, m.At(0, 0))
	assert.Equal(t, 54.0, m.At(1, 3))

	bordered, err := df.CropRectangle(r, CropOptions{Border: 1})
	require.NoError(t, err)
	rows, cols = bordered.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 6, cols)

	// The other image drifted by (1, 1); the crop follows the content.
	_, err = df.SetOffset(other.ID, 1, 1)
	require.NoError(t, err)
	moved, err := df.CropRectangle(r, CropOptions{Target: other, WithOffset: true})
	require.NoError(t, err)
	assert.Equal(t, 12.0, moved.At(0, 0))

	sub, err := df.CropRectangle(r, CropOptions{Subpixel: true})
	require.NoError(t, err)
	assert.Equal(t, m.RawMatrix().Data, sub.RawMatrix().Data)

	outside := *r
	outside.X = 100
	_, err = df.CropRectangle(&outside, CropOptions{})
	assert.ErrorIs(t, err, types.ErrInvalidData)
}

func TestLineProfile(t *testing.T) {
	df := setupDataFile(t)
	img := writeRamp(t, df, "ramp.png")
	ruler := addType(t, df, "ruler", types.ModeLine)

	l, err := df.SetLine(&types.Line{ImageID: img.ID, X1: 1, Y1: 5, X2: 4, Y2: 5, TypeID: &ruler.ID})
	require.NoError(t, err)

	prof, err := df.LineProfile(l, CropOptions{})
	require.NoError(t, err)
	require.Equal(t, 4, prof.Len())
	assert.InDelta(t, 15.0, prof.AtVec(0), 1e-9)
	assert.InDelta(t, 45.0, prof.AtVec(3), 1e-9)

	band, err := df.LineProfiles(l, 3, CropOptions{})
	require.NoError(t, err)
	rows, _ := band.Dims()
	assert.Equal(t, 3, rows)
	assert.InDelta(t, 14.0, band.At(0, 0), 1e-9)
}
