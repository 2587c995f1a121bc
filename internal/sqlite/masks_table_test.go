// Tests for masks and mask types.
package sqlite

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func TestMaskRoundTrip(t *testing.T) {
	random := types.NewMaskData(10, 10)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range random.Pix {
		random.Pix[i] = uint8(rng.IntN(256))
	}

	tests := []struct {
		name string
		data *types.MaskData
	}{
		{"zeros", types.NewMaskData(10, 10)},
		{"random", random},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := setupDataFile(t)
			img := addImages(t, df, 1)[0]

			_, err := df.SetMask(img.ID, tt.data)
			require.NoError(t, err)
			got, err := df.GetMask(img.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.data.Pix, got.Data.Pix)

			sized, err := df.GetImage(types.ImageByID(img.ID))
			require.NoError(t, err)
			assert.Equal(t, 10, *sized.Width, "unknown image size is taken from the mask")
			assert.Equal(t, 10, *sized.Height)
		})
	}
}

func TestSetMaskValidation(t *testing.T) {
	df := setupDataFile(t)
	img, err := df.SetImage(&types.Image{Filename: "sized.png", Width: ptr(8), Height: ptr(6)})
	require.NoError(t, err)

	_, err = df.SetMask(img.ID, types.NewMaskData(6, 8))
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
	var dim *types.DimensionError
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 8, dim.ImageWidth)

	_, err = df.SetMask(img.ID, &types.MaskData{Width: 8, Height: 6, Pix: make([]uint8, 10)})
	assert.ErrorIs(t, err, types.ErrDtypeMismatch)

	_, err = df.SetMask(999, types.NewMaskData(8, 6))
	assert.ErrorIs(t, err, types.ErrDoesNotExist)

	unsized := addImages(t, df, 1)[0]
	_, err = df.SetMask(unsized.ID, types.NewMaskData(0, 0))
	assert.ErrorIs(t, err, types.ErrInvalidData)
	assert.Zero(t, countRows(t, df, "mask"))

	// Rewriting keeps one mask per image.
	for range 2 {
		_, err = df.SetMask(img.ID, types.NewMaskData(8, 6))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, countRows(t, df, "mask"))
}

func TestMaskTypes(t *testing.T) {
	df := setupDataFile(t)

	first, err := df.SetMaskType(&types.MaskType{Name: "cell"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, types.PaletteColor(0), first.Color)

	second, err := df.SetMaskType(&types.MaskType{Name: "nucleus", Color: "#00ff00"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Index)
	assert.Equal(t, "#00FF00", second.Color)

	// Writing by name updates the stored type.
	renamed, err := df.SetMaskType(&types.MaskType{Name: "cell", Color: "#0000FF"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, renamed.ID)
	assert.Equal(t, 1, renamed.Index)

	kept, err := df.SetMaskType(&types.MaskType{ID: first.ID, Name: "cell"})
	require.NoError(t, err)
	assert.Equal(t, "#0000FF", kept.Color, "an empty color keeps the stored one")
	assert.Equal(t, 1, kept.Index)

	_, err = df.SetMaskType(&types.MaskType{Name: "other", Index: 2})
	assert.ErrorIs(t, err, types.ErrIntegrityConflict)
	_, err = df.SetMaskType(&types.MaskType{Name: "too high", Index: 254})
	assert.ErrorIs(t, err, types.ErrInvalidData)
	_, err = df.SetMaskType(&types.MaskType{})
	assert.ErrorIs(t, err, types.ErrInvalidData)

	all, err := types.Collect(df.GetMaskTypes(types.MaskTypeQuery{}))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "cell", all[0].Name)
	assert.Equal(t, "nucleus", all[1].Name)
}
