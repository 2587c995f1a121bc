// Tests for paths, layers, images and offsets.
package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func TestSetImageRoundTrip(t *testing.T) {
	df := setupDataFile(t)
	ts := time.Date(2024, 5, 17, 12, 30, 15, 250000000, time.UTC)

	img, err := df.SetImage(&types.Image{
		Filename:   "frame.JPG",
		Path:       "data/run1",
		ExternalID: ptr(int64(42)),
		Timestamp:  &ts,
		Width:      ptr(640),
		Height:     ptr(480),
	})
	require.NoError(t, err)

	got, err := df.GetImage(types.ImageByID(img.ID))
	require.NoError(t, err)
	assert.Equal(t, "frame.JPG", got.Filename)
	assert.Equal(t, ".jpg", got.Ext)
	assert.Equal(t, "data/run1", got.Path)
	assert.Equal(t, int64(42), *got.ExternalID)
	require.NotNil(t, got.Timestamp)
	assert.True(t, ts.Equal(*got.Timestamp))
	assert.Equal(t, 640, *got.Width)
	assert.Equal(t, 480, *got.Height)
	assert.Equal(t, int64(1), got.LayerID)
}

func TestSetImageAppendsToTimeline(t *testing.T) {
	df := setupDataFile(t)
	images := addImages(t, df, 3)
	for i, img := range images {
		assert.Equal(t, i, img.SortIndex)
	}

	// Writing an existing filename updates the row instead of adding one.
	again, err := df.SetImage(&types.Image{Filename: "img001.png", Width: ptr(10), SortIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, images[1].ID, again.ID)
	assert.Equal(t, 10, *again.Width)

	n, err := df.GetImageCount(types.ImageQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSetImagePartialUpdateKeepsFields(t *testing.T) {
	df := setupDataFile(t)
	images := addImages(t, df, 3)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	last, err := df.SetImage(&types.Image{ID: images[2].ID, Timestamp: &ts, Height: ptr(480), Path: "run"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		update *types.Image
	}{
		{"by filename and path", &types.Image{Filename: last.Filename, Path: "run", Width: ptr(640)}},
		{"by id", &types.Image{ID: last.ID, Width: ptr(640)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := df.SetImage(tt.update)
			require.NoError(t, err)
			assert.Equal(t, last.ID, got.ID)
			assert.Equal(t, 2, got.SortIndex)
			assert.Equal(t, 640, *got.Width)
			require.NotNil(t, got.Height)
			assert.Equal(t, 480, *got.Height)
			require.NotNil(t, got.Timestamp)
			assert.True(t, ts.Equal(*got.Timestamp))
			assert.Equal(t, "run", got.Path)
			assert.Equal(t, ".png", got.Ext)
		})
	}

	frames, err := types.Collect(df.GetImages(types.ImageQuery{}))
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, last.ID, frames[2].ID)
}

func TestSetImageDuplicateIDConflicts(t *testing.T) {
	df := setupDataFile(t)
	first := addImages(t, df, 1)[0]

	// Same filename under an explicit new id violates (filename, path, frame).
	_, err := df.SetImage(&types.Image{ID: first.ID + 100, Filename: first.Filename})
	assert.ErrorIs(t, err, types.ErrIntegrityConflict)
}

func TestGetImageReferences(t *testing.T) {
	df := setupDataFile(t)
	images := addImages(t, df, 4)

	tests := []struct {
		name    string
		ref     types.ImageRef
		want    int64
		wantErr error
	}{
		{"by id", types.ImageByID(images[2].ID), images[2].ID, nil},
		{"by frame", types.ImageAtFrame(3, 0), images[3].ID, nil},
		{"by filename", types.ImageNamed("img000.png"), images[0].ID, nil},
		{"missing id", types.ImageByID(999), 0, types.ErrNotFound},
		{"missing frame", types.ImageAtFrame(10, 0), 0, types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := df.GetImage(tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestGetImagesFilters(t *testing.T) {
	df := setupDataFile(t)
	images := addImages(t, df, 10)

	tests := []struct {
		name  string
		query types.ImageQuery
		want  []int64
	}{
		{"frame range", types.ImageQuery{FrameRange: types.Between(2, 5)},
			[]int64{images[2].ID, images[3].ID, images[4].ID}},
		{"open range with skip", types.ImageQuery{FrameRange: types.From(6), Skip: 2},
			[]int64{images[6].ID, images[8].ID}},
		{"filenames", types.ImageQuery{Filenames: []string{"img009.png", "img001.png"}},
			[]int64{images[1].ID, images[9].ID}},
		{"frames", types.ImageQuery{Frames: []int{0}}, []int64{images[0].ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.Collect(df.GetImages(tt.query))
			require.NoError(t, err)
			ids := make([]int64, len(got))
			for i, img := range got {
				ids[i] = img.ID
			}
			assert.Equal(t, tt.want, ids)

			n, err := df.GetImageCount(tt.query)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func TestLayersShareTimeline(t *testing.T) {
	df := setupDataFile(t)
	addImages(t, df, 2)

	layer, err := df.SetLayer("fluorescence", 1)
	require.NoError(t, err)
	assert.False(t, layer.IsBase())

	img, err := df.SetImage(&types.Image{Filename: "fl000.png", LayerID: layer.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, img.SortIndex)

	got, err := df.GetImage(types.ImageAtFrame(0, layer.ID))
	require.NoError(t, err)
	assert.Equal(t, img.ID, got.ID)

	_, err = df.SetLayer("orphan", 999)
	assert.ErrorIs(t, err, types.ErrDoesNotExist)
}

func TestDeleteImageCascades(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	point := addType(t, df, "cell", types.ModePoint)

	for i := range 2 {
		_, err := df.SetMarker(&types.Marker{ImageID: img.ID, X: float64(i), Y: 1, TypeID: &point.ID})
		require.NoError(t, err)
	}
	_, err := df.SetMask(img.ID, types.NewMaskData(4, 4))
	require.NoError(t, err)
	_, err = df.SetOffset(img.ID, 1, 2)
	require.NoError(t, err)
	_, err = df.SetAnnotation(&types.Annotation{ImageID: img.ID, Comment: "c"})
	require.NoError(t, err)

	n, err := df.DeleteImages(types.ImageQuery{IDs: []int64{img.ID}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for _, table := range []string{"marker", "mask", "offset", "annotation"} {
		assert.Zero(t, countRows(t, df, table), table)
	}
}

func TestSetOffsetUpserts(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]

	_, err := df.SetOffset(img.ID, 1, 1)
	require.NoError(t, err)
	o, err := df.SetOffset(img.ID, 3, -2)
	require.NoError(t, err)
	assert.Equal(t, 3.0, o.X)
	assert.Equal(t, -2.0, o.Y)
	assert.Equal(t, 1, countRows(t, df, "offset"))

	_, err = df.SetOffset(999, 0, 0)
	assert.ErrorIs(t, err, types.ErrDoesNotExist)
}
