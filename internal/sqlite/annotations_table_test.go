// Tests for annotations and tags.
package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func TestAnnotationOnePerImage(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	ts := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)

	a, err := df.SetAnnotation(&types.Annotation{ImageID: img.ID, Comment: "blurry", Rating: 2,
		Timestamp: &ts, Tags: []string{"focus", "check"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"check", "focus"}, a.Tags)

	// A second write for the same image updates the stored annotation.
	b, err := df.SetAnnotation(&types.Annotation{ImageID: img.ID, Comment: "fine", Rating: 5, Tags: []string{"check"}})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, []string{"check"}, b.Tags)
	require.NotNil(t, b.Timestamp, "an omitted timestamp keeps the stored one")
	assert.True(t, ts.Equal(*b.Timestamp))
	assert.Equal(t, 1, countRows(t, df, "annotation"))

	// Without tags and comment only the rating changes.
	c, err := df.SetAnnotation(&types.Annotation{ID: a.ID, Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, "fine", c.Comment)
	assert.Equal(t, 4, c.Rating)
	assert.Equal(t, []string{"check"}, c.Tags)

	got, err := df.GetImageAnnotation(img.ID)
	require.NoError(t, err)
	assert.Equal(t, "fine", got.Comment)

	names, err := df.TagNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"check", "focus"}, names, "unused tags are kept")

	_, err = df.SetAnnotation(&types.Annotation{ImageID: 999})
	assert.ErrorIs(t, err, types.ErrDoesNotExist)
}

func TestGetAnnotationsByTag(t *testing.T) {
	df := setupDataFile(t)
	images := addImages(t, df, 3)
	for i, tags := range [][]string{{"a"}, {"b"}, {"a", "b"}} {
		_, err := df.SetAnnotation(&types.Annotation{ImageID: images[i].ID, Rating: i, Tags: tags})
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		query types.AnnotationQuery
		want  []int64
	}{
		{"tag a", types.AnnotationQuery{Tags: []string{"a"}}, []int64{images[0].ID, images[2].ID}},
		{"either tag", types.AnnotationQuery{Tags: []string{"a", "b"}}, []int64{images[0].ID, images[1].ID, images[2].ID}},
		{"rating", types.AnnotationQuery{Ratings: []int{1}}, []int64{images[1].ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.Collect(df.GetAnnotations(tt.query))
			require.NoError(t, err)
			ids := make([]int64, len(got))
			for i, a := range got {
				ids[i] = a.ImageID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestDeleteTagDetachesAnnotations(t *testing.T) {
	df := setupDataFile(t)
	img := addImages(t, df, 1)[0]
	a, err := df.SetAnnotation(&types.Annotation{ImageID: img.ID, Tags: []string{"x", "y"}})
	require.NoError(t, err)

	tag, err := df.GetTagByName("x")
	require.NoError(t, err)
	_, err = df.DeleteTags(types.TagQuery{IDs: []int64{tag.ID}})
	require.NoError(t, err)

	got, err := df.GetAnnotation(a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, got.Tags)

	links, err := types.Collect(df.GetTagAssociations(a.ID))
	require.NoError(t, err)
	assert.Len(t, links, 1)
}
