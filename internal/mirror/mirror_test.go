package mirror

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/fabrylab/clickpoints/internal/logging"
	"github.com/fabrylab/clickpoints/pkg/datafile"
	"github.com/fabrylab/clickpoints/pkg/types"
)

func setupMirror(t *testing.T) *Mirror {
	t.Helper()
	m, err := New(sqlite.Open(filepath.Join(t.TempDir(), "mirror.db")), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func setupProject(t *testing.T) *datafile.DataFile {
	t.Helper()
	df, err := datafile.Create(filepath.Join(t.TempDir(), "project.cdb"), datafile.Options{Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { df.Close() })
	return df
}

func annotate(t *testing.T, df *datafile.DataFile, filename, comment string, tags ...string) *types.Annotation {
	t.Helper()
	img, err := df.SetImage(&types.Image{Filename: filename})
	require.NoError(t, err)
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	a, err := df.SetAnnotation(&types.Annotation{ImageID: img.ID, Comment: comment, Rating: 4, Timestamp: &ts, Tags: tags})
	require.NoError(t, err)
	return a
}

func TestPushMirrorsAnnotations(t *testing.T) {
	m := setupMirror(t)
	df := setupProject(t)
	annotate(t, df, "a.png", "first", "cell", "dividing")
	annotate(t, df, "b.png", "second")

	res, err := m.Push(context.Background(), df)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.Zero(t, res.Removed)

	id, err := df.ProjectID()
	require.NoError(t, err)
	assert.Equal(t, id.String(), res.ProjectID)

	rows, err := m.Records(context.Background(), res.ProjectID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.png", rows[0].ImageFilename)
	assert.Equal(t, ".", rows[0].ImagePath)
	assert.Equal(t, 0, rows[0].SortIndex)
	assert.Equal(t, []string{"cell", "dividing"}, rows[0].TagList())
	assert.Equal(t, "second", rows[1].Comment)
	assert.Nil(t, rows[1].TagList())
	assert.Equal(t, 1, rows[1].SortIndex)
}

func TestPushUpdatesAndPrunes(t *testing.T) {
	m := setupMirror(t)
	df := setupProject(t)
	a := annotate(t, df, "a.png", "first")
	b := annotate(t, df, "b.png", "second")
	ctx := context.Background()

	_, err := m.Push(ctx, df)
	require.NoError(t, err)

	a.Comment = "edited"
	_, err = df.SetAnnotation(a)
	require.NoError(t, err)
	_, err = df.DeleteAnnotations(types.AnnotationQuery{IDs: []int64{b.ID}})
	require.NoError(t, err)

	res, err := m.Push(ctx, df)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upserted)
	assert.Equal(t, int64(1), res.Removed)

	rows, err := m.Records(ctx, res.ProjectID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "edited", rows[0].Comment)
}

func TestPushKeepsProjectsApart(t *testing.T) {
	m := setupMirror(t)
	one, two := setupProject(t), setupProject(t)
	annotate(t, one, "a.png", "one")
	annotate(t, two, "a.png", "two")
	ctx := context.Background()

	r1, err := m.Push(ctx, one)
	require.NoError(t, err)
	r2, err := m.Push(ctx, two)
	require.NoError(t, err)
	assert.NotEqual(t, r1.ProjectID, r2.ProjectID)

	// Emptying the second project must not touch the first.
	_, err = two.DeleteAnnotations(types.AnnotationQuery{})
	require.NoError(t, err)
	res, err := m.Push(ctx, two)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Removed)

	rows, err := m.Records(ctx, r1.ProjectID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "one", rows[0].Comment)
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open("", logging.Discard())
	assert.Error(t, err)
}
