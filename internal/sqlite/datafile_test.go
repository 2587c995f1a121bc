// Tests for opening, creating and closing project files.
package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func TestCreateWritesCurrentSchema(t *testing.T) {
	df := setupDataFile(t)

	v, err := df.Version()
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, v)

	for _, table := range types.StandardTableNames {
		var n int
		require.NoError(t, df.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n))
		assert.Equal(t, 1, n, "table %s", table)
	}

	layer, err := df.GetLayer(1)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultLayerName, layer.Name)
	assert.True(t, layer.IsBase())
}

func TestOpenModes(t *testing.T) {
	tests := []struct {
		name  string
		check func(t *testing.T, path string)
	}{
		{
			name: "read mode refuses writes",
			check: func(t *testing.T, path string) {
				df, err := Open(path, ModeRead, Options{Logger: quietLogger()})
				require.NoError(t, err)
				defer df.Close()

				assert.True(t, df.ReadOnly())
				_, err = df.SetImage(&types.Image{Filename: "x.png"})
				assert.ErrorIs(t, err, types.ErrReadOnly)
				assert.ErrorIs(t, df.SetOption("fps", types.FloatValue(10)), types.ErrReadOnly)

				n, err := df.GetImageCount(types.ImageQuery{})
				require.NoError(t, err)
				assert.Equal(t, 1, n)
			},
		},
		{
			name: "read-write mode keeps existing rows",
			check: func(t *testing.T, path string) {
				df, err := Open(path, ModeReadWrite, Options{Logger: quietLogger()})
				require.NoError(t, err)
				defer df.Close()

				img, err := df.GetImage(types.ImageNamed("kept.png"))
				require.NoError(t, err)
				assert.Equal(t, 0, img.SortIndex)
			},
		},
		{
			name: "write mode starts over",
			check: func(t *testing.T, path string) {
				df, err := Open(path, ModeWrite, Options{Logger: quietLogger()})
				require.NoError(t, err)
				defer df.Close()

				n, err := df.GetImageCount(types.ImageQuery{})
				require.NoError(t, err)
				assert.Zero(t, n)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "modes.cdb")
			df, err := Create(path, Options{Logger: quietLogger()})
			require.NoError(t, err)
			_, err = df.SetImage(&types.Image{Filename: "kept.png"})
			require.NoError(t, err)
			require.NoError(t, df.Close())

			tt.check(t, path)
		})
	}
}

func TestOpenMissingFileForReading(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.cdb"), ModeRead, Options{Logger: quietLogger()})
	assert.Error(t, err)
}

func TestOpenReadWriteCreatesMissingFile(t *testing.T) {
	df, err := Open(filepath.Join(t.TempDir(), "new.cdb"), ModeReadWrite, Options{Logger: quietLogger()})
	require.NoError(t, err)
	defer df.Close()

	v, err := df.Version()
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, v)
}

func TestOpenRejectsForeignDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE unrelated (id INTEGER)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path, ModeReadWrite, Options{Logger: quietLogger()})
	assert.ErrorIs(t, err, types.ErrNotProjectFile)
}

func TestCloseIsIdempotent(t *testing.T) {
	df, err := Create(filepath.Join(t.TempDir(), "close.cdb"), Options{Logger: quietLogger()})
	require.NoError(t, err)

	require.NoError(t, df.Close())
	require.NoError(t, df.Close())

	_, err = df.SetImage(&types.Image{Filename: "late.png"})
	assert.ErrorIs(t, err, types.ErrClosed)
}

func TestProjectIDIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.cdb")
	df, err := Create(path, Options{Logger: quietLogger()})
	require.NoError(t, err)

	first, err := df.ProjectID()
	require.NoError(t, err)
	assert.Equal(t, 7, int(first.Version()))
	again, err := df.ProjectID()
	require.NoError(t, err)
	assert.Equal(t, first, again)
	require.NoError(t, df.Close())

	df, err = Open(path, ModeRead, Options{Logger: quietLogger()})
	require.NoError(t, err)
	defer df.Close()
	reopened, err := df.ProjectID()
	require.NoError(t, err)
	assert.Equal(t, first, reopened)
}

func TestParseOpenMode(t *testing.T) {
	tests := []struct {
		in      string
		want    OpenMode
		wantErr bool
	}{
		{"r", ModeRead, false},
		{"r+", ModeReadWrite, false},
		{"w", ModeWrite, false},
		{"write", ModeWrite, false},
		{"a", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOpenMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTableCounts(t *testing.T) {
	df := setupDataFile(t)
	addImages(t, df, 3)

	counts, err := df.TableCounts()
	require.NoError(t, err)
	assert.Equal(t, 3, counts[types.TableImage])
	assert.Equal(t, 1, counts[types.TableLayer])
	assert.Zero(t, counts[types.TableMarker])
	_, ok := counts[types.TableMeta]
	assert.False(t, ok)
}
