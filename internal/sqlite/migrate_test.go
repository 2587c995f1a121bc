// Tests for upgrading files written by older releases.
package sqlite

import (
	"bytes"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func openLegacy(t *testing.T, path string) *DataFile {
	t.Helper()
	df, err := Open(path, ModeReadWrite, Options{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { df.Close() })
	return df
}

func TestMigrateLegacyFile(t *testing.T) {
	df := openLegacy(t, buildLegacyFile(t))

	v, err := df.Version()
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, v)

	tests := []struct {
		name  string
		check func(t *testing.T)
	}{
		{
			name: "images are numbered in filename order",
			check: func(t *testing.T) {
				images, err := types.Collect(df.GetImages(types.ImageQuery{}))
				require.NoError(t, err)
				var names []string
				for _, img := range images {
					names = append(names, img.Filename)
					assert.Equal(t, int64(1), img.LayerID)
				}
				assert.Equal(t, []string{"a.png", "b.png", "c.png"}, names)
			},
		},
		{
			name: "image paths are found below the project directory",
			check: func(t *testing.T) {
				b, err := df.GetImage(types.ImageByID(1))
				require.NoError(t, err)
				assert.Equal(t, "frames", b.Path)
				a, err := df.GetImage(types.ImageByID(2))
				require.NoError(t, err)
				assert.Equal(t, ".", a.Path)
			},
		},
		{
			name: "partnered markers become lines and rectangles",
			check: func(t *testing.T) {
				lines, err := types.Collect(df.GetLines(types.GeometryQuery{}))
				require.NoError(t, err)
				require.Len(t, lines, 1)
				assert.Equal(t, types.Point{X: 0, Y: 0}, lines[0].Start())
				assert.Equal(t, types.Point{X: 10, Y: 0}, lines[0].End())

				rects, err := types.Collect(df.GetRectangles(types.GeometryQuery{}))
				require.NoError(t, err)
				require.Len(t, rects, 1)
				assert.Equal(t, 3.0, rects[0].Width)
				assert.Equal(t, 4.0, rects[0].Height)

				markers, err := types.Collect(df.GetMarkers(types.MarkerQuery{}))
				require.NoError(t, err)
				var ids []int64
				for _, m := range markers {
					ids = append(ids, m.ID)
				}
				assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
			},
		},
		{
			name: "duplicate track markers and empty tracks are removed",
			check: func(t *testing.T) {
				tracks, err := types.Collect(df.GetTracks(types.TrackQuery{}))
				require.NoError(t, err)
				require.Len(t, tracks, 1)
				assert.Equal(t, int64(1), tracks[0].ID)

				frames, err := df.TrackFrames(1)
				require.NoError(t, err)
				assert.Equal(t, []int{0, 1}, frames)
			},
		},
		{
			name: "file masks move into the database",
			check: func(t *testing.T) {
				m, err := df.GetMask(1)
				require.NoError(t, err)
				assert.Equal(t, legacyMask().Pix, m.Data.Pix)

				img, err := df.GetImage(types.ImageByID(1))
				require.NoError(t, err)
				assert.Equal(t, 4, *img.Width)

				mts, err := types.Collect(df.GetMaskTypes(types.MaskTypeQuery{}))
				require.NoError(t, err)
				require.Len(t, mts, 2)
				assert.Equal(t, "mask_type3", mts[0].Name)
				assert.Equal(t, 3, mts[0].Index)
				assert.Equal(t, "mask_type7", mts[1].Name)
				assert.Equal(t, 7, mts[1].Index)
			},
		},
		{
			name: "one offset per existing image",
			check: func(t *testing.T) {
				offsets, err := types.Collect(df.GetOffsets(types.OffsetQuery{}))
				require.NoError(t, err)
				require.Len(t, offsets, 1)
				assert.Equal(t, int64(1), offsets[0].ImageID)
				assert.Equal(t, 2.0, offsets[0].X)
			},
		},
		{
			name: "duplicate tags are folded",
			check: func(t *testing.T) {
				a, err := df.GetImageAnnotation(2)
				require.NoError(t, err)
				assert.Equal(t, "hello", a.Comment)
				assert.Equal(t, 3, a.Rating)
				assert.Equal(t, []string{"a", "b"}, a.Tags)

				names, err := df.TagNames()
				require.NoError(t, err)
				assert.Equal(t, []string{"a", "b"}, names)
			},
		},
		{
			name: "migrated file accepts writes",
			check: func(t *testing.T) {
				track, err := df.GetTrack(1)
				require.NoError(t, err)
				_, err = df.SetMarker(&types.Marker{ImageID: 3, X: 1, Y: 1, TrackID: &track.ID})
				require.NoError(t, err)
				_, err = df.SetMarker(&types.Marker{ID: 2, ImageID: 3, TrackID: &track.ID})
				assert.ErrorIs(t, err, types.ErrIntegrityConflict)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.check)
	}
}

func TestMigratedSchemaMatchesFresh(t *testing.T) {
	legacy := openLegacy(t, buildLegacyFile(t))
	fresh := setupDataFile(t)

	want := tableInfo(t, fresh.DB())
	got := tableInfo(t, legacy.DB())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("migrated schema differs from a fresh file (-fresh +migrated):\n%s", diff)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	path := buildLegacyFile(t)
	df, err := Open(path, ModeReadWrite, Options{Logger: quietLogger()})
	require.NoError(t, err)
	before := tableInfo(t, df.DB())
	markers, err := df.GetMarkerCount(types.MarkerQuery{})
	require.NoError(t, err)
	require.NoError(t, df.Close())

	df = openLegacy(t, path)
	assert.Equal(t, before, tableInfo(t, df.DB()))
	again, err := df.GetMarkerCount(types.MarkerQuery{})
	require.NoError(t, err)
	assert.Equal(t, markers, again)
}

func TestMigrateResumesFromStoredVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.cdb")
	df, err := Create(path, Options{Logger: quietLogger()})
	require.NoError(t, err)
	// Pretend the last step never ran.
	require.NoError(t, setMeta(df.db, metaVersion, "21"))
	require.NoError(t, df.Close())

	df = openLegacy(t, path)
	v, err := df.Version()
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, v)
}

func TestNewerFileOpensWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.cdb")
	df, err := Create(path, Options{Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, setMeta(df.db, metaVersion, "99"))
	require.NoError(t, df.Close())

	df = openLegacy(t, path)
	v, err := df.Version()
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestForeignKeysEnforcedAfterOpen(t *testing.T) {
	df := openLegacy(t, buildLegacyFile(t))
	var on int
	require.NoError(t, df.DB().QueryRow("PRAGMA foreign_keys").Scan(&on))
	assert.Equal(t, 1, on)

	db, err := sql.Open("sqlite", df.Path())
	require.NoError(t, err)
	defer db.Close()
	var legacy int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE name IN ('images', 'tracks', 'offsets', 'tags')").Scan(&legacy))
	assert.Zero(t, legacy)
}

func TestMigrateLogsDroppedRows(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	df, err := Open(buildLegacyFile(t), ModeReadWrite, Options{Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { df.Close() })

	// One offset duplicates image 1 and one points at a missing image.
	assert.Contains(t, buf.String(), `msg="dropped rows while rebuilding table" table=offset dropped=2`)
}
