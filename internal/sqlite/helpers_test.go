package sqlite

import (
	"database/sql"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fabrylab/clickpoints/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupDataFile creates a fresh project file in a temporary directory.
func setupDataFile(t *testing.T, opts ...func(*Options)) *DataFile {
	t.Helper()
	o := Options{Logger: quietLogger()}
	for _, fn := range opts {
		fn(&o)
	}
	df, err := Create(filepath.Join(t.TempDir(), "test.cdb"), o)
	require.NoError(t, err)
	t.Cleanup(func() { df.Close() })
	return df
}

// addImages appends n images named img000.png, img001.png, ... to the
// default layer.
func addImages(t *testing.T, df *DataFile, n int) []*types.Image {
	t.Helper()
	out := make([]*types.Image, n)
	for i := range n {
		img, err := df.SetImage(&types.Image{Filename: fmt.Sprintf("img%03d.png", i)})
		require.NoError(t, err)
		out[i] = img
	}
	return out
}

func addType(t *testing.T, df *DataFile, name string, mode types.Mode) *types.MarkerType {
	t.Helper()
	mt, err := df.SetMarkerType(&types.MarkerType{Name: name, Mode: mode})
	require.NoError(t, err)
	return mt
}

func countRows(t *testing.T, df *DataFile, table string) int {
	t.Helper()
	var n int
	require.NoError(t, df.db.QueryRow("SELECT COUNT(*) FROM "+quoteIdent(table)).Scan(&n))
	return n
}

func ptr[T any](v T) *T { return &v }

// legacyMask is the raster written as mask1.png next to the legacy file.
func legacyMask() *types.MaskData {
	m := types.NewMaskData(4, 4)
	m.Set(1, 1, 3)
	m.Set(2, 3, 7)
	return m
}

// buildLegacyFile writes a project file in the layout that predates the meta
// table: plural table names, partnered line markers, file-backed masks and
// duplicated tags. One image file sits in a frames subdirectory.
func buildLegacyFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.cdb")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "frames"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frames", "b.png"), []byte("not decoded"), 0o644))

	f, err := os.Create(filepath.Join(dir, "mask1.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, legacyMask().Gray()))
	require.NoError(t, f.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE images (id INTEGER PRIMARY KEY, filename TEXT, ext TEXT, frame INTEGER DEFAULT 0,
            external_id INTEGER, timestamp DATETIME)`,
		`CREATE TABLE markertype (id INTEGER PRIMARY KEY, name TEXT UNIQUE, color TEXT, mode INTEGER DEFAULT 0,
            style TEXT, text TEXT)`,
		`CREATE TABLE tracks (id INTEGER PRIMARY KEY, uid TEXT, type INTEGER)`,
		`CREATE TABLE marker (id INTEGER PRIMARY KEY, image INTEGER, x REAL, y REAL, type INTEGER,
            processed INTEGER DEFAULT 0, partner INTEGER, track INTEGER, style TEXT, text TEXT)`,
		`CREATE TABLE mask (id INTEGER PRIMARY KEY, image INTEGER, filename TEXT)`,
		`CREATE TABLE offsets (id INTEGER PRIMARY KEY, image INTEGER, x REAL, y REAL)`,
		`CREATE TABLE annotation (id INTEGER PRIMARY KEY, image INTEGER, timestamp DATETIME, comment TEXT, rating INTEGER)`,
		`CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE tagassociation (id INTEGER PRIMARY KEY, annotation INTEGER, tag INTEGER)`,

		`INSERT INTO images (id, filename, ext) VALUES (1, 'b.png', '.png'), (2, 'a.png', '.png'), (3, 'c.png', '.png')`,
		`INSERT INTO markertype (id, name, color, mode) VALUES
            (1, 'point', '#FF0000', 0), (2, 'track', '#00FF00', 4), (3, 'line', '#0000FF', 2), (4, 'rect', '#FFFF00', 1)`,
		`INSERT INTO tracks (id, uid, type) VALUES (1, 'u1', 2), (2, 'u2', 2)`,
		`INSERT INTO marker (id, image, x, y, type, partner, track) VALUES
            (1, 1, 1, 2, 1, NULL, NULL),
            (2, 1, 5, 5, 2, NULL, 1),
            (3, 2, 6, 6, 2, NULL, 1),
            (4, 2, 7, 7, 2, NULL, 1),
            (5, 3, 0, 0, 3, 6, NULL),
            (6, 3, 10, 0, 3, 5, NULL),
            (7, 3, 1, 1, 4, 8, NULL),
            (8, 3, 4, 5, 4, 7, NULL)`,
		`INSERT INTO mask (id, image, filename) VALUES (1, 1, 'mask1.png')`,
		`INSERT INTO offsets (id, image, x, y) VALUES (1, 1, 1, 1), (2, 1, 2, 2), (3, 99, 5, 5)`,
		`INSERT INTO annotation (id, image, comment, rating) VALUES (1, 2, 'hello', 3)`,
		`INSERT INTO tags (id, name) VALUES (1, 'a'), (2, 'b'), (3, 'a')`,
		`INSERT INTO tagassociation (id, annotation, tag) VALUES (1, 1, 1), (2, 1, 3), (3, 1, 2)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

// tableInfo returns the column layout of every table of the current schema.
func tableInfo(t *testing.T, db *sql.DB) map[string][]string {
	t.Helper()
	out := make(map[string][]string)
	for _, table := range types.StandardTableNames {
		rows, err := db.Query("SELECT name, type, \"notnull\", COALESCE(dflt_value, ''), pk FROM pragma_table_info(?) ORDER BY cid", table)
		require.NoError(t, err)
		for rows.Next() {
			var name, typ, dflt string
			var notNull, pk int
			require.NoError(t, rows.Scan(&name, &typ, &notNull, &dflt, &pk))
			out[table] = append(out[table], fmt.Sprintf("%s %s notnull=%d default=%s pk=%d", name, typ, notNull, dflt, pk))
		}
		require.NoError(t, rows.Err())
		rows.Close()
	}
	return out
}

func grayImage(w, h int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, w, h))
}
