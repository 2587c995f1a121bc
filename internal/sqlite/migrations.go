package sqlite

import (
	"database/sql"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// migrations is the ordered upgrade chain. Steps are never merged; a file
// may resume at any of them.
var migrations = []migration{
	{1, "create meta", (*migrator).createMeta},
	{2, "rename legacy tables", (*migrator).renameLegacyTables},
	{3, "markertype hidden", (*migrator).markerTypeHidden},
	{4, "image size and layer", (*migrator).imageSizeAndLayer},
	{5, "image sort index", (*migrator).imageSortIndex},
	{6, "image paths", (*migrator).imagePaths},
	{7, "track style and text", (*migrator).trackStyleText},
	{8, "masks into database", (*migrator).masksIntoDatabase},
	{9, "mask types", (*migrator).maskTypes},
	{10, "options", (*migrator).options},
	{11, "line and rectangle tables", (*migrator).linesAndRectangles},
	{12, "lookup indices", (*migrator).lookupIndices},
	{13, "unique marker per track and image", (*migrator).uniqueTrackMarkers},
	{14, "empty track triggers", (*migrator).emptyTrackTriggers},
	{15, "track hidden", (*migrator).trackHidden},
	{16, "ellipse table", (*migrator).ellipses},
	{17, "polygon tables", (*migrator).polygons},
	{18, "offset per image", (*migrator).rebuildOffsets},
	{19, "layers", (*migrator).layers},
	{20, "image constraints", (*migrator).rebuildImages},
	{21, "geometry constraints", (*migrator).rebuildGeometry},
	{22, "annotation constraints", (*migrator).rebuildAnnotations},
}

func (m *migrator) createMeta(tx *sql.Tx) error {
	_, err := tx.Exec(ifNotExists(createMeta))
	return err
}

func (m *migrator) renameLegacyTables(tx *sql.Tx) error {
	for _, r := range [][2]string{{"images", "image"}, {"tracks", "track"}, {"offsets", "offset"}, {"tags", "tag"}} {
		oldOK, err := tableExists(tx, r[0])
		if err != nil {
			return err
		}
		newOK, err := tableExists(tx, r[1])
		if err != nil {
			return err
		}
		if !oldOK || newOK {
			continue
		}
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(r[0]), quoteIdent(r[1]))); err != nil {
			return fmt.Errorf("renaming %s: %w", r[0], err)
		}
	}
	return nil
}

func (m *migrator) markerTypeHidden(tx *sql.Tx) error {
	return addColumn(tx, "markertype", "hidden", "INTEGER NOT NULL DEFAULT 0")
}

func (m *migrator) imageSizeAndLayer(tx *sql.Tx) error {
	if err := addColumn(tx, "image", "width", "INTEGER"); err != nil {
		return err
	}
	if err := addColumn(tx, "image", "height", "INTEGER"); err != nil {
		return err
	}
	return addColumn(tx, "image", "layer", "INTEGER NOT NULL DEFAULT 0")
}

// imageSortIndex numbers the images densely in filename order.
func (m *migrator) imageSortIndex(tx *sql.Tx) error {
	if err := addColumn(tx, "image", "sort_index", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	_, err := tx.Exec(`UPDATE image SET sort_index = r.n
FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY filename, frame, id) - 1 AS n FROM image) AS r
WHERE image.id = r.id`)
	if err != nil {
		return fmt.Errorf("numbering images: %w", err)
	}
	return nil
}

// imagePaths introduces the path table. Legacy files stored bare filenames,
// so every image is looked up below the project directory.
func (m *migrator) imagePaths(tx *sql.Tx) error {
	if err := createIfMissing(tx, "path", createPath); err != nil {
		return err
	}
	if err := addColumn(tx, "image", "path", "INTEGER"); err != nil {
		return err
	}

	rows, err := tx.Query("SELECT DISTINCT filename FROM image WHERE path IS NULL")
	if err != nil {
		return fmt.Errorf("listing filenames: %w", err)
	}
	var filenames []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return err
		}
		filenames = append(filenames, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(filenames) == 0 {
		return nil
	}

	found := m.findFiles(filenames)
	pathIDs := make(map[string]int64)
	for _, f := range filenames {
		dir, ok := found[f]
		if !ok {
			m.df.logger.Warn("image not found below project directory", "filename", f)
			dir = "."
		}
		id, ok := pathIDs[dir]
		if !ok {
			if id, err = ensurePath(tx, dir); err != nil {
				return err
			}
			pathIDs[dir] = id
		}
		if _, err := tx.Exec("UPDATE image SET path = ? WHERE filename = ? AND path IS NULL", id, f); err != nil {
			return fmt.Errorf("setting path of %s: %w", f, err)
		}
	}
	return nil
}

// findFiles walks the project directory once and returns the directory,
// relative to it, of the first match for every wanted base name.
func (m *migrator) findFiles(filenames []string) map[string]string {
	want := make(map[string]bool, len(filenames))
	for _, f := range filenames {
		want[f] = true
	}
	found := make(map[string]string)
	_ = filepath.WalkDir(m.df.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if want[name] {
			if _, dup := found[name]; !dup {
				rel, rerr := filepath.Rel(m.df.dir, filepath.Dir(p))
				if rerr == nil {
					found[name] = filepath.ToSlash(rel)
				}
			}
		}
		if len(found) == len(want) {
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func ensurePath(q querier, dir string) (int64, error) {
	var id int64
	err := q.QueryRow("SELECT id FROM path WHERE path = ?", dir).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("looking up path %s: %w", dir, err)
	}
	res, err := q.Exec("INSERT INTO path (path) VALUES (?)", dir)
	if err != nil {
		return 0, fmt.Errorf("inserting path %s: %w", dir, translate(err))
	}
	return res.LastInsertId()
}

func (m *migrator) trackStyleText(tx *sql.Tx) error {
	if err := addColumn(tx, "track", "style", "VARCHAR(255)"); err != nil {
		return err
	}
	return addColumn(tx, "track", "text", "VARCHAR(255)")
}

// masksIntoDatabase replaces file backed masks by PNG blobs. Mask files that
// cannot be read are skipped with a warning.
func (m *migrator) masksIntoDatabase(tx *sql.Tx) error {
	fileBacked, err := hasColumn(tx, "mask", "filename")
	if err != nil || !fileBacked {
		return err
	}
	if _, err := tx.Exec("DROP TABLE IF EXISTS mask_new"); err != nil {
		return err
	}
	if _, err := tx.Exec(renameDDL(createMask, "mask", "mask_new")); err != nil {
		return fmt.Errorf("creating mask_new: %w", err)
	}

	type fileMask struct {
		id, image int64
		filename  string
	}
	rows, err := tx.Query("SELECT id, image, filename FROM mask ORDER BY id")
	if err != nil {
		return fmt.Errorf("listing masks: %w", err)
	}
	var masks []fileMask
	for rows.Next() {
		var fm fileMask
		if err := rows.Scan(&fm.id, &fm.image, &fm.filename); err != nil {
			rows.Close()
			return err
		}
		masks = append(masks, fm)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fm := range masks {
		data, err := m.readMaskFile(fm.filename)
		if err != nil {
			m.df.logger.Warn("skipping unreadable mask file", "filename", fm.filename, "error", err)
			continue
		}
		blob, err := encodeMask(data)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT OR IGNORE INTO mask_new (id, image, data) VALUES (?, ?, ?)", fm.id, fm.image, blob); err != nil {
			return fmt.Errorf("copying mask %d: %w", fm.id, err)
		}
		if _, err := tx.Exec("UPDATE image SET width = ?, height = ? WHERE id = ? AND width IS NULL",
			data.Width, data.Height, fm.image); err != nil {
			return fmt.Errorf("recording size of image %d: %w", fm.image, err)
		}
	}

	if _, err := tx.Exec("DROP TABLE mask"); err != nil {
		return err
	}
	_, err = tx.Exec("ALTER TABLE mask_new RENAME TO mask")
	return err
}

func (m *migrator) readMaskFile(name string) (*types.MaskData, error) {
	candidates := []string{name}
	if !filepath.IsAbs(name) {
		candidates = []string{filepath.Join(m.df.dir, name), filepath.Join(m.df.dir, "mask", name)}
	}
	var lastErr error
	for _, p := range candidates {
		f, err := os.Open(p)
		if err != nil {
			lastErr = err
			continue
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", p, err)
		}
		return maskFromAnyImage(img), nil
	}
	return nil, lastErr
}

// maskTypes seeds one mask type per palette value found in stored masks.
func (m *migrator) maskTypes(tx *sql.Tx) error {
	if err := createIfMissing(tx, "masktype", createMaskType); err != nil {
		return err
	}
	var n int
	if err := tx.QueryRow("SELECT COUNT(*) FROM masktype").Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	rows, err := tx.Query("SELECT data FROM mask")
	if err != nil {
		return fmt.Errorf("reading masks: %w", err)
	}
	var seen [256]bool
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			rows.Close()
			return err
		}
		data, err := decodeMask(blob)
		if err != nil {
			m.df.logger.Warn("skipping undecodable mask", "error", err)
			continue
		}
		for _, v := range data.Pix {
			seen[v] = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	k := 0
	for v := types.MinMaskIndex; v <= types.MaxMaskIndex; v++ {
		if !seen[v] {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO masktype (name, color, "index") VALUES (?, ?, ?)`,
			fmt.Sprintf("mask_type%d", v), types.PaletteColor(k), v); err != nil {
			return fmt.Errorf("seeding mask type %d: %w", v, err)
		}
		k++
	}
	return nil
}

func (m *migrator) options(tx *sql.Tx) error {
	return createIfMissing(tx, "option", createOption)
}

// linesAndRectangles moves partnered line and rectangle markers into their
// own tables.
func (m *migrator) linesAndRectangles(tx *sql.Tx) error {
	if err := createIfMissing(tx, "line", createLine); err != nil {
		return err
	}
	if err := createIfMissing(tx, "rectangle", createRectangle); err != nil {
		return err
	}
	partnered, err := hasColumn(tx, "marker", "partner")
	if err != nil || !partnered {
		return err
	}

	pairs := `FROM marker a JOIN marker b ON a.partner = b.id AND a.id < b.id
JOIN markertype t ON t.id = a.type WHERE t.mode = ?`
	if _, err := tx.Exec(`INSERT INTO line (image, x1, y1, x2, y2, type, processed, style, text)
SELECT a.image, a.x, a.y, b.x, b.y, a.type, a.processed, a.style, a.text `+pairs, int(types.ModeLine)); err != nil {
		return fmt.Errorf("converting lines: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO rectangle (image, x, y, width, height, type, processed, style, text)
SELECT a.image, a.x, a.y, b.x - a.x, b.y - a.y, a.type, a.processed, a.style, a.text `+pairs, int(types.ModeRectangle)); err != nil {
		return fmt.Errorf("converting rectangles: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM marker WHERE partner IS NOT NULL
AND type IN (SELECT id FROM markertype WHERE mode IN (?, ?))`, int(types.ModeLine), int(types.ModeRectangle))
	return err
}

func (m *migrator) lookupIndices(tx *sql.Tx) error {
	for _, table := range []string{"image", "marker", "line", "rectangle", "track"} {
		for _, stmt := range indexDDL[table] {
			if _, err := tx.Exec(stmt); err != nil {
				return fmt.Errorf("indexing %s: %w", table, err)
			}
		}
	}
	return nil
}

// uniqueTrackMarkers keeps the lowest id of duplicated (image, track) pairs.
func (m *migrator) uniqueTrackMarkers(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM marker WHERE track IS NOT NULL AND id NOT IN
(SELECT MIN(id) FROM marker WHERE track IS NOT NULL GROUP BY image, track)`); err != nil {
		return fmt.Errorf("removing duplicate track markers: %w", err)
	}
	_, err := tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS marker_image_track ON marker (image, track)")
	return err
}

func (m *migrator) emptyTrackTriggers(tx *sql.Tx) error {
	for _, stmt := range triggerDDL {
		if _, err := tx.Exec(ifNotExists(stmt)); err != nil {
			return fmt.Errorf("creating trigger: %w", err)
		}
	}
	return deleteEmptyTracks(tx)
}

func deleteEmptyTracks(e execer) error {
	_, err := e.Exec("DELETE FROM track WHERE id NOT IN (SELECT track FROM marker WHERE track IS NOT NULL)")
	if err != nil {
		return fmt.Errorf("removing empty tracks: %w", err)
	}
	return nil
}

func (m *migrator) trackHidden(tx *sql.Tx) error {
	return addColumn(tx, "track", "hidden", "INTEGER NOT NULL DEFAULT 0")
}

func (m *migrator) ellipses(tx *sql.Tx) error {
	return createIfMissing(tx, "ellipse", createEllipse)
}

func (m *migrator) polygons(tx *sql.Tx) error {
	if err := createIfMissing(tx, "polygon", createPolygon); err != nil {
		return err
	}
	return createIfMissing(tx, "polygon_point", createPolygonPoint)
}

// rebuildOffsets keeps the newest offset of every existing image.
func (m *migrator) rebuildOffsets(tx *sql.Tx) error {
	if err := createIfMissing(tx, "offset", createOffset); err != nil {
		return err
	}
	return m.rebuildTable(tx, "offset", createOffset, `SELECT id, image, x, y FROM "offset"
WHERE id IN (SELECT MAX(id) FROM "offset" GROUP BY image) AND image IN (SELECT id FROM image)
ORDER BY id`)
}

// layers turns the 0-based image.layer numbers into layer rows with ids
// shifted up by one. Layer 0 becomes the default base layer.
func (m *migrator) layers(tx *sql.Tx) error {
	exists, err := tableExists(tx, "layer")
	if err != nil || exists {
		return err
	}
	if _, err := tx.Exec(createLayer); err != nil {
		return fmt.Errorf("creating layer: %w", err)
	}
	rows, err := tx.Query("SELECT DISTINCT layer FROM image ORDER BY layer")
	if err != nil {
		return fmt.Errorf("listing layers: %w", err)
	}
	var levels []int64
	for rows.Next() {
		var l int64
		if err := rows.Scan(&l); err != nil {
			rows.Close()
			return err
		}
		levels = append(levels, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if !slices.Contains(levels, 0) {
		levels = append([]int64{0}, levels...)
	}
	for _, l := range levels {
		name := types.DefaultLayerName
		if l != 0 {
			name = fmt.Sprintf("layer%d", l)
		}
		if _, err := tx.Exec("INSERT INTO layer (id, name, base_layer) VALUES (?, ?, 1)", l+1, name); err != nil {
			return fmt.Errorf("inserting layer %d: %w", l, err)
		}
	}
	_, err = tx.Exec("UPDATE image SET layer = layer + 1")
	return err
}

func (m *migrator) rebuildImages(tx *sql.Tx) error {
	return m.rebuildTable(tx, "image", createImage, `SELECT id, filename, ext, frame, external_id, timestamp,
sort_index, width, height, path, layer FROM image
WHERE path IN (SELECT id FROM path) AND layer IN (SELECT id FROM layer) ORDER BY id`)
}

// rebuildGeometry adds the cascading references of every annotation table.
// Rows pointing at missing parents are dropped, optional references are
// cleared.
func (m *migrator) rebuildGeometry(tx *sql.Tx) error {
	for _, stmt := range []string{"DROP TRIGGER IF EXISTS no_empty_tracks", "DROP TRIGGER IF EXISTS no_empty_tracks_update"} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	const (
		liveImage = "image IN (SELECT id FROM image)"
		optType   = "CASE WHEN type IN (SELECT id FROM markertype) THEN type END"
	)
	steps := []struct {
		table, ddl, sel string
	}{
		{"markertype", createMarkerType, "SELECT id, name, color, mode, style, text, hidden FROM markertype ORDER BY id"},
		{"track", createTrack, `SELECT id, style, text, type, hidden FROM track
WHERE type IN (SELECT id FROM markertype) ORDER BY id`},
		{"marker", createMarker, `SELECT id, image, x, y, ` + optType + `, processed,
CASE WHEN track IN (SELECT id FROM track) THEN track END, style, text FROM marker
WHERE ` + liveImage + ` ORDER BY id`},
		{"line", createLine, `SELECT id, image, x1, y1, x2, y2, ` + optType + `, processed, style, text
FROM line WHERE ` + liveImage + ` ORDER BY id`},
		{"rectangle", createRectangle, `SELECT id, image, x, y, width, height, ` + optType + `, processed, style, text
FROM rectangle WHERE ` + liveImage + ` ORDER BY id`},
		{"ellipse", createEllipse, `SELECT id, image, x, y, width, height, angle, ` + optType + `, processed, style, text
FROM ellipse WHERE ` + liveImage + ` ORDER BY id`},
		{"polygon", createPolygon, `SELECT id, image, ` + optType + `, closed, processed, style, text
FROM polygon WHERE ` + liveImage + ` ORDER BY id`},
		{"polygon_point", createPolygonPoint, `SELECT id, polygon, x, y, "index" FROM polygon_point
WHERE polygon IN (SELECT id FROM polygon) ORDER BY id`},
		{"mask", createMask, "SELECT id, image, data FROM mask WHERE " + liveImage + " ORDER BY id"},
	}
	for _, s := range steps {
		if err := m.rebuildTable(tx, s.table, s.ddl, s.sel); err != nil {
			return err
		}
	}
	for _, stmt := range triggerDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating trigger: %w", err)
		}
	}
	return deleteEmptyTracks(tx)
}

// rebuildAnnotations enforces one annotation per image and unique tags.
// Duplicate tag names are folded onto their lowest id first.
func (m *migrator) rebuildAnnotations(tx *sql.Tx) error {
	if _, err := tx.Exec(`UPDATE tagassociation SET tag =
(SELECT MIN(t2.id) FROM tag t1 JOIN tag t2 ON t2.name = t1.name WHERE t1.id = tagassociation.tag)
WHERE tag IN (SELECT id FROM tag)`); err != nil {
		return fmt.Errorf("folding duplicate tags: %w", err)
	}
	if err := m.rebuildTable(tx, "annotation", createAnnotation, `SELECT id, image, timestamp, comment, rating
FROM annotation WHERE id IN (SELECT MIN(id) FROM annotation GROUP BY image)
AND image IN (SELECT id FROM image) ORDER BY id`); err != nil {
		return err
	}
	if err := m.rebuildTable(tx, "tag", createTag, "SELECT id, name FROM tag ORDER BY id"); err != nil {
		return err
	}
	return m.rebuildTable(tx, "tagassociation", createTagAssociation, `SELECT id, annotation, tag FROM tagassociation
WHERE annotation IN (SELECT id FROM annotation) AND tag IN (SELECT id FROM tag) ORDER BY id`)
}
