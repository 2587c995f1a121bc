package sqlite

import (
	"fmt"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// Table DDL of the current schema version. The migration chain rebuilds
// tables with these same statements so fresh and migrated files agree.
const (
	createMeta = `CREATE TABLE meta (
    id INTEGER NOT NULL PRIMARY KEY,
    key VARCHAR(255) NOT NULL UNIQUE,
    value VARCHAR(255) NOT NULL
);`

	createPath = `CREATE TABLE path (
    id INTEGER NOT NULL PRIMARY KEY,
    path VARCHAR(255) NOT NULL UNIQUE
);`

	createLayer = `CREATE TABLE layer (
    id INTEGER NOT NULL PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE,
    base_layer INTEGER NOT NULL REFERENCES layer (id) ON DELETE CASCADE
);`

	createImage = `CREATE TABLE image (
    id INTEGER NOT NULL PRIMARY KEY,
    filename VARCHAR(255) NOT NULL,
    ext VARCHAR(10) NOT NULL,
    frame INTEGER NOT NULL DEFAULT 0,
    external_id INTEGER,
    timestamp DATETIME,
    sort_index INTEGER NOT NULL,
    width INTEGER,
    height INTEGER,
    path INTEGER NOT NULL REFERENCES path (id) ON DELETE CASCADE,
    layer INTEGER NOT NULL REFERENCES layer (id) ON DELETE CASCADE,
    UNIQUE (filename, path, frame)
);`

	createOffset = `CREATE TABLE "offset" (
    id INTEGER NOT NULL PRIMARY KEY,
    image INTEGER NOT NULL UNIQUE REFERENCES image (id) ON DELETE CASCADE,
    x REAL NOT NULL,
    y REAL NOT NULL
);`

	createMarkerType = `CREATE TABLE markertype (
    id INTEGER NOT NULL PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE,
    color VARCHAR(255) NOT NULL,
    mode INTEGER NOT NULL DEFAULT 0,
    style VARCHAR(255),
    text VARCHAR(255),
    hidden INTEGER NOT NULL DEFAULT 0
);`

	createTrack = `CREATE TABLE track (
    id INTEGER NOT NULL PRIMARY KEY,
    style VARCHAR(255),
    text VARCHAR(255),
    type INTEGER NOT NULL REFERENCES markertype (id) ON DELETE CASCADE,
    hidden INTEGER NOT NULL DEFAULT 0
);`

	createMarker = `CREATE TABLE marker (
    id INTEGER NOT NULL PRIMARY KEY,
    image INTEGER NOT NULL REFERENCES image (id) ON DELETE CASCADE,
    x REAL NOT NULL,
    y REAL NOT NULL,
    type INTEGER REFERENCES markertype (id) ON DELETE CASCADE,
    processed INTEGER NOT NULL DEFAULT 0,
    track INTEGER REFERENCES track (id) ON DELETE CASCADE,
    style VARCHAR(255),
    text VARCHAR(255),
    UNIQUE (image, track)
);`

	createLine = `CREATE TABLE line (
    id INTEGER NOT NULL PRIMARY KEY,
    image INTEGER NOT NULL REFERENCES image (id) ON DELETE CASCADE,
    x1 REAL NOT NULL,
    y1 REAL NOT NULL,
    x2 REAL NOT NULL,
    y2 REAL NOT NULL,
    type INTEGER REFERENCES markertype (id) ON DELETE CASCADE,
    processed INTEGER NOT NULL DEFAULT 0,
    style VARCHAR(255),
    text VARCHAR(255)
);`

	createRectangle = `CREATE TABLE rectangle (
    id INTEGER NOT NULL PRIMARY KEY,
    image INTEGER NOT NULL REFERENCES image (id) ON DELETE CASCADE,
    x REAL NOT NULL,
    y REAL NOT NULL,
    width REAL NOT NULL,
    height REAL NOT NULL,
    type INTEGER REFERENCES markertype (id) ON DELETE CASCADE,
    processed INTEGER NOT NULL DEFAULT 0,
    style VARCHAR(255),
    text VARCHAR(255)
);`

	createEllipse = `CREATE TABLE ellipse (
    id INTEGER NOT NULL PRIMARY KEY,
    image INTEGER NOT NULL REFERENCES image (id) ON DELETE CASCADE,
    x REAL NOT NULL,
    y REAL NOT NULL,
    width REAL NOT NULL,
    height REAL NOT NULL,
    angle REAL NOT NULL DEFAULT 0,
    type INTEGER REFERENCES markertype (id) ON DELETE CASCADE,
    processed INTEGER NOT NULL DEFAULT 0,
    style VARCHAR(255),
    text VARCHAR(255)
);`

	createPolygon = `CREATE TABLE polygon (
    id INTEGER NOT NULL PRIMARY KEY,
    image INTEGER NOT NULL REFERENCES image (id) ON DELETE CASCADE,
    type INTEGER REFERENCES markertype (id) ON DELETE CASCADE,
    closed INTEGER NOT NULL DEFAULT 0,
    processed INTEGER NOT NULL DEFAULT 0,
    style VARCHAR(255),
    text VARCHAR(255)
);`

	createPolygonPoint = `CREATE TABLE polygon_point (
    id INTEGER NOT NULL PRIMARY KEY,
    polygon INTEGER NOT NULL REFERENCES polygon (id) ON DELETE CASCADE,
    x REAL NOT NULL,
    y REAL NOT NULL,
    "index" INTEGER NOT NULL,
    UNIQUE (polygon, "index")
);`

	createMask = `CREATE TABLE mask (
    id INTEGER NOT NULL PRIMARY KEY,
    image INTEGER NOT NULL UNIQUE REFERENCES image (id) ON DELETE CASCADE,
    data BLOB NOT NULL
);`

	createMaskType = `CREATE TABLE masktype (
    id INTEGER NOT NULL PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE,
    color VARCHAR(255) NOT NULL,
    "index" INTEGER NOT NULL UNIQUE
);`

	createAnnotation = `CREATE TABLE annotation (
    id INTEGER NOT NULL PRIMARY KEY,
    image INTEGER NOT NULL UNIQUE REFERENCES image (id) ON DELETE CASCADE,
    timestamp DATETIME,
    comment TEXT NOT NULL DEFAULT '',
    rating INTEGER NOT NULL DEFAULT 0
);`

	createTag = `CREATE TABLE tag (
    id INTEGER NOT NULL PRIMARY KEY,
    name VARCHAR(255) NOT NULL UNIQUE
);`

	createTagAssociation = `CREATE TABLE tagassociation (
    id INTEGER NOT NULL PRIMARY KEY,
    annotation INTEGER NOT NULL REFERENCES annotation (id) ON DELETE CASCADE,
    tag INTEGER NOT NULL REFERENCES tag (id) ON DELETE CASCADE,
    UNIQUE (annotation, tag)
);`

	createOption = `CREATE TABLE option (
    id INTEGER NOT NULL PRIMARY KEY,
    key VARCHAR(255) NOT NULL UNIQUE,
    value TEXT
);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createMeta,
	createPath,
	createLayer,
	createImage,
	createOffset,
	createMarkerType,
	createTrack,
	createMarker,
	createLine,
	createRectangle,
	createEllipse,
	createPolygon,
	createPolygonPoint,
	createMask,
	createMaskType,
	createAnnotation,
	createTag,
	createTagAssociation,
	createOption,
}

// indexDDL lists the lookup indices per table.
var indexDDL = map[string][]string{
	"image": {
		`CREATE INDEX IF NOT EXISTS image_sort_index ON image (sort_index);`,
		`CREATE INDEX IF NOT EXISTS image_layer ON image (layer);`,
		`CREATE INDEX IF NOT EXISTS image_path ON image (path);`,
	},
	"marker": {
		`CREATE INDEX IF NOT EXISTS marker_image ON marker (image);`,
		`CREATE INDEX IF NOT EXISTS marker_type ON marker (type);`,
		`CREATE INDEX IF NOT EXISTS marker_track ON marker (track);`,
	},
	"line": {
		`CREATE INDEX IF NOT EXISTS line_image ON line (image);`,
		`CREATE INDEX IF NOT EXISTS line_type ON line (type);`,
	},
	"rectangle": {
		`CREATE INDEX IF NOT EXISTS rectangle_image ON rectangle (image);`,
		`CREATE INDEX IF NOT EXISTS rectangle_type ON rectangle (type);`,
	},
	"ellipse": {
		`CREATE INDEX IF NOT EXISTS ellipse_image ON ellipse (image);`,
		`CREATE INDEX IF NOT EXISTS ellipse_type ON ellipse (type);`,
	},
	"polygon": {
		`CREATE INDEX IF NOT EXISTS polygon_image ON polygon (image);`,
	},
	"track": {
		`CREATE INDEX IF NOT EXISTS track_type ON track (type);`,
	},
	"tagassociation": {
		`CREATE INDEX IF NOT EXISTS tagassociation_tag ON tagassociation (tag);`,
	},
}

// allIndexDDL returns the index statements of every table in schema order.
func allIndexDDL() []string {
	var out []string
	for _, name := range types.StandardTableNames {
		out = append(out, indexDDL[name]...)
	}
	return out
}

// Triggers removing a track once its last marker is gone.
const (
	triggerTrackDelete = `CREATE TRIGGER no_empty_tracks AFTER DELETE ON marker
WHEN OLD.track IS NOT NULL AND NOT EXISTS (SELECT 1 FROM marker WHERE track = OLD.track)
BEGIN
    DELETE FROM track WHERE id = OLD.track;
END;`

	triggerTrackUpdate = `CREATE TRIGGER no_empty_tracks_update AFTER UPDATE OF track ON marker
WHEN OLD.track IS NOT NULL AND NEW.track IS NOT OLD.track
    AND NOT EXISTS (SELECT 1 FROM marker WHERE track = OLD.track)
BEGIN
    DELETE FROM track WHERE id = OLD.track;
END;`
)

var triggerDDL = []string{triggerTrackDelete, triggerTrackUpdate}

// Keys of the meta table.
const (
	metaVersion = "version"
	metaUUID    = "uuid"
)

func setMeta(e execer, key, value string) error {
	_, err := e.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("writing meta %s: %w", key, err)
	}
	return nil
}
