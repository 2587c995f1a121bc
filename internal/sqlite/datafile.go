// Package sqlite implements the ClickPoints project file on top of SQLite:
// connection setup, the current schema, the migration chain and the entity
// repository.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fabrylab/clickpoints/internal/imageio"
	"github.com/fabrylab/clickpoints/pkg/types"
)

// OpenMode selects how Open treats the file.
type OpenMode int

const (
	// ModeRead opens an existing file. Writes fail with ErrReadOnly.
	ModeRead OpenMode = iota
	// ModeReadWrite opens an existing file, creating it when missing.
	ModeReadWrite
	// ModeWrite deletes any existing file and creates a fresh one.
	ModeWrite
)

// ParseOpenMode accepts "r", "r+" and "w".
func ParseOpenMode(s string) (OpenMode, error) {
	switch s {
	case "r", "read":
		return ModeRead, nil
	case "r+", "rw", "read-write":
		return ModeReadWrite, nil
	case "w", "write":
		return ModeWrite, nil
	}
	return 0, fmt.Errorf("unknown open mode %q", s)
}

// Options tunes a DataFile. The zero value is usable.
type Options struct {
	Logger *slog.Logger
	// Readers decodes image files by extension. Defaults to imageio.DefaultRegistry.
	Readers *imageio.Registry
	// CacheTTL is the lifetime of decoded pixels. Zero uses imageio.DefaultTTL.
	CacheTTL time.Duration
	// MaxParameters overrides the probed per-statement parameter limit.
	MaxParameters int
	// OptionSpecs declares the options of the file. Defaults to types.DefaultOptions.
	OptionSpecs []types.OptionSpec
}

// DataFile is an open project file.
//
// A DataFile is meant to be used from one goroutine at a time. Sequences
// returned by the Get methods run their query when iterated and may be
// iterated again.
type DataFile struct {
	path     string
	dir      string
	db       *sql.DB
	readOnly bool
	logger   *slog.Logger
	loader   *imageio.Loader

	maxParams int
	probeOnce sync.Once

	mu          sync.Mutex
	closed      bool
	optionSpecs []types.OptionSpec
	options     map[string]types.OptionValue
}

// Create creates a fresh project file at path, replacing any existing file.
func Create(path string, opts Options) (*DataFile, error) {
	return Open(path, ModeWrite, opts)
}

// Open opens the project file at path and migrates it to CurrentVersion.
func Open(path string, mode OpenMode, opts Options) (*DataFile, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	_, statErr := os.Stat(abs)
	exists := statErr == nil
	switch mode {
	case ModeWrite:
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(abs + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("removing %s: %w", abs+suffix, err)
			}
		}
		exists = false
	case ModeRead:
		if !exists {
			return nil, fmt.Errorf("opening %s: %w", abs, statErr)
		}
	case ModeReadWrite:
	default:
		return nil, fmt.Errorf("unknown open mode %d", mode)
	}

	db, err := sql.Open("sqlite", dsn(abs, false))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", abs, err)
	}

	df := &DataFile{
		path:        abs,
		dir:         filepath.Dir(abs),
		db:          db,
		logger:      logger.With("file", filepath.Base(abs)),
		maxParams:   opts.MaxParameters,
		optionSpecs: opts.OptionSpecs,
	}
	if df.optionSpecs == nil {
		df.optionSpecs = types.DefaultOptions
	}
	readers := opts.Readers
	if readers == nil {
		readers = imageio.DefaultRegistry()
	}
	df.loader = imageio.NewLoader(readers, imageio.NewCache(opts.CacheTTL))

	if exists {
		err = df.migrate()
	} else {
		err = df.createSchema()
	}
	if err != nil {
		db.Close()
		return nil, err
	}

	if mode == ModeRead {
		// Reopen with query_only so every pooled connection refuses writes.
		db.Close()
		if df.db, err = sql.Open("sqlite", dsn(abs, true)); err != nil {
			return nil, fmt.Errorf("reopening %s: %w", abs, err)
		}
		df.readOnly = true
	}

	if err := df.loadOptions(); err != nil {
		df.db.Close()
		return nil, err
	}
	return df, nil
}

func dsn(path string, readOnly bool) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(10000)")
	if readOnly {
		q.Add("_pragma", "query_only(1)")
	} else {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return path + "?" + q.Encode()
}

// createSchema builds every table of the current version in one transaction.
func (df *DataFile) createSchema() error {
	tx, err := df.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	for _, stmt := range allIndexDDL() {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	for _, stmt := range triggerDDL {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("creating trigger: %w", err)
		}
	}
	if _, err := tx.Exec("INSERT INTO layer (id, name, base_layer) VALUES (1, ?, 1)", types.DefaultLayerName); err != nil {
		return fmt.Errorf("creating default layer: %w", err)
	}
	if err := setMeta(tx, metaVersion, fmt.Sprint(CurrentVersion)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	df.logger.Debug("created project file", "version", CurrentVersion)
	return nil
}

// Close releases the connection pool and the pixel cache. Close is idempotent.
func (df *DataFile) Close() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if df.closed {
		return nil
	}
	df.closed = true
	df.loader.Cache().Flush()
	if !df.readOnly {
		// Fold the WAL back so the .cdb is self-contained when copied.
		_, _ = df.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	return df.db.Close()
}

// Path returns the absolute path of the project file.
func (df *DataFile) Path() string { return df.path }

// Dir returns the directory relative image paths are resolved against.
func (df *DataFile) Dir() string { return df.dir }

// ReadOnly reports whether the file was opened with ModeRead.
func (df *DataFile) ReadOnly() bool { return df.readOnly }

// DB exposes the underlying pool for read-only inspection.
func (df *DataFile) DB() *sql.DB { return df.db }

// Version returns the schema version stored in meta.
func (df *DataFile) Version() (int, error) {
	v, err := readVersion(df.db)
	if err != nil {
		return 0, err
	}
	return v, nil
}

// ProjectID returns the identity of the project, generating a UUIDv7 the
// first time it is requested on a writable file.
func (df *DataFile) ProjectID() (uuid.UUID, error) {
	var s string
	err := df.db.QueryRow("SELECT value FROM meta WHERE key = ?", metaUUID).Scan(&s)
	if err == nil {
		id, perr := uuid.Parse(s)
		if perr != nil {
			return uuid.Nil, fmt.Errorf("%w: project id %q: %v", types.ErrInvalidData, s, perr)
		}
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("reading project id: %w", err)
	}
	if err := df.writable(); err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generating UUID v7: %w", err)
	}
	if err := setMeta(df.db, metaUUID, id.String()); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// writable fails for closed and read-only files.
func (df *DataFile) writable() error {
	df.mu.Lock()
	closed := df.closed
	df.mu.Unlock()
	if closed {
		return types.ErrClosed
	}
	if df.readOnly {
		return types.ErrReadOnly
	}
	return nil
}

// execer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

type querier interface {
	execer
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// translate maps storage constraint failures onto the package errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", types.ErrIntegrityConflict, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", types.ErrDoesNotExist, err)
	}
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE") {
		return fmt.Errorf("%w: %w", types.ErrIntegrityConflict, err)
	}
	return err
}

// Timestamps are stored as text in this layout.
const timeLayout = "2006-01-02 15:04:05.000000"

var timeLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// nullTime scans DATETIME columns whether the driver hands back text or a
// time.Time.
type nullTime struct{ t *time.Time }

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.t = nil
		return nil
	case time.Time:
		t := v.UTC()
		n.t = &t
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	}
	return fmt.Errorf("%w: cannot scan %T into timestamp", types.ErrInvalidData, src)
}

func (n *nullTime) parse(s string) error {
	if s == "" {
		n.t = nil
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			n.t = &t
			return nil
		}
	}
	return fmt.Errorf("%w: timestamp %q", types.ErrInvalidData, s)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullID(id *int64) any {
	if id == nil || *id == 0 {
		return nil
	}
	return *id
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// TableCounts returns the number of rows of every table except meta.
func (df *DataFile) TableCounts() (map[string]int, error) {
	out := make(map[string]int, len(types.StandardTableNames))
	for _, name := range types.StandardTableNames {
		if name == types.TableMeta {
			continue
		}
		var n int
		if err := df.db.QueryRow(`SELECT COUNT(*) FROM "` + name + `"`).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}
