package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// CurrentVersion is the schema version this package writes and reads.
const CurrentVersion = 22

// migration upgrades a file from version-1 to version. up runs inside the
// step transaction; the version bump is written in the same transaction.
type migration struct {
	version int
	name    string
	up      func(m *migrator, tx *sql.Tx) error
}

// migrator carries what steps need besides the transaction.
type migrator struct {
	df *DataFile
}

// migrate brings an existing file to CurrentVersion.
func (df *DataFile) migrate() error {
	ctx := context.Background()
	conn, err := df.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	names, err := tableNames(conn)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		conn.Close()
		return df.createSchema()
	}
	if !names["image"] && !names["images"] {
		return fmt.Errorf("%s: %w", df.path, types.ErrNotProjectFile)
	}

	version, err := readVersion(conn)
	if err != nil {
		return err
	}
	switch {
	case version == CurrentVersion:
		return nil
	case version > CurrentVersion:
		df.logger.Warn("project file is newer than supported, continuing at risk",
			"version", version, "supported", CurrentVersion)
		return nil
	}

	df.logger.Info("migrating project file", "from", version, "to", CurrentVersion)

	// Table rebuilds need these off; both pragmas are no-ops inside a transaction.
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disabling foreign keys: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA legacy_alter_table = ON"); err != nil {
		return fmt.Errorf("enabling legacy alter table: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, "PRAGMA legacy_alter_table = OFF")
		_, _ = conn.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	}()

	m := &migrator{df: df}
	for _, step := range migrations {
		if step.version <= version {
			continue
		}
		if err := m.apply(ctx, conn, step); err != nil {
			return &types.MigrationError{Version: step.version, Name: step.name, Err: err}
		}
		df.logger.Info("applied migration", "version", step.version, "name", step.name)
	}

	if err := foreignKeyCheck(conn); err != nil {
		return &types.MigrationError{Version: CurrentVersion, Name: "foreign key check", Err: err}
	}
	return nil
}

// apply runs one step and its version bump atomically.
func (m *migrator) apply(ctx context.Context, conn *sql.Conn, step migration) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := step.up(m, tx); err != nil {
		return err
	}
	if err := setMeta(tx, metaVersion, strconv.Itoa(step.version)); err != nil {
		return err
	}
	return tx.Commit()
}

// readVersion returns meta.version, or 0 when the file predates meta.
func readVersion(q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}) (int, error) {
	ctx := context.Background()
	var n int
	if err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'meta'").Scan(&n); err != nil {
		return 0, fmt.Errorf("reading schema: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	var s string
	err := q.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaVersion).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading version: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: version %q", types.ErrInvalidData, s)
	}
	return v, nil
}

func tableNames(conn *sql.Conn) (map[string]bool, error) {
	rows, err := conn.QueryContext(context.Background(),
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()
	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}

func foreignKeyCheck(conn *sql.Conn) error {
	rows, err := conn.QueryContext(context.Background(), "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("checking foreign keys: %w", err)
	}
	defer rows.Close()
	var violations []string
	for rows.Next() {
		var table, parent string
		var rowid, fkid sql.NullInt64
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return err
		}
		if len(violations) < 10 {
			violations = append(violations, fmt.Sprintf("%s row %d -> %s", table, rowid.Int64, parent))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("%w: foreign key violations: %s",
			types.ErrIntegrityConflict, strings.Join(violations, ", "))
	}
	return nil
}

// Schema helpers used by the steps.

func tableExists(tx *sql.Tx, name string) (bool, error) {
	var n int
	err := tx.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", name, err)
	}
	return n > 0, nil
}

func hasColumn(tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return false, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// addColumn adds column when it is missing.
func addColumn(tx *sql.Tx, table, column, decl string) error {
	ok, err := hasColumn(tx, table, column)
	if err != nil || ok {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(table), column, decl)
	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}

// createIfMissing runs a CREATE TABLE statement unless the table exists.
func createIfMissing(tx *sql.Tx, name, ddl string) error {
	ok, err := tableExists(tx, name)
	if err != nil || ok {
		return err
	}
	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	return nil
}

// rebuildTable recreates table with its current DDL and copies the rows
// selected by selectSQL, which must yield the columns of the new table in
// order. The old table, its indices and triggers are dropped. Rows that
// selectSQL filters out or that violate a new constraint are counted and
// logged.
func (m *migrator) rebuildTable(tx *sql.Tx, table, ddl, selectSQL string) error {
	exists, err := tableExists(tx, table)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := tx.Exec(ddl); err != nil {
			return fmt.Errorf("creating %s: %w", table, err)
		}
		return nil
	}
	tmp := table + "_new"
	if _, err := tx.Exec("DROP TABLE IF EXISTS " + quoteIdent(tmp)); err != nil {
		return fmt.Errorf("dropping %s: %w", tmp, err)
	}
	if _, err := tx.Exec(renameDDL(ddl, table, tmp)); err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	var before int64
	if err := tx.QueryRow("SELECT COUNT(*) FROM " + quoteIdent(table)).Scan(&before); err != nil {
		return fmt.Errorf("counting %s: %w", table, err)
	}
	insert := fmt.Sprintf("INSERT OR IGNORE INTO %s %s", quoteIdent(tmp), selectSQL)
	res, err := tx.Exec(insert)
	if err != nil {
		return fmt.Errorf("copying %s: %w", table, err)
	}
	copied, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if dropped := before - copied; dropped > 0 {
		m.df.logger.Warn("dropped rows while rebuilding table", "table", table, "dropped", dropped)
	}
	if _, err := tx.Exec("DROP TABLE " + quoteIdent(table)); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quoteIdent(tmp), quoteIdent(table))); err != nil {
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	for _, stmt := range indexDDL[table] {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("indexing %s: %w", table, err)
		}
	}
	return nil
}

// renameDDL rewrites the table name of a CREATE TABLE statement.
func renameDDL(ddl, from, to string) string {
	for _, prefix := range []string{"CREATE TABLE " + quoteIdent(from) + " (", "CREATE TABLE " + from + " ("} {
		if strings.HasPrefix(ddl, prefix) {
			return "CREATE TABLE " + quoteIdent(to) + " (" + ddl[len(prefix):]
		}
	}
	return ddl
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func ifNotExists(ddl string) string {
	ddl = strings.Replace(ddl, "CREATE TABLE ", "CREATE TABLE IF NOT EXISTS ", 1)
	return strings.Replace(ddl, "CREATE TRIGGER ", "CREATE TRIGGER IF NOT EXISTS ", 1)
}
