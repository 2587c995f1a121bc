package sqlite

import (
	"database/sql"
	"encoding/json"
	"iter"
	"strings"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// filter collects AND-joined conditions and their arguments.
type filter struct {
	conditions []string
	args       []any
}

func (f *filter) add(cond string, args ...any) {
	f.conditions = append(f.conditions, cond)
	f.args = append(f.args, args...)
}

// where renders the WHERE clause, or nothing without conditions.
func (f *filter) where() string {
	if len(f.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conditions, " AND ")
}

// maxInlineValues is the longest list in binds as one parameter each.
const maxInlineValues = 500

// in constrains column to values: no values is no constraint, one value is
// equality, more is membership. Long lists are bound as a single JSON array
// so they stay below the parameter limit.
func in[T any](f *filter, column string, values []T) {
	switch {
	case len(values) == 0:
	case len(values) == 1:
		f.add(column+" = ?", values[0])
	case len(values) > maxInlineValues:
		if list, err := json.Marshal(values); err == nil {
			f.add(column+" IN (SELECT value FROM json_each(?))", string(list))
			return
		}
		fallthrough
	default:
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}
		f.add(column+" IN ("+placeholders(len(values))+")", args...)
	}
}

// inSubquery constrains column to the ids selected from table by key.
func inSubquery[T any](f *filter, column, table, key string, values []T) {
	if len(values) == 0 {
		return
	}
	sub := &filter{}
	in(sub, key, values)
	f.add(column+" IN (SELECT id FROM "+quoteIdent(table)+sub.where()+")", sub.args...)
}

func within(f *filter, column string, r *types.Range) {
	if r == nil {
		return
	}
	f.add(column+" >= ?", r.Start)
	if r.Stop >= 0 {
		f.add(column+" < ?", r.Stop)
	}
}

func flag(f *filter, column string, v *bool) {
	if v != nil {
		f.add(column+" = ?", *v)
	}
}

// imageFilter constrains rows of alias whose image column points at an
// image joined as i.
func imageFilter(f *filter, alias string, q types.ImageFilter) {
	in(f, alias+".image", q.Images)
	in(f, "i.sort_index", q.Frames)
	within(f, "i.sort_index", q.FrameRange)
	in(f, "i.filename", q.Filenames)
	in(f, "i.layer", q.Layers)
}

func geometryFilter(f *filter, alias string, q types.GeometryQuery) {
	imageFilter(f, alias, q.ImageFilter)
	in(f, alias+".id", q.IDs)
	in(f, alias+".type", q.Types)
	inSubquery(f, alias+".type", "markertype", "name", q.TypeNames)
	flag(f, alias+".processed", q.Processed)
	in(f, alias+".text", q.Texts)
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryRows returns a sequence that runs query on every iteration and yields
// the scanned rows.
func queryRows[T any](q querier, query string, args []any, scan func(scanner) (*T, error)) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		rows, err := q.Query(query, args...)
		if err != nil {
			yield(nil, err)
			return
		}
		defer rows.Close()
		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// deleteWhere removes the rows of table whose id is selected by sel.
func (df *DataFile) deleteWhere(table, sel string, args []any) (int64, error) {
	if err := df.writable(); err != nil {
		return 0, err
	}
	res, err := df.db.Exec("DELETE FROM "+quoteIdent(table)+" WHERE id IN ("+sel+")", args...)
	if err != nil {
		return 0, translate(err)
	}
	return res.RowsAffected()
}

func count(q querier, query string, args []any) (int, error) {
	var n int
	if err := q.QueryRow("SELECT COUNT(*) FROM ("+query+")", args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error) error {
	if err == sql.ErrNoRows {
		return types.ErrNotFound
	}
	return err
}
