package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// probeCeiling bounds the parameter probe.
const probeCeiling = 1 << 20

// maxParameters returns the number of bound parameters one statement may
// carry. It is probed once per DataFile unless overridden in Options.
func (df *DataFile) maxParameters() int {
	df.probeOnce.Do(func() {
		if df.maxParams > 0 {
			return
		}
		df.maxParams = probeMaxParameters(df.db)
		df.logger.Debug("probed parameter limit", "max_parameters", df.maxParams)
	})
	return df.maxParams
}

// probeMaxParameters finds the largest n for which a statement with n
// parameters is accepted, by doubling and then bisecting.
func probeMaxParameters(q querier) int {
	accepts := func(n int) bool {
		args := make([]any, n)
		for i := range args {
			args[i] = 1
		}
		var v int
		err := q.QueryRow("SELECT 1 WHERE 1 IN ("+placeholders(n)+")", args...).Scan(&v)
		return err == nil
	}
	if !accepts(1) {
		return 1
	}
	lo, hi := 1, 2
	for hi < probeCeiling && accepts(hi) {
		lo, hi = hi, hi*2
	}
	if hi >= probeCeiling {
		return lo
	}
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if accepts(mid) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// replaceRows writes n rows into table with INSERT OR REPLACE, as many rows
// per statement as the parameter limit allows. appendRow appends the values
// of row i in column order.
func (df *DataFile) replaceRows(tx *sql.Tx, table string, columns []string, n int, appendRow func(i int, args []any) []any) error {
	if n == 0 {
		return nil
	}
	width := len(columns)
	perChunk := max(1, df.maxParameters()/width)

	quoted := make([]string, width)
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	head := "INSERT OR REPLACE INTO " + quoteIdent(table) + " (" + strings.Join(quoted, ", ") + ") VALUES "
	tuple := "(" + placeholders(width) + ")"
	statement := func(rows int) string {
		return head + strings.Repeat(tuple+", ", rows-1) + tuple
	}

	var full *sql.Stmt
	if n >= perChunk {
		var err error
		if full, err = tx.Prepare(statement(perChunk)); err != nil {
			return fmt.Errorf("preparing bulk %s: %w", table, err)
		}
		defer full.Close()
	}

	args := make([]any, 0, perChunk*width)
	for start := 0; start < n; start += perChunk {
		end := min(n, start+perChunk)
		args = args[:0]
		for i := start; i < end; i++ {
			args = appendRow(i, args)
		}
		var err error
		if end-start == perChunk {
			_, err = full.Exec(args...)
		} else {
			_, err = tx.Exec(statement(end-start), args...)
		}
		if err != nil {
			return fmt.Errorf("writing %s rows %d-%d: %w", table, start, end, translate(err))
		}
	}
	return nil
}

// bulkLength returns the row count implied by column lengths. Empty columns
// are absent, columns of one element are broadcast, all others must agree.
func bulkLength(lengths ...int) (int, error) {
	n := 0
	for _, l := range lengths {
		if l > 1 {
			if n > 1 && l != n {
				return 0, fmt.Errorf("%w: column lengths %v differ", types.ErrInvalidData, lengths)
			}
			n = l
		}
	}
	if n == 0 {
		for _, l := range lengths {
			if l == 1 {
				return 1, nil
			}
		}
	}
	return n, nil
}

// pick returns element i of a broadcastable column, or the zero value when
// the column is absent.
func pick[T any](values []T, i int) T {
	switch len(values) {
	case 0:
		var zero T
		return zero
	case 1:
		return values[0]
	}
	return values[i]
}

// resolveImageColumn turns the image selector of a bulk write into image ids.
func (df *DataFile) resolveImageColumn(q querier, c types.ImageColumns) ([]int64, error) {
	set := 0
	for _, l := range []int{len(c.Images), len(c.Frames), len(c.Filenames)} {
		if l > 0 {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: exactly one of images, frames or filenames is required", types.ErrInvalidData)
	}
	if len(c.Images) > 0 {
		return c.Images, nil
	}

	layer, err := df.layerOrDefault(q, c.Layer)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, max(len(c.Frames), len(c.Filenames)))
	cache := make(map[any]int64)
	lookup := func(key any, query string, args ...any) (int64, error) {
		if id, ok := cache[key]; ok {
			return id, nil
		}
		var id int64
		if err := q.QueryRow(query, args...).Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return 0, fmt.Errorf("%w: image %v", types.ErrDoesNotExist, key)
			}
			return 0, err
		}
		cache[key] = id
		return id, nil
	}
	for _, f := range c.Frames {
		id, err := lookup(f, "SELECT id FROM image WHERE sort_index = ? AND layer = ? ORDER BY id LIMIT 1", f, layer)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	for _, name := range c.Filenames {
		id, err := lookup(name, "SELECT id FROM image WHERE filename = ? ORDER BY id LIMIT 1", name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// resolveTypeColumn merges Types and TypeNames into type ids and checks that
// every referenced type has one of the allowed modes.
func (df *DataFile) resolveTypeColumn(q querier, c types.ShapeColumns, allowed ...types.Mode) ([]int64, error) {
	if len(c.Types) > 0 && len(c.TypeNames) > 0 {
		return nil, fmt.Errorf("%w: types and type names are exclusive", types.ErrInvalidData)
	}
	ids := c.Types
	if len(c.TypeNames) > 0 {
		ids = make([]int64, len(c.TypeNames))
		byName := make(map[string]int64)
		for i, name := range c.TypeNames {
			id, ok := byName[name]
			if !ok {
				mt, err := df.markerTypeByName(q, name)
				if err != nil {
					return nil, err
				}
				id = mt.ID
				byName[name] = id
			}
			ids[i] = id
		}
	}
	checked := make(map[int64]bool)
	for _, id := range ids {
		if id == 0 || checked[id] {
			continue
		}
		if _, err := df.checkType(q, id, allowed...); err != nil {
			return nil, err
		}
		checked[id] = true
	}
	return ids, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func zeroNull(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
