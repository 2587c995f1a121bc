package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// shapeRow is the part every geometry row shares.
type shapeRow struct {
	id        int64
	imageID   int64
	typeID    *int64
	processed bool
	style     string
	text      string
}

// writeShape upserts one row of a geometry table by id. Missing image, type,
// style and text and a false processed flag fall back to the stored row. cols
// and vals carry the table specific columns, which are always written.
func (df *DataFile) writeShape(tx *sql.Tx, table string, mode types.Mode, row shapeRow, cols []string, vals []any) (int64, error) {
	if row.id == 0 && row.typeID == nil {
		return 0, fmt.Errorf("%w: %s needs an id or a type", types.ErrInvalidData, table)
	}
	if row.id != 0 {
		var image int64
		var typ sql.NullInt64
		var processed bool
		var style, text sql.NullString
		err := tx.QueryRow("SELECT image, type, processed, style, text FROM "+quoteIdent(table)+" WHERE id = ?", row.id).
			Scan(&image, &typ, &processed, &style, &text)
		switch {
		case err == nil:
			if row.imageID == 0 {
				row.imageID = image
			}
			if row.typeID == nil {
				row.typeID = idPtr(typ)
			}
			if row.style == "" {
				row.style = style.String
			}
			if row.text == "" {
				row.text = text.String
			}
			row.processed = row.processed || processed
		case !errors.Is(err, sql.ErrNoRows):
			return 0, fmt.Errorf("looking up %s %d: %w", table, row.id, err)
		}
	}
	if row.imageID == 0 {
		return 0, fmt.Errorf("%w: %s needs an image", types.ErrInvalidData, table)
	}
	if _, err := df.lookupImage(tx, types.ImageByID(row.imageID)); err != nil {
		return 0, doesNotExist(err, "image %d", row.imageID)
	}
	if row.typeID != nil {
		if _, err := df.checkType(tx, *row.typeID, mode); err != nil {
			return 0, err
		}
	}

	columns := append([]string{"id", "image", "type", "processed", "style", "text"}, cols...)
	args := append([]any{zeroNull(row.id), row.imageID, nullID(row.typeID), row.processed,
		nullString(row.style), nullString(row.text)}, vals...)
	updates := make([]string, 0, len(columns)-1)
	for _, c := range columns[1:] {
		updates = append(updates, quoteIdent(c)+" = excluded."+quoteIdent(c))
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	res, err := tx.Exec("INSERT INTO "+quoteIdent(table)+" ("+strings.Join(quoted, ", ")+") VALUES ("+
		placeholders(len(columns))+") ON CONFLICT(id) DO UPDATE SET "+strings.Join(updates, ", "), args...)
	if err != nil {
		return 0, fmt.Errorf("persisting %s: %w", table, translate(err))
	}
	if row.id != 0 {
		return row.id, nil
	}
	return res.LastInsertId()
}

// writeShapes is the bulk form of writeShape. extraLens are the lengths of
// the table specific columns and appendExtra appends their values of row i.
func (df *DataFile) writeShapes(table string, mode types.Mode, c types.ShapeColumns, extra []string, extraLens []int,
	appendExtra func(i int, args []any) []any) (int, error) {
	if err := df.writable(); err != nil {
		return 0, err
	}
	for _, l := range extraLens {
		if l == 0 {
			return 0, fmt.Errorf("%w: %s coordinates are required", types.ErrInvalidData, table)
		}
	}
	if len(c.IDs) == 0 && len(c.Types) == 0 && len(c.TypeNames) == 0 {
		return 0, fmt.Errorf("%w: %s rows need ids or types", types.ErrInvalidData, table)
	}

	tx, err := df.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	images, err := df.resolveImageColumn(tx, c.ImageColumns)
	if err != nil {
		return 0, err
	}
	typeIDs, err := df.resolveTypeColumn(tx, c, mode)
	if err != nil {
		return 0, err
	}
	lengths := append([]int{len(images), len(c.IDs), len(typeIDs), len(c.Processed), len(c.Styles), len(c.Texts)}, extraLens...)
	n, err := bulkLength(lengths...)
	if err != nil {
		return 0, err
	}

	columns := append([]string{"image", "type", "processed", "style", "text"}, extra...)
	withID := len(c.IDs) > 0
	if withID {
		columns = append([]string{"id"}, columns...)
	}
	err = df.replaceRows(tx, table, columns, n, func(i int, args []any) []any {
		if withID {
			args = append(args, zeroNull(pick(c.IDs, i)))
		}
		args = append(args, pick(images, i), zeroNull(pick(typeIDs, i)), boolInt(pick(c.Processed, i)),
			nullString(pick(c.Styles, i)), nullString(pick(c.Texts, i)))
		return appendExtra(i, args)
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing %s rows: %w", table, err)
	}
	return n, nil
}

// shapeSelect selects columns of a geometry table joined with its image.
func shapeSelect(columns, table, alias string) string {
	return "SELECT " + columns + " FROM " + quoteIdent(table) + " " + alias + " JOIN image i ON i.id = " + alias + ".image"
}

// inTx runs fn in a write transaction.
func (df *DataFile) inTx(fn func(tx *sql.Tx) error) error {
	if err := df.writable(); err != nil {
		return err
	}
	tx, err := df.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}
