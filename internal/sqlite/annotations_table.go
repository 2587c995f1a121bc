// This file implements annotations, tags and their associations.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// The tag names of an annotation are aggregated into a JSON array so one row
// carries the whole annotation.
const selectAnnotation = `SELECT a.id, a.image, a.timestamp, a.comment, a.rating,
(SELECT json_group_array(name) FROM (SELECT g.name FROM tagassociation ta JOIN tag g ON g.id = ta.tag
    WHERE ta.annotation = a.id ORDER BY g.name))
FROM annotation a JOIN image i ON i.id = a.image`

func scanAnnotation(s scanner) (*types.Annotation, error) {
	a := &types.Annotation{}
	var ts nullTime
	var tags sql.NullString
	if err := s.Scan(&a.ID, &a.ImageID, &ts, &a.Comment, &a.Rating, &tags); err != nil {
		return nil, err
	}
	a.Timestamp = ts.t
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &a.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags of annotation %d: %w", a.ID, err)
		}
	}
	if len(a.Tags) == 0 {
		a.Tags = nil
	}
	return a, nil
}

// GetAnnotation returns the annotation with the given id.
func (df *DataFile) GetAnnotation(id int64) (*types.Annotation, error) {
	a, err := scanAnnotation(df.db.QueryRow(selectAnnotation+" WHERE a.id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

// GetImageAnnotation returns the annotation of an image.
func (df *DataFile) GetImageAnnotation(imageID int64) (*types.Annotation, error) {
	a, err := scanAnnotation(df.db.QueryRow(selectAnnotation+" WHERE a.image = ?", imageID))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func annotationFilter(q types.AnnotationQuery) *filter {
	f := &filter{}
	imageFilter(f, "a", q.ImageFilter)
	in(f, "a.id", q.IDs)
	in(f, "a.rating", q.Ratings)
	in(f, "a.comment", q.Comments)
	if len(q.Tags) > 0 {
		sub := &filter{}
		in(sub, "g.name", q.Tags)
		f.add("a.id IN (SELECT ta.annotation FROM tagassociation ta JOIN tag g ON g.id = ta.tag"+sub.where()+")", sub.args...)
	}
	return f
}

// GetAnnotations returns the matching annotations in timeline order.
func (df *DataFile) GetAnnotations(q types.AnnotationQuery) iter.Seq2[*types.Annotation, error] {
	f := annotationFilter(q)
	return queryRows(df.db, selectAnnotation+f.where()+" ORDER BY i.sort_index, a.id", f.args, scanAnnotation)
}

// SetAnnotation inserts or updates an annotation matched by id, then by
// image. On update a nil timestamp, an empty comment and a zero rating keep
// the stored value. Non-nil a.Tags replace the tags of the annotation;
// unknown tag names are created.
func (df *DataFile) SetAnnotation(a *types.Annotation) (*types.Annotation, error) {
	var out *types.Annotation
	err := df.inTx(func(tx *sql.Tx) error {
		w := *a
		var existing *types.Annotation
		var err error
		if w.ID != 0 {
			existing, err = scanAnnotation(tx.QueryRow(selectAnnotation+" WHERE a.id = ?", w.ID))
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("looking up annotation: %w", err)
			}
			if existing != nil && w.ImageID == 0 {
				w.ImageID = existing.ImageID
			}
		}
		if w.ImageID == 0 {
			return fmt.Errorf("%w: annotation needs an image", types.ErrInvalidData)
		}
		if _, err := df.lookupImage(tx, types.ImageByID(w.ImageID)); err != nil {
			return doesNotExist(err, "image %d", w.ImageID)
		}
		if w.ID == 0 {
			existing, err = scanAnnotation(tx.QueryRow(selectAnnotation+" WHERE a.image = ?", w.ImageID))
			switch {
			case err == nil:
				w.ID = existing.ID
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("looking up annotation: %w", err)
			}
		}
		if existing != nil {
			if w.Timestamp == nil {
				w.Timestamp = existing.Timestamp
			}
			if w.Comment == "" {
				w.Comment = existing.Comment
			}
			if w.Rating == 0 {
				w.Rating = existing.Rating
			}
		}

		res, err := tx.Exec(`INSERT INTO annotation (id, image, timestamp, comment, rating) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET image = excluded.image, timestamp = excluded.timestamp,
comment = excluded.comment, rating = excluded.rating`,
			zeroNull(w.ID), w.ImageID, formatTime(w.Timestamp), w.Comment, w.Rating)
		if err != nil {
			return fmt.Errorf("persisting annotation: %w", translate(err))
		}
		if w.ID == 0 {
			if w.ID, err = res.LastInsertId(); err != nil {
				return err
			}
		}
		if existing == nil || w.Tags != nil {
			if err := setAnnotationTags(tx, w.ID, w.Tags); err != nil {
				return err
			}
		}
		out, err = scanAnnotation(tx.QueryRow(selectAnnotation+" WHERE a.id = ?", w.ID))
		return err
	})
	return out, err
}

func setAnnotationTags(tx *sql.Tx, annotation int64, names []string) error {
	names = slices.Compact(slices.Sorted(slices.Values(names)))
	ids := make([]any, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		id, err := ensureTag(tx, name)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	del := "DELETE FROM tagassociation WHERE annotation = ?"
	args := []any{annotation}
	if len(ids) > 0 {
		del += " AND tag NOT IN (" + placeholders(len(ids)) + ")"
		args = append(args, ids...)
	}
	if _, err := tx.Exec(del, args...); err != nil {
		return fmt.Errorf("removing tags of annotation %d: %w", annotation, err)
	}
	for _, id := range ids {
		if _, err := tx.Exec("INSERT OR IGNORE INTO tagassociation (annotation, tag) VALUES (?, ?)", annotation, id); err != nil {
			return fmt.Errorf("tagging annotation %d: %w", annotation, err)
		}
	}
	return nil
}

// DeleteAnnotations removes the matching annotations and their tag links.
func (df *DataFile) DeleteAnnotations(q types.AnnotationQuery) (int64, error) {
	f := annotationFilter(q)
	return df.deleteWhere("annotation", "SELECT a.id FROM annotation a JOIN image i ON i.id = a.image"+f.where(), f.args)
}

const selectTag = "SELECT id, name FROM tag"

func scanTag(s scanner) (*types.Tag, error) {
	t := &types.Tag{}
	if err := s.Scan(&t.ID, &t.Name); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTag returns the tag with the given id.
func (df *DataFile) GetTag(id int64) (*types.Tag, error) {
	t, err := scanTag(df.db.QueryRow(selectTag+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// GetTagByName returns the tag called name.
func (df *DataFile) GetTagByName(name string) (*types.Tag, error) {
	t, err := scanTag(df.db.QueryRow(selectTag+" WHERE name = ?", name))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func tagFilter(q types.TagQuery) *filter {
	f := &filter{}
	in(f, "id", q.IDs)
	in(f, "name", q.Names)
	return f
}

// GetTags returns the matching tags ordered by name.
func (df *DataFile) GetTags(q types.TagQuery) iter.Seq2[*types.Tag, error] {
	f := tagFilter(q)
	return queryRows(df.db, selectTag+f.where()+" ORDER BY name", f.args, scanTag)
}

// TagNames returns the names of all tags in order.
func (df *DataFile) TagNames() ([]string, error) {
	tags, err := types.Collect(df.GetTags(types.TagQuery{}))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names, nil
}

// SetTag returns the tag called name, creating it when missing.
func (df *DataFile) SetTag(name string) (*types.Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", types.ErrInvalidData)
	}
	var out *types.Tag
	err := df.inTx(func(tx *sql.Tx) error {
		id, err := ensureTag(tx, name)
		if err != nil {
			return err
		}
		out = &types.Tag{ID: id, Name: name}
		return nil
	})
	return out, err
}

func ensureTag(q querier, name string) (int64, error) {
	if _, err := q.Exec("INSERT OR IGNORE INTO tag (name) VALUES (?)", name); err != nil {
		return 0, fmt.Errorf("creating tag %q: %w", name, err)
	}
	var id int64
	if err := q.QueryRow("SELECT id FROM tag WHERE name = ?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("reading tag %q: %w", name, err)
	}
	return id, nil
}

// DeleteTags removes the matching tags from every annotation.
func (df *DataFile) DeleteTags(q types.TagQuery) (int64, error) {
	f := tagFilter(q)
	return df.deleteWhere("tag", "SELECT id FROM tag"+f.where(), f.args)
}

// GetTagAssociations returns the links of an annotation.
func (df *DataFile) GetTagAssociations(annotationID int64) iter.Seq2[*types.TagAssociation, error] {
	return queryRows(df.db, "SELECT id, annotation, tag FROM tagassociation WHERE annotation = ? ORDER BY id",
		[]any{annotationID}, func(s scanner) (*types.TagAssociation, error) {
			ta := &types.TagAssociation{}
			return ta, s.Scan(&ta.ID, &ta.AnnotationID, &ta.TagID)
		})
}
