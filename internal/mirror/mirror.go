// Package mirror copies the annotations of project files into a shared MySQL
// schema so several projects can be searched from one place.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// batchSize bounds the rows per upsert statement.
const batchSize = 200

// slowQuery is the threshold above which gorm logs a statement as slow.
const slowQuery = 200 * time.Millisecond

// Source is the read side of a project file.
type Source interface {
	ProjectID() (uuid.UUID, error)
	GetAnnotations(q types.AnnotationQuery) iter.Seq2[*types.Annotation, error]
	GetImages(q types.ImageQuery) iter.Seq2[*types.Image, error]
}

// Record is one mirrored annotation.
type Record struct {
	ProjectID     string `gorm:"primaryKey;size:36"`
	AnnotationID  int64  `gorm:"primaryKey;autoIncrement:false"`
	ImageID       int64
	ImageFilename string `gorm:"size:255;index"`
	ImagePath     string `gorm:"size:1024"`
	SortIndex     int
	Timestamp     *time.Time
	Comment       string `gorm:"type:text"`
	Rating        int    `gorm:"index"`
	Tags          string `gorm:"size:1024"`
	UpdatedAt     time.Time
}

// TableName names the shared table.
func (Record) TableName() string { return "clickpoints_annotations" }

// TagList splits the stored tag names.
func (r Record) TagList() []string {
	if r.Tags == "" {
		return nil
	}
	return strings.Split(r.Tags, ",")
}

// Result counts the effect of one push.
type Result struct {
	ProjectID string `json:"project_id"`
	Upserted  int    `json:"upserted"`
	Removed   int64  `json:"removed"`
}

// Mirror writes project annotations into the shared schema.
type Mirror struct {
	db  *gorm.DB
	log *slog.Logger
}

// Open connects to MySQL using a go-sql-driver DSN and prepares the table.
func Open(dsn string, log *slog.Logger) (*Mirror, error) {
	if dsn == "" {
		return nil, errors.New("mirror: empty dsn")
	}
	return New(mysql.Open(dsn), log)
}

// New connects through any gorm dialector and prepares the table.
func New(d gorm.Dialector, log *slog.Logger) (*Mirror, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(d, &gorm.Config{Logger: newGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("open mirror database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate mirror table: %w", err)
	}
	return &Mirror{db: db, log: log}, nil
}

// Close releases the connection pool.
func (m *Mirror) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("mirror connection: %w", err)
	}
	return sqlDB.Close()
}

// Push upserts every annotation of src and removes mirrored rows of the same
// project whose annotation no longer exists.
func (m *Mirror) Push(ctx context.Context, src Source) (Result, error) {
	id, err := src.ProjectID()
	if err != nil {
		return Result{}, fmt.Errorf("project id: %w", err)
	}
	records, err := buildRecords(id.String(), src)
	if err != nil {
		return Result{}, err
	}
	res := Result{ProjectID: id.String(), Upserted: len(records)}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(records) > 0 {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "project_id"}, {Name: "annotation_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"image_id", "image_filename", "image_path", "sort_index",
					"timestamp", "comment", "rating", "tags", "updated_at",
				}),
			}).CreateInBatches(records, batchSize).Error
			if err != nil {
				return fmt.Errorf("upsert annotations: %w", err)
			}
		}

		keep := make([]int64, len(records))
		for i, r := range records {
			keep[i] = r.AnnotationID
		}
		q := tx.Where("project_id = ?", res.ProjectID)
		if len(keep) > 0 {
			q = q.Where("annotation_id NOT IN ?", keep)
		}
		del := q.Delete(&Record{})
		if del.Error != nil {
			return fmt.Errorf("prune annotations: %w", del.Error)
		}
		res.Removed = del.RowsAffected
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	m.log.Info("mirrored annotations", "project", res.ProjectID, "upserted", res.Upserted, "removed", res.Removed)
	return res, nil
}

// Records returns the mirrored rows of a project ordered by sort index.
func (m *Mirror) Records(ctx context.Context, projectID string) ([]Record, error) {
	var out []Record
	err := m.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("sort_index ASC, annotation_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("read mirrored annotations: %w", err)
	}
	return out, nil
}

func buildRecords(projectID string, src Source) ([]Record, error) {
	annotations, err := types.Collect(src.GetAnnotations(types.AnnotationQuery{}))
	if err != nil {
		return nil, fmt.Errorf("read annotations: %w", err)
	}
	if len(annotations) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(annotations))
	for i, a := range annotations {
		ids[i] = a.ImageID
	}
	images := make(map[int64]*types.Image, len(ids))
	for chunk := range slices.Chunk(ids, batchSize) {
		for img, err := range src.GetImages(types.ImageQuery{IDs: chunk}) {
			if err != nil {
				return nil, fmt.Errorf("read annotated images: %w", err)
			}
			images[img.ID] = img
		}
	}

	now := time.Now().UTC()
	out := make([]Record, 0, len(annotations))
	for _, a := range annotations {
		r := Record{
			ProjectID:    projectID,
			AnnotationID: a.ID,
			ImageID:      a.ImageID,
			Timestamp:    a.Timestamp,
			Comment:      a.Comment,
			Rating:       a.Rating,
			Tags:         strings.Join(a.Tags, ","),
			UpdatedAt:    now,
		}
		if img, ok := images[a.ImageID]; ok {
			r.ImageFilename = img.Filename
			r.ImagePath = img.Path
			r.SortIndex = img.SortIndex
		}
		out = append(out, r)
	}
	return out, nil
}

// newGormLogger routes gorm's statement log through slog.
func newGormLogger(log *slog.Logger) gormlogger.Interface {
	return gormlogger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
