package types

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup and lifecycle errors.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrDoesNotExist    = errors.New("referenced entity does not exist")
	ErrReadOnly        = errors.New("project file is opened read-only")
	ErrClosed          = errors.New("project file is closed")
	ErrNotProjectFile  = errors.New("file is not a project file")
	ErrMigrationFailed = errors.New("schema migration failed")
	ErrNoImageReader   = errors.New("no image reader for extension")
)

// Validation errors. They are returned before any row is written.
var (
	ErrInvalidData        = errors.New("invalid entity data")
	ErrInvalidColor       = errors.New("invalid color")
	ErrTypeMismatch       = errors.New("marker type mode does not match")
	ErrInvalidFilter      = errors.New("invalid filter")
	ErrInvalidMode        = errors.New("invalid marker type mode")
	ErrUnknownOption      = errors.New("unknown option")
	ErrInvalidOptionValue = errors.New("invalid option value")
)

// Integrity and raster errors.
var (
	ErrIntegrityConflict = errors.New("integrity conflict")
	ErrDimensionMismatch = errors.New("mask dimensions do not match image")
	ErrDtypeMismatch     = errors.New("mask data must be one byte per pixel")
)

// MergeConflictError reports that two tracks have markers on the same images.
// ImageIDs holds at most ten of the conflicting image ids.
type MergeConflictError struct {
	TrackA, TrackB int64
	ImageIDs       []int64
}

func (e *MergeConflictError) Error() string {
	ids := make([]string, len(e.ImageIDs))
	for i, id := range e.ImageIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("tracks %d and %d both have markers on images [%s]",
		e.TrackA, e.TrackB, strings.Join(ids, ", "))
}

// Is reports whether target is ErrIntegrityConflict.
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrIntegrityConflict
}

// DimensionError reports a mask whose shape differs from its image.
type DimensionError struct {
	ImageID     int64
	MaskWidth   int
	MaskHeight  int
	ImageWidth  int
	ImageHeight int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("mask %dx%d does not match image %d of %dx%d",
		e.MaskWidth, e.MaskHeight, e.ImageID, e.ImageWidth, e.ImageHeight)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// MigrationError wraps the failure of a single migration step. The file is
// left at Version-1.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrating to version %d (%s): %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrMigrationFailed.
func (e *MigrationError) Is(target error) bool {
	return target == ErrMigrationFailed
}
