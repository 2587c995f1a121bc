package types

import "iter"

// Range is a half-open interval [Start, Stop) of sort indices. A negative
// Stop leaves the interval open to the right.
type Range struct {
	Start int
	Stop  int
}

// From returns the interval starting at start without an upper bound.
func From(start int) *Range { return &Range{Start: start, Stop: -1} }

// Between returns the interval [start, stop).
func Between(start, stop int) *Range { return &Range{Start: start, Stop: stop} }

// Contains reports whether i lies in the interval.
func (r *Range) Contains(i int) bool {
	return i >= r.Start && (r.Stop < 0 || i < r.Stop)
}

// ImageOrder selects the ordering of image sequences.
type ImageOrder int

const (
	OrderBySortIndex ImageOrder = iota
	OrderByTimestamp
	OrderByID
)

// ImageQuery filters images. Every slice field is optional: nil places no
// constraint, one element tests equality and more elements test membership.
// Frames filter on the sort index.
type ImageQuery struct {
	IDs         []int64
	Frames      []int
	FrameRange  *Range
	Filenames   []string
	Exts        []string
	ExternalIDs []int64
	Layers      []int64
	Paths       []int64
	// Skip keeps every Skip-th image of the ordered result.
	Skip  int
	Order ImageOrder
}

// ImageFilter restricts entities that belong to an image by attributes of
// that image.
type ImageFilter struct {
	Images     []int64
	Frames     []int
	FrameRange *Range
	Filenames  []string
	Layers     []int64
}

// GeometryQuery filters any of the geometry tables.
type GeometryQuery struct {
	ImageFilter
	IDs       []int64
	Types     []int64
	TypeNames []string
	Processed *bool
	Texts     []string
}

// MarkerQuery filters point markers.
type MarkerQuery struct {
	GeometryQuery
	Tracks []int64
}

// TrackQuery filters tracks.
type TrackQuery struct {
	IDs       []int64
	Types     []int64
	TypeNames []string
	Texts     []string
	Hidden    *bool
}

// MarkerTypeQuery filters marker types.
type MarkerTypeQuery struct {
	IDs    []int64
	Names  []string
	Colors []string
	Modes  []Mode
	Hidden *bool
}

// MaskQuery filters masks.
type MaskQuery struct {
	ImageFilter
	IDs []int64
}

// MaskTypeQuery filters mask types.
type MaskTypeQuery struct {
	IDs     []int64
	Names   []string
	Colors  []string
	Indices []int
}

// OffsetQuery filters offsets.
type OffsetQuery struct {
	ImageFilter
	IDs []int64
}

// AnnotationQuery filters annotations.
type AnnotationQuery struct {
	ImageFilter
	IDs      []int64
	Ratings  []int
	Comments []string
	// Tags keeps annotations carrying at least one of the named tags.
	Tags []string
}

// PathQuery filters paths.
type PathQuery struct {
	IDs   []int64
	Paths []string
}

// LayerQuery filters layers.
type LayerQuery struct {
	IDs        []int64
	Names      []string
	BaseLayers []int64
}

// TagQuery filters tags.
type TagQuery struct {
	IDs   []int64
	Names []string
}

// ImageColumns locates the images of a bulk write. Exactly one of Images,
// Frames or Filenames must be set. Frames are resolved within Layer (zero
// means the default layer).
type ImageColumns struct {
	Images    []int64
	Frames    []int
	Filenames []string
	Layer     int64
}

// ShapeColumns carries the attributes every geometry table shares. A column
// of length one is broadcast to every row; otherwise all columns of a bulk
// write must have the same length. Zero ids in Types are stored as NULL.
type ShapeColumns struct {
	ImageColumns
	IDs       []int64
	Types     []int64
	TypeNames []string
	Processed []bool
	Styles    []string
	Texts     []string
}

// MarkerColumns is the column form of a bulk marker write.
type MarkerColumns struct {
	ShapeColumns
	X, Y []float64
	// Tracks holds track ids; zero is stored as NULL.
	Tracks []int64
}

// LineColumns is the column form of a bulk line write.
type LineColumns struct {
	ShapeColumns
	X1, Y1, X2, Y2 []float64
}

// RectangleColumns is the column form of a bulk rectangle write.
type RectangleColumns struct {
	ShapeColumns
	X, Y, Width, Height []float64
}

// EllipseColumns is the column form of a bulk ellipse write.
type EllipseColumns struct {
	ShapeColumns
	X, Y, Width, Height, Angle []float64
}

// TrackArrayQuery selects the tracks and images of a dense track export.
type TrackArrayQuery struct {
	Tracks     []int64
	Types      []int64
	TypeNames  []string
	FrameRange *Range
	Skip       int
	// Layer selects the image stack; zero means the default layer.
	Layer       int64
	ApplyOffset bool
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[*T, error]) ([]*T, error) {
	var out []*T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
