package types

import "gonum.org/v1/gonum/mat"

// Track groups at most one marker per image into a trajectory. A track is
// removed by the database as soon as its last marker is gone.
type Track struct {
	ID     int64
	TypeID int64
	Style  string
	Text   string
	Hidden bool
}

// MergeMode selects how Merge treats markers of both tracks on one image.
type MergeMode int

const (
	// MergeStrict fails with a MergeConflictError on overlapping images.
	MergeStrict MergeMode = iota
	// MergeAverage replaces overlapping markers by their coordinate mean.
	MergeAverage
)

// TrackPoint is one marker of a track together with its timeline position.
type TrackPoint struct {
	MarkerID  int64
	ImageID   int64
	SortIndex int
	X, Y      float64
}

// TrackArray is the dense [track, image, 2] export of a set of tracks.
// Missing markers are stored as zeros.
type TrackArray struct {
	TrackIDs []int64
	ImageIDs []int64
	Data     []float64
}

// NewTrackArray allocates a zero filled array.
func NewTrackArray(tracks, images []int64) *TrackArray {
	return &TrackArray{
		TrackIDs: tracks,
		ImageIDs: images,
		Data:     make([]float64, len(tracks)*len(images)*2),
	}
}

// Shape returns the dimensions of the array.
func (a *TrackArray) Shape() (tracks, images, coords int) {
	return len(a.TrackIDs), len(a.ImageIDs), 2
}

// At returns the coordinate of track t on image i (array indices).
func (a *TrackArray) At(t, i int) Point {
	o := (t*len(a.ImageIDs) + i) * 2
	return Point{a.Data[o], a.Data[o+1]}
}

// Set stores a coordinate.
func (a *TrackArray) Set(t, i int, p Point) {
	o := (t*len(a.ImageIDs) + i) * 2
	a.Data[o], a.Data[o+1] = p.X, p.Y
}

// Component returns coordinate c (0 for x, 1 for y) of every track and image
// as a [track, image] matrix.
func (a *TrackArray) Component(c int) *mat.Dense {
	if len(a.TrackIDs) == 0 || len(a.ImageIDs) == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(len(a.TrackIDs), len(a.ImageIDs), nil)
	for t := range a.TrackIDs {
		for i := range a.ImageIDs {
			m.Set(t, i, a.Data[(t*len(a.ImageIDs)+i)*2+c])
		}
	}
	return m
}
