package types

import (
	"path/filepath"
	"strings"
	"time"
)

// Path is the directory an image lives in. Relative paths are resolved
// against the directory of the project file.
type Path struct {
	ID   int64
	Path string
}

// Layer groups parallel image stacks that share a timeline. Every chain of
// base layers ends at a layer that is its own base.
type Layer struct {
	ID        int64
	Name      string
	BaseLayer int64
}

// IsBase reports whether the layer is the end of its base chain.
func (l *Layer) IsBase() bool { return l.ID == l.BaseLayer }

// DefaultLayerName is the layer every new project file starts with.
const DefaultLayerName = "default"

// Image is one frame of the dataset. SortIndex is its position on the
// timeline and is shared by the images of parallel layers.
type Image struct {
	ID         int64
	Filename   string
	Ext        string
	Frame      int
	ExternalID *int64
	Timestamp  *time.Time
	SortIndex  int
	Width      *int
	Height     *int
	PathID     int64
	LayerID    int64

	// Path is the directory of PathID. It is filled on read.
	Path string
}

// Extension returns the lower-cased extension of filename including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// FullPath joins the image directory and filename. Relative directories are
// resolved against base.
func (img *Image) FullPath(base string) string {
	dir := img.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	return filepath.Join(dir, img.Filename)
}

// Offset is the drift correction of one image. Adding it to a raw annotation
// coordinate yields the corrected coordinate.
type Offset struct {
	ID      int64
	ImageID int64
	X, Y    float64
}

// ImageRef locates an image by id, by timeline position within a layer, or
// by filename. The first non-zero selector wins.
type ImageRef struct {
	ID       int64
	Frame    *int
	Layer    int64
	Filename string
}

// ImageByID returns a reference to the image with the given id.
func ImageByID(id int64) ImageRef { return ImageRef{ID: id} }

// ImageAtFrame returns a reference to the image at sort index frame in layer.
// A zero layer means the default layer.
func ImageAtFrame(frame int, layer int64) ImageRef {
	return ImageRef{Frame: &frame, Layer: layer}
}

// ImageNamed returns a reference to the image with the given filename.
func ImageNamed(filename string) ImageRef { return ImageRef{Filename: filename} }

// IsZero reports whether no selector is set.
func (r ImageRef) IsZero() bool {
	return r.ID == 0 && r.Frame == nil && r.Filename == ""
}
