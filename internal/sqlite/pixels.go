// This file implements pixel access: decoding image files through the
// reader registry, rectangle crops and line profiles.
package sqlite

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fabrylab/clickpoints/internal/geometry"
	"github.com/fabrylab/clickpoints/internal/imageio"
	"github.com/fabrylab/clickpoints/pkg/types"
)

// CropOptions tunes CropRectangle and the line profiles.
type CropOptions struct {
	// Target is the image to sample. Nil samples the annotation's own image.
	Target *types.Image
	// WithOffset moves the region by the offset difference between the
	// annotation's image and Target.
	WithOffset bool
	// Subpixel aligns the crop to the fractional origin.
	Subpixel bool
	// Border grows the region by this many pixels on each side.
	Border int
}

func imageItem(df *DataFile, img *types.Image) imageio.Item {
	return imageio.Item{ID: img.ID, Path: img.FullPath(df.dir), Frame: img.Frame}
}

// ImageData returns the decoded pixels of an image.
func (df *DataFile) ImageData(img *types.Image) (*types.Pixels, error) {
	return df.loader.Load(imageItem(df, img))
}

// PrefetchImages decodes images into the pixel cache with up to workers
// concurrent readers.
func (df *DataFile) PrefetchImages(ctx context.Context, images []*types.Image, workers int) error {
	items := make([]imageio.Item, len(images))
	for i, img := range images {
		items[i] = imageItem(df, img)
	}
	return df.loader.Prefetch(ctx, items, workers)
}

// target loads the image to sample and the shift from the annotation's image
// into it.
func (df *DataFile) target(ownImage int64, opts CropOptions) (*types.Pixels, types.Point, error) {
	img := opts.Target
	if img == nil {
		own, err := df.GetImage(types.ImageByID(ownImage))
		if err != nil {
			return nil, types.Point{}, doesNotExist(err, "image %d", ownImage)
		}
		img = own
	}
	pix, err := df.ImageData(img)
	if err != nil {
		return nil, types.Point{}, err
	}
	var shift types.Point
	if opts.WithOffset && img.ID != ownImage {
		own, err := df.imageOffset(ownImage)
		if err != nil {
			return nil, types.Point{}, err
		}
		other, err := df.imageOffset(img.ID)
		if err != nil {
			return nil, types.Point{}, err
		}
		shift = own.Sub(other)
	}
	return pix, shift, nil
}

// CropRectangle returns the intensities under a rectangle as a
// [rows, columns] matrix. The region is clipped to the image; a rectangle
// entirely outside yields ErrInvalidData.
func (df *DataFile) CropRectangle(r *types.Rectangle, opts CropOptions) (*mat.Dense, error) {
	pix, shift, err := df.target(r.ImageID, opts)
	if err != nil {
		return nil, err
	}
	moved := *r
	moved.X += shift.X
	moved.Y += shift.Y

	var m *mat.Dense
	if opts.Subpixel {
		origin, w, h := moved.Normalized()
		b := float64(opts.Border)
		m = geometry.SubpixelCrop(pix, origin.X-b, origin.Y-b,
			int(math.Round(w))+2*opts.Border, int(math.Round(h))+2*opts.Border)
	} else {
		rows, cols := moved.Slice(opts.Border)
		m = geometry.Crop(pix, rows, cols)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: rectangle %d lies outside the image", types.ErrInvalidData, r.ID)
	}
	return m, nil
}

// LineProfile samples the intensity along a line at unit steps.
func (df *DataFile) LineProfile(l *types.Line, opts CropOptions) (*mat.VecDense, error) {
	pix, shift, err := df.target(l.ImageID, opts)
	if err != nil {
		return nil, err
	}
	return geometry.LineProfile(pix, l.Start().Add(shift), l.End().Add(shift)), nil
}

// LineProfiles samples width parallel profiles centred on a line as a
// [width, samples] matrix.
func (df *DataFile) LineProfiles(l *types.Line, width int, opts CropOptions) (*mat.Dense, error) {
	pix, shift, err := df.target(l.ImageID, opts)
	if err != nil {
		return nil, err
	}
	return geometry.LineProfiles(pix, l.Start().Add(shift), l.End().Add(shift), width), nil
}
