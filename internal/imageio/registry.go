// Package imageio decodes image files by extension and caches decoded
// pixels per image.
package imageio

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// Reader decodes frame of the file at path.
type Reader interface {
	Read(path string, frame int) (image.Image, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(path string, frame int) (image.Image, error)

// Read calls f.
func (f ReaderFunc) Read(path string, frame int) (image.Image, error) { return f(path, frame) }

// Registry maps lower-case extensions including the dot to readers.
type Registry struct {
	mu      sync.RWMutex
	readers map[string]Reader
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register installs r for ext, replacing any previous reader.
func (r *Registry) Register(ext string, rd Reader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readers[normalizeExt(ext)] = rd
}

// Lookup returns the reader of ext.
func (r *Registry) Lookup(ext string) (Reader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.readers[normalizeExt(ext)]
	return rd, ok
}

// Extensions returns the registered extensions in order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.readers))
	for ext := range r.readers {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Read decodes frame of path with the reader registered for its extension.
func (r *Registry) Read(path string, frame int) (image.Image, error) {
	ext := types.Extension(path)
	rd, ok := r.Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrNoImageReader, ext)
	}
	img, err := rd.Read(path, frame)
	if err != nil {
		return nil, fmt.Errorf("reading %s frame %d: %w", path, frame, err)
	}
	return img, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// DefaultRegistry returns a registry of the still image formats: png, jpeg,
// gif (every frame), bmp, tiff and webp.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	jpg := single(jpeg.Decode)
	tif := single(tiff.Decode)
	r.Register(".png", single(png.Decode))
	r.Register(".jpg", jpg)
	r.Register(".jpeg", jpg)
	r.Register(".tif", tif)
	r.Register(".tiff", tif)
	r.Register(".bmp", single(bmp.Decode))
	r.Register(".webp", single(webp.Decode))
	r.Register(".gif", ReaderFunc(readGIF))
	return r
}

// single wraps a decoder of single frame formats.
func single(decode func(io.Reader) (image.Image, error)) Reader {
	return ReaderFunc(func(path string, frame int) (image.Image, error) {
		if frame != 0 {
			return nil, fmt.Errorf("frame %d requested from a single frame file", frame)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return decode(f)
	})
}

func readGIF(path string, frame int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if frame == 0 {
		return gif.Decode(f)
	}
	all, err := gif.DecodeAll(f)
	if err != nil {
		return nil, err
	}
	if frame < 0 || frame >= len(all.Image) {
		return nil, fmt.Errorf("frame %d outside 0..%d", frame, len(all.Image)-1)
	}
	return compositeGIF(all, frame), nil
}

// compositeGIF renders frame over the frames before it, applying their
// disposal methods.
func compositeGIF(all *gif.GIF, frame int) image.Image {
	bounds := image.Rect(0, 0, all.Config.Width, all.Config.Height)
	if bounds.Empty() {
		bounds = all.Image[0].Bounds()
	}
	canvas := image.NewRGBA(bounds)
	for i := 0; i <= frame; i++ {
		src := all.Image[i]
		var disposal byte
		if i < len(all.Disposal) {
			disposal = all.Disposal[i]
		}
		var saved *image.RGBA
		if disposal == gif.DisposalPrevious && i < frame {
			saved = image.NewRGBA(bounds)
			copy(saved.Pix, canvas.Pix)
		}
		draw.Draw(canvas, src.Bounds(), src, src.Bounds().Min, draw.Over)
		if i == frame {
			break
		}
		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, src.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = saved
		}
	}
	return canvas
}
