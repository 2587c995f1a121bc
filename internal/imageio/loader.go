package imageio

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// Item identifies one frame to load.
type Item struct {
	ID    int64
	Path  string
	Frame int
}

// Loader reads frames through a Registry and keeps the decoded pixels in a
// Cache. It is safe for concurrent use.
type Loader struct {
	readers *Registry
	cache   *Cache
}

// NewLoader returns a loader over readers and cache.
func NewLoader(readers *Registry, cache *Cache) *Loader {
	return &Loader{readers: readers, cache: cache}
}

// Cache returns the pixel cache.
func (l *Loader) Cache() *Cache { return l.cache }

// Registry returns the readers.
func (l *Loader) Registry() *Registry { return l.readers }

// Load returns the pixels of item, decoding them on a cache miss.
func (l *Loader) Load(item Item) (*types.Pixels, error) {
	if p, ok := l.cache.Get(item.ID); ok {
		return p, nil
	}
	img, err := l.readers.Read(item.Path, item.Frame)
	if err != nil {
		return nil, err
	}
	p := types.PixelsFromImage(img)
	l.cache.Put(item.ID, p)
	return p, nil
}

// Prefetch loads items into the cache with at most workers concurrent
// decodes. It stops at the first failure or when ctx is done.
func (l *Loader) Prefetch(ctx context.Context, items []Item, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, workers))
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := l.Load(item); err != nil {
				return fmt.Errorf("prefetching image %d: %w", item.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}
