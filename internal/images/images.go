// Package images provides the pool of decoded source images a render draws
// from. Decoding happens up front; a render only ever sees complete images.
package images

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

// Image is a decoded source image.
type Image struct {
	Name     string
	Img      image.Image
	Complete bool // decoded and usable
}

// Width returns the natural width.
func (i Image) Width() int {
	if i.Img == nil {
		return 0
	}
	return i.Img.Bounds().Dx()
}

// Height returns the natural height.
func (i Image) Height() int {
	if i.Img == nil {
		return 0
	}
	return i.Img.Bounds().Dy()
}

// Pool is an ordered set of images. Index positions are stable; generators
// refer to images by index.
type Pool struct {
	images []Image
}

// FromImages builds a pool from in-memory images, named by position.
func FromImages(imgs ...image.Image) *Pool {
	p := &Pool{}
	for i, im := range imgs {
		p.images = append(p.images, Image{Name: fmt.Sprintf("image-%d", i), Img: im, Complete: im != nil})
	}
	return p
}

// Len returns the number of images in the pool.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.images)
}

// Ready reports whether the pool holds at least one image and every image is
// complete.
func (p *Pool) Ready() bool {
	if p.Len() == 0 {
		return false
	}
	for _, im := range p.images {
		if !im.Complete || im.Img == nil {
			return false
		}
	}
	return true
}

// At returns the image at index i.
func (p *Pool) At(i int) Image { return p.images[i] }

// Images returns the decoded rasters in pool order.
func (p *Pool) Images() []image.Image {
	out := make([]image.Image, 0, p.Len())
	for _, im := range p.images {
		out = append(out, im.Img)
	}
	return out
}

var extensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// LoadDir decodes every supported image in dir concurrently. Files that fail
// to decode are logged and skipped; the pool is ordered by file name.
func LoadDir(ctx context.Context, dir string, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	decoded := make([]Image, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			im, err := decodeFile(filepath.Join(dir, name))
			if err != nil {
				logger.Warn("skipping undecodable image", zap.String("file", name), zap.Error(err))
				return nil
			}
			decoded[i] = Image{Name: name, Img: im, Complete: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := &Pool{}
	for _, im := range decoded {
		if im.Complete {
			p.images = append(p.images, im)
		}
	}
	logger.Debug("loaded images", zap.String("dir", dir), zap.Int("count", p.Len()))
	return p, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	im, _, err := image.Decode(f)
	return im, err
}
