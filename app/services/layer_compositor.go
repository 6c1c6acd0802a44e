package services

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// LayerCompositor flattens stored image layers into one PNG
type LayerCompositor interface {
	Compose(ctx context.Context, store BlobStore, keys []string, width, height int) ([]byte, error)
}

type layerCompositor struct {
	maxParallel int
}

func NewLayerCompositor(maxParallel int) LayerCompositor {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	return &layerCompositor{maxParallel: maxParallel}
}

// Compose fetches every layer concurrently and draws them bottom-up in key order,
// each stretched to the canvas
func (c *layerCompositor) Compose(ctx context.Context, store BlobStore, keys []string, width, height int) ([]byte, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one layer is required")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", width, height)
	}

	layers := make([]image.Image, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)
	for i, key := range keys {
		g.Go(func() error {
			raw, err := store.Get(gctx, key)
			if err != nil {
				return fmt.Errorf("fetch layer %s: %w", key, err)
			}
			img, err := DecodeImage(raw)
			if err != nil {
				return fmt.Errorf("decode layer %s: %w", key, err)
			}
			layers[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dc := gg.NewContext(width, height)
	for _, layer := range layers {
		scaled := image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), layer, layer.Bounds(), draw.Src, nil)
		dc.DrawImage(scaled, 0, 0)
	}

	return EncodePNG(dc.Image())
}
