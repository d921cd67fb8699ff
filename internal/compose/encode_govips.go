//go:build govips && cgo

package compose

import (
	"fmt"
	"image"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func encodePNG(img *image.RGBA) ([]byte, error) {
	if img == nil {
		return nil, ErrSurfaceAcquisition
	}

	ref, err := vips.NewImageFromMemory(img.Pix, img.Bounds().Dx(), img.Bounds().Dy(), 4)
	if err != nil {
		return nil, fmt.Errorf("wrap surface for encode: %w", err)
	}
	defer ref.Close()

	data, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return data, nil
}
