package compose

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Merge decodes both source images, renders the composite onto a fresh
// off-screen surface and returns it encoded as lossless PNG. The two decodes
// run concurrently and join before rendering; if either fails the merge
// short-circuits with ErrImageDecode.
func Merge(ctx context.Context, profileBytes, frameBytes []byte, params TransformParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sources := [2][]byte{profileBytes, frameBytes}
	names := [2]string{"profile", "frame"}

	var (
		wg   sync.WaitGroup
		imgs [2]image.Image
		errs [2]error
	)
	for i := range sources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, _, err := image.Decode(bytes.NewReader(sources[i]))
			if err != nil {
				errs[i] = fmt.Errorf("%w: %s: %v", ErrImageDecode, names[i], err)
				return
			}
			imgs[i] = img
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	surface := NewSurface()
	if err := Render(surface, imgs[0], imgs[1], params); err != nil {
		return nil, err
	}

	return encodePNG(surface.Image())
}
