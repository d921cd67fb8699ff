//go:build !govips || !cgo

package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

func Startup() error {
	return nil
}

func Shutdown() {}

func encodePNG(img *image.RGBA) ([]byte, error) {
	if img == nil {
		return nil, ErrSurfaceAcquisition
	}

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
