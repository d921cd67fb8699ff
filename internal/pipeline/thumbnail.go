package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/nfnt/resize"
)

// thumbMaxEdge bounds the longest edge of gallery thumbnails.
const thumbMaxEdge = 320

func thumbnailPNG(composite image.Image) ([]byte, error) {
	thumb := resize.Thumbnail(thumbMaxEdge, thumbMaxEdge, composite, resize.Lanczos3)

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, thumb); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
