package compose

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMergeProducesFramedPNG(t *testing.T) {
	profileBytes := encodeTestPNG(t, solidImage(400, 600, color.RGBA{B: 255, A: 255}))
	frameBytes := encodeTestPNG(t, frameWithCutout(800, 800, 200, color.RGBA{R: 255, A: 255}))

	out, err := Merge(context.Background(), profileBytes, frameBytes, TransformParams{})
	require.NoError(t, err)

	decoded, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 800, decoded.Bounds().Dx())
	assert.Equal(t, 800, decoded.Bounds().Dy())

	r, _, b, a := decoded.At(400, 400).RGBA()
	assert.Zero(t, r, "cutout center must show the profile photo")
	assert.Equal(t, uint32(0xffff), b)
	assert.Equal(t, uint32(0xffff), a)

	r, _, b, _ = decoded.At(10, 10).RGBA()
	assert.Equal(t, uint32(0xffff), r, "opaque frame region must win")
	assert.Zero(t, b)
}

func TestMergeDeterministic(t *testing.T) {
	profileBytes := encodeTestPNG(t, gradientImage(257, 389))
	frameBytes := encodeTestPNG(t, frameWithCutout(320, 320, 80, color.RGBA{G: 200, A: 255}))
	params := TransformParams{ProfileScale: 1.2, ProfileRotationDegrees: -15, ProfileOffsetY: 12}

	first, err := Merge(context.Background(), profileBytes, frameBytes, params)
	require.NoError(t, err)
	second, err := Merge(context.Background(), profileBytes, frameBytes, params)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMergeDecodeErrors(t *testing.T) {
	valid := encodeTestPNG(t, gradientImage(32, 32))
	garbage := []byte("not an image at all")

	_, err := Merge(context.Background(), garbage, valid, TransformParams{})
	assert.ErrorIs(t, err, ErrImageDecode)
	assert.Contains(t, err.Error(), "profile")

	_, err = Merge(context.Background(), valid, garbage, TransformParams{})
	assert.ErrorIs(t, err, ErrImageDecode)
	assert.Contains(t, err.Error(), "frame")
}

func TestMergeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	valid := encodeTestPNG(t, gradientImage(16, 16))
	_, err := Merge(ctx, valid, valid, TransformParams{})
	assert.ErrorIs(t, err, context.Canceled)
}
