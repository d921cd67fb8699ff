package compose

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}
	return img
}

// frameWithCutout is opaque except for a transparent square hole in the middle.
func frameWithCutout(w, h, hole int, c color.RGBA) *image.RGBA {
	img := solidImage(w, h, c)
	x0 := (w - hole) / 2
	y0 := (h - hole) / 2
	for y := y0; y < y0+hole; y++ {
		for x := x0; x < x0+hole; x++ {
			img.SetRGBA(x, y, color.RGBA{})
		}
	}
	return img
}

func opaqueCenter(t *testing.T, img *image.RGBA) (float64, float64) {
	t.Helper()

	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	require.LessOrEqual(t, minX, maxX, "expected at least one opaque pixel")
	return float64(minX+maxX) / 2, float64(minY+maxY) / 2
}

func TestRenderSurfaceMatchesFrameSize(t *testing.T) {
	cases := []struct {
		frameW, frameH     int
		profileW, profileH int
	}{
		{800, 800, 400, 600},
		{640, 480, 2000, 500},
		{120, 900, 33, 47},
	}

	for _, tc := range cases {
		surface := NewSurface()
		err := Render(surface, gradientImage(tc.profileW, tc.profileH), solidImage(tc.frameW, tc.frameH, color.RGBA{R: 255, A: 255}), TransformParams{})
		require.NoError(t, err)
		assert.Equal(t, tc.frameW, surface.Image().Bounds().Dx())
		assert.Equal(t, tc.frameH, surface.Image().Bounds().Dy())
	}
}

func TestProfileGeometryCoverFit(t *testing.T) {
	g := profileGeometry(800, 800, 400, 600, TransformParams{}.normalized())

	assert.Equal(t, 2.0, g.Scale)
	assert.Equal(t, 800.0, g.Width)
	assert.Equal(t, 1200.0, g.Height)
	assert.Equal(t, 0.0, g.X)
	assert.Equal(t, -200.0, g.Y)
	assert.Equal(t, 400.0, g.CenterX)
	assert.Equal(t, 400.0, g.CenterY)
}

func TestProfileGeometryAlwaysCovers(t *testing.T) {
	shapes := []struct{ cw, ch, pw, ph int }{
		{800, 800, 400, 600},
		{300, 500, 1000, 100},
		{100, 100, 100, 100},
		{1920, 1080, 640, 640},
	}

	for _, s := range shapes {
		g := profileGeometry(s.cw, s.ch, s.pw, s.ph, TransformParams{}.normalized())

		// At least one dimension covers the canvas exactly; the other is >=.
		assert.GreaterOrEqual(t, g.Width, float64(s.cw))
		assert.GreaterOrEqual(t, g.Height, float64(s.ch))
		assert.True(t, g.Width == float64(s.cw) || g.Height == float64(s.ch),
			"one dimension must match the canvas exactly: %+v", g)

		// Centered: equal margins on opposing sides.
		assert.InDelta(t, float64(s.cw)-g.Width-g.X, g.X, 1e-9)
		assert.InDelta(t, float64(s.ch)-g.Height-g.Y, g.Y, 1e-9)
	}
}

func TestProfileGeometryOffsetsShiftCenter(t *testing.T) {
	params := TransformParams{ProfileOffsetX: 30, ProfileOffsetY: -45}.normalized()
	base := profileGeometry(400, 400, 200, 200, TransformParams{}.normalized())
	moved := profileGeometry(400, 400, 200, 200, params)

	assert.Equal(t, base.CenterX+30, moved.CenterX)
	assert.Equal(t, base.CenterY-45, moved.CenterY)
	assert.Equal(t, base.Width, moved.Width)
	assert.Equal(t, base.Height, moved.Height)
}

func TestRenderIdempotent(t *testing.T) {
	profile := gradientImage(311, 457)
	frame := frameWithCutout(500, 400, 120, color.RGBA{R: 200, G: 30, B: 40, A: 255})
	params := TransformParams{
		ProfileScale:           1.3,
		FrameScale:             0.9,
		ProfileRotationDegrees: 33,
		ProfileOffsetX:         17,
		ProfileOffsetY:         -8,
	}

	first := NewSurface()
	require.NoError(t, Render(first, profile, frame, params))

	second := NewSurface()
	require.NoError(t, Render(second, profile, frame, params))

	assert.Equal(t, first.Image().Pix, second.Image().Pix)
}

func TestRenderDrawOrder(t *testing.T) {
	profile := solidImage(50, 50, color.RGBA{B: 255, A: 255})
	frame := frameWithCutout(100, 100, 20, color.RGBA{R: 255, A: 255})

	surface := NewSurface()
	require.NoError(t, Render(surface, profile, frame, TransformParams{}))
	out := surface.Image()

	// The cutout center shows the photo beneath the frame.
	assert.Equal(t, color.RGBA{B: 255, A: 255}, out.RGBAAt(50, 50))
	// Opaque frame regions win over the photo.
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(5, 5))
}

func TestRenderRotationAboutCenter(t *testing.T) {
	profile := solidImage(100, 100, color.RGBA{B: 255, A: 255})
	frame := image.NewRGBA(image.Rect(0, 0, 200, 200)) // fully transparent overlay

	straight := NewSurface()
	require.NoError(t, Render(straight, profile, frame, TransformParams{ProfileScale: 0.5}))

	flipped := NewSurface()
	require.NoError(t, Render(flipped, profile, frame, TransformParams{
		ProfileScale:           0.5,
		ProfileRotationDegrees: 180,
	}))

	cx0, cy0 := opaqueCenter(t, straight.Image())
	cx1, cy1 := opaqueCenter(t, flipped.Image())
	assert.InDelta(t, cx0, cx1, 1)
	assert.InDelta(t, cy0, cy1, 1)
}

func TestRenderInvalidDimensions(t *testing.T) {
	surface := NewSurface()
	frame := solidImage(100, 100, color.RGBA{R: 255, A: 255})

	require.NoError(t, Render(surface, gradientImage(50, 50), frame, TransformParams{}))
	before := make([]uint8, len(surface.Image().Pix))
	copy(before, surface.Image().Pix)

	zeroWidth := image.NewRGBA(image.Rect(0, 0, 0, 10))
	err := Render(surface, zeroWidth, frame, TransformParams{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	assert.Equal(t, before, surface.Image().Pix, "surface must be untouched on error")

	err = Render(surface, gradientImage(50, 50), image.NewRGBA(image.Rect(0, 0, 10, 0)), TransformParams{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	err = Render(surface, nil, frame, TransformParams{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestRenderNilSurface(t *testing.T) {
	err := Render(nil, gradientImage(10, 10), gradientImage(10, 10), TransformParams{})
	assert.ErrorIs(t, err, ErrSurfaceAcquisition)
}

func TestSurfaceReuseAcrossFrameSizes(t *testing.T) {
	surface := NewSurface()
	profile := gradientImage(64, 64)

	require.NoError(t, Render(surface, profile, solidImage(100, 80, color.RGBA{G: 255, A: 255}), TransformParams{}))
	assert.Equal(t, 100, surface.Image().Bounds().Dx())

	require.NoError(t, Render(surface, profile, solidImage(40, 40, color.RGBA{G: 255, A: 255}), TransformParams{}))
	assert.Equal(t, 40, surface.Image().Bounds().Dx())
	assert.Equal(t, 40, surface.Image().Bounds().Dy())
}

func BenchmarkRender(b *testing.B) {
	profile := gradientImage(1200, 1600)
	frame := frameWithCutout(800, 800, 400, color.RGBA{R: 220, G: 180, B: 40, A: 255})
	params := TransformParams{ProfileScale: 1.1, ProfileRotationDegrees: 12, ProfileOffsetX: 25}
	surface := NewSurface()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Render(surface, profile, frame, params); err != nil {
			b.Fatalf("render: %v", err)
		}
	}
}
