// Package compose renders a profile photo underneath a decorative frame
// overlay on a single canvas. The frame dictates the canvas size; the photo
// is cover-fitted, then adjusted by user-supplied scale, rotation and pixel
// offsets. Rendering is deterministic and holds no state between calls.
package compose

import (
	"errors"
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

var (
	ErrImageDecode        = errors.New("source bytes are not a decodable image")
	ErrInvalidDimensions  = errors.New("image has zero width or height")
	ErrSurfaceAcquisition = errors.New("drawing surface is unavailable")
)

// TransformParams adjusts how the profile photo sits under the frame.
// Zero scales are treated as 1; rotation and offsets pass through as given.
// Offsets may push the photo partly or fully outside the canvas.
type TransformParams struct {
	ProfileScale           float64 `json:"profile_scale,omitempty"`
	FrameScale             float64 `json:"frame_scale,omitempty"`
	ProfileRotationDegrees float64 `json:"profile_rotation_degrees,omitempty"`
	ProfileOffsetX         int     `json:"profile_offset_x,omitempty"`
	ProfileOffsetY         int     `json:"profile_offset_y,omitempty"`
}

func (p TransformParams) normalized() TransformParams {
	if p.ProfileScale <= 0 {
		p.ProfileScale = 1
	}
	if p.FrameScale <= 0 {
		p.FrameScale = 1
	}
	return p
}

// Surface is a reusable drawing target. Callers may hold one across repeated
// Render calls (live preview); each call leaves it fully drawn, never partial.
type Surface struct {
	rgba *image.RGBA
}

func NewSurface() *Surface {
	return &Surface{}
}

// Image returns the pixel buffer of the last render, or nil before the first.
func (s *Surface) Image() *image.RGBA {
	return s.rgba
}

func (s *Surface) ensure(w, h int) {
	if s.rgba != nil && s.rgba.Bounds().Dx() == w && s.rgba.Bounds().Dy() == h {
		return
	}
	s.rgba = image.NewRGBA(image.Rect(0, 0, w, h))
}

// Render composites profile under frame onto surface. The surface is resized
// to the frame's natural dimensions and cleared before drawing. On error the
// surface is left untouched.
func Render(surface *Surface, profile, frame image.Image, params TransformParams) error {
	if surface == nil {
		return ErrSurfaceAcquisition
	}
	if profile == nil || frame == nil {
		return ErrInvalidDimensions
	}

	pb := profile.Bounds()
	fb := frame.Bounds()
	if pb.Dx() <= 0 || pb.Dy() <= 0 || fb.Dx() <= 0 || fb.Dy() <= 0 {
		return ErrInvalidDimensions
	}

	params = params.normalized()
	w, h := fb.Dx(), fb.Dy()
	surface.ensure(w, h)
	dst := surface.rgba

	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)

	// The photo goes down first so a frame with a transparent cutout
	// reveals it. Reversing this order breaks the product.
	g := profileGeometry(w, h, pb.Dx(), pb.Dy(), params)
	xdraw.BiLinear.Transform(dst, g.affine(pb), profile, pb, xdraw.Over, nil)

	if params.FrameScale == 1 {
		draw.Draw(dst, dst.Bounds(), frame, fb.Min, draw.Over)
		return nil
	}

	sw := float64(w) * params.FrameScale
	sh := float64(h) * params.FrameScale
	x0 := (float64(w) - sw) / 2
	y0 := (float64(h) - sh) / 2
	rect := image.Rect(
		int(math.Round(x0)),
		int(math.Round(y0)),
		int(math.Round(x0+sw)),
		int(math.Round(y0+sh)),
	)
	xdraw.BiLinear.Scale(dst, rect, frame, fb, xdraw.Over, nil)
	return nil
}

// placement is the resolved geometry for the profile draw.
type placement struct {
	Scale   float64 // uniform scale from natural profile pixels to canvas pixels
	Width   float64
	Height  float64
	X       float64 // top-left of the unrotated draw rect
	Y       float64
	CenterX float64
	CenterY float64
	Angle   float64 // radians
}

// profileGeometry cover-fits the profile to the canvas, applies the user zoom
// uniformly, centers the result and shifts it by the raw pixel offsets.
func profileGeometry(canvasW, canvasH, profileW, profileH int, params TransformParams) placement {
	cover := math.Max(
		float64(canvasW)/float64(profileW),
		float64(canvasH)/float64(profileH),
	)
	scale := cover * params.ProfileScale
	w := float64(profileW) * scale
	h := float64(profileH) * scale
	x := (float64(canvasW)-w)/2 + float64(params.ProfileOffsetX)
	y := (float64(canvasH)-h)/2 + float64(params.ProfileOffsetY)

	return placement{
		Scale:   scale,
		Width:   w,
		Height:  h,
		X:       x,
		Y:       y,
		CenterX: x + w/2,
		CenterY: y + h/2,
		Angle:   params.ProfileRotationDegrees * math.Pi / 180,
	}
}

// affine builds the source-to-canvas matrix: move the photo's own center to
// the origin, scale, rotate, then translate to its final center point. The
// rotation therefore pivots about the offset-adjusted center and never
// touches the frame, which is drawn without any transform.
func (p placement) affine(sr image.Rectangle) f64.Aff3 {
	sin, cos := math.Sincos(p.Angle)
	ox := float64(sr.Min.X) + float64(sr.Dx())/2
	oy := float64(sr.Min.Y) + float64(sr.Dy())/2
	s := p.Scale

	return f64.Aff3{
		s * cos, -s * sin, p.CenterX - s*(cos*ox-sin*oy),
		s * sin, s * cos, p.CenterY - s*(sin*ox+cos*oy),
	}
}
