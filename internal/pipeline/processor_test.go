package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/mithublue/photoframe-generator/internal/compose"
)

func buildTestPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestLocalProcessor_TwoFilesInCompositeOut(t *testing.T) {
	tmp := t.TempDir()
	profilePath := filepath.Join(tmp, "profile.png")
	framePath := filepath.Join(tmp, "frame.png")
	outputDir := filepath.Join(tmp, "out")

	if err := os.WriteFile(profilePath, buildTestPNG(t, 400, 600, color.RGBA{B: 255, A: 255}), 0o644); err != nil {
		t.Fatalf("write profile image: %v", err)
	}
	if err := os.WriteFile(framePath, buildTestPNG(t, 800, 800, color.RGBA{R: 255, A: 255}), 0o644); err != nil {
		t.Fatalf("write frame image: %v", err)
	}

	processor, err := NewLocalProcessor(outputDir)
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	result, err := processor.Process(context.Background(), Request{
		CreationID: "creation-local-1",
		SourceType: SourceTypeLocalFile,
		ProfileKey: profilePath,
		FrameKey:   framePath,
		Params:     compose.TransformParams{ProfileScale: 1.2},
	})
	if err != nil {
		t.Fatalf("process request: %v", err)
	}

	if result.Width != 800 || result.Height != 800 {
		t.Fatalf("expected 800x800 composite, got %dx%d", result.Width, result.Height)
	}

	verifyPNGDims(t, result.OutputPath, 800, 800)

	thumb := decodePNGFile(t, result.ThumbPath)
	if thumb.Bounds().Dx() > 320 || thumb.Bounds().Dy() > 320 {
		t.Fatalf("thumbnail exceeds 320px edge: %v", thumb.Bounds())
	}
}

func TestLocalProcessor_UnsupportedSourceType(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		CreationID: "creation-unsupported",
		SourceType: "s3_presigned",
		ProfileKey: "uploads/x/profile",
		FrameKey:   "uploads/x/frame",
	})
	if err == nil {
		t.Fatal("expected unsupported source_type error")
	}
}

func TestLocalProcessor_MissingSourceKeys(t *testing.T) {
	processor, err := NewLocalProcessor(t.TempDir())
	if err != nil {
		t.Fatalf("new local processor: %v", err)
	}

	_, err = processor.Process(context.Background(), Request{
		CreationID: "creation-missing",
		SourceType: SourceTypeLocalFile,
		ProfileKey: "only-profile.png",
	})
	if err == nil {
		t.Fatal("expected error for missing frame key")
	}
}

func decodePNGFile(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open image %s: %v", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode image %s: %v", path, err)
	}
	return img
}

func verifyPNGDims(t *testing.T, path string, wantW, wantH int) {
	t.Helper()

	img := decodePNGFile(t, path)
	if got := img.Bounds().Dx(); got != wantW {
		t.Fatalf("expected width %d, got %d", wantW, got)
	}
	if got := img.Bounds().Dy(); got != wantH {
		t.Fatalf("expected height %d, got %d", wantH, got)
	}
}
