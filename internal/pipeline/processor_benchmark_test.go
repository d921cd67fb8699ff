package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/mithublue/photoframe-generator/internal/compose"
)

type staticFetcher struct {
	profile []byte
	frame   []byte
}

func (f staticFetcher) Fetch(_ context.Context, _ Request, objectKey string) ([]byte, error) {
	if objectKey == "frame" {
		return f.frame, nil
	}
	return f.profile, nil
}

type discardEmitter struct{}

func (discardEmitter) Emit(_ context.Context, req Request, name string, _ []byte) (string, error) {
	return req.CreationID + "/" + name, nil
}

func benchmarkPNG(b *testing.B, w, h int) []byte {
	b.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 90,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		b.Fatalf("encode benchmark png: %v", err)
	}
	return buf.Bytes()
}

func BenchmarkProcessorMerge(b *testing.B) {
	processor := &Processor{
		fetcher: staticFetcher{
			profile: benchmarkPNG(b, 1200, 1600),
			frame:   benchmarkPNG(b, 800, 800),
		},
		emitter: discardEmitter{},
	}

	req := Request{
		CreationID: "bench",
		SourceType: "s3_presigned",
		ProfileKey: "profile",
		FrameKey:   "frame",
		Params:     compose.TransformParams{ProfileScale: 1.1, ProfileRotationDegrees: 10},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req.CreationID = fmt.Sprintf("bench-%d", i)
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}
