package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mithublue/photoframe-generator/internal/compose"
)

const (
	SourceTypeLocalFile = "local_file"

	compositeName = "composite.png"
	thumbName     = "thumb.png"
)

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

type Request struct {
	CreationID string
	SourceType string
	ProfileKey string
	FrameKey   string
	Params     compose.TransformParams
}

type Result struct {
	OutputPath  string
	ThumbPath   string
	Width       int
	Height      int
	OutputBytes int
	ThumbBytes  int
	SourceBytes int
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request, objectKey string) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, name string, data []byte) (string, error)
}

type Processor struct {
	fetcher Fetcher
	emitter Emitter
}

func NewLocalProcessor(outputDir string) (*Processor, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.New("output directory is required")
	}
	return &Processor{
		fetcher: LocalFileFetcher{},
		emitter: LocalFileEmitter{OutputDir: outputDir},
	}, nil
}

func NewObjectStoreProcessor(fetcher Fetcher, emitter Emitter) (*Processor, error) {
	if fetcher == nil || emitter == nil {
		return nil, errors.New("fetcher and emitter are required")
	}
	return &Processor{fetcher: fetcher, emitter: emitter}, nil
}

// Process fetches the profile photo and the frame image, renders the
// composite and emits the full-size PNG plus a thumbnail. Both fetches run
// concurrently and join before rendering; either failing fails the job.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.CreationID) == "" {
		return Result{}, errors.New("creation_id is required")
	}
	if strings.TrimSpace(req.ProfileKey) == "" || strings.TrimSpace(req.FrameKey) == "" {
		return Result{}, errors.New("profile and frame source keys are required")
	}

	var (
		wg      sync.WaitGroup
		sources [2][]byte
		errs    [2]error
	)
	keys := [2]string{req.ProfileKey, req.FrameKey}
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sources[i], errs[i] = p.fetcher.Fetch(ctx, req, keys[i])
		}(i)
	}
	wg.Wait()

	if errs[0] != nil {
		return Result{}, fmt.Errorf("fetch profile: %w", errs[0])
	}
	if errs[1] != nil {
		return Result{}, fmt.Errorf("fetch frame: %w", errs[1])
	}

	merged, err := compose.Merge(ctx, sources[0], sources[1], req.Params)
	if err != nil {
		return Result{}, fmt.Errorf("render composite: %w", err)
	}

	composite, err := png.Decode(bytes.NewReader(merged))
	if err != nil {
		return Result{}, fmt.Errorf("reread composite: %w", err)
	}

	thumb, err := thumbnailPNG(composite)
	if err != nil {
		return Result{}, err
	}

	outputPath, err := p.emitter.Emit(ctx, req, compositeName, merged)
	if err != nil {
		return Result{}, fmt.Errorf("emit composite: %w", err)
	}
	thumbPath, err := p.emitter.Emit(ctx, req, thumbName, thumb)
	if err != nil {
		return Result{}, fmt.Errorf("emit thumbnail: %w", err)
	}

	bounds := composite.Bounds()
	return Result{
		OutputPath:  outputPath,
		ThumbPath:   thumbPath,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		OutputBytes: len(merged),
		ThumbBytes:  len(thumb),
		SourceBytes: len(sources[0]) + len(sources[1]),
	}, nil
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request, objectKey string) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(objectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", objectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, name string, data []byte) (string, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return "", errors.New("output directory is required")
	}

	creationDir := filepath.Join(e.OutputDir, sanitizePathToken(req.CreationID))
	if err := os.MkdirAll(creationDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(creationDir, name)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return fullPath, nil
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
