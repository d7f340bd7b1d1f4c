package pilar

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/pilar/internal/artifact"
	"github.com/crimson-sun/pilar/internal/engine"
	"github.com/crimson-sun/pilar/internal/errs"
	"github.com/crimson-sun/pilar/internal/service"
)

// Pilar is a waste image classifier backed by one model artifact.
// Safe for concurrent use.
type Pilar struct {
	svc *service.Service
}

// New loads and validates the artifact. It fails if neither the primary
// nor the fallback artifact yields a working model.
func New(opts ...Option) (*Pilar, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	lopts := []artifact.LoaderOption{
		artifact.WithBuildOptions(artifact.BuildOptions{
			ORTLibrary:  o.ortLibrary,
			Descriptors: o.descriptors,
		}),
	}
	if o.fallbackPath != "" {
		lopts = append(lopts, artifact.WithFallback(artifact.FileSource{Path: o.fallbackPath}))
	}
	loader := artifact.NewLoader(artifact.FileSource{Path: o.artifactPath}, lopts...)
	svc := service.New(loader, nil, slog.Default())
	if err := svc.Start(context.Background()); err != nil {
		svc.Close()
		return nil, fmt.Errorf("pilar: %w", err)
	}
	return &Pilar{svc: svc}, nil
}

// Classify decodes an encoded image (JPEG, PNG, GIF, BMP, WebP, TIFF) and
// classifies it.
func (p *Pilar) Classify(data []byte) (Result, error) {
	return p.ClassifyContext(context.Background(), data)
}

// ClassifyContext is Classify with a caller-supplied context.
func (p *Pilar) ClassifyContext(ctx context.Context, data []byte) (Result, error) {
	res, err := p.svc.Classify(ctx, data)
	if err != nil {
		return Result{}, err
	}
	return resultFromService(res), nil
}

// ClassifyBatch classifies several images. Every image is decoded first;
// the batch fails on the first bad image or pipeline error.
func (p *Pilar) ClassifyBatch(images [][]byte) ([]Result, error) {
	res, err := p.svc.ClassifyBatch(context.Background(), images)
	if err != nil {
		return nil, fmt.Errorf("pilar: %w", err)
	}
	out := make([]Result, len(res))
	for i, r := range res {
		out[i] = resultFromService(r)
	}
	return out, nil
}

// Ready reports whether a validated model is loaded.
func (p *Pilar) Ready() bool { return p.svc.Ready() }

// IsInvalidInput reports whether err was caused by the uploaded image
// rather than the model.
func IsInvalidInput(err error) bool { return errs.Is(err, errs.InvalidInput) }

// Close releases model resources.
func (p *Pilar) Close() error {
	return p.svc.Close()
}

func resultFromService(res service.Result) Result {
	pr := res.Prediction
	tips := make([]Tip, len(res.Tips))
	for i, t := range res.Tips {
		tips[i] = Tip{Title: t.Title, Color: t.Color}
	}
	return Result{
		WasteClass:    pr.WasteClass,
		WasteType:     pr.WasteType,
		Category:      string(pr.Category),
		CategoryLabel: pr.Category.Label(),
		Confidence:    engine.Round2(pr.Confidence),
		Tips:          tips,
		Description:   res.Description,
	}
}
