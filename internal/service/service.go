// Package service is the application context shared by the HTTP surface,
// the CLI and the library facade. It owns the artifact loader and the
// result cache and runs each upload through gate, decode, cache, engine.
package service

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/crimson-sun/pilar/internal/advice"
	"github.com/crimson-sun/pilar/internal/artifact"
	"github.com/crimson-sun/pilar/internal/cache"
	"github.com/crimson-sun/pilar/internal/decode"
	"github.com/crimson-sun/pilar/internal/engine"
	"github.com/crimson-sun/pilar/internal/errs"
	"github.com/crimson-sun/pilar/internal/model"
)

// Service classifies uploads against the loader's serving artifact.
type Service struct {
	loader *artifact.Loader
	cache  cache.Cache
	log    *slog.Logger
	limits decode.Limits
	lazy   bool
}

// Option configures a Service.
type Option func(*Service)

// WithLimits overrides the upload limits.
func WithLimits(lim decode.Limits) Option {
	return func(s *Service) { s.limits = lim }
}

// WithLazyLoad makes the first request trigger the initial artifact load.
func WithLazyLoad(lazy bool) Option {
	return func(s *Service) { s.lazy = lazy }
}

// New wires a Service. A nil cache disables caching; a nil logger uses
// the slog default.
func New(loader *artifact.Loader, c cache.Cache, logger *slog.Logger, opts ...Option) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{loader: loader, cache: c, log: logger, limits: decode.DefaultLimits}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is a classification with its handling advice.
type Result struct {
	Prediction  model.Prediction `json:"prediction"`
	Tips        []model.Tip      `json:"tips"`
	Description string           `json:"description"`
	Cached      bool             `json:"cached"`
	Elapsed     time.Duration    `json:"-"`
}

// Diagnostic is a Result plus the pipeline breakdown.
type Diagnostic struct {
	Result
	Diagnosis engine.Diagnosis `json:"diagnosis"`
	Image     ImageInfo        `json:"image"`
	LoadID    string           `json:"load_id"`
}

// ImageInfo describes the decoded upload.
type ImageInfo struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int    `json:"bytes"`
}

// Start performs the initial artifact load unless lazy loading is on.
// A failed load is returned but leaves the service usable for status
// queries and admin reloads.
func (s *Service) Start(ctx context.Context) error {
	if s.lazy {
		s.log.Info("lazy artifact load enabled, deferring until first request")
		return nil
	}
	return s.loader.Load(ctx)
}

// Classify runs one upload through the pipeline. The readiness gate runs
// before the upload is inspected.
func (s *Service) Classify(ctx context.Context, data []byte) (Result, error) {
	start := time.Now()
	a, err := s.gate(ctx)
	if err != nil {
		return Result{}, err
	}
	in, err := decode.Decode(data, s.limits)
	if err != nil {
		return Result{}, err
	}

	key := cache.Key(cacheVersion(a), in.Digest)
	if p, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("cache lookup failed", "error", err)
	} else if ok {
		return s.result(p, true, start), nil
	}

	p, err := a.Engine.Process(in.Image)
	if err != nil {
		return Result{}, errs.Wrap("classify", err)
	}
	if err := s.cache.Set(ctx, key, p); err != nil {
		s.log.Warn("cache store failed", "error", err)
	}
	return s.result(p, false, start), nil
}

// ClassifyBatch decodes every upload before running any of them through
// the pipeline, so a bad image fails the batch without wasted inference.
// Batches bypass the cache.
func (s *Service) ClassifyBatch(ctx context.Context, uploads [][]byte) ([]Result, error) {
	start := time.Now()
	a, err := s.gate(ctx)
	if err != nil {
		return nil, err
	}
	imgs := make([]image.Image, len(uploads))
	for i, data := range uploads {
		in, err := decode.Decode(data, s.limits)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		imgs[i] = in.Image
	}
	preds, err := a.Engine.ProcessBatch(imgs)
	if err != nil {
		return nil, errs.Wrap("classify", err)
	}
	out := make([]Result, len(preds))
	for i, p := range preds {
		out[i] = s.result(p, false, start)
	}
	return out, nil
}

// Diagnose classifies an upload and reports the intermediate details.
// Diagnostics bypass the cache.
func (s *Service) Diagnose(ctx context.Context, data []byte) (Diagnostic, error) {
	start := time.Now()
	a, err := s.gate(ctx)
	if err != nil {
		return Diagnostic{}, err
	}
	in, err := decode.Decode(data, s.limits)
	if err != nil {
		return Diagnostic{}, err
	}
	d, err := a.Engine.Diagnose(in.Image)
	if err != nil {
		return Diagnostic{}, errs.Wrap("diagnose", err)
	}
	return Diagnostic{
		Result:    s.result(d.Prediction, false, start),
		Diagnosis: d,
		Image:     ImageInfo{Format: in.Format, Width: in.Width, Height: in.Height, Bytes: len(in.Data)},
		LoadID:    a.ID,
	}, nil
}

func (s *Service) gate(ctx context.Context) (*artifact.Artifact, error) {
	if s.lazy {
		return s.loader.EnsureLoaded(ctx)
	}
	return s.loader.Current()
}

func (s *Service) result(p model.Prediction, cached bool, start time.Time) Result {
	return Result{
		Prediction:  p,
		Tips:        advice.Tips(p.Category),
		Description: advice.Description(p.WasteType),
		Cached:      cached,
		Elapsed:     time.Since(start),
	}
}

// cacheVersion scopes cache entries to one artifact. Bundles without a
// version string fall back to the load id so a reload never serves stale
// entries.
func cacheVersion(a *artifact.Artifact) string {
	if a.Manifest.Version != "" {
		return a.Manifest.Version
	}
	return a.ID
}

// Ready reports whether a validated artifact is serving.
func (s *Service) Ready() bool { return s.loader.Ready() }

// EnsureReady returns nil once a validated model is serving. In lazy mode
// the first call triggers the load.
func (s *Service) EnsureReady(ctx context.Context) error {
	_, err := s.gate(ctx)
	return err
}

// Status is the model status snapshot.
type Status struct {
	Loaded    bool          `json:"loaded"`
	Validated bool          `json:"validated"`
	Lazy      bool          `json:"lazy"`
	Loader    artifact.Info `json:"loader"`
}

// Status reports the loader state. Loaded is true from the moment a
// bundle has been fetched and decoded.
func (s *Service) Status() Status {
	info := s.loader.Info()
	state := s.loader.State()
	return Status{
		Loaded:    info.Ready || state == artifact.LoadedUnvalidated,
		Validated: info.Ready,
		Lazy:      s.lazy,
		Loader:    info,
	}
}

// Reload refreshes the artifact from its source. The serving artifact is
// kept when the reload fails.
func (s *Service) Reload(ctx context.Context) error {
	return s.loader.Reload(ctx)
}

// Close releases the loader and the cache.
func (s *Service) Close() error {
	err := s.loader.Close()
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	return err
}
