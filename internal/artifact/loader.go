package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/crimson-sun/pilar/internal/engine"
	"github.com/crimson-sun/pilar/internal/errs"
)

// State is the lifecycle position of the loader.
type State int

const (
	Unloaded State = iota
	Loading
	LoadedUnvalidated
	Validated
	Failed
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case LoadedUnvalidated:
		return "loaded_unvalidated"
	case Validated:
		return "validated"
	case Failed:
		return "failed"
	default:
		return "unloaded"
	}
}

// Artifact is a validated bundle ready to serve. It is immutable.
type Artifact struct {
	ID       string
	Source   string
	LoadedAt time.Time
	Manifest Manifest
	Engine   *engine.Engine
}

// Loader drives the fetch → decode → validate sequence and publishes the
// resulting Artifact. Readers never block on a load in progress: they see
// either the previous validated artifact or a not-ready error.
type Loader struct {
	primary  Source
	fallback Source
	opts     BuildOptions
	retire   time.Duration

	group   singleflight.Group
	current atomic.Pointer[Artifact]

	mu      sync.Mutex
	state   State
	source  string
	lastErr error
	reloads int
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFallback sets the source tried once when the primary cannot be
// fetched or decoded.
func WithFallback(src Source) LoaderOption {
	return func(l *Loader) { l.fallback = src }
}

// WithBuildOptions passes runtime collaborators to Build.
func WithBuildOptions(opts BuildOptions) LoaderOption {
	return func(l *Loader) { l.opts = opts }
}

// WithRetireDelay sets how long a replaced artifact stays open for
// in-flight requests before its resources are released.
func WithRetireDelay(d time.Duration) LoaderOption {
	return func(l *Loader) { l.retire = d }
}

// NewLoader creates a Loader in the Unloaded state.
func NewLoader(primary Source, opts ...LoaderOption) *Loader {
	l := &Loader{primary: primary, retire: time.Minute}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current lifecycle state. Once an artifact is serving,
// a failed reload leaves the state at Validated.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Ready reports whether a validated artifact is being served.
func (l *Loader) Ready() bool {
	return l.current.Load() != nil
}

// Current returns the serving artifact or a NotReady error.
func (l *Loader) Current() (*Artifact, error) {
	if a := l.current.Load(); a != nil {
		return a, nil
	}
	l.mu.Lock()
	state, lastErr := l.state, l.lastErr
	l.mu.Unlock()
	if lastErr != nil {
		return nil, errs.Errorf(errs.NotReady, "loader", "model is %s: %v", state, lastErr)
	}
	return nil, errs.Errorf(errs.NotReady, "loader", "model is %s", state)
}

// Load performs the initial load. Concurrent callers share one attempt.
// Calling Load after the loader has left Unloaded returns the outcome of
// the first attempt without fetching again; use Reload to refresh.
func (l *Loader) Load(ctx context.Context) error {
	_, err, _ := l.group.Do("load", func() (any, error) {
		l.mu.Lock()
		state, lastErr := l.state, l.lastErr
		l.mu.Unlock()
		switch state {
		case Validated:
			return nil, nil
		case Failed:
			return nil, lastErr
		}
		return nil, l.run(ctx)
	})
	return err
}

// EnsureLoaded triggers the initial load on first access and returns the
// serving artifact.
func (l *Loader) EnsureLoaded(ctx context.Context) (*Artifact, error) {
	if a := l.current.Load(); a != nil {
		return a, nil
	}
	if err := l.Load(ctx); err != nil {
		return nil, errs.E(errs.NotReady, "loader", err)
	}
	return l.Current()
}

// Reload fetches and validates the bundle again and swaps it in
// atomically. On failure the previous artifact keeps serving.
func (l *Loader) Reload(ctx context.Context) error {
	_, err, _ := l.group.Do("load", func() (any, error) {
		return nil, l.run(ctx)
	})
	return err
}

func (l *Loader) run(ctx context.Context) error {
	serving := l.current.Load() != nil
	id := uuid.NewString()
	log := slog.With("load_id", id)

	l.transition(serving, Loading, "", nil)
	log.Info("loading model artifact", "source", l.primary.Name())

	src := l.primary
	b, err := fetchBundle(ctx, src)
	if err != nil && l.fallback != nil {
		log.Warn("primary artifact source failed, trying fallback",
			"source", src.Name(), "fallback", l.fallback.Name(), "error", err)
		src = l.fallback
		b, err = fetchBundle(ctx, src)
	}
	if err != nil {
		l.transition(serving, Failed, src.Name(), err)
		log.Error("model artifact load failed", "source", src.Name(), "error", err)
		return err
	}
	l.transition(serving, LoadedUnvalidated, src.Name(), nil)

	eng, m, err := Build(b, l.opts)
	if err != nil {
		l.transition(serving, Failed, src.Name(), err)
		log.Error("model artifact validation failed", "source", src.Name(), "keys", b.Keys(), "error", err)
		return err
	}

	a := &Artifact{ID: id, Source: src.Name(), LoadedAt: time.Now(), Manifest: m, Engine: eng}
	old := l.current.Swap(a)
	l.mu.Lock()
	l.state, l.source, l.lastErr = Validated, src.Name(), nil
	if old != nil {
		l.reloads++
	}
	l.mu.Unlock()
	log.Info("model artifact validated",
		"source", src.Name(), "variant", m.Variant, "features", m.FeatureLength,
		"classes", len(m.Classes), "version", m.Version)

	if old != nil {
		time.AfterFunc(l.retire, func() {
			if err := old.Engine.Close(); err != nil {
				slog.Warn("closing retired artifact", "load_id", old.ID, "error", err)
			}
		})
	}
	return nil
}

// transition records a state change. While an artifact is serving, only
// the error is recorded so readers keep seeing Validated.
func (l *Loader) transition(serving bool, s State, source string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.lastErr = err
	}
	if serving {
		return
	}
	l.state = s
	if source != "" {
		l.source = source
	}
}

func fetchBundle(ctx context.Context, src Source) (*Bundle, error) {
	data, err := src.Fetch(ctx)
	if err != nil {
		return nil, errs.E(errs.ArtifactLoad, "fetch", err)
	}
	b, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	return b, nil
}

// Close releases the serving artifact. The loader is unusable afterwards.
func (l *Loader) Close() error {
	if a := l.current.Swap(nil); a != nil {
		return a.Engine.Close()
	}
	return nil
}

// Info is a snapshot of loader state for status endpoints.
type Info struct {
	State      string             `json:"state"`
	Ready      bool               `json:"ready"`
	Source     string             `json:"source,omitempty"`
	LoadID     string             `json:"load_id,omitempty"`
	LoadedAt   *time.Time         `json:"loaded_at,omitempty"`
	Manifest   *Manifest          `json:"manifest,omitempty"`
	Components *engine.Components `json:"components,omitempty"`
	Reloads    int                `json:"reloads"`
	LastError  string             `json:"last_error,omitempty"`
}

// Info reports the loader state and the serving artifact, if any.
func (l *Loader) Info() Info {
	l.mu.Lock()
	info := Info{State: l.state.String(), Source: l.source, Reloads: l.reloads}
	if l.lastErr != nil {
		info.LastError = l.lastErr.Error()
	}
	l.mu.Unlock()

	if a := l.current.Load(); a != nil {
		info.Ready = true
		info.Source = a.Source
		info.LoadID = a.ID
		loaded := a.LoadedAt
		info.LoadedAt = &loaded
		m := a.Manifest
		info.Manifest = &m
		c := a.Engine.Components()
		info.Components = &c
	}
	return info
}
