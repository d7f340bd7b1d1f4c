package artifact

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/crimson-sun/pilar/internal/artifact/artifacttest"
	"github.com/crimson-sun/pilar/internal/errs"
)

func TestLoaderLifecycle(t *testing.T) {
	src := &artifacttest.Source{Data: artifacttest.Handcrafted().JSON()}
	l := NewLoader(src)

	if l.State() != Unloaded || l.Ready() {
		t.Fatalf("initial state = %v ready = %v", l.State(), l.Ready())
	}
	if _, err := l.Current(); !errs.Is(err, errs.NotReady) {
		t.Errorf("Current before load: kind = %v, want NotReady", errs.KindOf(err))
	}

	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if l.State() != Validated || !l.Ready() {
		t.Fatalf("state = %v ready = %v, want validated/true", l.State(), l.Ready())
	}
	a, err := l.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if a.ID == "" || a.Source != "static" || a.Manifest.Variant != "handcrafted" {
		t.Errorf("artifact = %+v", a)
	}

	// A second Load does not fetch again.
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if src.Calls() != 1 {
		t.Errorf("fetches = %d, want 1", src.Calls())
	}

	info := l.Info()
	if info.State != "validated" || !info.Ready || info.Manifest == nil || info.Components == nil {
		t.Errorf("Info() = %+v", info)
	}
	if info.Components.Extractor != "handcrafted" {
		t.Errorf("Components.Extractor = %q", info.Components.Extractor)
	}
}

func TestLoaderMissingScalerFails(t *testing.T) {
	src := &artifacttest.Source{Data: artifacttest.Handcrafted().Without(KeyScaler).JSON()}
	l := NewLoader(src)

	err := l.Load(context.Background())
	if err == nil {
		t.Fatal("expected load error")
	}
	if l.State() != Failed || l.Ready() {
		t.Fatalf("state = %v ready = %v, want failed/false", l.State(), l.Ready())
	}
	if _, err := l.Current(); !errs.Is(err, errs.NotReady) {
		t.Errorf("Current: kind = %v, want NotReady", errs.KindOf(err))
	}
	if _, err := l.EnsureLoaded(context.Background()); !errs.Is(err, errs.NotReady) {
		t.Errorf("EnsureLoaded: kind = %v, want NotReady", errs.KindOf(err))
	}
	// Failed is terminal for Load; only Reload fetches again.
	if src.Calls() != 1 {
		t.Errorf("fetches = %d, want 1", src.Calls())
	}
	if l.Info().LastError == "" {
		t.Error("Info().LastError is empty")
	}
}

func TestLoaderFallback(t *testing.T) {
	primary := &artifacttest.Source{Label: "remote", Err: errors.New("connection refused")}
	fallback := &artifacttest.Source{Label: "local", Data: artifacttest.Handcrafted().JSON()}
	l := NewLoader(primary, WithFallback(fallback))

	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	a, err := l.Current()
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if a.Source != "local" {
		t.Errorf("Source = %q, want local", a.Source)
	}
	if primary.Calls() != 1 || fallback.Calls() != 1 {
		t.Errorf("fetches = %d/%d, want 1/1", primary.Calls(), fallback.Calls())
	}
}

func TestLoaderFallbackAlsoFails(t *testing.T) {
	primary := &artifacttest.Source{Label: "remote", Data: []byte("<html>")}
	fallback := &artifacttest.Source{Label: "local", Err: errors.New("no such file")}
	l := NewLoader(primary, WithFallback(fallback))

	err := l.Load(context.Background())
	if !errs.Is(err, errs.ArtifactLoad) {
		t.Fatalf("kind = %v, want ArtifactLoad (%v)", errs.KindOf(err), err)
	}
	if l.State() != Failed {
		t.Errorf("state = %v, want failed", l.State())
	}
	if primary.Calls() != 1 || fallback.Calls() != 1 {
		t.Errorf("fetches = %d/%d, want 1/1", primary.Calls(), fallback.Calls())
	}
}

func TestLoaderNoFallbackOnValidationFailure(t *testing.T) {
	primary := &artifacttest.Source{Data: artifacttest.Handcrafted().Without(KeyClassifier).JSON()}
	fallback := &artifacttest.Source{Data: artifacttest.Handcrafted().JSON()}
	l := NewLoader(primary, WithFallback(fallback))

	if err := l.Load(context.Background()); err == nil {
		t.Fatal("expected validation error")
	}
	if fallback.Calls() != 0 {
		t.Errorf("fallback fetches = %d, want 0", fallback.Calls())
	}
}

// gatedSource blocks Fetch until release is closed.
type gatedSource struct {
	artifacttest.Source
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) Fetch(ctx context.Context) ([]byte, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.Source.Fetch(ctx)
}

func TestLoaderLazyLoadSharesOneFetch(t *testing.T) {
	src := &gatedSource{
		Source:  artifacttest.Source{Data: artifacttest.Handcrafted().JSON()},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	l := NewLoader(src)

	const n = 8
	var wg sync.WaitGroup
	errc := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.EnsureLoaded(context.Background())
			errc <- err
		}()
	}

	<-src.started
	if l.State() != Loading {
		t.Errorf("state during fetch = %v, want loading", l.State())
	}
	if _, err := l.Current(); !errs.Is(err, errs.NotReady) {
		t.Errorf("Current during load: kind = %v, want NotReady", errs.KindOf(err))
	}
	time.Sleep(10 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errc)

	for err := range errc {
		if err != nil {
			t.Errorf("EnsureLoaded: %v", err)
		}
	}
	if src.Calls() != 1 {
		t.Errorf("fetches = %d, want 1", src.Calls())
	}
}

func TestLoaderReload(t *testing.T) {
	src := &artifacttest.Source{Data: artifacttest.Handcrafted().JSON()}
	l := NewLoader(src, WithRetireDelay(time.Millisecond))
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	first, _ := l.Current()

	// A broken bundle must not replace the serving one.
	src.Data = artifacttest.Handcrafted().Without(KeyLabelEncoder).JSON()
	if err := l.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	if cur, _ := l.Current(); cur != first {
		t.Error("failed reload replaced the serving artifact")
	}
	if l.State() != Validated || !l.Ready() {
		t.Errorf("state = %v ready = %v after failed reload", l.State(), l.Ready())
	}
	if l.Info().LastError == "" {
		t.Error("failed reload not recorded in Info")
	}

	src.Data = artifacttest.Handcrafted().With(KeyVersion, "v2").JSON()
	if err := l.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	cur, _ := l.Current()
	if cur == first || cur.Manifest.Version != "v2" {
		t.Errorf("Version = %q, want v2", cur.Manifest.Version)
	}
	info := l.Info()
	if info.Reloads != 1 || info.LastError != "" {
		t.Errorf("Info() reloads = %d lastError = %q", info.Reloads, info.LastError)
	}
}

func TestLoaderReloadRecoversFromFailed(t *testing.T) {
	src := &artifacttest.Source{Err: errors.New("bucket unavailable")}
	l := NewLoader(src)
	if err := l.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	src.Err, src.Data = nil, artifacttest.Handcrafted().JSON()
	if err := l.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !l.Ready() || l.State() != Validated {
		t.Errorf("state = %v ready = %v", l.State(), l.Ready())
	}
}

func TestLoaderClose(t *testing.T) {
	l := NewLoader(&artifacttest.Source{Data: artifacttest.Handcrafted().JSON()})
	if err := l.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if l.Ready() {
		t.Error("Ready() = true after Close")
	}
}

func TestStateString(t *testing.T) {
	want := map[State]string{
		Unloaded: "unloaded", Loading: "loading", LoadedUnvalidated: "loaded_unvalidated",
		Validated: "validated", Failed: "failed",
	}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), w)
		}
	}
}
