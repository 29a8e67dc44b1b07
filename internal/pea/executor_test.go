package pea

import (
	"context"
	"errors"
	"testing"
)

// fakeConfigSource lets each test control exactly what Resolve returns
// without touching disk, S3 or Redis.
type fakeConfigSource struct {
	resolve func(ctx context.Context, uses string) ([]byte, error)
}

func (f *fakeConfigSource) Resolve(ctx context.Context, uses string) ([]byte, error) {
	return f.resolve(ctx, uses)
}

func alwaysBad(ctx context.Context, uses string) ([]byte, error) {
	return nil, ErrConfigSourceBad
}

func TestHostLoad_PrimarySucceeds(t *testing.T) {
	registry["fake-ok"] = func(spec ExecutorSpec) (Executor, error) {
		return &fakeExecutor{}, nil
	}
	defer delete(registry, "fake-ok")

	primary := &fakeConfigSource{resolve: func(ctx context.Context, uses string) ([]byte, error) {
		if uses != "file:///spec.yaml" {
			t.Fatalf("expected primary to be asked for Uses, got %q", uses)
		}
		return []byte("kind: fake-ok\n"), nil
	}}
	fallback := &fakeConfigSource{resolve: func(ctx context.Context, uses string) ([]byte, error) {
		t.Fatal("fallback should not be consulted when primary succeeds")
		return nil, nil
	}}

	h := NewHost(primary, fallback, ParseYAMLSpec)
	cfg := DefaultConfig()
	cfg.Uses = "file:///spec.yaml"

	if err := h.Load(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.executor == nil {
		t.Fatal("expected executor to be loaded")
	}
}

func TestHostLoad_FallsBackToUsesInternalOnConfigSourceBad(t *testing.T) {
	registry["fake-fallback"] = func(spec ExecutorSpec) (Executor, error) {
		return &fakeExecutor{}, nil
	}
	defer delete(registry, "fake-fallback")

	primary := &fakeConfigSource{resolve: alwaysBad}
	fallback := &fakeConfigSource{resolve: func(ctx context.Context, uses string) ([]byte, error) {
		if uses != "inline://fallback" {
			t.Fatalf("expected fallback to be asked for UsesInternal, got %q", uses)
		}
		return []byte("kind: fake-fallback\n"), nil
	}}

	h := NewHost(primary, fallback, ParseYAMLSpec)
	cfg := DefaultConfig()
	cfg.Uses = "file:///missing.yaml"
	cfg.UsesInternal = "inline://fallback"

	if err := h.Load(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.executor == nil {
		t.Fatal("expected executor to be loaded from the fallback source")
	}
}

func TestHostLoad_NoFallbackConfiguredIsFatal(t *testing.T) {
	primary := &fakeConfigSource{resolve: alwaysBad}

	h := NewHost(primary, nil, ParseYAMLSpec)
	cfg := DefaultConfig()
	cfg.Uses = "file:///missing.yaml"

	err := h.Load(context.Background(), cfg)
	if !IsKind(err, KindExecutorLoadFailed) {
		t.Fatalf("expected KindExecutorLoadFailed, got %v", err)
	}
}

func TestHostLoad_NonConfigSourceBadErrorIsNotRetried(t *testing.T) {
	boom := errors.New("disk on fire")
	primary := &fakeConfigSource{resolve: func(ctx context.Context, uses string) ([]byte, error) {
		return nil, boom
	}}
	fallback := &fakeConfigSource{resolve: func(ctx context.Context, uses string) ([]byte, error) {
		t.Fatal("fallback must not be consulted for a non-ErrConfigSourceBad failure")
		return nil, nil
	}}

	h := NewHost(primary, fallback, ParseYAMLSpec)
	cfg := DefaultConfig()
	cfg.Uses = "file:///spec.yaml"

	err := h.Load(context.Background(), cfg)
	if !IsKind(err, KindExecutorLoadFailed) {
		t.Fatalf("expected KindExecutorLoadFailed, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected the underlying cause to unwrap to boom, got %v", err)
	}
}

func TestHostLoad_UnknownExecutorKind(t *testing.T) {
	primary := &fakeConfigSource{resolve: func(ctx context.Context, uses string) ([]byte, error) {
		return []byte("kind: does-not-exist\n"), nil
	}}

	h := NewHost(primary, nil, ParseYAMLSpec)
	cfg := DefaultConfig()
	cfg.Uses = "file:///spec.yaml"

	err := h.Load(context.Background(), cfg)
	if !IsKind(err, KindExecutorLoadFailed) {
		t.Fatalf("expected KindExecutorLoadFailed for an unregistered kind, got %v", err)
	}
}

func TestHostLoad_FactoryConstructionError(t *testing.T) {
	factoryErr := errors.New("bad executor config")
	registry["fake-broken"] = func(spec ExecutorSpec) (Executor, error) {
		return nil, factoryErr
	}
	defer delete(registry, "fake-broken")

	primary := &fakeConfigSource{resolve: func(ctx context.Context, uses string) ([]byte, error) {
		return []byte("kind: fake-broken\n"), nil
	}}

	h := NewHost(primary, nil, ParseYAMLSpec)
	cfg := DefaultConfig()
	cfg.Uses = "file:///spec.yaml"

	err := h.Load(context.Background(), cfg)
	if !IsKind(err, KindExecutorLoadFailed) {
		t.Fatalf("expected KindExecutorLoadFailed, got %v", err)
	}
	if !errors.Is(err, factoryErr) {
		t.Fatalf("expected the factory error to unwrap, got %v", err)
	}
}

func TestHostLoad_SpecParamsThreadedThrough(t *testing.T) {
	var gotConfig map[string]interface{}
	registry["fake-capture"] = func(spec ExecutorSpec) (Executor, error) {
		gotConfig = spec.Config
		return &fakeExecutor{}, nil
	}
	defer delete(registry, "fake-capture")

	primary := &fakeConfigSource{resolve: func(ctx context.Context, uses string) ([]byte, error) {
		return []byte("kind: fake-capture\n"), nil
	}}

	h := NewHost(primary, nil, ParseYAMLSpec)
	cfg := DefaultConfig()
	cfg.Uses = "file:///spec.yaml"
	cfg.SeparatedWorkspace = true
	cfg.PeaID = "pea-7"
	cfg.ReadOnly = true

	if err := h.Load(context.Background(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotConfig["separated_workspace"] != true {
		t.Fatalf("expected separated_workspace threaded through, got %+v", gotConfig)
	}
	if gotConfig["pea_id"] != "pea-7" {
		t.Fatalf("expected pea_id threaded through, got %+v", gotConfig)
	}
	if gotConfig["read_only"] != true {
		t.Fatalf("expected read_only threaded through, got %+v", gotConfig)
	}
}

func TestHostDispatchAndMaybeSave(t *testing.T) {
	var called string
	exec := &fakeExecutor{call: func(ctx context.Context, requestType string, req Request) error {
		called = requestType
		return nil
	}}
	h := &Host{executor: exec}

	if err := h.Dispatch(context.Background(), "index", "payload"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != "index" {
		t.Fatalf("expected Call to receive requestType, got %q", called)
	}
	if err := h.MaybeSave(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHostClose_NilExecutorIsSafe(t *testing.T) {
	h := &Host{}
	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("expected Close on an unloaded Host to be a no-op, got %v", err)
	}
}
