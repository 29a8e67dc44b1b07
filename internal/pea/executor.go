package pea

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfigSourceBad is returned by a ConfigSource when the source it
// was given cannot be resolved (missing file, unreachable bucket,
// malformed URI) — the one failure kind that is retriable against
// cfg.UsesInternal. Any other error from Resolve, or from a Factory, is
// fatal.
var ErrConfigSourceBad = errors.New("config source bad")

// ConfigSource resolves a `uses` string (a URI-shaped identifier, e.g.
// file://, s3://, redis://, inline://) to the raw bytes of an executor
// spec.
type ConfigSource interface {
	Resolve(ctx context.Context, uses string) ([]byte, error)
}

// ExecutorSpec is the parsed form of a resolved config source: a kind
// discriminator plus opaque per-kind configuration, mirroring the
// registry pattern the rest of the tree uses for backend selection
// (docker vs firecracker in cmd/comet/daemon.go).
type ExecutorSpec struct {
	Kind   string                 `yaml:"kind"`
	Config map[string]interface{} `yaml:"config"`
}

// ExecutorFactory constructs a concrete Executor from a parsed spec.
type ExecutorFactory func(spec ExecutorSpec) (Executor, error)

// Executor is the black-box domain processor the core treats as an
// external collaborator (§1). Implementations live outside this
// package; internal/peaexec supplies reference adapters.
type Executor interface {
	// Attach sets the owning Pea as a non-owning backreference, used
	// only for callbacks the Executor makes back into Pea state (e.g.
	// to read its Name). The Executor must never extend the Pea's
	// lifetime through this reference.
	Attach(p *Pea)
	// Call processes the current request in place, keyed by requestType.
	Call(ctx context.Context, requestType string, req Request) error
	// Save persists Executor state. Must be idempotent; called
	// opportunistically, never on a fixed background schedule.
	Save(ctx context.Context) error
	// Close releases any resources held by the Executor. Called once,
	// from the scoped-release path, in reverse order of acquisition.
	Close(ctx context.Context) error
}

var registry = map[string]ExecutorFactory{}

// RegisterExecutor adds a kind to the process-wide executor registry.
// Reference adapters in internal/peaexec call this from an init().
func RegisterExecutor(kind string, factory ExecutorFactory) {
	registry[kind] = factory
}

// Host loads, attaches, persists and tears down the Pea's Executor. It
// is the only component that knows about ConfigSource/ExecutorFactory;
// Pea itself only ever calls Load/Attach/Dispatch/MaybeSave/Close.
type Host struct {
	primary  ConfigSource
	fallback ConfigSource
	parse    func([]byte) (ExecutorSpec, error)

	executor Executor
}

// NewHost builds a Host. parse turns resolved config-source bytes into
// an ExecutorSpec (see configsource.go for the YAML-based default).
func NewHost(primary, fallback ConfigSource, parse func([]byte) (ExecutorSpec, error)) *Host {
	return &Host{primary: primary, fallback: fallback, parse: parse}
}

// Load resolves cfg.Uses via the primary source; on ErrConfigSourceBad
// it retries against cfg.UsesInternal. Any other failure, from either
// source or from spec parsing/factory construction, is fatal and
// surfaces as KindExecutorLoadFailed — preserving the source's narrow
// retry: widening it to catch more than ErrConfigSourceBad would mask
// genuine load failures (Design Notes §9).
func (h *Host) Load(ctx context.Context, cfg *Config) error {
	data, err := h.primary.Resolve(ctx, cfg.Uses)
	if errors.Is(err, ErrConfigSourceBad) {
		if h.fallback == nil {
			return NewError(KindExecutorLoadFailed, fmt.Errorf("primary source bad and no fallback configured: %w", err))
		}
		data, err = h.fallback.Resolve(ctx, cfg.UsesInternal)
	}
	if err != nil {
		return NewError(KindExecutorLoadFailed, err)
	}

	spec, err := h.parse(data)
	if err != nil {
		return NewError(KindExecutorLoadFailed, fmt.Errorf("parse executor spec: %w", err))
	}
	// Thread the load_config(source, separated_workspace, pea_id,
	// read_only) parameters from §6's Executor contract through as
	// extra spec fields, without requiring every Factory to accept
	// them positionally.
	if spec.Config == nil {
		spec.Config = make(map[string]interface{})
	}
	spec.Config["separated_workspace"] = cfg.SeparatedWorkspace
	spec.Config["pea_id"] = cfg.PeaID
	spec.Config["read_only"] = cfg.ReadOnly

	factory, ok := registry[spec.Kind]
	if !ok {
		return NewError(KindExecutorLoadFailed, fmt.Errorf("unknown executor kind %q", spec.Kind))
	}

	exec, err := factory(spec)
	if err != nil {
		return NewError(KindExecutorLoadFailed, err)
	}
	h.executor = exec
	return nil
}

// Attach sets the Pea backreference on the loaded Executor.
func (h *Host) Attach(p *Pea) {
	if h.executor != nil {
		h.executor.Attach(p)
	}
}

// Dispatch invokes the loaded Executor for requestType.
func (h *Host) Dispatch(ctx context.Context, requestType string, req Request) error {
	return h.executor.Call(ctx, requestType, req)
}

// MaybeSave invokes Save() only when the caller (post-hook) has already
// decided ShouldDump is true; the Host itself holds no cadence state.
func (h *Host) MaybeSave(ctx context.Context) error {
	return h.executor.Save(ctx)
}

// Close tears the Executor down. Safe to call when Load never
// succeeded (h.executor is nil); a second call is a no-op, since the
// Executor is released at most once.
func (h *Host) Close(ctx context.Context) error {
	if h.executor == nil {
		return nil
	}
	exec := h.executor
	h.executor = nil
	return exec.Close(ctx)
}
