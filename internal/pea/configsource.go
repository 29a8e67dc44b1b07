package pea

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseYAMLSpec is the default ExecutorSpec parser: the resolved bytes
// are a YAML document with `kind` and `config` keys.
func ParseYAMLSpec(data []byte) (ExecutorSpec, error) {
	var spec ExecutorSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ExecutorSpec{}, err
	}
	if spec.Kind == "" {
		return ExecutorSpec{}, fmt.Errorf("executor spec missing kind")
	}
	return spec, nil
}

// FileConfigSource resolves file:// and bare-path uses sources from
// local disk.
type FileConfigSource struct{}

func (FileConfigSource) Resolve(ctx context.Context, uses string) ([]byte, error) {
	path := strings.TrimPrefix(uses, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigSourceBad, err)
	}
	return data, nil
}

// InlineConfigSource resolves inline://<yaml> uses sources: the
// document is embedded directly in the PeaConfig rather than fetched
// from storage. Useful for tests and for uses_internal fallbacks that
// must never fail.
type InlineConfigSource struct{}

func (InlineConfigSource) Resolve(ctx context.Context, uses string) ([]byte, error) {
	doc, ok := strings.CutPrefix(uses, "inline://")
	if !ok {
		return nil, fmt.Errorf("%w: not an inline:// source", ErrConfigSourceBad)
	}
	return []byte(doc), nil
}

// MultiConfigSource dispatches to one of several ConfigSources keyed by
// URI scheme, so a single Host can be configured once and accept
// file://, s3://, redis:// and inline:// uses values interchangeably.
type MultiConfigSource struct {
	bySchema map[string]ConfigSource
}

// NewMultiConfigSource builds a scheme-dispatching ConfigSource. schemes
// maps a URI prefix ("file", "s3", "redis", "inline") to the source
// that handles it.
func NewMultiConfigSource(schemes map[string]ConfigSource) *MultiConfigSource {
	return &MultiConfigSource{bySchema: schemes}
}

func (m *MultiConfigSource) Resolve(ctx context.Context, uses string) ([]byte, error) {
	scheme, _, ok := strings.Cut(uses, "://")
	if !ok {
		scheme = "file"
	}
	src, ok := m.bySchema[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: no config source registered for scheme %q", ErrConfigSourceBad, scheme)
	}
	return src.Resolve(ctx, uses)
}
