package pea

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// MessageHandler is invoked once per inbound Message, serially. Defined
// here (rather than in internal/streamlet) so the Streamlet interface
// below and internal/streamlet's concrete implementations share one
// exact function type instead of two structurally-identical-but-distinct
// ones.
type MessageHandler func(ctx context.Context, msg *Message) error

// Streamlet is the transport contract from §6, declared here (rather
// than imported from internal/streamlet) to keep this package free of
// any concrete transport dependency — a Pea only ever depends on the
// interface, matching §1's "transport layer ... interface only".
type Streamlet interface {
	Start(ctx context.Context, callback MessageHandler) error
	SendMessage(ctx context.Context, msg *Message) error
	Close() error
	PrintStats(logger *slog.Logger)
}

// StreamletFactory constructs the Streamlet once the Pea is ready to
// enter its request loop, mirroring the source's
// `self.zmqlet = ZmqStreamlet(self.args, logger=self.logger)`.
type StreamletFactory func(cfg *Config, logger *slog.Logger) (Streamlet, error)

// Pea is the single worker: one Executor, one transport endpoint, one
// goroutine driving the request loop. It is single-use — Run must not
// be called twice.
type Pea struct {
	cfg        *Config
	name       string
	logger     *slog.Logger
	clock      *Clock
	aggregator *Aggregator
	host       *Host
	plugins    *PluginLoader
	metrics    *Metrics

	newStreamlet StreamletFactory
	streamlet    Streamlet

	pipeline *pipeline
}

// New constructs a Pea. host must already be configured with its
// ConfigSources and parser (see NewHost); Load/Attach happen during
// Run's scoped-entry step, not here, so construction itself cannot
// fail.
func New(cfg *Config, host *Host, newStreamlet StreamletFactory, logger *slog.Logger, registry *prometheus.Registry) *Pea {
	if logger == nil {
		logger = slog.Default()
	}
	name := DeriveName(cfg)
	var metrics *Metrics
	if registry != nil {
		metrics = NewMetrics(registry, "pea", name)
	}
	return &Pea{
		cfg:          cfg,
		name:         name,
		logger:       logger,
		clock:        NewClock(clockNow()),
		aggregator:   NewAggregator(),
		host:         host,
		plugins:      &PluginLoader{},
		metrics:      metrics,
		newStreamlet: newStreamlet,
	}
}

// Name returns the Pea's derived name (§3).
func (p *Pea) Name() string { return p.name }

// Run implements C6/C7 end to end: scoped entry (plugins, Executor
// load+attach), construct the streamlet, signal ready, drive the
// request loop until a terminating Outcome, then guaranteed teardown —
// scoped release in reverse order of acquisition, exactly once,
// regardless of which path exits.
func (p *Pea) Run(ctx context.Context, ready chan<- struct{}) (err error) {
	if err := p.plugins.Load(p.cfg.PyModules); err != nil {
		return fmt.Errorf("scoped entry: %w", err)
	}
	if err := p.host.Load(ctx, p.cfg); err != nil {
		return fmt.Errorf("scoped entry: %w", err)
	}
	p.host.Attach(p)

	defer func() {
		teardownErr := p.teardown(ctx)
		if err == nil {
			err = teardownErr
		}
	}()

	st, err := p.newStreamlet(p.cfg, p.logger)
	if err != nil {
		return fmt.Errorf("construct streamlet: %w", err)
	}
	p.streamlet = st

	p.pipeline = &pipeline{
		name:       p.name,
		identity:   p.cfg.Identity,
		cfg:        p.cfg,
		clock:      p.clock,
		aggregator: p.aggregator,
		host:       p.host,
		logger:     p.logger,
		metrics:    p.metrics,
	}

	if ready != nil {
		close(ready)
	}

	if err := p.streamlet.Start(ctx, p.onMessage); err != nil {
		if IsKind(err, KindRequestLoopEnd) {
			return nil
		}
		return err
	}
	return nil
}

// onMessage is the streamlet callback: run the pipeline, then act on
// the resulting Outcome. This is the Go analogue of _msg_callback: the
// source's try/except dispatch on exception type becomes a switch on
// Outcome.Tag.
func (p *Pea) onMessage(ctx context.Context, msg *Message) error {
	now := clockNow()
	if evicted := p.aggregator.SweepOrphans(now, p.cfg.MaxIdleTime); len(evicted) > 0 {
		p.logger.Warn("evicted orphaned partials", "pea", p.name, "request_ids", evicted)
	}

	if p.metrics != nil {
		p.metrics.IncIn(msg.Envelope.RequestType)
		p.metrics.SetBufferDepth(p.aggregator.Len())
	}

	outcome := p.pipeline.callback(ctx, now, msg)

	switch outcome.Tag {
	case OutcomeSuppress:
		if p.metrics != nil {
			p.metrics.IncSuppressed("suppressed")
		}
		return nil

	case OutcomeForward, OutcomeForwardWithException:
		if err := p.streamlet.SendMessage(ctx, outcome.Msg); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		if p.metrics != nil {
			p.metrics.IncOut(outcome.Msg.Envelope.RequestType)
		}
		return nil

	case OutcomeForwardAndShutdown:
		if err := p.streamlet.SendMessage(ctx, outcome.Msg); err != nil {
			p.logger.Error("send on shutdown failed", "pea", p.name, "error", err)
		}
		return ErrRequestLoopEnd

	case OutcomeTerminate:
		p.logger.Error("terminating on raise_error_early", "pea", p.name, "error", outcome.Err)
		return outcome.Err

	default:
		return fmt.Errorf("unknown outcome tag %d", outcome.Tag)
	}
}

// teardown closes the streamlet then the Executor, the reverse of
// acquisition order in Run, and is safe to invoke even when Run never
// reached streamlet construction. Calling it more than once is a no-op
// beyond the first, since both Streamlet.Close and Host.Close are
// themselves idempotent.
func (p *Pea) teardown(ctx context.Context) error {
	var firstErr error
	if p.streamlet != nil {
		if err := p.streamlet.Close(); err != nil {
			firstErr = fmt.Errorf("close streamlet: %w", err)
		}
	}
	if err := p.host.Close(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close executor: %w", err)
	}
	return firstErr
}
