package pea

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

// fakeExecutor is the smallest pea.Executor a test needs: Call is
// swappable per test, Save/Close/Attach are no-ops.
type fakeExecutor struct {
	call func(ctx context.Context, requestType string, req Request) error
}

func (f *fakeExecutor) Attach(p *Pea) {}
func (f *fakeExecutor) Call(ctx context.Context, requestType string, req Request) error {
	if f.call != nil {
		return f.call(ctx, requestType, req)
	}
	return nil
}
func (f *fakeExecutor) Save(ctx context.Context) error  { return nil }
func (f *fakeExecutor) Close(ctx context.Context) error { return nil }

// newTestPipeline builds a pipeline whose Host already has exec loaded,
// skipping Host.Load's ConfigSource/registry machinery entirely (that
// path is covered by executor_test.go).
func newTestPipeline(cfg *Config, exec Executor) *pipeline {
	host := &Host{executor: exec}
	return &pipeline{
		name:       DeriveName(cfg),
		identity:   cfg.Identity,
		cfg:        cfg,
		clock:      NewClock(time.Now()),
		aggregator: NewAggregator(),
		host:       host,
		logger:     slog.New(slog.NewTextHandler(nil_writer{}, nil)),
	}
}

type nil_writer struct{}

func (nil_writer) Write(p []byte) (int, error) { return len(p), nil }

func TestPipeline_SingletonHappyPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "encoder"
	p := newTestPipeline(cfg, &fakeExecutor{})

	msg := NewMessage("index", true, "payload")
	out := p.callback(context.Background(), time.Now(), msg)

	if out.Tag != OutcomeForward {
		t.Fatalf("expected OutcomeForward, got %v", out.Tag)
	}
	if out.Msg != msg {
		t.Fatalf("expected the same message forwarded")
	}
	if len(msg.Envelope.Route) != 1 || msg.Envelope.Route[0].Name != "encoder" {
		t.Fatalf("expected one route hop for encoder, got %+v", msg.Envelope.Route)
	}
}

func TestPipeline_TailReductionAggregation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "reducer"
	cfg.Role = RoleTail
	cfg.NumPart = 3
	p := newTestPipeline(cfg, &fakeExecutor{})

	reqID := "shared-request"
	var last Outcome
	for i := 0; i < 3; i++ {
		msg := NewMessage("index", true, "part")
		msg.Envelope.RequestID = reqID
		last = p.callback(context.Background(), time.Now(), msg)
		if i < 2 && last.Tag != OutcomeSuppress {
			t.Fatalf("partial %d: expected OutcomeSuppress before all parts arrive, got %v", i, last.Tag)
		}
	}
	if last.Tag != OutcomeForward {
		t.Fatalf("expected OutcomeForward on the final partial, got %v", last.Tag)
	}
	if len(last.Msg.Envelope.Route) != 3 {
		t.Fatalf("expected merged routes from all 3 partials, got %d", len(last.Msg.Envelope.Route))
	}
}

func TestPipeline_ChainedErrorPassthrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "mid"
	cfg.SkipOnError = SkipOnErrorHandle
	p := newTestPipeline(cfg, &fakeExecutor{
		call: func(ctx context.Context, requestType string, req Request) error {
			t.Fatal("executor should not be called for an already-errored envelope")
			return nil
		},
	})

	msg := NewMessage("index", true, "payload")
	msg.Envelope.StatusCode = StatusError
	out := p.callback(context.Background(), time.Now(), msg)

	if out.Tag != OutcomeForwardWithException {
		t.Fatalf("expected OutcomeForwardWithException, got %v", out.Tag)
	}
	if out.Msg.Envelope.Exception == nil || !out.Msg.Envelope.Exception.Chained {
		t.Fatalf("expected a chained exception payload, got %+v", out.Msg.Envelope.Exception)
	}
}

func TestPipeline_ExecutorRaisesWithExceptionPayload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "encoder"
	cause := errors.New("model load failed")
	wantErr := &Error{Kind: KindExecutorRuntimeException, Executor: "encoder", Cause: cause}
	p := newTestPipeline(cfg, &fakeExecutor{
		call: func(ctx context.Context, requestType string, req Request) error {
			return wantErr
		},
	})

	msg := NewMessage("index", true, "payload")
	out := p.callback(context.Background(), time.Now(), msg)

	if out.Tag != OutcomeForwardWithException {
		t.Fatalf("expected OutcomeForwardWithException, got %v", out.Tag)
	}
	if out.Msg.Envelope.Exception == nil || out.Msg.Envelope.Exception.Executor != "encoder" {
		t.Fatalf("expected exception payload naming the executor, got %+v", out.Msg.Envelope.Exception)
	}
	if out.Msg.Envelope.Exception.Message != wantErr.Error() {
		t.Fatalf("expected exception message %q, got %q", wantErr.Error(), out.Msg.Envelope.Exception.Message)
	}
}

func TestPipeline_RaiseErrorEarlyTerminates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "encoder"
	cfg.RaiseErrorEarly = true
	wantErr := errors.New("boom")
	p := newTestPipeline(cfg, &fakeExecutor{
		call: func(ctx context.Context, requestType string, req Request) error {
			return wantErr
		},
	})

	msg := NewMessage("index", true, "payload")
	out := p.callback(context.Background(), time.Now(), msg)

	if out.Tag != OutcomeTerminate {
		t.Fatalf("expected OutcomeTerminate, got %v", out.Tag)
	}
	if out.Msg != nil {
		t.Fatalf("terminate outcome should carry no message to forward, got %+v", out.Msg)
	}
	if !errors.Is(out.Err, wantErr) && out.Err.Error() == "" {
		t.Fatalf("expected the underlying error to surface, got %v", out.Err)
	}
}

func TestPipeline_MemoryWatermarkSuppressesSend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "encoder"
	cfg.MemoryHWM = 1e-9 // effectively zero: any nonzero RSS breaches it
	p := newTestPipeline(cfg, &fakeExecutor{})

	msg := NewMessage("index", true, "payload")
	out := p.callback(context.Background(), time.Now(), msg)

	if out.Tag != OutcomeSuppress {
		t.Fatalf("expected OutcomeSuppress on watermark breach, got %v", out.Tag)
	}
}

func TestPipeline_RequestLoopEndForwardsOriginalMessage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "control"
	p := newTestPipeline(cfg, &fakeExecutor{
		call: func(ctx context.Context, requestType string, req Request) error {
			return ErrRequestLoopEnd
		},
	})

	msg := NewMessage("terminate", false, "payload")
	out := p.callback(context.Background(), time.Now(), msg)

	if out.Tag != OutcomeForwardAndShutdown {
		t.Fatalf("expected OutcomeForwardAndShutdown, got %v", out.Tag)
	}
	if out.Msg != msg {
		t.Fatalf("expected the original message forwarded on cooperative shutdown")
	}
}

func TestPipeline_NoExplicitMessageSuppressesWhenPartialIncomplete(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = "reducer"
	cfg.NumPart = 2
	p := newTestPipeline(cfg, &fakeExecutor{
		call: func(ctx context.Context, requestType string, req Request) error {
			t.Fatal("executor should not run before all partials arrive")
			return nil
		},
	})

	msg := NewMessage("index", true, "payload")
	out := p.callback(context.Background(), time.Now(), msg)

	if out.Tag != OutcomeSuppress {
		t.Fatalf("expected OutcomeSuppress while awaiting partials, got %v", out.Tag)
	}
}
