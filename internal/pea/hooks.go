package pea

import (
	"context"
	"log/slog"
	"time"

	"github.com/oriys/peapod/internal/observability"
)

// pipeline holds the collaborators pre/handle/post need, bundled so Run
// can pass one value instead of five. postHookDone tracks whether
// post-hook has already completed for the in-flight message, exactly
// mirroring the source's is_post_hook_done flag: the error policy
// consults it to decide whether to run post-hook on the error path.
type pipeline struct {
	name         string
	identity     string
	cfg          *Config
	clock        *Clock
	aggregator   *Aggregator
	host         *Host
	logger       *slog.Logger
	metrics      *Metrics
	postHookDone bool
}

// preHook appends the route entry, stashes nothing (the mutable
// "current message" fields the source keeps are eliminated per Design
// Notes §9 — msg is threaded explicitly instead), folds the message
// into the aggregator when this is a multi-part request, and logs.
// Returns the set of partial messages collected so far (nil for
// single-part messages, which bypass the aggregator entirely).
func (p *pipeline) preHook(now time.Time, msg *Message) (partials []*Message, complete bool) {
	msg.AddRoute(p.name, p.identity, now)

	expect := p.cfg.ExpectParts(msg.Envelope.IsDataRequest)
	if expect > 1 {
		complete, partials = p.aggregator.Collect(now, msg, expect)
		p.logger.Info("message routed", "pea", p.name, "request_id", msg.Envelope.RequestID,
			"route", msg.ColoredRoute(), "collected", len(partials), "expect", expect)
		return partials, complete
	}

	p.logger.Info("message routed", "pea", p.name, "request_id", msg.Envelope.RequestID, "route", msg.ColoredRoute())
	return nil, true
}

// handle implements §4.4's Handle step exactly: the aggregation check
// precedes the error-status check, so a reducer still collects every
// branch even when some carry errors.
func (p *pipeline) handle(ctx context.Context, msg *Message, complete bool) error {
	expect := p.cfg.ExpectParts(msg.Envelope.IsDataRequest)
	if expect > 1 && !complete {
		return ErrNoExplicitMessage
	}
	if msg.Envelope.StatusCode != StatusError || p.cfg.SkipOnError < SkipOnErrorHandle {
		ctx, span := startSpan(ctx, "pea.dispatch", observability.AttrRequestID.String(msg.Envelope.RequestID))
		defer span.End()
		err := p.host.Dispatch(ctx, msg.Envelope.RequestType, msg.Req)
		if err != nil {
			observability.SetSpanError(span, err)
		} else {
			observability.SetSpanOK(span)
		}
		return err
	}
	return NewError(KindChainedPodException, nil)
}

// postHook implements §4.4's Post-hook: mark active, opportunistically
// dump, gate on memory, merge partials into the outgoing message, stamp
// the timestamp. It sets p.postHookDone := true only on full completion,
// matching the source's ordering where a mid-step failure (the memory
// gate) leaves the flag false.
func (p *pipeline) postHook(ctx context.Context, now time.Time, msg *Message, partials []*Message) error {
	p.clock.MarkActive(now)

	if p.clock.ShouldDump(now, p.cfg.DumpInterval) {
		ctx, span := startSpan(ctx, "pea.save")
		err := p.host.MaybeSave(ctx)
		if err != nil {
			observability.SetSpanError(span, err)
			span.End()
			return NewError(KindExecutorRuntimeException, err)
		}
		observability.SetSpanOK(span)
		span.End()
		p.clock.MarkDumped(now)
		p.printStats()
	}

	used := UsedMemoryGB()
	if p.metrics != nil {
		p.metrics.ObserveMemoryGB(used)
	}
	if p.cfg.MemoryHWM > 0 && used > p.cfg.MemoryHWM {
		return NewError(KindMemoryOverHighWatermark, nil)
	}

	expect := p.cfg.ExpectParts(msg.Envelope.IsDataRequest)
	if expect > 1 && len(partials) > 0 {
		msg.MergeEnvelopeFrom(partials)
	}
	msg.UpdateTimestamp(now)

	p.postHookDone = true
	return nil
}

func (p *pipeline) printStats() {
	if p.metrics != nil {
		p.metrics.IncDumps()
	}
	p.logger.Info("executor state persisted", "pea", p.name)
}

// callback runs pre -> handle -> post for one message and translates
// the result into the Outcome the request loop forwards or suppresses.
// This is the Go analogue of the source's _callback/_msg_callback pair,
// collapsed into one function since Go has no exception-based unwind
// to split them across.
func (p *pipeline) callback(ctx context.Context, now time.Time, msg *Message) Outcome {
	ctx, span := startSpan(ctx, "pea.handle", observability.AttrRequestID.String(msg.Envelope.RequestID))
	defer span.End()

	p.postHookDone = false

	partials, complete := p.preHook(now, msg)

	if err := p.handle(ctx, msg, complete); err != nil {
		observability.SetSpanError(span, err)
		return p.onError(ctx, now, msg, partials, err)
	}

	if err := p.postHook(ctx, now, msg, partials); err != nil {
		observability.SetSpanError(span, err)
		return p.onError(ctx, now, msg, partials, err)
	}

	observability.SetSpanOK(span)
	return forward(msg)
}

// onError applies the error policy (§4.5 / C5): classify err, and for a
// chained error or any other runtime failure run post-hook first if it
// hasn't already completed.
func (p *pipeline) onError(ctx context.Context, now time.Time, msg *Message, partials []*Message, err error) Outcome {
	switch {
	case IsKind(err, KindNoExplicitMessage):
		return suppress()

	case IsKind(err, KindChainedPodException):
		if !p.postHookDone {
			_ = p.postHook(ctx, now, msg, partials) // best-effort, matches source's bare retry
		}
		msg.AddException("", nil, true)
		p.logger.Warn("chained error passthrough", "pea", p.name, "request_id", msg.Envelope.RequestID)
		return forwardErr(msg, err)

	case IsKind(err, KindMemoryOverHighWatermark):
		p.logger.Error("memory over high watermark", "pea", p.name)
		if p.metrics != nil {
			p.metrics.IncWatermarkBreaches()
		}
		return suppress()

	case IsKind(err, KindRequestLoopEnd):
		return forwardShutdown(msg)

	default:
		if !p.postHookDone {
			_ = p.postHook(ctx, now, msg, partials)
		}
		executorName := ""
		var pe *Error
		if as, ok := err.(*Error); ok {
			pe = as
			executorName = pe.Executor
		}
		msg.AddException(executorName, err, false)
		p.logger.Error("executor raised", "pea", p.name, "request_id", msg.Envelope.RequestID, "error", err)
		if p.metrics != nil {
			p.metrics.IncErrors()
		}
		if p.cfg.RaiseErrorEarly {
			return terminate(err)
		}
		return forwardErr(msg, err)
	}
}
