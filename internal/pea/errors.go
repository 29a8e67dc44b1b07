package pea

import "errors"

// Kind classifies a failure raised anywhere in the hook pipeline into the
// narrow set of outcomes the request loop understands. These replace the
// exception classes of the system this package reimplements. Errors
// returned by an Executor that are not a *Error are passed through as
// they are and classified as a runtime failure.
type Kind int

const (
	// KindConfigSourceBad names a failure resolving cfg.Uses; retriable
	// against cfg.UsesInternal. Host.Load detects that case through the
	// ErrConfigSourceBad sentinel and returns KindExecutorLoadFailed, so
	// nothing in this package produces an *Error of this Kind.
	KindConfigSourceBad Kind = iota
	// KindExecutorLoadFailed is fatal: the scope never opens.
	KindExecutorLoadFailed
	// KindNoExplicitMessage is expected control flow: a reducer still
	// waiting on partials, or a control message with no handler.
	KindNoExplicitMessage
	// KindChainedPodException marks a message that already carried an
	// upstream error; it is passed through, not re-attached.
	KindChainedPodException
	// KindMemoryOverHighWatermark is a backpressure signal: log, drop
	// the send, keep the loop running.
	KindMemoryOverHighWatermark
	// KindRequestLoopEnd is cooperative shutdown: forward, tear down,
	// exit clean.
	KindRequestLoopEnd
	// KindTransportFailure covers socket/stream errors from the
	// streamlet that are not part of normal operation.
	KindTransportFailure
	// KindExecutorRuntimeException is any other failure raised by the
	// Executor while handling a message.
	KindExecutorRuntimeException
)

func (k Kind) String() string {
	switch k {
	case KindConfigSourceBad:
		return "config_source_bad"
	case KindExecutorLoadFailed:
		return "executor_load_failed"
	case KindNoExplicitMessage:
		return "no_explicit_message"
	case KindChainedPodException:
		return "chained_pod_exception"
	case KindMemoryOverHighWatermark:
		return "memory_over_high_watermark"
	case KindRequestLoopEnd:
		return "request_loop_end"
	case KindTransportFailure:
		return "transport_failure"
	case KindExecutorRuntimeException:
		return "executor_runtime_exception"
	default:
		return "unknown"
	}
}

// Error is the single error type raised by the pipeline. The request
// loop switches on Kind, never on the wrapped cause's concrete type.
type Error struct {
	Kind     Kind
	Executor string // executor identity, set only for KindExecutorRuntimeException
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError wraps cause as a pipeline Error of the given Kind.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// ErrNoExplicitMessage is the sentinel used when no cause is meaningful.
var ErrNoExplicitMessage = &Error{Kind: KindNoExplicitMessage}

// ErrRequestLoopEnd signals cooperative shutdown with no specific cause.
var ErrRequestLoopEnd = &Error{Kind: KindRequestLoopEnd}

// IsKind reports whether err is a *Error of the given Kind, unwrapping
// as errors.As would.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
