package pea

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusCode is the envelope's coarse outcome marker.
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusError
)

// RouteEntry is one append-only hop a Message has traversed.
type RouteEntry struct {
	Name     string
	Identity string
	At       time.Time
}

// Envelope carries the routing and status metadata for a Message. The
// domain payload itself lives in Request; the core never inspects it
// beyond the fields named in the external interfaces contract.
type Envelope struct {
	RequestID     string
	RequestType   string
	StatusCode    StatusCode
	Route         []RouteEntry
	IsDataRequest bool
	Exception     *ExceptionPayload
	UpdatedAt     time.Time
}

// ExceptionPayload is attached to an Envelope when the error policy
// decides a fault should be surfaced downstream instead of swallowed.
type ExceptionPayload struct {
	Executor string // empty for a chained (already-marked) error
	Chained  bool
	Message  string
}

// Request is the domain payload a Message carries. The core treats it
// as an opaque value mutated in place by the Executor; only Envelope
// fields are meaningful to the pipeline itself.
type Request interface{}

// Message is the unit exchanged with the transport: an Envelope plus a
// Request body. Messages are owned by the caller while in transit and
// by the Pea only for the duration of one callback invocation.
type Message struct {
	Envelope Envelope
	Req      Request
}

// NewMessage builds a Message with a freshly generated uuid request id,
// matching the rest of the tree's use of uuid for identifiers that have
// no natural caller-supplied value.
func NewMessage(requestType string, isDataRequest bool, req Request) *Message {
	return &Message{
		Envelope: Envelope{
			RequestID:     uuid.NewString(),
			RequestType:   requestType,
			StatusCode:    StatusOK,
			IsDataRequest: isDataRequest,
		},
		Req: req,
	}
}

// AddRoute appends a hop to the envelope's route.
func (m *Message) AddRoute(name, identity string, at time.Time) {
	m.Envelope.Route = append(m.Envelope.Route, RouteEntry{Name: name, Identity: identity, At: at})
}

// AddException attaches a failure payload to the envelope. chained
// marks a pass-through error that already originated upstream, in
// which case executor is left empty and message is omitted, matching
// the source's "no exception payload attached" rule for chained errors.
func (m *Message) AddException(executor string, err error, chained bool) {
	payload := &ExceptionPayload{Executor: executor, Chained: chained}
	if !chained && err != nil {
		payload.Message = err.Error()
	}
	m.Envelope.Exception = payload
}

// UpdateTimestamp stamps the envelope with the current time.
func (m *Message) UpdateTimestamp(now time.Time) {
	m.Envelope.UpdatedAt = now
}

// ColoredRoute renders the route as a joined string for debug logging.
// The original renders this with terminal colors; the pack carries no
// color library so this is the plain equivalent.
func (m *Message) ColoredRoute() string {
	names := make([]string, len(m.Envelope.Route))
	for i, r := range m.Envelope.Route {
		names[i] = r.Name
	}
	return strings.Join(names, "->")
}

// MergeEnvelopeFrom folds the routes of all collected partial messages
// into the receiver, which must be the last arrival (the outgoing
// message per §4.4 step 4). Route entries are concatenated in arrival
// order; duplicates are not deduplicated since each partial's route
// reflects a distinct branch of the fan-out.
func (m *Message) MergeEnvelopeFrom(msgs []*Message) {
	var merged []RouteEntry
	for _, o := range msgs {
		merged = append(merged, o.Envelope.Route...)
	}
	m.Envelope.Route = merged
}
