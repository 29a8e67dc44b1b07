package pea

import (
	"sync"
	"time"
)

// pendingEntry tracks a request id's accumulated partials plus the time
// the first partial arrived, so an orphan sweep can evict branches that
// never complete.
type pendingEntry struct {
	msgs      []*Message
	firstSeen time.Time
}

// Aggregator buffers partial messages per request id until the expected
// count is collected. It is local to one Pea and only ever touched from
// the single-threaded request loop, so it needs no internal locking for
// correctness under the C6 scheduling model — the mutex only makes
// Len and SweepOrphans safe to call from another goroutine as well.
type Aggregator struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
}

// NewAggregator constructs an empty buffer.
func NewAggregator() *Aggregator {
	return &Aggregator{pending: make(map[string]*pendingEntry)}
}

// Collect appends msg under its request id and reports whether the
// buffer is now complete for that id. expectParts is the value computed
// from Config.ExpectParts for this message. On completion the key is
// removed before returning, so the caller observes the merged state
// atomically.
func (a *Aggregator) Collect(now time.Time, msg *Message, expectParts int) (complete bool, parts []*Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := msg.Envelope.RequestID
	entry, ok := a.pending[id]
	if !ok {
		entry = &pendingEntry{firstSeen: now}
		a.pending[id] = entry
	}
	entry.msgs = append(entry.msgs, msg)

	if len(entry.msgs) >= expectParts {
		delete(a.pending, id)
		return true, entry.msgs
	}
	return false, entry.msgs
}

// Len reports the number of distinct request ids currently buffered.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// SweepOrphans evicts buffered request ids whose first partial arrived
// more than maxAge ago and which never completed — the age-based sweep
// keyed off max_idle_time that Design Notes §9 calls out as an open
// question the source leaves unanswered (it leaks them). Returns the
// evicted request ids for logging.
func (a *Aggregator) SweepOrphans(now time.Time, maxAge time.Duration) []string {
	if maxAge <= 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	var evicted []string
	for id, entry := range a.pending {
		if now.Sub(entry.firstSeen) > maxAge {
			evicted = append(evicted, id)
			delete(a.pending, id)
		}
	}
	return evicted
}
