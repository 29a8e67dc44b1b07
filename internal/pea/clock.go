package pea

import (
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// clockNow is the process-wide time source the request loop samples
// against; a package-level function rather than a method so pea.go and
// hooks.go don't need to carry a *Clock purely for timestamping.
func clockNow() time.Time { return time.Now() }

// Clock is the monotonic time source and memory probe C1 exposes. It
// tracks last_active/last_dump internally so pre/post-hook only ever
// call the predicates, never touch the timestamps directly.
type Clock struct {
	mu         sync.Mutex
	lastActive time.Time
	lastDump   time.Time
}

// NewClock starts both timestamps at construction time, matching the
// source's __init__ where last_active_time and last_dump_time are set
// to the perf counter at Pea creation.
func NewClock(now time.Time) *Clock {
	return &Clock{lastActive: now, lastDump: now}
}

// Now returns the current wall-clock time (time.Now()).
func (c *Clock) Now() time.Time { return time.Now() }

// MarkActive sets last_active := now. Called at the start of post-hook.
func (c *Clock) MarkActive(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = now
}

// MarkDumped sets last_dump := now. Called only when a dump actually happens.
func (c *Clock) MarkDumped(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDump = now
}

// IsIdle reports now - last_active > max_idle_time.
func (c *Clock) IsIdle(now time.Time, maxIdleTime time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastActive) > maxIdleTime
}

// ShouldDump reports dump_interval > 0 && now - last_dump > dump_interval.
func (c *Clock) ShouldDump(now time.Time, dumpInterval time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dumpInterval > 0 && now.Sub(c.lastDump) > dumpInterval
}

// UsedMemoryGB samples the process's resident set size on demand via
// procfs — the same library client_golang's own process collector
// depends on (github.com/prometheus/procfs), already pulled in
// transitively by this module's Prometheus wiring and promoted here to
// a direct dependency rather than hand-rolling a /proc/self/status
// parser. Falls back to 0 on platforms without /proc (memory_hwm is
// then effectively disabled).
func UsedMemoryGB() float64 {
	proc, err := procfs.Self()
	if err != nil {
		return 0
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0
	}
	const pageSize = 4096 // bytes; matches the common Linux default page size
	return float64(stat.RSS*pageSize) / (1024 * 1024 * 1024)
}
