// Package stats implements the atomic, bounded-saturating counters used
// throughout netcore for load-balancing decisions and observability
// (spec.md §4.B). Counters are plain int64 values manipulated with
// sync/atomic, the idiomatic-Go replacement for the teacher's
// critical-section-guarded uint32 fields (enet.Stats, updated only under
// hw.Lock()).
package stats

import "sync/atomic"

// Counter is an unsigned value, saturating at zero on Dec, accessed
// without blocking from any context including an ISR-equivalent
// goroutine.
type Counter struct {
	v int64
}

// Inc increments the counter by one and returns the new value.
func (c *Counter) Inc() uint64 {
	return uint64(atomic.AddInt64(&c.v, 1))
}

// Add increments the counter by delta and returns the new value.
func (c *Counter) Add(delta int64) uint64 {
	return uint64(atomic.AddInt64(&c.v, delta))
}

// Dec decrements the counter by one, saturating at zero, and returns the
// new value.
func (c *Counter) Dec() uint64 {
	for {
		old := atomic.LoadInt64(&c.v)
		if old <= 0 {
			return 0
		}
		if atomic.CompareAndSwapInt64(&c.v, old, old-1) {
			return uint64(old - 1)
		}
	}
}

// Set overwrites the counter unconditionally.
func (c *Counter) Set(v uint64) {
	atomic.StoreInt64(&c.v, int64(v))
}

// Reset zeroes the counter.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.v, 0)
}

// Value returns the current reading.
func (c *Counter) Value() uint64 {
	return uint64(atomic.LoadInt64(&c.v))
}

// GT reports whether the counter is currently greater than n, the
// primitive the load balancer's RxPktIsAvail is built from.
func (c *Counter) GT(n uint64) bool {
	return c.Value() > n
}

// PerfCounter adds a previous-snapshot and a derived per-second rate to a
// Counter, recomputed each time Tick is called; nothing in this module
// calls Tick on a schedule.
type PerfCounter struct {
	Counter
	prev uint64
	rate uint64
}

// Tick recomputes the rate given the elapsed fraction of a second since
// the last tick (e.g. 1.0 for a one-second period, 0.1 for a 100ms one).
func (p *PerfCounter) Tick(periodSeconds float64) {
	cur := p.Value()

	delta := cur - p.prev
	if cur < p.prev {
		delta = 0 // counter was reset since the last tick
	}

	if periodSeconds > 0 {
		p.rate = uint64(float64(delta) / periodSeconds)
	}

	p.prev = cur
}

// Rate returns the most recently computed per-second rate.
func (p *PerfCounter) Rate() uint64 {
	return p.rate
}
