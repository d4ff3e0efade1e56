// Package loadbalance implements the Rx-count / Tx-suspend signalling
// (spec.md §4.I) shared between the receive pipeline and stream-protocol
// transmit paths, so a high-rate stream does not starve the Rx worker (or
// vice versa). The teacher has no equivalent — bare-metal C there uses a
// hand counter loop — so the semaphore is built on an idiomatic Go
// buffered channel instead.
package loadbalance

import (
	"context"
	"time"

	"github.com/gonet-embedded/netcore/stats"
)

// Gate holds the per-interface load-balancing state named in spec.md's
// Interface data model: RxPktCtr, TxSuspendCtr, the suspend semaphore and
// its configured timeout.
type Gate struct {
	RxPktCtr     stats.Counter
	TxSuspendCtr stats.Counter

	sem     chan struct{}
	timeout time.Duration
}

// NewGate builds a Gate with the given suspend timeout, clamped to the
// spec's 1-100ms band.
func NewGate(timeout time.Duration) *Gate {
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}
	if timeout > 100*time.Millisecond {
		timeout = 100 * time.Millisecond
	}

	return &Gate{
		sem:     make(chan struct{}, 1<<16),
		timeout: timeout,
	}
}

// RxPktInc is called from the ISR-equivalent post path when a packet is
// queued for this interface.
func (g *Gate) RxPktInc() { g.RxPktCtr.Inc() }

// RxPktDec is called by the Rx worker after it finishes one packet.
func (g *Gate) RxPktDec() { g.RxPktCtr.Dec() }

// RxPktIsAvail reports whether more receive activity has been observed
// than checkCount.
func (g *Gate) RxPktIsAvail(checkCount uint64) bool {
	return g.RxPktCtr.GT(checkCount)
}

// TxSuspend is called by a stream-protocol transmitter that has observed
// RxPktIsAvail == true. It blocks until either the Rx worker posts a
// wake-up or the interface's configured timeout elapses; a timeout
// resumes the caller silently, as spec.md §4.I and §7 require.
func (g *Gate) TxSuspend(ctx context.Context) {
	g.TxSuspendCtr.Inc()
	defer g.TxSuspendCtr.Dec()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case <-g.sem:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Wake is called by the Rx worker after processing one packet. It posts
// the suspend semaphore once per currently suspended transmitter, which
// is safe under counting-semaphore semantics. A post whose transmitter
// already timed out stays in the buffered channel and lets the next
// TxSuspend return at once.
func (g *Gate) Wake() {
	n := int(g.TxSuspendCtr.Value())

	for i := 0; i < n; i++ {
		select {
		case g.sem <- struct{}{}:
		default:
			return
		}
	}
}
