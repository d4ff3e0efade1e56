// Package rxpipe implements the receive pipeline (spec.md §4.D): the
// interface-number ring between the device ISR and the Rx worker, and the
// worker itself (ISR-post -> worker-dequeue -> demux to the network
// layer). The ring is a bounded Go channel, the idiomatic-Go SPSC queue
// the design notes call for in place of the teacher's hand-rolled
// bufferDescriptorRing index arithmetic (soc/nxp/enet/dma.go).
package rxpipe

import (
	"github.com/gonet-embedded/netcore/loadbalance"
	"github.com/gonet-embedded/netcore/neterr"
	"github.com/gonet-embedded/netcore/stats"
)

// Ring is the bounded SPSC queue of interface numbers written by device
// ISRs and read by the Rx worker.
type Ring struct {
	ch    chan int
	total *stats.Counter // global RxTaskPktCtr
}

// NewRing builds a ring of the given capacity, sharing the global
// RxTaskPktCtr with whatever else observes it (e.g. diagnostics).
func NewRing(capacity int, total *stats.Counter) *Ring {
	if capacity <= 0 {
		panic("rxpipe: ring capacity must be positive")
	}
	return &Ring{ch: make(chan int, capacity), total: total}
}

// Signal posts ifNbr to the ring (spec.md §4.D step 1). It never blocks:
// a full ring drops the packet and reports ErrRxQFull, which the device
// layer is expected to count. Safe to call from ISR context — it never
// acquires the global lock. On success it bumps the shared RxTaskPktCtr
// and, if lb is non-nil, that interface's load-balance Rx counter.
func (r *Ring) Signal(ifNbr int, lb *loadbalance.Gate) error {
	select {
	case r.ch <- ifNbr:
		if r.total != nil {
			r.total.Inc()
		}
		if lb != nil {
			lb.RxPktInc()
		}
		return nil
	default:
		return neterr.ErrRxQFull
	}
}

// Len reports the number of interface numbers currently queued.
func (r *Ring) Len() int { return len(r.ch) }

// Cap reports the ring's configured capacity.
func (r *Ring) Cap() int { return cap(r.ch) }
