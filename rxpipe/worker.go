package rxpipe

import (
	"context"
	"runtime"
	"sync"

	"github.com/gonet-embedded/netcore/buf"
	"github.com/gonet-embedded/netcore/iface"
)

// LoopbackSource drains one pending buffer from the loopback Rx queue
// (spec.md §4.G); the loopback package implements this so rxpipe need not
// import it (loopback, in turn, calls Ring.Signal to re-enter this
// pipeline, so the dependency only runs one way).
type LoopbackSource interface {
	Dequeue() (*buf.Header, bool)
}

// Worker is the Rx worker task (spec.md §4.D). It never sleeps while
// holding the global lock: the ring receive happens outside the lock,
// matching the teacher's own Rx loop shape (enet.Start's `for { Gosched();
// Rx() }`, generalized from one hardwired device to the whole table).
type Worker struct {
	ring     *Ring
	mu       *sync.Mutex
	table    *iface.Table
	bufMgr   *buf.Manager
	loopback LoopbackSource

	// LoadBalance enables the RxPktDec + suspend-semaphore wake-up step
	// (spec.md §4.D step d, §4.I).
	LoadBalance bool

	// RxBaseIx is the configured head index new Rx buffers are stamped
	// with (IX_RX in the original source).
	RxBaseIx int
}

// NewWorker builds a worker over the given ring, interface table and
// buffer manager, sharing the process-wide global lock.
func NewWorker(ring *Ring, mu *sync.Mutex, table *iface.Table, bufMgr *buf.Manager, loopback LoopbackSource) *Worker {
	return &Worker{ring: ring, mu: mu, table: table, bufMgr: bufMgr, loopback: loopback, RxBaseIx: 14}
}

// Run blocks, processing ring entries until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case ifNbr := <-w.ring.ch:
			w.process(ifNbr)
			runtime.Gosched()
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOne drains and processes exactly one ring entry, for tests that
// need deterministic single-step control instead of Run's loop.
func (w *Worker) ProcessOne(ctx context.Context) bool {
	select {
	case ifNbr := <-w.ring.ch:
		w.process(ifNbr)
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Worker) process(ifNbr int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ring.total != nil {
		w.ring.total.Dec()
	}

	entry, err := w.table.Get(ifNbr)
	if err != nil {
		return
	}

	var h *buf.Header

	if ifNbr == iface.LoopbackIfNbr {
		var ok bool
		h, ok = w.loopback.Dequeue()
		if !ok {
			return
		}
	} else {
		data, length, err := entry.DevVtbl.Rx()
		if err != nil || length == 0 {
			entry.Stats.RxPktDisCtr.Inc()
			return
		}

		hdr, _, err := w.bufMgr.Get(ifNbr, buf.DirRx, length, w.RxBaseIx, buf.FlagRxRemote)
		if err != nil {
			entry.Stats.RxPktDisCtr.Inc()
			return
		}

		n := copy(hdr.Data[w.RxBaseIx:], data[:length])

		hdr.TotLen = w.RxBaseIx + n
		hdr.DataLen = hdr.TotLen
		hdr.IxLink = w.RxBaseIx
		hdr.ProtocolHdrType = buf.ProtoIfFrame

		h = hdr
	}

	if err := entry.IfVtbl.Rx(h); err != nil {
		w.bufMgr.FreeBuf(h)
		entry.Stats.RxPktDisCtr.Inc()
	}

	if w.LoadBalance {
		entry.LB.RxPktDec()
		entry.LB.Wake()
	}
}
