// Package txpipe implements the transmit pipeline (spec.md §4.E): prepare
// -> device-ready gate -> device hand-off -> in-flight wait -> dealloc
// worker, plus the public Tx entry point that iterates a caller's buffer
// list. The device-ready/in-flight/dealloc shape mirrors the teacher's
// enet.Tx (push onto the descriptor ring, then TDAR_ACTIVE kicks the MAC)
// generalized with an explicit in-flight list instead of relying on the
// ring's own wrap-around bookkeeping, since this spec's buffers can be
// reclaimed out of order (§8 scenario 6) where the teacher's descriptor
// ring assumes in-order hardware completion only.
package txpipe

import (
	"context"
	"sync"
	"time"

	"github.com/gonet-embedded/netcore/buf"
	"github.com/gonet-embedded/netcore/iface"
	"github.com/gonet-embedded/netcore/inflight"
	"github.com/gonet-embedded/netcore/neterr"
)

// LoopbackTransmitter hands a buffer to the loopback interface's transmit
// path (spec.md §4.G), implemented by the loopback package.
type LoopbackTransmitter interface {
	Tx(h *buf.Header) error
}

// Pipeline is the transmit pipeline shared by every non-loopback
// interface.
type Pipeline struct {
	mu       *sync.Mutex
	table    *iface.Table
	bufMgr   *buf.Manager
	inflight *inflight.List
	loopback LoopbackTransmitter
}

// NewPipeline builds a transmit pipeline sharing the process-wide global
// lock, interface table, buffer manager and in-flight list.
func NewPipeline(mu *sync.Mutex, table *iface.Table, bufMgr *buf.Manager, inflightList *inflight.List, loopback LoopbackTransmitter) *Pipeline {
	return &Pipeline{mu: mu, table: table, bufMgr: bufMgr, inflight: inflightList, loopback: loopback}
}

var validTxTypes = map[buf.Type]bool{buf.TypeTxLarge: true, buf.TypeTxSmall: true}

var validTxProtocols = map[buf.ProtoType]bool{
	buf.ProtoIfEther: true,
	buf.ProtoIfFrame: true,
	buf.ProtoArp:     true,
	buf.ProtoIPv4:    true,
	buf.ProtoIPv6:    true,
}

func matchingHeaderIx(h *buf.Header) int {
	switch h.ProtocolHdrType {
	case buf.ProtoArp, buf.ProtoIfEther, buf.ProtoIfFrame:
		return h.IxLink
	case buf.ProtoIPv4, buf.ProtoIPv6:
		return h.IxNet
	default:
		return buf.IxNone
	}
}

// Tx is the public entry point (spec.md §4.E). It walks bufList via
// SecondaryNext, transmitting each buffer independently; a failure on one
// buffer does not stop the rest.
func (p *Pipeline) Tx(bufList *buf.Header) error {
	if bufList == nil {
		return neterr.ErrNullPtr
	}

	h := bufList

	for h != nil {
		next := h.SecondaryNext
		p.txOne(h)
		h = next
	}

	return nil
}

// txOne runs the validation and loopback-or-device-pipeline dispatch for
// one buffer under the global lock; buf-pool and table mutation never
// happens outside it. The lock is released around the loopback
// transmitter call (which takes the lock itself), and inside txPkt around
// the bounded device transmit-ready wait and the DevVtbl.Tx hand-off.
func (p *Pipeline) txOne(h *buf.Header) {
	p.mu.Lock()

	entry, err := p.table.Get(h.IfNbr)
	if err != nil {
		p.bufMgr.FreeBuf(h)
		p.mu.Unlock()
		return
	}

	if entry.Link != iface.LinkUp {
		entry.Stats.TxPktDisCtr.Inc()
		p.bufMgr.FreeBuf(h)
		p.mu.Unlock()
		return
	}

	if h.IfNbr == iface.LoopbackIfNbr {
		p.mu.Unlock()
		if err := p.loopback.Tx(h); err != nil {
			p.mu.Lock()
			entry.Stats.TxPktDisCtr.Inc()
			p.mu.Unlock()
		}
		return
	}

	if !validTxTypes[h.Type] || !validTxProtocols[h.ProtocolHdrType] || matchingHeaderIx(h) == buf.IxNone {
		entry.Stats.TxPktDisCtr.Inc()
		p.bufMgr.FreeBuf(h)
		p.mu.Unlock()
		return
	}

	pending, err := entry.IfVtbl.Tx(h)
	if err != nil {
		entry.Stats.TxPktDisCtr.Inc()
		p.bufMgr.FreeBuf(h)
		p.mu.Unlock()
		return
	}

	p.mu.Unlock()

	if pending {
		// TxAddrPend: queued on ARP/NDP, success for this pipeline's
		// purposes; the core forgets about the buffer until it is
		// re-entered on resolution.
		return
	}

	p.txPkt(entry, h)
}

// txPkt runs the device-ready wait, in-flight bookkeeping and device
// hand-off for a buffer that has already passed validation and header
// preparation.
func (p *Pipeline) txPkt(entry *iface.IF, h *buf.Header) {
	if !p.devTxRdyWait(entry) {
		p.mu.Lock()
		p.bufMgr.FreeBuf(h)
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	h.Flags |= buf.FlagTxLock
	p.inflight.Insert(h)
	p.mu.Unlock()

	err := entry.DevVtbl.Tx(h.Data[:h.DataLen])

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.inflight.Remove(h)
		h.Flags &^= buf.FlagTxLock
		entry.Stats.TxPktDisCtr.Inc()
		p.bufMgr.FreeBuf(h)
		return
	}

	entry.Stats.TxPktCtr.Inc()
}

// devTxRdyWait pends on the device's transmit-ready semaphore with a
// bounded timeout (spec.md §4.E step c).
func (p *Pipeline) devTxRdyWait(entry *iface.IF) bool {
	timeout := entry.DevTxRdyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-entry.DevTxRdy:
		return true
	case <-ctx.Done():
		p.mu.Lock()
		entry.Stats.TxPktDisCtr.Inc()
		p.mu.Unlock()
		return false
	}
}

// DeallocWorker pops data-area pointers posted by device completion ISRs,
// finds the matching in-flight buffer, removes it, clears TxLock and
// frees both header and data area (spec.md §4.E, "Device transmit
// completion").
type DeallocWorker struct {
	ring     chan []byte
	mu       *sync.Mutex
	inflight *inflight.List
	bufMgr   *buf.Manager
}

// NewDeallocWorker builds a dealloc worker over a ring of the given
// capacity.
func NewDeallocWorker(capacity int, mu *sync.Mutex, inflightList *inflight.List, bufMgr *buf.Manager) *DeallocWorker {
	return &DeallocWorker{ring: make(chan []byte, capacity), mu: mu, inflight: inflightList, bufMgr: bufMgr}
}

// Post is called by the device completion ISR. Never blocks; a full ring
// reports ErrTxDeallocQFull (the device is expected to count this as a
// lost completion notification — the buffer stays TxLock'd until a retry
// path, external to this spec, requeues the pointer).
func (w *DeallocWorker) Post(dataPtr []byte) error {
	select {
	case w.ring <- dataPtr:
		return nil
	default:
		return neterr.ErrTxDeallocQFull
	}
}

// Run blocks, draining completions until ctx is cancelled.
func (w *DeallocWorker) Run(ctx context.Context) {
	for {
		select {
		case dp := <-w.ring:
			w.process(dp)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOne drains and processes exactly one completion, for
// deterministic tests.
func (w *DeallocWorker) ProcessOne(ctx context.Context) bool {
	select {
	case dp := <-w.ring:
		w.process(dp)
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *DeallocWorker) process(dataPtr []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	h := w.inflight.FindByData(dataPtr)
	if h == nil {
		return
	}

	w.inflight.Remove(h)
	h.Flags &^= buf.FlagTxLock
	w.bufMgr.FreeBuf(h)
}
