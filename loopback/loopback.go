// Package loopback implements the loopback interface (spec.md §4.G): a
// Tx that turns straight back into an Rx by copying the frame into a
// fresh buffer and enqueueing it on a FIFO the Rx worker drains, instead
// of any device hand-off. This follows the original NetIF_Loopback_Tx /
// NetIF_Loopback_RxQ_Add shape (IF/net_if_loopback.c): allocate, copy,
// link onto the secondary queue with an unlink callback so a premature
// free still splices the buffer out, then signal the Rx side.
package loopback

import (
	"sync"

	"github.com/gonet-embedded/netcore/buf"
	"github.com/gonet-embedded/netcore/iface"
	"github.com/gonet-embedded/netcore/loadbalance"
	"github.com/gonet-embedded/netcore/neterr"
)

// Signaller is the narrow slice of rxpipe.Ring this package depends on,
// to avoid an import cycle (rxpipe -> loopback would cycle back through
// loopback -> rxpipe.Ring).
type Signaller interface {
	Signal(ifNbr int, lb *loadbalance.Gate) error
}

// Queue is the loopback interface's Tx-to-Rx FIFO. All mutation happens
// under the caller's global lock.
type Queue struct {
	mu     *sync.Mutex
	bufMgr *buf.Manager
	table  *iface.Table
	ring   Signaller

	head, tail *buf.Header
	depth      int
	maxDepth   int
}

// New builds a loopback queue bounded to maxDepth buffers, sharing the
// process-wide global lock, buffer manager, interface table and Rx
// ring-signal path.
func New(mu *sync.Mutex, bufMgr *buf.Manager, table *iface.Table, ring Signaller, maxDepth int) *Queue {
	if maxDepth <= 0 {
		maxDepth = 32
	}
	return &Queue{mu: mu, bufMgr: bufMgr, table: table, ring: ring, maxDepth: maxDepth}
}

var validLoopbackProtocols = map[buf.ProtoType]bool{
	buf.ProtoIPv4: true,
	buf.ProtoIPv6: true,
}

// Tx implements txpipe.LoopbackTransmitter. It validates the outbound
// buffer, copies its payload into a freshly allocated Rx buffer stamped
// for this interface, enqueues that copy, signals the Rx pipeline, and
// frees the original Tx buffer regardless of outcome — the caller's
// buffer never survives a call to Tx.
func (q *Queue) Tx(h *buf.Header) error {
	if h == nil {
		return neterr.ErrNullPtr
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	defer q.bufMgr.FreeBuf(h)

	if !validLoopbackProtocols[h.ProtocolHdrType] {
		return neterr.ErrInvalidProtocol
	}

	if h.IxNet == buf.IxNone || h.IxNet > h.DataLen {
		return neterr.ErrInvalidBufIx
	}

	entry, err := q.table.Get(iface.LoopbackIfNbr)
	if err != nil || !entry.En {
		return neterr.ErrLoopbackDisabled
	}

	if entry.Link != iface.LinkUp {
		entry.Stats.TxPktDisCtr.Inc()
		return neterr.ErrLinkDown
	}

	if q.depth >= q.maxDepth {
		entry.Stats.TxPktDisCtr.Inc()
		return neterr.ErrRxQFull
	}

	// Only the IP header onward is copied into the loopback Rx buffer;
	// whatever link-layer headroom h reserved ahead of IxNet is specific
	// to the interface that never ends up transmitting it (spec.md §4.G,
	// grounded on NetIF_Loopback_Tx's buf_data_ix_tx = IP_HdrIx).
	payloadLen := h.DataLen - h.IxNet

	rxH, ixOffset, err := q.bufMgr.Get(iface.LoopbackIfNbr, buf.DirRx, payloadLen, 0, 0)
	if err != nil {
		entry.Stats.TxPktDisCtr.Inc()
		return err
	}

	if err := buf.DataCopy(rxH.Data, h.Data, ixOffset, h.IxNet, payloadLen); err != nil {
		q.bufMgr.FreeBuf(rxH)
		entry.Stats.TxPktDisCtr.Inc()
		return err
	}

	rxH.IfNbr = iface.LoopbackIfNbr
	rxH.TotLen = ixOffset + payloadLen
	rxH.DataLen = rxH.TotLen
	rxH.ProtocolHdrType = h.ProtocolHdrType
	rxH.IxNet = ixOffset

	q.enqueue(rxH)

	if err := q.ring.Signal(iface.LoopbackIfNbr, nil); err != nil {
		q.remove(rxH)
		q.bufMgr.FreeBuf(rxH)
		entry.Stats.TxPktDisCtr.Inc()
		return err
	}

	entry.Stats.TxPktCtr.Inc()
	return nil
}

// Dequeue implements rxpipe.LoopbackSource. Callers (rxpipe.Worker) call
// this with the shared global lock already held, the same convention
// Tx's own locking relies on; Dequeue must not re-lock it.
func (q *Queue) Dequeue() (*buf.Header, bool) {
	h := buf.SecondaryDequeue(&q.head, &q.tail)
	if h == nil {
		return nil, false
	}
	q.depth--

	return h, true
}

func (q *Queue) enqueue(h *buf.Header) {
	buf.SecondaryEnqueue(&q.head, &q.tail, h, q.unlink, nil)
	q.depth++
}

func (q *Queue) remove(h *buf.Header) {
	buf.SecondaryUnlink(&q.head, &q.tail, h)
	q.depth--
}

// unlink is the buffer's UnlinkFn while it sits on the loopback queue: a
// FreeBuf racing a Dequeue must still splice the buffer out cleanly (I3
// in spec.md). Called by Manager.FreeBuf, which already holds the
// caller's lock by convention, so no locking happens here.
func (q *Queue) unlink(h *buf.Header, _ interface{}) {
	buf.SecondaryUnlink(&q.head, &q.tail, h)
	q.depth--
}

// Len reports how many buffers are currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depth
}
