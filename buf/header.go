package buf

// UnlinkFn is invoked exactly once, before a buffer's memory is returned to
// its pools, when the buffer is enqueued somewhere other than the caller's
// own hands (I3 in spec.md). obj is whatever context the enqueuer needs
// (e.g. the queue it must also be spliced out of).
type UnlinkFn func(h *Header, obj interface{})

// Header is the bookkeeping half of a buffer: lengths, protocol-layer
// indices, ownership flags and the three independent list linkages a
// header can participate in simultaneously (I5: at most one of each kind).
type Header struct {
	IfNbr           int
	Type            Type
	TotLen          int
	DataLen         int
	IxLink          int
	IxNet           int
	IxTransport     int
	IxApp           int
	ProtocolHdrType ProtoType
	Flags           Flags

	// Data is the slice view into the data area this header owns. Its
	// length is the pool's stride; DataLen is the portion actually in
	// use.
	Data []byte

	// PrimaryPrev/PrimaryNext thread protocol queues (owned by the
	// external network-layer code this spec treats as a collaborator).
	PrimaryPrev, PrimaryNext *Header

	// SecondaryPrev/SecondaryNext thread interface queues (the loopback
	// Rx FIFO in this module).
	SecondaryPrev, SecondaryNext *Header

	// TxPrev/TxNext thread the in-flight list (component F).
	TxPrev, TxNext *Header

	UnlinkFn  UnlinkFn
	UnlinkObj interface{}

	pool   *dataPool
	slot   int
	hpSlot int
}

// NewHeader returns a zeroed header with all protocol-layer indices set to
// the "none" sentinel.
func NewHeader() *Header {
	return &Header{
		IxLink:      IxNone,
		IxNet:       IxNone,
		IxTransport: IxNone,
		IxApp:       IxNone,
	}
}

// reset clears a header back to its just-allocated state before it is
// pushed back onto the header free-stack.
func (h *Header) reset() {
	h.IfNbr = 0
	h.Type = TypeNone
	h.TotLen = 0
	h.DataLen = 0
	h.IxLink = IxNone
	h.IxNet = IxNone
	h.IxTransport = IxNone
	h.IxApp = IxNone
	h.ProtocolHdrType = ProtoNone
	h.Flags = 0
	h.Data = nil
	h.PrimaryPrev = nil
	h.PrimaryNext = nil
	h.SecondaryPrev = nil
	h.SecondaryNext = nil
	h.TxPrev = nil
	h.TxNext = nil
	h.UnlinkFn = nil
	h.UnlinkObj = nil
	h.pool = nil
	h.slot = 0
}

// SecondaryEnqueue appends h to the tail of a secondary-linked queue
// identified by its head/tail pointers, setting the unlink callback so a
// premature FreeBuf still splices h out (I3).
func SecondaryEnqueue(head, tail **Header, h *Header, unlink UnlinkFn, obj interface{}) {
	h.SecondaryPrev = *tail
	h.SecondaryNext = nil

	if *tail != nil {
		(*tail).SecondaryNext = h
	} else {
		*head = h
	}

	*tail = h
	h.UnlinkFn = unlink
	h.UnlinkObj = obj
}

// SecondaryDequeue removes h from the secondary-linked queue it is the
// head of; callers must hold whatever lock guards head/tail.
func SecondaryDequeue(head, tail **Header) *Header {
	h := *head
	if h == nil {
		return nil
	}

	SecondaryUnlink(head, tail, h)
	return h
}

// SecondaryUnlink splices h out of the secondary queue wherever it sits.
func SecondaryUnlink(head, tail **Header, h *Header) {
	if h.SecondaryPrev != nil {
		h.SecondaryPrev.SecondaryNext = h.SecondaryNext
	} else if *head == h {
		*head = h.SecondaryNext
	}

	if h.SecondaryNext != nil {
		h.SecondaryNext.SecondaryPrev = h.SecondaryPrev
	} else if *tail == h {
		*tail = h.SecondaryPrev
	}

	h.SecondaryPrev = nil
	h.SecondaryNext = nil
	h.UnlinkFn = nil
	h.UnlinkObj = nil
}
