// Package inflight implements the transmit in-flight list (spec.md §4.F):
// a process-global doubly-linked list of buffers whose data areas are
// owned by device hardware pending transmit completion. Insertion is at
// the tail and removal of a given header is O(1); lookup by data-area
// pointer identity is linear, matching the teacher's own linear
// completion search in
// soc/nxp/enet (bufferDescriptorRing.pop walks the ring in order) —
// device hardware typically completes in order, the list is short
// (bounded by configured Tx buffer count), and a hash would waste memory
// in the embedded target range this spec assumes.
package inflight

import (
	"github.com/gonet-embedded/netcore/buf"
)

// List is the global in-flight list. All mutation happens under the
// caller's global lock.
type List struct {
	head, tail *buf.Header
	n          int
}

// New returns an empty in-flight list.
func New() *List { return &List{} }

// Insert appends h at the tail.
func (l *List) Insert(h *buf.Header) {
	h.TxPrev = l.tail
	h.TxNext = nil

	if l.tail != nil {
		l.tail.TxNext = h
	} else {
		l.head = h
	}

	l.tail = h
	l.n++
}

// Remove splices h out of the list wherever it sits. It is a no-op if h
// is not currently linked (TxPrev/TxNext both nil and h isn't head).
func (l *List) Remove(h *buf.Header) {
	if l.head != h && h.TxPrev == nil && h.TxNext == nil {
		return
	}

	if h.TxPrev != nil {
		h.TxPrev.TxNext = h.TxNext
	} else if l.head == h {
		l.head = h.TxNext
	}

	if h.TxNext != nil {
		h.TxNext.TxPrev = h.TxPrev
	} else if l.tail == h {
		l.tail = h.TxPrev
	}

	h.TxPrev = nil
	h.TxNext = nil
	l.n--
}

// FindByData returns the header whose Data area starts at the same
// address as dataPtr, identified by slice-header identity (&s[0]).
func (l *List) FindByData(dataPtr []byte) *buf.Header {
	if len(dataPtr) == 0 {
		return nil
	}

	target := &dataPtr[0]

	for h := l.head; h != nil; h = h.TxNext {
		if len(h.Data) > 0 && &h.Data[0] == target {
			return h
		}
	}

	return nil
}

// Len reports the current list length.
func (l *List) Len() int { return l.n }

// Empty reports whether the list has no entries.
func (l *List) Empty() bool { return l.head == nil }
