package inflight

import (
	"testing"

	"github.com/gonet-embedded/netcore/buf"
)

func newTestHeader(size int) *buf.Header {
	h := buf.NewHeader()
	h.Data = make([]byte, size)
	return h
}

func TestInsertRemoveOrder(t *testing.T) {
	l := New()

	a := newTestHeader(4)
	b := newTestHeader(4)
	c := newTestHeader(4)

	l.Insert(a)
	l.Insert(b)
	l.Insert(c)

	if l.Len() != 3 {
		t.Fatalf("expected length 3, got %d", l.Len())
	}

	// P4 / scenario 6-style out-of-order completion: B, A, C.
	if got := l.FindByData(b.Data); got != b {
		t.Fatalf("FindByData(b) did not return b")
	}
	l.Remove(b)

	if got := l.FindByData(a.Data); got != a {
		t.Fatalf("FindByData(a) did not return a")
	}
	l.Remove(a)

	if got := l.FindByData(c.Data); got != c {
		t.Fatalf("FindByData(c) did not return c")
	}
	l.Remove(c)

	if !l.Empty() {
		t.Fatalf("expected list empty after removing all three, len=%d", l.Len())
	}
}

func TestFindByDataMissing(t *testing.T) {
	l := New()
	a := newTestHeader(4)
	l.Insert(a)

	other := make([]byte, 4)
	if got := l.FindByData(other); got != nil {
		t.Fatalf("expected nil for an unrelated data area, got %v", got)
	}

	l.Remove(a)
}

func TestP2NotOnTwoListsSimultaneously(t *testing.T) {
	l := New()
	a := newTestHeader(4)

	l.Insert(a)
	if a.TxPrev == nil && a.TxNext == nil && l.head != a {
		t.Fatalf("expected a linked into the in-flight list")
	}

	l.Remove(a)

	if a.TxPrev != nil || a.TxNext != nil {
		t.Fatalf("expected tx links cleared after removal")
	}

	// Once removed from in-flight, it is safe to link into a secondary
	// (e.g. loopback) queue without any residual in-flight linkage.
	var head, tail *buf.Header
	buf.SecondaryEnqueue(&head, &tail, a, nil, nil)

	if a.TxPrev != nil || a.TxNext != nil {
		t.Fatalf("secondary enqueue must not touch tx linkage")
	}
}
