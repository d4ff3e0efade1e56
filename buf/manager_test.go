package buf

import (
	"errors"
	"testing"

	"github.com/gonet-embedded/netcore/neterr"
)

func newTestManager() (*Manager, int) {
	m := NewManager(8)
	ifNbr := 1
	m.RegisterInterface(ifNbr, PoolConfig{Capacity: 4, Size: 1536, Align: 4}, PoolConfig{Capacity: 2, Size: 256, Align: 4}, PoolConfig{Capacity: 2, Size: 1536, Align: 4})
	return m, ifNbr
}

func TestGetFreeRoundTrip(t *testing.T) {
	m, ifNbr := newTestManager()

	h, ixOff, err := m.Get(ifNbr, DirRx, 64, 14, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if ixOff < 0 {
		t.Fatalf("negative ixOffset")
	}

	if h.Type != TypeRxLarge {
		t.Fatalf("expected RxLarge, got %v", h.Type)
	}

	avail, capacity, _ := m.Stats(ifNbr, DirRx)
	if avail != 3 || capacity != 4 {
		t.Fatalf("expected 3/4 avail after one Get, got %d/%d", avail, capacity)
	}

	if _, err := m.FreeBuf(h); err != nil {
		t.Fatalf("FreeBuf: %v", err)
	}

	avail, capacity, _ = m.Stats(ifNbr, DirRx)
	if avail != capacity {
		t.Fatalf("pool did not return to full capacity: %d/%d", avail, capacity)
	}
}

// TestP1NoLeak exercises property P1: every successful Get is matched by
// exactly one FreeBuf and the pool ends up back at full capacity.
func TestP1NoLeak(t *testing.T) {
	m, ifNbr := newTestManager()

	for round := 0; round < 50; round++ {
		var hdrs []*Header

		for i := 0; i < 4; i++ {
			h, _, err := m.Get(ifNbr, DirRx, 32, 0, 0)
			if err != nil {
				t.Fatalf("round %d: Get: %v", round, err)
			}
			hdrs = append(hdrs, h)
		}

		if _, _, err := m.Get(ifNbr, DirRx, 32, 0, 0); !errors.Is(err, neterr.ErrNoBufAvail) {
			t.Fatalf("expected NoBufAvail at capacity, got %v", err)
		}

		for _, h := range hdrs {
			if _, err := m.FreeBuf(h); err != nil {
				t.Fatalf("FreeBuf: %v", err)
			}
		}

		avail, capacity, _ := m.Stats(ifNbr, DirRx)
		if avail != capacity {
			t.Fatalf("round %d: leaked buffers, %d/%d free", round, avail, capacity)
		}
	}
}

func TestGetInvalidIf(t *testing.T) {
	m, _ := newTestManager()

	if _, _, err := m.Get(99, DirRx, 32, 0, 0); !errors.Is(err, neterr.ErrInvalidIf) {
		t.Fatalf("expected InvalidIf, got %v", err)
	}
}

func TestGetInvalidSize(t *testing.T) {
	m, ifNbr := newTestManager()

	if _, _, err := m.Get(ifNbr, DirRx, 4096, 0, 0); !errors.Is(err, neterr.ErrInvalidBufSize) {
		t.Fatalf("expected InvalidBufSize, got %v", err)
	}
}

func TestUnlinkFnFiresOnFree(t *testing.T) {
	m, ifNbr := newTestManager()

	h, _, err := m.Get(ifNbr, DirRx, 32, 0, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	fired := 0
	h.UnlinkFn = func(hh *Header, obj interface{}) { fired++ }

	if _, err := m.FreeBuf(h); err != nil {
		t.Fatalf("FreeBuf: %v", err)
	}

	if fired != 1 {
		t.Fatalf("expected unlink fn to fire exactly once, fired %d times", fired)
	}
}

func TestFreeBufListFollowsSecondaryChain(t *testing.T) {
	m, ifNbr := newTestManager()

	var head, tail *Header

	for i := 0; i < 3; i++ {
		h, _, err := m.Get(ifNbr, DirRx, 32, 0, 0)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		SecondaryEnqueue(&head, &tail, h, nil, nil)
	}

	count, err := m.FreeBufList(head)
	if err != nil {
		t.Fatalf("FreeBufList: %v", err)
	}

	if count != 3 {
		t.Fatalf("expected 3 freed, got %d", count)
	}

	avail, capacity, _ := m.Stats(ifNbr, DirRx)
	if avail != capacity {
		t.Fatalf("pool leaked: %d/%d", avail, capacity)
	}
}

func TestDataCopyBounded(t *testing.T) {
	dst := make([]byte, 8)
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	if err := DataCopy(dst, src, 0, 0, 8); err != nil {
		t.Fatalf("DataCopy: %v", err)
	}

	if err := DataCopy(dst, src, 4, 0, 8); !errors.Is(err, neterr.ErrInvalidBufLen) {
		t.Fatalf("expected InvalidBufLen for out-of-bounds dst, got %v", err)
	}

	if err := DataCopy(dst, src, 0, 4, 8); !errors.Is(err, neterr.ErrInvalidBufLen) {
		t.Fatalf("expected InvalidBufLen for out-of-bounds src, got %v", err)
	}
}
