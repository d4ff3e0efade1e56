package buf

import (
	"sync"

	"github.com/gonet-embedded/netcore/neterr"
)

// PoolConfig describes one typed data-area pool for one interface.
type PoolConfig struct {
	Capacity int
	Size     int // stride, in octets
	Align    int // required alignment in octets, 0/1 = unaligned
	IxOffset int // configured head-padding octets
}

type ifPools struct {
	rx      *dataPool
	txSmall *dataPool
	txLarge *dataPool
}

// Manager owns the header pool and every interface's typed data-area
// pools. All mutation happens under the caller's global lock; Manager
// itself adds no locking of its own, mirroring spec.md's "allocation and
// free always inside the lock" resource rule. A private mutex guards only
// the registry of per-interface pools, since Add/interface registration
// can race interface-table setup in tests.
type Manager struct {
	mu       sync.Mutex
	headers  *headerPool
	byIfNbr  map[int]*ifPools
}

// NewManager builds the shared header pool. Data-area pools are attached
// per interface via RegisterInterface, called from iface.Table.Add (which
// is what the spec calls ifVtbl.Add -> BufPoolInit).
func NewManager(headerCapacity int) *Manager {
	return &Manager{
		headers: newHeaderPool(headerCapacity),
		byIfNbr: make(map[int]*ifPools),
	}
}

// RegisterInterface creates the Rx/TxSmall/TxLarge data-area pools for a
// newly added interface. A pool with Capacity == 0 is not created (e.g.
// loopback or non-stream interfaces may skip TxSmall).
func (m *Manager) RegisterInterface(ifNbr int, rx, txSmall, txLarge PoolConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := &ifPools{}

	if rx.Capacity > 0 {
		p.rx = newDataPool(rx.Capacity, rx.Size, rx.Align, rx.IxOffset)
	}
	if txSmall.Capacity > 0 {
		p.txSmall = newDataPool(txSmall.Capacity, txSmall.Size, txSmall.Align, txSmall.IxOffset)
	}
	if txLarge.Capacity > 0 {
		p.txLarge = newDataPool(txLarge.Capacity, txLarge.Size, txLarge.Align, txLarge.IxOffset)
	}

	m.byIfNbr[ifNbr] = p
}

// UnregisterInterface drops an interface's pools, used only to rewind a
// failed Add.
func (m *Manager) UnregisterInterface(ifNbr int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byIfNbr, ifNbr)
}

func (m *Manager) poolFor(ifNbr int, dir Dir) (*dataPool, Type, error) {
	m.mu.Lock()
	p, ok := m.byIfNbr[ifNbr]
	m.mu.Unlock()

	if !ok {
		return nil, TypeNone, neterr.ErrInvalidIf
	}

	switch dir {
	case DirRx:
		if p.rx == nil {
			return nil, TypeNone, neterr.ErrInvalidIf
		}
		return p.rx, TypeRxLarge, nil
	case DirTxSmall:
		if p.txSmall == nil {
			return nil, TypeNone, neterr.ErrInvalidIf
		}
		return p.txSmall, TypeTxSmall, nil
	case DirTxLarge:
		if p.txLarge == nil {
			return nil, TypeNone, neterr.ErrInvalidIf
		}
		return p.txLarge, TypeTxLarge, nil
	default:
		return nil, TypeNone, neterr.ErrInvalidCfg
	}
}

// Get allocates a header bound to a freshly acquired data area (§4.A).
func (m *Manager) Get(ifNbr int, dir Dir, size, baseIx int, flags Flags) (*Header, int, error) {
	if baseIx < 0 || size < 0 {
		return nil, 0, neterr.ErrInvalidBufIx
	}

	pool, typ, err := m.poolFor(ifNbr, dir)
	if err != nil {
		return nil, 0, err
	}

	ixOffset := pool.alignOffset(baseIx)

	if baseIx+ixOffset+size > pool.stride {
		return nil, 0, neterr.ErrInvalidBufSize
	}

	data, slot, err := pool.get()
	if err != nil {
		return nil, 0, err
	}

	h, err := m.headers.get()
	if err != nil {
		pool.put(slot)
		return nil, 0, err
	}

	h.IfNbr = ifNbr
	h.Type = typ
	h.Data = data
	h.Flags = flags
	h.pool = pool
	h.slot = slot

	return h, ixOffset, nil
}

// GetDataPtr allocates a bare data area with no header, for callers (e.g.
// a loopback copy staging buffer) that only need scratch space.
func (m *Manager) GetDataPtr(ifNbr int, dir Dir, size, baseIx int) ([]byte, int, error) {
	if baseIx < 0 || size < 0 {
		return nil, 0, neterr.ErrInvalidBufIx
	}

	pool, _, err := m.poolFor(ifNbr, dir)
	if err != nil {
		return nil, 0, err
	}

	if baseIx+size > pool.stride {
		return nil, 0, neterr.ErrInvalidBufSize
	}

	data, _, err := pool.get()
	if err != nil {
		return nil, 0, err
	}

	return data, pool.stride, nil
}

// FreeBuf releases a single header (§4.A): fires the unlink callback if
// present, clears TxLock, then returns header and data area to their
// pools. Must not be called from ISR context.
func (m *Manager) FreeBuf(h *Header) (int, error) {
	if h == nil {
		return 0, neterr.ErrNullPtr
	}

	if h.UnlinkFn != nil {
		fn := h.UnlinkFn
		obj := h.UnlinkObj
		h.UnlinkFn = nil
		h.UnlinkObj = nil
		fn(h, obj)
	}

	h.Flags &^= FlagTxLock

	if h.pool != nil {
		h.pool.put(h.slot)
	}

	m.headers.put(h)

	return 1, nil
}

// FreeBufList releases every header reachable via the secondary-list
// chain starting at head, following SecondaryNext.
func (m *Manager) FreeBufList(head *Header) (int, error) {
	count := 0
	h := head

	for h != nil {
		next := h.SecondaryNext
		if _, err := m.FreeBuf(h); err != nil {
			return count, err
		}
		count++
		h = next
	}

	return count, nil
}

// DataCopy copies length bytes from src[ixSrc:] to dst[ixDst:], refusing
// to read or write past either slice's bounds.
func DataCopy(dst, src []byte, ixDst, ixSrc, length int) error {
	if ixDst < 0 || ixSrc < 0 || length < 0 {
		return neterr.ErrInvalidBufIx
	}

	if ixSrc+length > len(src) {
		return neterr.ErrInvalidBufLen
	}

	if ixDst+length > len(dst) {
		return neterr.ErrInvalidBufLen
	}

	copy(dst[ixDst:ixDst+length], src[ixSrc:ixSrc+length])
	return nil
}

// Stats reports the free/capacity counts for a pool, used by tests
// verifying P1 (no leak).
func (m *Manager) Stats(ifNbr int, dir Dir) (avail, capacity int, err error) {
	pool, _, err := m.poolFor(ifNbr, dir)
	if err != nil {
		return 0, 0, err
	}

	return pool.avail(), pool.capacity(), nil
}

// HeaderStats reports header-pool occupancy.
func (m *Manager) HeaderStats() (avail, capacity int) {
	return m.headers.avail(), m.headers.capacity()
}
