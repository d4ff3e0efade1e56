package iface

import (
	"sync"
	"time"

	"github.com/gonet-embedded/netcore/buf"
	"github.com/gonet-embedded/netcore/loadbalance"
	"github.com/gonet-embedded/netcore/neterr"
	"github.com/gonet-embedded/netcore/stats"
)

// LoopbackIfNbr is the reserved interface number for the loopback
// interface, present whether or not it is enabled (spec.md §3).
const LoopbackIfNbr = 0

// Counters are the per-interface statistics named throughout spec.md
// (discard/error counters referenced by §4.D/E and the end-to-end
// scenarios in §8).
type Counters struct {
	RxPktDisCtr stats.Counter
	TxPktCtr    stats.Counter
	TxPktDisCtr stats.Counter
	DevTxRdyCtr stats.Counter
}

// IF is one interface-table entry (spec.md §3 "Interface").
type IF struct {
	Nbr  int
	Type Type

	Init bool
	En   bool

	Link     LinkState
	LinkPrev LinkState

	MTU int

	IfVtbl  IfVtbl
	DevVtbl DevVtbl
	ExtVtbl ExtVtbl

	Stats Counters
	LB    *loadbalance.Gate

	// DevTxRdy is the device transmit-ready semaphore (spec.md §3), posted
	// by the device driver when it can accept another frame.
	DevTxRdy        chan struct{}
	DevTxRdyTimeout time.Duration

	subs []subscriber
}

type subscriber struct {
	key     uintptr
	fn      SubscriberFn
	refs    int
}

// SubscriberFn is invoked with the global lock released (spec.md §6).
type SubscriberFn func(ifNbr int, newState LinkState)

// Table is the registry of interfaces (spec.md §4.C). Interface numbers
// form a dense, append-only range; removal is not supported.
type Table struct {
	mu     *sync.Mutex
	bufMgr *buf.Manager

	// MulticastEnabled gates whether Add requires an IfVtbl to supply
	// working multicast entries.
	MulticastEnabled bool
	// IPv6Enabled gates the all-nodes multicast join on Start.
	IPv6Enabled bool
	// IpInit is the external network-layer initialization hook spec.md
	// calls "IpInit"; nil is a legitimate no-op for tests.
	IpInit func(ifNbr int) error

	entries  []*IF
	bootSalt []byte
}

// NewTable builds an empty table sharing the given global lock and buffer
// manager with the rest of the core.
func NewTable(mu *sync.Mutex, bufMgr *buf.Manager) *Table {
	return &Table{mu: mu, bufMgr: bufMgr, bootSalt: newBootSalt()}
}

// Add registers a new interface (spec.md §4.C). On any failure the table
// is left exactly as it was before the call.
func (t *Table) Add(typ Type, ifVtbl IfVtbl, devVtbl DevVtbl, devBsp, devCfg interface{}, extVtbl ExtVtbl, extCfg interface{}, rx, txSmall, txLarge buf.PoolConfig, suspendTimeoutMs, devTxRdyTimeoutMs int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ifVtbl == nil || devVtbl == nil {
		return 0, neterr.ErrNullFn
	}

	isLoopback := typ == TypeLoopback

	if err := ifVtbl.Validate(t.MulticastEnabled, isLoopback); err != nil {
		return 0, err
	}

	if err := ifVtbl.BufPoolCfgValidate(rx, txSmall, txLarge); err != nil {
		return 0, err
	}

	prevLen := len(t.entries)
	if prevLen == 0 {
		// Slot 0 stays reserved for loopback whether or not it is added.
		t.entries = append(t.entries, nil)
	}

	ifNbr := len(t.entries)
	if isLoopback {
		if t.entries[LoopbackIfNbr] != nil {
			t.entries = t.entries[:prevLen]
			return 0, neterr.ErrInvalidCfg
		}
		ifNbr = LoopbackIfNbr
	}

	entry := &IF{
		Nbr:             ifNbr,
		Type:            typ,
		LB:              loadbalance.NewGate(time.Duration(suspendTimeoutMs) * time.Millisecond),
		DevTxRdy:        make(chan struct{}, 1),
		DevTxRdyTimeout: time.Duration(devTxRdyTimeoutMs) * time.Millisecond,
	}

	if isLoopback {
		t.entries[LoopbackIfNbr] = entry
	} else {
		t.entries = append(t.entries, entry)
	}

	entry.Init = true
	entry.IfVtbl = ifVtbl
	entry.DevVtbl = devVtbl
	entry.ExtVtbl = extVtbl

	t.bufMgr.RegisterInterface(ifNbr, rx, txSmall, txLarge)

	if err := ifVtbl.Add(ifNbr, t.bufMgr, devBsp, devCfg); err != nil {
		t.rewindAdd(ifNbr, isLoopback, prevLen)
		return 0, err
	}

	if !isLoopback && isZeroHwAddr(ifVtbl.AddrHwGet()) {
		mac := deriveFallbackMAC(ifNbr, t.bootSalt)
		if err := ifVtbl.AddrHwSet(mac); err != nil {
			t.rewindAdd(ifNbr, isLoopback, prevLen)
			return 0, err
		}
	}

	if t.IpInit != nil {
		if err := t.IpInit(ifNbr); err != nil {
			t.rewindAdd(ifNbr, isLoopback, prevLen)
			return 0, err
		}
	}

	return ifNbr, nil
}

func (t *Table) rewindAdd(ifNbr int, isLoopback bool, prevLen int) {
	t.bufMgr.UnregisterInterface(ifNbr)

	if isLoopback {
		t.entries[LoopbackIfNbr] = nil
	} else {
		t.entries[ifNbr].Init = false
	}

	t.entries = t.entries[:prevLen]
}

// Start enables a previously added, currently-disabled interface.
func (t *Table) Start(ifNbr int) error {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	if entry.En {
		t.mu.Unlock()
		return neterr.ErrInvalidState
	}
	t.mu.Unlock()

	if err := entry.IfVtbl.Start(ifNbr); err != nil {
		return err
	}

	t.mu.Lock()
	entry.En = true
	if entry.Type == TypeLoopback {
		// Loopback has no PHY for the link monitor to poll; its link
		// is always Up once started (spec.md §4.C).
		entry.Link = LinkUp
	}
	t.mu.Unlock()

	if entry.Type != TypeLoopback && t.IPv6Enabled {
		if addr, err := entry.IfVtbl.AddrMulticastProtocolToHw(allNodesMulticastIPv6); err == nil {
			if err := entry.IfVtbl.AddrMulticastAdd(addr); err != nil {
				t.Stop(ifNbr)
				return err
			}
		}
	}

	return nil
}

// Stop disables an enabled interface. Clearing Link is defensive even if
// the driver already cleared it.
func (t *Table) Stop(ifNbr int) error {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	if !entry.En {
		t.mu.Unlock()
		return neterr.ErrInvalidState
	}
	t.mu.Unlock()

	if err := entry.IfVtbl.Stop(ifNbr); err != nil {
		return err
	}

	t.mu.Lock()
	entry.En = false
	entry.Link = LinkDown
	t.mu.Unlock()

	return nil
}

func (t *Table) get(ifNbr int) (*IF, error) {
	if ifNbr < 0 || ifNbr >= len(t.entries) || t.entries[ifNbr] == nil {
		return nil, neterr.ErrInvalidIf
	}
	return t.entries[ifNbr], nil
}

// Get performs an O(1) lookup with id validation. It is callable without
// the global lock for ISR use; callers must still read mutable fields (En,
// Link, ...) through a critical section of their own (Go: the shared
// mutex) if they need a consistent snapshot.
func (t *Table) Get(ifNbr int) (*IF, error) {
	return t.get(ifNbr)
}

// GetDflt returns the first enabled, initialised, non-loopback interface,
// falling back to loopback.
func (t *Table) GetDflt() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, e := range t.entries {
		if i == LoopbackIfNbr || e == nil {
			continue
		}
		if e.Init && e.En {
			return i, nil
		}
	}

	if len(t.entries) > 0 && t.entries[LoopbackIfNbr] != nil && t.entries[LoopbackIfNbr].En {
		return LoopbackIfNbr, nil
	}

	return 0, neterr.ErrInvalidIf
}

// Len reports how many slots (including a reserved-but-absent loopback
// slot 0) the table currently has.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

var allNodesMulticastIPv6 = []byte{0xff, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}

// isZeroHwAddr reports whether addr is absent or all-zero, the signal this
// module uses for "driver reported no burned-in address".
func isZeroHwAddr(addr HwAddr) bool {
	if len(addr) == 0 {
		return true
	}
	for _, b := range addr {
		if b != 0 {
			return false
		}
	}
	return true
}
