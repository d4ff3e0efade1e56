package iface

import (
	"github.com/gonet-embedded/netcore/buf"
)

// IfVtbl is the per-interface-class capability table (spec.md §6): header
// framing, address management, MTU, buffer-pool sizing and the IRQ/IoCtrl
// surface the core routes to without interpreting.
type IfVtbl interface {
	// Validate reports a NullFn-equivalent error if any function this
	// implementation needs at runtime is unset, and whether it supplies
	// the multicast entries Table.Add requires when multicastEnabled.
	Validate(multicastEnabled, isLoopback bool) error

	Add(ifNbr int, bufMgr *buf.Manager, bsp, cfg interface{}) error
	Start(ifNbr int) error
	Stop(ifNbr int) error

	Rx(h *buf.Header) error
	// Tx returns pending=true for TxAddrPend (queued on ARP/NDP).
	Tx(h *buf.Header) (pending bool, err error)

	AddrHwGet() HwAddr
	AddrHwSet(addr HwAddr) error
	AddrHwIsValid(addr HwAddr) bool

	AddrMulticastAdd(addr HwAddr) error
	AddrMulticastRemove(addr HwAddr) error
	AddrMulticastProtocolToHw(protoAddr []byte) (HwAddr, error)

	BufPoolCfgValidate(rx, txSmall, txLarge buf.PoolConfig) error
	MtuSet(mtu int) error

	GetPktSizeHdr() int
	GetPktSizeMin() int
	GetPktSizeMax() int

	IsrHandler(kind int) error
	IoCtrl(opt IoCtrlOpt, data interface{}) error
}

// DevVtbl is the device-driver vtable (spec.md §6): the thin Rx/Tx
// surface a concrete driver (e.g. the teacher's soc/nxp/enet, or this
// repo's netdev/sockdev) presents to the core.
type DevVtbl interface {
	Init() error
	Teardown() error

	// Rx returns the next received data area and its length. Implementations
	// typically pop from a ring the device ISR already filled.
	Rx() (data []byte, length int, err error)

	// Tx hands a fully-framed frame to the device for transmission.
	Tx(data []byte) error
}

// ExtVtbl is an optional, opaque extension vtable (e.g. a board-specific
// power-management hook); the core never calls into it directly.
type ExtVtbl interface{}
