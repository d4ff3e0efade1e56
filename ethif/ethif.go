// Package ethif implements a reference IfVtbl (spec.md §6) for plain
// Ethernet framing: 14-octet header, IPv4/IPv6 multicast-to-hardware
// mapping, and a LinkStateGetInfo that reports a fixed-speed full-duplex
// PHY. It plays the role the teacher's soc/nxp/enet driver plays for a
// real MAC, minus the hardware register access, so cmd/netcored has a
// concrete capability table to register against sockdev or gvisorlink
// devices.
package ethif

import (
	"sync"

	"github.com/gonet-embedded/netcore/buf"
	"github.com/gonet-embedded/netcore/iface"
	"github.com/gonet-embedded/netcore/linkinfo"
	"github.com/gonet-embedded/netcore/linkmon"
	"github.com/gonet-embedded/netcore/neterr"
)

const (
	hdrLen = 14
	minLen = 60
	maxLen = 1514
)

// RxFn is invoked for every successfully framed receive; the network
// layer this spec treats as an external collaborator would normally
// live here.
type RxFn func(h *buf.Header)

// Vtbl is a reference Ethernet IfVtbl.
type Vtbl struct {
	mu sync.Mutex

	hwAddr iface.HwAddr
	mtu    int

	multicast map[string]iface.HwAddr

	// SpeedMbps/FullDuplex are reported verbatim by IoCtrl(LinkStateGetInfo);
	// a real driver would read them from PHY registers.
	SpeedMbps  uint32
	FullDuplex bool

	OnRx RxFn
}

// New builds a Vtbl addressed at hwAddr, reporting a fixed 1000Mbps
// full-duplex PHY unless overridden.
func New(hwAddr iface.HwAddr, onRx RxFn) *Vtbl {
	return &Vtbl{
		hwAddr:     append(iface.HwAddr(nil), hwAddr...),
		mtu:        1500,
		multicast:  make(map[string]iface.HwAddr),
		SpeedMbps:  1000,
		FullDuplex: true,
		OnRx:       onRx,
	}
}

func (v *Vtbl) Validate(multicastEnabled, isLoopback bool) error {
	if v.OnRx == nil {
		return neterr.ErrNullFn
	}
	return nil
}

func (v *Vtbl) Add(ifNbr int, bufMgr *buf.Manager, bsp, cfg interface{}) error { return nil }
func (v *Vtbl) Start(ifNbr int) error                                        { return nil }
func (v *Vtbl) Stop(ifNbr int) error                                         { return nil }

// Rx validates the Ethernet header is present, sets IxLink to 0 and
// ProtocolHdrType to IfEther, and hands the buffer to OnRx (spec.md §4.D
// demux step). IxLink is not advanced past the header, and any IxLink the
// caller stamped is overwritten.
func (v *Vtbl) Rx(h *buf.Header) error {
	if h.DataLen < hdrLen {
		return neterr.ErrInvalidBufLen
	}

	h.IxLink = 0
	h.ProtocolHdrType = buf.ProtoIfEther

	v.OnRx(h)
	return nil
}

// Tx prepends the 14-octet Ethernet header (destination, source,
// ethertype) ahead of h's current payload. It never returns pending:
// address resolution is outside this spec's scope.
func (v *Vtbl) Tx(h *buf.Header) (bool, error) {
	if h.IxLink < hdrLen {
		return false, neterr.ErrInvalidBufIx
	}

	v.mu.Lock()
	src := v.hwAddr
	v.mu.Unlock()

	dst := destFor(h)

	off := h.IxLink - hdrLen
	copy(h.Data[off:], dst)
	copy(h.Data[off+6:], src)

	ethertype := ethertypeFor(h.ProtocolHdrType)
	h.Data[off+12] = byte(ethertype >> 8)
	h.Data[off+13] = byte(ethertype)

	// DataLen/TotLen already cover [0:DataLen]; the header lands in
	// headroom that was already part of that span, so only IxLink moves.
	h.IxLink = off

	return false, nil
}

// destFor is a placeholder destination resolver: a complete stack would
// consult an ARP/NDP cache keyed by the network-layer destination
// address carried in h; that cache is outside this spec's scope, so a
// broadcast address is used.
func destFor(h *buf.Header) iface.HwAddr {
	return iface.HwAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
}

func ethertypeFor(p buf.ProtoType) uint16 {
	switch p {
	case buf.ProtoIPv4:
		return 0x0800
	case buf.ProtoIPv6:
		return 0x86DD
	case buf.ProtoArp:
		return 0x0806
	default:
		return 0
	}
}

func (v *Vtbl) AddrHwGet() iface.HwAddr {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hwAddr
}

func (v *Vtbl) AddrHwSet(addr iface.HwAddr) error {
	if len(addr) != 6 {
		return neterr.ErrInvalidAddrLen
	}
	v.mu.Lock()
	v.hwAddr = append(iface.HwAddr(nil), addr...)
	v.mu.Unlock()
	return nil
}

func (v *Vtbl) AddrHwIsValid(addr iface.HwAddr) bool {
	return len(addr) == 6 && (addr[0]&0x01) == 0
}

func (v *Vtbl) AddrMulticastAdd(addr iface.HwAddr) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.multicast[string(addr)] = addr
	return nil
}

func (v *Vtbl) AddrMulticastRemove(addr iface.HwAddr) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.multicast, string(addr))
	return nil
}

// AddrMulticastProtocolToHw maps an IPv4 or IPv6 multicast group address
// to its standard Ethernet multicast MAC (RFC 1112 / RFC 2464).
func (v *Vtbl) AddrMulticastProtocolToHw(protoAddr []byte) (iface.HwAddr, error) {
	switch len(protoAddr) {
	case 4:
		return iface.HwAddr{0x01, 0x00, 0x5e, protoAddr[1] & 0x7f, protoAddr[2], protoAddr[3]}, nil
	case 16:
		return iface.HwAddr{0x33, 0x33, protoAddr[12], protoAddr[13], protoAddr[14], protoAddr[15]}, nil
	default:
		return nil, neterr.ErrInvalidAddrLen
	}
}

func (v *Vtbl) BufPoolCfgValidate(rx, txSmall, txLarge buf.PoolConfig) error {
	if rx.Size < minLen || (txSmall.Capacity > 0 && txSmall.Size < minLen) || (txLarge.Capacity > 0 && txLarge.Size < minLen) {
		return neterr.ErrInvalidBufSize
	}
	return nil
}

func (v *Vtbl) MtuSet(mtu int) error {
	if mtu <= 0 || mtu > maxLen-hdrLen {
		return neterr.ErrInvalidMTU
	}
	v.mu.Lock()
	v.mtu = mtu
	v.mu.Unlock()
	return nil
}

func (v *Vtbl) GetPktSizeHdr() int { return hdrLen }
func (v *Vtbl) GetPktSizeMin() int { return minLen }
func (v *Vtbl) GetPktSizeMax() int { return maxLen }

func (v *Vtbl) IsrHandler(kind int) error { return nil }

// IoCtrl serves LinkStateGet (always Up, since this reference vtbl has
// no PHY to fail) and LinkStateGetInfo (a fixed-speed, full-duplex
// linkinfo.PHYInfo). LinkStateUpdate is accepted and ignored.
func (v *Vtbl) IoCtrl(opt iface.IoCtrlOpt, data interface{}) error {
	switch opt {
	case iface.IoCtrlLinkStateGet:
		out, ok := data.(*linkmon.LinkStateResult)
		if !ok {
			return neterr.ErrInvalidCfg
		}
		out.State = iface.LinkUp
		return nil
	case iface.IoCtrlLinkStateGetInfo:
		out, ok := data.(*linkinfo.PHYInfo)
		if !ok {
			return neterr.ErrInvalidCfg
		}
		v.mu.Lock()
		out.SpeedMbps = v.SpeedMbps
		out.FullDuplex = v.FullDuplex
		v.mu.Unlock()
		out.AutoNegotiated = true
		return nil
	case iface.IoCtrlLinkStateUpdate:
		return nil
	default:
		return neterr.ErrInvalidIoCtrl
	}
}
