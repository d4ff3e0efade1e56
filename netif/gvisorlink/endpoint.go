// Package gvisorlink adapts this module's DevVtbl surface to a gvisor
// channel.Endpoint, the same bridge the teacher's USB-Ethernet CDC-ECM
// driver builds (imx6/usb/ethernet/cdc_ecm.go, example/usb_ethernet.go):
// frames handed to Tx are parsed for their Ethernet header and injected
// into the endpoint as inbound traffic for an attached gvisor netstack;
// frames the netstack writes out are read back off the endpoint, framed
// with an Ethernet header, and surfaced through Rx. This lets a
// gvisor-based IP stack sit on top of one of this core's interfaces
// exactly as it would sit on top of real hardware.
package gvisorlink

import (
	"encoding/binary"
	"sync"

	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/buffer"
	"gvisor.dev/gvisor/pkg/tcpip/link/channel"
	"gvisor.dev/gvisor/pkg/tcpip/stack"

	"github.com/gonet-embedded/netcore/neterr"
)

const ethHeaderLen = 14

// Endpoint is an iface.DevVtbl backed by a gvisor channel.Endpoint.
type Endpoint struct {
	mu sync.Mutex

	ep *channel.Endpoint

	hostMAC   []byte
	deviceMAC []byte
}

// New builds an Endpoint with its own channel.Endpoint of the given
// queue depth and MTU, addressed as deviceMAC on the link. Frames surfaced
// through Rx carry hostMAC as destination and deviceMAC as source, the way
// the teacher's CDC-ECM NIC stamps Host/Device MAC pairs on every frame
// it reconstructs.
func New(queueLen int, mtu uint32, hostMAC, deviceMAC []byte) (*Endpoint, error) {
	if len(hostMAC) != 6 || len(deviceMAC) != 6 {
		return nil, neterr.ErrInvalidAddrLen
	}

	linkAddr := tcpip.LinkAddress(deviceMAC)

	return &Endpoint{
		ep:        channel.New(queueLen, mtu, linkAddr),
		hostMAC:   append([]byte(nil), hostMAC...),
		deviceMAC: append([]byte(nil), deviceMAC...),
	}, nil
}

// LinkEndpoint exposes the underlying gvisor endpoint for
// stack.Stack.CreateNIC.
func (e *Endpoint) LinkEndpoint() stack.LinkEndpoint { return e.ep }

// Init and Teardown are no-ops: the channel.Endpoint needs no setup or
// teardown of its own beyond construction.
func (e *Endpoint) Init() error     { return nil }
func (e *Endpoint) Teardown() error { return nil }

// Tx parses data as a framed Ethernet packet and injects its payload as
// inbound traffic on the attached gvisor stack (spec.md §4.E "device
// hand-off", generalized to a software link instead of a MAC).
func (e *Endpoint) Tx(data []byte) error {
	if len(data) < ethHeaderLen {
		return neterr.ErrInvalidBufLen
	}

	proto := tcpip.NetworkProtocolNumber(binary.BigEndian.Uint16(data[12:14]))

	hdr := buffer.NewViewFromBytes(data[:ethHeaderLen])
	payload := buffer.NewViewFromBytes(data[ethHeaderLen:])

	pkt := &stack.PacketBuffer{
		LinkHeader: hdr,
		Data:       payload.ToVectorisedView(),
	}

	e.ep.InjectInbound(proto, pkt)
	return nil
}

// Rx drains one packet the attached gvisor stack wrote out, reframing
// it with an Ethernet header (spec.md §4.D "device Rx").
func (e *Endpoint) Rx() ([]byte, int, error) {
	info, ok := e.ep.Read()
	if !ok {
		return nil, 0, nil
	}

	hdr := info.Pkt.Header.View()
	payload := info.Pkt.Data.ToView()

	proto := make([]byte, 2)
	binary.BigEndian.PutUint16(proto, uint16(info.Proto))

	frame := make([]byte, 0, ethHeaderLen+len(hdr)+len(payload))
	frame = append(frame, e.hostMAC...)
	frame = append(frame, e.deviceMAC...)
	frame = append(frame, proto...)
	frame = append(frame, hdr...)
	frame = append(frame, payload...)

	return frame, len(frame), nil
}
