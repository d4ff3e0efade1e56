// Package sockdev implements a loopback-pair DevVtbl backed by an
// AF_UNIX SOCK_DGRAM socketpair (golang.org/x/sys/unix.Socketpair),
// standing in for real hardware in tests and local development the way
// the teacher's qemu/virtio targets stand in for real SoCs. One end is
// handed to this module's interface table; writing a frame to the other
// end injects it as a receive, and frames handed to Tx arrive readable
// on the other end.
package sockdev

import (
	"context"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/gonet-embedded/netcore/neterr"
)

const (
	maxFrame     = 2048
	rxQueueDepth = 64
)

// Device is one end of a socketpair, implementing iface.DevVtbl. Frames
// arrive off the socket on Listen's goroutine and are staged on rx; Rx
// only ever drains that staging queue, so it never blocks — the core
// calls it with the global lock held (rxpipe.Worker.process), the same
// contract a real MAC's "pop the next completed descriptor" Rx has.
type Device struct {
	f  *os.File
	rx chan []byte
}

// Pair builds two connected Devices. Frames written on one are readable
// on the other, in order, subject to the kernel socket buffer (a much
// better approximation of an Ethernet link's framing and backpressure
// than an in-process channel).
func Pair() (a, b *Device, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, nil, err
	}

	a = &Device{f: os.NewFile(uintptr(fds[0]), "sockdev-a"), rx: make(chan []byte, rxQueueDepth)}
	b = &Device{f: os.NewFile(uintptr(fds[1]), "sockdev-b"), rx: make(chan []byte, rxQueueDepth)}

	return a, b, nil
}

// Init and Teardown close nothing on Init; Teardown closes the
// underlying file descriptor.
func (d *Device) Init() error { return nil }

func (d *Device) Teardown() error {
	if d.f == nil {
		return nil
	}
	return d.f.Close()
}

// Listen is this device's ISR equivalent: it blocks reading datagrams
// off the raw socket with no lock held, exactly the way a real MAC's
// interrupt handler already has a completed frame in hand before it ever
// touches the global lock. Each frame is staged on rx and signal is
// invoked once it is safely queued, so by the time signal's caller posts
// to the receive ring and the worker reaches DevVtbl.Rx, the data is
// already there waiting — Rx itself never blocks. Listen returns when
// ctx is cancelled or the socket is closed.
func (d *Device) Listen(ctx context.Context, signal func() error) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			d.f.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	for {
		frame := make([]byte, maxFrame)

		n, err := d.f.Read(frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return neterr.ErrRx
		}

		select {
		case d.rx <- frame[:n]:
		default:
			// Staging queue full: drop the frame, the same fate a real
			// descriptor ring gives a completion it has no slot for.
			continue
		}

		if err := signal(); err != nil {
			continue
		}
	}
}

// Rx drains one staged frame. It never blocks and never touches the
// socket directly: the blocking read happens on Listen's goroutine.
func (d *Device) Rx() ([]byte, int, error) {
	select {
	case data := <-d.rx:
		return data, len(data), nil
	default:
		return nil, 0, nil
	}
}

// Tx writes one datagram, preserving frame boundaries the way a real
// Ethernet MAC preserves them.
func (d *Device) Tx(data []byte) error {
	if _, err := d.f.Write(data); err != nil {
		return neterr.ErrTx
	}
	return nil
}
