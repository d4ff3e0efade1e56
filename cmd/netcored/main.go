// Command netcored is a reference daemon wiring the interface table,
// buffer pools, Rx/Tx pipelines and link-state monitor together over a
// sockdev loopback-pair device, with the debugcharts dashboard (its
// default Go runtime charts; no pool or queue counters are fed to it)
// served on localhost:1234, the way the teacher's example programs wire
// board peripherals together for a runnable demo rather than leaving
// integration as an exercise for every caller.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"

	_ "github.com/mkevac/debugcharts"

	"github.com/gonet-embedded/netcore/buf"
	"github.com/gonet-embedded/netcore/ethif"
	"github.com/gonet-embedded/netcore/iface"
	"github.com/gonet-embedded/netcore/netdev/sockdev"
	netcore "github.com/gonet-embedded/netcore"
)

func main() {
	log.SetFlags(0)

	cfg := netcore.DefaultConfig()
	h := netcore.New(cfg)

	self, peer, err := sockdev.Pair()
	if err != nil {
		log.Fatalf("netcored: socketpair: %v", err)
	}
	defer peer.Teardown()

	rxSink := func(hdr *buf.Header) {
		log.Printf("netcored: received %d bytes on if%d", hdr.DataLen, hdr.IfNbr)
	}

	vtbl := ethif.New(iface.HwAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}, rxSink)

	rx := buf.PoolConfig{Capacity: 64, Size: 1536, Align: 4, IxOffset: 14}
	txs := buf.PoolConfig{Capacity: 16, Size: 256, Align: 4, IxOffset: 14}
	txl := buf.PoolConfig{Capacity: 16, Size: 1536, Align: 4, IxOffset: 14}

	ifNbr, err := h.AddInterface(iface.TypeEthernet, vtbl, self, nil, nil, rx, txs, txl, 10, 50)
	if err != nil {
		log.Fatalf("netcored: AddInterface: %v", err)
	}

	if err := h.Table.Start(ifNbr); err != nil {
		log.Fatalf("netcored: Start: %v", err)
	}

	loRx := func(hdr *buf.Header) { rxSink(hdr) }
	loVtbl := ethif.New(iface.HwAddr{}, loRx)
	loopbackRx := buf.PoolConfig{Capacity: 16, Size: 512, Align: 4}

	if _, err := h.EnableLoopback(loVtbl, noopDev{}, loopbackRx); err != nil {
		log.Fatalf("netcored: EnableLoopback: %v", err)
	}

	go func() {
		log.Println("netcored: debug dashboard listening on :1234/debug/charts")
		if err := http.ListenAndServe("localhost:1234", nil); err != nil {
			log.Printf("netcored: dashboard: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Listen is this interface's ISR equivalent: it stages frames read
	// off the socket with no lock held, then posts to the receive ring,
	// the only thing that makes this a receiving interface rather than
	// transmit-only.
	go func() {
		if err := self.Listen(ctx, func() error { return h.RxTaskSignal(ifNbr) }); err != nil {
			log.Printf("netcored: if%d receive listener: %v", ifNbr, err)
		}
	}()

	log.Println("netcored: running")
	h.Run(ctx)
	log.Println("netcored: stopped")
}

// noopDev backs the loopback interface's DevVtbl slot: loopback.Queue
// never calls through to the device, but iface.Table.Add still requires
// a non-nil DevVtbl.
type noopDev struct{}

func (noopDev) Init() error              { return nil }
func (noopDev) Teardown() error          { return nil }
func (noopDev) Rx() ([]byte, int, error) { return nil, 0, nil }
func (noopDev) Tx(data []byte) error     { return nil }
