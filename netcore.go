// Package netcore wires the buffer pools, interface table, receive and
// transmit pipelines, in-flight list, loopback interface and link-state
// monitor into one handle, the way the teacher's usbarmory/mark-two.go
// composes individual SoC peripheral drivers into one board handle at
// process start rather than leaving callers to wire packages by hand.
package netcore

import (
	"context"
	"sync"
	"time"

	"github.com/gonet-embedded/netcore/buf"
	"github.com/gonet-embedded/netcore/iface"
	"github.com/gonet-embedded/netcore/inflight"
	"github.com/gonet-embedded/netcore/linkmon"
	"github.com/gonet-embedded/netcore/loopback"
	"github.com/gonet-embedded/netcore/rxpipe"
	"github.com/gonet-embedded/netcore/stats"
	"github.com/gonet-embedded/netcore/txpipe"
)

// Config configures the handful of sizing knobs spec.md leaves to
// deployment (pool/ring capacities, header-pool size, link-monitor
// period): everything else is either a per-interface PoolConfig passed
// to AddInterface, or an invariant the spec fixes outright.
type Config struct {
	HeaderPoolCapacity int
	RxRingCapacity     int
	TxDeallocCapacity  int
	LoopbackQueueDepth int
	LinkMonPeriod      time.Duration

	// MulticastEnabled and IPv6Enabled gate Table.Add/Start behavior
	// (spec.md §4.C).
	MulticastEnabled bool
	IPv6Enabled      bool
}

// DefaultConfig returns sane capacities for local development and
// tests.
func DefaultConfig() Config {
	return Config{
		HeaderPoolCapacity: 256,
		RxRingCapacity:     64,
		TxDeallocCapacity:  64,
		LoopbackQueueDepth: 32,
		LinkMonPeriod:      100 * time.Millisecond,
	}
}

// Handle is the composed core: every component shares the same global
// lock, buffer manager and interface table (spec.md §5).
type Handle struct {
	mu sync.Mutex

	BufMgr   *buf.Manager
	Table    *iface.Table
	Inflight *inflight.List

	RxRing    *rxpipe.Ring
	RxWorker  *rxpipe.Worker
	TxPipe    *txpipe.Pipeline
	TxDealloc *txpipe.DeallocWorker

	Loopback *loopback.Queue
	LinkMon  *linkmon.Monitor

	rxTotal stats.Counter
}

// New builds a fully wired Handle; callers still add interfaces with
// AddInterface and start the background tasks with Run.
func New(cfg Config) *Handle {
	h := &Handle{}

	h.BufMgr = buf.NewManager(cfg.HeaderPoolCapacity)
	h.Table = iface.NewTable(&h.mu, h.BufMgr)
	h.Table.MulticastEnabled = cfg.MulticastEnabled
	h.Table.IPv6Enabled = cfg.IPv6Enabled

	h.Inflight = inflight.New()

	h.RxRing = rxpipe.NewRing(cfg.RxRingCapacity, &h.rxTotal)

	loopbackDepth := cfg.LoopbackQueueDepth
	h.Loopback = loopback.New(&h.mu, h.BufMgr, h.Table, h.RxRing, loopbackDepth)

	h.RxWorker = rxpipe.NewWorker(h.RxRing, &h.mu, h.Table, h.BufMgr, h.Loopback)
	h.RxWorker.LoadBalance = true

	h.TxPipe = txpipe.NewPipeline(&h.mu, h.Table, h.BufMgr, h.Inflight, h.Loopback)
	h.TxDealloc = txpipe.NewDeallocWorker(cfg.TxDeallocCapacity, &h.mu, h.Inflight, h.BufMgr)

	h.LinkMon = linkmon.New(&h.mu, h.Table, cfg.LinkMonPeriod)

	return h
}

// AddInterface registers a new non-loopback interface (spec.md §4.C).
func (h *Handle) AddInterface(typ iface.Type, ifVtbl iface.IfVtbl, devVtbl iface.DevVtbl, devBsp, devCfg interface{}, rx, txSmall, txLarge buf.PoolConfig, suspendTimeoutMs, devTxRdyTimeoutMs int) (int, error) {
	return h.Table.Add(typ, ifVtbl, devVtbl, devBsp, devCfg, nil, nil, rx, txSmall, txLarge, suspendTimeoutMs, devTxRdyTimeoutMs)
}

// EnableLoopback registers and starts the loopback interface (always
// interface number 0 once added).
func (h *Handle) EnableLoopback(ifVtbl iface.IfVtbl, devVtbl iface.DevVtbl, rx buf.PoolConfig) (int, error) {
	ifNbr, err := h.Table.Add(iface.TypeLoopback, ifVtbl, devVtbl, nil, nil, nil, nil, rx, buf.PoolConfig{}, buf.PoolConfig{}, 10, 50)
	if err != nil {
		return 0, err
	}

	if err := h.Table.Start(ifNbr); err != nil {
		return 0, err
	}

	return ifNbr, nil
}

// Tx is the public transmit entry point (spec.md §4.E).
func (h *Handle) Tx(bufList *buf.Header) error {
	return h.TxPipe.Tx(bufList)
}

// RxTaskSignal is the ISR-callable entry point that wakes the Rx worker
// (spec.md §4.D step 1). ifNbr's load-balance gate (if any) is bumped
// alongside the global counter.
func (h *Handle) RxTaskSignal(ifNbr int) error {
	entry, err := h.Table.Get(ifNbr)
	if err != nil {
		return h.RxRing.Signal(ifNbr, nil)
	}
	return h.RxRing.Signal(ifNbr, entry.LB)
}

// TxDeallocTaskPost is the ISR-callable entry point that reports a
// device transmit completion (spec.md §4.E "Device transmit
// completion").
func (h *Handle) TxDeallocTaskPost(dataPtr []byte) error {
	return h.TxDealloc.Post(dataPtr)
}

// Run starts the Rx worker, Tx-dealloc worker and link-state monitor,
// blocking until ctx is cancelled. Each runs on its own goroutine,
// matching spec.md §5's three long-lived tasks.
func (h *Handle) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() { defer wg.Done(); h.RxWorker.Run(ctx) }()
	go func() { defer wg.Done(); h.TxDealloc.Run(ctx) }()
	go func() { defer wg.Done(); h.LinkMon.Run(ctx) }()

	wg.Wait()
}
