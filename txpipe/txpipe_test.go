package txpipe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gonet-embedded/netcore/buf"
	"github.com/gonet-embedded/netcore/iface"
	"github.com/gonet-embedded/netcore/inflight"
)

type fakeIfVtbl struct {
	pending bool
	txErr   error
}

func (v *fakeIfVtbl) Validate(bool, bool) error { return nil }
func (v *fakeIfVtbl) Add(int, *buf.Manager, interface{}, interface{}) error { return nil }
func (v *fakeIfVtbl) Start(int) error { return nil }
func (v *fakeIfVtbl) Stop(int) error  { return nil }
func (v *fakeIfVtbl) Rx(h *buf.Header) error { return nil }
func (v *fakeIfVtbl) Tx(h *buf.Header) (bool, error) { return v.pending, v.txErr }
func (v *fakeIfVtbl) AddrHwGet() iface.HwAddr         { return nil }
func (v *fakeIfVtbl) AddrHwSet(iface.HwAddr) error    { return nil }
func (v *fakeIfVtbl) AddrHwIsValid(iface.HwAddr) bool { return true }
func (v *fakeIfVtbl) AddrMulticastAdd(iface.HwAddr) error    { return nil }
func (v *fakeIfVtbl) AddrMulticastRemove(iface.HwAddr) error { return nil }
func (v *fakeIfVtbl) AddrMulticastProtocolToHw([]byte) (iface.HwAddr, error) {
	return nil, nil
}
func (v *fakeIfVtbl) BufPoolCfgValidate(buf.PoolConfig, buf.PoolConfig, buf.PoolConfig) error {
	return nil
}
func (v *fakeIfVtbl) MtuSet(int) error       { return nil }
func (v *fakeIfVtbl) GetPktSizeHdr() int     { return 14 }
func (v *fakeIfVtbl) GetPktSizeMin() int     { return 60 }
func (v *fakeIfVtbl) GetPktSizeMax() int     { return 1514 }
func (v *fakeIfVtbl) IsrHandler(int) error   { return nil }
func (v *fakeIfVtbl) IoCtrl(iface.IoCtrlOpt, interface{}) error { return nil }

type fakeDevVtbl struct {
	mu  sync.Mutex
	sent [][]byte
	txErr error
}

func (d *fakeDevVtbl) Init() error     { return nil }
func (d *fakeDevVtbl) Teardown() error { return nil }
func (d *fakeDevVtbl) Rx() ([]byte, int, error) { return nil, 0, nil }
func (d *fakeDevVtbl) Tx(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Store the slice itself, not a copy: completion posts identify a
	// buffer by data-area pointer identity, so the fake must hand back
	// the same backing array the pipeline handed to it.
	d.sent = append(d.sent, data)
	return d.txErr
}

type recordingLoopback struct {
	calls int
	err   error
}

func (l *recordingLoopback) Tx(h *buf.Header) error {
	l.calls++
	return l.err
}

func buildPipeline(t *testing.T, ifVtbl iface.IfVtbl, devVtbl iface.DevVtbl, devTxRdyTimeoutMs int) (*Pipeline, *iface.Table, *sync.Mutex, *buf.Manager, int) {
	t.Helper()

	var mu sync.Mutex
	mgr := buf.NewManager(32)
	table := iface.NewTable(&mu, mgr)

	rx := buf.PoolConfig{Capacity: 4, Size: 256, Align: 4}
	txs := buf.PoolConfig{Capacity: 4, Size: 128, Align: 4}
	txl := buf.PoolConfig{Capacity: 4, Size: 256, Align: 4}

	ifNbr, err := table.Add(iface.TypeEthernet, ifVtbl, devVtbl, nil, nil, nil, nil, rx, txs, txl, 10, devTxRdyTimeoutMs)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := table.Start(ifNbr); err != nil {
		t.Fatalf("Start: %v", err)
	}

	il := inflight.New()
	p := NewPipeline(&mu, table, mgr, il, &recordingLoopback{})

	return p, table, &mu, mgr, ifNbr
}

func allocTxBuf(t *testing.T, mgr *buf.Manager, mu *sync.Mutex, ifNbr int) *buf.Header {
	t.Helper()

	mu.Lock()
	h, _, err := mgr.Get(ifNbr, buf.DirTxSmall, 32, 0, 0)
	mu.Unlock()

	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	h.IfNbr = ifNbr
	h.ProtocolHdrType = buf.ProtoIfEther
	h.IxLink = 0
	h.DataLen = 32
	h.TotLen = 32

	return h
}

// TestTxDropsOnLinkDown is end-to-end scenario 2: transmitting on a link
// that is down must free the buffer, bump TxPktDisCtr and never reach the
// device.
func TestTxDropsOnLinkDown(t *testing.T) {
	dev := &fakeDevVtbl{}
	p, table, mu, mgr, ifNbr := buildPipeline(t, &fakeIfVtbl{}, dev, 50)

	h := allocTxBuf(t, mgr, mu, ifNbr)

	if err := p.Tx(h); err != nil {
		t.Fatalf("Tx: %v", err)
	}

	dev.mu.Lock()
	sent := len(dev.sent)
	dev.mu.Unlock()

	if sent != 0 {
		t.Fatalf("expected no frames reaching the device while link is down, got %d", sent)
	}

	entry, _ := table.Get(ifNbr)
	mu.Lock()
	disc := entry.Stats.TxPktDisCtr.Value()
	mu.Unlock()

	if disc != 1 {
		t.Fatalf("expected TxPktDisCtr == 1, got %d", disc)
	}

	avail, capacity, _ := mgr.Stats(ifNbr, buf.DirTxSmall)
	if avail != capacity {
		t.Fatalf("expected the buffer to be returned to its pool, avail=%d capacity=%d", avail, capacity)
	}
}

// TestTxDeviceReadyTimeout is end-to-end scenario 4: the device never
// posts DevTxRdy, so the bounded wait expires, the buffer is freed and
// TxPktDisCtr bumps, and the frame never reaches the device's Tx.
func TestTxDeviceReadyTimeout(t *testing.T) {
	dev := &fakeDevVtbl{}
	p, table, mu, mgr, ifNbr := buildPipeline(t, &fakeIfVtbl{}, dev, 20)

	entry, _ := table.Get(ifNbr)
	mu.Lock()
	entry.Link = iface.LinkUp
	mu.Unlock()

	h := allocTxBuf(t, mgr, mu, ifNbr)

	start := time.Now()
	if err := p.Tx(h); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Fatalf("expected Tx to block for roughly the configured timeout, took %v", elapsed)
	}

	dev.mu.Lock()
	sent := len(dev.sent)
	dev.mu.Unlock()

	if sent != 0 {
		t.Fatalf("expected no frame handed to the device after a ready-timeout, got %d", sent)
	}

	avail, capacity, _ := mgr.Stats(ifNbr, buf.DirTxSmall)
	if avail != capacity {
		t.Fatalf("expected the buffer to be returned to its pool, avail=%d capacity=%d", avail, capacity)
	}
}

// TestTxSuccessReachesDevice verifies a buffer transmitted with the link
// up and the device ready lands in the in-flight list and is handed to
// the device, with TxPktCtr bumped.
func TestTxSuccessReachesDevice(t *testing.T) {
	dev := &fakeDevVtbl{}
	p, table, mu, mgr, ifNbr := buildPipeline(t, &fakeIfVtbl{}, dev, 50)

	entry, _ := table.Get(ifNbr)
	mu.Lock()
	entry.Link = iface.LinkUp
	entry.DevTxRdy <- struct{}{}
	mu.Unlock()

	h := allocTxBuf(t, mgr, mu, ifNbr)

	if err := p.Tx(h); err != nil {
		t.Fatalf("Tx: %v", err)
	}

	dev.mu.Lock()
	sent := len(dev.sent)
	dev.mu.Unlock()

	if sent != 1 {
		t.Fatalf("expected exactly one frame reaching the device, got %d", sent)
	}

	mu.Lock()
	ctr := entry.Stats.TxPktCtr.Value()
	inFlight := p.inflight.Len()
	mu.Unlock()

	if ctr != 1 {
		t.Fatalf("expected TxPktCtr == 1, got %d", ctr)
	}

	if inFlight != 1 {
		t.Fatalf("expected 1 buffer in-flight pending completion, got %d", inFlight)
	}
}

// TestDeallocOutOfOrderCompletion is end-to-end scenario 6 and property
// P4: N buffers are transmitted, their completions are posted to the
// dealloc worker in an order different than transmission, and every
// buffer is still matched to the right completion, removed from the
// in-flight list and returned to its pool.
func TestDeallocOutOfOrderCompletion(t *testing.T) {
	dev := &fakeDevVtbl{}
	p, table, mu, mgr, ifNbr := buildPipeline(t, &fakeIfVtbl{}, dev, 50)

	entry, _ := table.Get(ifNbr)
	mu.Lock()
	entry.Link = iface.LinkUp
	mu.Unlock()

	const n = 3
	for i := 0; i < n; i++ {
		mu.Lock()
		entry.DevTxRdy <- struct{}{}
		mu.Unlock()

		h := allocTxBuf(t, mgr, mu, ifNbr)
		if err := p.Tx(h); err != nil {
			t.Fatalf("Tx %d: %v", i, err)
		}
	}

	mu.Lock()
	inFlight := p.inflight.Len()
	sent := len(dev.sent)
	mu.Unlock()

	if inFlight != n {
		t.Fatalf("expected %d buffers in-flight, got %d", n, inFlight)
	}
	if sent != n {
		t.Fatalf("expected %d frames sent, got %d", n, sent)
	}

	w := NewDeallocWorker(n, mu, p.inflight, mgr)

	completionOrder := []int{2, 0, 1}
	for _, i := range completionOrder {
		if err := w.Post(dev.sent[i]); err != nil {
			t.Fatalf("Post %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < n; i++ {
		if !w.ProcessOne(ctx) {
			t.Fatalf("ProcessOne %d timed out", i)
		}
	}

	mu.Lock()
	finalInFlight := p.inflight.Len()
	mu.Unlock()

	if finalInFlight != 0 {
		t.Fatalf("expected in-flight list empty after all completions, got %d", finalInFlight)
	}

	avail, capacity, _ := mgr.Stats(ifNbr, buf.DirTxSmall)
	if avail != capacity {
		t.Fatalf("expected every buffer returned to its pool, avail=%d capacity=%d", avail, capacity)
	}

	_ = table
}

// TestTxInvalidProtocolDiscarded verifies an unrecognised protocol header
// type is discarded rather than handed to the device.
func TestTxInvalidProtocolDiscarded(t *testing.T) {
	dev := &fakeDevVtbl{}
	p, table, mu, mgr, ifNbr := buildPipeline(t, &fakeIfVtbl{}, dev, 50)

	entry, _ := table.Get(ifNbr)
	mu.Lock()
	entry.Link = iface.LinkUp
	mu.Unlock()

	h := allocTxBuf(t, mgr, mu, ifNbr)
	h.ProtocolHdrType = buf.ProtoICMPv4

	if err := p.Tx(h); err != nil {
		t.Fatalf("Tx: %v", err)
	}

	dev.mu.Lock()
	sent := len(dev.sent)
	dev.mu.Unlock()

	if sent != 0 {
		t.Fatalf("expected no frame reaching the device for an invalid protocol, got %d", sent)
	}

	mu.Lock()
	disc := entry.Stats.TxPktDisCtr.Value()
	mu.Unlock()

	if disc != 1 {
		t.Fatalf("expected TxPktDisCtr == 1, got %d", disc)
	}

	_ = table
}

// TestTxAddrPendLeavesBufferOwned verifies a buffer queued for address
// resolution is neither freed nor handed to the device by this pipeline.
func TestTxAddrPendLeavesBufferOwned(t *testing.T) {
	dev := &fakeDevVtbl{}
	p, table, mu, mgr, ifNbr := buildPipeline(t, &fakeIfVtbl{pending: true}, dev, 50)

	entry, _ := table.Get(ifNbr)
	mu.Lock()
	entry.Link = iface.LinkUp
	mu.Unlock()

	h := allocTxBuf(t, mgr, mu, ifNbr)

	if err := p.Tx(h); err != nil {
		t.Fatalf("Tx: %v", err)
	}

	dev.mu.Lock()
	sent := len(dev.sent)
	dev.mu.Unlock()

	if sent != 0 {
		t.Fatalf("expected no frame reaching the device while pending address resolution, got %d", sent)
	}

	avail, _, _ := mgr.Stats(ifNbr, buf.DirTxSmall)
	if avail != 3 {
		t.Fatalf("expected the pending buffer to stay checked out (avail=3 of 4), got avail=%d", avail)
	}

	_ = table
}

// TestLoopbackTxDispatch verifies packets addressed to the loopback
// interface are routed to the loopback transmitter instead of any
// device.
func TestLoopbackTxDispatch(t *testing.T) {
	var mu sync.Mutex
	mgr := buf.NewManager(8)
	table := iface.NewTable(&mu, mgr)

	rx := buf.PoolConfig{Capacity: 2, Size: 256, Align: 4}

	_, err := table.Add(iface.TypeLoopback, &fakeIfVtbl{}, &fakeDevVtbl{}, nil, nil, nil, nil, rx, buf.PoolConfig{}, buf.PoolConfig{}, 10, 50)
	if err != nil {
		t.Fatalf("Add loopback: %v", err)
	}
	if err := table.Start(iface.LoopbackIfNbr); err != nil {
		t.Fatalf("Start loopback: %v", err)
	}

	entry, _ := table.Get(iface.LoopbackIfNbr)
	mu.Lock()
	entry.Link = iface.LinkUp
	mu.Unlock()

	lo := &recordingLoopback{}
	il := inflight.New()
	p := NewPipeline(&mu, table, mgr, il, lo)

	mu.Lock()
	h, _, err := mgr.Get(iface.LoopbackIfNbr, buf.DirRx, 32, 0, 0)
	mu.Unlock()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	h.IfNbr = iface.LoopbackIfNbr

	if err := p.Tx(h); err != nil {
		t.Fatalf("Tx: %v", err)
	}

	if lo.calls != 1 {
		t.Fatalf("expected the loopback transmitter to be called once, got %d", lo.calls)
	}
}
