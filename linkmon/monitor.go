// Package linkmon implements the link-state monitor (spec.md §4.H): a
// periodic timer that polls every enabled non-loopback interface's PHY
// through IoCtrl(LinkStateGet), caches the result, and fans transitions
// out to subscribers with the global lock released. This generalizes the
// teacher's MDIO PHY-register poll (soc/nxp/enet/mii.go's
// ReadPHYRegister, used by board bring-up code to spin on link-up before
// traffic starts) from "one hardwired register read" to "whatever
// IoCtrl(LinkStateGet) a given IfVtbl implements", on an idiomatic Go
// ticker instead of a bare-metal busy-poll loop.
package linkmon

import (
	"context"
	"sync"
	"time"

	"github.com/gonet-embedded/netcore/iface"
)

// LinkStateResult is the out-parameter IoCtrl(LinkStateGet) fills in; a
// driver that cannot currently produce a definitive reading (e.g. mid
// negotiation) returns a non-nil error and the monitor leaves the cached
// state alone, per spec.md §4.H's "on a read error the cache is left
// alone" rationale.
type LinkStateResult struct {
	State iface.LinkState
}

// Monitor is the periodic poller. Period is bounded to [minPeriod,
// maxPeriod] the way the interface load-balance timeout is bounded.
type Monitor struct {
	mu     *sync.Mutex
	table  *iface.Table
	period time.Duration
}

const (
	minPeriod = 10 * time.Millisecond
	maxPeriod = 10 * time.Second
)

// New builds a monitor sharing the process-wide global lock, polling the
// given table on period, clamped to [10ms, 10s].
func New(mu *sync.Mutex, table *iface.Table, period time.Duration) *Monitor {
	if period < minPeriod {
		period = minPeriod
	}
	if period > maxPeriod {
		period = maxPeriod
	}
	return &Monitor{mu: mu, table: table, period: period}
}

// Run blocks, polling every period until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(m.period)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			m.PollOnce()
		case <-ctx.Done():
			return
		}
	}
}

// PollOnce runs a single poll pass over every interface, for tests and
// callers that want deterministic step control instead of Run's loop.
func (m *Monitor) PollOnce() {
	n := m.table.Len()

	for ifNbr := 1; ifNbr < n; ifNbr++ {
		m.pollOne(ifNbr)
	}
}

func (m *Monitor) pollOne(ifNbr int) {
	m.mu.Lock()

	entry, err := m.table.Get(ifNbr)
	if err != nil || !entry.En {
		m.mu.Unlock()
		return
	}

	var result LinkStateResult
	ioctlErr := entry.IfVtbl.IoCtrl(iface.IoCtrlLinkStateGet, &result)
	if ioctlErr != nil {
		m.mu.Unlock()
		return
	}

	prev := entry.Link
	entry.Link = result.State
	changed := result.State != prev

	m.mu.Unlock()

	if !changed {
		return
	}

	// NotifyLinkState re-acquires the table's own lock just long enough
	// to copy the subscriber list, then calls every fn with no lock
	// held (spec.md §4.H).
	m.table.NotifyLinkState(ifNbr, result.State)

	m.mu.Lock()
	entry.LinkPrev = prev
	m.mu.Unlock()
}
