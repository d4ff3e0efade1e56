package iface

import "github.com/gonet-embedded/netcore/neterr"

// LinkStateGet returns the cached last-known link state (spec.md §4.H
// rationale: callers see a value that may be stale by up to one monitor
// period).
func (t *Table) LinkStateGet(ifNbr int) (LinkState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, err := t.get(ifNbr)
	if err != nil {
		return LinkDown, err
	}

	return entry.Link, nil
}

// AddrHwGet delegates to the interface's vtable.
func (t *Table) AddrHwGet(ifNbr int) (HwAddr, error) {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return entry.IfVtbl.AddrHwGet(), nil
}

// AddrHwSet delegates to the vtable; fails InvalidState while the
// interface is enabled (spec.md §4.C).
func (t *Table) AddrHwSet(ifNbr int, addr HwAddr) error {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	if err == nil && entry.En {
		t.mu.Unlock()
		return neterr.ErrInvalidState
	}
	t.mu.Unlock()

	if err != nil {
		return err
	}

	return entry.IfVtbl.AddrHwSet(addr)
}

// AddrHwIsValid delegates to the vtable.
func (t *Table) AddrHwIsValid(ifNbr int, addr HwAddr) (bool, error) {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	t.mu.Unlock()

	if err != nil {
		return false, err
	}

	return entry.IfVtbl.AddrHwIsValid(addr), nil
}

// AddrMulticastAdd delegates to the vtable.
func (t *Table) AddrMulticastAdd(ifNbr int, addr HwAddr) error {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	t.mu.Unlock()

	if err != nil {
		return err
	}

	return entry.IfVtbl.AddrMulticastAdd(addr)
}

// AddrMulticastRemove delegates to the vtable.
func (t *Table) AddrMulticastRemove(ifNbr int, addr HwAddr) error {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	t.mu.Unlock()

	if err != nil {
		return err
	}

	return entry.IfVtbl.AddrMulticastRemove(addr)
}

// AddrMulticastProtocolToHw delegates to the vtable.
func (t *Table) AddrMulticastProtocolToHw(ifNbr int, protoAddr []byte) (HwAddr, error) {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	t.mu.Unlock()

	if err != nil {
		return nil, err
	}

	return entry.IfVtbl.AddrMulticastProtocolToHw(protoAddr)
}

// MtuGet returns the cached MTU.
func (t *Table) MtuGet(ifNbr int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, err := t.get(ifNbr)
	if err != nil {
		return 0, err
	}

	return entry.MTU, nil
}

// MtuSet delegates to the vtable and caches the result.
func (t *Table) MtuSet(ifNbr int, mtu int) error {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	t.mu.Unlock()

	if err != nil {
		return err
	}

	if err := entry.IfVtbl.MtuSet(mtu); err != nil {
		return err
	}

	t.mu.Lock()
	entry.MTU = mtu
	t.mu.Unlock()

	return nil
}

// IoCtrl delegates to the vtable.
func (t *Table) IoCtrl(ifNbr int, opt IoCtrlOpt, data interface{}) error {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	t.mu.Unlock()

	if err != nil {
		return err
	}

	return entry.IfVtbl.IoCtrl(opt, data)
}

// IsrHandler delegates to the vtable. Callable from ISR context: it does
// not acquire the global lock (spec.md §5, §8 P8).
func (t *Table) IsrHandler(ifNbr int, kind int) error {
	entry, err := t.get(ifNbr)
	if err != nil {
		return err
	}

	return entry.IfVtbl.IsrHandler(kind)
}

// GetPayloadRxMax returns the maximum receive payload size for an
// interface (header size subtracted from its reported max packet size).
func (t *Table) GetPayloadRxMax(ifNbr int) (int, error) {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	t.mu.Unlock()

	if err != nil {
		return 0, err
	}

	return entry.IfVtbl.GetPktSizeMax() - entry.IfVtbl.GetPktSizeHdr(), nil
}

// GetPayloadTxMax returns the maximum transmit payload size for an
// interface.
func (t *Table) GetPayloadTxMax(ifNbr int) (int, error) {
	return t.GetPayloadRxMax(ifNbr)
}
