package iface

import "reflect"

func fnKey(fn SubscriberFn) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// LinkStateSubscribe adds fn to the interface's link-change subscriber
// list. Subscribing the same fn twice bumps a refcount rather than
// duplicating the entry; new subscriptions go to the tail (spec.md §4.C).
// Function identity is compared by code pointer (reflect.ValueOf(fn).
// Pointer()), the standard Go idiom for this — it does not distinguish
// between two closures created from the same literal, which is the
// expected and sufficient granularity here.
func (t *Table) LinkStateSubscribe(ifNbr int, fn SubscriberFn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, err := t.get(ifNbr)
	if err != nil {
		return err
	}

	key := fnKey(fn)

	for i := range entry.subs {
		if entry.subs[i].key == key {
			entry.subs[i].refs++
			return nil
		}
	}

	entry.subs = append(entry.subs, subscriber{key: key, fn: fn, refs: 1})
	return nil
}

// LinkStateUnsubscribe decrements fn's refcount, removing the entry at
// zero. Unsubscribing is a no-op if fn was never subscribed.
func (t *Table) LinkStateUnsubscribe(ifNbr int, fn SubscriberFn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, err := t.get(ifNbr)
	if err != nil {
		return err
	}

	key := fnKey(fn)

	for i := range entry.subs {
		if entry.subs[i].key == key {
			entry.subs[i].refs--
			if entry.subs[i].refs <= 0 {
				entry.subs = append(entry.subs[:i], entry.subs[i+1:]...)
			}
			return nil
		}
	}

	return nil
}

// notifySubscribers invokes every subscriber for ifNbr with the global
// lock released (spec.md §6), and must therefore be called by callers
// that are not themselves holding the lock.
func (t *Table) notifySubscribers(ifNbr int, newState LinkState) {
	t.mu.Lock()
	entry, err := t.get(ifNbr)
	if err != nil {
		t.mu.Unlock()
		return
	}
	fns := make([]SubscriberFn, len(entry.subs))
	for i, s := range entry.subs {
		fns[i] = s.fn
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(ifNbr, newState)
	}
}

// NotifyLinkState is exported for the link-state monitor (§4.H), which
// owns the single writer of Link/LinkPrev transitions.
func (t *Table) NotifyLinkState(ifNbr int, newState LinkState) {
	t.notifySubscribers(ifNbr, newState)
}
