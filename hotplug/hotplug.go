// Package hotplug provides glue between platform hardware change
// notification sources and the scan scheduler.
package hotplug

import (
	"sort"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/pkg/errors"
)

// Registration identifies a registered callback so it can be unregistered
// later. Callbacks themselves are not comparable.
type Registration int

// Notifier delivers hardware topology change events to interested callbacks.
// Platform notification sources (e.g. WM_DEVICECHANGE listeners, udev
// monitors) implement this; FuncNotifier is an in-memory implementation.
type Notifier interface {
	// Register adds a callback to be invoked on every topology change.
	Register(cb func()) Registration
	// Unregister removes a previously registered callback.
	Unregister(reg Registration) error
}

// FuncNotifier fans out Notify calls to registered callbacks. It is safe for
// concurrent use.
type FuncNotifier struct {
	mu        sync.Mutex
	nextID    Registration
	callbacks map[Registration]func()
}

// NewFuncNotifier returns a notifier with no callbacks registered.
func NewFuncNotifier() *FuncNotifier {
	return &FuncNotifier{callbacks: map[Registration]func(){}}
}

// Register adds a callback and returns its registration.
func (n *FuncNotifier) Register(cb func()) Registration {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.callbacks[n.nextID] = cb
	return n.nextID
}

// Unregister removes the callback registered under reg.
func (n *FuncNotifier) Unregister(reg Registration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.callbacks[reg]; !ok {
		return errors.Errorf("no callback registered under %d", reg)
	}
	delete(n.callbacks, reg)
	return nil
}

// Notify invokes all registered callbacks in registration order. Callbacks
// run outside the notifier's lock, so they may register or unregister.
func (n *FuncNotifier) Notify() {
	n.mu.Lock()
	ids := make([]Registration, 0, len(n.callbacks))
	for id := range n.callbacks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	cbs := make([]func(), 0, len(ids))
	for _, id := range ids {
		cbs = append(cbs, n.callbacks[id])
	}
	n.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// Debounced wraps a notifier so that a burst of events within wait collapses
// into a single callback invocation. One physical plug event often produces
// several OS-level notifications.
func Debounced(n Notifier, wait time.Duration) Notifier {
	return &debounced{inner: n, wait: wait}
}

type debounced struct {
	inner Notifier
	wait  time.Duration
}

func (d *debounced) Register(cb func()) Registration {
	deb := debounce.New(d.wait)
	return d.inner.Register(func() {
		deb(cb)
	})
}

func (d *debounced) Unregister(reg Registration) error {
	return d.inner.Unregister(reg)
}
