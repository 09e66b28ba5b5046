// Package registry holds the detection data associating devices with driver
// names. Drivers register the USB/HID/serial identifiers and Bluetooth match
// predicates of the devices they support once at startup; scans only read.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/brailleworks/brlscan/device"
)

// A MatcherFunc determines whether a given Bluetooth device belongs to a
// driver. It is called with serial port records carrying a Bluetooth name.
type MatcherFunc func(rec device.Record) bool

// Signature is the set of known device identifiers for one driver.
type Signature struct {
	ids              map[device.Kind]map[string]struct{}
	bluetoothMatcher MatcherFunc
}

// HasID reports whether the given identifier is registered for the driver
// under the given kind.
func (s *Signature) HasID(kind device.Kind, id string) bool {
	_, ok := s.ids[kind][id]
	return ok
}

// BluetoothMatcher returns the driver's Bluetooth predicate, or nil if none
// was registered.
func (s *Signature) BluetoothMatcher() MatcherFunc {
	return s.bluetoothMatcher
}

// Kinds returns the device kinds the driver has identifiers registered for,
// in sorted order.
func (s *Signature) Kinds() []device.Kind {
	kinds := make([]device.Kind, 0, len(s.ids))
	for kind := range s.ids {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Registry maps driver names to their signatures. The zero value is not
// usable; use New. A Registry is safe for concurrent use, though the expected
// lifecycle is registration at startup followed by read-only scanning.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]*Signature
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{drivers: map[string]*Signature{}}
}

func (r *Registry) signature(driver string) *Signature {
	sig, ok := r.drivers[driver]
	if !ok {
		sig = &Signature{ids: map[device.Kind]map[string]struct{}{}}
		r.drivers[driver] = sig
	}
	return sig
}

// AddDeviceIDs associates device identifiers of the given kind with a driver.
// IDs already registered for the driver and kind are merged in; duplicates
// are accepted idempotently.
func (r *Registry) AddDeviceIDs(driver string, kind device.Kind, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sig := r.signature(driver)
	set, ok := sig.ids[kind]
	if !ok {
		set = map[string]struct{}{}
		sig.ids[kind] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// AddBluetoothMatcher associates a Bluetooth match predicate with a driver,
// replacing any previously registered predicate.
func (r *Registry) AddBluetoothMatcher(driver string, matcher MatcherFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signature(driver).bluetoothMatcher = matcher
}

// Lookup returns the signature registered for a driver. It returns an error
// satisfying IsNotFound if the driver has no detection data.
func (r *Registry) Lookup(driver string) (*Signature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sig, ok := r.drivers[driver]
	if !ok {
		return nil, &driverNotFoundError{driver: driver}
	}
	return sig, nil
}

// Drivers returns the names of all registered drivers in sorted order, so
// that match iteration is deterministic within a process run.
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type driverNotFoundError struct {
	driver string
}

func (e *driverNotFoundError) Error() string {
	return fmt.Sprintf("no detection data for driver %q", e.driver)
}

// IsNotFound reports whether err indicates a driver with no detection data.
func IsNotFound(err error) bool {
	var dnf *driverNotFoundError
	return errors.As(err, &dnf)
}
