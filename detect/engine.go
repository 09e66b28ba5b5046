package detect

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/brailleworks/brlscan/device"
	"github.com/brailleworks/brlscan/registry"
)

// A Candidate pairs a driver with a device the driver may be able to operate.
type Candidate struct {
	Driver string
	Device device.Record
}

// Engine cross-references enumerated devices against a signature registry,
// producing ordered candidate matches. It performs no activation itself.
type Engine struct {
	reg    *registry.Registry
	enum   HardwareEnumerator
	logger golog.Logger
}

// NewEngine returns an engine matching devices listed by enum against reg.
func NewEngine(reg *registry.Registry, enum HardwareEnumerator, logger golog.Logger) *Engine {
	if logger == nil {
		logger = golog.Global()
	}
	return &Engine{reg: reg, enum: enum, logger: logger}
}

// usbRecords enumerates USB attached devices in match order: custom
// driver-path devices first, then HID devices, then serial ports. HID and
// serial entries without a USB identifier are skipped.
func (e *Engine) usbRecords(ctx context.Context) ([]device.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	custom, err := e.enum.USBDevices(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing usb devices")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hid, err := e.enum.HIDDevices(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing hid devices")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	serial, err := e.enum.SerialPorts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing serial ports")
	}
	recs := make([]device.Record, 0, len(custom)+len(hid)+len(serial))
	for _, p := range custom {
		recs = append(recs, device.Record{
			Kind: device.KindCustom, ID: p.USBID, Port: p.DevicePath, Info: p.deviceInfo(),
		})
	}
	for _, p := range hid {
		if p.USBID == "" {
			continue
		}
		recs = append(recs, device.Record{
			Kind: device.KindHID, ID: p.USBID, Port: p.DevicePath, Info: p.deviceInfo(),
		})
	}
	for _, p := range serial {
		if p.USBID == "" {
			continue
		}
		recs = append(recs, device.Record{
			Kind: device.KindSerial, ID: p.USBID, Port: p.Port, Info: p.deviceInfo(),
		})
	}
	return recs, nil
}

// bluetoothRecords converts enumerated serial ports into records for the
// ports backed by a Bluetooth device. The Bluetooth device name serves as the
// record identifier.
func bluetoothRecords(ports []PortInfo) []device.Record {
	var recs []device.Record
	for _, p := range ports {
		if p.BluetoothName == "" {
			continue
		}
		recs = append(recs, device.Record{
			Kind: device.KindSerial, ID: p.BluetoothName, Port: p.Port, Info: p.deviceInfo(),
		})
	}
	return recs
}

// ConnectedUSBCandidates matches all currently attached USB devices against
// every registered driver. Device order follows usbRecords; drivers are
// walked in sorted name order so results are deterministic.
func (e *Engine) ConnectedUSBCandidates(ctx context.Context) ([]Candidate, error) {
	recs, err := e.usbRecords(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []Candidate
	for _, rec := range recs {
		for _, driver := range e.reg.Drivers() {
			sig, err := e.reg.Lookup(driver)
			if err != nil {
				continue
			}
			if sig.HasID(rec.Kind, rec.ID) {
				candidates = append(candidates, Candidate{Driver: driver, Device: rec})
			}
		}
	}
	return candidates, nil
}

// PossibleBluetoothCandidates matches Bluetooth backed serial ports against
// every driver with a registered Bluetooth predicate.
func (e *Engine) PossibleBluetoothCandidates(ctx context.Context) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ports, err := e.enum.SerialPorts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing serial ports")
	}
	var candidates []Candidate
	for _, rec := range bluetoothRecords(ports) {
		for _, driver := range e.reg.Drivers() {
			sig, err := e.reg.Lookup(driver)
			if err != nil {
				continue
			}
			matcher := sig.BluetoothMatcher()
			if matcher == nil {
				continue
			}
			if e.safeMatch(driver, matcher, rec) {
				candidates = append(candidates, Candidate{Driver: driver, Device: rec})
			}
		}
	}
	return candidates, nil
}

// safeMatch runs a Bluetooth predicate, treating a panicking predicate as a
// non-match.
func (e *Engine) safeMatch(driver string, matcher registry.MatcherFunc, rec device.Record) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("bluetooth matcher panicked", "driver", driver, "device", rec.ID, "error", r)
			matched = false
		}
	}()
	return matcher(rec)
}

// ConnectedUSBDevicesForDriver returns the currently attached USB devices
// associated with the given driver. It fails if the driver has no detection
// data registered.
func (e *Engine) ConnectedUSBDevicesForDriver(ctx context.Context, driver string) ([]device.Record, error) {
	sig, err := e.reg.Lookup(driver)
	if err != nil {
		return nil, err
	}
	recs, err := e.usbRecords(ctx)
	if err != nil {
		return nil, err
	}
	var out []device.Record
	for _, rec := range recs {
		if sig.HasID(rec.Kind, rec.ID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// PossibleBluetoothDevicesForDriver returns Bluetooth backed serial ports
// that the given driver's Bluetooth predicate accepts. It fails if the driver
// has no detection data registered; a driver without a predicate matches
// nothing.
func (e *Engine) PossibleBluetoothDevicesForDriver(ctx context.Context, driver string) ([]device.Record, error) {
	sig, err := e.reg.Lookup(driver)
	if err != nil {
		return nil, err
	}
	matcher := sig.BluetoothMatcher()
	if matcher == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ports, err := e.enum.SerialPorts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing serial ports")
	}
	var out []device.Record
	for _, rec := range bluetoothRecords(ports) {
		if e.safeMatch(driver, matcher, rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// HasAnyPossibleDevices reports whether any attached or possible device is
// associated with the given driver, on either the USB or Bluetooth side.
func (e *Engine) HasAnyPossibleDevices(ctx context.Context, driver string) (bool, error) {
	usb, err := e.ConnectedUSBDevicesForDriver(ctx, driver)
	if err != nil {
		return false, err
	}
	if len(usb) != 0 {
		return true, nil
	}
	bt, err := e.PossibleBluetoothDevicesForDriver(ctx, driver)
	if err != nil {
		return false, err
	}
	return len(bt) != 0, nil
}
