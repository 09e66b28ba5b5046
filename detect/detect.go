// Package detect implements automatic detection of braille displays and
// similar peripherals. Attached USB, HID, serial and Bluetooth backed devices
// are matched against registered driver signatures, and a background scan
// scheduler hands the first successful match to a driver activation callback.
//
// The package does not talk to hardware itself; it relies on a
// HardwareEnumerator to list attached devices and an Activator to claim them.
package detect

import (
	"context"

	"github.com/brailleworks/brlscan/device"
)

// PortInfo describes one enumerated port or device node as reported by a
// HardwareEnumerator. Fields that do not apply to an entry are left at their
// zero values; in particular some ports carry no USB identifier.
type PortInfo struct {
	// USBID is the vendor/product identifier, e.g. "VID_0904&PID_3001".
	USBID string
	// DevicePath is the system device path.
	DevicePath string
	// Port is the communication port name, for serial entries.
	Port string
	// BluetoothName is the remote device name for Bluetooth backed serial
	// ports.
	BluetoothName string
	// BluetoothAddress is the remote device address for Bluetooth backed
	// serial ports.
	BluetoothAddress uint64
	// Extra holds any additional attributes the enumerator knows about.
	Extra map[string]interface{}
}

func (p PortInfo) deviceInfo() map[string]interface{} {
	info := make(map[string]interface{}, len(p.Extra)+5)
	for k, v := range p.Extra {
		info[k] = v
	}
	if p.USBID != "" {
		info[device.InfoUSBID] = p.USBID
	}
	if p.DevicePath != "" {
		info[device.InfoDevicePath] = p.DevicePath
	}
	if p.Port != "" {
		info[device.InfoPort] = p.Port
	}
	if p.BluetoothName != "" {
		info[device.InfoBluetoothName] = p.BluetoothName
	}
	if p.BluetoothAddress != 0 {
		info[device.InfoBluetoothAddress] = p.BluetoothAddress
	}
	return info
}

// A HardwareEnumerator lists the devices currently attached to the system.
// Implementations wrap platform enumeration primitives; calls may block for
// non-trivial time and should honor the context.
type HardwareEnumerator interface {
	// USBDevices lists devices bound to a manufacturer specific driver.
	USBDevices(ctx context.Context) ([]PortInfo, error)
	// HIDDevices lists HID devices.
	HIDDevices(ctx context.Context) ([]PortInfo, error)
	// SerialPorts lists com ports, including Bluetooth backed ones.
	SerialPorts(ctx context.Context) ([]PortInfo, error)
}

// An Activator attempts to claim a detected device for a driver. A true
// return means the device was claimed and scanning should stop; false means
// the next candidate should be tried.
type Activator interface {
	Activate(ctx context.Context, driver string, rec device.Record) bool
}

// ActivatorFunc is a function implementation of Activator.
type ActivatorFunc func(ctx context.Context, driver string, rec device.Record) bool

// Activate calls the underlying function.
func (f ActivatorFunc) Activate(ctx context.Context, driver string, rec device.Record) bool {
	return f(ctx, driver, rec)
}
