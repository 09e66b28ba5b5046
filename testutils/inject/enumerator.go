// Package inject provides injectable collaborator fakes for testing device
// detection.
package inject

import (
	"context"

	"github.com/brailleworks/brlscan/detect"
	"github.com/brailleworks/brlscan/device"
	"github.com/brailleworks/brlscan/hotplug"
)

// HardwareEnumerator is an injected hardware enumerator.
type HardwareEnumerator struct {
	detect.HardwareEnumerator
	USBDevicesFunc  func(ctx context.Context) ([]detect.PortInfo, error)
	HIDDevicesFunc  func(ctx context.Context) ([]detect.PortInfo, error)
	SerialPortsFunc func(ctx context.Context) ([]detect.PortInfo, error)
}

// USBDevices calls the injected USBDevicesFunc or the real version.
func (e *HardwareEnumerator) USBDevices(ctx context.Context) ([]detect.PortInfo, error) {
	if e.USBDevicesFunc == nil {
		return e.HardwareEnumerator.USBDevices(ctx)
	}
	return e.USBDevicesFunc(ctx)
}

// HIDDevices calls the injected HIDDevicesFunc or the real version.
func (e *HardwareEnumerator) HIDDevices(ctx context.Context) ([]detect.PortInfo, error) {
	if e.HIDDevicesFunc == nil {
		return e.HardwareEnumerator.HIDDevices(ctx)
	}
	return e.HIDDevicesFunc(ctx)
}

// SerialPorts calls the injected SerialPortsFunc or the real version.
func (e *HardwareEnumerator) SerialPorts(ctx context.Context) ([]detect.PortInfo, error) {
	if e.SerialPortsFunc == nil {
		return e.HardwareEnumerator.SerialPorts(ctx)
	}
	return e.SerialPortsFunc(ctx)
}

// Activator is an injected driver activator.
type Activator struct {
	detect.Activator
	ActivateFunc func(ctx context.Context, driver string, rec device.Record) bool
}

// Activate calls the injected ActivateFunc or the real version.
func (a *Activator) Activate(ctx context.Context, driver string, rec device.Record) bool {
	if a.ActivateFunc == nil {
		return a.Activator.Activate(ctx, driver, rec)
	}
	return a.ActivateFunc(ctx, driver, rec)
}

// Notifier is an injected hotplug notifier.
type Notifier struct {
	hotplug.Notifier
	RegisterFunc   func(cb func()) hotplug.Registration
	UnregisterFunc func(reg hotplug.Registration) error
}

// Register calls the injected RegisterFunc or the real version.
func (n *Notifier) Register(cb func()) hotplug.Registration {
	if n.RegisterFunc == nil {
		return n.Notifier.Register(cb)
	}
	return n.RegisterFunc(cb)
}

// Unregister calls the injected UnregisterFunc or the real version.
func (n *Notifier) Unregister(reg hotplug.Registration) error {
	if n.UnregisterFunc == nil {
		return n.Notifier.Unregister(reg)
	}
	return n.UnregisterFunc(reg)
}
