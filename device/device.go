// Package device describes peripherals reported by hardware enumeration.
package device

// Kind identifies the transport class a device was discovered on.
type Kind string

// The known device kinds.
const (
	// KindHID is for devices exposing a HID interface.
	KindHID = Kind("hid")
	// KindSerial is for serial devices (com ports).
	KindSerial = Kind("serial")
	// KindCustom is for devices with a manufacturer specific driver.
	KindCustom = Kind("custom")
	// KindBluetooth keys Bluetooth match predicates in driver signatures.
	KindBluetooth = Kind("bluetooth")
)

// Well-known Info keys populated by enumerators.
const (
	InfoUSBID            = "usbID"
	InfoDevicePath       = "devicePath"
	InfoPort             = "port"
	InfoBluetoothName    = "bluetoothName"
	InfoBluetoothAddress = "bluetoothAddress"
)

// Record represents a single detected device. Records are constructed fresh
// on every enumeration and never mutated afterwards.
type Record struct {
	// Kind is the transport class of the device.
	Kind Kind
	// ID is the identifier of the device, either a USB vendor/product
	// string (e.g. "VID_0904&PID_3001") or a Bluetooth device name.
	ID string
	// Port is the communication path a driver can use to reach the device.
	Port string
	// Info holds all additional attributes known about the device.
	Info map[string]interface{}
}

// BluetoothName returns the Bluetooth device name, if the record has one.
func (r Record) BluetoothName() (string, bool) {
	name, ok := r.Info[InfoBluetoothName].(string)
	return name, ok
}

// BluetoothAddress returns the numeric Bluetooth address, if the record has
// one.
func (r Record) BluetoothAddress() (uint64, bool) {
	switch addr := r.Info[InfoBluetoothAddress].(type) {
	case uint64:
		return addr, true
	case int64:
		if addr < 0 {
			return 0, false
		}
		return uint64(addr), true
	case int:
		if addr < 0 {
			return 0, false
		}
		return uint64(addr), true
	default:
		return 0, false
	}
}

// USBID returns the USB vendor/product identifier, if the record has one.
// Some enumerated ports, like virtual com ports, carry no USB identifier.
func (r Record) USBID() (string, bool) {
	id, ok := r.Info[InfoUSBID].(string)
	return id, ok
}
