package detect

import (
	"context"
	"strings"
	"testing"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/brailleworks/brlscan/device"
	"github.com/brailleworks/brlscan/registry"
)

// fakeEnumerator returns fixed port lists.
type fakeEnumerator struct {
	usb    []PortInfo
	hid    []PortInfo
	serial []PortInfo
	err    error
}

func (e *fakeEnumerator) USBDevices(ctx context.Context) ([]PortInfo, error) {
	return e.usb, e.err
}

func (e *fakeEnumerator) HIDDevices(ctx context.Context) ([]PortInfo, error) {
	return e.hid, e.err
}

func (e *fakeEnumerator) SerialPorts(ctx context.Context) ([]PortInfo, error) {
	return e.serial, e.err
}

func TestUSBCandidateOrdering(t *testing.T) {
	reg := registry.New()
	reg.AddDeviceIDs("brailliantB", device.KindCustom, "VID_1C71&PID_C005")
	reg.AddDeviceIDs("brailliantB", device.KindHID, "VID_1C71&PID_C006")
	reg.AddDeviceIDs("baum", device.KindSerial, "VID_0403&PID_FE70")

	enum := &fakeEnumerator{
		serial: []PortInfo{
			{USBID: "VID_0403&PID_FE70", Port: "COM3"},
			{Port: "COM7"}, // no usb id, never matched
		},
		hid: []PortInfo{
			{USBID: "VID_1C71&PID_C006", DevicePath: `\\?\hid#1`},
			{DevicePath: `\\?\hid#2`}, // no usb id, never matched
		},
		usb: []PortInfo{{USBID: "VID_1C71&PID_C005", DevicePath: `\\?\usb#1`}},
	}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))

	candidates, err := engine.ConnectedUSBCandidates(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(candidates), test.ShouldEqual, 3)
	// Custom driver-path devices come first, then HID, then serial.
	test.That(t, candidates[0].Driver, test.ShouldEqual, "brailliantB")
	test.That(t, candidates[0].Device.Kind, test.ShouldEqual, device.KindCustom)
	test.That(t, candidates[0].Device.Port, test.ShouldEqual, `\\?\usb#1`)
	test.That(t, candidates[1].Driver, test.ShouldEqual, "brailliantB")
	test.That(t, candidates[1].Device.Kind, test.ShouldEqual, device.KindHID)
	test.That(t, candidates[2].Driver, test.ShouldEqual, "baum")
	test.That(t, candidates[2].Device.Kind, test.ShouldEqual, device.KindSerial)
	test.That(t, candidates[2].Device.Port, test.ShouldEqual, "COM3")
}

func TestUSBCandidateMembership(t *testing.T) {
	reg := registry.New()
	reg.AddDeviceIDs("baum", device.KindHID, "VID_0904&PID_3001")

	enum := &fakeEnumerator{hid: []PortInfo{
		{USBID: "VID_0904&PID_3001", DevicePath: `\\?\hid#1`},
		{USBID: "VID_FFFF&PID_0000", DevicePath: `\\?\hid#2`},
	}}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))

	candidates, err := engine.ConnectedUSBCandidates(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(candidates), test.ShouldEqual, 1)
	test.That(t, candidates[0].Device.ID, test.ShouldEqual, "VID_0904&PID_3001")

	// A registered serial id must not match a HID record.
	reg.AddDeviceIDs("baum", device.KindSerial, "VID_FFFF&PID_0000")
	candidates, err = engine.ConnectedUSBCandidates(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(candidates), test.ShouldEqual, 1)
}

func TestSameDeviceMatchesMultipleDrivers(t *testing.T) {
	reg := registry.New()
	reg.AddDeviceIDs("zed", device.KindHID, "VID_0403&PID_6001")
	reg.AddDeviceIDs("alpha", device.KindHID, "VID_0403&PID_6001")

	enum := &fakeEnumerator{hid: []PortInfo{{USBID: "VID_0403&PID_6001", DevicePath: `\\?\hid#1`}}}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))

	candidates, err := engine.ConnectedUSBCandidates(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(candidates), test.ShouldEqual, 2)
	// Driver order is deterministic (sorted by name).
	test.That(t, candidates[0].Driver, test.ShouldEqual, "alpha")
	test.That(t, candidates[1].Driver, test.ShouldEqual, "zed")
}

func TestBluetoothCandidates(t *testing.T) {
	reg := registry.New()
	reg.AddBluetoothMatcher("brailliantB", func(rec device.Record) bool {
		name, ok := rec.BluetoothName()
		return ok && strings.HasPrefix(name, "Brailliant B")
	})
	reg.AddDeviceIDs("baum", device.KindSerial, "VID_0403&PID_FE70") // no matcher

	enum := &fakeEnumerator{serial: []PortInfo{
		{BluetoothName: "Brailliant B80", Port: "COM4", BluetoothAddress: 0x0025EC000001},
		{BluetoothName: "Some Headset", Port: "COM5"},
		{Port: "COM6"}, // not bluetooth backed
	}}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))

	candidates, err := engine.PossibleBluetoothCandidates(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(candidates), test.ShouldEqual, 1)
	test.That(t, candidates[0].Driver, test.ShouldEqual, "brailliantB")
	test.That(t, candidates[0].Device.ID, test.ShouldEqual, "Brailliant B80")
	test.That(t, candidates[0].Device.Kind, test.ShouldEqual, device.KindSerial)
	test.That(t, candidates[0].Device.Port, test.ShouldEqual, "COM4")
	addr, ok := candidates[0].Device.BluetoothAddress()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, addr, test.ShouldEqual, uint64(0x0025EC000001))
}

func TestBluetoothMatcherPanicIsNoMatch(t *testing.T) {
	reg := registry.New()
	reg.AddBluetoothMatcher("broken", func(rec device.Record) bool {
		panic("matcher bug")
	})
	reg.AddBluetoothMatcher("fine", func(rec device.Record) bool { return true })

	enum := &fakeEnumerator{serial: []PortInfo{{BluetoothName: "Brailliant B80", Port: "COM4"}}}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))

	candidates, err := engine.PossibleBluetoothCandidates(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(candidates), test.ShouldEqual, 1)
	test.That(t, candidates[0].Driver, test.ShouldEqual, "fine")
}

func TestQueriesForUnknownDriver(t *testing.T) {
	reg := registry.New()
	reg.AddDeviceIDs("baum", device.KindHID, "VID_0904&PID_3001")
	engine := NewEngine(reg, &fakeEnumerator{}, golog.NewTestLogger(t))
	ctx := context.Background()

	_, err := engine.ConnectedUSBDevicesForDriver(ctx, "albatross")
	test.That(t, registry.IsNotFound(err), test.ShouldBeTrue)

	_, err = engine.PossibleBluetoothDevicesForDriver(ctx, "albatross")
	test.That(t, registry.IsNotFound(err), test.ShouldBeTrue)

	_, err = engine.HasAnyPossibleDevices(ctx, "albatross")
	test.That(t, registry.IsNotFound(err), test.ShouldBeTrue)
}

func TestConnectedUSBDevicesForDriver(t *testing.T) {
	reg := registry.New()
	reg.AddDeviceIDs("baum", device.KindHID, "VID_0904&PID_3001")
	reg.AddDeviceIDs("handyTech", device.KindHID, "VID_1FE4&PID_0054")

	enum := &fakeEnumerator{hid: []PortInfo{
		{USBID: "VID_0904&PID_3001", DevicePath: `\\?\hid#1`},
		{USBID: "VID_1FE4&PID_0054", DevicePath: `\\?\hid#2`},
	}}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))

	recs, err := engine.ConnectedUSBDevicesForDriver(context.Background(), "baum")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(recs), test.ShouldEqual, 1)
	test.That(t, recs[0].ID, test.ShouldEqual, "VID_0904&PID_3001")
}

func TestPossibleBluetoothDevicesForDriverWithoutMatcher(t *testing.T) {
	reg := registry.New()
	reg.AddDeviceIDs("superBrl", device.KindSerial, "VID_10C4&PID_EA60")

	enum := &fakeEnumerator{serial: []PortInfo{{BluetoothName: "SuperBraille", Port: "COM4"}}}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))

	recs, err := engine.PossibleBluetoothDevicesForDriver(context.Background(), "superBrl")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, recs, test.ShouldBeEmpty)
}

func TestHasAnyPossibleDevices(t *testing.T) {
	reg := registry.New()
	reg.AddDeviceIDs("baum", device.KindHID, "VID_0904&PID_3001")
	reg.AddBluetoothMatcher("baum", func(rec device.Record) bool {
		name, _ := rec.BluetoothName()
		return name == "Baum SuperVario"
	})
	ctx := context.Background()

	enum := &fakeEnumerator{}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))
	has, err := engine.HasAnyPossibleDevices(ctx, "baum")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, has, test.ShouldBeFalse)

	enum.hid = []PortInfo{{USBID: "VID_0904&PID_3001", DevicePath: `\\?\hid#1`}}
	has, err = engine.HasAnyPossibleDevices(ctx, "baum")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, has, test.ShouldBeTrue)

	enum.hid = nil
	enum.serial = []PortInfo{{BluetoothName: "Baum SuperVario", Port: "COM4"}}
	has, err = engine.HasAnyPossibleDevices(ctx, "baum")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, has, test.ShouldBeTrue)
}

func TestEnumerationFailurePropagates(t *testing.T) {
	reg := registry.New()
	reg.AddDeviceIDs("baum", device.KindHID, "VID_0904&PID_3001")

	enum := &fakeEnumerator{err: errors.New("enumeration blew up")}
	engine := NewEngine(reg, enum, golog.NewTestLogger(t))

	_, err := engine.ConnectedUSBCandidates(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "enumeration blew up")
}
