// Package signatures carries the detection data for the braille display
// drivers shipped with this module. Third party drivers register their own
// data directly against a registry.
package signatures

import (
	"strings"

	"github.com/brailleworks/brlscan/device"
	"github.com/brailleworks/brlscan/registry"
)

// RegisterBuiltins installs the shipped driver detection data into reg.
func RegisterBuiltins(reg *registry.Registry) {
	registerBaum(reg)
	registerBrailleNote(reg)
	registerBrailliantB(reg)
	registerHandyTech(reg)
	registerSuperBrl(reg)
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func registerBaum(reg *registry.Registry) {
	reg.AddDeviceIDs("baum", device.KindHID,
		"VID_0904&PID_3001", // RefreshaBraille 18
		"VID_0904&PID_6101", // VarioUltra 20
		"VID_0904&PID_6103", // VarioUltra 32
		"VID_0904&PID_6102", // VarioUltra 40
		"VID_0904&PID_4004", // Pronto! 18 V3
		"VID_0904&PID_4005", // Pronto! 40 V3
		"VID_0904&PID_4007", // Pronto! 18 V4
		"VID_0904&PID_4008", // Pronto! 40 V4
		"VID_0904&PID_6001", // SuperVario2 40
		"VID_0904&PID_6002", // SuperVario2 24
		"VID_0904&PID_6003", // SuperVario2 32
		"VID_0904&PID_6004", // SuperVario2 64
		"VID_0904&PID_6005", // SuperVario2 80
		"VID_0904&PID_6006", // Brailliant2 40
		"VID_0904&PID_6007", // Brailliant2 24
		"VID_0904&PID_6008", // Brailliant2 32
		"VID_0904&PID_6009", // Brailliant2 64
		"VID_0904&PID_600A", // Brailliant2 80
		"VID_0904&PID_6201", // Vario 340
		"VID_0483&PID_A1D3", // Orbit Reader 20
	)
	reg.AddDeviceIDs("baum", device.KindSerial,
		"VID_0403&PID_FE70", // Vario 40
		"VID_0403&PID_FE71", // PocketVario
		"VID_0403&PID_FE72", // SuperVario/Brailliant 40
		"VID_0403&PID_FE73", // SuperVario/Brailliant 32
		"VID_0403&PID_FE74", // SuperVario/Brailliant 64
		"VID_0403&PID_FE75", // SuperVario/Brailliant 80
		"VID_0904&PID_2001", // EcoVario 24
		"VID_0904&PID_2002", // EcoVario 40
		"VID_0904&PID_2007", // VarioConnect/BrailleConnect 40
		"VID_0904&PID_2008", // VarioConnect/BrailleConnect 32
		"VID_0904&PID_2009", // VarioConnect/BrailleConnect 24
		"VID_0904&PID_2010", // VarioConnect/BrailleConnect 64
		"VID_0904&PID_2011", // VarioConnect/BrailleConnect 80
		"VID_0904&PID_2014", // EcoVario 32
		"VID_0904&PID_2015", // EcoVario 64
		"VID_0904&PID_2016", // EcoVario 80
		"VID_0904&PID_3000", // RefreshaBraille 18
	)
	reg.AddBluetoothMatcher("baum", func(rec device.Record) bool {
		return hasAnyPrefix(rec.ID,
			"Baum SuperVario",
			"Baum PocketVario",
			"Baum SVario",
			"HWG Brailliant",
			"Refreshabraille",
			"VarioConnect",
			"BrailleConnect",
			"Pronto!",
			"VarioUltra",
			"Orbit Reader 20",
		)
	})
}

func registerBrailleNote(reg *registry.Registry) {
	reg.AddDeviceIDs("brailleNote", device.KindSerial,
		"VID_1C71&PID_C004", // Apex
	)
	// Apex units ship with addresses in a fixed range but can also be
	// renamed, so match on either.
	reg.AddBluetoothMatcher("brailleNote", func(rec device.Record) bool {
		if addr, ok := rec.BluetoothAddress(); ok &&
			addr >= 0x0025EC000000 && addr <= 0x0025EC01869F {
			return true
		}
		return strings.HasPrefix(rec.ID, "Braillenote")
	})
}

func registerBrailliantB(reg *registry.Registry) {
	reg.AddDeviceIDs("brailliantB", device.KindHID, "VID_1C71&PID_C006")
	reg.AddDeviceIDs("brailliantB", device.KindCustom, "VID_1C71&PID_C005")
	reg.AddBluetoothMatcher("brailliantB", func(rec device.Record) bool {
		return strings.HasPrefix(rec.ID, "Brailliant B") || rec.ID == "Brailliant 80"
	})
}

func registerHandyTech(reg *registry.Registry) {
	reg.AddDeviceIDs("handyTech", device.KindSerial,
		"VID_0403&PID_6001", // FTDI chip
		"VID_0921&PID_1200", // GoHubs chip
	)
	// Newer Handy Tech displays have a native HID processor.
	reg.AddDeviceIDs("handyTech", device.KindHID,
		"VID_1FE4&PID_0054", // Active Braille
		"VID_1FE4&PID_0081", // Basic Braille 16
		"VID_1FE4&PID_0082", // Basic Braille 20
		"VID_1FE4&PID_0083", // Basic Braille 32
		"VID_1FE4&PID_0084", // Basic Braille 40
		"VID_1FE4&PID_008A", // Basic Braille 48
		"VID_1FE4&PID_0086", // Basic Braille 64
		"VID_1FE4&PID_0087", // Basic Braille 80
		"VID_1FE4&PID_008B", // Basic Braille 160
		"VID_1FE4&PID_0061", // Actilino
		"VID_1FE4&PID_0064", // Active Star 40
	)
	// Some older displays use a HID converter in front of an internal
	// serial interface.
	reg.AddDeviceIDs("handyTech", device.KindHID,
		"VID_1FE4&PID_0003", // USB-HID adapter
		"VID_1FE4&PID_0074", // Braille Star 40
		"VID_1FE4&PID_0044", // Easy Braille
	)
	reg.AddBluetoothMatcher("handyTech", func(rec device.Record) bool {
		return hasAnyPrefix(rec.ID,
			"Actilino AL",
			"Active Braille AB",
			"Active Star AS",
			"Basic Braille BB",
			"Braille Star BS",
			"Braille Wave BW",
			"Easy Braille EBR",
		)
	})
}

func registerSuperBrl(reg *registry.Registry) {
	reg.AddDeviceIDs("superBrl", device.KindSerial,
		"VID_10C4&PID_EA60", // SuperBraille 3.2
	)
}
