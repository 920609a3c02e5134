package mccdaq

import (
	"fmt"

	"github.com/google/gousb"
)

// MCCVID is the Measurement Computing USB vendor ID
const MCCVID = 0x09db

// USBDevice is an MCC board seen on the USB bus
type USBDevice struct {
	Bus     int `json:"bus"`
	Address int `json:"address"`
	Product int `json:"product"`
}

func (d USBDevice) String() string {
	return fmt.Sprintf("bus %03d device %03d: ID %04x:%04x", d.Bus, d.Address, MCCVID, d.Product)
}

// ProbeUSB lists MCC boards attached over USB without opening them.  It
// works when libuldaq cannot see a board, e.g. for missing udev rules.
func ProbeUSB() ([]USBDevice, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()
	var out []USBDevice
	// the opener never opens, so the device list is always empty
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == gousb.ID(MCCVID) {
			out = append(out, USBDevice{Bus: desc.Bus, Address: desc.Address, Product: int(desc.Product)})
		}
		return false
	})
	return out, err
}
