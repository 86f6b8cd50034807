package usbhost

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/gousb"
	"github.com/gregLibert/magworks/pkg/msr"
	"github.com/karalabe/hid"
)

// Device describes an attached reader as seen by one enumeration backend.
type Device struct {
	Source       string // "hid" or "usb"
	Path         string
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       string
	Interface    int
}

func (d Device) String() string {
	name := d.Product
	if name == "" {
		name = "(no product string)"
	}
	return fmt.Sprintf("%-4s %04x:%04x  %-24s %s", d.Source, d.VendorID, d.ProductID, name, d.Path)
}

type enumerator interface {
	// Devices returns the attached devices matching the enumerator's IDs.
	Devices() ([]Device, error)
	// Close releases any resources held by the enumerator.
	Close()
}

type hidEnumerator struct {
	id msr.DeviceID
}

func newHidEnumerator(id msr.DeviceID) enumerator {
	return &hidEnumerator{id: id}
}

func (e *hidEnumerator) Devices() ([]Device, error) {
	if !hid.Supported() {
		return nil, errors.New("hidapi: unsupported platform")
	}

	infos, err := hid.Enumerate(e.id.Vendor, 0)
	if err != nil {
		return nil, fmt.Errorf("hidapi: %w", err)
	}

	var out []Device
	for _, info := range infos {
		if info.ProductID != e.id.Product {
			continue
		}
		out = append(out, Device{
			Source:       "hid",
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			Manufacturer: info.Manufacturer,
			Product:      info.Product,
			Serial:       info.Serial,
			Interface:    info.Interface,
		})
	}
	return out, nil
}

func (e *hidEnumerator) Close() {}

type usbEnumerator struct {
	id  msr.DeviceID
	ctx *gousb.Context
}

func newUSBEnumerator(id msr.DeviceID) enumerator {
	return &usbEnumerator{id: id, ctx: gousb.NewContext()}
}

// Devices walks the descriptors without opening anything, so string descriptors
// are not available.
func (e *usbEnumerator) Devices() ([]Device, error) {
	var out []Device
	_, err := e.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if uint16(desc.Vendor) == e.id.Vendor && uint16(desc.Product) == e.id.Product {
			out = append(out, Device{
				Source:    "usb",
				Path:      fmt.Sprintf("bus %03d device %03d", desc.Bus, desc.Address),
				VendorID:  uint16(desc.Vendor),
				ProductID: uint16(desc.Product),
			})
		}
		return false
	})
	if err != nil {
		return out, fmt.Errorf("libusb: %w", err)
	}
	return out, nil
}

func (e *usbEnumerator) Close() {
	e.ctx.Close()
}

// List returns the readers matching id through every backend that works on this
// host. It fails only when all backends fail.
func List(id msr.DeviceID, logger *slog.Logger) ([]Device, error) {
	return list([]enumerator{newHidEnumerator(id), newUSBEnumerator(id)}, logger)
}

func list(enums []enumerator, logger *slog.Logger) ([]Device, error) {
	var (
		out  []Device
		errs []error
	)
	for _, e := range enums {
		devs, err := e.Devices()
		e.Close()
		if err != nil {
			if logger != nil {
				logger.Warn("device enumeration failed", "component", "usbhost", "error", err)
			}
			errs = append(errs, err)
		}
		out = append(out, devs...)
	}
	if len(errs) == len(enums) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
