package msr

import (
	"context"
	"fmt"
)

// DeviceID selects a reader by its USB vendor and product IDs.
type DeviceID struct {
	Vendor  uint16
	Product uint16
}

// DefaultDeviceID is the ID the MSR605 family enumerates with.
var DefaultDeviceID = DeviceID{Vendor: 0x0801, Product: 0x0003}

func (d DeviceID) String() string {
	return fmt.Sprintf("%04x:%04x", d.Vendor, d.Product)
}

// Bus abstracts device discovery on the host.
type Bus interface {
	// Open opens the first device matching id. It returns a nil Handle and a nil
	// error when no such device is attached.
	Open(id DeviceID) (Handle, error)
}

// Handle abstracts an opened reader.
//
// Implementations report a read that did not complete in time, either because the
// device timed out or because ctx expired, with an error wrapping
// ErrTransportTimeout.
type Handle interface {
	// DetachKernelDriver releases the interface from any kernel driver bound to it.
	DetachKernelDriver() error
	// SetConfiguration selects the active configuration and claims the interface.
	SetConfiguration() error
	// ResetDevice performs a USB port reset.
	ResetDevice() error
	// Control performs an OUT control transfer and returns the bytes written.
	Control(setup ControlSetup, data []byte) (int, error)
	// Read performs one bulk-in transfer into buf.
	Read(ctx context.Context, buf []byte) (int, error)
	// Close releases the interface and the device.
	Close() error
}
