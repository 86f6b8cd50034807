package msr

import (
	"fmt"

	"github.com/gregLibert/magworks/pkg/bits"
)

// bmRequestType layout according to USB 2.0, section 9.3:
//
// Bit 8:    Direction (0=host-to-device, 1=device-to-host).
// Bits 7-6: Type (0=standard, 1=class, 2=vendor).
// Bits 5-1: Recipient (0=device, 1=interface, 2=endpoint, 3=other).

// Direction is the data phase direction of a control transfer.
type Direction uint8

const (
	DirectionOut Direction = 0 // host to device
	DirectionIn  Direction = 1 // device to host
)

// RequestKind is the type field of bmRequestType.
type RequestKind uint8

const (
	KindStandard RequestKind = 0
	KindClass    RequestKind = 1
	KindVendor   RequestKind = 2
)

// Recipient is the recipient field of bmRequestType.
type Recipient uint8

const (
	RecipientDevice    Recipient = 0
	RecipientInterface Recipient = 1
	RecipientEndpoint  Recipient = 2
	RecipientOther     Recipient = 3
)

// RequestType is a parsed bmRequestType byte.
type RequestType struct {
	Raw       byte
	Direction Direction
	Kind      RequestKind
	Recipient Recipient
}

// NewRequestType encodes a bmRequestType from its fields.
func NewRequestType(dir Direction, kind RequestKind, rcpt Recipient) RequestType {
	var raw byte
	if dir == DirectionIn {
		raw = bits.Set(raw, 8)
	}
	raw = bits.SetRange(raw, 7, 6, byte(kind))
	raw = bits.SetRange(raw, 5, 1, byte(rcpt))
	return ParseRequestType(raw)
}

// ParseRequestType decodes a raw bmRequestType byte.
func ParseRequestType(raw byte) RequestType {
	return RequestType{
		Raw:       raw,
		Direction: direction(raw),
		Kind:      RequestKind(bits.GetRange(raw, 7, 6)),
		Recipient: Recipient(bits.GetRange(raw, 5, 1)),
	}
}

func direction(raw byte) Direction {
	if bits.IsSet(raw, 8) {
		return DirectionIn
	}
	return DirectionOut
}

func (r RequestType) String() string {
	dir := "OUT"
	if r.Direction == DirectionIn {
		dir = "IN"
	}
	kinds := map[RequestKind]string{KindStandard: "standard", KindClass: "class", KindVendor: "vendor"}
	kind, ok := kinds[r.Kind]
	if !ok {
		kind = "reserved"
	}
	rcpts := map[Recipient]string{
		RecipientDevice:    "device",
		RecipientInterface: "interface",
		RecipientEndpoint:  "endpoint",
		RecipientOther:     "other",
	}
	rcpt, ok := rcpts[r.Recipient]
	if !ok {
		rcpt = "reserved"
	}
	return fmt.Sprintf("0x%02X (%s, %s, %s)", r.Raw, dir, kind, rcpt)
}

// HID class request and report type used to deliver commands.
const (
	hidSetReport     uint8 = 0x09
	hidReportFeature uint8 = 0x03
)

// ControlSetup is the setup stage of a control transfer.
type ControlSetup struct {
	RequestType RequestType
	Request     uint8
	Value       uint16
	Index       uint16
}

// CommandSetup is the HID SET_REPORT every command frame is written with:
// feature report 0 on interface 0.
var CommandSetup = ControlSetup{
	RequestType: NewRequestType(DirectionOut, KindClass, RecipientInterface),
	Request:     hidSetReport,
	Value:       uint16(hidReportFeature) << 8,
	Index:       0,
}

// EndpointAddress is a USB endpoint address: bit 8 is the direction, bits 4-1 the
// endpoint number.
type EndpointAddress uint8

// DefaultReadEndpoint is the bulk-in endpoint responses arrive on.
const DefaultReadEndpoint EndpointAddress = 0x81

// Number returns the endpoint number without the direction bit.
func (e EndpointAddress) Number() int {
	return int(bits.GetRange(byte(e), 4, 1))
}

// IsIn reports whether the endpoint carries device-to-host data.
func (e EndpointAddress) IsIn() bool {
	return direction(byte(e)) == DirectionIn
}

func (e EndpointAddress) String() string {
	return fmt.Sprintf("0x%02X", uint8(e))
}
