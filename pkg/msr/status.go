package msr

import "fmt"

// Status is the two-byte marker found at offsets 1-2 of a response.
type Status uint16

// Firmware-defined status markers.
const (
	StatusOK       Status = 0x1B79 // ESC 'y': communication test answered
	StatusPass     Status = 0x1B30 // ESC '0': self test passed
	StatusFail     Status = 0x1B41 // ESC 'A': self test failed
	StatusReadData Status = 0x1B73 // ESC 's': read data block follows
)

// statusOffset is where the marker starts; byte 0 is the report header.
const statusOffset = 1

// NewStatus creates a Status from its two bytes.
func NewStatus(b1, b2 byte) Status {
	return Status(uint16(b1)<<8 | uint16(b2))
}

// ParseStatus extracts the status marker of a response. It returns false when the
// response is too short to carry one.
func ParseStatus(resp []byte) (Status, bool) {
	if len(resp) < statusOffset+2 {
		return 0, false
	}
	return NewStatus(resp[statusOffset], resp[statusOffset+1]), true
}

// B1 returns the first marker byte.
func (s Status) B1() byte {
	return byte(s >> 8)
}

// B2 returns the second marker byte.
func (s Status) B2() byte {
	return byte(s)
}

// String returns the marker bytes and, for known markers, their meaning.
func (s Status) String() string {
	var desc string
	switch s {
	case StatusOK:
		desc = "ok"
	case StatusPass:
		desc = "pass"
	case StatusFail:
		desc = "fail"
	case StatusReadData:
		desc = "read data"
	default:
		desc = "unrecognized"
	}
	return fmt.Sprintf("[%02X %02X] %s", s.B1(), s.B2(), desc)
}
