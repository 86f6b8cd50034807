package msr

import "errors"

// Claim errors.
var (
	// ErrDeviceNotFound indicates no attached device matches the vendor and product IDs.
	ErrDeviceNotFound = errors.New("reader not found")

	// ErrDriverDetach indicates a kernel driver holds the interface and could not be detached.
	ErrDriverDetach = errors.New("unable to detach kernel driver")

	// ErrConfiguration indicates the device could not be configured or reset.
	ErrConfiguration = errors.New("failed to set reader configuration")
)

// Protocol errors.
var (
	// ErrCommunication indicates a command frame was not fully written.
	ErrCommunication = errors.New("command write failed")

	// ErrConnectionLost indicates the communication test did not answer ok.
	ErrConnectionLost = errors.New("lost connection to the reader")

	// ErrUnrecognizedResponse indicates a self test answered with an unknown marker.
	ErrUnrecognizedResponse = errors.New("unrecognized response")

	// ErrTransportTimeout indicates a read got no answer within its timeout.
	ErrTransportTimeout = errors.New("transfer timeout")

	// ErrReadFailed indicates a card read failed for a reason other than a timeout.
	ErrReadFailed = errors.New("read operation failed")

	// ErrNoTrackData indicates a read answered without track-1 data, usually a bad swipe.
	ErrNoTrackData = errors.New("no track 1 data")

	// ErrUnknownCommand indicates a command code outside the opcode table.
	ErrUnknownCommand = errors.New("unknown command")
)

// ErrSessionTerminated is returned by every operation after a fatal error or Close.
var ErrSessionTerminated = errors.New("session terminated")
