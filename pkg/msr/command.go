package msr

import (
	"bytes"
	"fmt"
)

// FramingMarker is the report header prepended to every command: first and last
// report of a message carrying two payload bytes.
const FramingMarker byte = 0xC2

// Escape prefixes every command opcode and every status marker.
const Escape byte = 0x1B

// CommandCode identifies a reader command.
type CommandCode uint8

// Reader commands.
const (
	CmdReset CommandCode = iota
	CmdTestComm
	CmdTestSensor
	CmdTestRAM
	CmdReadISO
)

// opcodes must match the reader firmware byte for byte.
var opcodes = [...][]byte{
	CmdReset:      {Escape, 'a'},
	CmdTestComm:   {Escape, 'e'},
	CmdTestSensor: {Escape, 0x86},
	CmdTestRAM:    {Escape, 0x87},
	CmdReadISO:    {Escape, 'r'},
}

var commandNames = [...]string{
	CmdReset:      "RESET",
	CmdTestComm:   "TEST_COMM",
	CmdTestSensor: "TEST_SENSOR",
	CmdTestRAM:    "TEST_RAM",
	CmdReadISO:    "READ_ISO",
}

// Valid reports whether c is a known command.
func (c CommandCode) Valid() bool {
	return int(c) < len(opcodes)
}

// Opcode returns a copy of the command's opcode bytes.
func (c CommandCode) Opcode() []byte {
	if !c.Valid() {
		return nil
	}
	return bytes.Clone(opcodes[c])
}

// Frame encodes the command as it goes on the wire: the framing marker followed
// by the opcode.
func (c CommandCode) Frame() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, uint8(c))
	}
	frame := make([]byte, 0, 1+len(opcodes[c]))
	frame = append(frame, FramingMarker)
	return append(frame, opcodes[c]...), nil
}

// String returns the command name.
func (c CommandCode) String() string {
	if !c.Valid() {
		return fmt.Sprintf("CommandCode(%d)", uint8(c))
	}
	return commandNames[c]
}
