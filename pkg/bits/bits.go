// Package bits provides helpers for the bit fields found in USB setup packets,
// endpoint addresses and packed BCD digits. Bits are numbered 1 (LSB) to 8 (MSB),
// the way the USB and EMV documents number them.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// GetRange extracts the value from a range of bits (e.g., bits 4 to 3).
// Example: GetRange(0b00001100, 4, 3) returns 3 (0b11)
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}

// SetRange writes v into bits high..low of b and returns the result.
// Bits of v that do not fit in the range are dropped.
func SetRange(b byte, high, low uint, v byte) byte {
	if high < low || high > 8 || low < 1 {
		return b
	}

	width := high - low + 1
	mask := byte((1<<width)-1) << (low - 1)

	return (b &^ mask) | ((v << (low - 1)) & mask)
}

// Set returns b with bit n set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// Nibbles splits b into its high (bits 8-5) and low (bits 4-1) halves.
func Nibbles(b byte) (high, low byte) {
	return GetRange(b, 8, 5), GetRange(b, 4, 1)
}
