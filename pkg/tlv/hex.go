package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// hexSeparators are stripped from hex input so dumps such as "1B 79", "1b:79"
// or multi-line captures parse as-is.
var hexSeparators = strings.NewReplacer(" ", "", ":", "", "\n", "", "\r", "", "\t", "")

// ParseHex decodes a series of hex strings into a byte slice, ignoring
// whitespace and ':' separators.
func ParseHex(parts ...string) ([]byte, error) {
	cleanHex := hexSeparators.Replace(strings.Join(parts, ""))

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input %q: %w", cleanHex, err)
	}
	return data, nil
}

// Hex is like ParseHex but panics on invalid input. It is meant for fixtures.
func Hex(parts ...string) []byte {
	data, err := ParseHex(parts...)
	if err != nil {
		panic(err.Error())
	}
	return data
}
