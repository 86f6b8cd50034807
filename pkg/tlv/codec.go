// Package tlv maps BER-TLV (Basic Encoding Rules - Tag-Length-Value) data to and
// from Go structures using struct tags.
//
// A field takes part in the mapping when it carries a `tlv:"<hex tag>"` tag. The
// optional `fmt` tag selects how string fields are converted:
//
//	ascii  value bytes are the string itself (EMV "an"/"ans")
//	n      digits packed two per byte, left-padded with 0 (EMV "n")
//	cn     digits packed two per byte, right-padded with F (EMV "cn")
//	(none) value bytes rendered as upper-case hex
//
// []byte fields always hold the raw value, and a []bertlv.TLV field tagged
// `tlv:",unknown"` collects tags no field claimed. Constructed tags are decoded by
// the caller, which passes their children to UnmarshalFromPackets.
package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/gregLibert/magworks/pkg/bits"
	"github.com/moov-io/bertlv"
)

// UnmarshalFromPackets maps a slice of pre-decoded bertlv.TLV objects to a target struct.
// When a tag occurs more than once, the last occurrence wins.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct")
	}
	v = v.Elem()
	t := v.Type()

	consumedIndices := make(map[int]bool)

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag, format, ok := fieldTag(t.Field(i))
		if !ok {
			continue
		}

		for idx, packet := range packets {
			if strings.ToUpper(packet.Tag) == tag {
				if err := decodeToValue(packet, field, format); err != nil {
					return fmt.Errorf("tag %s: %w", tag, err)
				}
				consumedIndices[idx] = true
			}
		}
	}

	return handleUnknownFields(v, t, packets, consumedIndices)
}

// MarshalToPackets converts the tagged fields of a struct into bertlv.TLV objects,
// in field order. Zero-valued fields are omitted and unknown packets held by the
// struct are appended last.
func MarshalToPackets(source interface{}) ([]bertlv.TLV, error) {
	v := reflect.ValueOf(source)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("source must not be a nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("source must be a struct, got %s", v.Kind())
	}
	t := v.Type()

	var packets []bertlv.TLV
	for i := 0; i < v.NumField(); i++ {
		tag, format, ok := fieldTag(t.Field(i))
		if !ok {
			continue
		}

		value, err := encodeField(format, v.Field(i))
		if err != nil {
			return nil, fmt.Errorf("tag %s: %w", tag, err)
		}
		if len(value) > 0 {
			packets = append(packets, bertlv.NewTag(tag, value))
		}
	}

	if unknown, found := findUnknownField(v, t); found && !unknown.IsNil() {
		packets = append(packets, unknown.Interface().([]bertlv.TLV)...)
	}

	return packets, nil
}

// fieldTag returns the upper-case hex tag and format of a struct field, or
// ok=false when the field does not take part in the mapping.
func fieldTag(f reflect.StructField) (tag, format string, ok bool) {
	tagConfig := f.Tag.Get("tlv")
	if tagConfig == "" || tagConfig == ",unknown" || f.Name == "Unknown" {
		return "", "", false
	}
	return strings.ToUpper(strings.Split(tagConfig, ",")[0]), f.Tag.Get("fmt"), true
}

// decodeToValue stores a primitive packet in a string or []byte field.
func decodeToValue(packet bertlv.TLV, field reflect.Value, format string) error {
	switch {
	case isByteSlice(field):
		field.SetBytes(packet.Value)
		return nil
	case field.Kind() == reflect.String:
		s, err := decodeString(packet.Value, format)
		if err != nil {
			return err
		}
		field.SetString(s)
		return nil
	}
	return fmt.Errorf("unsupported field kind %s", field.Kind())
}

// encodeField is the inverse of decodeToValue. It returns nil for zero-valued fields.
func encodeField(format string, field reflect.Value) ([]byte, error) {
	switch {
	case isByteSlice(field):
		return field.Bytes(), nil
	case field.Kind() == reflect.String:
		if field.Len() == 0 {
			return nil, nil
		}
		return encodeString(field.String(), format)
	}
	return nil, fmt.Errorf("unsupported field kind %s", field.Kind())
}

func decodeString(value []byte, format string) (string, error) {
	switch format {
	case "ascii":
		return string(value), nil
	case "n":
		return unpackDigits(value, false)
	case "cn":
		return unpackDigits(value, true)
	default:
		return strings.ToUpper(hex.EncodeToString(value)), nil
	}
}

func encodeString(s, format string) ([]byte, error) {
	switch format {
	case "ascii":
		return []byte(s), nil
	case "n":
		if len(s)%2 != 0 {
			s = "0" + s
		}
		return packDigits(s)
	case "cn":
		if len(s)%2 != 0 {
			s += "F"
		}
		return packDigits(s)
	default:
		return hex.DecodeString(s)
	}
}

// packDigits packs a string of decimal digits (and F padding) two per byte.
func packDigits(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && c != 'F' {
			return nil, fmt.Errorf("invalid digit %q in %q", c, s)
		}
	}
	return hex.DecodeString(s)
}

// unpackDigits renders packed BCD as decimal digits. Compressed numeric values
// may end with F padding nibbles, which are dropped.
func unpackDigits(value []byte, compressed bool) (string, error) {
	var sb strings.Builder
	padding := false
	for _, b := range value {
		high, low := bits.Nibbles(b)
		for _, n := range [2]byte{high, low} {
			switch {
			case n <= 9 && !padding:
				sb.WriteByte('0' + n)
			case n == 0xF && compressed:
				padding = true
			default:
				return "", fmt.Errorf("invalid BCD byte 0x%02X", b)
			}
		}
	}
	return sb.String(), nil
}

func handleUnknownFields(v reflect.Value, t reflect.Type, packets []bertlv.TLV, consumed map[int]bool) error {
	unknownField, found := findUnknownField(v, t)
	if !found {
		return nil
	}

	var leftovers []bertlv.TLV
	for idx, packet := range packets {
		if !consumed[idx] {
			leftovers = append(leftovers, packet)
		}
	}

	if len(leftovers) > 0 && unknownField.CanSet() {
		unknownField.Set(reflect.ValueOf(leftovers))
	}
	return nil
}

func findUnknownField(v reflect.Value, t reflect.Type) (reflect.Value, bool) {
	for i := 0; i < v.NumField(); i++ {
		tag := t.Field(i).Tag.Get("tlv")
		if tag == ",unknown" || t.Field(i).Name == "Unknown" {
			if v.Field(i).Type() == reflect.TypeOf([]bertlv.TLV{}) {
				return v.Field(i), true
			}
		}
	}
	return reflect.Value{}, false
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}
