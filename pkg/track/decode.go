// Package track decodes ISO 7811/7813 track-1 (format B) data as returned by the
// reader's read command.
//
// The decoder works on the full response buffer. The reader prefixes the track with
// its own framing, so track fields sit at fixed offsets:
//
//	offset 0     report header
//	offset 1-4   ESC 's' ESC 0x01 (read data block, track 1)
//	offset 5     start sentinel '%'
//	offset 6     format code ('B' for financial cards)
//	offset 7...  PAN ^ [country code] NAME ^ YYMM service code discretionary ? ...
//
// Decode only reads its input and never retains it.
package track

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// Track-1 layout constants.
const (
	StartSentinelOffset = 5
	FormatCodeOffset    = 6
	PANOffset           = 7

	StartSentinel  byte = '%'
	FieldSeparator byte = '^'
	EndSentinel    byte = '?'

	// countryCodePrefix is the reserved issuer identifier prefix announcing a
	// 3-digit country code after the PAN.
	countryCodePrefix = "59"

	countryCodeLength = 3
	expirationLength  = 4
	serviceCodeLength = 3
)

// ErrTruncatedData is returned when the buffer ends before a field delimiter or a
// fixed-width field.
var ErrTruncatedData = errors.New("truncated track data")

// decoder walks a response buffer field by field.
type decoder struct {
	buf []byte
	pos int
}

// field returns the bytes up to the next field separator and moves past it.
func (d *decoder) field(name string) ([]byte, error) {
	if d.pos > len(d.buf) {
		return nil, fmt.Errorf("%w: %s starts past end of buffer", ErrTruncatedData, name)
	}
	idx := bytes.IndexByte(d.buf[d.pos:], FieldSeparator)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no field separator after %s at offset %d", ErrTruncatedData, name, d.pos)
	}
	value := d.buf[d.pos : d.pos+idx]
	d.pos += idx + 1
	return value, nil
}

// fixed returns the next n bytes and moves past them.
func (d *decoder) fixed(name string, n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, buffer has %d",
			ErrTruncatedData, name, n, d.pos, len(d.buf))
	}
	value := d.buf[d.pos : d.pos+n]
	d.pos += n
	return value, nil
}

// peek reports whether the byte at the cursor equals b.
func (d *decoder) peek(b byte) bool {
	return d.pos < len(d.buf) && d.buf[d.pos] == b
}

// Decode extracts the track-1 fields from a response buffer. The buffer must come
// from a read the device reported as successful.
func Decode(raw []byte) (*Record, error) {
	if len(raw) <= FormatCodeOffset {
		return nil, fmt.Errorf("%w: format code at offset %d, buffer has %d bytes",
			ErrTruncatedData, FormatCodeOffset, len(raw))
	}

	rec := &Record{
		FormatCode:  raw[FormatCodeOffset],
		CountryCode: NotAvailable,
		Expiration:  NotAvailable,
		ServiceCode: NotAvailable,
	}

	d := &decoder{buf: raw, pos: PANOffset}

	pan, err := d.field("primary account number")
	if err != nil {
		return nil, err
	}
	rec.PAN = string(pan)

	if strings.HasPrefix(rec.PAN, countryCodePrefix) {
		cc, err := d.fixed("country code", countryCodeLength)
		if err != nil {
			return nil, err
		}
		rec.CountryCode = string(cc)
	}

	name, err := d.field("cardholder name")
	if err != nil {
		return nil, err
	}
	rec.Name = normalizeName(name)

	if d.peek(FieldSeparator) {
		d.pos++
	} else {
		exp, err := d.fixed("expiration date", expirationLength)
		if err != nil {
			return nil, err
		}
		// The stripe stores YYMM.
		rec.Expiration = string(exp[2:4]) + "/" + string(exp[0:2])
		rec.decodeTrailer(d)
	}

	if end := bytes.IndexByte(raw[StartSentinelOffset:], EndSentinel); end > 0 {
		rec.Raw = string(raw[FormatCodeOffset : StartSentinelOffset+end])
	}

	return rec, nil
}

// decodeTrailer captures the service code and discretionary data that follow the
// expiration date. Both are optional, a short or unterminated trailer is ignored.
func (r *Record) decodeTrailer(d *decoder) {
	sc, err := d.fixed("service code", serviceCodeLength)
	if err != nil || !isDigits(sc) {
		return
	}
	r.ServiceCode = string(sc)

	if end := bytes.IndexByte(d.buf[d.pos:], EndSentinel); end >= 0 {
		r.Discretionary = string(d.buf[d.pos : d.pos+end])
	}
}

// normalizeName turns the SURNAME/GIVEN stripe convention into "SURNAME, GIVEN".
// Issuer padding is kept as stored on the stripe.
func normalizeName(name []byte) string {
	return strings.ReplaceAll(string(name), "/", ", ")
}

func isDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}
