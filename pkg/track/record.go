package track

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gregLibert/magworks/pkg/emv"
)

// NotAvailable marks an optional field the stripe does not carry.
const NotAvailable = "N/A"

// Record is the decoded content of a track-1 stripe. Optional fields hold
// NotAvailable when absent.
type Record struct {
	FormatCode  byte
	PAN         string
	CountryCode string
	Name        string
	Expiration  string // MM/YY
	ServiceCode string

	// Discretionary is the issuer data between the service code and the end sentinel.
	Discretionary string

	// Raw is the track text between the sentinels, empty when no end sentinel was found.
	Raw string
}

// HasCountryCode reports whether the PAN announced a country code.
func (r *Record) HasCountryCode() bool {
	return r.CountryCode != NotAvailable
}

// HasExpiration reports whether the stripe carries an expiration date.
func (r *Record) HasExpiration() bool {
	return r.Expiration != NotAvailable
}

// LuhnValid reports whether the PAN passes the ISO/IEC 7812 mod-10 check.
func (r *Record) LuhnValid() bool {
	if len(r.PAN) < 2 {
		return false
	}

	sum := 0
	double := false
	for i := len(r.PAN) - 1; i >= 0; i-- {
		c := r.PAN[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// Describe renders the record as the field report shown after a swipe.
func (r *Record) Describe() string {
	lines := []string{
		fmt.Sprintf("Format Code:\t\t%c", r.FormatCode),
		fmt.Sprintf("Primary Account #:\t%s", r.PAN),
		fmt.Sprintf("Country Code:\t\t%s", r.CountryCode),
		fmt.Sprintf("Card Holder:\t\t%s", r.Name),
		fmt.Sprintf("Expiration Date:\t%s", r.Expiration),
		fmt.Sprintf("Service Code:\t\t%s", r.ServiceCode),
	}
	if !r.LuhnValid() {
		lines = append(lines, "Warning:\t\tPAN fails the Luhn check")
	}
	return strings.Join(lines, "\n")
}

// EMV maps the record onto the EMV data elements for the same fields.
// The expiration date becomes the last day of the stripe's month.
func (r *Record) EMV() *emv.CardholderData {
	cd := &emv.CardholderData{
		PAN:            r.PAN,
		CardholderName: r.Name,
	}

	if r.HasExpiration() {
		if date, ok := expirationDate(r.Expiration); ok {
			cd.ExpirationDate = date
		}
	}
	if r.HasCountryCode() {
		cd.IssuerCountryCode = "0" + r.CountryCode
	}
	if r.ServiceCode != NotAvailable {
		cd.ServiceCode = "0" + r.ServiceCode
	}
	if r.Raw != "" {
		cd.Track1 = []byte(r.Raw)
	}

	return cd
}

// expirationDate converts "MM/YY" to the EMV YYMMDD form.
func expirationDate(exp string) (string, bool) {
	mm, yy, found := strings.Cut(exp, "/")
	if !found {
		return "", false
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	year, err := strconv.Atoi(yy)
	if err != nil || year < 0 || year > 99 {
		return "", false
	}

	// Day 0 of the following month is the last day of this one.
	last := time.Date(2000+year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)
	return last.Format("060102"), true
}
