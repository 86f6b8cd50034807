package emv

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gregLibert/magworks/pkg/tlv"
	"github.com/moov-io/bertlv"
)

func TestParseCardholderData(t *testing.T) {
	tests := []struct {
		name    string
		rawData []byte
		want    *CardholderData
		wantErr bool
	}{
		{
			name: "Record Template",
			rawData: tlv.Hex(
				"70 1C",                      // Record Template
				"5A 08 4111111111111111",     // PAN
				"5F20 09 444F452C204A4F484E", // "DOE, JOHN"
				"5F24 03 251231",             // Expiration
			),
			want: &CardholderData{
				PAN:            "4111111111111111",
				CardholderName: "DOE, JOHN",
				ExpirationDate: "251231",
			},
		},
		{
			name:    "Empty Data",
			rawData: []byte{},
			wantErr: true,
		},
		{
			name: "Direct TLV with country and service code",
			rawData: tlv.Hex(
				"5F28 02 0250", // Issuer Country Code
				"5F30 02 0201", // Service Code
			),
			want: &CardholderData{
				IssuerCountryCode: "0250",
				ServiceCode:       "0201",
			},
		},
		{
			name:    "Invalid TLV",
			rawData: []byte{0x70, 0x05, 0x5A}, // Incomplete
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCardholderData(tt.rawData)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCardholderData() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ParseCardholderData() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCardholderData_EncodeRoundTrip(t *testing.T) {
	want := &CardholderData{
		PAN:               "590123456789012",
		CardholderName:    "DOE, JANE",
		ExpirationDate:    "270228",
		IssuerCountryCode: "0250",
		ServiceCode:       "0101",
		Track1:            []byte("B590123456789012^250DOE/JANE^2702101"),
	}

	raw, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if raw[0] != 0x70 {
		t.Errorf("Encode() should start with the Record Template tag, got %02X", raw[0])
	}

	got, err := ParseCardholderData(raw)
	if err != nil {
		t.Fatalf("ParseCardholderData() error = %v", err)
	}

	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty(), cmpopts.IgnoreFields(CardholderData{}, "Unknown")); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCardholderData_EncodeEmpty(t *testing.T) {
	if _, err := (&CardholderData{}).Encode(); err == nil {
		t.Error("Expected error for empty cardholder data, got nil")
	}
}

func TestCardholderData_Describe(t *testing.T) {
	cd := &CardholderData{
		PAN:            "4111111111111111",
		CardholderName: "DOE, JOHN",
		ExpirationDate: "251231",
		Track1:         []byte("B41"),
		Unknown:        []bertlv.TLV{{Tag: "9F1F", Value: []byte{0x31}}},
	}

	actualLines := strings.Split(cd.Describe(), "\n")

	expectedLines := []string{
		"=== EMV RECORD TEMPLATE ===",
		"    - Record.PAN (5A): 4111111111111111",
		"    - Record.CardholderName (5F20): DOE, JOHN",
		"    - Record.ExpirationDate (5F24): 251231",
		`    - Record.Track1 (56): 423431 ("B41")`,
		"    - Record.Unknown Tag 9F1F: 31",
	}

	if diff := cmp.Diff(expectedLines, actualLines); diff != "" {
		t.Errorf("Report mismatch (-want +got):\n%s", diff)
	}
}

func TestIsRecordTemplate(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"Record Template", tlv.Hex("70 03 5F2801"), true},
		{"Read response", tlv.Hex("C2 1B 73"), false},
		{"Direct TLV", tlv.Hex("5A 01 41"), false},
		{"Empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecordTemplate(tt.data); got != tt.want {
				t.Errorf("IsRecordTemplate(%X) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}
