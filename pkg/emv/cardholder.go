package emv

import (
	"fmt"
	"strings"

	"github.com/gregLibert/magworks/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// RECORD TEMPLATE for magnetic-stripe cardholder data.
//
// EMV defines data elements for every field a track-1 stripe carries. Exporting a
// swiped card with those tags lets EMV tooling consume stripe data unchanged:
//
//	56    Track 1 Data                 ans
//	5A    Application PAN              cn (F padded)
//	5F20  Cardholder Name              ans 2-26
//	5F24  Application Expiration Date  n6 YYMMDD
//	5F28  Issuer Country Code          n3 (ISO 3166-1 numeric)
//	5F30  Service Code                 n3
//
// The elements are wrapped in a Record Template (tag '70'), as a READ RECORD
// response would carry them.

// RecordTemplateTag is the EMV Record Template tag wrapping the cardholder data.
const RecordTemplateTag = "70"

// CardholderData holds the EMV representation of a decoded track.
type CardholderData struct {
	PAN               string `tlv:"5A" fmt:"cn"`
	CardholderName    string `tlv:"5F20" fmt:"ascii"`
	ExpirationDate    string `tlv:"5F24" fmt:"n"`
	IssuerCountryCode string `tlv:"5F28" fmt:"n"`
	ServiceCode       string `tlv:"5F30" fmt:"n"`
	Track1            []byte `tlv:"56" fmt:"ascii"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// IsRecordTemplate reports whether data starts with the Record Template tag.
func IsRecordTemplate(data []byte) bool {
	return len(data) > 0 && fmt.Sprintf("%02X", data[0]) == RecordTemplateTag
}

// Encode serializes the data as a BER-TLV Record Template.
func (c *CardholderData) Encode() ([]byte, error) {
	packets, err := tlv.MarshalToPackets(c)
	if err != nil {
		return nil, fmt.Errorf("failed to map structure: %w", err)
	}
	if len(packets) == 0 {
		return nil, fmt.Errorf("empty cardholder data cannot be encoded")
	}

	return bertlv.Encode([]bertlv.TLV{bertlv.NewComposite(RecordTemplateTag, packets...)})
}

// ParseCardholderData interprets raw BER-TLV as cardholder data. The Record
// Template wrapper is optional.
func ParseCardholderData(data []byte) (*CardholderData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data cannot be parsed")
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}

	var processingPackets []bertlv.TLV

	if len(packets) > 0 && strings.EqualFold(packets[0].Tag, RecordTemplateTag) {
		processingPackets = packets[0].TLVs
	} else {
		processingPackets = packets
	}

	cd := &CardholderData{}
	if err := tlv.UnmarshalFromPackets(processingPackets, cd); err != nil {
		return nil, fmt.Errorf("failed to map structure: %w", err)
	}

	return cd, nil
}

// Describe generates a detailed, standardized report of the template content.
func (c *CardholderData) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== EMV RECORD TEMPLATE ===")

	tlv.WriteStructFields(&sb, "Record", c)

	return strings.TrimRight(sb.String(), "\n")
}
