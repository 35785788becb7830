package sanitizer

import (
	"strings"

	"peerpair/pkg/locale"

	"github.com/nyaruka/phonenumbers"
)

var (
	PayerRegion      = locale.Payer.Code
	payerCountryCode = locale.Payer.CallingCode
)

// NormalizePhone returns the E.164 form of a Kenyan number, or "" when the
// input is not a valid number for the region.
func NormalizePhone(phone string) string {
	num, ok := parseKenyan(phone)
	if !ok {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// NormalizeMSISDN returns the gateway form of a Kenyan mobile number:
// country code and subscriber number, digits only, e.g. 254712345678.
// Anything that is not a Kenyan mobile number yields "".
func NormalizeMSISDN(phone string) string {
	num, ok := parseKenyan(phone)
	if !ok {
		return ""
	}
	switch phonenumbers.GetNumberType(num) {
	case phonenumbers.MOBILE, phonenumbers.FIXED_LINE_OR_MOBILE:
	default:
		return ""
	}
	return strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+")
}

func parseKenyan(phone string) (*phonenumbers.PhoneNumber, bool) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, false
	}

	// 2547XXXXXXXX without a plus is the gateway's own format
	if strings.HasPrefix(phone, payerCountryCode) && len(phone) == 12 && isDigits(phone) {
		phone = "+" + phone
	}

	num, err := phonenumbers.Parse(phone, PayerRegion)
	if err != nil {
		return nil, false
	}
	if !phonenumbers.IsValidNumberForRegion(num, PayerRegion) {
		return nil, false
	}
	return num, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
