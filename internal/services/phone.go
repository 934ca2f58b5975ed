package services

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used to parse numbers written without a leading '+'.
var DefaultRegion = "CL"

// NormalizePhone parses raw and returns it in E.164 form (e.g. "+56999999999").
// Numbers that cannot be parsed or are not a possible length for their region
// yield ErrInvalidPhone.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPhone
	}
	// WhatsApp webhooks send bare digits with the country code.
	if !strings.HasPrefix(raw, "+") && len(raw) > 10 && isDigits(raw) {
		raw = "+" + raw
	}
	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return "", ErrInvalidPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// MaskPhone hides the middle digits of a number for logs: "+56*****9999".
func MaskPhone(phone string) string {
	if len(phone) <= 7 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:3] + strings.Repeat("*", len(phone)-7) + phone[len(phone)-4:]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
