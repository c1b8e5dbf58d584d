package validators

import (
	"context"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// voipPrefixes marks number ranges allocated to VoIP services. Keys are
// E.164 prefixes including the country code.
var voipPrefixes = []string{
	"+1500", // US personal communications
	"+1533",
	"+1544",
	"+1566",
	"+1577",
	"+1588",
	"+4470", // UK personal numbering
	"+3170", // NL personal numbering
	"+49700",
	"+33700",
}

// countryCallingCodes maps ISO country hints to calling codes for
// normalizing national-format numbers.
var countryCallingCodes = map[string]string{
	"US": "1",
	"CA": "1",
	"GB": "44",
	"DE": "49",
	"FR": "33",
	"NL": "31",
	"ES": "34",
	"IT": "39",
	"AU": "61",
	"JP": "81",
	"BR": "55",
	"IN": "91",
}

// PhoneValidator validates phone numbers against E.164 structure rules and
// the VoIP prefix table.
type PhoneValidator struct{}

// NewPhoneValidator creates the built-in phone validator.
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// ValidatePhone normalizes to E.164 and checks structure. A country hint
// lets national-format numbers through; without one, only full E.164 input
// is accepted.
func (v *PhoneValidator) ValidatePhone(ctx context.Context, value, countryHint string) (*domain.RawResult, error) {
	result := &domain.RawResult{
		Provider: "numbering-plan",
		Flags:    map[string]bool{},
	}

	normalized, reasons := normalizePhone(value, countryHint)
	if len(reasons) > 0 {
		result.ReasonCodes = reasons
		return result, nil
	}

	result.Valid = true
	result.Attributes = map[string]any{"e164": normalized}

	for _, prefix := range voipPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			result.Flags[domain.FlagVOIP] = true
			result.ReasonCodes = append(result.ReasonCodes, "voip_range")
			break
		}
	}
	return result, nil
}

// normalizePhone strips formatting and applies the country hint. E.164
// allows at most 15 digits; anything under 8 cannot route internationally.
func normalizePhone(value, countryHint string) (string, []string) {
	var digits strings.Builder
	international := false

	for i, r := range strings.TrimSpace(value) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
			international = true
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// Formatting characters.
		default:
			return "", []string{"illegal_character"}
		}
	}

	n := digits.String()
	if !international {
		code, ok := countryCallingCodes[strings.ToUpper(countryHint)]
		if !ok {
			return "", []string{"missing_country_code"}
		}
		// Drop the national trunk prefix before applying the calling code.
		n = code + strings.TrimPrefix(n, "0")
	}

	if len(n) < 8 {
		return "", []string{"too_short"}
	}
	if len(n) > 15 {
		return "", []string{"too_long"}
	}
	if n[0] == '0' {
		return "", []string{"invalid_country_code"}
	}
	return "+" + n, nil
}
