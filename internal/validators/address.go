package validators

import (
	"context"
	"regexp"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	poBoxPattern = regexp.MustCompile(`(?i)^\s*(p\.?\s*o\.?\s*box|post\s*office\s*box|postfach|boite\s*postale)\b`)

	// Postal code shapes per country. Countries not listed get a permissive
	// check.
	postalPatterns = map[string]*regexp.Regexp{
		"US": regexp.MustCompile(`^\d{5}(-\d{4})?$`),
		"CA": regexp.MustCompile(`^[A-Za-z]\d[A-Za-z] ?\d[A-Za-z]\d$`),
		"GB": regexp.MustCompile(`^[A-Za-z]{1,2}\d[A-Za-z\d]? ?\d[A-Za-z]{2}$`),
		"DE": regexp.MustCompile(`^\d{5}$`),
		"FR": regexp.MustCompile(`^\d{5}$`),
		"NL": regexp.MustCompile(`^\d{4} ?[A-Za-z]{2}$`),
		"AU": regexp.MustCompile(`^\d{4}$`),
	}

	genericPostal = regexp.MustCompile(`^[A-Za-z\d][A-Za-z\d\- ]{1,9}$`)
)

// AddressValidator checks address structure and postal code shape. It is a
// heuristic provider: it cannot confirm deliverability, so its
// non-deliverable verdicts are weighted down by scoring policy.
type AddressValidator struct{}

// NewAddressValidator creates the built-in address validator.
func NewAddressValidator() *AddressValidator {
	return &AddressValidator{}
}

// ValidateAddress checks the structured address. PO boxes are flagged, not
// rejected; whether they are acceptable is a rule decision.
func (v *AddressValidator) ValidateAddress(ctx context.Context, addr *domain.Address) (*domain.RawResult, error) {
	result := &domain.RawResult{
		Provider: "heuristic",
		Flags:    map[string]bool{},
	}
	if addr == nil {
		result.ReasonCodes = append(result.ReasonCodes, "missing_address")
		return result, nil
	}

	country := strings.ToUpper(strings.TrimSpace(addr.Country))
	result.Attributes = map[string]any{"country": country}

	var reasons []string
	if strings.TrimSpace(addr.Line1) == "" {
		reasons = append(reasons, "missing_line1")
	}
	if strings.TrimSpace(addr.City) == "" {
		reasons = append(reasons, "missing_city")
	}
	if country == "" {
		reasons = append(reasons, "missing_country")
	}

	postal := strings.TrimSpace(addr.PostalCode)
	switch {
	case postal == "":
		reasons = append(reasons, "missing_postal_code")
	case !postalShapeValid(country, postal):
		reasons = append(reasons, "postal_code_format")
	}

	if poBoxPattern.MatchString(addr.Line1) {
		result.Flags[domain.FlagPOBox] = true
		result.ReasonCodes = append(result.ReasonCodes, "po_box")
	}

	if len(reasons) > 0 {
		result.ReasonCodes = append(result.ReasonCodes, reasons...)
		// A single missing component with the rest intact is a weak
		// positive.
		if len(reasons) == 1 {
			result.PartialSignal = true
		}
		return result, nil
	}

	// Street lines with no house number are frequently undeliverable; as a
	// heuristic verdict this carries a reduced weight downstream.
	if !strings.ContainsAny(addr.Line1, "0123456789") && !result.Flags[domain.FlagPOBox] {
		result.Flags[domain.FlagNonDeliverable] = true
		result.ReasonCodes = append(result.ReasonCodes, "no_street_number")
	}

	result.Valid = true
	return result, nil
}

func postalShapeValid(country, postal string) bool {
	if p, ok := postalPatterns[country]; ok {
		return p.MatchString(postal)
	}
	return genericPostal.MatchString(postal)
}
