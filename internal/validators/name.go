package validators

import (
	"context"
	"strings"
	"unicode"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// NameValidator applies structural checks to personal names. It carries no
// scoring weight of its own; its verdict feeds rules and audit output.
type NameValidator struct{}

// NewNameValidator creates the built-in name validator.
func NewNameValidator() *NameValidator {
	return &NameValidator{}
}

// ValidateName checks length, character classes, and that at least two name
// parts are present.
func (v *NameValidator) ValidateName(ctx context.Context, value string) (*domain.RawResult, error) {
	result := &domain.RawResult{
		Provider: "syntax",
		Flags:    map[string]bool{},
	}

	name := strings.Join(strings.Fields(value), " ")
	var reasons []string

	switch {
	case len(name) < 2:
		reasons = append(reasons, "too_short")
	case len(name) > 200:
		reasons = append(reasons, "too_long")
	}

	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsSpace(r) || r == '-' || r == '\'' || r == '.' {
			continue
		}
		if unicode.IsDigit(r) {
			reasons = append(reasons, "numeric_characters")
		} else {
			reasons = append(reasons, "illegal_character")
		}
		break
	}

	parts := strings.Fields(name)
	result.Attributes = map[string]any{"parts": len(parts)}
	if len(reasons) == 0 && len(parts) < 2 {
		reasons = append(reasons, "single_name_part")
		result.PartialSignal = true
	}

	if len(reasons) > 0 {
		result.ReasonCodes = reasons
		return result, nil
	}

	result.Valid = true
	return result, nil
}
