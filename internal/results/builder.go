// Package results normalizes raw, provider-specific validator output into
// the uniform FieldValidationResult shape.
package results

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Builder turns raw validator output into normalized results. It owns the
// confidence model; the field-local risk score is delegated to the scoring
// weight table but stays independent of the global score.
type Builder struct {
	calc *scoring.Calculator
}

// NewBuilder creates a result builder.
func NewBuilder(calc *scoring.Calculator) *Builder {
	return &Builder{calc: calc}
}

// Build normalizes one raw result for a field. elapsed is the validator
// call duration.
func (b *Builder) Build(field string, raw *domain.RawResult, elapsed time.Duration) *domain.FieldValidationResult {
	result := &domain.FieldValidationResult{
		Field:       field,
		Valid:       raw.Valid,
		Confidence:  confidence(raw),
		ReasonCodes: raw.ReasonCodes,
		RiskScore:   b.calc.FieldRiskScore(field, raw),
		ProcessMs:   elapsed.Milliseconds(),
		Provider:    raw.Provider,
		Flags:       raw.Flags,
		Attributes:  raw.Attributes,
	}
	return result
}

// confidence scores how much to trust the verdict, on a 0-100 scale.
func confidence(raw *domain.RawResult) int {
	c := 50

	if raw.Valid {
		c += 30
	}
	if !raw.Valid && raw.PartialSignal {
		c += 10
	}
	if len(raw.ReasonCodes) == 0 {
		c += 10
	}
	if raw.Trusted {
		c += 10
	}
	if raw.Flag(domain.FlagDisposable) || raw.Flag(domain.FlagFraud) {
		c -= 20
	}

	return scoring.Clamp(c)
}
