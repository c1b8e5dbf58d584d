// Package scoring computes the aggregated risk score, level, and factor
// list from normalized field validation results.
package scoring

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Weight table for the additive risk model. Address-specific root causes
// (postal mismatch, out of bounds, geocode failed) substitute for the
// generic invalid penalty so one root cause is never counted twice.
const (
	WeightEmailInvalid      = 30
	WeightEmailDisposable   = 35
	WeightEmailRoleAccount  = 15
	WeightEmailFreeProvider = 10
	WeightEmailNoMX         = 20
	WeightEmailCatchAll     = 10

	WeightPhoneInvalid        = 30
	WeightPhoneUnreachable    = 25
	WeightPhoneVOIP           = 15
	WeightPhoneRecentlyPorted = 20

	WeightAddressPOBox          = 15
	WeightAddressNonDeliverable = 30
	WeightAddressInvalid        = 35
	WeightAddressPostalMismatch = 15
	WeightAddressOutOfBounds    = 10
	WeightAddressGeocodeFailed  = 10

	WeightIPVPN        = 20
	WeightIPProxy      = 25
	WeightIPTor        = 40
	WeightIPDatacenter = 15

	WeightDeviceBot = 50
)

// Calculator is a pure function from field results to a risk analysis. The
// only configuration is the heuristic-provider policy for non-deliverable
// addresses.
type Calculator struct {
	cfg domain.ScoringConfig
}

// NewCalculator creates a calculator with the given scoring configuration.
func NewCalculator(cfg domain.ScoringConfig) *Calculator {
	if cfg.NonDeliverableHeuristicWeight == 0 {
		cfg.NonDeliverableHeuristicWeight = 10
	}
	return &Calculator{cfg: cfg}
}

type penalty struct {
	weight int
	factor string
}

// Calculate produces the risk analysis for a set of field results. Factors
// are emitted in fixed field order (email, phone, address, ip, device);
// the ordering is consumed downstream as audit text.
func (c *Calculator) Calculate(results map[string]*domain.FieldValidationResult) domain.RiskAnalysis {
	var penalties []penalty

	if r := results[domain.FieldEmail]; r != nil {
		penalties = append(penalties, emailPenalties(r)...)
	}
	if r := results[domain.FieldPhone]; r != nil {
		penalties = append(penalties, phonePenalties(r)...)
	}
	if r := results[domain.FieldAddress]; r != nil {
		penalties = append(penalties, c.addressPenalties(r)...)
	}
	if r := results[domain.FieldIP]; r != nil {
		penalties = append(penalties, ipPenalties(r)...)
	}
	if r := results[domain.FieldDevice]; r != nil {
		penalties = append(penalties, devicePenalties(r)...)
	}

	score := 0
	factors := make([]string, 0, len(penalties))
	for _, p := range penalties {
		score += p.weight
		factors = append(factors, p.factor)
	}

	score = Clamp(score)
	return domain.RiskAnalysis{
		Score:   score,
		Level:   LevelForScore(score),
		Factors: factors,
	}
}

// FieldRiskScore computes the field-local risk contribution attached to a
// single result for observability. It applies the same weight table to one
// field in isolation and is independent of the global score.
func (c *Calculator) FieldRiskScore(field string, raw *domain.RawResult) int {
	r := &domain.FieldValidationResult{
		Field: field,
		Valid: raw.Valid,
		Flags: raw.Flags,
	}

	var penalties []penalty
	switch field {
	case domain.FieldEmail:
		penalties = emailPenalties(r)
	case domain.FieldPhone:
		penalties = phonePenalties(r)
	case domain.FieldAddress:
		r.Provider = raw.Provider
		penalties = c.addressPenalties(r)
	case domain.FieldIP:
		penalties = ipPenalties(r)
	case domain.FieldDevice:
		penalties = devicePenalties(r)
	}

	score := 0
	for _, p := range penalties {
		score += p.weight
	}
	return Clamp(score)
}

func emailPenalties(r *domain.FieldValidationResult) []penalty {
	var out []penalty
	if !r.Valid {
		out = append(out, penalty{WeightEmailInvalid, "Invalid email address"})
	}
	if r.Flag(domain.FlagDisposable) {
		out = append(out, penalty{WeightEmailDisposable, "Disposable email domain"})
	}
	if r.Flag(domain.FlagRoleAccount) {
		out = append(out, penalty{WeightEmailRoleAccount, "Role account email"})
	}
	if r.Flag(domain.FlagFreeProvider) {
		out = append(out, penalty{WeightEmailFreeProvider, "Free email provider"})
	}
	if r.Flag(domain.FlagNoMX) {
		out = append(out, penalty{WeightEmailNoMX, "Email domain has no MX records"})
	}
	if r.Flag(domain.FlagCatchAll) {
		out = append(out, penalty{WeightEmailCatchAll, "Catch-all email domain"})
	}
	return out
}

func phonePenalties(r *domain.FieldValidationResult) []penalty {
	var out []penalty
	if !r.Valid {
		out = append(out, penalty{WeightPhoneInvalid, "Invalid phone number"})
	}
	if r.Flag(domain.FlagUnreachable) {
		out = append(out, penalty{WeightPhoneUnreachable, "Phone number unreachable"})
	}
	if r.Flag(domain.FlagVOIP) {
		out = append(out, penalty{WeightPhoneVOIP, "VoIP phone number"})
	}
	if r.Flag(domain.FlagRecentlyPorted) {
		out = append(out, penalty{WeightPhoneRecentlyPorted, "Recently ported phone number"})
	}
	return out
}

func (c *Calculator) addressPenalties(r *domain.FieldValidationResult) []penalty {
	var out []penalty

	if r.Flag(domain.FlagPOBox) {
		out = append(out, penalty{WeightAddressPOBox, "PO box address"})
	}

	if r.Flag(domain.FlagNonDeliverable) {
		weight := WeightAddressNonDeliverable
		if c.cfg.IsHeuristicProvider(r.Provider) {
			weight = c.cfg.NonDeliverableHeuristicWeight
		}
		out = append(out, penalty{weight, "Address non-deliverable"})
	}

	// Specific root causes replace the generic invalid penalty.
	specific := false
	if r.Flag(domain.FlagPostalMismatch) {
		out = append(out, penalty{WeightAddressPostalMismatch, "Postal code and city mismatch"})
		specific = true
	}
	if r.Flag(domain.FlagOutOfBounds) {
		out = append(out, penalty{WeightAddressOutOfBounds, "Address outside serviceable bounds"})
		specific = true
	}
	if r.Flag(domain.FlagGeocodeFailed) {
		out = append(out, penalty{WeightAddressGeocodeFailed, "Address could not be geocoded"})
		specific = true
	}

	if !r.Valid && !specific && !r.Flag(domain.FlagPOBox) && !r.Flag(domain.FlagNonDeliverable) {
		out = append(out, penalty{WeightAddressInvalid, "Invalid address"})
	}

	return out
}

func ipPenalties(r *domain.FieldValidationResult) []penalty {
	var out []penalty
	if r.Flag(domain.FlagVPN) {
		out = append(out, penalty{WeightIPVPN, "IP belongs to a VPN"})
	}
	if r.Flag(domain.FlagProxy) {
		out = append(out, penalty{WeightIPProxy, "IP belongs to a proxy"})
	}
	if r.Flag(domain.FlagTor) {
		out = append(out, penalty{WeightIPTor, "IP is a Tor exit node"})
	}
	if r.Flag(domain.FlagDatacenter) {
		out = append(out, penalty{WeightIPDatacenter, "IP belongs to a datacenter"})
	}
	return out
}

func devicePenalties(r *domain.FieldValidationResult) []penalty {
	var out []penalty
	if r.Flag(domain.FlagBot) {
		out = append(out, penalty{WeightDeviceBot, "Bot user agent detected"})
	}
	return out
}

// Clamp bounds a score to [0,100].
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// LevelForScore maps a clamped score to its coarse risk level. Band lower
// bounds are inclusive.
func LevelForScore(score int) domain.RiskLevel {
	switch {
	case score >= 75:
		return domain.RiskCritical
	case score >= 50:
		return domain.RiskHigh
	case score >= 25:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}
