// Package validators provides the built-in field validators. They are
// deliberately network-free: verdicts come from syntax checks and curated
// domain tables, so validation latency stays flat and deterministic.
// External providers plug in through the domain interfaces.
package validators

import (
	"context"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Curated domain tables. These are the high-signal entries seen in
// production traffic, not exhaustive lists; an external reputation provider
// supersedes them when configured.
var disposableDomains = map[string]bool{
	"mailinator.com":         true,
	"guerrillamail.com":      true,
	"guerrillamailblock.com": true,
	"10minutemail.com":       true,
	"tempmail.com":           true,
	"temp-mail.org":          true,
	"throwawaymail.com":      true,
	"yopmail.com":            true,
	"sharklasers.com":        true,
	"getnada.com":            true,
	"trashmail.com":          true,
	"maildrop.cc":            true,
	"fakeinbox.com":          true,
	"dispostable.com":        true,
	"mintemail.com":          true,
	"mytemp.email":           true,
	"spamgourmet.com":        true,
	"mailnesia.com":          true,
	"emailondeck.com":        true,
	"tempinbox.com":          true,
	"burnermail.io":          true,
}

var freeProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"yahoo.co.uk":    true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"aol.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"gmx.com":        true,
	"gmx.de":         true,
	"web.de":         true,
	"mail.com":       true,
	"protonmail.com": true,
	"proton.me":      true,
	"zoho.com":       true,
	"yandex.com":     true,
	"yandex.ru":      true,
}

var roleLocalParts = map[string]bool{
	"admin":      true,
	"info":       true,
	"support":    true,
	"sales":      true,
	"contact":    true,
	"help":       true,
	"billing":    true,
	"noreply":    true,
	"no-reply":   true,
	"postmaster": true,
	"webmaster":  true,
	"abuse":      true,
	"security":   true,
	"office":     true,
	"hello":      true,
	"team":       true,
}

// EmailValidator validates email syntax and classifies the domain against
// the curated tables.
type EmailValidator struct{}

// NewEmailValidator creates the built-in email validator.
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{}
}

// ValidateEmail checks structure and classifies the address. The error
// return is reserved for infrastructure failures; a bad address is a valid
// result with Valid=false.
func (v *EmailValidator) ValidateEmail(ctx context.Context, value string) (*domain.RawResult, error) {
	result := &domain.RawResult{
		Provider: "syntax",
		Flags:    map[string]bool{},
	}

	addr := strings.ToLower(strings.TrimSpace(value))
	local, dom, ok := splitAddress(addr)
	if !ok {
		result.ReasonCodes = append(result.ReasonCodes, "malformed_address")
		return result, nil
	}

	result.Attributes = map[string]any{
		"local":  local,
		"domain": dom,
	}

	reasons := checkEmailParts(local, dom)
	if len(reasons) > 0 {
		result.ReasonCodes = reasons
		// A well-formed domain behind a bad local part is still a weak
		// positive signal.
		if domainLooksValid(dom) {
			result.PartialSignal = true
		}
		return result, nil
	}

	result.Valid = true
	if disposableDomains[dom] {
		result.Flags[domain.FlagDisposable] = true
		result.ReasonCodes = append(result.ReasonCodes, "disposable_domain")
	}
	if freeProviders[dom] {
		result.Flags[domain.FlagFreeProvider] = true
	}
	if roleLocalParts[local] {
		result.Flags[domain.FlagRoleAccount] = true
	}
	return result, nil
}

// splitAddress splits on the last '@' so quoted local parts with '@' inside
// do not confuse the domain check.
func splitAddress(addr string) (local, dom string, ok bool) {
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return "", "", false
	}
	return addr[:at], addr[at+1:], true
}

func checkEmailParts(local, dom string) []string {
	var reasons []string

	if len(local) > 64 {
		reasons = append(reasons, "local_part_too_long")
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		reasons = append(reasons, "malformed_local_part")
	}
	for _, r := range local {
		if !isEmailLocalRune(r) {
			reasons = append(reasons, "illegal_character")
			break
		}
	}

	if !domainLooksValid(dom) {
		reasons = append(reasons, "malformed_domain")
	}
	return reasons
}

func isEmailLocalRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune(".!#$%&'*+-/=?^_`{|}~", r):
		return true
	}
	return false
}

func domainLooksValid(dom string) bool {
	if len(dom) < 4 || len(dom) > 253 {
		return false
	}
	labels := strings.Split(dom, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
				return false
			}
		}
	}
	// TLD must be alphabetic.
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
