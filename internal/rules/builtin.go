package rules

import "github.com/opensource-finance/kestrel/internal/domain"

// BuiltinRules returns the rules every tenant starts with. They are evaluated
// ahead of tenant-defined rules of equal priority and can be disabled or
// reweighted per tenant through overrides.
func BuiltinRules() []*domain.Rule {
	return []*domain.Rule{
		{
			ID:          "builtin-disposable-email",
			Name:        "Disposable Email Domain",
			Description: "Email address uses a known disposable domain",
			Condition:   "email.disposable == true",
			Action:      domain.RuleActionBlock,
			Priority:    100,
			Enabled:     true,
			Severity:    "high",
			BuiltIn:     true,
		},
		{
			ID:          "builtin-tor-exit",
			Name:        "Tor Exit Node",
			Description: "Request originates from a Tor exit node",
			Condition:   "ip.tor == true",
			Action:      domain.RuleActionBlock,
			Priority:    95,
			Enabled:     true,
			Severity:    "high",
			BuiltIn:     true,
		},
		{
			ID:          "builtin-bot-device",
			Name:        "Automated Client",
			Description: "User agent identifies an automated client",
			Condition:   "device.bot == true",
			Action:      domain.RuleActionBlock,
			Priority:    90,
			Enabled:     true,
			Severity:    "high",
			BuiltIn:     true,
		},
		{
			ID:          "builtin-high-value",
			Name:        "High Value Transaction",
			Description: "Transaction amount exceeds the manual review threshold",
			Condition:   "transaction_amount > 10000",
			Action:      domain.RuleActionHold,
			Priority:    80,
			Enabled:     true,
			Severity:    "medium",
			BuiltIn:     true,
		},
		{
			ID:          "builtin-unreachable-phone",
			Name:        "Unreachable Phone",
			Description: "Phone number could not be reached for verification",
			Condition:   "phone IS NOT NULL and phone.unreachable == true",
			Action:      domain.RuleActionHold,
			Priority:    70,
			Enabled:     true,
			Severity:    "medium",
			BuiltIn:     true,
		},
	}
}
