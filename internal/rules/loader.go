package rules

import (
	"context"
	"log/slog"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Loader merges built-in rules with a tenant's stored rules and orders them
// for evaluation.
type Loader struct {
	store     domain.RuleStore
	overrides map[string]map[string]domain.RuleOverride
	logger    *slog.Logger
}

// NewLoader creates a rule loader. overrides maps tenant ID to built-in rule
// ID to the override for that rule; it may be nil.
func NewLoader(store domain.RuleStore, overrides map[string]map[string]domain.RuleOverride, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, overrides: overrides, logger: logger}
}

// Load returns the enabled rules for a tenant in evaluation order: priority
// descending, insertion order within equal priority (built-ins first). A
// store failure degrades to built-ins only so a database outage never stops
// decisions.
func (l *Loader) Load(ctx context.Context, tenantID string) []*domain.Rule {
	merged := l.builtinsFor(tenantID)

	if l.store != nil {
		stored, err := l.store.ListEnabledRules(ctx, tenantID)
		if err != nil {
			l.logger.Warn("rule store unavailable, using built-in rules only",
				"tenant_id", tenantID, "error", err)
		} else {
			merged = append(merged, stored...)
		}
	}

	// Stable sort keeps insertion order within a priority band.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority > merged[j].Priority
	})
	return merged
}

// builtinsFor returns the built-in set with the tenant's overrides applied,
// dropping any the tenant disabled.
func (l *Loader) builtinsFor(tenantID string) []*domain.Rule {
	builtins := BuiltinRules()
	tenantOverrides := l.overrides[tenantID]
	if tenantOverrides == nil {
		return builtins
	}

	out := builtins[:0]
	for _, rule := range builtins {
		if ov, ok := tenantOverrides[rule.ID]; ok {
			applyOverride(rule, ov)
		}
		if rule.Enabled {
			out = append(out, rule)
		}
	}
	return out
}

func applyOverride(rule *domain.Rule, ov domain.RuleOverride) {
	if ov.Condition != nil {
		rule.Condition = *ov.Condition
	}
	if ov.Action != nil {
		rule.Action = *ov.Action
	}
	if ov.Priority != nil {
		rule.Priority = *ov.Priority
	}
	if ov.Enabled != nil {
		rule.Enabled = *ov.Enabled
	}
}
