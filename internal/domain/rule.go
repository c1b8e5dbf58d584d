package domain

// RuleAction is the action a rule requests when it triggers.
type RuleAction string

const (
	RuleActionApprove RuleAction = "approve"
	RuleActionHold    RuleAction = "hold"
	RuleActionBlock   RuleAction = "block"
)

// Valid reports whether the action is one of the three rule actions.
func (a RuleAction) Valid() bool {
	switch a {
	case RuleActionApprove, RuleActionHold, RuleActionBlock:
		return true
	}
	return false
}

// Rule is a tenant-authored or built-in decision rule. Rules are immutable
// for the duration of one request's evaluation.
type Rule struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Condition   string     `json:"condition"`
	Action      RuleAction `json:"action"`
	Priority    int        `json:"priority"`
	Enabled     bool       `json:"enabled"`
	Severity    string     `json:"severity,omitempty"`

	// BuiltIn marks rules from the static built-in set.
	BuiltIn bool `json:"builtIn,omitempty"`
}

// RuleOverride selectively replaces fields of a built-in rule. Overrides are
// passed explicitly into rule loading; there is no process-wide registry.
type RuleOverride struct {
	Condition *string     `json:"condition,omitempty"`
	Action    *RuleAction `json:"action,omitempty"`
	Priority  *int        `json:"priority,omitempty"`
	Enabled   *bool       `json:"enabled,omitempty"`
}

// RuleEvaluationResult is the outcome of evaluating one rule's condition
// against a request context.
type RuleEvaluationResult struct {
	RuleID     string     `json:"ruleId"`
	RuleName   string     `json:"ruleName"`
	Action     RuleAction `json:"action"`
	Triggered  bool       `json:"triggered"`
	Confidence float64    `json:"confidence"` // 0.0-1.0
	Reason     string     `json:"reason,omitempty"`
	Error      string     `json:"error,omitempty"`
	EvalMs     int64      `json:"evalMs"`
}
