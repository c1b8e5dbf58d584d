// Package decision combines triggered rule actions and the risk analysis
// into the final decision through a fixed tie-break policy.
package decision

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Score thresholds for the fallback policy when no rule triggered, and for
// escalating a hold to manual review.
const (
	blockThreshold  = 80
	reviewThreshold = 60
	holdThreshold   = 35

	escalateThreshold = 80
)

// Engine applies the tie-break policy. Rule severity ranks block > hold >
// approve; the risk score only decides when rules are silent, except that a
// hold under critical risk escalates to manual review.
type Engine struct{}

// NewEngine creates a decision engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Decide produces the final decision. Reasons list every triggered rule's
// reason followed by every risk factor, so the decision is explainable
// without replaying the pipeline.
func (e *Engine) Decide(risk domain.RiskAnalysis, ruleResults []domain.RuleEvaluationResult, fieldResults map[string]*domain.FieldValidationResult) domain.FinalDecision {
	var triggered []domain.RuleEvaluationResult
	for _, r := range ruleResults {
		if r.Triggered {
			triggered = append(triggered, r)
		}
	}

	decision := domain.FinalDecision{
		RiskScore:  risk.Score,
		RiskLevel:  risk.Level,
		Confidence: meanConfidence(triggered),
	}

	var reasons []string
	for _, r := range triggered {
		reasons = append(reasons, ruleReason(r))
	}

	switch {
	case anyAction(triggered, domain.RuleActionBlock):
		decision.Action = domain.ActionBlock

	case anyAction(triggered, domain.RuleActionHold):
		decision.Action = domain.ActionHold
		// A hold under critical risk is not safe to automate.
		if risk.Score >= escalateThreshold || risk.Level == domain.RiskCritical {
			decision.Action = domain.ActionReview
			reasons = append(reasons, fmt.Sprintf("Hold escalated to manual review at risk score %d", risk.Score))
		}

	case anyAction(triggered, domain.RuleActionApprove):
		decision.Action = domain.ActionApprove

	default:
		var reason string
		decision.Action, reason = fallback(risk.Score)
		reasons = append(reasons, reason)
	}

	decision.Reasons = append(reasons, risk.Factors...)
	decision.RecommendedActions = recommend(risk.Score, fieldResults)
	return decision
}

// fallback maps the risk score to an action when no rule triggered.
func fallback(score int) (domain.DecisionAction, string) {
	switch {
	case score >= blockThreshold:
		return domain.ActionBlock, fmt.Sprintf("Risk score %d exceeds the block threshold", score)
	case score >= reviewThreshold:
		return domain.ActionReview, fmt.Sprintf("Risk score %d requires manual review", score)
	case score >= holdThreshold:
		return domain.ActionHold, fmt.Sprintf("Elevated risk score %d", score)
	default:
		return domain.ActionApprove, "Low risk score"
	}
}

func anyAction(triggered []domain.RuleEvaluationResult, action domain.RuleAction) bool {
	for _, r := range triggered {
		if r.Action == action {
			return true
		}
	}
	return false
}

func ruleReason(r domain.RuleEvaluationResult) string {
	if r.Reason != "" {
		return r.Reason
	}
	return fmt.Sprintf("Rule %q triggered", r.RuleName)
}

// meanConfidence averages the triggered rules' confidences. With no
// triggered rules the decision rests on the deterministic score alone, which
// carries a fixed confidence.
func meanConfidence(triggered []domain.RuleEvaluationResult) float64 {
	if len(triggered) == 0 {
		return 0.7
	}
	sum := 0.0
	for _, r := range triggered {
		sum += r.Confidence
	}
	return sum / float64(len(triggered))
}

// recommend derives advisory follow-ups from the evidence. They never
// influence the action.
func recommend(score int, fieldResults map[string]*domain.FieldValidationResult) []string {
	var actions []string

	if fieldResults[domain.FieldEmail].Flag(domain.FlagDisposable) {
		actions = append(actions, "Request an alternate email address")
	}
	if fieldResults[domain.FieldPhone].Flag(domain.FlagUnreachable) {
		actions = append(actions, "Verify the phone number via SMS")
	}
	if fieldResults[domain.FieldAddress].Flag(domain.FlagNonDeliverable) {
		actions = append(actions, "Confirm the shipping address with the customer")
	}
	if score > 50 {
		actions = append(actions, "Request additional identity verification")
	}
	return actions
}
