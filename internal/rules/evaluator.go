// Package rules evaluates tenant and built-in rules against a verification
// context using the condition language in internal/expr.
package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/expr"
)

// DefaultEvalTimeout bounds a single condition evaluation unless the caller
// overrides it.
const DefaultEvalTimeout = 50 * time.Millisecond

// Evaluator executes rule conditions. One evaluator is safe for concurrent
// use; it holds no per-request state.
type Evaluator struct {
	timeout time.Duration
}

// NewEvaluator creates an evaluator with the given per-rule timeout.
// Non-positive values fall back to DefaultEvalTimeout.
func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultEvalTimeout
	}
	return &Evaluator{timeout: timeout}
}

// EvalInput carries everything a rule condition may reference.
type EvalInput struct {
	Payload      *domain.ValidationPayload
	FieldResults map[string]*domain.FieldValidationResult
	Risk         domain.RiskAnalysis
}

// EvaluateAll evaluates rules sequentially in the given order. A failing or
// timing-out rule yields a not-triggered result with an error and never
// interrupts its siblings. If the request context expires, remaining rules
// are abandoned and marked accordingly.
func (e *Evaluator) EvaluateAll(ctx context.Context, ruleList []*domain.Rule, input *EvalInput) []domain.RuleEvaluationResult {
	exprCtx := BuildContext(input)

	results := make([]domain.RuleEvaluationResult, 0, len(ruleList))
	for _, rule := range ruleList {
		if err := ctx.Err(); err != nil {
			results = append(results, domain.RuleEvaluationResult{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Action:   rule.Action,
				Error:    "request deadline exceeded before evaluation",
			})
			continue
		}
		results = append(results, e.Evaluate(ctx, rule, exprCtx, input))
	}
	return results
}

// Evaluate runs one rule's condition. It never raises: parse failures,
// runtime errors, panics, and timeouts all convert to a well-formed result
// with triggered=false and confidence 0.
func (e *Evaluator) Evaluate(ctx context.Context, rule *domain.Rule, exprCtx expr.Context, input *EvalInput) domain.RuleEvaluationResult {
	start := time.Now()

	result := domain.RuleEvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Action:   rule.Action,
	}

	node, err := expr.Parse(rule.Condition)
	if err != nil {
		// Unparseable conditions fail closed.
		result.Error = fmt.Sprintf("parse error: %v", err)
		result.EvalMs = time.Since(start).Milliseconds()
		return result
	}

	triggered, err := e.run(ctx, node, exprCtx)
	result.EvalMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Triggered = triggered
	result.Confidence = evalConfidence(triggered, input.FieldResults)
	if triggered {
		result.Reason = triggerReason(rule)
	}
	return result
}

type evalOutcome struct {
	triggered bool
	err       error
}

// run executes the interpreter under the per-rule timeout. The walk over a
// finite tree always terminates, so the worker goroutine cannot leak past
// its expression.
func (e *Evaluator) run(ctx context.Context, node expr.Node, exprCtx expr.Context) (bool, error) {
	outCh := make(chan evalOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				outCh <- evalOutcome{err: fmt.Errorf("evaluation panic: %v", r)}
			}
		}()
		triggered, err := expr.EvalBool(node, exprCtx)
		outCh <- evalOutcome{triggered: triggered, err: err}
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case out := <-outCh:
		if out.err != nil {
			return false, fmt.Errorf("evaluation error: %w", out.err)
		}
		return out.triggered, nil
	case <-timer.C:
		return false, fmt.Errorf("evaluation timed out after %s", e.timeout)
	case <-ctx.Done():
		return false, fmt.Errorf("evaluation abandoned: %w", ctx.Err())
	}
}

// triggerReason names the rule in every reason so the final decision stays
// explainable without the rule list at hand.
func triggerReason(rule *domain.Rule) string {
	if rule.Description != "" {
		return rule.Name + ": " + rule.Description
	}
	return fmt.Sprintf("rule %q matched", rule.Name)
}

// evalConfidence scores trust in a triggered/not-triggered verdict from the
// quality of the identity evidence available to the condition.
func evalConfidence(triggered bool, fieldResults map[string]*domain.FieldValidationResult) float64 {
	c := 0.3
	if triggered {
		c = 0.7
	}

	var riskScores []int
	for _, field := range []string{domain.FieldEmail, domain.FieldPhone, domain.FieldAddress} {
		r := fieldResults[field]
		if r == nil {
			continue
		}
		if r.Valid {
			c += 0.1
		}
		riskScores = append(riskScores, r.RiskScore)
	}

	if len(riskScores) > 0 {
		sum := 0
		for _, s := range riskScores {
			sum += s
		}
		avg := float64(sum) / float64(len(riskScores))

		switch {
		case avg > 70:
			c -= 0.15
		case avg > 50:
			c -= 0.1
		}
		if avg < 30 {
			c += 0.1
			if avg < 10 {
				c += 0.1
			}
		}
	}

	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// BuildContext assembles the allow-listed evaluation context. Every allowed
// root name is present; absent fields map to nil so IS NULL and exists()
// behave predictably. Field results are exposed as plain data maps - the
// interpreter cannot reach anything that is not copied in here.
func BuildContext(input *EvalInput) expr.Context {
	ctx := expr.Context{
		"email":   fieldContext(input.FieldResults[domain.FieldEmail]),
		"phone":   fieldContext(input.FieldResults[domain.FieldPhone]),
		"address": fieldContext(input.FieldResults[domain.FieldAddress]),
		"name":    fieldContext(input.FieldResults[domain.FieldName]),
		"ip":      fieldContext(input.FieldResults[domain.FieldIP]),
		"device":  fieldContext(input.FieldResults[domain.FieldDevice]),

		"risk_score": float64(input.Risk.Score),
		"risk_level": string(input.Risk.Level),
	}

	var amount float64
	var currency, sessionID any
	metadata := map[string]any{}
	if input.Payload != nil {
		amount = input.Payload.TransactionAmount
		if input.Payload.Currency != "" {
			currency = input.Payload.Currency
		}
		if input.Payload.SessionID != "" {
			sessionID = input.Payload.SessionID
		}
		for k, v := range input.Payload.Metadata {
			metadata[k] = v
		}
	}
	ctx["transaction_amount"] = amount
	ctx["currency"] = currency
	ctx["session_id"] = sessionID
	ctx["metadata"] = metadata

	return ctx
}

// fieldContext flattens one field result into a data map: core keys plus
// one boolean per flag and the provider attributes. Core keys win on
// collision.
func fieldContext(r *domain.FieldValidationResult) any {
	if r == nil {
		return nil
	}

	m := make(map[string]any, len(r.Flags)+len(r.Attributes)+5)
	for k, v := range r.Attributes {
		m[k] = v
	}
	for flag, set := range r.Flags {
		m[flag] = set
	}

	codes := make([]any, len(r.ReasonCodes))
	for i, code := range r.ReasonCodes {
		codes[i] = code
	}

	m["valid"] = r.Valid
	m["confidence"] = float64(r.Confidence)
	m["risk_score"] = float64(r.RiskScore)
	m["provider"] = r.Provider
	m["reason_codes"] = codes

	return m
}
