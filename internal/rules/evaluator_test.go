package rules

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func testInput() *EvalInput {
	return &EvalInput{
		Payload: &domain.ValidationPayload{
			Email:             "user@example.com",
			TransactionAmount: 15000,
			Currency:          "EUR",
			Metadata:          map[string]any{"channel": "web"},
		},
		FieldResults: map[string]*domain.FieldValidationResult{
			domain.FieldEmail: {
				Field:      domain.FieldEmail,
				Valid:      true,
				Confidence: 90,
				RiskScore:  0,
				Provider:   "syntax",
				Flags:      map[string]bool{domain.FlagFreeProvider: true},
				Attributes: map[string]any{"domain": "example.com"},
			},
		},
		Risk: domain.RiskAnalysis{Score: 10, Level: domain.RiskLow},
	}
}

func TestEvaluateTriggered(t *testing.T) {
	e := NewEvaluator(0)
	input := testInput()

	rule := &domain.Rule{
		ID:          "r1",
		Name:        "High Value",
		Description: "Transaction amount exceeds the manual review threshold",
		Condition:   "transaction_amount > 10000",
		Action:      domain.RuleActionHold,
	}

	result := e.Evaluate(context.Background(), rule, BuildContext(input), input)

	if !result.Triggered {
		t.Fatalf("rule should trigger: %+v", result)
	}
	if result.Error != "" {
		t.Errorf("unexpected error: %s", result.Error)
	}
	if result.Action != domain.RuleActionHold {
		t.Errorf("action = %s", result.Action)
	}
	if want := "High Value: Transaction amount exceeds the manual review threshold"; result.Reason != want {
		t.Errorf("reason = %q, want %q", result.Reason, want)
	}
}

func TestTriggerReasonCarriesRuleName(t *testing.T) {
	e := NewEvaluator(0)
	input := testInput()

	rule := &domain.Rule{
		ID:        "r2",
		Name:      "Bare Rule",
		Condition: "transaction_amount > 10000",
		Action:    domain.RuleActionHold,
	}

	result := e.Evaluate(context.Background(), rule, BuildContext(input), input)
	if !result.Triggered {
		t.Fatalf("rule should trigger: %+v", result)
	}
	if want := `rule "Bare Rule" matched`; result.Reason != want {
		t.Errorf("reason = %q, want %q", result.Reason, want)
	}
}

func TestEvaluateFailClosed(t *testing.T) {
	e := NewEvaluator(0)
	input := testInput()
	exprCtx := BuildContext(input)

	tests := []struct {
		name      string
		condition string
		errPart   string
	}{
		{"parse error", "email.valid ==", "parse error"},
		{"unknown identifier", "os.environ == true", "unknown identifier"},
		{"division by zero", "1 / 0 == 1", "division by zero"},
		{"non-boolean result", "transaction_amount + 1", "boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := &domain.Rule{ID: "bad", Name: "Bad Rule", Condition: tt.condition, Action: domain.RuleActionBlock}
			result := e.Evaluate(context.Background(), rule, exprCtx, input)

			if result.Triggered {
				t.Error("failed rule must not trigger")
			}
			if result.Confidence != 0 {
				t.Errorf("confidence = %f, want 0", result.Confidence)
			}
			if !strings.Contains(result.Error, tt.errPart) {
				t.Errorf("error = %q, want substring %q", result.Error, tt.errPart)
			}
		})
	}
}

func TestEvaluateAllIsolatesFailures(t *testing.T) {
	e := NewEvaluator(0)
	input := testInput()

	ruleList := []*domain.Rule{
		{ID: "r1", Name: "Broken", Condition: "email.valid ==", Action: domain.RuleActionBlock},
		{ID: "r2", Name: "High Value", Condition: "transaction_amount > 10000", Action: domain.RuleActionHold},
	}

	results := e.EvaluateAll(context.Background(), ruleList, input)

	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Error == "" || results[0].Triggered {
		t.Errorf("broken rule = %+v", results[0])
	}
	if !results[1].Triggered {
		t.Errorf("sibling rule should still trigger: %+v", results[1])
	}
}

func TestEvaluateAllAbandonsOnExpiredContext(t *testing.T) {
	e := NewEvaluator(0)
	input := testInput()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := e.EvaluateAll(ctx, []*domain.Rule{
		{ID: "r1", Name: "A", Condition: "true", Action: domain.RuleActionHold},
		{ID: "r2", Name: "B", Condition: "true", Action: domain.RuleActionHold},
	}, input)

	for _, r := range results {
		if r.Triggered {
			t.Errorf("rule %s triggered after context expiry", r.RuleID)
		}
		if r.Error == "" {
			t.Errorf("rule %s should carry an abandonment error", r.RuleID)
		}
	}
}

func TestEvaluateTimeout(t *testing.T) {
	e := NewEvaluator(time.Nanosecond)
	input := testInput()

	// A deeply nested condition so the interpreter takes measurable time.
	cond := "transaction_amount > 10000"
	for i := 0; i < 14; i++ {
		cond = "(" + cond + " and " + cond + ")"
	}

	rule := &domain.Rule{ID: "slow", Name: "Slow", Condition: cond, Action: domain.RuleActionBlock}
	result := e.Evaluate(context.Background(), rule, BuildContext(input), input)

	if result.Triggered {
		t.Error("timed-out rule must not trigger")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("error = %q, want timeout", result.Error)
	}
}

func TestConfidenceModel(t *testing.T) {
	field := func(valid bool, risk int) *domain.FieldValidationResult {
		return &domain.FieldValidationResult{Valid: valid, RiskScore: risk}
	}

	tests := []struct {
		name      string
		triggered bool
		fields    map[string]*domain.FieldValidationResult
		want      float64
	}{
		{"triggered no identity fields", true, nil, 0.7},
		{"not triggered no identity fields", false, nil, 0.3},
		{
			// 0.7 + 3*0.1, avg 0 adds 0.1 + 0.1, clamped.
			"triggered all valid and clean", true,
			map[string]*domain.FieldValidationResult{
				domain.FieldEmail:   field(true, 0),
				domain.FieldPhone:   field(true, 0),
				domain.FieldAddress: field(true, 0),
			},
			1.0,
		},
		{
			// 0.3 + 0.1 valid, avg 40 in the neutral band.
			"not triggered moderate risk", false,
			map[string]*domain.FieldValidationResult{
				domain.FieldEmail: field(true, 40),
			},
			0.4,
		},
		{
			// 0.3, avg 80 > 70 subtracts 0.15.
			"not triggered high risk evidence", false,
			map[string]*domain.FieldValidationResult{
				domain.FieldEmail: field(false, 80),
			},
			0.15,
		},
		{
			// 0.7 + 0.1, avg 60 > 50 subtracts 0.1.
			"triggered elevated risk", true,
			map[string]*domain.FieldValidationResult{
				domain.FieldEmail: field(true, 60),
			},
			0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalConfidence(tt.triggered, tt.fields)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidence = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestBuildContextShape(t *testing.T) {
	input := testInput()
	ctx := BuildContext(input)

	// Absent fields are present as nil so IS NULL works.
	for _, root := range []string{"phone", "address", "name", "ip", "device"} {
		v, ok := ctx[root]
		if !ok {
			t.Errorf("root %q missing from context", root)
		}
		if v != nil {
			t.Errorf("absent field %q = %v, want nil", root, v)
		}
	}

	email, ok := ctx["email"].(map[string]any)
	if !ok {
		t.Fatalf("email = %T", ctx["email"])
	}
	if email["valid"] != true {
		t.Error("email.valid not exposed")
	}
	if email[domain.FlagFreeProvider] != true {
		t.Error("flags not flattened into the field map")
	}
	if email["domain"] != "example.com" {
		t.Error("attributes not flattened into the field map")
	}

	if ctx["transaction_amount"] != 15000.0 {
		t.Errorf("transaction_amount = %v", ctx["transaction_amount"])
	}
	if ctx["risk_level"] != "low" {
		t.Errorf("risk_level = %v", ctx["risk_level"])
	}
	meta, ok := ctx["metadata"].(map[string]any)
	if !ok || meta["channel"] != "web" {
		t.Errorf("metadata = %v", ctx["metadata"])
	}
}
