package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/orchestrator"
	"github.com/opensource-finance/kestrel/internal/results"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/validators"
)

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()

	calc := scoring.NewCalculator(domain.ScoringConfig{
		HeuristicProviders:            []string{"heuristic"},
		NonDeliverableHeuristicWeight: 10,
	})
	o := orchestrator.New(
		validators.NewSet(),
		cache.NewLRUCache(100),
		results.NewBuilder(calc),
		time.Minute,
		slog.Default(),
	)
	return New(
		o,
		rules.NewLoader(nil, nil, slog.Default()),
		rules.NewEvaluator(0),
		calc,
		decision.NewEngine(),
		nil,
		slog.Default(),
	)
}

func TestDisposableEmailBlocked(t *testing.T) {
	p := newPipeline(t)

	result, err := p.Verify(context.Background(), &Request{
		TenantID: "tenant-a",
		Payload: &domain.ValidationPayload{
			Email:             "fraudster@mailinator.com",
			TransactionAmount: 15000,
			Currency:          "USD",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Decision.Action != domain.ActionBlock {
		t.Fatalf("action = %s, want block (%+v)", result.Decision.Action, result.Decision)
	}

	// Both the blocking rule's name and the risk factor must appear.
	wantReasons := map[string]bool{
		"Disposable Email Domain: Email address uses a known disposable domain": false,
		"Disposable email domain": false,
	}
	for _, reason := range result.Decision.Reasons {
		if _, ok := wantReasons[reason]; ok {
			wantReasons[reason] = true
		}
	}
	for reason, seen := range wantReasons {
		if !seen {
			t.Errorf("missing reason %q in %v", reason, result.Decision.Reasons)
		}
	}

	// The high-value hold rule triggered too but block takes precedence.
	var holdTriggered bool
	for _, r := range result.RuleResults {
		if r.RuleID == "builtin-high-value" && r.Triggered {
			holdTriggered = true
		}
	}
	if !holdTriggered {
		t.Error("high value rule should also trigger")
	}
}

func TestCleanPayloadApproved(t *testing.T) {
	p := newPipeline(t)

	result, err := p.Verify(context.Background(), &Request{
		TenantID: "tenant-a",
		Payload: &domain.ValidationPayload{
			Email:             "jane.doe@acme-corp.com",
			TransactionAmount: 120,
			Currency:          "EUR",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Decision.Action != domain.ActionApprove {
		t.Fatalf("action = %s, want approve (%+v)", result.Decision.Action, result.Decision)
	}
	if result.Decision.RiskScore != 0 {
		t.Errorf("risk score = %d, want 0", result.Decision.RiskScore)
	}
	if len(result.Decision.Reasons) != 1 || result.Decision.Reasons[0] != "Low risk score" {
		t.Errorf("reasons = %v, want [Low risk score]", result.Decision.Reasons)
	}
	if result.Decision.Confidence != 0.7 {
		t.Errorf("confidence = %f, want fixed 0.7 with no triggered rules", result.Decision.Confidence)
	}
	if result.ID == "" {
		t.Error("result must carry an id")
	}
}

func TestTorExitBlocked(t *testing.T) {
	p := newPipeline(t)

	result, err := p.Verify(context.Background(), &Request{
		TenantID: "tenant-a",
		Payload: &domain.ValidationPayload{
			Email: "jane.doe@acme-corp.com",
			IP:    "185.220.101.5",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Decision.Action != domain.ActionBlock {
		t.Fatalf("action = %s, want block", result.Decision.Action)
	}
	if result.Decision.RiskScore != 40 {
		t.Errorf("risk score = %d, want 40", result.Decision.RiskScore)
	}
}

func TestInvalidPayloadRejected(t *testing.T) {
	p := newPipeline(t)

	tests := []struct {
		name    string
		payload *domain.ValidationPayload
	}{
		{"nil payload", nil},
		{"no identity fields", &domain.ValidationPayload{TransactionAmount: 10}},
		{"negative amount", &domain.ValidationPayload{Email: "a@b.co", TransactionAmount: -1}},
		{"bad currency", &domain.ValidationPayload{Email: "a@b.co", Currency: "EURO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Verify(context.Background(), &Request{TenantID: "tenant-a", Payload: tt.payload})
			if !errors.Is(err, domain.ErrInvalidPayload) {
				t.Errorf("err = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestMissingTenantRejected(t *testing.T) {
	p := newPipeline(t)

	_, err := p.Verify(context.Background(), &Request{
		Payload: &domain.ValidationPayload{Email: "a@b.co"},
	})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Errorf("err = %v, want ErrInvalidPayload", err)
	}
}

func TestDebugOnlyOnRequest(t *testing.T) {
	p := newPipeline(t)
	payload := &domain.ValidationPayload{Email: "jane.doe@acme-corp.com"}

	plain, err := p.Verify(context.Background(), &Request{TenantID: "tenant-a", Payload: payload})
	if err != nil {
		t.Fatal(err)
	}
	if plain.Debug != nil {
		t.Error("debug info attached without being requested")
	}

	verbose, err := p.Verify(context.Background(), &Request{TenantID: "tenant-a", Payload: payload, Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	if verbose.Debug == nil {
		t.Fatal("debug info missing")
	}
	if verbose.Debug.RulesEvaluated == 0 {
		t.Error("debug should report evaluated rule count")
	}
}

func TestMetricsPopulated(t *testing.T) {
	p := newPipeline(t)
	payload := &domain.ValidationPayload{Email: "jane.doe@acme-corp.com"}

	first, err := p.Verify(context.Background(), &Request{TenantID: "tenant-a", Payload: payload})
	if err != nil {
		t.Fatal(err)
	}
	if first.Metrics.CacheMisses != 1 {
		t.Errorf("first run misses = %d, want 1", first.Metrics.CacheMisses)
	}

	second, err := p.Verify(context.Background(), &Request{TenantID: "tenant-a", Payload: payload})
	if err != nil {
		t.Fatal(err)
	}
	if second.Metrics.CacheHits != 1 {
		t.Errorf("second run hits = %d, want 1", second.Metrics.CacheHits)
	}
	if second.Metrics.CompletedAt.Before(second.Metrics.StartedAt) {
		t.Error("timestamps out of order")
	}
}
