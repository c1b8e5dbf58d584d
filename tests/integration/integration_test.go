// Package integration exercises the full stack: HTTP API, rule store,
// cache, event bus, and worker wired together the same way main does.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/orchestrator"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/results"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/validators"
	"github.com/opensource-finance/kestrel/internal/worker"
)

type stack struct {
	handler http.Handler
	bus     *bus.ChannelBus
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.Default()

	store, err := repository.New(domain.StoreConfig{
		Driver:       "sqlite",
		SQLitePath:   ":memory:",
		MaxOpenConns: 1,
	}, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	c := cache.NewLRUCache(1000)
	b := bus.NewChannelBus(64)
	t.Cleanup(func() { b.Close() })

	calc := scoring.NewCalculator(domain.ScoringConfig{
		HeuristicProviders:            []string{"heuristic"},
		NonDeliverableHeuristicWeight: 10,
	})
	p := pipeline.New(
		orchestrator.New(validators.NewSet(), c, results.NewBuilder(calc), time.Minute, logger),
		rules.NewLoader(store, nil, logger),
		rules.NewEvaluator(50*time.Millisecond),
		calc,
		decision.NewEngine(),
		nil,
		logger,
	)

	w := worker.New(b, p, []string{"tenant-a"}, logger)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)

	h := api.NewHandler(p, store, c, b, 5*time.Second, logger)
	server := api.NewServer(domain.ServerConfig{}, h, c, logger)
	return &stack{handler: server.Handler(), bus: b}
}

func (s *stack) post(t *testing.T, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("X-Tenant-ID", tenant)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestSynchronousVerificationWithTenantRule(t *testing.T) {
	s := newStack(t)

	// Install a tenant rule over HTTP, then verify a payload that trips it.
	rec := s.post(t, "/v1/rules/", "tenant-a", map[string]any{
		"id":        "crypto-hold",
		"name":      "Crypto Purchases Hold",
		"condition": `metadata.product == "crypto" and transaction_amount > 1000`,
		"action":    "hold",
		"priority":  50,
		"enabled":   true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule: %d %s", rec.Code, rec.Body.String())
	}

	rec = s.post(t, "/v1/verify", "tenant-a", map[string]any{
		"payload": map[string]any{
			"email":             "jane.doe@acme-corp.com",
			"transactionAmount": 2500,
			"currency":          "USD",
			"metadata":          map[string]any{"product": "crypto"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rec.Code, rec.Body.String())
	}

	var result domain.VerificationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Decision.Action != domain.ActionHold {
		t.Errorf("action = %s, want hold (%v)", result.Decision.Action, result.Decision.Reasons)
	}

	var tripped bool
	for _, r := range result.RuleResults {
		if r.RuleID == "crypto-hold" && r.Triggered {
			tripped = true
		}
	}
	if !tripped {
		t.Error("tenant rule did not trigger")
	}
}

func TestAsynchronousVerificationOverBus(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		received []*domain.Message
	)
	_, err := s.bus.Subscribe(ctx, "tenant-a", domain.TopicDecision, func(ctx context.Context, msg *domain.Message) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, msg)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(&domain.ValidationPayload{Email: "jane.doe@acme-corp.com"})
	if err := s.bus.Publish(ctx, "tenant-a", domain.TopicVerificationRequested, payload); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no decision published")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	var result domain.VerificationResult
	if err := json.Unmarshal(received[0].Payload, &result); err != nil {
		t.Fatal(err)
	}
	if result.Decision.Action != domain.ActionApprove {
		t.Errorf("action = %s, want approve", result.Decision.Action)
	}
}

func TestCacheSharedAcrossTransports(t *testing.T) {
	s := newStack(t)

	body := map[string]any{"payload": map[string]any{"email": "jane.doe@acme-corp.com"}}

	first := s.post(t, "/v1/verify", "tenant-a", body)
	var r1 domain.VerificationResult
	if err := json.Unmarshal(first.Body.Bytes(), &r1); err != nil {
		t.Fatal(err)
	}
	if r1.Metrics.CacheMisses != 1 {
		t.Errorf("first request misses = %d", r1.Metrics.CacheMisses)
	}

	second := s.post(t, "/v1/verify", "tenant-a", body)
	var r2 domain.VerificationResult
	if err := json.Unmarshal(second.Body.Bytes(), &r2); err != nil {
		t.Fatal(err)
	}
	if r2.Metrics.CacheHits != 1 {
		t.Errorf("second request hits = %d", r2.Metrics.CacheHits)
	}
}
