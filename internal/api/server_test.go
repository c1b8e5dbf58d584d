package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

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
)

func newTestServer(t *testing.T, serverCfg domain.ServerConfig) http.Handler {
	t.Helper()

	store, err := repository.New(domain.StoreConfig{
		Driver:       "sqlite",
		SQLitePath:   ":memory:",
		MaxOpenConns: 1,
	}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	c := cache.NewLRUCache(1000)
	b := bus.NewChannelBus(16)
	t.Cleanup(func() { b.Close() })

	calc := scoring.NewCalculator(domain.ScoringConfig{
		HeuristicProviders:            []string{"heuristic"},
		NonDeliverableHeuristicWeight: 10,
	})
	p := pipeline.New(
		orchestrator.New(validators.NewSet(), c, results.NewBuilder(calc), time.Minute, slog.Default()),
		rules.NewLoader(store, nil, slog.Default()),
		rules.NewEvaluator(0),
		calc,
		decision.NewEngine(),
		nil,
		slog.Default(),
	)

	h := NewHandler(p, store, c, b, 5*time.Second, slog.Default())
	return NewServer(serverCfg, h, c, slog.Default()).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, tenant string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestVerifyEndpoint(t *testing.T) {
	handler := newTestServer(t, domain.ServerConfig{})

	t.Run("missing tenant header", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/verify", "", map[string]any{
			"payload": map[string]any{"email": "jane@acme-corp.com"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("clean payload approves", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/verify", "tenant-a", map[string]any{
			"payload": map[string]any{"email": "jane.doe@acme-corp.com"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var result domain.VerificationResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatal(err)
		}
		if result.Decision.Action != domain.ActionApprove {
			t.Errorf("action = %s, want approve", result.Decision.Action)
		}
		if result.TenantID != "tenant-a" {
			t.Errorf("tenant = %s", result.TenantID)
		}
	})

	t.Run("disposable email blocks", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/verify", "tenant-a", map[string]any{
			"payload": map[string]any{"email": "x@mailinator.com"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var result domain.VerificationResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatal(err)
		}
		if result.Decision.Action != domain.ActionBlock {
			t.Errorf("action = %s, want block", result.Decision.Action)
		}
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/verify", "tenant-a", map[string]any{
			"payload": map[string]any{},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/verify", bytes.NewBufferString("{nope"))
		req.Header.Set("X-Tenant-ID", "tenant-a")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestRulesCRUD(t *testing.T) {
	handler := newTestServer(t, domain.ServerConfig{})

	rule := map[string]any{
		"id":        "velocity-1",
		"name":      "High Velocity",
		"condition": "transaction_amount > 5000",
		"action":    "hold",
		"priority":  60,
		"enabled":   true,
	}

	t.Run("invalid condition rejected", func(t *testing.T) {
		bad := map[string]any{
			"id": "r-bad", "name": "Bad", "condition": "amount >>", "action": "hold", "enabled": true,
		}
		rec := doJSON(t, handler, http.MethodPost, "/v1/rules/", "tenant-a", bad)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("create", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/rules/", "tenant-a", rule)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("list", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/v1/rules/", "tenant-a", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp struct {
			Rules []*domain.Rule `json:"rules"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Rules) != 1 || resp.Rules[0].ID != "velocity-1" {
			t.Errorf("rules = %+v", resp.Rules)
		}
	})

	t.Run("list is tenant scoped", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/v1/rules/", "tenant-b", nil)
		var resp struct {
			Rules []*domain.Rule `json:"rules"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if len(resp.Rules) != 0 {
			t.Errorf("tenant-b sees %d foreign rules", len(resp.Rules))
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodGet, "/v1/rules/velocity-1", "tenant-a", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("stored rule participates in verification", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/verify", "tenant-a", map[string]any{
			"payload": map[string]any{
				"email":             "jane.doe@acme-corp.com",
				"transactionAmount": 6000,
				"currency":          "USD",
			},
		})
		var result domain.VerificationResult
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatal(err)
		}
		if result.Decision.Action != domain.ActionHold {
			t.Errorf("action = %s, want hold from the stored rule", result.Decision.Action)
		}
	})

	t.Run("reload", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodPost, "/v1/rules/reload", "tenant-a", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp struct {
			Rules   int               `json:"rules"`
			Invalid map[string]string `json:"invalid"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Rules != 1 || len(resp.Invalid) != 0 {
			t.Errorf("reload = %+v", resp)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doJSON(t, handler, http.MethodDelete, "/v1/rules/velocity-1", "tenant-a", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d", rec.Code)
		}
		rec = doJSON(t, handler, http.MethodGet, "/v1/rules/velocity-1", "tenant-a", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status after delete = %d, want 404", rec.Code)
		}
	})
}

func TestProbes(t *testing.T) {
	handler := newTestServer(t, domain.ServerConfig{})

	rec := doJSON(t, handler, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	handler := newTestServer(t, domain.ServerConfig{RateLimitPerMinute: 2})

	body := map[string]any{"payload": map[string]any{"email": "jane.doe@acme-corp.com"}}
	for i := 0; i < 2; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/v1/verify", "tenant-a", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}

	rec := doJSON(t, handler, http.MethodPost, "/v1/verify", "tenant-a", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	// A different tenant keeps its own budget.
	rec = doJSON(t, handler, http.MethodPost, "/v1/verify", "tenant-b", body)
	if rec.Code != http.StatusOK {
		t.Errorf("tenant-b status = %d, want 200", rec.Code)
	}
}
