package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/expr"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/repository"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Handler serves the verification and rule management endpoints.
type Handler struct {
	pipeline       *pipeline.Pipeline
	store          domain.RuleStore
	cache          domain.Cache
	bus            domain.EventBus
	requestTimeout time.Duration
	logger         *slog.Logger
}

// NewHandler creates the API handler. store, cache, and bus may be nil in
// reduced deployments; the affected endpoints then report accordingly.
func NewHandler(p *pipeline.Pipeline, store domain.RuleStore, c domain.Cache, bus domain.EventBus, requestTimeout time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Handler{
		pipeline:       p,
		store:          store,
		cache:          c,
		bus:            bus,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

type verifyRequest struct {
	Payload *domain.ValidationPayload `json:"payload"`
	Debug   bool                      `json:"debug,omitempty"`
}

// handleVerify runs one synchronous verification.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	result, err := h.pipeline.Verify(ctx, &pipeline.Request{
		TenantID: TenantID(r.Context()),
		Payload:  req.Payload,
		Debug:    req.Debug,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListRules returns the tenant's stored enabled rules.
func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "rule store not configured")
		return
	}

	rules, err := h.store.ListEnabledRules(r.Context(), TenantID(r.Context()))
	if err != nil {
		h.logger.Error("list rules failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	if rules == nil {
		rules = []*domain.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// handleSaveRule creates or updates a rule. The condition must parse; a
// rule that cannot parse would silently fail closed on every request.
func (h *Handler) handleSaveRule(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "rule store not configured")
		return
	}

	var rule domain.Rule
	if err := decodeJSON(w, r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := expr.Parse(rule.Condition); err != nil {
		writeError(w, http.StatusBadRequest, "invalid condition: "+err.Error())
		return
	}

	if err := h.store.SaveRule(r.Context(), TenantID(r.Context()), &rule); err != nil {
		h.logger.Error("save rule failed", "rule_id", rule.ID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, &rule)
}

// handleGetRule returns one stored rule.
func (h *Handler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "rule store not configured")
		return
	}

	rule, err := h.store.GetRule(r.Context(), TenantID(r.Context()), chi.URLParam(r, "ruleID"))
	switch {
	case errors.Is(err, repository.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule not found")
		return
	case err != nil:
		h.logger.Error("get rule failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load rule")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleDeleteRule removes one stored rule.
func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "rule store not configured")
		return
	}

	err := h.store.DeleteRule(r.Context(), TenantID(r.Context()), chi.URLParam(r, "ruleID"))
	switch {
	case errors.Is(err, repository.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule not found")
		return
	case err != nil:
		h.logger.Error("delete rule failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReloadRules re-validates every stored rule condition and reports
// the ones that no longer parse. Rules are loaded fresh on every request,
// so this is a health check for the rule set, not a cache flush.
func (h *Handler) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusNotImplemented, "rule store not configured")
		return
	}

	rules, err := h.store.ListEnabledRules(r.Context(), TenantID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}

	invalid := map[string]string{}
	for _, rule := range rules {
		if _, err := expr.Parse(rule.Condition); err != nil {
			invalid[rule.ID] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":   len(rules),
		"invalid": invalid,
	})
}

// handleHealth is the liveness probe.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady is the readiness probe: every configured collaborator must
// answer.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	check := func(name string, ping func(context.Context) error) {
		if ping == nil {
			return
		}
		if err := ping(r.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	if h.store != nil {
		check("store", h.store.Ping)
	}
	if h.cache != nil {
		check("cache", h.cache.Ping)
	}
	if h.bus != nil {
		check("bus", h.bus.Ping)
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"checks": checks})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("malformed request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
