// Package pipeline runs the full verification flow: payload validation,
// concurrent field validation, rule evaluation, risk scoring, and the final
// decision.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/orchestrator"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// ErrInternal masks unexpected pipeline failures. Details go to the log,
// never to the caller.
var ErrInternal = errors.New("internal verification error")

// Pipeline wires the verification stages together. One pipeline serves all
// tenants; per-request state lives on the stack.
type Pipeline struct {
	orchestrator *orchestrator.Orchestrator
	loader       *rules.Loader
	evaluator    *rules.Evaluator
	calc         *scoring.Calculator
	engine       *decision.Engine
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
}

// New creates a pipeline. metrics may be nil to disable instrumentation.
func New(o *orchestrator.Orchestrator, loader *rules.Loader, evaluator *rules.Evaluator, calc *scoring.Calculator, engine *decision.Engine, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		orchestrator: o,
		loader:       loader,
		evaluator:    evaluator,
		calc:         calc,
		engine:       engine,
		metrics:      m,
		logger:       logger,
		tracer:       otel.Tracer("kestrel/pipeline"),
	}
}

// Request is one verification request.
type Request struct {
	TenantID string                    `json:"-"`
	Payload  *domain.ValidationPayload `json:"payload"`

	// Debug attaches verbose diagnostics to the result.
	Debug bool `json:"debug,omitempty"`
}

// Verify runs the full pipeline. Malformed payloads return
// domain.ErrInvalidPayload before any validation work; everything else that
// goes wrong inside the pipeline is masked as ErrInternal.
func (p *Pipeline) Verify(ctx context.Context, req *Request) (result *domain.VerificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic", "tenant_id", req.TenantID, "panic", r)
			result, err = nil, ErrInternal
		}
	}()

	if req == nil || req.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant", domain.ErrInvalidPayload)
	}
	if err := req.Payload.Validate(); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.verify",
		trace.WithAttributes(attribute.String("tenant.id", req.TenantID)))
	defer span.End()

	started := time.Now()

	// Stage 1: concurrent field validation.
	valCtx, valSpan := p.tracer.Start(ctx, "pipeline.validate_fields")
	outcome := p.orchestrator.Run(valCtx, req.TenantID, req.Payload)
	valSpan.End()
	validationMs := time.Since(started).Milliseconds()
	p.metrics.CountCache(outcome.CacheHits, outcome.CacheMisses)
	for field, r := range outcome.Results {
		if r.ProcessMs >= 0 {
			p.metrics.ObserveValidation(field, r.Provider, float64(r.ProcessMs)/1000)
		}
	}

	// Stage 2: risk scoring over whatever validation produced. Failed
	// fields are simply absent; the score reflects available evidence.
	risk := p.calc.Calculate(outcome.Results)
	span.SetAttributes(
		attribute.Int("risk.score", risk.Score),
		attribute.String("risk.level", string(risk.Level)),
	)

	// Stage 3: sequential rule evaluation.
	rulesStarted := time.Now()
	ruleCtx, ruleSpan := p.tracer.Start(ctx, "pipeline.evaluate_rules")
	loaded := p.loader.Load(ruleCtx, req.TenantID)
	ruleResults := p.evaluator.EvaluateAll(ruleCtx, loaded, &rules.EvalInput{
		Payload:      req.Payload,
		FieldResults: outcome.Results,
		Risk:         risk,
	})
	ruleSpan.End()
	rulesMs := time.Since(rulesStarted).Milliseconds()
	for _, r := range ruleResults {
		p.metrics.CountRule(r.RuleID, r.Triggered, r.Error != "")
	}

	// Stage 4: final decision.
	final := p.engine.Decide(risk, ruleResults, outcome.Results)
	completed := time.Now()

	result = &domain.VerificationResult{
		ID:           uuid.NewString(),
		TenantID:     req.TenantID,
		FieldResults: outcome.Results,
		RuleResults:  ruleResults,
		Decision:     final,
		Metrics: domain.PipelineMetrics{
			StartedAt:     started,
			CompletedAt:   completed,
			ValidationMs:  validationMs,
			RulesMs:       rulesMs,
			TotalMs:       completed.Sub(started).Milliseconds(),
			CacheHits:     outcome.CacheHits,
			CacheMisses:   outcome.CacheMisses,
			ProvidersUsed: outcome.ProvidersUsed,
		},
	}
	if req.Debug {
		result.Debug = &domain.DebugInfo{
			FieldErrors:    outcome.FieldErrors,
			RulesEvaluated: len(ruleResults),
		}
	}

	span.SetAttributes(attribute.String("decision.action", string(final.Action)))
	p.metrics.ObservePipeline(req.TenantID, string(final.Action), completed.Sub(started).Seconds())

	p.logger.Info("verification complete",
		"tenant_id", req.TenantID,
		"result_id", result.ID,
		"action", final.Action,
		"risk_score", risk.Score,
		"risk_level", risk.Level,
		"rules_evaluated", len(ruleResults),
		"cache_hits", outcome.CacheHits,
		"total_ms", result.Metrics.TotalMs,
	)
	return result, nil
}
