// Package worker consumes verification requests from the event bus and
// publishes decisions, so callers can verify asynchronously instead of
// through the HTTP API.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/pipeline"
)

// Worker bridges the event bus to the pipeline for a fixed set of tenants.
type Worker struct {
	bus      domain.EventBus
	pipeline *pipeline.Pipeline
	tenants  []string
	logger   *slog.Logger

	subs []domain.Subscription
}

// New creates a worker serving the given tenants.
func New(bus domain.EventBus, p *pipeline.Pipeline, tenants []string, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{bus: bus, pipeline: p, tenants: tenants, logger: logger}
}

// Start subscribes to verification requests for every configured tenant.
func (w *Worker) Start(ctx context.Context) error {
	for _, tenant := range w.tenants {
		sub, err := w.bus.Subscribe(ctx, tenant, domain.TopicVerificationRequested, w.handle)
		if err != nil {
			w.Stop()
			return fmt.Errorf("subscribe tenant %s: %w", tenant, err)
		}
		w.subs = append(w.subs, sub)
		w.logger.Info("worker subscribed", "tenant_id", tenant, "topic", domain.TopicVerificationRequested)
	}
	return nil
}

// Stop cancels all subscriptions.
func (w *Worker) Stop() {
	for _, sub := range w.subs {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Warn("unsubscribe failed", "topic", sub.Topic(), "error", err)
		}
	}
	w.subs = nil
}

// handle runs one queued verification and publishes the outcome. Bad
// requests are logged and dropped; there is no caller to bounce them to.
func (w *Worker) handle(ctx context.Context, msg *domain.Message) error {
	var payload domain.ValidationPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		w.logger.Warn("dropping malformed verification request",
			"tenant_id", msg.TenantID, "message_id", msg.ID, "error", err)
		return nil
	}

	result, err := w.pipeline.Verify(ctx, &pipeline.Request{
		TenantID: msg.TenantID,
		Payload:  &payload,
	})
	if err != nil {
		w.logger.Warn("queued verification failed",
			"tenant_id", msg.TenantID, "message_id", msg.ID, "error", err)
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := w.bus.Publish(ctx, msg.TenantID, domain.TopicDecision, data); err != nil {
		return fmt.Errorf("publish decision: %w", err)
	}

	// Blocks and manual reviews additionally raise an alert for operator
	// attention.
	action := result.Decision.Action
	if action == domain.ActionBlock || action == domain.ActionReview {
		if err := w.bus.Publish(ctx, msg.TenantID, domain.TopicAlert, data); err != nil {
			w.logger.Warn("publish alert failed", "tenant_id", msg.TenantID, "error", err)
		}
	}
	return nil
}
