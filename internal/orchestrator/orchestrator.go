// Package orchestrator fans a validation payload out to the field
// validators, caching normalized results per tenant.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/results"
)

// cacheableFields are the fields whose results are content-addressed and
// reused across requests. IP and device verdicts are cheap and
// time-sensitive, so they are always recomputed.
var cacheableFields = map[string]bool{
	domain.FieldEmail:   true,
	domain.FieldPhone:   true,
	domain.FieldAddress: true,
}

// Orchestrator runs all applicable field validations for one payload
// concurrently. One orchestrator serves all requests.
type Orchestrator struct {
	validators *domain.ValidatorSet
	cache      domain.Cache
	builder    *results.Builder
	cacheTTL   time.Duration
	logger     *slog.Logger

	// sf collapses concurrent validations of the same (tenant, field,
	// value) into one validator call.
	sf singleflight.Group
}

// New creates an orchestrator. cache may be nil to disable caching.
func New(validators *domain.ValidatorSet, c domain.Cache, builder *results.Builder, cacheTTL time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		validators: validators,
		cache:      c,
		builder:    builder,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Outcome is the aggregate of one fan-out run.
type Outcome struct {
	Results map[string]*domain.FieldValidationResult

	// FieldErrors records validator failures by field. A failed field is
	// absent from Results; its siblings are unaffected.
	FieldErrors map[string]string

	CacheHits     int
	CacheMisses   int
	ProvidersUsed []string
}

// Run validates every present payload field concurrently and blocks until
// all complete or the context expires. Failures are isolated per field.
func (o *Orchestrator) Run(ctx context.Context, tenantID string, payload *domain.ValidationPayload) *Outcome {
	outcome := &Outcome{
		Results:     make(map[string]*domain.FieldValidationResult),
		FieldErrors: make(map[string]string),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, field := range payload.Fields() {
		if !o.hasValidator(field) {
			continue
		}

		wg.Add(1)
		go func(field string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					outcome.FieldErrors[field] = fmt.Sprintf("validator panic: %v", r)
					mu.Unlock()
					o.logger.Error("field validator panicked", "field", field, "panic", r)
				}
			}()

			result, hit, err := o.validateField(ctx, tenantID, field, payload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcome.FieldErrors[field] = err.Error()
				o.logger.Warn("field validation failed",
					"tenant_id", tenantID, "field", field, "error", err)
				return
			}
			outcome.Results[field] = result
			if cacheableFields[field] && o.cache != nil {
				if hit {
					outcome.CacheHits++
				} else {
					outcome.CacheMisses++
				}
			}
			if !hit {
				outcome.ProvidersUsed = append(outcome.ProvidersUsed, result.Provider)
			}
		}(field)
	}

	wg.Wait()
	return outcome
}

func (o *Orchestrator) hasValidator(field string) bool {
	switch field {
	case domain.FieldEmail:
		return o.validators.Email != nil
	case domain.FieldPhone:
		return o.validators.Phone != nil
	case domain.FieldAddress:
		return o.validators.Address != nil
	case domain.FieldName:
		return o.validators.Name != nil
	case domain.FieldIP:
		return o.validators.IP != nil
	case domain.FieldDevice:
		return o.validators.Device != nil
	}
	return false
}

// validateField runs one field through cache, singleflight, and the
// validator. hit reports whether the result came from cache.
func (o *Orchestrator) validateField(ctx context.Context, tenantID, field string, payload *domain.ValidationPayload) (*domain.FieldValidationResult, bool, error) {
	cacheable := cacheableFields[field] && o.cache != nil
	var key string

	if cacheable {
		key = cache.ValidationKey(field, payload.NormalizedValue(field), tenantID)
		if cached := o.cacheGet(ctx, tenantID, key); cached != nil {
			return cached, true, nil
		}
	}

	sfKey := tenantID + "|" + field + "|" + payload.NormalizedValue(field)
	v, err, _ := o.sf.Do(sfKey, func() (any, error) {
		start := time.Now()
		raw, err := o.callValidator(ctx, field, payload)
		if err != nil {
			return nil, err
		}
		result := o.builder.Build(field, raw, time.Since(start))

		if cacheable {
			o.cacheSet(ctx, tenantID, key, result)
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*domain.FieldValidationResult), false, nil
}

func (o *Orchestrator) callValidator(ctx context.Context, field string, payload *domain.ValidationPayload) (*domain.RawResult, error) {
	switch field {
	case domain.FieldEmail:
		return o.validators.Email.ValidateEmail(ctx, payload.Email)
	case domain.FieldPhone:
		countryHint := ""
		if payload.Address != nil {
			countryHint = payload.Address.Country
		}
		return o.validators.Phone.ValidatePhone(ctx, payload.Phone, countryHint)
	case domain.FieldAddress:
		return o.validators.Address.ValidateAddress(ctx, payload.Address)
	case domain.FieldName:
		return o.validators.Name.ValidateName(ctx, payload.Name)
	case domain.FieldIP:
		return o.validators.IP.ValidateIP(ctx, payload.IP)
	case domain.FieldDevice:
		return o.validators.Device.ValidateDevice(ctx, payload.UserAgent)
	}
	return nil, fmt.Errorf("no validator for field %q", field)
}

// cacheGet treats every cache failure as a miss. The cache is an
// optimization, never a dependency.
func (o *Orchestrator) cacheGet(ctx context.Context, tenantID, key string) *domain.FieldValidationResult {
	data, err := o.cache.Get(ctx, tenantID, key)
	if err != nil {
		o.logger.Warn("cache get failed, treating as miss", "tenant_id", tenantID, "error", err)
		return nil
	}
	if data == nil {
		return nil
	}

	var result domain.FieldValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		o.logger.Warn("cache entry corrupt, treating as miss", "tenant_id", tenantID, "error", err)
		return nil
	}
	return &result
}

func (o *Orchestrator) cacheSet(ctx context.Context, tenantID, key string, result *domain.FieldValidationResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := o.cache.Set(ctx, tenantID, key, data, o.cacheTTL); err != nil {
		o.logger.Warn("cache set failed", "tenant_id", tenantID, "error", err)
	}
}
