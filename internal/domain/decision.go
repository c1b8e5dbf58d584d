package domain

import "time"

// RiskLevel is the coarse bucket derived from the numeric risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAnalysis is the output of the risk score calculator. Factors list
// every penalty applied, in fixed field order; the ordering is surfaced as
// audit text and is part of the contract.
type RiskAnalysis struct {
	Score   int       `json:"score"` // clamped to [0,100]
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

// DecisionAction is the final automated decision.
type DecisionAction string

const (
	ActionApprove DecisionAction = "approve"
	ActionHold    DecisionAction = "hold"
	ActionBlock   DecisionAction = "block"
	ActionReview  DecisionAction = "review"
)

// FinalDecision combines triggered rule actions and the risk level through
// the tie-break policy.
type FinalDecision struct {
	Action             DecisionAction `json:"action"`
	Confidence         float64        `json:"confidence"`
	Reasons            []string       `json:"reasons"`
	RiskScore          int            `json:"riskScore"`
	RiskLevel          RiskLevel      `json:"riskLevel"`
	RecommendedActions []string       `json:"recommendedActions,omitempty"`
}

// VerificationResult is the full output of one pipeline run.
type VerificationResult struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	FieldResults map[string]*FieldValidationResult `json:"fieldResults"`
	RuleResults  []RuleEvaluationResult            `json:"ruleResults"`
	Decision     FinalDecision                     `json:"decision"`

	Metrics PipelineMetrics `json:"metrics"`

	// Debug is attached only when explicitly requested.
	Debug *DebugInfo `json:"debug,omitempty"`
}

// PipelineMetrics records performance data for one verification request.
type PipelineMetrics struct {
	StartedAt     time.Time `json:"startedAt"`
	CompletedAt   time.Time `json:"completedAt"`
	ValidationMs  int64     `json:"validationMs"`
	RulesMs       int64     `json:"rulesMs"`
	TotalMs       int64     `json:"totalMs"`
	CacheHits     int       `json:"cacheHits"`
	CacheMisses   int       `json:"cacheMisses"`
	ProvidersUsed []string  `json:"providersUsed,omitempty"`
}

// DebugInfo carries verbose diagnostics for one request.
type DebugInfo struct {
	FieldErrors    map[string]string `json:"fieldErrors,omitempty"`
	RulesEvaluated int               `json:"rulesEvaluated"`
}
