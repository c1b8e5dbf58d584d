package domain

// Field names used across the pipeline. Scoring and rule context use the
// same identifiers, and the factor list is emitted in this order.
const (
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldAddress = "address"
	FieldName    = "name"
	FieldIP      = "ip"
	FieldDevice  = "device"
)

// FieldOrder is the fixed field evaluation order. The ordering of risk
// factors in audit output follows it and is a contract with consumers.
var FieldOrder = []string{FieldEmail, FieldPhone, FieldAddress, FieldName, FieldIP, FieldDevice}

// Provider flag names. Validators set these in RawResult.Flags and the
// scoring weight table keys off them.
const (
	FlagDisposable     = "disposable"
	FlagRoleAccount    = "role_account"
	FlagFreeProvider   = "free_provider"
	FlagNoMX           = "no_mx"
	FlagCatchAll       = "catch_all"
	FlagUnreachable    = "unreachable"
	FlagVOIP           = "voip"
	FlagRecentlyPorted = "recently_ported"
	FlagPOBox          = "po_box"
	FlagNonDeliverable = "non_deliverable"
	FlagPostalMismatch = "postal_mismatch"
	FlagOutOfBounds    = "out_of_bounds"
	FlagGeocodeFailed  = "geocode_failed"
	FlagVPN            = "vpn"
	FlagProxy          = "proxy"
	FlagTor            = "tor"
	FlagDatacenter     = "datacenter"
	FlagBot            = "bot"
	FlagFraud          = "fraud"
)

// RawResult is the provider-specific output of a single field validator.
// Only the result builder depends on this shape.
type RawResult struct {
	Valid    bool   `json:"valid"`
	Provider string `json:"provider"`

	// Trusted marks providers whose verdicts carry extra confidence.
	Trusted bool `json:"trusted,omitempty"`

	// PartialSignal is a positive signal despite an overall invalid
	// verdict, e.g. a resolvable domain behind a malformed address.
	PartialSignal bool `json:"partialSignal,omitempty"`

	ReasonCodes []string        `json:"reasonCodes,omitempty"`
	Flags       map[string]bool `json:"flags,omitempty"`
	Attributes  map[string]any  `json:"attributes,omitempty"`
}

// Flag reports whether a provider flag is set.
func (r *RawResult) Flag(name string) bool {
	return r != nil && r.Flags[name]
}

// FieldValidationResult is the normalized per-field validation outcome
// produced by the result builder. It may be cached per (type, value, tenant).
type FieldValidationResult struct {
	Field       string            `json:"field"`
	Valid       bool              `json:"valid"`
	Confidence  int               `json:"confidence"` // 0-100
	ReasonCodes []string          `json:"reasonCodes,omitempty"`
	RiskScore   int               `json:"riskScore"` // 0-100, field-local
	ProcessMs   int64             `json:"processMs"`
	Provider    string            `json:"provider"`
	Flags       map[string]bool   `json:"flags,omitempty"`
	Attributes  map[string]any    `json:"attributes,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Flag reports whether a normalized flag is set on the result.
func (r *FieldValidationResult) Flag(name string) bool {
	return r != nil && r.Flags[name]
}
