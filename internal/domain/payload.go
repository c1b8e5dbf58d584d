// Package domain defines the core types and interfaces for Kestrel.
package domain

import (
	"errors"
	"strings"
)

// ErrInvalidPayload marks a malformed payload. It is a client error and is
// returned before any validation or scoring work happens.
var ErrInvalidPayload = errors.New("invalid payload")

// ValidationPayload is the identity/transaction payload submitted for one
// verification request. It is ephemeral and never persisted by the core.
type ValidationPayload struct {
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Address   *Address `json:"address,omitempty"`
	Name      string   `json:"name,omitempty"`
	IP        string   `json:"ip,omitempty"`
	UserAgent string   `json:"userAgent,omitempty"`

	TransactionAmount float64 `json:"transactionAmount,omitempty"`
	Currency          string  `json:"currency,omitempty"`
	SessionID         string  `json:"sessionId,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Address is a structured postal address.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Validate checks the payload shape. It rejects payloads with no identity
// fields at all and scalar fields with impossible values. This is a
// precondition check, distinct from the scoring pipeline.
func (p *ValidationPayload) Validate() error {
	if p == nil {
		return ErrInvalidPayload
	}
	if p.Email == "" && p.Phone == "" && p.Address == nil && p.Name == "" && p.IP == "" && p.UserAgent == "" {
		return errors.Join(ErrInvalidPayload, errors.New("no identity fields present"))
	}
	if p.TransactionAmount < 0 {
		return errors.Join(ErrInvalidPayload, errors.New("transactionAmount must not be negative"))
	}
	if p.Currency != "" && len(p.Currency) != 3 {
		return errors.Join(ErrInvalidPayload, errors.New("currency must be a 3-letter code"))
	}
	if p.Address != nil && p.Address.Line1 == "" && p.Address.City == "" && p.Address.PostalCode == "" {
		return errors.Join(ErrInvalidPayload, errors.New("address has no usable components"))
	}
	return nil
}

// Fields returns the names of the fields present in the payload, in the
// fixed evaluation order used throughout the pipeline.
func (p *ValidationPayload) Fields() []string {
	var fields []string
	if p.Email != "" {
		fields = append(fields, FieldEmail)
	}
	if p.Phone != "" {
		fields = append(fields, FieldPhone)
	}
	if p.Address != nil {
		fields = append(fields, FieldAddress)
	}
	if p.Name != "" {
		fields = append(fields, FieldName)
	}
	if p.IP != "" {
		fields = append(fields, FieldIP)
	}
	if p.UserAgent != "" {
		fields = append(fields, FieldDevice)
	}
	return fields
}

// NormalizedValue returns the canonical per-field value used for cache and
// deduplication keys. It must distinguish any two payloads whose validation
// results could differ for the field.
func (p *ValidationPayload) NormalizedValue(field string) string {
	switch field {
	case FieldEmail:
		return strings.ToLower(strings.TrimSpace(p.Email))
	case FieldPhone:
		var b strings.Builder
		for _, r := range p.Phone {
			if r >= '0' && r <= '9' || r == '+' {
				b.WriteRune(r)
			}
		}
		return b.String()
	case FieldAddress:
		if p.Address == nil {
			return ""
		}
		a := p.Address
		parts := []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country}
		return strings.ToLower(strings.Join(parts, "|"))
	case FieldName:
		return strings.ToLower(strings.TrimSpace(p.Name))
	case FieldIP:
		return strings.TrimSpace(p.IP)
	case FieldDevice:
		return strings.TrimSpace(p.UserAgent)
	default:
		return ""
	}
}
