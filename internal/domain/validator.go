package domain

import "context"

// Field validators are external collaborators, one per identity attribute.
// Each produces a raw, provider-specific verdict; only the result builder
// depends on the raw shape.

type EmailValidator interface {
	ValidateEmail(ctx context.Context, value string) (*RawResult, error)
}

type PhoneValidator interface {
	// countryHint may be empty.
	ValidatePhone(ctx context.Context, value, countryHint string) (*RawResult, error)
}

type AddressValidator interface {
	ValidateAddress(ctx context.Context, addr *Address) (*RawResult, error)
}

type NameValidator interface {
	ValidateName(ctx context.Context, value string) (*RawResult, error)
}

type IPValidator interface {
	ValidateIP(ctx context.Context, value string) (*RawResult, error)
}

type DeviceValidator interface {
	ValidateDevice(ctx context.Context, userAgent string) (*RawResult, error)
}

// ValidatorSet bundles one validator per field. Any entry may be nil, in
// which case the corresponding field is skipped.
type ValidatorSet struct {
	Email   EmailValidator
	Phone   PhoneValidator
	Address AddressValidator
	Name    NameValidator
	IP      IPValidator
	Device  DeviceValidator
}
