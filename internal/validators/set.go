package validators

import (
	"context"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// NewSet returns the full built-in validator set.
func NewSet() *domain.ValidatorSet {
	return &domain.ValidatorSet{
		Email:   NewEmailValidator(),
		Phone:   NewPhoneValidator(),
		Address: NewAddressValidator(),
		Name:    NewNameValidator(),
		IP:      NewIPValidator(),
		Device:  NewDeviceValidator(),
	}
}

// Static is a canned validator for tests and local development. It serves
// pre-seeded results keyed by field and input value and implements all six
// validator interfaces.
type Static struct {
	// Results maps field name to input value to the canned result.
	Results map[string]map[string]*domain.RawResult

	// Err, when set, is returned by every call.
	Err error

	mu    sync.Mutex
	calls map[string]int
}

// NewStatic creates an empty static validator.
func NewStatic() *Static {
	return &Static{
		Results: map[string]map[string]*domain.RawResult{},
		calls:   map[string]int{},
	}
}

// CallCount reports how many times a field's validator was invoked.
func (s *Static) CallCount(field string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[field]
}

// Seed registers a canned result.
func (s *Static) Seed(field, value string, result *domain.RawResult) *Static {
	if s.Results[field] == nil {
		s.Results[field] = map[string]*domain.RawResult{}
	}
	s.Results[field][value] = result
	return s
}

// Set returns a ValidatorSet backed entirely by this static validator.
func (s *Static) Set() *domain.ValidatorSet {
	return &domain.ValidatorSet{
		Email:   s,
		Phone:   s,
		Address: s,
		Name:    s,
		IP:      s,
		Device:  s,
	}
}

func (s *Static) lookup(field, value string) (*domain.RawResult, error) {
	s.mu.Lock()
	s.calls[field]++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if r, ok := s.Results[field][value]; ok {
		return r, nil
	}
	// Unseeded values pass with no signals.
	return &domain.RawResult{Valid: true, Provider: "static"}, nil
}

func (s *Static) ValidateEmail(ctx context.Context, value string) (*domain.RawResult, error) {
	return s.lookup(domain.FieldEmail, value)
}

func (s *Static) ValidatePhone(ctx context.Context, value, countryHint string) (*domain.RawResult, error) {
	return s.lookup(domain.FieldPhone, value)
}

func (s *Static) ValidateAddress(ctx context.Context, addr *domain.Address) (*domain.RawResult, error) {
	key := ""
	if addr != nil {
		key = addr.Line1
	}
	return s.lookup(domain.FieldAddress, key)
}

func (s *Static) ValidateName(ctx context.Context, value string) (*domain.RawResult, error) {
	return s.lookup(domain.FieldName, value)
}

func (s *Static) ValidateIP(ctx context.Context, value string) (*domain.RawResult, error) {
	return s.lookup(domain.FieldIP, value)
}

func (s *Static) ValidateDevice(ctx context.Context, userAgent string) (*domain.RawResult, error) {
	return s.lookup(domain.FieldDevice, userAgent)
}
