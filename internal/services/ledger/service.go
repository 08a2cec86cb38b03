package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/densematrix-labs/ai-excuse-generator/internal/pkg/validate"
	pgrepo "github.com/densematrix-labs/ai-excuse-generator/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNoTokens   = errors.New("no tokens remaining")
)

// Entitlement kinds reported by AuthorizeAndConsume.
const (
	KindUnlimited = pgrepo.ConsumeKindUnlimited
	KindFreeTrial = pgrepo.ConsumeKindFreeTrial
	KindPaid      = pgrepo.ConsumeKindPaid
)

// unlimitedRemaining is the sentinel shown while an unlimited window is
// active; clients treat it as "no meter".
const unlimitedRemaining = 999999

type Store interface {
	Get(ctx context.Context, deviceID string) (pgrepo.DeviceAccountRecord, error)
	ConsumeOne(ctx context.Context, deviceID string, now time.Time) (pgrepo.DeviceAccountRecord, string, error)
	GrantTokens(ctx context.Context, deviceID string, amount int) (pgrepo.DeviceAccountRecord, error)
	GrantUnlimited(ctx context.Context, deviceID string, days int, now time.Time) (pgrepo.DeviceAccountRecord, error)
	Delete(ctx context.Context, deviceID string) error
}

type Service struct {
	store Store
	now   func() time.Time
}

type Status struct {
	DeviceID           string
	TotalTokens        int
	UsedTokens         int
	RemainingTokens    int
	FreeTrialAvailable bool
	IsUnlimited        bool
	UnlimitedUntil     *time.Time
}

// Grant is a successful consume outcome. Denial is ErrNoTokens, which is an
// expected user-facing condition, not a server fault.
type Grant struct {
	Kind      string
	Remaining int
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

func (s *Service) GetStatus(ctx context.Context, deviceID string) (Status, error) {
	if !validate.DeviceID(deviceID) {
		return Status{}, ErrValidation
	}
	if s.store == nil {
		return Status{}, fmt.Errorf("ledger store is nil")
	}

	rec, err := s.store.Get(ctx, deviceID)
	if err != nil {
		return Status{}, err
	}

	return s.project(rec), nil
}

// AuthorizeAndConsume spends one unit of entitlement, strict priority:
// unlimited window, free trial, paid balance. Atomicity per device is the
// store's contract.
func (s *Service) AuthorizeAndConsume(ctx context.Context, deviceID string) (Grant, error) {
	if !validate.DeviceID(deviceID) {
		return Grant{}, ErrValidation
	}
	if s.store == nil {
		return Grant{}, fmt.Errorf("ledger store is nil")
	}

	rec, kind, err := s.store.ConsumeOne(ctx, deviceID, s.now().UTC())
	if err != nil {
		if errors.Is(err, pgrepo.ErrNoTokens) {
			return Grant{}, ErrNoTokens
		}
		return Grant{}, err
	}

	remaining := rec.Remaining()
	if kind == KindUnlimited {
		remaining = unlimitedRemaining
	}

	return Grant{Kind: kind, Remaining: remaining}, nil
}

// Grant adds paid tokens. Amounts <= 0 are a no-op returning current status.
func (s *Service) Grant(ctx context.Context, deviceID string, amount int) (Status, error) {
	if !validate.DeviceID(deviceID) {
		return Status{}, ErrValidation
	}
	if s.store == nil {
		return Status{}, fmt.Errorf("ledger store is nil")
	}

	rec, err := s.store.GrantTokens(ctx, deviceID, amount)
	if err != nil {
		return Status{}, err
	}

	return s.project(rec), nil
}

// GrantUnlimited opens or extends the unlimited window; an active window is
// extended from its current expiry.
func (s *Service) GrantUnlimited(ctx context.Context, deviceID string, days int) (Status, error) {
	if !validate.DeviceID(deviceID) {
		return Status{}, ErrValidation
	}
	if s.store == nil {
		return Status{}, fmt.Errorf("ledger store is nil")
	}

	rec, err := s.store.GrantUnlimited(ctx, deviceID, days, s.now().UTC())
	if err != nil {
		return Status{}, err
	}

	return s.project(rec), nil
}

// Reset deletes the account. Ops/test use only; gated upstream.
func (s *Service) Reset(ctx context.Context, deviceID string) error {
	if !validate.DeviceID(deviceID) {
		return ErrValidation
	}
	if s.store == nil {
		return fmt.Errorf("ledger store is nil")
	}

	return s.store.Delete(ctx, deviceID)
}

func (s *Service) project(rec pgrepo.DeviceAccountRecord) Status {
	now := s.now().UTC()
	isUnlimited := rec.UnlimitedUntil != nil && rec.UnlimitedUntil.After(now)

	remaining := rec.Remaining()
	if isUnlimited {
		remaining = unlimitedRemaining
	}

	return Status{
		DeviceID:           rec.DeviceID,
		TotalTokens:        rec.TotalTokens,
		UsedTokens:         rec.UsedTokens,
		RemainingTokens:    remaining,
		FreeTrialAvailable: !rec.FreeTrialUsed,
		IsUnlimited:        isUnlimited,
		UnlimitedUntil:     rec.UnlimitedUntil,
	}
}
