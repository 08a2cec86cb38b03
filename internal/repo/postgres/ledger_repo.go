package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNoTokens = errors.New("no tokens remaining")

const (
	ConsumeKindUnlimited = "unlimited"
	ConsumeKindFreeTrial = "free_trial"
	ConsumeKindPaid      = "paid"
)

type LedgerRepo struct {
	pool *pgxpool.Pool
}

type DeviceAccountRecord struct {
	DeviceID       string
	TotalTokens    int
	UsedTokens     int
	FreeTrialUsed  bool
	UnlimitedUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r DeviceAccountRecord) Remaining() int {
	return r.TotalTokens - r.UsedTokens
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Get returns the account for a device, creating it on first contact.
func (r *LedgerRepo) Get(ctx context.Context, deviceID string) (DeviceAccountRecord, error) {
	if r.pool == nil {
		return DeviceAccountRecord{}, fmt.Errorf("postgres pool is nil")
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return DeviceAccountRecord{}, fmt.Errorf("device id is required")
	}

	if err := r.ensure(ctx, r.pool, deviceID); err != nil {
		return DeviceAccountRecord{}, err
	}

	rec, err := scanDeviceAccount(r.pool.QueryRow(ctx, `
SELECT device_id, total_tokens, used_tokens, free_trial_used, unlimited_until, created_at, updated_at
FROM device_accounts
WHERE device_id = $1
LIMIT 1
`, deviceID))
	if err != nil {
		return DeviceAccountRecord{}, fmt.Errorf("get device account: %w", err)
	}

	return rec, nil
}

// ConsumeOne atomically spends one unit of entitlement for the device.
// Priority: active unlimited window, then the one-shot free trial, then the
// paid balance. The row lock makes concurrent calls for the same device
// serialize; two callers can never both spend the last unit.
func (r *LedgerRepo) ConsumeOne(ctx context.Context, deviceID string, now time.Time) (DeviceAccountRecord, string, error) {
	if r.pool == nil {
		return DeviceAccountRecord{}, "", fmt.Errorf("postgres pool is nil")
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return DeviceAccountRecord{}, "", fmt.Errorf("device id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		out  DeviceAccountRecord
		kind string
	)
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if err := r.ensure(txCtx, tx, deviceID); err != nil {
			return err
		}

		rec, err := scanDeviceAccount(tx.QueryRow(txCtx, `
SELECT device_id, total_tokens, used_tokens, free_trial_used, unlimited_until, created_at, updated_at
FROM device_accounts
WHERE device_id = $1
FOR UPDATE
`, deviceID))
		if err != nil {
			return fmt.Errorf("lock device account: %w", err)
		}

		switch {
		case rec.UnlimitedUntil != nil && rec.UnlimitedUntil.After(now.UTC()):
			out = rec
			kind = ConsumeKindUnlimited
			return nil

		case !rec.FreeTrialUsed:
			// Trial consumption deliberately leaves used_tokens alone so
			// the displayed remaining balance matches what the user sees.
			updated, err := scanDeviceAccount(tx.QueryRow(txCtx, `
UPDATE device_accounts
SET free_trial_used = TRUE, updated_at = NOW()
WHERE device_id = $1
RETURNING device_id, total_tokens, used_tokens, free_trial_used, unlimited_until, created_at, updated_at
`, deviceID))
			if err != nil {
				return fmt.Errorf("consume free trial: %w", err)
			}
			out = updated
			kind = ConsumeKindFreeTrial
			return nil

		case rec.Remaining() > 0:
			updated, err := scanDeviceAccount(tx.QueryRow(txCtx, `
UPDATE device_accounts
SET used_tokens = used_tokens + 1, updated_at = NOW()
WHERE device_id = $1
  AND used_tokens < total_tokens
RETURNING device_id, total_tokens, used_tokens, free_trial_used, unlimited_until, created_at, updated_at
`, deviceID))
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrNoTokens
				}
				return fmt.Errorf("consume paid token: %w", err)
			}
			out = updated
			kind = ConsumeKindPaid
			return nil

		default:
			return ErrNoTokens
		}
	})
	if err != nil {
		return DeviceAccountRecord{}, "", err
	}

	return out, kind, nil
}

// GrantTokens adds amount to the cumulative total. Amounts <= 0 are a no-op.
func (r *LedgerRepo) GrantTokens(ctx context.Context, deviceID string, amount int) (DeviceAccountRecord, error) {
	if r.pool == nil {
		return DeviceAccountRecord{}, fmt.Errorf("postgres pool is nil")
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return DeviceAccountRecord{}, fmt.Errorf("device id is required")
	}
	if amount <= 0 {
		return r.Get(ctx, deviceID)
	}

	rec, err := scanDeviceAccount(r.pool.QueryRow(ctx, `
INSERT INTO device_accounts (device_id, total_tokens, used_tokens, free_trial_used, created_at, updated_at)
VALUES ($1, $2, 0, FALSE, NOW(), NOW())
ON CONFLICT (device_id) DO UPDATE SET
	total_tokens = device_accounts.total_tokens + EXCLUDED.total_tokens,
	updated_at = NOW()
RETURNING device_id, total_tokens, used_tokens, free_trial_used, unlimited_until, created_at, updated_at
`, deviceID, amount))
	if err != nil {
		return DeviceAccountRecord{}, fmt.Errorf("grant tokens: %w", err)
	}

	return rec, nil
}

// GrantUnlimited opens or extends the unlimited window. An active window is
// extended from its current expiry, never shortened.
func (r *LedgerRepo) GrantUnlimited(ctx context.Context, deviceID string, days int, now time.Time) (DeviceAccountRecord, error) {
	if r.pool == nil {
		return DeviceAccountRecord{}, fmt.Errorf("postgres pool is nil")
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return DeviceAccountRecord{}, fmt.Errorf("device id is required")
	}
	if days <= 0 {
		return r.Get(ctx, deviceID)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec, err := scanDeviceAccount(r.pool.QueryRow(ctx, `
INSERT INTO device_accounts (device_id, total_tokens, used_tokens, free_trial_used, unlimited_until, created_at, updated_at)
VALUES ($1, 0, 0, FALSE, $2::timestamptz + make_interval(days => $3), NOW(), NOW())
ON CONFLICT (device_id) DO UPDATE SET
	unlimited_until = CASE
		WHEN device_accounts.unlimited_until IS NOT NULL AND device_accounts.unlimited_until > $2::timestamptz
			THEN device_accounts.unlimited_until + make_interval(days => $3)
		ELSE $2::timestamptz + make_interval(days => $3)
	END,
	updated_at = NOW()
RETURNING device_id, total_tokens, used_tokens, free_trial_used, unlimited_until, created_at, updated_at
`, deviceID, now.UTC(), days))
	if err != nil {
		return DeviceAccountRecord{}, fmt.Errorf("grant unlimited: %w", err)
	}

	return rec, nil
}

// Delete removes the account entirely. Ops/test use only.
func (r *LedgerRepo) Delete(ctx context.Context, deviceID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}

	if _, err := r.pool.Exec(ctx, `
DELETE FROM device_accounts
WHERE device_id = $1
`, deviceID); err != nil {
		return fmt.Errorf("delete device account: %w", err)
	}

	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// ensure vivifies the account row with zero counters on first contact.
func (r *LedgerRepo) ensure(ctx context.Context, q execer, deviceID string) error {
	if _, err := q.Exec(ctx, `
INSERT INTO device_accounts (device_id, total_tokens, used_tokens, free_trial_used, created_at, updated_at)
VALUES ($1, 0, 0, FALSE, NOW(), NOW())
ON CONFLICT (device_id) DO NOTHING
`, deviceID); err != nil {
		return fmt.Errorf("ensure device account row: %w", err)
	}
	return nil
}

func scanDeviceAccount(row pgx.Row) (DeviceAccountRecord, error) {
	var rec DeviceAccountRecord
	if err := row.Scan(
		&rec.DeviceID,
		&rec.TotalTokens,
		&rec.UsedTokens,
		&rec.FreeTrialUsed,
		&rec.UnlimitedUntil,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return DeviceAccountRecord{}, err
	}
	return rec, nil
}
