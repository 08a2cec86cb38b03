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

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

type PaymentRepo struct {
	pool *pgxpool.Pool
}

type PaymentTransactionRecord struct {
	CheckoutID    string
	DeviceID      string
	ProductID     string
	Amount        float64
	Currency      string
	Status        string
	TokensGranted int
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// GrantSpec is what a completed checkout awards the device. Exactly one of
// Tokens or UnlimitedDays is non-zero; both zero records the payment with
// nothing granted (unrecognized but verified product).
type GrantSpec struct {
	Tokens        int
	UnlimitedDays int
}

type CompleteInput struct {
	CheckoutID string
	DeviceID   string
	ProductID  string
	Amount     float64
	Currency   string
	Grant      GrantSpec
}

func NewPaymentRepo(pool *pgxpool.Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// CreatePending records a checkout session. Re-creating an existing
// checkout id returns the stored row untouched.
func (r *PaymentRepo) CreatePending(ctx context.Context, checkoutID, deviceID, productID string) (PaymentTransactionRecord, error) {
	if r.pool == nil {
		return PaymentTransactionRecord{}, fmt.Errorf("postgres pool is nil")
	}
	checkoutID = strings.TrimSpace(checkoutID)
	deviceID = strings.TrimSpace(deviceID)
	if checkoutID == "" || deviceID == "" {
		return PaymentTransactionRecord{}, fmt.Errorf("invalid pending payment payload")
	}

	rec, err := scanPaymentTransaction(r.pool.QueryRow(ctx, `
INSERT INTO payment_transactions (checkout_id, device_id, product_id, status, tokens_granted, created_at)
VALUES ($1, $2, $3, 'pending', 0, NOW())
ON CONFLICT (checkout_id) DO UPDATE
SET checkout_id = payment_transactions.checkout_id
RETURNING checkout_id, device_id, product_id, amount, currency, status, tokens_granted, created_at, completed_at
`, checkoutID, deviceID, strings.TrimSpace(productID)))
	if err != nil {
		return PaymentTransactionRecord{}, fmt.Errorf("create pending payment: %w", err)
	}

	return rec, nil
}

// Complete flips a pending transaction to completed and applies the grant to
// the device account in the same transaction. A row that already left the
// pending state is untouched and reported with applied=false: completed means
// webhook redelivery, failed means the checkout was expired by cleanup before
// the webhook arrived. The status check and the flip happen under the same
// row lock.
func (r *PaymentRepo) Complete(ctx context.Context, in CompleteInput, now time.Time) (PaymentTransactionRecord, bool, error) {
	if r.pool == nil {
		return PaymentTransactionRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	in.CheckoutID = strings.TrimSpace(in.CheckoutID)
	in.DeviceID = strings.TrimSpace(in.DeviceID)
	if in.CheckoutID == "" || in.DeviceID == "" {
		return PaymentTransactionRecord{}, false, fmt.Errorf("invalid complete payment payload")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		out     PaymentTransactionRecord
		applied bool
	)
	err := WithTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := r.lockOrCreateTx(txCtx, tx, in)
		if err != nil {
			return err
		}

		if !strings.EqualFold(rec.Status, PaymentStatusPending) {
			out = rec
			applied = false
			return nil
		}

		if err := r.applyGrantTx(txCtx, tx, in.DeviceID, in.Grant, now); err != nil {
			return err
		}

		granted := in.Grant.Tokens
		if granted < 0 {
			granted = 0
		}
		updated, err := scanPaymentTransaction(tx.QueryRow(txCtx, `
UPDATE payment_transactions
SET
	status = 'completed',
	amount = $2,
	currency = $3,
	tokens_granted = $4,
	completed_at = $5
WHERE checkout_id = $1
RETURNING checkout_id, device_id, product_id, amount, currency, status, tokens_granted, created_at, completed_at
`, in.CheckoutID, in.Amount, strings.ToUpper(strings.TrimSpace(in.Currency)), granted, now.UTC()))
		if err != nil {
			return fmt.Errorf("mark payment completed: %w", err)
		}

		out = updated
		applied = true
		return nil
	})
	if err != nil {
		return PaymentTransactionRecord{}, false, err
	}

	return out, applied, nil
}

// ExpirePendingOlderThan marks abandoned pending checkouts as failed.
func (r *PaymentRepo) ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}
	if cutoff.IsZero() {
		return 0, fmt.Errorf("cutoff is required")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE payment_transactions
SET status = 'failed'
WHERE status = 'pending'
  AND created_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire pending payments: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PaymentRepo) lockOrCreateTx(ctx context.Context, tx pgx.Tx, in CompleteInput) (PaymentTransactionRecord, error) {
	rec, err := scanPaymentTransaction(tx.QueryRow(ctx, `
SELECT checkout_id, device_id, product_id, amount, currency, status, tokens_granted, created_at, completed_at
FROM payment_transactions
WHERE checkout_id = $1
FOR UPDATE
`, in.CheckoutID))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PaymentTransactionRecord{}, fmt.Errorf("lock payment transaction: %w", err)
	}

	// A webhook can arrive for a checkout created outside our API; record
	// it so a verified payment never vanishes untracked.
	rec, err = scanPaymentTransaction(tx.QueryRow(ctx, `
INSERT INTO payment_transactions (checkout_id, device_id, product_id, status, tokens_granted, created_at)
VALUES ($1, $2, $3, 'pending', 0, NOW())
RETURNING checkout_id, device_id, product_id, amount, currency, status, tokens_granted, created_at, completed_at
`, in.CheckoutID, in.DeviceID, strings.TrimSpace(in.ProductID)))
	if err == nil {
		return rec, nil
	}
	if !isUniqueViolation(err) {
		return PaymentTransactionRecord{}, fmt.Errorf("create payment transaction from webhook: %w", err)
	}

	// Concurrent first delivery of the same checkout: another transaction
	// inserted the row between our SELECT and INSERT. Lock its row instead.
	rec, err = scanPaymentTransaction(tx.QueryRow(ctx, `
SELECT checkout_id, device_id, product_id, amount, currency, status, tokens_granted, created_at, completed_at
FROM payment_transactions
WHERE checkout_id = $1
FOR UPDATE
`, in.CheckoutID))
	if err != nil {
		return PaymentTransactionRecord{}, fmt.Errorf("lock payment transaction after insert race: %w", err)
	}

	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PaymentRepo) applyGrantTx(ctx context.Context, tx pgx.Tx, deviceID string, grant GrantSpec, now time.Time) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO device_accounts (device_id, total_tokens, used_tokens, free_trial_used, created_at, updated_at)
VALUES ($1, 0, 0, FALSE, NOW(), NOW())
ON CONFLICT (device_id) DO NOTHING
`, deviceID); err != nil {
		return fmt.Errorf("ensure device account row: %w", err)
	}

	if grant.Tokens > 0 {
		if _, err := tx.Exec(ctx, `
UPDATE device_accounts
SET total_tokens = total_tokens + $2, updated_at = NOW()
WHERE device_id = $1
`, deviceID, grant.Tokens); err != nil {
			return fmt.Errorf("grant tokens from payment: %w", err)
		}
		return nil
	}

	if grant.UnlimitedDays > 0 {
		if _, err := tx.Exec(ctx, `
UPDATE device_accounts
SET
	unlimited_until = CASE
		WHEN unlimited_until IS NOT NULL AND unlimited_until > $2::timestamptz
			THEN unlimited_until + make_interval(days => $3)
		ELSE $2::timestamptz + make_interval(days => $3)
	END,
	updated_at = NOW()
WHERE device_id = $1
`, deviceID, now.UTC(), grant.UnlimitedDays); err != nil {
			return fmt.Errorf("grant unlimited from payment: %w", err)
		}
	}

	return nil
}

func scanPaymentTransaction(row pgx.Row) (PaymentTransactionRecord, error) {
	var (
		rec      PaymentTransactionRecord
		amount   *float64
		currency *string
	)
	if err := row.Scan(
		&rec.CheckoutID,
		&rec.DeviceID,
		&rec.ProductID,
		&amount,
		&currency,
		&rec.Status,
		&rec.TokensGranted,
		&rec.CreatedAt,
		&rec.CompletedAt,
	); err != nil {
		return PaymentTransactionRecord{}, err
	}
	if amount != nil {
		rec.Amount = *amount
	}
	if currency != nil {
		rec.Currency = *currency
	}
	return rec, nil
}
