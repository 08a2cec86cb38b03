package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/densematrix-labs/ai-excuse-generator/internal/config"
	"github.com/densematrix-labs/ai-excuse-generator/internal/infra/creem"
	"github.com/densematrix-labs/ai-excuse-generator/internal/pkg/validate"
	pgrepo "github.com/densematrix-labs/ai-excuse-generator/internal/repo/postgres"
)

const eventCheckoutCompleted = "checkout.completed"

// Webhook outcome statuses.
const (
	OutcomeApplied  = "applied"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
)

// Webhook outcome reasons.
const (
	ReasonDuplicate     = "duplicate"
	ReasonMissingFields = "missing_fields"
	ReasonEventIgnored  = "event_ignored"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrUnknownProduct = errors.New("unknown product")
	ErrGateway        = errors.New("payment gateway error")
)

type Store interface {
	CreatePending(ctx context.Context, checkoutID, deviceID, productID string) (pgrepo.PaymentTransactionRecord, error)
	Complete(ctx context.Context, in pgrepo.CompleteInput, now time.Time) (pgrepo.PaymentTransactionRecord, bool, error)
}

type CheckoutClient interface {
	Configured() bool
	CreateCheckout(ctx context.Context, productID, deviceID, successURL string) (creem.CheckoutSession, error)
}

type Config struct {
	WebhookSecret string
	SuccessURL    string
	Products      []config.Product
}

type Service struct {
	store    Store
	checkout CheckoutClient
	cfg      Config
	products map[string]config.Product
	now      func() time.Time
}

type CheckoutResult struct {
	CheckoutURL string
	CheckoutID  string
}

// Outcome reports what a webhook delivery did. Ignored and Rejected are
// normal gateway traffic, not errors; the transport layer acknowledges all
// of them.
type Outcome struct {
	Status        string
	Reason        string
	CheckoutID    string
	DeviceID      string
	ProductID     string
	TokensGranted int
}

func NewService(store Store, checkout CheckoutClient, cfg Config) *Service {
	products := make(map[string]config.Product, len(cfg.Products))
	for _, p := range cfg.Products {
		products[p.ID] = p
	}

	return &Service{
		store:    store,
		checkout: checkout,
		cfg:      cfg,
		products: products,
		now:      time.Now,
	}
}

func (s *Service) Products() []config.Product {
	return s.cfg.Products
}

// CreateCheckout opens a gateway checkout session and records it as a
// pending transaction. Without gateway credentials it falls back to a mock
// session so local flows stay testable end to end.
func (s *Service) CreateCheckout(ctx context.Context, productID, deviceID, successURL string) (CheckoutResult, error) {
	if !validate.DeviceID(deviceID) {
		return CheckoutResult{}, ErrValidation
	}
	productID = strings.TrimSpace(productID)
	if _, ok := s.products[productID]; !ok {
		return CheckoutResult{}, ErrUnknownProduct
	}
	if s.store == nil {
		return CheckoutResult{}, fmt.Errorf("payment store is nil")
	}

	if successURL == "" {
		successURL = s.cfg.SuccessURL
	}

	var session creem.CheckoutSession
	if s.checkout != nil && s.checkout.Configured() {
		real, err := s.checkout.CreateCheckout(ctx, productID, deviceID, successURL)
		if err != nil {
			return CheckoutResult{}, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		session = real
	} else {
		id := "mock_" + uuid.NewString()
		session = creem.CheckoutSession{
			ID:          id,
			CheckoutURL: fmt.Sprintf("https://checkout.creem.io/test?product=%s&checkout=%s", productID, id),
		}
	}

	if _, err := s.store.CreatePending(ctx, session.ID, deviceID, productID); err != nil {
		return CheckoutResult{}, err
	}

	return CheckoutResult{
		CheckoutURL: session.CheckoutURL,
		CheckoutID:  session.ID,
	}, nil
}

// VerifySignature checks the gateway HMAC over the raw body. An empty
// configured secret disables verification; config.Load refuses that outside
// the dev env.
func (s *Service) VerifySignature(rawBody []byte, signature string) bool {
	if s.cfg.WebhookSecret == "" {
		return true
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleEvent converts a verified webhook event into at most one ledger
// mutation. Redelivery of a completed checkout is Ignored(duplicate); the
// duplicate check and the grant commit in one storage transaction.
func (s *Service) HandleEvent(ctx context.Context, eventType string, data map[string]any) (Outcome, error) {
	if s.store == nil {
		return Outcome{}, fmt.Errorf("payment store is nil")
	}

	if eventType != eventCheckoutCompleted {
		return Outcome{Status: OutcomeIgnored, Reason: ReasonEventIgnored}, nil
	}

	checkoutID := stringField(data, "id")
	productID := stringField(data, "product_id")
	deviceID := ""
	if meta, ok := data["metadata"].(map[string]any); ok {
		deviceID = stringField(meta, "device_id")
		if productID == "" {
			productID = stringField(meta, "product_id")
		}
	}

	if checkoutID == "" || deviceID == "" {
		return Outcome{Status: OutcomeRejected, Reason: ReasonMissingFields}, nil
	}

	grant := pgrepo.GrantSpec{}
	if product, ok := s.products[productID]; ok {
		if product.UnlimitedDays > 0 {
			grant.UnlimitedDays = product.UnlimitedDays
		} else {
			grant.Tokens = product.Tokens
		}
	}
	// An unmapped product stays a zero grant: the verified payment is
	// still recorded as completed.

	amount := floatField(data, "amount") / 100
	currency := stringField(data, "currency")
	if currency == "" {
		currency = "USD"
	}

	rec, applied, err := s.store.Complete(ctx, pgrepo.CompleteInput{
		CheckoutID: checkoutID,
		DeviceID:   deviceID,
		ProductID:  productID,
		Amount:     amount,
		Currency:   currency,
		Grant:      grant,
	}, s.now().UTC())
	if err != nil {
		return Outcome{}, err
	}

	if !applied {
		return Outcome{
			Status:     OutcomeIgnored,
			Reason:     ReasonDuplicate,
			CheckoutID: rec.CheckoutID,
			DeviceID:   rec.DeviceID,
			ProductID:  rec.ProductID,
		}, nil
	}

	return Outcome{
		Status:        OutcomeApplied,
		CheckoutID:    rec.CheckoutID,
		DeviceID:      rec.DeviceID,
		ProductID:     rec.ProductID,
		TokensGranted: rec.TokensGranted,
	}, nil
}

func stringField(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return strings.TrimSpace(v)
}

func floatField(data map[string]any, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
