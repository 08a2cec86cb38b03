package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/densematrix-labs/ai-excuse-generator/internal/config"
	"github.com/densematrix-labs/ai-excuse-generator/internal/infra/creem"
	pgrepo "github.com/densematrix-labs/ai-excuse-generator/internal/repo/postgres"
)

type memoryPaymentStore struct {
	transactions map[string]*pgrepo.PaymentTransactionRecord
	granted      map[string]int
	unlimited    map[string]int
}

func newMemoryPaymentStore() *memoryPaymentStore {
	return &memoryPaymentStore{
		transactions: make(map[string]*pgrepo.PaymentTransactionRecord),
		granted:      make(map[string]int),
		unlimited:    make(map[string]int),
	}
}

func (s *memoryPaymentStore) CreatePending(_ context.Context, checkoutID, deviceID, productID string) (pgrepo.PaymentTransactionRecord, error) {
	if rec, ok := s.transactions[checkoutID]; ok {
		return *rec, nil
	}
	rec := &pgrepo.PaymentTransactionRecord{
		CheckoutID: checkoutID,
		DeviceID:   deviceID,
		ProductID:  productID,
		Status:     pgrepo.PaymentStatusPending,
	}
	s.transactions[checkoutID] = rec
	return *rec, nil
}

func (s *memoryPaymentStore) Complete(_ context.Context, in pgrepo.CompleteInput, now time.Time) (pgrepo.PaymentTransactionRecord, bool, error) {
	rec, ok := s.transactions[in.CheckoutID]
	if !ok {
		rec = &pgrepo.PaymentTransactionRecord{
			CheckoutID: in.CheckoutID,
			DeviceID:   in.DeviceID,
			ProductID:  in.ProductID,
			Status:     pgrepo.PaymentStatusPending,
		}
		s.transactions[in.CheckoutID] = rec
	}
	if rec.Status != pgrepo.PaymentStatusPending {
		return *rec, false, nil
	}

	if in.Grant.Tokens > 0 {
		s.granted[in.DeviceID] += in.Grant.Tokens
		rec.TokensGranted = in.Grant.Tokens
	}
	if in.Grant.UnlimitedDays > 0 {
		s.unlimited[in.DeviceID] += in.Grant.UnlimitedDays
	}
	rec.Status = pgrepo.PaymentStatusCompleted
	rec.Amount = in.Amount
	rec.Currency = in.Currency
	rec.CompletedAt = &now
	return *rec, true, nil
}

func testProducts() []config.Product {
	return []config.Product{
		{ID: "pack_10", Name: "10 Excuses Pack", Tokens: 10, Price: 4.99, Currency: "USD"},
		{ID: "pack_30", Name: "30 Excuses Pack", Tokens: 30, Price: 9.99, Currency: "USD", Popular: true},
		{ID: "unlimited", Name: "Unlimited Monthly", UnlimitedDays: 30, Price: 14.99, Currency: "USD"},
	}
}

func newTestService(store Store, secret string) *Service {
	return NewService(store, nil, Config{
		WebhookSecret: secret,
		SuccessURL:    "https://example.com/success",
		Products:      testProducts(),
	})
}

const paymentDeviceID = "device-fingerprint-777"

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	service := newTestService(newMemoryPaymentStore(), "topsecret")
	body := []byte(`{"event_type":"checkout.completed"}`)

	if !service.VerifySignature(body, sign("topsecret", body)) {
		t.Fatalf("valid signature rejected")
	}
	if service.VerifySignature(body, sign("wrongsecret", body)) {
		t.Fatalf("signature from wrong secret accepted")
	}
	if service.VerifySignature(body, "") {
		t.Fatalf("empty signature accepted with configured secret")
	}
	if service.VerifySignature(body, "not-hex") {
		t.Fatalf("garbage signature accepted")
	}
}

func TestVerifySignatureBypassWithoutSecret(t *testing.T) {
	service := newTestService(newMemoryPaymentStore(), "")
	if !service.VerifySignature([]byte("anything"), "whatever") {
		t.Fatalf("verification must pass when no secret is configured")
	}
}

func completedEvent(checkoutID, productID string) map[string]any {
	return map[string]any{
		"id":         checkoutID,
		"product_id": productID,
		"amount":     float64(499),
		"currency":   "USD",
		"metadata":   map[string]any{"device_id": paymentDeviceID},
	}
}

func TestHandleEventGrantsTokensOnce(t *testing.T) {
	store := newMemoryPaymentStore()
	service := newTestService(store, "topsecret")
	ctx := context.Background()

	outcome, err := service.HandleEvent(ctx, "checkout.completed", completedEvent("ch_1", "pack_10"))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Status != OutcomeApplied {
		t.Fatalf("unexpected status: got %q want %q", outcome.Status, OutcomeApplied)
	}
	if outcome.TokensGranted != 10 {
		t.Fatalf("unexpected grant: got %d want 10", outcome.TokensGranted)
	}
	if store.granted[paymentDeviceID] != 10 {
		t.Fatalf("ledger credit: got %d want 10", store.granted[paymentDeviceID])
	}

	// Redelivery must not double-grant.
	outcome, err = service.HandleEvent(ctx, "checkout.completed", completedEvent("ch_1", "pack_10"))
	if err != nil {
		t.Fatalf("handle redelivery: %v", err)
	}
	if outcome.Status != OutcomeIgnored || outcome.Reason != ReasonDuplicate {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if store.granted[paymentDeviceID] != 10 {
		t.Fatalf("double grant on redelivery: got %d want 10", store.granted[paymentDeviceID])
	}
}

func TestHandleEventDoesNotReviveFailedCheckout(t *testing.T) {
	store := newMemoryPaymentStore()
	service := newTestService(store, "topsecret")
	ctx := context.Background()

	if _, err := store.CreatePending(ctx, "ch_stale", paymentDeviceID, "pack_10"); err != nil {
		t.Fatalf("create pending: %v", err)
	}
	store.transactions["ch_stale"].Status = pgrepo.PaymentStatusFailed

	outcome, err := service.HandleEvent(ctx, "checkout.completed", completedEvent("ch_stale", "pack_10"))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Status != OutcomeIgnored {
		t.Fatalf("unexpected status: got %q want %q", outcome.Status, OutcomeIgnored)
	}
	if store.granted[paymentDeviceID] != 0 {
		t.Fatalf("expired checkout must not grant: got %d", store.granted[paymentDeviceID])
	}
	if store.transactions["ch_stale"].Status != pgrepo.PaymentStatusFailed {
		t.Fatalf("expired checkout revived: %q", store.transactions["ch_stale"].Status)
	}
}

func TestHandleEventUnlimitedProduct(t *testing.T) {
	store := newMemoryPaymentStore()
	service := newTestService(store, "topsecret")

	outcome, err := service.HandleEvent(context.Background(), "checkout.completed", completedEvent("ch_2", "unlimited"))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Status != OutcomeApplied {
		t.Fatalf("unexpected status: %q", outcome.Status)
	}
	if store.unlimited[paymentDeviceID] != 30 {
		t.Fatalf("unlimited days: got %d want 30", store.unlimited[paymentDeviceID])
	}
	if store.granted[paymentDeviceID] != 0 {
		t.Fatalf("unlimited purchase must not credit tokens: got %d", store.granted[paymentDeviceID])
	}
}

func TestHandleEventUnknownProductRecordsZeroGrant(t *testing.T) {
	store := newMemoryPaymentStore()
	service := newTestService(store, "topsecret")

	outcome, err := service.HandleEvent(context.Background(), "checkout.completed", completedEvent("ch_3", "pack_9000"))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Status != OutcomeApplied {
		t.Fatalf("unexpected status: %q", outcome.Status)
	}
	if outcome.TokensGranted != 0 {
		t.Fatalf("unexpected grant: got %d want 0", outcome.TokensGranted)
	}
	rec := store.transactions["ch_3"]
	if rec == nil || rec.Status != pgrepo.PaymentStatusCompleted {
		t.Fatalf("transaction should be recorded completed: %+v", rec)
	}
}

func TestHandleEventMissingFieldsRejected(t *testing.T) {
	store := newMemoryPaymentStore()
	service := newTestService(store, "topsecret")
	ctx := context.Background()

	noDevice := map[string]any{"id": "ch_4", "product_id": "pack_10", "metadata": map[string]any{}}
	outcome, err := service.HandleEvent(ctx, "checkout.completed", noDevice)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Status != OutcomeRejected || outcome.Reason != ReasonMissingFields {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	noCheckout := map[string]any{"product_id": "pack_10", "metadata": map[string]any{"device_id": paymentDeviceID}}
	outcome, err = service.HandleEvent(ctx, "checkout.completed", noCheckout)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Status != OutcomeRejected {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(store.transactions) != 0 {
		t.Fatalf("rejected events must not mutate state")
	}
}

func TestHandleEventIgnoresOtherEventTypes(t *testing.T) {
	store := newMemoryPaymentStore()
	service := newTestService(store, "topsecret")

	outcome, err := service.HandleEvent(context.Background(), "subscription.cancelled", completedEvent("ch_5", "pack_10"))
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.Status != OutcomeIgnored || outcome.Reason != ReasonEventIgnored {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(store.transactions) != 0 {
		t.Fatalf("ignored events must not mutate state")
	}
}

func TestHandleEventProductIDFromMetadata(t *testing.T) {
	store := newMemoryPaymentStore()
	service := newTestService(store, "topsecret")

	event := map[string]any{
		"id":       "ch_6",
		"metadata": map[string]any{"device_id": paymentDeviceID, "product_id": "pack_30"},
	}
	outcome, err := service.HandleEvent(context.Background(), "checkout.completed", event)
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if outcome.TokensGranted != 30 {
		t.Fatalf("unexpected grant: got %d want 30", outcome.TokensGranted)
	}
}

type stubCheckoutClient struct {
	configured bool
	session    creem.CheckoutSession
	err        error
	calls      int
}

func (c *stubCheckoutClient) Configured() bool { return c.configured }

func (c *stubCheckoutClient) CreateCheckout(_ context.Context, _, _, _ string) (creem.CheckoutSession, error) {
	c.calls++
	if c.err != nil {
		return creem.CheckoutSession{}, c.err
	}
	return c.session, nil
}

func TestCreateCheckoutViaGateway(t *testing.T) {
	store := newMemoryPaymentStore()
	client := &stubCheckoutClient{
		configured: true,
		session:    creem.CheckoutSession{ID: "ch_live_1", CheckoutURL: "https://checkout.creem.io/ch_live_1"},
	}
	service := NewService(store, client, Config{SuccessURL: "https://example.com/success", Products: testProducts()})

	result, err := service.CreateCheckout(context.Background(), "pack_10", paymentDeviceID, "")
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if result.CheckoutID != "ch_live_1" {
		t.Fatalf("unexpected checkout id: %q", result.CheckoutID)
	}
	if client.calls != 1 {
		t.Fatalf("gateway not called")
	}
	rec := store.transactions["ch_live_1"]
	if rec == nil || rec.Status != pgrepo.PaymentStatusPending {
		t.Fatalf("pending transaction not recorded: %+v", rec)
	}
}

func TestCreateCheckoutMockWithoutGateway(t *testing.T) {
	store := newMemoryPaymentStore()
	service := newTestService(store, "topsecret")

	result, err := service.CreateCheckout(context.Background(), "pack_30", paymentDeviceID, "")
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if !strings.HasPrefix(result.CheckoutID, "mock_") {
		t.Fatalf("expected mock checkout id, got %q", result.CheckoutID)
	}
	if result.CheckoutURL == "" {
		t.Fatalf("missing checkout url")
	}
	if _, ok := store.transactions[result.CheckoutID]; !ok {
		t.Fatalf("pending transaction not recorded")
	}
}

func TestCreateCheckoutValidation(t *testing.T) {
	service := newTestService(newMemoryPaymentStore(), "topsecret")
	ctx := context.Background()

	if _, err := service.CreateCheckout(ctx, "pack_10", "short", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := service.CreateCheckout(ctx, "pack_9000", paymentDeviceID, ""); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestCreateCheckoutGatewayFailure(t *testing.T) {
	client := &stubCheckoutClient{configured: true, err: errors.New("upstream 500")}
	service := NewService(newMemoryPaymentStore(), client, Config{Products: testProducts()})

	if _, err := service.CreateCheckout(context.Background(), "pack_10", paymentDeviceID, ""); !errors.Is(err, ErrGateway) {
		t.Fatalf("expected ErrGateway, got %v", err)
	}
}
