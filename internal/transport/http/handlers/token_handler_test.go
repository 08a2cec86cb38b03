package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	ledgersvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/ledger"
	"github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/dto"
)

func newTokenRouter(store ledgersvc.Store) http.Handler {
	handler := NewTokenHandler(ledgersvc.NewService(store))
	r := chi.NewRouter()
	r.Get("/api/tokens/{device_id}", handler.Status)
	r.Post("/api/admin/tokens/{device_id}/reset", handler.Reset)
	return r
}

func TestTokenStatusNewDevice(t *testing.T) {
	router := newTokenRouter(newLedgerStoreStub())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tokens/"+testDeviceID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	var resp dto.TokenStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.DeviceID != testDeviceID {
		t.Fatalf("unexpected device id: %q", resp.DeviceID)
	}
	if !resp.FreeTrialAvailable {
		t.Fatalf("new device should have its trial")
	}
	if resp.RemainingTokens != 0 || resp.IsUnlimited {
		t.Fatalf("unexpected fresh status: %+v", resp)
	}
}

func TestTokenStatusInvalidDeviceIDReturns400(t *testing.T) {
	router := newTokenRouter(newLedgerStoreStub())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tokens/short", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestTokenResetRestoresTrial(t *testing.T) {
	store := newLedgerStoreStub()
	store.ensure(testDeviceID).FreeTrialUsed = true
	store.ensure(testDeviceID).TotalTokens = 7
	router := newTokenRouter(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/tokens/"+testDeviceID+"/reset", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tokens/"+testDeviceID, nil))

	var resp dto.TokenStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.FreeTrialAvailable || resp.TotalTokens != 0 {
		t.Fatalf("reset did not clear the account: %+v", resp)
	}
}
