package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	ledgersvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/ledger"
	"github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/dto"
	httperrors "github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/errors"
)

type TokenHandler struct {
	ledger *ledgersvc.Service
}

func NewTokenHandler(ledger *ledgersvc.Service) *TokenHandler {
	return &TokenHandler{ledger: ledger}
}

func (h *TokenHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeInternal(w, "LEDGER_SERVICE_UNAVAILABLE", "token ledger is unavailable")
		return
	}

	status, err := h.ledger.GetStatus(r.Context(), chi.URLParam(r, "device_id"))
	if err != nil {
		switch {
		case errors.Is(err, ledgersvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid device_id")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to load token status")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.TokenStatusResponse{
		DeviceID:           status.DeviceID,
		TotalTokens:        status.TotalTokens,
		UsedTokens:         status.UsedTokens,
		RemainingTokens:    status.RemainingTokens,
		FreeTrialAvailable: status.FreeTrialAvailable,
		IsUnlimited:        status.IsUnlimited,
		UnlimitedUntil:     status.UnlimitedUntil,
	})
}

// Reset wipes a device account. Admin-only; the route carries the admin key
// middleware.
func (h *TokenHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if h.ledger == nil {
		writeInternal(w, "LEDGER_SERVICE_UNAVAILABLE", "token ledger is unavailable")
		return
	}

	deviceID := chi.URLParam(r, "device_id")
	if err := h.ledger.Reset(r.Context(), deviceID); err != nil {
		switch {
		case errors.Is(err, ledgersvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid device_id")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to reset device")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.AdminResetResponse{OK: true, DeviceID: deviceID})
}
