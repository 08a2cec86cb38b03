package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	paymentsvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/payments"
	"github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/dto"
	httperrors "github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/errors"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	payments *paymentsvc.Service
	logger   *zap.Logger
}

func NewPaymentHandler(payments *paymentsvc.Service, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: log}
}

func (h *PaymentHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	var req dto.CheckoutCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.payments.CreateCheckout(r.Context(), req.ProductID, req.DeviceID, req.SuccessURL)
	if err != nil {
		switch {
		case errors.Is(err, paymentsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid device_id")
		case errors.Is(err, paymentsvc.ErrUnknownProduct):
			writeBadRequest(w, "UNKNOWN_PRODUCT", "unknown product_id")
		case errors.Is(err, paymentsvc.ErrGateway):
			if h.logger != nil {
				h.logger.Error("checkout creation failed", zap.Error(err))
			}
			httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
				Code:    "GATEWAY_ERROR",
				Message: "payment gateway is unavailable",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create checkout")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutCreateResponse{
		CheckoutURL: result.CheckoutURL,
		CheckoutID:  result.CheckoutID,
	})
}

// Webhook verifies the gateway signature over the raw body, then applies the
// event. Ignored and rejected events still acknowledge with 200 so the
// gateway does not redeliver them.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "failed to read request body")
		return
	}

	if !h.payments.VerifySignature(rawBody, r.Header.Get("X-Creem-Signature")) {
		writeUnauthorized(w, "INVALID_SIGNATURE", "webhook signature verification failed")
		return
	}

	var req dto.WebhookRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid webhook payload")
		return
	}

	outcome, err := h.payments.HandleEvent(r.Context(), req.EventType, req.Data)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("webhook processing failed", zap.Error(err))
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to process webhook")
		return
	}

	if h.logger != nil {
		h.logger.Info("webhook event handled",
			zap.String("event_type", req.EventType),
			zap.String("status", outcome.Status),
			zap.String("reason", outcome.Reason),
			zap.String("checkout_id", outcome.CheckoutID),
			zap.Int("tokens_granted", outcome.TokensGranted),
		)
	}

	httperrors.Write(w, http.StatusOK, dto.WebhookResponse{
		Received:  true,
		Processed: outcome.Status == paymentsvc.OutcomeApplied,
		Reason:    outcome.Reason,
	})
}

func (h *PaymentHandler) Products(w http.ResponseWriter, _ *http.Request) {
	if h.payments == nil {
		writeInternal(w, "PAYMENTS_SERVICE_UNAVAILABLE", "payments service is unavailable")
		return
	}

	products := h.payments.Products()
	items := make([]dto.ProductItem, 0, len(products))
	for _, p := range products {
		items = append(items, dto.ProductItem{
			ID:            p.ID,
			Name:          p.Name,
			Description:   p.Description,
			Tokens:        p.Tokens,
			UnlimitedDays: p.UnlimitedDays,
			Price:         p.Price,
			Currency:      p.Currency,
			Popular:       p.Popular,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.ProductsResponse{Products: items})
}
