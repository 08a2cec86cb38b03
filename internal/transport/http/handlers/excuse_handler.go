package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	excusesvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/excuses"
	ledgersvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/ledger"
	ratesvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/rate"
	"github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/dto"
	httperrors "github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/errors"
)

type ExcuseHandler struct {
	excuses *excusesvc.Service
	ledger  *ledgersvc.Service
	limiter *ratesvc.Limiter
	logger  *zap.Logger
}

func NewExcuseHandler(excuses *excusesvc.Service, ledger *ledgersvc.Service, limiter *ratesvc.Limiter, log *zap.Logger) *ExcuseHandler {
	return &ExcuseHandler{
		excuses: excuses,
		ledger:  ledger,
		limiter: limiter,
		logger:  log,
	}
}

// Generate charges one token and produces a batch of excuses. The token is
// consumed before the model call and is not returned if generation fails.
func (h *ExcuseHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.excuses == nil || h.ledger == nil {
		writeInternal(w, "SERVICE_UNAVAILABLE", "excuse service is unavailable")
		return
	}

	var req dto.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	params := excusesvc.Params{
		Category: excusesvc.Category(req.Category),
		Urgency:  excusesvc.Urgency(req.Urgency),
		Context:  req.Context,
		Language: req.Language,
	}
	if err := excusesvc.ValidateParams(params); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid generation parameters")
		return
	}

	if h.limiter != nil {
		retryAfter, allowed, err := h.limiter.AllowGenerate(r.Context(), req.DeviceID)
		if err != nil {
			if h.logger != nil {
				h.logger.Error("rate limiter check failed", zap.Error(err))
			}
			writeInternal(w, "INTERNAL_ERROR", "failed to check rate limit")
			return
		}
		if !allowed {
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "TOO_MANY_REQUESTS",
				Message:       "generation rate limit exceeded",
				RetryAfterSec: retryAfter,
			})
			return
		}
	}

	grant, err := h.ledger.AuthorizeAndConsume(r.Context(), req.DeviceID)
	if err != nil {
		switch {
		case errors.Is(err, ledgersvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid device_id")
		case errors.Is(err, ledgersvc.ErrNoTokens):
			httperrors.Write(w, http.StatusPaymentRequired, httperrors.APIError{
				Code:    "NO_TOKENS",
				Message: "no tokens remaining, purchase required",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to authorize generation")
		}
		return
	}

	excuses, err := h.excuses.Generate(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, excusesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid generation parameters")
		case errors.Is(err, excusesvc.ErrUnavailable):
			if h.logger != nil {
				h.logger.Error("excuse generation failed", zap.Error(err))
			}
			httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
				Code:    "GENERATION_UNAVAILABLE",
				Message: "excuse generation is temporarily unavailable",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to generate excuses")
		}
		return
	}

	items := make([]dto.ExcuseItem, 0, len(excuses))
	for _, e := range excuses {
		items = append(items, dto.ExcuseItem{
			Text: e.Text,
			Tone: e.Tone,
			Tip:  e.Tip,
		})
	}

	category, _ := excusesvc.ParseCategory(req.Category)
	urgency, _ := excusesvc.ParseUrgency(req.Urgency)
	httperrors.Write(w, http.StatusOK, dto.GenerateResponse{
		Excuses:         items,
		Category:        string(category),
		Urgency:         string(urgency),
		TokensRemaining: grant.Remaining,
		IsFreeTrial:     grant.Kind == ledgersvc.KindFreeTrial,
		TokenSource:     grant.Kind,
	})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
