package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/densematrix-labs/ai-excuse-generator/internal/config"
	excusesvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/excuses"
	ledgersvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/ledger"
	paymentsvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/payments"
	ratesvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/rate"
	"github.com/densematrix-labs/ai-excuse-generator/internal/transport/http/handlers"
)

type Dependencies struct {
	ExcuseService  *excusesvc.Service
	LedgerService  *ledgersvc.Service
	PaymentService *paymentsvc.Service
	RateLimiter    *ratesvc.Limiter
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	excuseHandler := handlers.NewExcuseHandler(deps.ExcuseService, deps.LedgerService, deps.RateLimiter, deps.Logger)
	tokenHandler := handlers.NewTokenHandler(deps.LedgerService)
	catalogHandler := handlers.NewCatalogHandler()
	paymentHandler := handlers.NewPaymentHandler(deps.PaymentService, deps.Logger)
	adminMW := AdminAuthMiddleware(deps.Config.Admin, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", excuseHandler.Generate)
		r.Get("/categories", catalogHandler.Categories)
		r.Get("/urgency-levels", catalogHandler.UrgencyLevels)
		r.Get("/tokens/{device_id}", tokenHandler.Status)

		r.Route("/payment", func(r chi.Router) {
			r.Post("/checkout", paymentHandler.CreateCheckout)
			r.Post("/webhook", paymentHandler.Webhook)
			r.Get("/products", paymentHandler.Products)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminMW)
			r.Post("/tokens/{device_id}/reset", tokenHandler.Reset)
		})
	})
}
