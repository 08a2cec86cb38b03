package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/densematrix-labs/ai-excuse-generator/internal/config"
	creeminfra "github.com/densematrix-labs/ai-excuse-generator/internal/infra/creem"
	pgrepo "github.com/densematrix-labs/ai-excuse-generator/internal/repo/postgres"
	redrepo "github.com/densematrix-labs/ai-excuse-generator/internal/repo/redis"
	excusesvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/excuses"
	ledgersvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/ledger"
	paymentsvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/payments"
	ratesvc "github.com/densematrix-labs/ai-excuse-generator/internal/services/rate"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	payments   *pgrepo.PaymentRepo
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	rateRepo := redrepo.NewRateRepo(redisClient)
	ledgerRepo := pgrepo.NewLedgerRepo(pool)
	paymentRepo := pgrepo.NewPaymentRepo(pool)

	ledgerService := ledgersvc.NewService(ledgerRepo)
	rateLimiter := ratesvc.NewLimiter(rateRepo, cfg.Limits.GeneratePerMinute, cfg.Limits.GeneratePer10Sec)
	excuseService := excusesvc.NewService(
		excusesvc.NewChatClient(cfg.LLM.ProxyURL, cfg.LLM.APIKey, cfg.LLM.Timeout),
		excusesvc.Config{Model: cfg.LLM.Model},
	)
	paymentService := paymentsvc.NewService(
		paymentRepo,
		creeminfra.NewClient(cfg.Creem.APIBaseURL, cfg.Creem.APIKey, cfg.Creem.Timeout),
		paymentsvc.Config{
			WebhookSecret: cfg.Creem.WebhookSecret,
			SuccessURL:    cfg.Creem.SuccessURL,
			Products:      cfg.Products,
		},
	)

	RegisterRoutes(r, Dependencies{
		ExcuseService:  excuseService,
		LedgerService:  ledgerService,
		PaymentService: paymentService,
		RateLimiter:    rateLimiter,
		Logger:         log,
		Config:         cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		payments:   paymentRepo,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

// PaymentRepo exposes the payment store for background jobs wired in main.
func (a *App) PaymentRepo() *pgrepo.PaymentRepo {
	return a.payments
}
