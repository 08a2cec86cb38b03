package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PaymentStore is the slice of the payment repo the job needs.
type PaymentStore interface {
	ExpirePendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Config struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// Job periodically marks abandoned pending checkouts as failed so the
// transaction table reflects only live sessions.
type Job struct {
	store  PaymentStore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewJob(store PaymentStore, cfg Config, log *zap.Logger) *Job {
	return &Job{
		store:  store,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval. The first
// sweep happens immediately on start.
func (j *Job) Run(ctx context.Context) {
	if j.store == nil || j.cfg.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Job) sweep(ctx context.Context) {
	cutoff := j.now().UTC().Add(-j.cfg.MaxAge)
	expired, err := j.store.ExpirePendingOlderThan(ctx, cutoff)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("checkout cleanup sweep failed", zap.Error(err))
		}
		return
	}
	if expired > 0 && j.logger != nil {
		j.logger.Info("expired stale pending checkouts", zap.Int64("count", expired))
	}
}
