package rate

import (
	"context"
	"fmt"
	"time"
)

const (
	generateMinuteWindow = time.Minute
	generate10SecWindow  = 10 * time.Second
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter caps generation attempts per device fingerprint. The fingerprint
// is the only identity we have, so the windows are the cheapest brake
// against scripted draining of the generator.
type Limiter struct {
	store     WindowStore
	perMinute int
	per10Sec  int
}

func NewLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if per10Sec < 0 {
		per10Sec = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		per10Sec:  per10Sec,
	}
}

// AllowGenerate reports whether the device may generate now. A zero window
// limit disables that window. Returns retry_after seconds when blocked.
func (l *Limiter) AllowGenerate(ctx context.Context, deviceID string) (int64, bool, error) {
	if deviceID == "" {
		return 0, false, fmt.Errorf("device id is required")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)

	if l.perMinute > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, minuteKey(deviceID), generateMinuteWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.perMinute) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if l.per10Sec > 0 {
		count, ttl, err := l.store.IncrementWindow(ctx, tenSecKey(deviceID), generate10SecWindow)
		if err != nil {
			return 0, false, err
		}
		if count > int64(l.per10Sec) {
			retryAfterSec = maxInt64(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}

	return 0, true, nil
}

func minuteKey(deviceID string) string {
	return "rate:generate:min:" + deviceID
}

func tenSecKey(deviceID string) string {
	return "rate:generate:10s:" + deviceID
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	return secs
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
