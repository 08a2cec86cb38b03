package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/densematrix-labs/ai-excuse-generator/internal/repo/redis"
)

func TestLimiterBlocksOn10SecondWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, 100, 3)

	ctx := context.Background()
	deviceID := "device-fingerprint-042"

	for i := 0; i < 3; i++ {
		retryAfter, allowed, err := limiter.AllowGenerate(ctx, deviceID)
		if err != nil {
			t.Fatalf("allow generate #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.AllowGenerate(ctx, deviceID)
	if err != nil {
		t.Fatalf("allow generate #4: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on fourth attempt in 10s window")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry_after, got %d", retryAfter)
	}

	mr.FastForward(11 * time.Second)

	retryAfter, allowed, err = limiter.AllowGenerate(ctx, deviceID)
	if err != nil {
		t.Fatalf("allow generate after 10s window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("unexpected result after fast forward: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterBlocksOnMinuteWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, 5, 100)

	ctx := context.Background()
	deviceID := "device-fingerprint-077"

	for i := 0; i < 5; i++ {
		if _, allowed, err := limiter.AllowGenerate(ctx, deviceID); err != nil || !allowed {
			t.Fatalf("allow generate #%d: allowed=%v err=%v", i+1, allowed, err)
		}
	}

	retryAfter, allowed, err := limiter.AllowGenerate(ctx, deviceID)
	if err != nil {
		t.Fatalf("allow generate #6: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on sixth attempt in minute window")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Fatalf("unexpected retry_after: %d", retryAfter)
	}

	mr.FastForward(61 * time.Second)

	if _, allowed, err := limiter.AllowGenerate(ctx, deviceID); err != nil || !allowed {
		t.Fatalf("expected allow after minute window: allowed=%v err=%v", allowed, err)
	}
}

func TestLimiterIsolatesDevices(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, 1, 100)

	ctx := context.Background()

	if _, allowed, err := limiter.AllowGenerate(ctx, "device-fingerprint-aaa"); err != nil || !allowed {
		t.Fatalf("first device blocked: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowGenerate(ctx, "device-fingerprint-aaa"); err != nil || allowed {
		t.Fatalf("first device not blocked on second attempt: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowGenerate(ctx, "device-fingerprint-bbb"); err != nil || !allowed {
		t.Fatalf("second device must not share the window: allowed=%v err=%v", allowed, err)
	}
}

func TestLimiterZeroLimitsDisableWindows(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewRateRepo(client)
	limiter := NewLimiter(repo, 0, 0)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if _, allowed, err := limiter.AllowGenerate(ctx, "device-fingerprint-ccc"); err != nil || !allowed {
			t.Fatalf("disabled limiter blocked attempt #%d: allowed=%v err=%v", i+1, allowed, err)
		}
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	return mr, client
}
