package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skillup-lms/internal/config"
	"skillup-lms/internal/redis"

	miniredis "github.com/alicebob/miniredis/v2"
)

type fakeRateRedis struct {
	data   map[string]int64
	expire map[string]time.Time
}

func newFakeRateRedis() *fakeRateRedis {
	return &fakeRateRedis{
		data:   make(map[string]int64),
		expire: make(map[string]time.Time),
	}
}

func (f *fakeRateRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.cleanup()
	val := f.data[key] + 1
	f.data[key] = val
	return val, nil
}

func (f *fakeRateRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.expire[key] = time.Now().Add(ttl)
	return nil
}

func (f *fakeRateRedis) TTL(ctx context.Context, key string) (time.Duration, error) {
	f.cleanup()
	if exp, ok := f.expire[key]; ok {
		return time.Until(exp), nil
	}
	return 0, nil
}

func (f *fakeRateRedis) GetInt(ctx context.Context, key string) (int64, error) {
	f.cleanup()
	val, ok := f.data[key]
	if !ok {
		return 0, redis.ErrCacheMiss
	}
	return val, nil
}

func (f *fakeRateRedis) cleanup() {
	now := time.Now()
	for k, exp := range f.expire {
		if now.After(exp) {
			delete(f.expire, k)
			delete(f.data, k)
		}
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := &RateLimiter{
		redis:   newFakeRateRedis(),
		scope:   RateLimitScopeAPI,
		enabled: true,
		limit:   2,
		window:  time.Second,
		prefix:  "test",
	}

	ctx := context.Background()
	want := []struct {
		allowed   bool
		remaining int64
	}{{true, 1}, {true, 0}, {false, 0}}
	for i, w := range want {
		d, err := limiter.Allow(ctx, "ip1")
		if err != nil || d.Allowed != w.allowed || d.Remaining != w.remaining || d.Limit != 2 {
			t.Fatalf("request %d: expected allowed=%v remaining=%d, got %+v err=%v", i+1, w.allowed, w.remaining, d, err)
		}
	}
}

func TestRateLimiter_NewDisabled(t *testing.T) {
	if limiter := NewRateLimiter(nil, nil, nil); limiter.Enabled() {
		t.Fatalf("expected limiter disabled without cfg/redis")
	}
	cfg := &config.RateLimitConfig{Enabled: false}
	limiter := NewRateLimiter(nil, nil, cfg)
	if limiter.Enabled() {
		t.Fatalf("expected limiter disabled when cfg disabled")
	}
	if d, err := limiter.Allow(context.Background(), "ip"); err != nil || !d.Allowed {
		t.Fatalf("disabled limiter must allow, got %+v err=%v", d, err)
	}
	if scoped := limiter.Scoped(RateLimitScopeCoupon, 5); scoped.Enabled() || scoped.Scope() != RateLimitScopeCoupon {
		t.Fatalf("scoped limiter of disabled parent must stay disabled")
	}
}

type stubRateRedis struct{}

func (s *stubRateRedis) Incr(ctx context.Context, key string) (int64, error) { return 1, nil }
func (s *stubRateRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}
func (s *stubRateRedis) TTL(ctx context.Context, key string) (time.Duration, error) {
	return time.Second, nil
}
func (s *stubRateRedis) GetInt(ctx context.Context, key string) (int64, error) { return 0, nil }

func TestRateLimiter_NewEnabled(t *testing.T) {
	cfg := &config.RateLimitConfig{Enabled: true, Requests: 10, WindowSeconds: 60, KeyPrefix: "p"}
	limiter := NewRateLimiter(&redis.Client{}, nil, cfg)
	limiter.redis = &stubRateRedis{}
	if !limiter.Enabled() || limiter.Limit() != 10 || limiter.Scope() != RateLimitScopeAPI || limiter.Window() != time.Minute {
		t.Fatalf("unexpected limiter: enabled=%v limit=%d scope=%s window=%s", limiter.Enabled(), limiter.Limit(), limiter.Scope(), limiter.Window())
	}
}

func TestRateLimiter_ScopedHasOwnQuota(t *testing.T) {
	api := &RateLimiter{redis: newFakeRateRedis(), scope: RateLimitScopeAPI, enabled: true, limit: 100, window: time.Minute, prefix: "rl"}
	coupon := api.Scoped(RateLimitScopeCoupon, 2)
	ctx := context.Background()

	if coupon.Limit() != 2 || coupon.Window() != time.Minute || coupon.Scope() != RateLimitScopeCoupon {
		t.Fatalf("unexpected scoped limiter: limit=%d window=%s scope=%s", coupon.Limit(), coupon.Window(), coupon.Scope())
	}
	for i := 0; i < 2; i++ {
		if d, _ := coupon.Allow(ctx, "ip1"); !d.Allowed {
			t.Fatalf("coupon request %d should pass", i+1)
		}
	}
	if d, _ := coupon.Allow(ctx, "ip1"); d.Allowed {
		t.Fatalf("third coupon request should be limited")
	}
	if d, _ := api.Allow(ctx, "ip1"); !d.Allowed || d.Remaining != 99 {
		t.Fatalf("api quota must be independent of coupon scope, got %+v", d)
	}

	if off := api.Scoped(RateLimitScopeCheckout, 0); off.Enabled() {
		t.Fatalf("zero requests must disable the scope")
	}
}

func TestRateLimiter_UsageAndLimit(t *testing.T) {
	limiter := &RateLimiter{redis: newFakeRateRedis(), scope: RateLimitScopeAPI, enabled: true, limit: 3, window: time.Minute, prefix: "rl"}
	_, _ = limiter.Allow(context.Background(), "ip1")
	_, _ = limiter.Allow(context.Background(), "ip1")

	usage, err := limiter.Usage(context.Background(), "ip1")
	if err != nil || usage.Used != 2 || usage.Remaining != 1 || usage.ResetAt == nil {
		t.Fatalf("unexpected usage: %+v err=%v", usage, err)
	}

	if limiter.Limit() != 3 || !limiter.Enabled() {
		t.Fatalf("limit/enabled accessors mismatch")
	}
}

func TestRateLimiter_UsageUnknownKey(t *testing.T) {
	limiter := &RateLimiter{redis: newFakeRateRedis(), scope: RateLimitScopeAPI, enabled: true, limit: 5, window: time.Minute, prefix: "rl"}

	usage, err := limiter.Usage(context.Background(), "fresh")
	if err != nil || usage.Used != 0 || usage.Remaining != 5 || usage.ResetAt != nil {
		t.Fatalf("unexpected usage for unknown key: %+v err=%v", usage, err)
	}
}

func TestRateLimiter_WithMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.Connect(&config.RedisConfig{Host: "127.0.0.1", Port: mr.Port()}, newTestLogger())
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer client.Close()

	cfg := &config.RateLimitConfig{Enabled: true, Requests: 1, WindowSeconds: 60}
	limiter := NewRateLimiter(client, newTestLogger(), cfg)
	checkout := limiter.Scoped(RateLimitScopeCheckout, 1)

	ctx := context.Background()
	if d, err := limiter.Allow(ctx, "10.0.0.1:80"); err != nil || !d.Allowed {
		t.Fatalf("first request should pass, got %+v err=%v", d, err)
	}
	if d, err := limiter.Allow(ctx, "10.0.0.1:80"); err != nil || d.Allowed {
		t.Fatalf("second request should be limited, got %+v err=%v", d, err)
	}
	if d, err := checkout.Allow(ctx, "10.0.0.1:80"); err != nil || !d.Allowed {
		t.Fatalf("checkout scope should count separately, got %+v err=%v", d, err)
	}
	if !mr.Exists("ratelimit:api:10.0.0.1_80") || !mr.Exists("ratelimit:checkout:10.0.0.1_80") {
		t.Fatalf("expected per-scope counters under default prefix, keys=%v", mr.Keys())
	}

	mr.FastForward(61 * time.Second)
	if d, err := limiter.Allow(ctx, "10.0.0.1:80"); err != nil || !d.Allowed {
		t.Fatalf("request after window should pass, got %+v err=%v", d, err)
	}
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "10.0.0.1")
	if ip := ExtractClientIP(r); ip != "10.0.0.1" {
		t.Fatalf("expected real ip, got %s", ip)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.3")
	if ip := ExtractClientIP(r); ip != "10.0.0.2" {
		t.Fatalf("expected first forwarded ip, got %s", ip)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", " , 10.0.0.4")
	r.RemoteAddr = "192.168.0.9:1234"
	if ip := ExtractClientIP(r); ip != "192.168.0.9" {
		t.Fatalf("expected fallback to remote addr on empty forwarded ip, got %s", ip)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.0.1:1234"
	if ip := ExtractClientIP(r); ip != "192.168.0.1" {
		t.Fatalf("expected remote addr ip, got %s", ip)
	}
}
