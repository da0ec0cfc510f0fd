package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"skillup-lms/internal/config"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/redis"
)

// Области лимитов. Общий лимит API действует на все маршруты, coupon и checkout
// дополнительно сужают подбор кодов купонов и попытки подтверждения оплаты.
const (
	RateLimitScopeAPI      = "api"
	RateLimitScopeCoupon   = "coupon"
	RateLimitScopeCheckout = "checkout"
)

// RateLimitDecision - результат учёта одного запроса.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateLimitUsage - текущее состояние окна без учёта нового запроса.
type RateLimitUsage struct {
	Used      int64
	Remaining int64
	ResetAt   *time.Time
}

// RateLimiter считает запросы клиента в фиксированном окне Redis. Счётчик живёт
// под ключом prefix:scope:client, поэтому области не делят между собой квоту.
type RateLimiter struct {
	redis   rateRedis
	log     *logger.Logger
	scope   string
	enabled bool
	limit   int64
	window  time.Duration
	prefix  string
}

type rateRedis interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// NewRateLimiter создаёт общий лимит API. Без Redis или с выключенной настройкой лимитер пропускает всё.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{scope: RateLimitScopeAPI}
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = redis.KeyPrefixRateLimit
	}

	return &RateLimiter{
		redis:   redisClient,
		log:     log,
		scope:   RateLimitScopeAPI,
		enabled: true,
		limit:   int64(cfg.Requests),
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
	}
}

// Scoped возвращает лимитер отдельной области с тем же Redis и окном.
// Неположительный лимит или выключенный родитель дают выключенный лимитер.
func (r *RateLimiter) Scoped(scope string, requests int) *RateLimiter {
	if !r.enabled || requests <= 0 {
		return &RateLimiter{scope: scope}
	}
	return &RateLimiter{
		redis:   r.redis,
		log:     r.log,
		scope:   scope,
		enabled: true,
		limit:   int64(requests),
		window:  r.window,
		prefix:  r.prefix,
	}
}

// Allow учитывает запрос клиента и решает, пропускать ли его.
func (r *RateLimiter) Allow(ctx context.Context, client string) (RateLimitDecision, error) {
	if !r.enabled {
		return RateLimitDecision{Allowed: true, Limit: r.limit, Remaining: r.limit}, nil
	}

	key := r.counterKey(client)
	count, err := r.redis.Incr(ctx, key)
	if err != nil {
		return RateLimitDecision{}, fmt.Errorf("rate limiter incr %s: %w", r.scope, err)
	}
	// окно открывается первым запросом
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window); err != nil {
			r.log.WithError(err).WithField("key", key).Warn("failed to set rate limit ttl")
		}
	}

	return RateLimitDecision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: r.remaining(count),
		ResetAt:   time.Now().Add(r.windowLeft(ctx, key)),
	}, nil
}

// Usage читает счётчик клиента, не увеличивая его.
func (r *RateLimiter) Usage(ctx context.Context, client string) (RateLimitUsage, error) {
	if !r.enabled {
		return RateLimitUsage{Remaining: r.limit}, nil
	}

	key := r.counterKey(client)
	count, err := r.redis.GetInt(ctx, key)
	if errors.Is(err, redis.ErrCacheMiss) {
		return RateLimitUsage{Remaining: r.limit}, nil
	}
	if err != nil {
		return RateLimitUsage{}, fmt.Errorf("rate limiter usage %s: %w", r.scope, err)
	}

	usage := RateLimitUsage{Used: count, Remaining: r.remaining(count)}
	if ttl, err := r.redis.TTL(ctx, key); err == nil {
		resetAt := time.Now().Add(ttl)
		usage.ResetAt = &resetAt
	} else {
		r.log.WithError(err).WithField("key", key).Warn("failed to get rate limit ttl")
	}
	return usage, nil
}

func (r *RateLimiter) windowLeft(ctx context.Context, key string) time.Duration {
	ttl, err := r.redis.TTL(ctx, key)
	if err != nil {
		r.log.WithError(err).WithField("key", key).Warn("failed to get rate limit ttl")
		return r.window
	}
	return ttl
}

func (r *RateLimiter) remaining(count int64) int64 {
	if count >= r.limit {
		return 0
	}
	return r.limit - count
}

// counterKey экранирует ":" в адресе клиента, чтобы IPv6 и host:port не ломали структуру ключа.
func (r *RateLimiter) counterKey(client string) string {
	return strings.Join([]string{r.prefix, r.scope, strings.ReplaceAll(client, ":", "_")}, ":")
}

// Scope возвращает имя области лимита.
func (r *RateLimiter) Scope() string { return r.scope }

// Limit возвращает число запросов в окне.
func (r *RateLimiter) Limit() int64 { return r.limit }

// Window возвращает длительность окна.
func (r *RateLimiter) Window() time.Duration { return r.window }

// Enabled сообщает, включён ли лимитер.
func (r *RateLimiter) Enabled() bool { return r.enabled }

// ExtractClientIP берёт адрес клиента из X-Real-IP, первого X-Forwarded-For или RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
