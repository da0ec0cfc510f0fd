package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"skillup-lms/internal/logger"
	"skillup-lms/internal/services"
)

const (
	pathCouponValidate   = "/api/coupons/validate"
	pathRazorpayValidate = "/api/razorpay/validate-coupon"
	pathVerifyPayment    = "/api/razorpay/verify-payment"
)

// MiddlewareLimiter описывает лимитер одной области.
type MiddlewareLimiter interface {
	Allow(ctx context.Context, client string) (services.RateLimitDecision, error)
	Enabled() bool
	Scope() string
}

// RateLimitStatusProvider дополнительно отдаёт состояние окна для эндпоинта статуса.
type RateLimitStatusProvider interface {
	MiddlewareLimiter
	Usage(ctx context.Context, client string) (services.RateLimitUsage, error)
	Limit() int64
	Window() time.Duration
}

// RouteLimits - лимиты API. API действует на все маршруты, Coupon на проверку купонов,
// Checkout на подтверждение оплаты. Пустое поле означает отсутствие лимита.
type RouteLimits struct {
	API      MiddlewareLimiter
	Coupon   MiddlewareLimiter
	Checkout MiddlewareLimiter
}

func (l RouteLimits) forPath(path string) MiddlewareLimiter {
	switch path {
	case pathCouponValidate, pathRazorpayValidate:
		return l.Coupon
	case pathVerifyPayment:
		return l.Checkout
	default:
		return nil
	}
}

var rateLimitMessages = map[string]string{
	services.RateLimitScopeCoupon:   "Too many coupon validation attempts",
	services.RateLimitScopeCheckout: "Too many payment verification attempts",
}

// Middleware сначала учитывает запрос в общем лимите, затем в лимите маршрута.
// Заголовки X-RateLimit-* описывают последний применённый (самый узкий) лимит.
func (l RouteLimits) Middleware(log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := services.ExtractClientIP(r)
		for _, limiter := range []MiddlewareLimiter{l.API, l.forPath(r.URL.Path)} {
			if limiter == nil || !limiter.Enabled() {
				continue
			}
			if !applyLimit(w, r, limiter, client, log) {
				return
			}
		}
		next(w, r)
	}
}

func applyLimit(w http.ResponseWriter, r *http.Request, limiter MiddlewareLimiter, client string, log *logger.Logger) bool {
	scope := limiter.Scope()
	decision, err := limiter.Allow(r.Context(), client)
	if err != nil {
		log.WithError(err).WithField("scope", scope).Error("Rate limiter failed")
		rejectRequest(w, r, http.StatusInternalServerError, "Rate limiter error")
		return false
	}

	h := w.Header()
	h.Set("X-RateLimit-Scope", scope)
	h.Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
	if !decision.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}
	if decision.Allowed {
		return true
	}

	if wait := time.Until(decision.ResetAt); wait > 0 {
		h.Set("Retry-After", strconv.Itoa(int(wait.Round(time.Second)/time.Second)))
	}
	log.WithFields(map[string]interface{}{
		"scope":  scope,
		"client": client,
		"path":   r.URL.Path,
	}).Warn("Rate limit exceeded")

	message, ok := rateLimitMessages[scope]
	if !ok {
		message = "Rate limit exceeded"
	}
	rejectRequest(w, r, http.StatusTooManyRequests, message)
	return false
}

// rejectRequest сохраняет формат ошибок verify-payment и для отказов middleware.
func rejectRequest(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	if r.URL.Path == pathVerifyPayment {
		writeCheckoutError(w, statusCode, message)
		return
	}
	writeErrorResponse(w, statusCode, message)
}

// RateLimitHandler отдаёт клиенту состояние его лимитов.
type RateLimitHandler struct {
	limiters []RateLimitStatusProvider
	log      *logger.Logger
}

// NewRateLimitHandler создаёт обработчик статуса; nil-лимитеры пропускаются.
func NewRateLimitHandler(log *logger.Logger, limiters ...RateLimitStatusProvider) *RateLimitHandler {
	h := &RateLimitHandler{log: log}
	for _, l := range limiters {
		if l != nil {
			h.limiters = append(h.limiters, l)
		}
	}
	return h
}

// Status возвращает использование каждой включённой области для IP клиента.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	key := services.ExtractClientIP(r)
	scopes := make(map[string]interface{})
	for _, limiter := range h.limiters {
		if !limiter.Enabled() {
			continue
		}
		usage, err := limiter.Usage(r.Context(), key)
		if err != nil {
			h.log.WithError(err).WithField("scope", limiter.Scope()).Error("Failed to fetch rate limit usage")
			writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
			return
		}
		entry := map[string]interface{}{
			"limit":          limiter.Limit(),
			"window_seconds": int64(limiter.Window() / time.Second),
			"used":           usage.Used,
			"remaining":      usage.Remaining,
		}
		if usage.ResetAt != nil {
			entry["reset_at"] = usage.ResetAt.Format(time.RFC3339)
		}
		scopes[limiter.Scope()] = entry
	}

	if len(scopes) == 0 {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"key":     key,
		"scopes":  scopes,
	})
}
