package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"skillup-lms/internal/config"
	"skillup-lms/internal/database"
	"skillup-lms/internal/handlers"
	"skillup-lms/internal/kafka"
	"skillup-lms/internal/logger"
	"skillup-lms/internal/models"
	"skillup-lms/internal/redis"
	"skillup-lms/internal/services"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = kafka.CheckHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server
}

// routeHandlers набор обработчиков HTTP API.
type routeHandlers struct {
	coupons   *handlers.CouponHandler
	razorpay  *handlers.RazorpayHandler
	payments  *handlers.PaymentHandler
	health    *handlers.HealthHandler
	rateLimit *handlers.RateLimitHandler
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting SkillUp checkout server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)
	handlers.SetDebugErrors(cfg.Server.Debug)

	if err := cfg.Razorpay.Validate(); err != nil {
		return nil, fmt.Errorf("razorpay config: %w", err)
	}

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	courseTTL := time.Duration(cfg.Cache.CourseTTLMinutes) * time.Minute
	courseService := services.NewCourseService(db, redisClient, courseTTL, log)
	gateway := services.NewRazorpayGateway(&cfg.Razorpay, log)
	validator := services.NewCouponValidator(db, log)
	couponService := services.NewCouponService(db, log)
	checkoutService := services.NewCheckoutService(db, log, &cfg.Razorpay, producer)
	paymentService := services.NewPaymentService(db, log, gateway, courseService, producer, &cfg.Razorpay)
	notificationService := services.NewNotificationService(paymentService, courseService, &cfg.SMTP, log)
	apiLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)
	couponLimiter := apiLimiter.Scoped(services.RateLimitScopeCoupon, cfg.RateLimit.CouponRequests)
	checkoutLimiter := apiLimiter.Scoped(services.RateLimitScopeCheckout, cfg.RateLimit.CheckoutRequests)
	limits := handlers.RouteLimits{API: apiLimiter, Coupon: couponLimiter, Checkout: checkoutLimiter}

	routes := &routeHandlers{
		coupons:   handlers.NewCouponHandler(couponService, validator, log),
		razorpay:  handlers.NewRazorpayHandler(paymentService, checkoutService, validator, log),
		payments:  handlers.NewPaymentHandler(paymentService, log),
		health:    handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck),
		rateLimit: handlers.NewRateLimitHandler(log, apiLimiter, couponLimiter, checkoutLimiter),
	}

	registerEventHandlers(consumer, notificationService, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(routes, limits, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		mux:      mux,
		server:   server,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(h *routeHandlers, limits handlers.RouteLimits, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(next http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(limits.Middleware(log, next))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(h.health.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(h.health.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(h.health.Liveness))

	// Coupon endpoints
	mux.HandleFunc("/api/coupons/validate", applyAPI(h.coupons.ValidateCoupon))
	mux.HandleFunc("/api/coupons", applyAPI(handleCouponsRoute(h.coupons)))
	mux.HandleFunc("/api/coupons/", applyAPI(handleCouponRoute(h.coupons)))

	// Razorpay checkout endpoints
	mux.HandleFunc("/api/razorpay/validate-coupon", applyAPI(h.razorpay.ValidateCoupon))
	mux.HandleFunc("/api/razorpay/create-order", applyAPI(h.razorpay.CreateOrder))
	mux.HandleFunc("/api/razorpay/verify-payment", applyAPI(h.razorpay.VerifyPayment))

	// Payment endpoints
	mux.HandleFunc("/api/payments/", applyAPI(handlePaymentRoute(h.payments)))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(h.rateLimit.Status))

	return mux
}

// handleCouponsRoute обрабатывает маршруты для коллекции купонов
func handleCouponsRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListCoupons(w, r)
		case http.MethodPost:
			handler.CreateCoupon(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleCouponRoute обрабатывает маршруты для отдельного купона
func handleCouponRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		switch {
		case strings.HasSuffix(path, "/usages/export"):
			// Выгрузка истории использования в XLSX
			handler.ExportUsages(w, r)
		case strings.HasSuffix(path, "/usages"):
			handler.ListUsages(w, r)
		default:
			switch r.Method {
			case http.MethodGet:
				handler.GetCoupon(w, r)
			case http.MethodPut:
				handler.UpdateCoupon(w, r)
			case http.MethodDelete:
				handler.DeleteCoupon(w, r)
			default:
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// handlePaymentRoute обрабатывает маршруты для отдельного платежа
func handlePaymentRoute(handler *handlers.PaymentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimSuffix(r.URL.Path, "/")
		switch {
		case strings.HasSuffix(path, "/refund"):
			handler.RefundPayment(w, r)
		case strings.HasSuffix(path, "/receipt"):
			handler.Receipt(w, r)
		default:
			handler.GetPayment(w, r)
		}
	}
}

// enrollmentNotifier отправляет подтверждение зачисления по событию оплаты.
type enrollmentNotifier interface {
	HandlePaymentCompleted(ctx context.Context, event *models.Event) error
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, notifier enrollmentNotifier, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypePaymentCompleted, notifier.HandlePaymentCompleted)

	consumer.RegisterHandler(models.EventTypeCouponRedeemed, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing coupon redeemed event")
		return nil
	})

	consumer.RegisterHandler(models.EventTypePaymentRefunded, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing payment refunded event")
		return nil
	})
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
