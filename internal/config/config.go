package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Razorpay  RazorpayConfig  `json:"razorpay"`
	SMTP      SMTPConfig      `json:"smtp"`
	Cache     CacheConfig     `json:"cache"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	// Debug включает вывод деталей внутренних ошибок в ответах API.
	Debug bool `json:"debug"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Payments string `json:"payments"`
	Coupons  string `json:"coupons"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// RazorpayConfig хранит ключи платёжного шлюза
type RazorpayConfig struct {
	KeyID     string `json:"key_id"`
	KeySecret string `json:"-"`
	Currency  string `json:"currency"`
}

// Validate проверяет, что ключи шлюза заданы. Без секрета подпись платежа не защищает оформление покупки.
func (c RazorpayConfig) Validate() error {
	if c.KeyID == "" {
		return errors.New("RAZORPAY_KEY_ID is required")
	}
	if c.KeySecret == "" {
		return errors.New("RAZORPAY_KEY_SECRET is required")
	}
	return nil
}

// SMTPConfig описывает почтовый сервер для уведомлений
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"-"`
	From     string `json:"from"`
}

// Enabled сообщает, настроена ли отправка почты.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && c.Password != ""
}

// CacheConfig хранит настройки кеша
type CacheConfig struct {
	CourseTTLMinutes int `json:"course_ttl_minutes"`
}

// RateLimitConfig описывает настройки rate limiting.
// Requests - общий лимит на IP для всего API; CouponRequests и CheckoutRequests
// дополнительно ограничивают проверку купонов и подтверждение оплаты в том же окне.
type RateLimitConfig struct {
	Enabled          bool   `json:"enabled"`
	Requests         int    `json:"requests"`
	CouponRequests   int    `json:"coupon_requests"`
	CheckoutRequests int    `json:"checkout_requests"`
	WindowSeconds    int    `json:"window_seconds"`
	KeyPrefix        string `json:"key_prefix"`
}

// Load загружает конфигурацию из .env (если есть) и переменных окружения
func Load() *Config {
	// .env необязателен: переменные окружения имеют приоритет
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
			Debug:        getEnvAsBool("SERVER_DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "skillup_user"),
			Password: getEnv("DB_PASSWORD", "skillup_pass"),
			DBName:   getEnv("DB_NAME", "skillup_lms"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "skillup-checkout"),
			Topics: Topics{
				Payments: getEnv("KAFKA_TOPIC_PAYMENTS", "payments"),
				Coupons:  getEnv("KAFKA_TOPIC_COUPONS", "coupons"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Razorpay: RazorpayConfig{
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
			Currency:  getEnv("RAZORPAY_CURRENCY", "INR"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("EMAIL_FROM", "no-reply@skillup.local"),
		},
		Cache: CacheConfig{
			CourseTTLMinutes: getEnvAsInt("CACHE_COURSE_TTL_MINUTES", 15),
		},
		RateLimit: RateLimitConfig{
			Enabled:          getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:         getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			CouponRequests:   getEnvAsInt("RATE_LIMIT_COUPON_REQUESTS", 10),
			CheckoutRequests: getEnvAsInt("RATE_LIMIT_CHECKOUT_REQUESTS", 20),
			WindowSeconds:    getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:        getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
