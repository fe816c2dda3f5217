package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Драйверы хранилища платежей.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr    string
	KafkaBrokers string

	// ReturnURL — базовый адрес, куда шлюз возвращает покупателя.
	ReturnURL string

	WebpayBaseURL      string
	WebpayCommerceCode string
	WebpayAPIKey       string
	// WebpayMock включает заглушку шлюза для локальной разработки.
	WebpayMock bool

	BCCHUser     string
	BCCHPassword string

	// PaymentExpiryInterval — период обхода зависших платежей.
	PaymentExpiryInterval time.Duration
	// PaymentMaxAge — возраст, после которого незавершенный платеж истекает.
	PaymentMaxAge time.Duration
}

// DefaultConfig возвращает настройки для локального запуска: in-memory
// хранилище и интеграционное окружение Transbank.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
	}
}

// LoadConfig читает настройки из окружения поверх значений по умолчанию.
// Файл .env подхватывается, если присутствует.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = getenv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.StorageDriver = getenv("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = getenv("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = getenvBool("POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.RedisAddr = getenv("REDIS_ADDR", cfg.RedisAddr)
	cfg.KafkaBrokers = getenv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.ReturnURL = getenv("PAYMENT_RETURN_URL", cfg.ReturnURL)
	cfg.WebpayBaseURL = getenv("WEBPAY_BASE_URL", cfg.WebpayBaseURL)
	cfg.WebpayCommerceCode = getenv("WEBPAY_COMMERCE_CODE", cfg.WebpayCommerceCode)
	cfg.WebpayAPIKey = getenv("WEBPAY_API_KEY", cfg.WebpayAPIKey)
	cfg.WebpayMock = getenvBool("WEBPAY_MOCK", cfg.WebpayMock)
	cfg.BCCHUser = getenv("BCCH_USER", cfg.BCCHUser)
	cfg.BCCHPassword = getenv("BCCH_PASSWORD", cfg.BCCHPassword)
	cfg.PaymentExpiryInterval = getenvDuration("PAYMENT_EXPIRY_INTERVAL", cfg.PaymentExpiryInterval)
	cfg.PaymentMaxAge = getenvDuration("PAYMENT_MAX_AGE", cfg.PaymentMaxAge)
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
