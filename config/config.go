package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "checkout-service/pkg/aws"

	"github.com/joho/godotenv"
)

// Event transports for payment events.
const (
	EventTransportSNS   = "sns"
	EventTransportKafka = "kafka"
	EventTransportNone  = "none"
)

const (
	dbSecretName       = "checkout/DB_CREDENTIALS"
	razorpaySecretName = "checkout/RAZORPAY_CREDENTIALS"
)

type Config struct {
	Env  string
	Port string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL   string
	SessionTTL time.Duration

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayTimeout   time.Duration

	Currency                   string
	FreeShippingThresholdPaise int64
	FlatShippingFeePaise       int64

	EventTransport     string
	PaymentSNSTopicARN string
	KafkaBrokers       []string
	KafkaPaymentTopic  string
	MetricsEnabled     bool
	MetricsNamespace   string
	CloudWatchLogGroup string
	JWTSecret          string
	AllowedOrigins     []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	UseSecretsManager  bool
}

// secretMapGetter is the part of the Secrets Manager client LoadConfig uses.
type secretMapGetter interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

// LoadConfig reads configuration from the environment (and .env when
// present). With AWS_USE_SECRETS=true the database and Razorpay credentials
// come from Secrets Manager instead.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.UseSecretsManager {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		if err := applySecrets(ctx, cfg, awspkg.NewSecretsClient(awsCfg)); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Env:                getEnv("ENV", "development"),
		Port:               getEnv("PORT", "8092"),
		PostgresUser:       os.Getenv("POSTGRES_USER"),
		PostgresPassword:   os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:         os.Getenv("POSTGRES_DB"),
		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone:   getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RazorpayKeyID:      os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:  os.Getenv("RAZORPAY_KEY_SECRET"),
		Currency:           strings.ToUpper(getEnv("CURRENCY", "INR")),
		EventTransport:     strings.ToLower(getEnv("EVENT_TRANSPORT", EventTransportNone)),
		PaymentSNSTopicARN: os.Getenv("PAYMENT_SNS_TOPIC_ARN"),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaPaymentTopic:  getEnv("KAFKA_PAYMENT_TOPIC", "checkout-payment-events"),
		MetricsEnabled:     os.Getenv("METRICS_ENABLED") == "true",
		MetricsNamespace:   getEnv("METRICS_NAMESPACE", "ECommerce/Checkout"),
		CloudWatchLogGroup: os.Getenv("CLOUDWATCH_LOG_GROUP"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		UseSecretsManager:  os.Getenv("AWS_USE_SECRETS") == "true",
	}

	var err error
	if cfg.SessionTTL, err = getDuration("CHECKOUT_SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RazorpayTimeout, err = getDuration("RAZORPAY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.FreeShippingThresholdPaise, err = getInt64("FREE_SHIPPING_THRESHOLD_PAISE", 20000); err != nil {
		return nil, err
	}
	if cfg.FlatShippingFeePaise, err = getInt64("FLAT_SHIPPING_FEE_PAISE", 1500); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerSecond, err = strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10")); err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_BURST: %w", err)
	}
	return cfg, nil
}

func applySecrets(ctx context.Context, cfg *Config, sm secretMapGetter) error {
	db, err := sm.GetSecretMap(ctx, dbSecretName)
	if err != nil {
		return fmt.Errorf("read %s: %w", dbSecretName, err)
	}
	override(&cfg.PostgresUser, db["POSTGRES_USER"])
	override(&cfg.PostgresPassword, db["POSTGRES_PASSWORD"])
	override(&cfg.PostgresDB, db["POSTGRES_DB"])
	override(&cfg.PostgresHost, db["POSTGRES_HOST"])
	override(&cfg.PostgresPort, db["POSTGRES_PORT"])

	rzp, err := sm.GetSecretMap(ctx, razorpaySecretName)
	if err != nil {
		return fmt.Errorf("read %s: %w", razorpaySecretName, err)
	}
	override(&cfg.RazorpayKeyID, rzp["RAZORPAY_KEY_ID"])
	override(&cfg.RazorpayKeySecret, rzp["RAZORPAY_KEY_SECRET"])
	return nil
}

func (c *Config) validate() error {
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
		return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required")
	}
	switch c.EventTransport {
	case EventTransportNone, EventTransportKafka:
	case EventTransportSNS:
		if c.PaymentSNSTopicARN == "" {
			return fmt.Errorf("PAYMENT_SNS_TOPIC_ARN is required when EVENT_TRANSPORT=sns")
		}
	default:
		return fmt.Errorf("unknown EVENT_TRANSPORT %q", c.EventTransport)
	}
	if c.FreeShippingThresholdPaise < 0 || c.FlatShippingFeePaise < 0 {
		return fmt.Errorf("shipping amounts must not be negative")
	}
	return nil
}

// PostgresDSN returns the connection string for gorm's postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB,
		c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
