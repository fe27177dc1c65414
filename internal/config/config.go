package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	LogLevel       string
	AllowedOrigins []string // CORS allowed origins

	OTP    OTPConfig
	Router RouterConfig

	SessionSecret string
	SessionTTL    time.Duration

	CodeStore     string // "redis" | "dynamo"
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	SNSEnabled bool
	SNSRegion  string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	MailTimeout  time.Duration

	OTPRatePerSecond float64
	OTPRateBurst     int
}

// OTPConfig controls one-time code generation and delivery.
type OTPConfig struct {
	CodeLength   int
	TTL          time.Duration
	HashCost     int
	MailFromName string
	MailSubject  string
}

// RouterConfig controls the fanout router's queues and backpressure.
type RouterConfig struct {
	QueueCapacity     int
	OutboundCapacity  int
	SendTimeout       time.Duration
	EvictUnresponsive bool
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	OTPCodes string
}

const (
	CodeStoreRedis  = "redis"
	CodeStoreDynamo = "dynamo"
)

// Load reads all configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		OTP: OTPConfig{
			CodeLength:   getEnvInt("OTP_CODE_LENGTH", 6),
			TTL:          getEnvDuration("OTP_TTL", 20*time.Second),
			HashCost:     getEnvInt("OTP_HASH_COST", 10),
			MailFromName: getEnv("OTP_MAIL_FROM_NAME", "Relay"),
			MailSubject:  getEnv("OTP_MAIL_SUBJECT", "Your verification code"),
		},
		Router: RouterConfig{
			QueueCapacity:     getEnvInt("ROUTER_QUEUE_CAPACITY", 128),
			OutboundCapacity:  getEnvInt("ROUTER_OUTBOUND_CAPACITY", 128),
			SendTimeout:       getEnvDuration("ROUTER_SEND_TIMEOUT", 250*time.Millisecond),
			EvictUnresponsive: getEnvBool("ROUTER_EVICT_UNRESPONSIVE", true),
		},
		SessionSecret:  getEnv("SESSION_SECRET", ""),
		SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
		CodeStore:      getEnv("CODE_STORE", CodeStoreRedis),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			OTPCodes: getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
		},
		SNSEnabled:       getEnvBool("SNS_ENABLED", false),
		SNSRegion:        getEnv("SNS_REGION", "us-east-1"),
		SMTPHost:         getEnv("SMTP_HOST", "localhost"),
		SMTPPort:         getEnv("SMTP_PORT", "1025"),
		SMTPFrom:         getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		MailTimeout:      getEnvDuration("MAIL_TIMEOUT", 10*time.Second),
		OTPRatePerSecond: getEnvFloat("OTP_RATE_PER_SECOND", 1),
		OTPRateBurst:     getEnvInt("OTP_RATE_BURST", 5),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if c.OTP.CodeLength <= 0 {
		errs = append(errs, fmt.Errorf("OTP_CODE_LENGTH must be positive, got %d", c.OTP.CodeLength))
	}
	if c.OTP.TTL <= 0 {
		errs = append(errs, fmt.Errorf("OTP_TTL must be positive, got %s", c.OTP.TTL))
	}
	if c.Router.QueueCapacity <= 0 || c.Router.OutboundCapacity <= 0 {
		errs = append(errs, errors.New("router capacities must be positive"))
	}
	if c.Router.SendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ROUTER_SEND_TIMEOUT must be positive, got %s", c.Router.SendTimeout))
	}
	if c.CodeStore != CodeStoreRedis && c.CodeStore != CodeStoreDynamo {
		errs = append(errs, fmt.Errorf("CODE_STORE must be %q or %q, got %q", CodeStoreRedis, CodeStoreDynamo, c.CodeStore))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("invalid int in environment, using default", "key", key, "default", fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("invalid float in environment, using default", "key", key, "default", fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		slog.Warn("invalid bool in environment, using default", "key", key, "default", fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "default", fallback)
	}
	return fallback
}
