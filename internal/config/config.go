package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tm-acme-shop/acme-shop-pos-service/internal/pos"
)

type Config struct {
	Server              ServerConfig
	Database            DatabaseConfig
	Redis               RedisConfig
	Kafka               KafkaConfig
	OrderService        ServiceConfig
	CustomerService     ServiceConfig
	NotificationService ServiceConfig
	POS                 POSConfig
	Features            FeatureFlags
	Log                 LogConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	MigrationsDir string
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host           string
	Port           int
	Password       string
	DB             int
	SessionTTL     time.Duration
	IdempotencyTTL time.Duration
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers        []string
	SalesTopic     string
	DirectoryTopic string
	ConsumerGroup  string
}

type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
	APIKey  string
}

// POSConfig holds the behaviour of the sale engine itself.
type POSConfig struct {
	MergePolicy    string
	SubmitTimeout  time.Duration
	SearchDebounce time.Duration
	MaxDiscountPct int
}

type FeatureFlags struct {
	EnableSaleEvents          bool
	EnableSessionCache        bool
	EnableSaleAudit           bool
	EnableReceipts            bool
	VerifyPrescriptionOwner   bool
	EnableDirectoryConsumer   bool
	EnableIdempotentCheckouts bool
}

type LogConfig struct {
	Level       string
	Development bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 8086),
			ReadTimeout:     time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout:    time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvInt("SERVER_SHUTDOWN_TIMEOUT", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:          getEnvString("DB_HOST", "localhost"),
			Port:          getEnvInt("DB_PORT", 5432),
			User:          getEnvString("DB_USER", "acme"),
			Password:      getEnvString("DB_PASSWORD", "acme"),
			Name:          getEnvString("DB_NAME", "acme_pos"),
			SSLMode:       getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:   getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir: getEnvString("DB_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Host:           getEnvString("REDIS_HOST", "localhost"),
			Port:           getEnvInt("REDIS_PORT", 6379),
			Password:       getEnvString("REDIS_PASSWORD", ""),
			DB:             getEnvInt("REDIS_DB", 0),
			SessionTTL:     getEnvDuration("REDIS_SESSION_TTL", 12*time.Hour),
			IdempotencyTTL: getEnvDuration("REDIS_IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:        getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			SalesTopic:     getEnvString("KAFKA_SALES_TOPIC", "pos.sales"),
			DirectoryTopic: getEnvString("KAFKA_DIRECTORY_TOPIC", "customers.events"),
			ConsumerGroup:  getEnvString("KAFKA_CONSUMER_GROUP", "pos-service"),
		},
		OrderService: ServiceConfig{
			BaseURL: getEnvString("ORDER_SERVICE_URL", "http://localhost:8082"),
			Timeout: time.Duration(getEnvInt("ORDER_SERVICE_TIMEOUT", 15)) * time.Second,
			APIKey:  getEnvString("ORDER_SERVICE_API_KEY", ""),
		},
		CustomerService: ServiceConfig{
			BaseURL: getEnvString("CUSTOMER_SERVICE_URL", "http://localhost:8081"),
			Timeout: time.Duration(getEnvInt("CUSTOMER_SERVICE_TIMEOUT", 5)) * time.Second,
			APIKey:  getEnvString("CUSTOMER_SERVICE_API_KEY", ""),
		},
		NotificationService: ServiceConfig{
			BaseURL: getEnvString("NOTIFICATION_SERVICE_URL", "http://localhost:8084"),
			Timeout: time.Duration(getEnvInt("NOTIFICATION_SERVICE_TIMEOUT", 10)) * time.Second,
			APIKey:  getEnvString("NOTIFICATION_SERVICE_API_KEY", ""),
		},
		POS: POSConfig{
			MergePolicy:    getEnvString("POS_MERGE_POLICY", "merge"),
			SubmitTimeout:  time.Duration(getEnvInt("POS_SUBMIT_TIMEOUT_MS", 20000)) * time.Millisecond,
			SearchDebounce: time.Duration(getEnvInt("POS_SEARCH_DEBOUNCE_MS", 300)) * time.Millisecond,
			MaxDiscountPct: getEnvInt("POS_MAX_DISCOUNT_PCT", 100),
		},
		Features: FeatureFlags{
			EnableSaleEvents:          getEnvBool("FEATURE_SALE_EVENTS", true),
			EnableSessionCache:        getEnvBool("FEATURE_SESSION_CACHE", true),
			EnableSaleAudit:           getEnvBool("FEATURE_SALE_AUDIT", true),
			EnableReceipts:            getEnvBool("FEATURE_RECEIPTS", false),
			VerifyPrescriptionOwner:   getEnvBool("FEATURE_VERIFY_PRESCRIPTION_OWNER", true),
			EnableDirectoryConsumer:   getEnvBool("FEATURE_DIRECTORY_CONSUMER", true),
			EnableIdempotentCheckouts: getEnvBool("FEATURE_IDEMPOTENT_CHECKOUTS", true),
		},
		Log: LogConfig{
			Level:       getEnvString("LOG_LEVEL", "info"),
			Development: getEnvBool("LOG_DEVELOPMENT", false),
		},
	}
}

// Validate checks values that would otherwise fail at first use.
func (c *Config) Validate() error {
	if _, err := pos.ParseMergePolicy(c.POS.MergePolicy); err != nil {
		return err
	}
	if c.POS.MaxDiscountPct < 0 || c.POS.MaxDiscountPct > 100 {
		return fmt.Errorf("POS_MAX_DISCOUNT_PCT must be between 0 and 100, got %d", c.POS.MaxDiscountPct)
	}
	if c.OrderService.BaseURL == "" {
		return fmt.Errorf("ORDER_SERVICE_URL is required")
	}
	if c.POS.SubmitTimeout < 0 || c.POS.SearchDebounce < 0 {
		return fmt.Errorf("POS timeouts cannot be negative")
	}
	return nil
}

// MergePolicy returns the parsed cart merge policy. Call Validate first.
func (c *Config) MergePolicy() pos.MergePolicy {
	p, _ := pos.ParseMergePolicy(c.POS.MergePolicy)
	return p
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
