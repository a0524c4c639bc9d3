package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config is the storefront BFF configuration.
type Config struct {
	App      AppConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	SQLite   SQLiteConfig
	Tabs     TabsConfig
	Checkout CheckoutConfig
	OrderAPI OrderAPIConfig
}

type AppConfig struct {
	Env             string        `envconfig:"STOREFRONT_APP_ENV" default:"dev"`
	Port            string        `envconfig:"STOREFRONT_HTTP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	RequestTimeout  time.Duration `envconfig:"STOREFRONT_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"STOREFRONT_ALLOWED_ORIGINS"`
	CookieSecure    bool          `envconfig:"STOREFRONT_COOKIE_SECURE" default:"false"`
}

type StorageConfig struct {
	Driver string        `envconfig:"STOREFRONT_STORAGE_DRIVER" default:"redis"`
	TTL    time.Duration `envconfig:"STOREFRONT_STORAGE_TTL" default:"720h"`
}

type RedisConfig struct {
	Address  string `envconfig:"STOREFRONT_REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB       int    `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
}

type MongoConfig struct {
	URI        string `envconfig:"STOREFRONT_MONGO_URI" default:"mongodb://localhost:27017"`
	Database   string `envconfig:"STOREFRONT_MONGO_DB" default:"storefront"`
	Collection string `envconfig:"STOREFRONT_MONGO_COLLECTION" default:"records"`
}

type SQLiteConfig struct {
	Path           string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`
	MigrationsPath string `envconfig:"STOREFRONT_SQLITE_MIGRATIONS_PATH" default:"./internal/storage/migrations"`
}

type TabsConfig struct {
	IdleTTL       time.Duration `envconfig:"STOREFRONT_TAB_IDLE_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"STOREFRONT_TAB_SWEEP_INTERVAL" default:"1m"`
}

type CheckoutConfig struct {
	SubmitTimeout time.Duration `envconfig:"STOREFRONT_CHECKOUT_SUBMIT_TIMEOUT" default:"15s"`
	RedirectDelay time.Duration `envconfig:"STOREFRONT_CHECKOUT_REDIRECT_DELAY" default:"3s"`
	RedirectPath  string        `envconfig:"STOREFRONT_CHECKOUT_REDIRECT_PATH" default:"/"`
}

type OrderAPIConfig struct {
	BaseURL          string        `envconfig:"STOREFRONT_ORDER_API_URL" default:"http://localhost:8090"`
	BreakerFailures  uint32        `envconfig:"STOREFRONT_ORDER_API_BREAKER_FAILURES" default:"5"`
	BreakerOpenDelay time.Duration `envconfig:"STOREFRONT_ORDER_API_BREAKER_OPEN" default:"30s"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	loadDotEnv()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case StorageRedis, StorageMongo, StorageMemory, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Checkout.SubmitTimeout <= 0 {
		return fmt.Errorf("checkout submit timeout must be positive")
	}
	return nil
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "dev")
}

// OrdersConfig configures the reference Order API receiver.
type OrdersConfig struct {
	Port            string        `envconfig:"ORDERS_HTTP_PORT" default:"8090"`
	LogLevel        string        `envconfig:"ORDERS_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"ORDERS_LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"ORDERS_SHUTDOWN_TIMEOUT" default:"10s"`

	DBHost         string `envconfig:"ORDERS_DB_HOST" default:"localhost"`
	DBPort         int    `envconfig:"ORDERS_DB_PORT" default:"5432"`
	DBUser         string `envconfig:"ORDERS_DB_USER" default:"postgres"`
	DBPassword     string `envconfig:"ORDERS_DB_PASSWORD" default:"postgres"`
	DBName         string `envconfig:"ORDERS_DB_NAME" default:"storefront"`
	MigrationsPath string `envconfig:"ORDERS_MIGRATIONS_PATH" default:"./internal/orders/migrations"`

	KafkaBrokers []string `envconfig:"ORDERS_KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"ORDERS_KAFKA_TOPIC" default:"orders-placed"`
}

func LoadOrders() (*OrdersConfig, error) {
	loadDotEnv()

	var cfg OrdersConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv() {
	// a missing .env is normal outside local development
	_ = godotenv.Load(".env")
}
