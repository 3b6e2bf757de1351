package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Supported storage backends.
const (
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_ENV"` specify the environment variable name.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"` // development or production
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile    string `envconfig:"LOG_FILE"` // rotating log file, stdout only when empty
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Store      StoreConfig
	Postgres   PostgresConfig
	Inventory  InventoryConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	MaxUploadMB  int64         `envconfig:"HTTP_SERVER_MAX_UPLOAD_MB" default:"8"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// StoreConfig selects where the product collection is persisted.
type StoreConfig struct {
	Backend  string `envconfig:"STORE_BACKEND" default:"bolt"`
	Key      string `envconfig:"STORE_KEY" default:"inventorypro_products_v1"`
	BoltPath string `envconfig:"BOLT_PATH" default:"data/inventory.db"`
}

// PostgresConfig holds PostgreSQL connection details, used by the postgres backend.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// InventoryConfig tunes the product operations.
type InventoryConfig struct {
	SeedFile                string `envconfig:"SEED_FILE"`                    // bundled seed when empty
	ExportDir               string `envconfig:"EXPORT_DIR" default:"exports"` // "-" writes exports to stdout
	ExportFormat            string `envconfig:"EXPORT_FORMAT" default:"json"`
	RecomputeStatusOnAdjust bool   `envconfig:"RECOMPUTE_STATUS_ON_ADJUST" default:"true"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// Load reads the configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendBolt:
		if c.Store.BoltPath == "" {
			return fmt.Errorf("BOLT_PATH is required for the %s backend", BackendBolt)
		}
	case BackendPostgres:
		if c.Postgres.Host == "" || c.Postgres.User == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_USER and POSTGRES_DBNAME are required for the %s backend", BackendPostgres)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid STORE_BACKEND %q: want %s, %s or %s", c.Store.Backend, BackendBolt, BackendPostgres, BackendMemory)
	}
	switch c.Inventory.ExportFormat {
	case "json", "csv":
	default:
		return fmt.Errorf("invalid EXPORT_FORMAT %q: want json or csv", c.Inventory.ExportFormat)
	}
	if c.Store.Key == "" {
		return fmt.Errorf("STORE_KEY must not be empty")
	}
	return nil
}
