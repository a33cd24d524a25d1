package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root application configuration.
type Config struct {
	Env       string          `yaml:"env" env:"APP_ENV" env-default:"development"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Admin     AdminConfig     `yaml:"admin"`
	Storage   StorageConfig   `yaml:"storage"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Documents DocumentsConfig `yaml:"documents"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"SERVER_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout"  env:"SERVER_REQUEST_TIMEOUT"  env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins"     env:"SERVER_CORS_ORIGINS"     env-default:"*" env-separator:","`
}

type AuthConfig struct {
	JWTSigningKey string        `yaml:"jwt_signing_key" env:"AUTH_JWT_SIGNING_KEY"`
	JWTIssuer     string        `yaml:"jwt_issuer"      env:"AUTH_JWT_ISSUER"      env-default:"kycgate"`
	TokenTTL      time.Duration `yaml:"token_ttl"       env:"AUTH_TOKEN_TTL"       env-default:"1h"`
	BcryptCost    int           `yaml:"bcrypt_cost"     env:"AUTH_BCRYPT_COST"     env-default:"12"`
}

type AdminConfig struct {
	Token string `yaml:"token" env:"ADMIN_API_TOKEN"`
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"               env:"POSTGRES_DSN"`
	MaxConns        int32         `yaml:"max_conns"         env:"POSTGRES_MAX_CONNS"         env-default:"20"`
	MinConns        int32         `yaml:"min_conns"         env:"POSTGRES_MIN_CONNS"         env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"POSTGRES_MAX_CONN_LIFETIME" env-default:"1h"`
	AutoMigrate     bool          `yaml:"auto_migrate"      env:"POSTGRES_AUTO_MIGRATE"      env-default:"true"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"      env:"MONGO_URI"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"kycgate"`
}

// RedisConfig enables the distributed per-user lock. An empty URL falls back
// to an in-process lock.
type RedisConfig struct {
	URL          string        `yaml:"url"            env:"REDIS_URL"`
	PoolSize     int           `yaml:"pool_size"      env:"REDIS_POOL_SIZE"      env-default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `yaml:"dial_timeout"   env:"REDIS_DIAL_TIMEOUT"   env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout"   env:"REDIS_READ_TIMEOUT"   env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout"  env:"REDIS_WRITE_TIMEOUT"  env-default:"3s"`
	LockTTL      time.Duration `yaml:"lock_ttl"       env:"REDIS_LOCK_TTL"       env-default:"10s"`
}

// KafkaConfig enables the audit stream. It requires the postgres backend
// because entries are relayed from the outbox table.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"        env:"KAFKA_BROKERS" env-separator:","`
	AuditTopic    string        `yaml:"audit_topic"    env:"KAFKA_AUDIT_TOPIC"    env-default:"kyc.audit"`
	RelayInterval time.Duration `yaml:"relay_interval" env:"KAFKA_RELAY_INTERVAL" env-default:"1s"`
	RelayBatch    int           `yaml:"relay_batch"    env:"KAFKA_RELAY_BATCH"    env-default:"100"`
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"      env:"RABBITMQ_URL"`
	Exchange string `yaml:"exchange" env:"RABBITMQ_EXCHANGE" env-default:"kyc.events"`
}

type DocumentsConfig struct {
	Backend  string `yaml:"backend"   env:"DOCUMENTS_BACKEND"   env-default:"fs"`
	Dir      string `yaml:"dir"       env:"DOCUMENTS_DIR"       env-default:"./uploads/kyc_documents"`
	MaxBytes int64  `yaml:"max_bytes" env:"DOCUMENTS_MAX_BYTES" env-default:"5242880"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Storage and document backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"

	DocumentsFS     = "fs"
	DocumentsGridFS = "gridfs"
	DocumentsMemory = "memory"
)

// Load reads an optional .env file, then the YAML file at CONFIG_PATH when
// set, otherwise environment variables with defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether development fallbacks must be refused.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks cross-field rules and fills development defaults.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres backend")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Documents.Backend {
	case DocumentsFS, DocumentsMemory:
	case DocumentsGridFS:
		if c.Storage.Backend != BackendMongo {
			return errors.New("gridfs documents require the mongo storage backend")
		}
	default:
		return fmt.Errorf("unknown documents backend %q", c.Documents.Backend)
	}
	if c.Documents.MaxBytes <= 0 {
		return fmt.Errorf("documents.max_bytes must be > 0 (got %d)", c.Documents.MaxBytes)
	}

	if len(c.Kafka.Brokers) > 0 && c.Storage.Backend != BackendPostgres {
		return errors.New("kafka audit stream requires the postgres storage backend")
	}

	if c.Auth.JWTSigningKey == "" {
		if c.IsProduction() {
			return errors.New("auth.jwt_signing_key is required in production")
		}
		c.Auth.JWTSigningKey = devSigningKey
	}
	if c.IsProduction() && c.Admin.Token == "" {
		return errors.New("admin.token is required in production")
	}
	return nil
}
