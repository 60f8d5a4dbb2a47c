package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config: полная конфигурация процесса матчинга.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Matching MatchingConfig
}

type AppConfig struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"booking-matcher"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`
	GRPCAddr    string `envconfig:"GRPC_ADDR" default:":50051"`
	OpsHTTPAddr string `envconfig:"OPS_HTTP_ADDR" default:":9090"`
}

type DBConfig struct {
	Driver          string        `envconfig:"DB_DRIVER" default:"postgres"`
	DSN             string        `envconfig:"DB_DSN"`
	Host            string        `envconfig:"DB_HOST" default:"postgres"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"booking"`
	Password        string        `envconfig:"DB_PASSWORD" default:"booking"`
	Name            string        `envconfig:"DB_NAME" default:"booking_db"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	TimeZone        string        `envconfig:"DB_TIMEZONE" default:"UTC"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

// PostgresDSN собирает DSN из отдельных полей, если DSN не задан явно.
func (c DBConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Host,
		c.User,
		c.Password,
		c.Name,
		c.Port,
		c.SSLMode,
		c.TimeZone,
	)
}

// RedisConfig: пустой URL означает работу без распределённых блокировок.
type RedisConfig struct {
	URL     string        `envconfig:"REDIS_URL"`
	LockTTL time.Duration `envconfig:"REDIS_LOCK_TTL" default:"30s"`
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// AMQPConfig: пустой URL: события только логируются, команды на подбор не читаются.
type AMQPConfig struct {
	URL        string `envconfig:"AMQP_URL"`
	Exchange   string `envconfig:"AMQP_EXCHANGE" default:"booking.events"`
	MatchQueue string `envconfig:"AMQP_MATCH_QUEUE" default:"booking-matcher.match-requests"`
}

func (c AMQPConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

type MatchingConfig struct {
	// IANA-зона по умолчанию для расчёта дат и минут дня.
	TimeZone         string        `envconfig:"MATCHING_TIMEZONE" default:"UTC"`
	OfferTTL         time.Duration `envconfig:"MATCHING_OFFER_TTL" default:"15m"`
	SweepInterval    time.Duration `envconfig:"MATCHING_SWEEP_INTERVAL" default:"1m"`
	MaxOfferAttempts int           `envconfig:"MATCHING_MAX_OFFER_ATTEMPTS" default:"3"`
}

// Location возвращает зону планирования.
func (c MatchingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres:
		if c.DB.DSN == "" && (c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "") {
			return fmt.Errorf("invalid DB config: host/user/name must not be empty")
		}
	case DriverSQLite:
		if c.DB.DSN == "" {
			return fmt.Errorf("invalid DB config: DB_DSN is required for sqlite")
		}
	default:
		return fmt.Errorf("invalid DB config: unknown driver %q", c.DB.Driver)
	}

	if _, err := c.Matching.Location(); err != nil {
		return fmt.Errorf("invalid MATCHING_TIMEZONE %q: %w", c.Matching.TimeZone, err)
	}
	if c.Matching.OfferTTL <= 0 {
		return fmt.Errorf("MATCHING_OFFER_TTL must be positive")
	}
	if c.Matching.SweepInterval <= 0 {
		return fmt.Errorf("MATCHING_SWEEP_INTERVAL must be positive")
	}
	if c.Matching.MaxOfferAttempts <= 0 {
		return fmt.Errorf("MATCHING_MAX_OFFER_ATTEMPTS must be positive")
	}
	return nil
}
