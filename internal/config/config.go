package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "REVSHARE"

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type ShareholderConfig struct {
	Address string `mapstructure:"address"`
	Units   uint64 `mapstructure:"units"`
}

type PoolConfig struct {
	Account      string              `mapstructure:"account"`
	Shareholders []ShareholderConfig `mapstructure:"shareholders"`
	// Allocation is the compact "addr=units,addr=units" form, convenient in env vars.
	Allocation string `mapstructure:"allocation"`
}

type LedgerConfig struct {
	Backend       string `mapstructure:"backend"`
	IssuerAccount string `mapstructure:"issuer_account"`
}

type CheckpointConfig struct {
	Backend  string `mapstructure:"backend"`
	BoltPath string `mapstructure:"bolt_path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type Config struct {
	ServiceName string           `mapstructure:"service_name"`
	Env         string           `mapstructure:"env"`
	LogLevel    string           `mapstructure:"log_level"`
	MetricsPath string           `mapstructure:"metrics_path"`
	HTTP        HTTPConfig       `mapstructure:"http"`
	Pool        PoolConfig       `mapstructure:"pool"`
	Ledger      LedgerConfig     `mapstructure:"ledger"`
	Checkpoints CheckpointConfig `mapstructure:"checkpoints"`
	Postgres    PostgresConfig   `mapstructure:"postgres"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
}

// Load reads an optional .env file, then the YAML file at path (default
// config.yaml, also optional), then REVSHARE_* environment variables.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// AutomaticEnv only feeds keys viper already knows; a CSV broker list
	// arrives as one string
	if raw := os.Getenv(envPrefix + "_KAFKA_BROKERS"); raw != "" {
		cfg.Kafka.Brokers = splitCSV(raw)
	}

	if cfg.Pool.Allocation != "" {
		shareholders, err := ParseAllocation(cfg.Pool.Allocation)
		if err != nil {
			return nil, err
		}
		cfg.Pool.Shareholders = shareholders
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "revenue-sharing-ledger")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("pool.account", "revenue-pool")
	v.SetDefault("pool.allocation", "")
	v.SetDefault("ledger.backend", BackendMemory)
	v.SetDefault("ledger.issuer_account", "issuer")
	v.SetDefault("checkpoints.backend", BackendMemory)
	v.SetDefault("checkpoints.bolt_path", "data/checkpoints.db")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("kafka.topic", "dividends.paid")
}

// Validate checks the settings the service can't start without. The share
// allocation itself is validated by the registry.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 {
		return fmt.Errorf("http.port must be positive, got %d", c.HTTP.Port)
	}
	if strings.TrimSpace(c.Pool.Account) == "" {
		return fmt.Errorf("pool.account required")
	}
	if c.Pool.Account == c.Ledger.IssuerAccount {
		return fmt.Errorf("pool.account must differ from ledger.issuer_account")
	}
	switch c.Ledger.Backend {
	case BackendMemory, BackendPostgres:
	default:
		return fmt.Errorf("unknown ledger.backend %q", c.Ledger.Backend)
	}
	switch c.Checkpoints.Backend {
	case BackendMemory, BackendPostgres:
	case BackendBolt:
		if c.Checkpoints.BoltPath == "" {
			return fmt.Errorf("checkpoints.bolt_path required for bolt backend")
		}
	default:
		return fmt.Errorf("unknown checkpoints.backend %q", c.Checkpoints.Backend)
	}
	if c.NeedsPostgres() && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn required for postgres backend")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic required when brokers are set")
	}
	return nil
}

// NeedsPostgres reports whether any backend is PostgreSQL.
func (c *Config) NeedsPostgres() bool {
	return c.Ledger.Backend == BackendPostgres || c.Checkpoints.Backend == BackendPostgres
}

// ShareLists splits the configured allocation into parallel lists.
func (c *Config) ShareLists() ([]string, []uint64) {
	shareholders := make([]string, len(c.Pool.Shareholders))
	units := make([]uint64, len(c.Pool.Shareholders))
	for i, s := range c.Pool.Shareholders {
		shareholders[i] = s.Address
		units[i] = s.Units
	}
	return shareholders, units
}

// ParseAllocation parses "addr=units,addr=units".
func ParseAllocation(raw string) ([]ShareholderConfig, error) {
	var out []ShareholderConfig
	for _, part := range splitCSV(raw) {
		addr, units, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("pool.allocation: %q is not addr=units", part)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(units), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("pool.allocation: units of %q: %w", addr, err)
		}
		out = append(out, ShareholderConfig{Address: strings.TrimSpace(addr), Units: n})
	}
	return out, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
