package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Ledger   LedgerConfig
	Offline  OfflineConfig
	Log      LogConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig selects the ledger store. Driver is memory or postgres.
type DatabaseConfig struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// LedgerConfig holds the accounting settings
type LedgerConfig struct {
	TaxRate   float64 // sales surcharge, 0.12 = 12%
	ChartPath string  // optional YAML chart of accounts
}

// OfflineConfig holds offline queue settings
type OfflineConfig struct {
	DBPath       string // sqlite file; empty keeps the queue in memory
	SyncSchedule string // cron expression with seconds, or a descriptor like "@every 1m"
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Load reads configuration. Priority (highest to lowest):
// 1. LEDGER_ prefixed environment variables (e.g. LEDGER_DATABASE_DSN)
// 2. variables from envFiles, or ./.env when none are given
// 3. config.yaml in the working directory
// 4. built-in defaults
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("error loading env file: %w", err)
		}
	} else {
		// .env is optional
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:       v.GetString("database.driver"),
			DSN:          v.GetString("database.dsn"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
		},
		Kafka: KafkaConfig{
			Enabled: v.GetBool("kafka.enabled"),
			Brokers: splitList(v.GetStringSlice("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Ledger: LedgerConfig{
			TaxRate:   v.GetFloat64("ledger.tax_rate"),
			ChartPath: v.GetString("ledger.chart_path"),
		},
		Offline: OfflineConfig{
			DBPath:       v.GetString("offline.db_path"),
			SyncSchedule: v.GetString("offline.sync_schedule"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	// tax_rate 0 is a valid setting, so only default it when unset
	if !v.IsSet("ledger.tax_rate") {
		cfg.Ledger.TaxRate = 0.12
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledger-core"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverMemory
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "ledger.transaction_recorded"
	}
	if cfg.Offline.SyncSchedule == "" {
		cfg.Offline.SyncSchedule = "@every 1m"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Ledger.TaxRate < 0 || c.Ledger.TaxRate >= 1 {
		return fmt.Errorf("ledger.tax_rate must be in [0, 1), got %v", c.Ledger.TaxRate)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
