package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"` // "dev" or "prod"
	Log         LogConfig      `mapstructure:"log"`
	Database    DatabaseConfig `mapstructure:"database"`
	Market      MarketConfig   `mapstructure:"market"`
	Paper       PaperConfig    `mapstructure:"paper"`
	HTTP        HTTPConfig     `mapstructure:"http"`
}

type DatabaseConfig struct {
	Driver     string         `mapstructure:"driver"`      // "postgres" or "sqlite"
	SQLitePath string         `mapstructure:"sqlite_path"` // used when driver is sqlite
	CreateDB   bool           `mapstructure:"create_db"`   // create the postgres database on start-up
	Postgres   PostgresConfig `mapstructure:"postgres"`
}

type MarketConfig struct {
	Symbols      []string      `mapstructure:"symbols"`       // seeded into the symbol registry on start-up
	TickInterval time.Duration `mapstructure:"tick_interval"` // wall clock per simulated day
	Retention    int           `mapstructure:"retention"`     // price points kept per symbol
	SyncSchedule string        `mapstructure:"sync_schedule"` // cron spec for the registry sync job
}

type PaperConfig struct {
	StartingCash float64 `mapstructure:"starting_cash"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile string `mapstructure:"output_file"` // file path to store logs (optional)
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotation size for output_file
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	// Environment is copied from Config.Environment by Load.
	Environment string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", "data/marketsim.db")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.dbname", "marketsim")
	v.SetDefault("database.postgres.sslmode", "disable")
	v.SetDefault("database.postgres.timezone", "UTC")
	v.SetDefault("database.postgres.max_open_conns", 10)
	v.SetDefault("database.postgres.max_idle_conns", 5)
	v.SetDefault("database.postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("market.symbols", []string{"AAPL", "GOOGL", "MSFT", "AMZN", "TSLA"})
	v.SetDefault("market.tick_interval", 3*time.Second)
	v.SetDefault("market.retention", 365)
	v.SetDefault("market.sync_schedule", "@every 1m")

	v.SetDefault("paper.starting_cash", 100000.0)

	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
}

// Load loads application configuration using Viper.
// It reads config.yaml (or the explicit path, when given) and overrides with environment variables.
// A missing config file is not an error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath("config")

		ex, _ := os.Executable()
		if strings.Contains(ex, "go-build") {
			pwd, _ := os.Getwd()
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
		} else {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
	}

	// Support environment variables with dot notation (e.g., MARKET_TICK_INTERVAL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Log.Environment = cfg.Environment

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the simulator cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Market.TickInterval <= 0 {
		return fmt.Errorf("market.tick_interval must be positive, got %s", c.Market.TickInterval)
	}
	if c.Market.Retention <= 0 {
		return fmt.Errorf("market.retention must be positive, got %d", c.Market.Retention)
	}
	if c.Paper.StartingCash < 0 {
		return fmt.Errorf("paper.starting_cash must not be negative, got %v", c.Paper.StartingCash)
	}
	return nil
}
