// Package config loads the hammer-tracker configuration from file, .env and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidDialect      = errors.New("database dialect must be sqlite or postgres")
	ErrInvalidDriver       = errors.New("postgres driver must be pgx or pq")
	ErrMissingDSN          = errors.New("postgres requires database.dsn")
	ErrMissingDataDir      = errors.New("sqlite requires database.data_dir")
	ErrInvalidBoardSize    = errors.New("tracker board size must be positive")
	ErrInvalidBucketMinute = errors.New("tracker bucket minute must be within 0-59")
	ErrInvalidWeekAnchor   = errors.New("tracker week anchor is out of range")
	ErrInvalidMaxLength    = errors.New("report max length must be positive")
	ErrInvalidLogFormat    = errors.New("logging format must be text or json")
	ErrInvalidSampleRatio  = errors.New("tracing sample ratio must be within 0-1")
)

// Database dialects and postgres drivers.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
	DriverPGX       = "pgx"
	DriverPQ        = "pq"
)

const envPrefix = "HAMMER"

// Config holds all configuration for hammer-tracker.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Report   ReportConfig   `mapstructure:"report"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// DatabaseConfig selects the snapshot storage backend.
type DatabaseConfig struct {
	Dialect string `mapstructure:"dialect"`
	DataDir string `mapstructure:"data_dir"`
	DSN     string `mapstructure:"dsn"`
	Driver  string `mapstructure:"driver"`
}

// TrackerConfig describes the leaderboard shape and its refresh schedule.
type TrackerConfig struct {
	BoardSize         int           `mapstructure:"board_size"`
	ExpectedEntries   int           `mapstructure:"expected_entries"`
	BucketMinute      int           `mapstructure:"bucket_minute"`
	WeekAnchorWeekday int           `mapstructure:"week_anchor_weekday"`
	WeekAnchorOffset  time.Duration `mapstructure:"week_anchor_offset"`
}

// ReportConfig bounds the rendered report.
type ReportConfig struct {
	MaxLength int  `mapstructure:"max_length"`
	Compact   bool `mapstructure:"compact"`
}

// RedisConfig configures report publication. An empty Addr disables it.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
	LatestTTL     time.Duration `mapstructure:"latest_ttl"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig configures span export. An empty OTLPEndpoint disables it.
type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// LoadConfig loads configuration from configPath (or the default search
// path), a .env file in the working directory and HAMMER_* variables.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hammer-tracker")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/hammer-tracker")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dialect", DialectSQLite)
	v.SetDefault("database.data_dir", "databases/bot_servers")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.driver", DriverPGX)

	v.SetDefault("tracker.board_size", 10)
	v.SetDefault("tracker.expected_entries", 11)
	v.SetDefault("tracker.bucket_minute", 30)
	v.SetDefault("tracker.week_anchor_weekday", int(time.Sunday))
	v.SetDefault("tracker.week_anchor_offset", "30m")

	v.SetDefault("report.max_length", 2000)
	v.SetDefault("report.compact", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "raid")
	v.SetDefault("redis.latest_ttl", "1h")
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Dialect {
	case DialectSQLite:
		if c.Database.DataDir == "" {
			return ErrMissingDataDir
		}
	case DialectPostgres:
		if c.Database.DSN == "" {
			return ErrMissingDSN
		}

		if c.Database.Driver != DriverPGX && c.Database.Driver != DriverPQ {
			return fmt.Errorf("%w: %q", ErrInvalidDriver, c.Database.Driver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDialect, c.Database.Dialect)
	}

	if c.Tracker.BoardSize <= 0 {
		return ErrInvalidBoardSize
	}

	if c.Tracker.BucketMinute < 0 || c.Tracker.BucketMinute > 59 {
		return ErrInvalidBucketMinute
	}

	if c.Tracker.WeekAnchorWeekday < int(time.Sunday) || c.Tracker.WeekAnchorWeekday > int(time.Saturday) ||
		c.Tracker.WeekAnchorOffset < 0 || c.Tracker.WeekAnchorOffset >= 24*time.Hour {
		return ErrInvalidWeekAnchor
	}

	if c.Report.MaxLength <= 0 {
		return ErrInvalidMaxLength
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return ErrInvalidSampleRatio
	}

	return nil
}
