package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/drillbox/internal/mastery"
	"github.com/abhisek/drillbox/internal/selector"
	"github.com/abhisek/drillbox/internal/spacedrep"
	"github.com/abhisek/drillbox/internal/store"
)

// EnvPrefix prefixes every environment variable, e.g. DRILLBOX_DB_DSN.
const EnvPrefix = "DRILLBOX"

// Config is the full runtime configuration.
type Config struct {
	DB        DBConfig         `mapstructure:"db"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler"`
	Selector  selector.Weights `mapstructure:"selector"`
	Store     StoreConfig      `mapstructure:"store"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Retry     RetryConfig      `mapstructure:"retry"`
	Log       LogConfig        `mapstructure:"log"`

	Confidence ConfidenceConfig `mapstructure:"confidence"`
	// Timezone decides calendar days for streaks, e.g. "Europe/Berlin".
	Timezone string `mapstructure:"timezone"`
	// User is the learner the CLI acts for.
	User string `mapstructure:"user"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SchedulerConfig struct {
	Mode            string `mapstructure:"mode"`
	MaxIntervalDays int    `mapstructure:"max_interval_days"`
}

// ConfidenceConfig selects the confidence formula: "rich" or "simple".
type ConfidenceConfig struct {
	Formula string `mapstructure:"formula"`
}

type StoreConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxConflictRetries int           `mapstructure:"max_conflict_retries"`
}

// RedisConfig enables the catalog cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("db.driver", store.DriverSQLite)
	v.SetDefault("db.dsn", "")
	v.SetDefault("scheduler.mode", string(spacedrep.ModeEase))
	v.SetDefault("scheduler.max_interval_days", spacedrep.DefaultMaxIntervalDays)
	v.SetDefault("selector.overdue", selector.DefaultWeights.Overdue)
	v.SetDefault("selector.new", selector.DefaultWeights.New)
	v.SetDefault("selector.difficult", selector.DefaultWeights.Difficult)
	v.SetDefault("selector.all", selector.DefaultWeights.All)
	v.SetDefault("confidence.formula", mastery.FormulaRich)
	v.SetDefault("store.timeout", 5*time.Second)
	v.SetDefault("store.max_conflict_retries", 5)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_wait", 200*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("timezone", "Local")
	v.SetDefault("user", "local")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads an optional .env file, then the config file if one is given,
// and returns the validated configuration. Environment variables override
// the file; flags bound to v override both.
func Load(v *viper.Viper, file string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown modes and drivers and non-positive limits.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		return fmt.Errorf("db.driver: unsupported driver %q", c.DB.Driver)
	}
	if c.DB.Driver == store.DriverPostgres && c.DB.DSN == "" {
		return errors.New("db.dsn: required for postgres")
	}
	if _, ok := spacedrep.ParseMode(c.Scheduler.Mode); !ok {
		return fmt.Errorf("scheduler.mode: unknown mode %q", c.Scheduler.Mode)
	}
	if c.Scheduler.MaxIntervalDays < 1 {
		return fmt.Errorf("scheduler.max_interval_days: must be positive, got %d", c.Scheduler.MaxIntervalDays)
	}
	if _, ok := mastery.FormulaByName(c.Confidence.Formula); !ok {
		return fmt.Errorf("confidence.formula: unknown formula %q", c.Confidence.Formula)
	}
	if err := c.Selector.Validate(); err != nil {
		return fmt.Errorf("selector: %w", err)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store.timeout: must be positive, got %s", c.Store.Timeout)
	}
	if c.Store.MaxConflictRetries < 1 {
		return fmt.Errorf("store.max_conflict_retries: must be positive, got %d", c.Store.MaxConflictRetries)
	}
	if c.User == "" {
		return errors.New("user: must not be empty")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// Location resolves Timezone. An empty value or "Local" is the system zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// SchedulerMode returns the parsed scheduler mode.
func (c Config) SchedulerMode() spacedrep.Mode {
	m, _ := spacedrep.ParseMode(c.Scheduler.Mode)
	return m
}

// ConfidenceFormula returns the configured confidence formula.
func (c Config) ConfidenceFormula() mastery.Formula {
	f, _ := mastery.FormulaByName(c.Confidence.Formula)
	return f
}

// Logger builds the slog logger described by Log.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
