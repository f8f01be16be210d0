package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/searchktools/tiny-server/core/pools"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "TINY"

// Config holds all application configuration.
type Config struct {
	Port           int           `mapstructure:"port"`
	Listen         bool          `mapstructure:"listen"`
	Workers        int           `mapstructure:"workers"`
	Debug          bool          `mapstructure:"debug"`
	Exposing       bool          `mapstructure:"exposing"`
	BufferSize     int           `mapstructure:"buffer-size"`
	ReadTimeout    time.Duration `mapstructure:"read-timeout"`
	WriteTimeout   time.Duration `mapstructure:"write-timeout"`
	DrainTimeout   time.Duration `mapstructure:"drain-timeout"`
	QueueBound     int           `mapstructure:"queue-bound"`
	QueuePolicy    string        `mapstructure:"queue-policy"`
	MaxConnections int           `mapstructure:"max-connections"`
	Trace          bool          `mapstructure:"trace"`
	Env            string        `mapstructure:"env"`
}

var (
	ErrInvalidPort    = errors.New("port must be between 0 and 65535")
	ErrInvalidWorkers = errors.New("workers must be positive")
	ErrInvalidBuffer  = errors.New("buffer size must be positive")
	ErrInvalidQueue   = errors.New("queue bound must not be negative")
	ErrInvalidDrain   = errors.New("drain timeout must not be negative")
)

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("listen", false)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("debug", false)
	v.SetDefault("exposing", false)
	v.SetDefault("buffer-size", 4096)
	v.SetDefault("read-timeout", time.Duration(0))
	v.SetDefault("write-timeout", time.Duration(0))
	v.SetDefault("drain-timeout", time.Second)
	v.SetDefault("queue-bound", 0)
	v.SetDefault("queue-policy", "block")
	v.SetDefault("max-connections", 0)
	v.SetDefault("trace", false)
	v.SetDefault("env", "development")
}

// Load reads .env (if present), TINY_* environment variables and whatever
// flags were bound to v, in increasing precedence over the defaults.
func Load(v *viper.Viper) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBuffer, c.BufferSize)
	}
	if c.QueueBound < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQueue, c.QueueBound)
	}
	if c.DrainTimeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDrain, c.DrainTimeout)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy parses QueuePolicy
func (c *Config) Policy() (pools.Policy, error) {
	return pools.ParsePolicy(c.QueuePolicy)
}

// IsProduction reports whether Env names a production deployment
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
