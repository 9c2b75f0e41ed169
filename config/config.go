package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "RELAY"

type Config struct {
	ListenAddr    string `mapstructure:"listen_addr"`
	SlotCapacity  int    `mapstructure:"slot_capacity"`
	EventCapacity int    `mapstructure:"event_capacity"`
	MaxPayload    uint64 `mapstructure:"max_payload"`
	LogLevel      string `mapstructure:"log_level"`
	// AdminAddr serves /metrics and /healthz when set.
	AdminAddr string `mapstructure:"admin_addr"`
}

var defaults = map[string]any{
	"listen_addr":    "127.0.0.1:8000",
	"slot_capacity":  128,
	"event_capacity": 1024,
	"max_payload":    uint64(64 << 20),
	"log_level":      "info",
	"admin_addr":     "",
}

// FlagName maps a config key to its command line flag, e.g. listen_addr to listen-addr.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// LoadConfig resolves the configuration from, in increasing priority: defaults, the YAML file
// at path (skipped when empty), RELAY_* environment variables and flags that were set.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for key := range defaults {
			if f := flags.Lookup(FlagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	var errs error
	if c.ListenAddr == "" {
		errs = multierr.Append(errs, errors.New("listen_addr must be set"))
	}
	if c.SlotCapacity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("slot_capacity must be positive, got %d", c.SlotCapacity))
	}
	if c.EventCapacity <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("event_capacity must be positive, got %d", c.EventCapacity))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log_level: %w", err))
	}
	if errs != nil {
		return fmt.Errorf("invalid config: %w", errs)
	}
	return nil
}
