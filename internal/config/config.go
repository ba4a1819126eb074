// Package config loads the commodex configuration from an optional YAML
// file, COMMODEX_* environment variables and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "COMMODEX"

// Config is the process configuration
type Config struct {
	AdminAccount  string       `mapstructure:"admin_account" yaml:"admin_account" json:"admin_account" validate:"required"`
	EngineAccount string       `mapstructure:"engine_account" yaml:"engine_account" json:"engine_account" validate:"required,nefield=AdminAccount"`
	HTTP          HTTPConfig   `mapstructure:"http" yaml:"http" json:"http"`
	Log           LogConfig    `mapstructure:"log" yaml:"log" json:"log"`
	Ledger        LedgerConfig `mapstructure:"ledger" yaml:"ledger" json:"ledger"`
	Kafka         KafkaConfig  `mapstructure:"kafka" yaml:"kafka" json:"kafka"`
}

// HTTPConfig represents HTTP server configuration
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr" json:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins" yaml:"allow_origins" json:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" json:"format" validate:"oneof=json console"`
}

// LedgerConfig selects the value ledger backend. Seed balances are
// deposited at start-up and are meant for development only.
type LedgerConfig struct {
	Driver string            `mapstructure:"driver" yaml:"driver" json:"driver" validate:"oneof=memory sqlite postgres"`
	DSN    string            `mapstructure:"dsn" yaml:"dsn" json:"-" validate:"required_unless=Driver memory"`
	Seed   map[string]uint64 `mapstructure:"seed" yaml:"seed" json:"seed,omitempty"`
}

// KafkaConfig enables the broker publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers" json:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic" json:"topic" validate:"required_with=Brokers"`
	Buffer  int      `mapstructure:"buffer" yaml:"buffer" json:"buffer" validate:"gte=1"`
}

// Enabled reports whether events should be published to a broker.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("admin_account", "")
	v.SetDefault("engine_account", "commodex")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("http.allow_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("ledger.driver", "memory")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "commodex.events")
	v.SetDefault("kafka.buffer", 1024)
}

// Load reads the configuration. path may be empty; a path that does not
// exist is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
