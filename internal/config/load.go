package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKCORE_SERVER_PORT.
const EnvPrefix = "TASKCORE"

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from the config file. Returns a populated Config or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Brokers has no default: an empty list must stay nil so Kafka is off.
	if err := v.BindEnv("kafka.brokers"); err != nil {
		return nil, fmt.Errorf("failed to bind kafka brokers: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("connector.driver", "memory")
	v.SetDefault("connector.redis_url", "")
	v.SetDefault("connector.database_url", "")
	v.SetDefault("connector.result_ttl", "0s")

	v.SetDefault("worker.namespace", "default")
	v.SetDefault("worker.queues", []string{"default"})
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.poll_interval", "100ms")

	v.SetDefault("kafka.topic", "")
}

// normalize drops blank broker entries and leaves Brokers nil when none
// remain, so an empty list from a file or env var does not enable Kafka.
func normalize(cfg *Config) {
	var brokers []string
	for _, b := range cfg.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	cfg.Kafka.Brokers = brokers
}
