package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Connector ConnectorConfig `mapstructure:"connector" validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker"    validate:"required"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// ServerConfig contains the HTTP server and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// ConnectorConfig selects and configures the task storage backend.
type ConnectorConfig struct {
	Driver      string `mapstructure:"driver"       validate:"required,oneof=memory redis postgres"`
	RedisURL    string `mapstructure:"redis_url"    validate:"required_if=Driver redis"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=Driver postgres"`

	// ResultTTL expires finalized tasks on backends that support it. Zero keeps them.
	ResultTTL time.Duration `mapstructure:"result_ttl" validate:"gte=0"`
}

// WorkerConfig controls which queues are consumed and how.
type WorkerConfig struct {
	Namespace    string        `mapstructure:"namespace"     validate:"required"`
	Queues       []string      `mapstructure:"queues"        validate:"required,min=1,dive,required"`
	Concurrency  int           `mapstructure:"concurrency"   validate:"gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// KafkaConfig enables publishing task lifecycle events. Publishing is off
// when no brokers are configured.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" validate:"dive,hostname_port"`
	Topic   string   `mapstructure:"topic"   validate:"required_with=Brokers"`
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}
