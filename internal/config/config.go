package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth" validate:"required"`
	Escalation EscalationConfig `mapstructure:"escalation" validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel       string   `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url" validate:"required,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains the settings used to verify bearer tokens issued by
// the external identity provider.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// EscalationConfig controls the priority escalation job.
type EscalationConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Schedule  string `mapstructure:"schedule" validate:"required"`
	Workers   int    `mapstructure:"workers" validate:"gte=1,lte=64"`
	BatchSize int    `mapstructure:"batch_size" validate:"gte=1,lte=10000"`
	// Thresholds overrides the day thresholds per status and target
	// priority, e.g. {"blocked": {"urgent": 2, "high": 1}}.
	Thresholds map[string]map[string]int `mapstructure:"thresholds"`
}

// RedisConfig configures the optional comparison cache.
type RedisConfig struct {
	URL           string        `mapstructure:"url" validate:"omitempty,url"`
	ComparisonTTL time.Duration `mapstructure:"comparison_ttl" validate:"gte=0"`
}

// RabbitMQConfig configures the optional domain event publisher.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url" validate:"omitempty,url"`
	Exchange string `mapstructure:"exchange" validate:"required_with=URL"`
}
