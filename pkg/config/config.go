package config

import "time"

// Database type constants
const (
	// DatabaseTypeMongoDB represents MongoDB
	DatabaseTypeMongoDB = "mongodb"
	// DatabaseTypeDynamoDB represents AWS DynamoDB
	DatabaseTypeDynamoDB = "dynamodb"
	// DatabaseTypeMemory keeps collections in process memory
	DatabaseTypeMemory = "memory"
)

// Identifier generator constants
const (
	IDGeneratorNanoID = "nanoid"
	IDGeneratorUUID   = "uuid"
)

// Config is the root configuration structure for docquery
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// DatabaseConfig selects and configures the document store.
type DatabaseConfig struct {
	Type            string        `mapstructure:"type" yaml:"type"` // mongodb, dynamodb, memory
	URL             string        `mapstructure:"url" yaml:"url"`
	DatabaseName    string        `mapstructure:"database_name" yaml:"database_name"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" yaml:"query_timeout"`
	Region          string        `mapstructure:"region" yaml:"region"`
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string        `mapstructure:"session_token" yaml:"session_token"`
	IDGenerator     string        `mapstructure:"id_generator" yaml:"id_generator"` // nanoid, uuid
}

// ObservabilityConfig configures logging, tracing and metrics.
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string  `mapstructure:"log_format" yaml:"log_format"` // json, text
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingInsecure   bool    `mapstructure:"tracing_insecure" yaml:"tracing_insecure"`
	MetricsEnabled    bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	// MetricsTextfile is written in Prometheus text format when a command exits.
	MetricsTextfile string `mapstructure:"metrics_textfile" yaml:"metrics_textfile"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "docquery",
			Environment: "development",
		},
		Database: DatabaseConfig{
			Type:           DatabaseTypeMemory,
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   5 * time.Second,
			IDGenerator:    IDGeneratorNanoID,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingEnabled:    false,
			TracingSampleRate: 1.0,
			TracingEndpoint:   "localhost:4317",
			TracingInsecure:   true,
		},
	}
}
