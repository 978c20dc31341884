package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// KafkaConsumerConfig defines configuration for Kafka consumer
type KafkaConsumerConfig struct {
	Brokers           []string `yaml:"brokers"`            // e.g., ["kafka1:9092", "kafka2:9092"]
	Topic             string   `yaml:"topic"`              // Topic to consume from
	GroupID           string   `yaml:"group_id"`           // Consumer group ID
	SessionTimeout    string   `yaml:"session_timeout"`    // Kafka session timeout
	HeartbeatInterval string   `yaml:"heartbeat_interval"` // Kafka heartbeat interval
	AutoOffsetReset   string   `yaml:"auto_offset_reset"`  // earliest/latest
}

// SetDefaults sets reasonable default values for Kafka consumer configuration
func (c *KafkaConsumerConfig) SetDefaults() {
	if c.SessionTimeout == "" {
		c.SessionTimeout = "30s"
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = "3s"
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "earliest"
	}
}

// IsMock reports whether the engine should run on the in-memory consumer.
func (c *KafkaConsumerConfig) IsMock() bool {
	return len(c.Brokers) == 0 || c.Brokers[0] == "mock://local"
}

// WorkerConfig defines configuration for worker processing.
// There is exactly one submitting worker per signing account: parallel
// submissions would race for the same nonce.
type WorkerConfig struct {
	ConsumerRetryDelay string `yaml:"consumer_retry_delay"` // Delay when consumer encounters errors
	BlockchainTimeout  string `yaml:"blockchain_timeout"`   // Timeout for a submission including receipt wait
}

// SetDefaults sets reasonable default values for worker configuration
func (c *WorkerConfig) SetDefaults() {
	if c.ConsumerRetryDelay == "" {
		c.ConsumerRetryDelay = "5s"
	}
	if c.BlockchainTimeout == "" {
		c.BlockchainTimeout = "2m"
	}
}

// MonitoringConfig defines logging and metrics configuration shared by both services
type MonitoringConfig struct {
	EnableMetrics     bool   `yaml:"enable_metrics"`      // Expose Prometheus metrics
	MetricsListenAddr string `yaml:"metrics_listen_addr"` // Listen address of the metrics endpoint (engine only)
	MetricsPath       string `yaml:"metrics_path"`        // Metrics endpoint path
	HealthCheckPath   string `yaml:"health_check_path"`   // Health check endpoint path
	LogLevel          string `yaml:"log_level"`           // Logging level
	LogFormat         string `yaml:"log_format"`          // json/console
}

// SetDefaults sets reasonable default values for monitoring configuration
func (c *MonitoringConfig) SetDefaults() {
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.HealthCheckPath == "" {
		c.HealthCheckPath = "/health"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

// EngineConfig defines all configuration for the registration engine
type EngineConfig struct {
	// Database Configuration - using unified DatabaseConfig
	Database DatabaseConfig `yaml:"database"`

	// Kafka Consumer Configuration
	KafkaConsumer KafkaConsumerConfig `yaml:"kafka_consumer"`

	// Worker Configuration
	Worker WorkerConfig `yaml:"worker"`

	// Business Rules Configuration
	MaxTaskRetries int `yaml:"max_task_retries"` // Maximum submission attempts per registration request

	// Monitoring Configuration
	Monitoring MonitoringConfig `yaml:"monitoring"`

	// Blockchain Client Configuration
	BlockchainClientConfigPath string `yaml:"blockchain_client_config_path"`
}

// LoadEngineConfig loads configuration from the specified YAML file path
func LoadEngineConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return ParseEngineConfig(data)
}

// ParseEngineConfig parses, defaults and validates engine configuration YAML.
func ParseEngineConfig(data []byte) (*EngineConfig, error) {
	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}

	// Set default values for all configurations
	cfg.Database.SetDefaults()
	cfg.KafkaConsumer.SetDefaults()
	cfg.Worker.SetDefaults()
	cfg.Monitoring.SetDefaults()

	// Set default for business rules
	if cfg.MaxTaskRetries <= 0 {
		cfg.MaxTaskRetries = 3
	}

	// Validate database configuration
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("database configuration error: %w", err)
	}
	if cfg.BlockchainClientConfigPath == "" {
		return nil, fmt.Errorf("configuration error: blockchain_client_config_path is required")
	}
	if !cfg.KafkaConsumer.IsMock() && (cfg.KafkaConsumer.Topic == "" || cfg.KafkaConsumer.GroupID == "") {
		return nil, fmt.Errorf("configuration error: kafka_consumer topic and group_id are required")
	}

	return &cfg, nil
}
