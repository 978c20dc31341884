package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// KafkaProducerConfig defines configuration for Kafka producer
type KafkaProducerConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	// Batch processing settings
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	BatchBytes   int           `yaml:"batch_bytes"`

	// Reliability settings
	RequiredAcks string `yaml:"required_acks"`
	Async        bool   `yaml:"async"`

	// Performance settings
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

// BatchProcessorConfig defines configuration for batch processing
type BatchProcessorConfig struct {
	BatchSize          int           `yaml:"batch_size"`
	BatchTimeout       time.Duration `yaml:"batch_timeout"`
	FlushChannelBuffer int           `yaml:"flush_channel_buffer"` // Buffer size for flush channel
}

// SetDefaults sets reasonable default values for batch processor configuration
func (c *BatchProcessorConfig) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 100 * time.Millisecond
	}
	if c.FlushChannelBuffer == 0 {
		c.FlushChannelBuffer = 100
	}
}

// HttpServerConfig defines HTTP server configuration
type HttpServerConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// SetDefaults sets the server timeouts used when none are configured.
func (c *HttpServerConfig) SetDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxHeaderBytes == 0 {
		c.MaxHeaderBytes = 1 << 20 // 1 MB
	}
}

// ApiGatewayConfig defines all configurations required for the API gateway
type ApiGatewayConfig struct {
	HttpListenAddr string `yaml:"http_listen_addr"`
	GrpcListenAddr string `yaml:"grpc_listen_addr"`

	Database       DatabaseConfig       `yaml:"database"`       // Use unified DatabaseConfig
	KafkaProducer  KafkaProducerConfig  `yaml:"kafka_producer"` // Local Kafka producer config
	BatchProcessor BatchProcessorConfig `yaml:"batch_processor"`
	HttpServer     HttpServerConfig     `yaml:"http_server"`
	Monitoring     MonitoringConfig     `yaml:"monitoring"`

	// Blockchain client used for read-only authentication queries
	BlockchainClientConfigPath string `yaml:"blockchain_client_config_path"`
}

// LoadApiGatewayConfig loads API gateway configuration from the specified YAML file path
func LoadApiGatewayConfig(path string) (*ApiGatewayConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read API Gateway config file '%s': %w", path, err)
	}
	return ParseApiGatewayConfig(data)
}

// ParseApiGatewayConfig parses, defaults and validates API gateway configuration YAML.
func ParseApiGatewayConfig(data []byte) (*ApiGatewayConfig, error) {
	var cfg ApiGatewayConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse API Gateway YAML config file: %w", err)
	}

	cfg.Database.SetDefaults()
	cfg.BatchProcessor.SetDefaults()
	cfg.HttpServer.SetDefaults()
	cfg.Monitoring.SetDefaults()

	// Validation
	if cfg.HttpListenAddr == "" && cfg.GrpcListenAddr == "" {
		return nil, fmt.Errorf("configuration error: at least one of http_listen_addr or grpc_listen_addr must be configured")
	}
	if len(cfg.KafkaProducer.Brokers) == 0 || cfg.KafkaProducer.Topic == "" {
		return nil, fmt.Errorf("configuration error: kafka_producer brokers and topic are required")
	}

	// Validate database configuration
	if err := cfg.Database.Validate(); err != nil {
		return nil, fmt.Errorf("database configuration error: %w", err)
	}

	return &cfg, nil
}
