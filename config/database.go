package config

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DatabaseConfig defines the unified database configuration structure
// This is used by both API Gateway and Engine services
type DatabaseConfig struct {
	DSN            string `yaml:"dsn" json:"dsn"`                         // PostgreSQL connection string
	MaxConnections int    `yaml:"max_connections" json:"max_connections"` // Maximum number of connections
	MinConnections int    `yaml:"min_connections" json:"min_connections"` // Minimum number of connections
	MaxIdleTime    string `yaml:"max_idle_time" json:"max_idle_time"`     // Maximum time a connection can be idle
	MaxLifetime    string `yaml:"max_lifetime" json:"max_lifetime"`       // Maximum lifetime of a connection
}

// SetDefaults sets sensible default values for the database configuration
func (c *DatabaseConfig) SetDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 20
	}
	if c.MinConnections <= 0 {
		c.MinConnections = 2
	}
	if c.MaxIdleTime == "" {
		c.MaxIdleTime = "1h"
	}
	if c.MaxLifetime == "" {
		c.MaxLifetime = "24h"
	}
}

// Validate validates the database configuration
func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("database max_connections must be positive")
	}
	if c.MinConnections < 0 {
		return fmt.Errorf("database min_connections cannot be negative")
	}
	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min_connections (%d) cannot be greater than max_connections (%d)",
			c.MinConnections, c.MaxConnections)
	}
	if _, err := time.ParseDuration(c.MaxIdleTime); err != nil {
		return fmt.Errorf("database max_idle_time is invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxLifetime); err != nil {
		return fmt.Errorf("database max_lifetime is invalid: %w", err)
	}
	return nil
}

// LogConfiguration logs the database configuration (excluding sensitive DSN)
func (c *DatabaseConfig) LogConfiguration(logger *zap.Logger) {
	logger.Info("database configuration",
		zap.Int("max_connections", c.MaxConnections),
		zap.Int("min_connections", c.MinConnections),
		zap.String("max_idle_time", c.MaxIdleTime),
		zap.String("max_lifetime", c.MaxLifetime),
		zap.String("dsn", "[configured]"))
}
