package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// BlockchainConfig stores common blockchain configuration across all blockchain types
type BlockchainConfig struct {
	// --- Blockchain Type Selection ---
	BlockchainType string `yaml:"blockchain_type"` // "ethereum", "fantom"

	// --- Common Behavior Configuration ---
	// Submissions are never retried; these only govern waiting for a receipt.
	RetryLimit     int `yaml:"retry_limit"`     // Maximum receipt polls per submitted transaction
	RetryInterval  int `yaml:"retry_interval"`  // Milliseconds between receipt polls
	TimeoutSeconds int `yaml:"timeout_seconds"` // Per-call node timeout

	// --- Chain-specific Configuration ---
	// This will be loaded separately based on blockchain type
	ChainSpecific any `yaml:"-"`
}

// SetDefaults fills unset behavior values.
func (c *BlockchainConfig) SetDefaults() {
	if c.RetryLimit <= 0 {
		c.RetryLimit = 120
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 500
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
}

// LoadBlockchainConfig loads blockchain configuration from the specified YAML file path
func LoadBlockchainConfig(path string) (*BlockchainConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of config file: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", absPath, err)
	}

	var cfg BlockchainConfig
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}
