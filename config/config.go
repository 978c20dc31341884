package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File names looked up by LoadConfig.
const (
	EngineConfigFile     = "engine.defaults.yml"
	ApiGatewayConfigFile = "ingestion.defaults.yml"
	BlockchainConfigFile = "client_config.yml"
)

// Config is the set of service configurations found in one directory.
// A file that is absent leaves its field nil.
type Config struct {
	Engine     *EngineConfig
	ApiGateway *ApiGatewayConfig
	Blockchain *BlockchainConfig
}

// LoadConfig loads every known configuration file present in configDir and
// checks that the gateway and the engine share one registration queue.
func LoadConfig(configDir string) (*Config, error) {
	absDir, err := filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of config directory: %w", err)
	}

	cfg := &Config{}
	if cfg.Engine, err = loadIfPresent(filepath.Join(absDir, EngineConfigFile), LoadEngineConfig); err != nil {
		return nil, fmt.Errorf("failed to load engine config: %w", err)
	}
	if cfg.ApiGateway, err = loadIfPresent(filepath.Join(absDir, ApiGatewayConfigFile), LoadApiGatewayConfig); err != nil {
		return nil, fmt.Errorf("failed to load API gateway config: %w", err)
	}
	if cfg.Blockchain, err = loadIfPresent(filepath.Join(absDir, BlockchainConfigFile), LoadBlockchainConfig); err != nil {
		return nil, fmt.Errorf("failed to load blockchain config: %w", err)
	}

	if err := cfg.checkQueue(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) checkQueue() error {
	if c.Engine == nil || c.ApiGateway == nil || c.Engine.KafkaConsumer.IsMock() {
		return nil
	}
	if c.Engine.KafkaConsumer.Topic != c.ApiGateway.KafkaProducer.Topic {
		return fmt.Errorf("configuration error: engine consumes topic %q but the gateway publishes to %q",
			c.Engine.KafkaConsumer.Topic, c.ApiGateway.KafkaProducer.Topic)
	}
	return nil
}

func loadIfPresent[T any](path string, load func(string) (*T, error)) (*T, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return load(path)
}
