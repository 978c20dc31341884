package blockchain

import (
	"fmt"
	"path/filepath"

	"hashauth/blockchain/client/ethereum"
	"hashauth/config"

	"go.uber.org/zap"
)

// BlockchainType represents the type of blockchain client
type BlockchainType string

const (
	Ethereum BlockchainType = "ethereum"
	// Fantom Opera speaks the Ethereum JSON-RPC API; it only gets its own
	// chain-specific config file.
	Fantom BlockchainType = "fantom"
)

func chainConfigPath(blockchainType BlockchainType, configDir string) string {
	return filepath.Join(configDir, "clients", string(blockchainType)+".yml")
}

// LoadChainSpecificConfig loads chain-specific configuration based on blockchain type
func LoadChainSpecificConfig(blockchainType string, configDir string) (any, error) {
	switch BlockchainType(blockchainType) {
	case Ethereum, Fantom:
		return ethereum.LoadConfig(chainConfigPath(BlockchainType(blockchainType), configDir))
	case "":
		// Default to Ethereum if not specified
		return ethereum.LoadConfig(chainConfigPath(Ethereum, configDir))
	default:
		return nil, fmt.Errorf("unsupported blockchain type: %s", blockchainType)
	}
}

// NewBlockchainClient creates a registry client based on the configuration
func NewBlockchainClient(cfg *config.BlockchainConfig, logger *zap.Logger) (RegistryClient, error) {
	switch BlockchainType(cfg.BlockchainType) {
	case Ethereum, Fantom, "":
		return ethereum.NewClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported blockchain type: %s", cfg.BlockchainType)
	}
}

// NewBlockchainClientFromFile creates a registry client from configuration files
func NewBlockchainClientFromFile(configPath string, logger *zap.Logger) (RegistryClient, error) {
	// Load common configuration
	cfg, err := config.LoadBlockchainConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load common config from file '%s': %w", configPath, err)
	}

	// Load chain-specific configuration
	configDir := filepath.Dir(configPath)
	chainSpecificCfg, err := LoadChainSpecificConfig(cfg.BlockchainType, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain-specific config: %w", err)
	}

	cfg.ChainSpecific = chainSpecificCfg
	return NewBlockchainClient(cfg, logger)
}

var _ RegistryClient = (*ethereum.Client)(nil)
