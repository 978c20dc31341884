package ethereum

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hashauth/blockchain/contract"
	"hashauth/blockchain/txbuilder"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// Config stores the chain-specific configuration of an EVM registry deployment
type Config struct {
	// --- Node Connection ---
	RPCAddress string `yaml:"rpc_address"` // http(s):// or ws(s):// endpoint

	// --- Registry Contract ---
	ContractAddress string `yaml:"contract_address"`
	ContractABI     string `yaml:"contract_abi"` // "product" (addProduct/authProduct) or "compact" (add/auth)

	// --- Transaction Envelope ---
	GasLimit  uint64 `yaml:"gas_limit"`
	ForkRules string `yaml:"fork_rules"`

	// SenderKeyEnv names the environment variable holding the hex signing key.
	// Leaving it unset, or the variable empty, yields a read-only client.
	SenderKeyEnv string `yaml:"sender_key_env"`

	// --- Node Throttling ---
	RPCRateLimit float64 `yaml:"rpc_rate_limit"` // calls per second, 0 disables
	RPCBurst     int     `yaml:"rpc_burst"`

	DisplayTimezone string `yaml:"display_timezone"` // IANA name used to render registration times
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.ContractABI == "" {
		c.ContractABI = string(contract.VariantProduct)
	}
	if c.GasLimit == 0 {
		c.GasLimit = txbuilder.DefaultGasLimit
	}
	if c.ForkRules == "" {
		c.ForkRules = txbuilder.DefaultForkRules
	}
	if c.RPCRateLimit > 0 && c.RPCBurst <= 0 {
		c.RPCBurst = 1
	}
	if c.DisplayTimezone == "" {
		c.DisplayTimezone = "UTC"
	}
}

// Validate checks the configuration without contacting the node.
func (c *Config) Validate() error {
	u, err := url.Parse(c.RPCAddress)
	if err != nil || c.RPCAddress == "" {
		return fmt.Errorf("rpc_address is invalid: %q", c.RPCAddress)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("rpc_address must use http(s) or ws(s), got %q", u.Scheme)
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("contract_address is not a hex address: %q", c.ContractAddress)
	}
	if _, err := contract.New(contract.Variant(c.ContractABI)); err != nil {
		return err
	}
	if err := txbuilder.ValidateForkRules(c.ForkRules); err != nil {
		return err
	}
	if c.RPCRateLimit < 0 {
		return fmt.Errorf("rpc_rate_limit cannot be negative")
	}
	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		return fmt.Errorf("display_timezone is invalid: %w", err)
	}
	return nil
}

// Location returns the display time zone, UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig loads chain configuration from the specified YAML file path
func LoadConfig(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path of chain config file: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config file '%s': %w", absPath, err)
	}
	return ParseConfig(data)
}

// ParseConfig parses, defaults and validates chain configuration YAML.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse chain YAML config file: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("chain configuration error: %w", err)
	}
	return &cfg, nil
}
