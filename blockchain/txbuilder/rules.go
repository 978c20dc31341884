package txbuilder

import (
	"fmt"
	"math/big"
	"strings"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// DefaultForkRules is the rule-set transactions are signed under unless
// configured otherwise.
const DefaultForkRules = "petersburg"

// ForkSigner returns the transaction signer of the named fork rule-set bound
// to chainID. Only rule-sets with EIP-155 replay protection are accepted.
func ForkSigner(rules string, chainID *big.Int) (gethtypes.Signer, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id must be positive for replay protection, got %v", chainID)
	}
	switch strings.ToLower(strings.TrimSpace(rules)) {
	case "", "spuriousdragon", "byzantium", "constantinople", "petersburg", "istanbul", "muirglacier":
		return gethtypes.NewEIP155Signer(chainID), nil
	case "berlin":
		return gethtypes.NewEIP2930Signer(chainID), nil
	case "london", "shanghai":
		return gethtypes.NewLondonSigner(chainID), nil
	case "cancun":
		return gethtypes.NewCancunSigner(chainID), nil
	case "frontier", "homestead":
		return nil, fmt.Errorf("fork rules %q predate EIP-155 and cannot bind the chain id", rules)
	default:
		return nil, fmt.Errorf("unsupported fork rules: %s", rules)
	}
}

// ValidateForkRules checks a configured rule-set name without a chain id.
func ValidateForkRules(rules string) error {
	_, err := ForkSigner(rules, big.NewInt(1))
	return err
}
