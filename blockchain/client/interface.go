package blockchain

import (
	"context"

	"hashauth/blockchain/types"

	"github.com/ethereum/go-ethereum/common"
)

// RegistryClient defines the operations offered on the hash authentication
// registry. Implementations are bound to one chain and one contract.
type RegistryClient interface {
	// AddProduct registers the product record and waits for the transaction
	// to be mined.
	AddProduct(ctx context.Context, rec *types.ProductRecord) (*types.Receipt, error)

	// AuthProduct asks the registry whether the product record was registered.
	// An unregistered product is not an error.
	AuthProduct(ctx context.Context, rec *types.ProductRecord) (*types.AuthStatus, error)

	// BlockNumber returns the current block height of the connected node
	BlockNumber(ctx context.Context) (uint64, error)

	// Sender returns the signing account, false for a read-only client
	Sender() (common.Address, bool)

	// Close closes the blockchain client and releases resources
	Close() error

	// Config returns the chain-specific configuration of the client
	Config() any
}
