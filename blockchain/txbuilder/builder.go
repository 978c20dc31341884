// Package txbuilder assembles and signs replay-protected registry
// transactions.
package txbuilder

import (
	"context"
	"fmt"
	"math/big"

	"hashauth/blockchain/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultGasLimit is a fixed ceiling comfortably above what a registry add
// call has been observed to use.
const DefaultGasLimit uint64 = 2500000

// ChainReader is the part of the node the builder reads chain parameters
// from. *ethclient.Client satisfies it.
type ChainReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Builder turns call data into signed transactions. It holds no chain state:
// parameters are fetched for every build.
type Builder struct {
	GasLimit  uint64
	ForkRules string
	logger    *zap.Logger
}

// NewBuilder returns a Builder. Zero gasLimit and empty forkRules select the
// defaults.
func NewBuilder(gasLimit uint64, forkRules string, logger *zap.Logger) (*Builder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	if forkRules == "" {
		forkRules = DefaultForkRules
	}
	if err := ValidateForkRules(forkRules); err != nil {
		return nil, err
	}
	return &Builder{GasLimit: gasLimit, ForkRules: forkRules, logger: logger}, nil
}

// FetchParameters reads nonce, gas price and chain id for sender. The reads
// are independent and run concurrently; all three must succeed.
func FetchParameters(ctx context.Context, chain ChainReader, sender common.Address) (types.ChainParameters, error) {
	var (
		params types.ChainParameters
		g      errgroup.Group
	)
	g.Go(func() error {
		nonce, err := chain.PendingNonceAt(ctx, sender)
		if err != nil {
			return types.NewNodeError("nonce", err)
		}
		params.Nonce = nonce
		return nil
	})
	g.Go(func() error {
		price, err := chain.SuggestGasPrice(ctx)
		if err != nil {
			return types.NewNodeError("gas_price", err)
		}
		if price == nil {
			return types.NewNodeError("gas_price", fmt.Errorf("node returned no gas price"))
		}
		params.GasPrice = price
		return nil
	})
	g.Go(func() error {
		id, err := chain.ChainID(ctx)
		if err != nil {
			return types.NewNodeError("chain_id", err)
		}
		if id == nil {
			return types.NewNodeError("chain_id", fmt.Errorf("node returned no chain id"))
		}
		params.ChainID = id
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.ChainParameters{}, err
	}
	return params, nil
}

// Build fetches fresh chain parameters, signs a zero-value call of callData
// to contract and returns it serialized. Nothing is retried.
func (b *Builder) Build(ctx context.Context, chain ChainReader, signer Signer, contract common.Address, callData []byte) (types.SignedTransaction, error) {
	params, err := FetchParameters(ctx, chain, signer.Address())
	if err != nil {
		return "", err
	}
	b.logger.Debug("chain parameters fetched",
		zap.String("sender", signer.Address().Hex()),
		zap.Uint64("nonce", params.Nonce),
		zap.String("gas_price_wei", params.GasPrice.String()),
		zap.String("chain_id", params.ChainID.String()))

	tx, err := b.Sign(params, signer, contract, callData)
	if err != nil {
		return "", err
	}
	return Encode(tx)
}

// Sign assembles the transaction envelope from params and signs it under
// the configured fork rules, binding params.ChainID into the signature.
func (b *Builder) Sign(params types.ChainParameters, signer Signer, contract common.Address, callData []byte) (*gethtypes.Transaction, error) {
	chainSigner, err := ForkSigner(b.ForkRules, params.ChainID)
	if err != nil {
		return nil, err
	}

	data := make([]byte, len(callData))
	copy(data, callData)
	to := contract
	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    params.Nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      b.GasLimit,
		GasPrice: new(big.Int).Set(params.GasPrice),
		Data:     data,
	})

	hash := chainSigner.Hash(tx)
	sig, err := signer.SignHash(hash[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	signed, err := tx.WithSignature(chainSigner, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: signature rejected: %v", types.ErrInvalidKey, err)
	}
	return signed, nil
}

// Encode serializes a signed transaction to 0x-prefixed hex.
func Encode(tx *gethtypes.Transaction) (types.SignedTransaction, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return types.SignedTransaction(hexutil.Encode(raw)), nil
}

// Decode parses a serialized signed transaction.
func Decode(signed types.SignedTransaction) (*gethtypes.Transaction, error) {
	raw, err := hexutil.Decode(string(signed))
	if err != nil {
		return nil, fmt.Errorf("signed transaction is not 0x hex: %w", err)
	}
	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}
	return tx, nil
}
