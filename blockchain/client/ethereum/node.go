package ethereum

import (
	"context"
	"math/big"
	"time"

	"hashauth/internal/metrics"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Backend is the part of an Ethereum JSON-RPC node the client talks to.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	CallContract(ctx context.Context, msg geth.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

// node decorates a Backend with throttling, a per-call timeout and call
// metrics. It satisfies txbuilder.ChainReader.
type node struct {
	backend Backend
	limiter *limiter
	timeout time.Duration
}

func (n *node) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if err := n.limiter.Wait(ctx); err != nil {
		metrics.ChainRPCCalls.WithLabelValues(method, classifyCall(err)).Inc()
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := fn(callCtx)
	metrics.ChainRPCCalls.WithLabelValues(method, classifyCall(err)).Inc()
	return err
}

func (n *node) PendingNonceAt(ctx context.Context, account common.Address) (nonce uint64, err error) {
	err = n.call(ctx, "eth_getTransactionCount", func(ctx context.Context) error {
		nonce, err = n.backend.PendingNonceAt(ctx, account)
		return err
	})
	return nonce, err
}

func (n *node) SuggestGasPrice(ctx context.Context) (price *big.Int, err error) {
	err = n.call(ctx, "eth_gasPrice", func(ctx context.Context) error {
		price, err = n.backend.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

func (n *node) ChainID(ctx context.Context) (id *big.Int, err error) {
	err = n.call(ctx, "eth_chainId", func(ctx context.Context) error {
		id, err = n.backend.ChainID(ctx)
		return err
	})
	return id, err
}

func (n *node) BlockNumber(ctx context.Context) (height uint64, err error) {
	err = n.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		height, err = n.backend.BlockNumber(ctx)
		return err
	})
	return height, err
}

func (n *node) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	return n.call(ctx, "eth_sendRawTransaction", func(ctx context.Context) error {
		return n.backend.SendTransaction(ctx, tx)
	})
}

func (n *node) TransactionReceipt(ctx context.Context, hash common.Hash) (receipt *gethtypes.Receipt, err error) {
	err = n.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		receipt, err = n.backend.TransactionReceipt(ctx, hash)
		return err
	})
	return receipt, err
}

func (n *node) CallContract(ctx context.Context, msg geth.CallMsg) (out []byte, err error) {
	err = n.call(ctx, "eth_call", func(ctx context.Context) error {
		out, err = n.backend.CallContract(ctx, msg, nil)
		return err
	})
	return out, err
}
