// Package ethereum implements the registry client against an EVM chain
// reachable over Ethereum JSON-RPC (Ethereum, Fantom Opera).
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"hashauth/blockchain/contract"
	"hashauth/blockchain/encoder"
	"hashauth/blockchain/response"
	"hashauth/blockchain/txbuilder"
	"hashauth/blockchain/types"
	"hashauth/config"
	"hashauth/internal/metrics"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

var (
	// ErrReadOnly is returned by AddProduct on a client without a signer.
	ErrReadOnly = errors.New("registry client has no signer")
	// ErrNotMined is returned when a sent transaction has no receipt within the polling budget.
	ErrNotMined = errors.New("transaction not mined")
	// ErrTransactionFailed is returned when a registration transaction was mined but reverted.
	ErrTransactionFailed = errors.New("transaction failed")
)

// revertErrorCode is the JSON-RPC error code of a reverted eth_call.
const revertErrorCode = 3

// Client is the registry client for EVM chains.
type Client struct {
	node     *node
	cfg      *config.BlockchainConfig
	chainCfg *Config
	registry *contract.Registry
	builder  *txbuilder.Builder
	signer   txbuilder.Signer
	contract common.Address
	location *time.Location
	logger   *zap.Logger
}

// NewClient dials the node named in the chain-specific configuration. The
// signing key is read from the environment variable named by sender_key_env;
// without one the client is read-only.
func NewClient(cfg *config.BlockchainConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	chainCfg, ok := cfg.ChainSpecific.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid ethereum configuration type")
	}
	if err := chainCfg.Validate(); err != nil {
		return nil, fmt.Errorf("chain configuration error: %w", err)
	}

	signer, err := loadSigner(chainCfg.SenderKeyEnv)
	if err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	dialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()
	backend, err := ethclient.DialContext(dialCtx, chainCfg.RPCAddress)
	if err != nil {
		return nil, types.NewNodeError("dial", err)
	}

	client, err := NewClientWithBackend(cfg, backend, signer, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	logger.Info("Ethereum registry client initialized",
		zap.String("node", redactedHost(chainCfg.RPCAddress)),
		zap.String("contract", client.contract.Hex()),
		zap.String("abi", chainCfg.ContractABI),
		zap.String("fork_rules", chainCfg.ForkRules),
		zap.Bool("read_only", signer == nil))
	return client, nil
}

// NewClientWithBackend builds a client on an already connected backend.
// signer may be nil for a read-only client.
func NewClientWithBackend(cfg *config.BlockchainConfig, backend Backend, signer txbuilder.Signer, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	chainCfg, ok := cfg.ChainSpecific.(*Config)
	if !ok {
		return nil, fmt.Errorf("invalid ethereum configuration type")
	}
	cfg.SetDefaults()
	chainCfg.SetDefaults()

	if !common.IsHexAddress(chainCfg.ContractAddress) {
		return nil, fmt.Errorf("contract_address is not a hex address: %q", chainCfg.ContractAddress)
	}
	registry, err := contract.New(contract.Variant(chainCfg.ContractABI))
	if err != nil {
		return nil, err
	}
	builder, err := txbuilder.NewBuilder(chainCfg.GasLimit, chainCfg.ForkRules, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		node: &node{
			backend: backend,
			limiter: newLimiter(chainCfg.RPCRateLimit, chainCfg.RPCBurst),
			timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		cfg:      cfg,
		chainCfg: chainCfg,
		registry: registry,
		builder:  builder,
		signer:   signer,
		contract: common.HexToAddress(chainCfg.ContractAddress),
		location: chainCfg.Location(),
		logger:   logger,
	}, nil
}

func loadSigner(envName string) (txbuilder.Signer, error) {
	if envName == "" || os.Getenv(envName) == "" {
		return nil, nil
	}
	signer, err := txbuilder.NewKeySignerFromEnv(envName)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// AddProduct registers rec on the registry contract and waits for the
// receipt. A failed submission is never retried here.
func (c *Client) AddProduct(ctx context.Context, rec *types.ProductRecord) (*types.Receipt, error) {
	if c.signer == nil {
		metrics.RegistrySubmissions.WithLabelValues("read_only").Inc()
		return nil, ErrReadOnly
	}
	encoded, err := encoder.Encode(rec)
	if err != nil {
		metrics.RegistrySubmissions.WithLabelValues("invalid").Inc()
		return nil, err
	}
	data, err := c.registry.PackAdd(encoded)
	if err != nil {
		metrics.RegistrySubmissions.WithLabelValues("invalid").Inc()
		return nil, err
	}

	start := time.Now()
	signed, err := c.builder.Build(ctx, c.node, c.signer, c.contract, data)
	if err != nil {
		metrics.RegistrySubmissions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to build %s transaction: %w", c.registry.AddMethod(), err)
	}

	receipt, err := c.SubmitSignedTransaction(ctx, signed)
	metrics.ChainSubmitLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		status := "error"
		if errors.Is(err, ErrTransactionFailed) {
			status = "reverted"
		}
		metrics.RegistrySubmissions.WithLabelValues(status).Inc()
		return nil, err
	}
	metrics.RegistrySubmissions.WithLabelValues("ok").Inc()

	c.logger.Info("Product registered",
		zap.String("tx_hash", receipt.TransactionHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
		zap.Uint64("gas_used", receipt.GasUsed),
		zap.Duration("elapsed", time.Since(start)))
	return receipt, nil
}

// SubmitSignedTransaction sends a signed transaction and polls for its
// receipt. A mined transaction with a failed status is an error.
func (c *Client) SubmitSignedTransaction(ctx context.Context, signed types.SignedTransaction) (*types.Receipt, error) {
	tx, err := txbuilder.Decode(signed)
	if err != nil {
		return nil, err
	}
	if err := c.node.SendTransaction(ctx, tx); err != nil {
		return nil, types.NewNodeError("send", err)
	}
	c.logger.Debug("Transaction sent",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()))

	mined, err := c.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, err
	}

	var height uint64
	if mined.BlockNumber != nil {
		height = mined.BlockNumber.Uint64()
	}
	if mined.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s reverted in block %d", ErrTransactionFailed, tx.Hash().Hex(), height)
	}

	receipt := &types.Receipt{
		BlockNumber:     height,
		TransactionHash: tx.Hash(),
		GasUsed:         mined.GasUsed,
	}
	if registered, ok := c.registry.HashAddedFromLogs(c.contract, mined.Logs); ok {
		receipt.Registered = registered
	}
	return receipt, nil
}

// waitMined polls for the receipt of hash up to retry_limit times,
// retry_interval apart. Node errors while polling are tolerated until the
// budget is spent.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	interval := time.Duration(c.cfg.RetryInterval) * time.Millisecond
	var lastErr error

	for attempt := 1; ; attempt++ {
		receipt, err := c.node.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err != nil && !errors.Is(err, geth.NotFound):
			lastErr = err
			c.logger.Warn("Receipt poll failed",
				zap.String("tx_hash", hash.Hex()),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}

		if attempt >= c.cfg.RetryLimit {
			if lastErr != nil {
				return nil, types.NewNodeError("receipt", lastErr)
			}
			return nil, fmt.Errorf("%w: %s after %d receipt polls", ErrNotMined, hash.Hex(), attempt)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", ErrNotMined, hash.Hex(), ctx.Err())
		case <-timer.C:
		}
	}
}

// AuthProduct queries the registry for rec. A reverted query is reported as
// an unknown product, like a zero registration time.
func (c *Client) AuthProduct(ctx context.Context, rec *types.ProductRecord) (*types.AuthStatus, error) {
	encoded, err := encoder.Encode(rec)
	if err != nil {
		return nil, err
	}
	data, err := c.registry.PackAuth(encoded)
	if err != nil {
		return nil, err
	}

	msg := geth.CallMsg{To: &c.contract, Data: data}
	if c.signer != nil {
		msg.From = c.signer.Address()
	}
	out, err := c.node.CallContract(ctx, msg)
	if err != nil {
		if isReverted(err) {
			c.logger.Debug("Auth call reverted, reporting product as unknown", zap.Error(err))
			metrics.RegistryQueries.WithLabelValues(response.OutcomeUnknown.String()).Inc()
			return &types.AuthStatus{Formatted: response.UnknownProduct}, nil
		}
		metrics.RegistryQueries.WithLabelValues("error").Inc()
		return nil, types.NewNodeError("call", err)
	}

	values, err := c.registry.UnpackAuth(out)
	if err != nil {
		c.logger.Warn("Registry answer could not be decoded",
			zap.String("method", c.registry.AuthMethod()),
			zap.Int("bytes", len(out)),
			zap.Error(err))
		values = nil
	}

	status, outcome := interpret(values, c.location)
	metrics.RegistryQueries.WithLabelValues(outcome.String()).Inc()
	return status, nil
}

func interpret(values []interface{}, loc *time.Location) (*types.AuthStatus, response.Outcome) {
	ts, outcome := response.Timestamp(values)
	status := &types.AuthStatus{
		Known:     outcome == response.OutcomeKnown,
		Timestamp: ts,
		Formatted: response.FormatTimestampIn(values, loc),
	}
	if res, err := contract.ParseAuth(values); err == nil {
		status.Hash = res.Hash
	}
	return status, outcome
}

func isReverted(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertErrorCode {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// BlockNumber returns the current block height of the node.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	height, err := c.node.BlockNumber(ctx)
	if err != nil {
		return 0, types.NewNodeError("block_number", err)
	}
	return height, nil
}

// Sender returns the signing account.
func (c *Client) Sender() (common.Address, bool) {
	if c.signer == nil {
		return common.Address{}, false
	}
	return c.signer.Address(), true
}

// Config returns the chain-specific configuration.
func (c *Client) Config() any {
	return c.chainCfg
}

// Close closes the node connection
func (c *Client) Close() error {
	c.logger.Info("Closing Ethereum registry client...")
	c.node.backend.Close()
	return nil
}

// redactedHost strips path and credentials from an RPC URL before logging;
// hosted node URLs often carry an API key.
func redactedHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
