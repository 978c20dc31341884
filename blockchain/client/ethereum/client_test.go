package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"hashauth/blockchain/contract"
	"hashauth/blockchain/response"
	"hashauth/blockchain/txbuilder"
	"hashauth/blockchain/types"
	"hashauth/config"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key; never holds value.
const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

var registryAddr = common.HexToAddress("0xd1728b465e62abe6550179ba03d52130c1960274")

// simNode is an in-memory chain running a registry contract: add stores the
// first registration time of a record, auth answers (hash, time).
type simNode struct {
	mu sync.Mutex

	chainID   *big.Int
	gasPrice  *big.Int
	registry  abi.ABI
	addMethod string

	nonces   map[common.Address]uint64
	height   uint64
	times    map[common.Hash]int64
	receipts map[common.Hash]*gethtypes.Receipt
	sent     []*gethtypes.Transaction

	pendingPolls int  // receipt polls answered with NotFound before the receipt shows
	revertAdds   bool // mine add transactions with a failed status
	revertCalls  bool // answer eth_call with a revert

	chainErr, sendErr, receiptErr, callErr, blockErr error
	closed                                           bool
}

func newSimNode(t *testing.T, variant contract.Variant) *simNode {
	t.Helper()
	reg, err := contract.New(variant)
	require.NoError(t, err)
	return &simNode{
		chainID:   big.NewInt(250),
		gasPrice:  big.NewInt(22_000_000_000),
		registry:  reg.ABI(),
		addMethod: reg.AddMethod(),
		nonces:    make(map[common.Address]uint64),
		times:     make(map[common.Hash]int64),
		receipts:  make(map[common.Hash]*gethtypes.Receipt),
	}
}

func (s *simNode) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonces[account], nil
}

func (s *simNode) SuggestGasPrice(context.Context) (*big.Int, error) {
	return new(big.Int).Set(s.gasPrice), nil
}

func (s *simNode) ChainID(context.Context) (*big.Int, error) {
	if s.chainErr != nil {
		return nil, s.chainErr
	}
	return new(big.Int).Set(s.chainID), nil
}

func (s *simNode) BlockNumber(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height, s.blockErr
}

// recordKey identifies a record by its ABI encoded arguments, which add and
// auth share.
func (s *simNode) recordKey(data []byte) (*abi.Method, common.Hash, error) {
	if len(data) < 4 {
		return nil, common.Hash{}, errors.New("missing selector")
	}
	method, err := s.registry.MethodById(data[:4])
	if err != nil {
		return nil, common.Hash{}, err
	}
	if _, err := method.Inputs.Unpack(data[4:]); err != nil {
		return nil, common.Hash{}, err
	}
	return method, crypto.Keccak256Hash(data[4:]), nil
}

func (s *simNode) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	from, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(s.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() != s.nonces[from] {
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), s.nonces[from])
	}
	if tx.To() == nil || *tx.To() != registryAddr {
		return errors.New("unexpected recipient")
	}
	method, key, err := s.recordKey(tx.Data())
	if err != nil {
		return err
	}

	s.nonces[from]++
	s.height++
	s.sent = append(s.sent, tx)
	receipt := &gethtypes.Receipt{
		Status:      gethtypes.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(s.height),
		GasUsed:     61_000,
	}
	if s.revertAdds || method.Name != s.addMethod {
		receipt.Status = gethtypes.ReceiptStatusFailed
		s.receipts[tx.Hash()] = receipt
		return nil
	}

	if _, ok := s.times[key]; !ok {
		s.times[key] = time.Now().Unix()
	}
	event := s.registry.Events["HashAdded"]
	data, err := event.Inputs.Pack([32]byte(key), big.NewInt(s.times[key]))
	if err != nil {
		return err
	}
	receipt.Logs = []*gethtypes.Log{{Address: registryAddr, Topics: []common.Hash{event.ID}, Data: data, TxHash: tx.Hash()}}
	s.receipts[tx.Hash()] = receipt
	return nil
}

func (s *simNode) TransactionReceipt(_ context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receiptErr != nil {
		return nil, s.receiptErr
	}
	if s.pendingPolls > 0 {
		s.pendingPolls--
		return nil, geth.NotFound
	}
	receipt, ok := s.receipts[hash]
	if !ok {
		return nil, geth.NotFound
	}
	return receipt, nil
}

func (s *simNode) CallContract(_ context.Context, msg geth.CallMsg, _ *big.Int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callErr != nil {
		return nil, s.callErr
	}
	if s.revertCalls {
		return nil, errors.New("execution reverted")
	}
	method, key, err := s.recordKey(msg.Data)
	if err != nil {
		return nil, err
	}
	ts := s.times[key]
	var hash [32]byte
	if ts != 0 {
		hash = key
	}
	return method.Outputs.Pack(hash, big.NewInt(ts))
}

func (s *simNode) Close() { s.closed = true }

func testConfig(variant contract.Variant) *config.BlockchainConfig {
	return &config.BlockchainConfig{
		BlockchainType: "ethereum",
		RetryLimit:     5,
		RetryInterval:  1,
		TimeoutSeconds: 5,
		ChainSpecific: &Config{
			RPCAddress:      "http://127.0.0.1:8545",
			ContractAddress: registryAddr.Hex(),
			ContractABI:     string(variant),
		},
	}
}

func testProduct() *types.ProductRecord {
	return &types.ProductRecord{
		Name:           "Paracetamol 500mg",
		BatchNo:        "B-2023-118",
		BarcodeNo:      "6291041500213",
		ExpiryDate:     big.NewInt(1767225600),
		ProductionDate: big.NewInt(1693526400),
		FdaNo:          big.NewInt(7741),
		ProducerName:   "Acme Pharma",
		ScanLocation:   "Warehouse 3",
		ScanStatus:     "ok",
		ScanTime:       big.NewInt(43200),
		ScanDate:       big.NewInt(1700000000),
	}
}

func newTestClient(t *testing.T, sim *simNode, variant contract.Variant, withSigner bool) *Client {
	t.Helper()
	var signer txbuilder.Signer
	if withSigner {
		s, err := txbuilder.NewKeySigner(testKey)
		require.NoError(t, err)
		signer = s
	}
	c, err := NewClientWithBackend(testConfig(variant), sim, signer, nil)
	require.NoError(t, err)
	return c
}

func TestClient_RoundTrip(t *testing.T) {
	for _, variant := range []contract.Variant{contract.VariantProduct, contract.VariantCompact} {
		t.Run(string(variant), func(t *testing.T) {
			sim := newSimNode(t, variant)
			c := newTestClient(t, sim, variant, true)
			ctx := context.Background()
			product := testProduct()

			height, err := c.BlockNumber(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), height)

			before, err := c.AuthProduct(ctx, product)
			require.NoError(t, err)
			assert.False(t, before.Known)
			assert.Equal(t, response.UnknownProduct, before.Formatted)

			submitted := time.Now().Unix()
			receipt, err := c.AddProduct(ctx, product)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), receipt.BlockNumber)
			assert.Equal(t, sim.sent[0].Hash(), receipt.TransactionHash)
			require.NotNil(t, receipt.Registered)
			assert.GreaterOrEqual(t, receipt.Registered.Timestamp.Int64(), submitted)

			after, err := c.AuthProduct(ctx, product)
			require.NoError(t, err)
			assert.True(t, after.Known)
			assert.Equal(t, receipt.Registered.Timestamp.Int64(), after.Timestamp)
			assert.Equal(t, receipt.Registered.Hash, after.Hash)
			assert.Equal(t, time.Unix(after.Timestamp, 0).UTC().Format(response.Layout), after.Formatted)

			// A record differing in one field is a different product.
			other := testProduct()
			other.ScanStatus = "ok "
			status, err := c.AuthProduct(ctx, other)
			require.NoError(t, err)
			assert.False(t, status.Known)
		})
	}
}

func TestClient_AddProduct_EnvelopeAndFreshNonce(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	c := newTestClient(t, sim, contract.VariantProduct, true)
	ctx := context.Background()

	_, err := c.AddProduct(ctx, testProduct())
	require.NoError(t, err)
	second := testProduct()
	second.BatchNo = "B-2023-119"
	_, err = c.AddProduct(ctx, second)
	require.NoError(t, err)

	require.Len(t, sim.sent, 2)
	for i, tx := range sim.sent {
		assert.Equal(t, uint64(i), tx.Nonce())
		assert.Equal(t, txbuilder.DefaultGasLimit, tx.Gas())
		assert.Equal(t, 0, tx.Value().Sign())
		assert.Equal(t, sim.gasPrice, tx.GasPrice())
		assert.Equal(t, big.NewInt(250), tx.ChainId())
	}

	sender, ok := c.Sender()
	require.True(t, ok)
	assert.Equal(t, uint64(2), sim.nonces[sender])
}

func TestClient_AddProduct_ReadOnly(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	c := newTestClient(t, sim, contract.VariantProduct, false)

	_, ok := c.Sender()
	assert.False(t, ok)
	_, err := c.AddProduct(context.Background(), testProduct())
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Empty(t, sim.sent)

	// Queries need no signer.
	status, err := c.AuthProduct(context.Background(), testProduct())
	require.NoError(t, err)
	assert.False(t, status.Known)
}

func TestClient_AddProduct_InvalidField(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	c := newTestClient(t, sim, contract.VariantProduct, true)

	product := testProduct()
	product.FdaNo = big.NewInt(-1)
	_, err := c.AddProduct(context.Background(), product)
	assert.ErrorIs(t, err, types.ErrInvalidField)

	_, err = c.AuthProduct(context.Background(), product)
	assert.ErrorIs(t, err, types.ErrInvalidField)
	assert.Empty(t, sim.sent)
}

func TestClient_AddProduct_NodeFailures(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name   string
		mutate func(*simNode)
		op     string
	}{
		{"chain id", func(s *simNode) { s.chainErr = boom }, "chain_id"},
		{"send", func(s *simNode) { s.sendErr = boom }, "send"},
		{"receipt", func(s *simNode) { s.receiptErr = boom }, "receipt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newSimNode(t, contract.VariantProduct)
			tt.mutate(sim)
			c := newTestClient(t, sim, contract.VariantProduct, true)

			_, err := c.AddProduct(context.Background(), testProduct())
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrNodeUnavailable)
			var ne *types.NodeError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.op, ne.Op)
		})
	}
}

func TestClient_ReceiptPolling(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	sim.pendingPolls = 3
	c := newTestClient(t, sim, contract.VariantProduct, true)

	receipt, err := c.AddProduct(context.Background(), testProduct())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.BlockNumber)

	sim = newSimNode(t, contract.VariantProduct)
	sim.pendingPolls = 100
	c = newTestClient(t, sim, contract.VariantProduct, true)
	_, err = c.AddProduct(context.Background(), testProduct())
	assert.ErrorIs(t, err, ErrNotMined)
}

func TestClient_ReceiptPolling_ContextCancelled(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	sim.pendingPolls = 100
	cfg := testConfig(contract.VariantProduct)
	cfg.RetryLimit = 1000
	cfg.RetryInterval = 50
	signer, err := txbuilder.NewKeySigner(testKey)
	require.NoError(t, err)
	c, err := NewClientWithBackend(cfg, sim, signer, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = c.AddProduct(ctx, testProduct())
	assert.ErrorIs(t, err, ErrNotMined)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_AddProduct_Reverted(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	sim.revertAdds = true
	c := newTestClient(t, sim, contract.VariantProduct, true)

	_, err := c.AddProduct(context.Background(), testProduct())
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

type rpcCodeError struct{ code int }

func (e rpcCodeError) Error() string  { return "rpc failure" }
func (e rpcCodeError) ErrorCode() int { return e.code }

func TestClient_AuthProduct_Failures(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	sim.revertCalls = true
	c := newTestClient(t, sim, contract.VariantProduct, false)

	status, err := c.AuthProduct(context.Background(), testProduct())
	require.NoError(t, err)
	assert.False(t, status.Known)
	assert.Equal(t, response.UnknownProduct, status.Formatted)

	sim.revertCalls = false
	sim.callErr = rpcCodeError{code: 3}
	status, err = c.AuthProduct(context.Background(), testProduct())
	require.NoError(t, err)
	assert.False(t, status.Known)

	sim.callErr = rpcCodeError{code: -32000}
	_, err = c.AuthProduct(context.Background(), testProduct())
	assert.ErrorIs(t, err, types.ErrNodeUnavailable)
	var ne *types.NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, "call", ne.Op)
}

type emptyAnswerNode struct{ *simNode }

func (emptyAnswerNode) CallContract(context.Context, geth.CallMsg, *big.Int) ([]byte, error) {
	return []byte{}, nil
}

func TestClient_AuthProduct_UndecodableAnswer(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	c, err := NewClientWithBackend(testConfig(contract.VariantProduct), emptyAnswerNode{sim}, nil, nil)
	require.NoError(t, err)

	status, err := c.AuthProduct(context.Background(), testProduct())
	require.NoError(t, err)
	assert.False(t, status.Known)
	assert.Equal(t, response.InvalidResponse, status.Formatted)
}

func TestClient_BlockNumberAndClose(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)
	sim.blockErr = errors.New("dial tcp: i/o timeout")
	c := newTestClient(t, sim, contract.VariantProduct, false)

	_, err := c.BlockNumber(context.Background())
	assert.ErrorIs(t, err, types.ErrNodeUnavailable)

	cfg, ok := c.Config().(*Config)
	require.True(t, ok)
	assert.Equal(t, "UTC", cfg.DisplayTimezone)

	require.NoError(t, c.Close())
	assert.True(t, sim.closed)
}

func TestNewClientWithBackend_Invalid(t *testing.T) {
	sim := newSimNode(t, contract.VariantProduct)

	cfg := testConfig(contract.VariantProduct)
	cfg.ChainSpecific.(*Config).ContractAddress = "not-an-address"
	_, err := NewClientWithBackend(cfg, sim, nil, nil)
	assert.Error(t, err)

	cfg = testConfig("v3")
	_, err = NewClientWithBackend(cfg, sim, nil, nil)
	assert.Error(t, err)

	cfg = testConfig(contract.VariantProduct)
	cfg.ChainSpecific = struct{}{}
	_, err = NewClientWithBackend(cfg, sim, nil, nil)
	assert.Error(t, err)
}

func TestLoadSigner(t *testing.T) {
	signer, err := loadSigner("")
	require.NoError(t, err)
	assert.Nil(t, signer)

	signer, err = loadSigner("HASHAUTH_CLIENT_TEST_KEY_UNSET")
	require.NoError(t, err)
	assert.Nil(t, signer)

	t.Setenv("HASHAUTH_CLIENT_TEST_KEY", "0x"+testKey)
	signer, err = loadSigner("HASHAUTH_CLIENT_TEST_KEY")
	require.NoError(t, err)
	require.NotNil(t, signer)

	t.Setenv("HASHAUTH_CLIENT_TEST_KEY", "not-a-key")
	_, err = loadSigner("HASHAUTH_CLIENT_TEST_KEY")
	assert.ErrorIs(t, err, types.ErrInvalidKey)
	assert.NotContains(t, err.Error(), "not-a-key")
}
