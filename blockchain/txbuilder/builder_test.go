package txbuilder

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"hashauth/blockchain/types"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key; never holds value.
const testKey = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

type fakeChain struct {
	nonce    uint64
	gasPrice *big.Int
	chainID  *big.Int

	nonceErr, priceErr, chainErr error
	nonceFor                     common.Address
}

func (f *fakeChain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	f.nonceFor = account
	return f.nonce, f.nonceErr
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, f.priceErr
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, f.chainErr
}

func newFakeChain() *fakeChain {
	return &fakeChain{nonce: 7, gasPrice: big.NewInt(6_000_000_000), chainID: big.NewInt(4002)}
}

func testSigner(t *testing.T) *KeySigner {
	t.Helper()
	s, err := NewKeySigner(testKey)
	require.NoError(t, err)
	return s
}

func TestNewKeySigner(t *testing.T) {
	a, err := NewKeySigner(testKey)
	require.NoError(t, err)
	b, err := NewKeySigner("0x" + testKey)
	require.NoError(t, err)
	assert.Equal(t, a.Address(), b.Address())

	for _, bad := range []string{"", "zz", testKey[:10], strings.Repeat("f", 64)} {
		_, err := NewKeySigner(bad)
		assert.ErrorIs(t, err, types.ErrInvalidKey, "key %q", bad)
	}
}

func TestNewKeySignerFromEnv(t *testing.T) {
	t.Setenv("HASHAUTH_TEST_KEY", testKey)
	s, err := NewKeySignerFromEnv("HASHAUTH_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, testSigner(t).Address(), s.Address())

	_, err = NewKeySignerFromEnv("HASHAUTH_TEST_KEY_UNSET")
	assert.ErrorIs(t, err, types.ErrInvalidKey)
	_, err = NewKeySignerFromEnv("")
	assert.ErrorIs(t, err, types.ErrInvalidKey)
}

func TestBuild_Envelope(t *testing.T) {
	chain := newFakeChain()
	signer := testSigner(t)
	builder, err := NewBuilder(0, "", nil)
	require.NoError(t, err)
	contract := common.HexToAddress("0xd1728b465e62abe6550179ba03d52130c1960274")
	data := []byte{0xde, 0xad, 0xbe, 0xef}

	signed, err := builder.Build(context.Background(), chain, signer, contract, data)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(signed), "0x"))
	assert.Equal(t, signer.Address(), chain.nonceFor)

	tx, err := Decode(signed)
	require.NoError(t, err)
	assert.Equal(t, uint8(gethtypes.LegacyTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, contract, *tx.To())
	assert.Equal(t, 0, tx.Value().Sign())
	assert.Equal(t, DefaultGasLimit, tx.Gas())
	assert.Equal(t, big.NewInt(6_000_000_000), tx.GasPrice())
	assert.Equal(t, data, tx.Data())
	assert.True(t, tx.Protected())
	assert.Equal(t, big.NewInt(4002), tx.ChainId())

	from, err := gethtypes.Sender(gethtypes.NewEIP155Signer(big.NewInt(4002)), tx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)

	// v = recovery id + chainID*2 + 35
	v, _, _ := tx.RawSignatureValues()
	assert.Contains(t, []int64{4002*2 + 35, 4002*2 + 36}, v.Int64())
}

func TestSign_ChainIDBindsSignature(t *testing.T) {
	signer := testSigner(t)
	builder, err := NewBuilder(0, "", nil)
	require.NoError(t, err)
	contract := common.HexToAddress("0x01")
	data := []byte{0x01}

	params := types.ChainParameters{Nonce: 1, GasPrice: big.NewInt(1), ChainID: big.NewInt(250)}
	onMainnet, err := builder.Sign(params, signer, contract, data)
	require.NoError(t, err)

	params.ChainID = big.NewInt(4002)
	onTestnet, err := builder.Sign(params, signer, contract, data)
	require.NoError(t, err)

	v1, r1, s1 := onMainnet.RawSignatureValues()
	v2, r2, s2 := onTestnet.RawSignatureValues()
	assert.False(t, v1.Cmp(v2) == 0 && r1.Cmp(r2) == 0 && s1.Cmp(s2) == 0)
	assert.NotEqual(t, onMainnet.Hash(), onTestnet.Hash())

	// A signature made for one network does not recover the sender on another.
	from, err := gethtypes.Sender(gethtypes.NewEIP155Signer(big.NewInt(4002)), onMainnet)
	if err == nil {
		assert.NotEqual(t, signer.Address(), from)
	}
}

func TestSign_Deterministic(t *testing.T) {
	signer := testSigner(t)
	builder, err := NewBuilder(100000, "istanbul", nil)
	require.NoError(t, err)
	params := types.ChainParameters{Nonce: 3, GasPrice: big.NewInt(10), ChainID: big.NewInt(250)}

	a, err := builder.Sign(params, signer, common.HexToAddress("0x02"), []byte{0x02})
	require.NoError(t, err)
	b, err := builder.Sign(params, signer, common.HexToAddress("0x02"), []byte{0x02})
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, uint64(100000), a.Gas())
}

func TestBuild_NodeUnavailable(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name   string
		mutate func(*fakeChain)
		op     string
	}{
		{"nonce", func(f *fakeChain) { f.nonceErr = boom }, "nonce"},
		{"gas price", func(f *fakeChain) { f.priceErr = boom }, "gas_price"},
		{"chain id", func(f *fakeChain) { f.chainErr = boom }, "chain_id"},
		{"nil chain id", func(f *fakeChain) { f.chainID = nil }, "chain_id"},
	}
	builder, err := NewBuilder(0, "", nil)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := newFakeChain()
			tt.mutate(chain)

			_, err := builder.Build(context.Background(), chain, testSigner(t), common.HexToAddress("0x01"), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrNodeUnavailable)

			var ne *types.NodeError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.op, ne.Op)
		})
	}
}

type failingSigner struct{ addr common.Address }

func (f failingSigner) Address() common.Address { return f.addr }
func (f failingSigner) SignHash([]byte) ([]byte, error) {
	return nil, types.ErrInvalidKey
}

func TestBuild_SignerFailure(t *testing.T) {
	builder, err := NewBuilder(0, "", nil)
	require.NoError(t, err)
	_, err = builder.Build(context.Background(), newFakeChain(), failingSigner{}, common.HexToAddress("0x01"), nil)
	assert.ErrorIs(t, err, types.ErrInvalidKey)
}

func TestForkSigner(t *testing.T) {
	for _, rules := range []string{"petersburg", "Byzantium", "istanbul", "berlin", "london", "cancun"} {
		s, err := ForkSigner(rules, big.NewInt(250))
		require.NoError(t, err, rules)
		assert.Equal(t, big.NewInt(250), s.ChainID())
	}

	_, err := ForkSigner("homestead", big.NewInt(250))
	assert.Error(t, err)
	_, err = ForkSigner("petersburg", big.NewInt(0))
	assert.Error(t, err)
	_, err = ForkSigner("osaka-next", big.NewInt(250))
	assert.Error(t, err)

	_, err = NewBuilder(0, "frontier", nil)
	assert.Error(t, err)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("deadbeef")
	assert.Error(t, err)
	_, err = Decode("0xdeadbeef")
	assert.Error(t, err)
}
