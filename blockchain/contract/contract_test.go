package contract

import (
	"math/big"
	"testing"

	"hashauth/blockchain/encoder"
	"hashauth/blockchain/types"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodedSample(t *testing.T) types.EncodedRecord {
	t.Helper()
	enc, err := encoder.Encode(&types.ProductRecord{
		Name:           "Rebus",
		BatchNo:        "2020.05.0141321",
		BarcodeNo:      "2020050141321",
		ExpiryDate:     big.NewInt(1609459200),
		ProductionDate: big.NewInt(1590364800),
		FdaNo:          big.NewInt(73737373),
		ProducerName:   "Factorem Productum",
		ScanLocation:   "Forum Loco",
		ScanStatus:     "ok",
		ScanTime:       big.NewInt(1600000000),
		ScanDate:       big.NewInt(1600000000),
	})
	require.NoError(t, err)
	return enc
}

func TestNew_Variants(t *testing.T) {
	tests := []struct {
		variant Variant
		add     string
		auth    string
	}{
		{"", "addProduct", "authProduct"},
		{VariantProduct, "addProduct", "authProduct"},
		{VariantCompact, "add", "auth"},
	}
	for _, tt := range tests {
		reg, err := New(tt.variant)
		require.NoError(t, err)
		assert.Equal(t, tt.add, reg.AddMethod())
		assert.Equal(t, tt.auth, reg.AuthMethod())
	}

	_, err := New("v9")
	assert.Error(t, err)
}

func TestPackAdd_SelectorAndArgumentOrder(t *testing.T) {
	reg, err := New(VariantCompact)
	require.NoError(t, err)
	enc := encodedSample(t)

	data, err := reg.PackAdd(enc)
	require.NoError(t, err)

	method := reg.ABI().Methods["add"]
	assert.Equal(t, method.ID, data[:4])

	args, err := method.Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, types.FieldCount)
	for i, in := range method.Inputs {
		assert.Equal(t, encoder.FieldOrder[i], in.Name)
		assert.Equal(t, enc[i].Arg(), args[i], "argument %s", in.Name)
	}
}

func TestPackAuth_SameArgumentsAsAdd(t *testing.T) {
	reg, err := New(VariantProduct)
	require.NoError(t, err)
	enc := encodedSample(t)

	add, err := reg.PackAdd(enc)
	require.NoError(t, err)
	auth, err := reg.PackAuth(enc)
	require.NoError(t, err)

	assert.NotEqual(t, add[:4], auth[:4])
	assert.Equal(t, add[4:], auth[4:])
}

func TestUnpackAuth(t *testing.T) {
	reg, err := New(VariantCompact)
	require.NoError(t, err)

	hash := common.HexToHash("0xab12")
	raw, err := reg.ABI().Methods["auth"].Outputs.Pack([32]byte(hash), big.NewInt(1700000000))
	require.NoError(t, err)

	values, err := reg.UnpackAuth(raw)
	require.NoError(t, err)
	res, err := ParseAuth(values)
	require.NoError(t, err)
	assert.Equal(t, hash, res.Hash)
	assert.Equal(t, int64(1700000000), res.Timestamp.Int64())

	_, err = reg.UnpackAuth([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, types.ErrMalformedResponse)
}

func TestParseAuth_Malformed(t *testing.T) {
	_, err := ParseAuth(nil)
	assert.ErrorIs(t, err, types.ErrMalformedResponse)

	_, err = ParseAuth([]interface{}{"0x00", big.NewInt(1)})
	assert.ErrorIs(t, err, types.ErrMalformedResponse)

	_, err = ParseAuth([]interface{}{[32]byte{}, "1"})
	assert.ErrorIs(t, err, types.ErrMalformedResponse)
}

func TestHashAddedFromLogs(t *testing.T) {
	reg, err := New(VariantProduct)
	require.NoError(t, err)
	event := reg.ABI().Events["HashAdded"]
	addr := common.HexToAddress("0xd1728b465e62abe6550179ba03d52130c1960274")
	hash := common.HexToHash("0x01")

	data, err := event.Inputs.Pack([32]byte(hash), big.NewInt(42))
	require.NoError(t, err)

	logs := []*gethtypes.Log{
		{Address: common.HexToAddress("0x01"), Topics: []common.Hash{event.ID}, Data: data},
		{Address: addr, Topics: []common.Hash{event.ID}, Data: data},
	}
	res, ok := reg.HashAddedFromLogs(addr, logs)
	require.True(t, ok)
	assert.Equal(t, hash, res.Hash)
	assert.Equal(t, int64(42), res.Timestamp.Int64())

	_, ok = reg.HashAddedFromLogs(addr, logs[:1])
	assert.False(t, ok)
}
