package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ProductRecord is the structured product data whose canonical encoding is
// registered on the hash authentication contract.
// Numeric fields are Unix seconds (dates) or plain identifiers and must fit
// an unsigned 256-bit integer.
type ProductRecord struct {
	Name           string   `json:"name"`
	BatchNo        string   `json:"batchNo"`
	BarcodeNo      string   `json:"barcodeNo"`
	ExpiryDate     *big.Int `json:"expiryDate"`
	ProductionDate *big.Int `json:"productionDate"`
	FdaNo          *big.Int `json:"fdaNo"`
	ProducerName   string   `json:"producerName"`
	ScanLocation   string   `json:"scanLocation"`
	ScanStatus     string   `json:"scanStatus"`
	ScanTime       *big.Int `json:"scanTime"`
	ScanDate       *big.Int `json:"scanDate"`
}

// FieldCount is the number of positional arguments of the registry calls.
const FieldCount = 11

// EncodedValue is a single contract argument: either a byte string (Bytes set)
// or an unsigned integer (Int set).
type EncodedValue struct {
	Field string
	Bytes []byte
	Int   *big.Int
}

// Arg returns the value in the Go shape the ABI packer expects.
func (v EncodedValue) Arg() interface{} {
	if v.Int != nil {
		return v.Int
	}
	return v.Bytes
}

// EncodedRecord holds the contract arguments in call order.
type EncodedRecord [FieldCount]EncodedValue

// Args returns the positional argument list for the ABI packer.
func (r EncodedRecord) Args() []interface{} {
	args := make([]interface{}, 0, FieldCount)
	for _, v := range r {
		args = append(args, v.Arg())
	}
	return args
}

// ChainParameters are read from the node right before a transaction is signed.
// They are never cached: the nonce moves with every submitted transaction.
type ChainParameters struct {
	Nonce    uint64
	GasPrice *big.Int
	ChainID  *big.Int
}

// SignedTransaction is a serialized, signed transaction as 0x-prefixed hex.
type SignedTransaction string

// Receipt is returned by the node once a submitted transaction is mined.
type Receipt struct {
	BlockNumber     uint64
	TransactionHash common.Hash
	GasUsed         uint64
	// Registered is the HashAdded event payload, when the receipt carried one.
	Registered *AuthResult
}

// AuthResult is the typed (hash, timestamp) pair answered by the registry.
type AuthResult struct {
	Hash      common.Hash
	Timestamp *big.Int
}

// AuthStatus is the interpreted outcome of a registry query.
type AuthStatus struct {
	Known     bool
	Hash      common.Hash
	Timestamp int64
	Formatted string
}
