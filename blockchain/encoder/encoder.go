// Package encoder turns a product record into the positional argument tuple
// the registry contract hashes. The order and the byte form are part of the
// on-chain hash preimage, so any change here makes every registered product
// unknown.
package encoder

import (
	"math/big"
	"unicode/utf8"

	"hashauth/blockchain/types"

	"github.com/ethereum/go-ethereum/common/math"
)

// FieldOrder is the argument order of the add/auth contract calls.
var FieldOrder = [types.FieldCount]string{
	"name",
	"batchNo",
	"barcodeNo",
	"expiryDate",
	"productionDate",
	"fdaNo",
	"producerName",
	"scanLocation",
	"scanStatus",
	"scanTime",
	"scanDate",
}

// Encode converts rec into its canonical encoded form.
// Text is passed through as its UTF-8 bytes, numbers as unsigned 256-bit
// integers. Structurally equal records always produce identical output.
func Encode(rec *types.ProductRecord) (types.EncodedRecord, error) {
	var out types.EncodedRecord
	if rec == nil {
		return out, &types.FieldError{Field: "record", Reason: "is nil"}
	}

	values := [types.FieldCount]interface{}{
		rec.Name,
		rec.BatchNo,
		rec.BarcodeNo,
		rec.ExpiryDate,
		rec.ProductionDate,
		rec.FdaNo,
		rec.ProducerName,
		rec.ScanLocation,
		rec.ScanStatus,
		rec.ScanTime,
		rec.ScanDate,
	}

	for i, v := range values {
		field := FieldOrder[i]
		switch val := v.(type) {
		case string:
			b, err := encodeText(field, val)
			if err != nil {
				return types.EncodedRecord{}, err
			}
			out[i] = types.EncodedValue{Field: field, Bytes: b}
		case *big.Int:
			n, err := encodeUint256(field, val)
			if err != nil {
				return types.EncodedRecord{}, err
			}
			out[i] = types.EncodedValue{Field: field, Int: n}
		}
	}
	return out, nil
}

func encodeText(field, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, &types.FieldError{Field: field, Reason: "is not valid UTF-8"}
	}
	// Always a fresh non-nil slice so empty strings encode the same way
	// regardless of how the caller built the record.
	b := make([]byte, len(s))
	copy(b, s)
	return b, nil
}

func encodeUint256(field string, n *big.Int) (*big.Int, error) {
	switch {
	case n == nil:
		return nil, &types.FieldError{Field: field, Reason: "is missing"}
	case n.Sign() < 0:
		return nil, &types.FieldError{Field: field, Reason: "is negative"}
	case n.Cmp(math.MaxBig256) > 0:
		return nil, &types.FieldError{Field: field, Reason: "exceeds the uint256 range"}
	}
	return new(big.Int).Set(n), nil
}
