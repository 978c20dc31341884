// Package contract packs and unpacks calls to the hash authentication
// registry contract.
package contract

import (
	"fmt"
	"math/big"
	"strings"

	"hashauth/blockchain/types"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Variant selects one of the two deployed contract generations.
type Variant string

const (
	VariantProduct Variant = "product"
	VariantCompact Variant = "compact"
)

const hashAddedEvent = "HashAdded"

// Registry is the ABI binding for one contract generation.
type Registry struct {
	abi        abi.ABI
	addMethod  string
	authMethod string
}

// New parses the ABI of the requested variant. An empty variant selects
// VariantProduct.
func New(variant Variant) (*Registry, error) {
	var (
		def        string
		add, query string
	)
	switch variant {
	case VariantProduct, "":
		def, add, query = ProductABI, "addProduct", "authProduct"
	case VariantCompact:
		def, add, query = CompactABI, "add", "auth"
	default:
		return nil, fmt.Errorf("unsupported contract abi variant: %s", variant)
	}

	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	return &Registry{abi: parsed, addMethod: add, authMethod: query}, nil
}

// AddMethod returns the name of the mutating registration call.
func (r *Registry) AddMethod() string { return r.addMethod }

// AuthMethod returns the name of the read-only query call.
func (r *Registry) AuthMethod() string { return r.authMethod }

// ABI exposes the parsed interface.
func (r *Registry) ABI() abi.ABI { return r.abi }

// PackAdd builds the call data registering rec.
func (r *Registry) PackAdd(rec types.EncodedRecord) ([]byte, error) {
	data, err := r.abi.Pack(r.addMethod, rec.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", r.addMethod, err)
	}
	return data, nil
}

// PackAuth builds the call data querying rec.
func (r *Registry) PackAuth(rec types.EncodedRecord) ([]byte, error) {
	data, err := r.abi.Pack(r.authMethod, rec.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", r.authMethod, err)
	}
	return data, nil
}

// UnpackAuth decodes the raw return data of the query call into its
// positional values. The result is meant for the response interpreter.
func (r *Registry) UnpackAuth(data []byte) ([]interface{}, error) {
	out, err := r.abi.Unpack(r.authMethod, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}
	return out, nil
}

// ParseAuth converts the positional values of a query answer to a typed pair.
func ParseAuth(values []interface{}) (*types.AuthResult, error) {
	if len(values) != 2 {
		return nil, fmt.Errorf("%w: expected 2 values, got %d", types.ErrMalformedResponse, len(values))
	}
	hash, ok := values[0].([32]byte)
	if !ok {
		return nil, fmt.Errorf("%w: hash has type %T", types.ErrMalformedResponse, values[0])
	}
	ts, ok := values[1].(*big.Int)
	if !ok || ts == nil {
		return nil, fmt.Errorf("%w: timestamp has type %T", types.ErrMalformedResponse, values[1])
	}
	return &types.AuthResult{Hash: common.Hash(hash), Timestamp: ts}, nil
}

// HashAddedFromLogs returns the first HashAdded event emitted by the
// registry at addr.
func (r *Registry) HashAddedFromLogs(addr common.Address, logs []*gethtypes.Log) (*types.AuthResult, bool) {
	event, ok := r.abi.Events[hashAddedEvent]
	if !ok {
		return nil, false
	}
	for _, l := range logs {
		if l == nil || l.Address != addr || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.Unpack(l.Data)
		if err != nil {
			continue
		}
		res, err := ParseAuth(values)
		if err != nil {
			continue
		}
		return res, true
	}
	return nil, false
}
