package txbuilder

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"hashauth/blockchain/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is a sign-only capability over a secp256k1 key. Implementations keep
// the key material to themselves.
type Signer interface {
	// Address is the account the signatures recover to.
	Address() common.Address
	// SignHash signs a 32 byte digest and returns [R || S || V] with V in {0, 1}.
	SignHash(hash []byte) ([]byte, error)
}

// KeySigner signs with an in-process private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a hex encoded private key, with or without 0x prefix.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("%w: empty private key", types.ErrInvalidKey)
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// The parse error may echo key material; keep it out of the message.
		return nil, fmt.Errorf("%w: private key is not a valid secp256k1 hex key", types.ErrInvalidKey)
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// NewKeySignerFromEnv reads the hex key from the named environment variable.
func NewKeySignerFromEnv(name string) (*KeySigner, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: no key environment variable configured", types.ErrInvalidKey)
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return nil, fmt.Errorf("%w: environment variable %s is not set", types.ErrInvalidKey, name)
	}
	return NewKeySigner(value)
}

// Address implements Signer.
func (s *KeySigner) Address() common.Address { return s.address }

// SignHash implements Signer.
func (s *KeySigner) SignHash(hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidKey, err)
	}
	return sig, nil
}

var _ Signer = (*KeySigner)(nil)
