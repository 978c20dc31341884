package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidField marks a product record that cannot be encoded.
	ErrInvalidField = errors.New("invalid field")
	// ErrNodeUnavailable marks a failed read from, or submission to, the chain node.
	ErrNodeUnavailable = errors.New("node unavailable")
	// ErrInvalidKey marks malformed signing key material.
	ErrInvalidKey = errors.New("invalid key")
	// ErrMalformedResponse marks a registry answer that is not a (hash, timestamp) pair.
	ErrMalformedResponse = errors.New("malformed response")
)

// FieldError reports which record field was rejected by the encoder.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %q %s", ErrInvalidField, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidField }

// NodeError wraps a failed node operation. Op names the call, e.g. "nonce".
type NodeError struct {
	Op  string
	Err error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrNodeUnavailable, e.Op, e.Err)
}

func (e *NodeError) Unwrap() []error { return []error{ErrNodeUnavailable, e.Err} }

// NewNodeError wraps err as a NodeError for the given operation.
func NewNodeError(op string, err error) error {
	return &NodeError{Op: op, Err: err}
}
