package store

import (
	"context"
	"errors"
	"time"

	"hashauth/blockchain/types"
)

// Status is the processing state of a registration request.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ErrNotFound is returned when no registration exists for a request id.
var ErrNotFound = errors.New("registration not found")

// Registration is the tracked state of one product registration request.
type Registration struct {
	RequestID         string
	Product           types.ProductRecord
	Status            Status
	ReceivedTimestamp time.Time
	RetryCount        int
	ErrorMessage      string

	// Set once the registration transaction is mined
	TxHash         string
	BlockHeight    uint64
	RegisteredHash string
	RegisteredAt   int64 // Unix seconds as recorded by the contract, 0 if the receipt carried no event
	CompletedAt    *time.Time

	UpdatedAt time.Time
}

// CompletionRecord carries the on-chain proof of a completed registration.
type CompletionRecord struct {
	RequestID      string
	TxHash         string
	BlockHeight    uint64
	RegisteredHash string
	RegisteredAt   int64
}

// Store persists registration requests and their processing state.
type Store interface {
	// InsertRegistrationBatch stores new requests with status RECEIVED.
	InsertRegistrationBatch(ctx context.Context, regs []*Registration) error

	// GetAndMarkAsProcessing claims a request for submission. A request that
	// has exhausted maxRetries is marked FAILED instead. Completed and failed
	// requests are returned unchanged; callers act on the returned Status.
	GetAndMarkAsProcessing(ctx context.Context, requestID string, maxRetries int) (*Registration, error)

	MarkAsCompleted(ctx context.Context, rec CompletionRecord) error

	// MarkForRetry returns a request to RECEIVED and counts the attempt.
	MarkForRetry(ctx context.Context, requestID, errMsg string) error

	MarkAsFailed(ctx context.Context, requestID, errMsg string) error

	GetRegistration(ctx context.Context, requestID string) (*Registration, error)

	Close()
}
