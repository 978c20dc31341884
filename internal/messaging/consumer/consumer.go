package consumer

import (
	"context"

	"hashauth/internal/models"
)

// Consumer defines the interface for message queue consumers.
type Consumer interface {
	// Consume blocks until a message is received or the context is cancelled.
	// The ack callback: ack(true) commits the message; ack(false) leaves it
	// to be redelivered.
	Consume(ctx context.Context) (msg *models.ProductMessage, ack func(success bool), err error)

	// Close gracefully shuts down the consumer connection.
	Close() error
}
