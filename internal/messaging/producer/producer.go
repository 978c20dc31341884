package producer

import (
	"context"

	"hashauth/internal/models"
)

// Producer defines the interface for the registration queue producer
type Producer interface {
	// Publish sends a single registration message
	Publish(ctx context.Context, msg *models.ProductMessage) error

	// PublishBatch sends registration messages in batch
	PublishBatch(ctx context.Context, msgs []*models.ProductMessage) error

	// Close flushes pending messages and closes the producer connection
	Close() error
}
