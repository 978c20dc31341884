package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"hashauth/internal/models"

	"go.uber.org/zap"
)

// MockConsumer serves a fixed set of registrations from memory. NACKed
// messages are queued again.
type MockConsumer struct {
	logger   *zap.Logger
	messages chan *models.ProductMessage

	mu     sync.Mutex
	closed bool
}

// sampleRequestIDs are fixed so that reruns find the seeded registrations.
var sampleRequestIDs = []string{
	"a1b1c1d1-e1f1-1111-2222-1234567890ab",
	"a2b2c2d2-e2f2-3333-4444-abcdef123456",
}

// SampleMessages returns the registrations the mock consumer starts with,
// one per demo product.
func SampleMessages(now time.Time) []*models.ProductMessage {
	received := now.UTC().Format(time.RFC3339Nano)
	products := models.DemoProducts(now)
	msgs := make([]*models.ProductMessage, len(products))
	for i, p := range products {
		msgs[i] = &models.ProductMessage{
			RequestID:         sampleRequestIDs[i],
			Product:           p,
			ReceivedTimestamp: received,
		}
	}
	return msgs
}

// NewMockConsumer creates a MockConsumer preloaded with msgs, or with
// SampleMessages when msgs is empty.
func NewMockConsumer(logger *zap.Logger, msgs ...*models.ProductMessage) *MockConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(msgs) == 0 {
		msgs = SampleMessages(time.Now())
	}
	mc := &MockConsumer{
		logger:   logger.With(zap.String("consumer", "mock")),
		messages: make(chan *models.ProductMessage, len(msgs)+5),
	}
	for _, msg := range msgs {
		mc.messages <- msg
	}
	mc.logger.Info("Mock consumer loaded", zap.Int("messages", len(msgs)))
	return mc
}

// Consume reads the next queued message.
func (m *MockConsumer) Consume(ctx context.Context) (*models.ProductMessage, func(success bool), error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case msg, ok := <-m.messages:
		if !ok {
			return nil, nil, errors.New("message channel closed")
		}
		ack := func(success bool) {
			if success {
				m.logger.Debug("ACK received", zap.String("request_id", msg.RequestID))
				return
			}
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.closed {
				return
			}
			select {
			case m.messages <- msg:
				m.logger.Debug("NACK received, message re-queued", zap.String("request_id", msg.RequestID))
			default:
				m.logger.Warn("NACK received, re-queue failed (channel full)", zap.String("request_id", msg.RequestID))
			}
		}
		return msg, ack, nil
	}
}

// Close closes the message channel.
func (m *MockConsumer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.messages)
	}
	return nil
}

var _ Consumer = (*MockConsumer)(nil)
