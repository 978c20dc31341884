package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hashauth/config"
	"hashauth/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer implements the Consumer interface on a Kafka consumer group
type KafkaConsumer struct {
	reader messageReader
	logger *zap.Logger
}

// NewKafkaConsumer creates a new KafkaConsumer instance
func NewKafkaConsumer(cfg config.KafkaConsumerConfig, logger *zap.Logger) (*KafkaConsumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("incomplete kafka configuration: brokers, topic, group_id are all required")
	}

	sessionTimeout, err := time.ParseDuration(cfg.SessionTimeout)
	if err != nil {
		logger.Warn("Invalid session_timeout, using default 30s", zap.String("value", cfg.SessionTimeout))
		sessionTimeout = 30 * time.Second
	}
	heartbeatInterval, err := time.ParseDuration(cfg.HeartbeatInterval)
	if err != nil {
		logger.Warn("Invalid heartbeat_interval, using default 3s", zap.String("value", cfg.HeartbeatInterval))
		heartbeatInterval = 3 * time.Second
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		Topic:             cfg.Topic,
		MinBytes:          1,
		MaxBytes:          1e6,
		MaxWait:           1 * time.Second,
		SessionTimeout:    sessionTimeout,
		HeartbeatInterval: heartbeatInterval,
	}
	switch cfg.AutoOffsetReset {
	case "latest":
		readerConfig.StartOffset = kafka.LastOffset
	case "earliest", "":
		readerConfig.StartOffset = kafka.FirstOffset
	default:
		logger.Warn("Unknown auto_offset_reset, using earliest", zap.String("value", cfg.AutoOffsetReset))
		readerConfig.StartOffset = kafka.FirstOffset
	}

	logger.Info("Kafka consumer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("group_id", cfg.GroupID))

	return &KafkaConsumer{reader: kafka.NewReader(readerConfig), logger: logger}, nil
}

// Consume implements the Consumer interface by reading messages from Kafka.
// Undecodable messages are committed and skipped.
func (k *KafkaConsumer) Consume(ctx context.Context) (*models.ProductMessage, func(success bool), error) {
	kafkaMsg, err := k.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}

	var msg models.ProductMessage
	if err := json.Unmarshal(kafkaMsg.Value, &msg); err != nil || msg.RequestID == "" {
		if err == nil {
			err = errors.New("message has no request id")
		}
		k.logger.Error("Discarding undecodable registration message",
			zap.Int64("offset", kafkaMsg.Offset),
			zap.Int("partition", kafkaMsg.Partition),
			zap.Error(err))
		if commitErr := k.reader.CommitMessages(ctx, kafkaMsg); commitErr != nil {
			k.logger.Error("Failed to commit discarded message", zap.Int64("offset", kafkaMsg.Offset), zap.Error(commitErr))
		}
		return nil, nil, fmt.Errorf("message deserialization failed: %w", err)
	}

	ack := func(success bool) {
		if !success {
			k.logger.Warn("NACK received, offset will not be committed",
				zap.Int64("offset", kafkaMsg.Offset),
				zap.String("request_id", msg.RequestID))
			return
		}
		if err := k.reader.CommitMessages(context.Background(), kafkaMsg); err != nil {
			k.logger.Error("Failed to commit offset",
				zap.Int64("offset", kafkaMsg.Offset),
				zap.String("request_id", msg.RequestID),
				zap.Error(err))
		}
	}
	return &msg, ack, nil
}

// Close implements the Consumer interface by closing the Kafka reader
func (k *KafkaConsumer) Close() error {
	k.logger.Info("Closing Kafka consumer...")
	return k.reader.Close()
}

var _ Consumer = (*KafkaConsumer)(nil)
