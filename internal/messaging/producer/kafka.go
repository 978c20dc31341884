package producer

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

// messageWriter is the subset of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer implements the Producer interface
type KafkaProducer struct {
	writer messageWriter
	logger *zap.Logger
	topic  string
}

// NewKafkaProducer creates a new KafkaProducer
func NewKafkaProducer(cfg config.KafkaProducerConfig, logger *zap.Logger) (*KafkaProducer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka producer configuration incomplete: both brokers and topic are required")
	}

	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 100 * time.Millisecond
	}
	batchBytes := cfg.BatchBytes
	if batchBytes == 0 {
		batchBytes = 5 * 1024 * 1024
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Second
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 5 * time.Second
	}

	// Leader acknowledgement unless configured otherwise
	var requiredAcks kafka.RequiredAcks
	switch cfg.RequiredAcks {
	case "none":
		requiredAcks = kafka.RequireNone
	case "all":
		requiredAcks = kafka.RequireAll
	default:
		requiredAcks = kafka.RequireOne
	}

	sugar := logger.Sugar()
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{}, // request id keyed

		BatchSize:    batchSize,
		BatchTimeout: batchTimeout,
		BatchBytes:   int64(batchBytes),

		RequiredAcks: requiredAcks,
		Async:        cfg.Async,

		WriteTimeout: writeTimeout,
		ReadTimeout:  readTimeout,

		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			sugar.Errorf("kafka writer: "+msg, args...)
		}),
	}

	logger.Info("Kafka producer created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.Bool("async", cfg.Async))

	return &KafkaProducer{writer: w, logger: logger, topic: cfg.Topic}, nil
}

func toKafkaMessage(msg *models.ProductMessage) (kafka.Message, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to serialize registration message (RequestID: %s): %w", msg.RequestID, err)
	}
	return kafka.Message{Key: []byte(msg.RequestID), Value: value}, nil
}

// Publish sends a message
func (p *KafkaProducer) Publish(ctx context.Context, msg *models.ProductMessage) error {
	return p.PublishBatch(ctx, []*models.ProductMessage{msg})
}

// PublishBatch sends registration messages in one write
func (p *KafkaProducer) PublishBatch(ctx context.Context, msgs []*models.ProductMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	kafkaMsgs := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		km, err := toKafkaMessage(msg)
		if err != nil {
			return err
		}
		kafkaMsgs[i] = km
	}

	if err := p.writer.WriteMessages(ctx, kafkaMsgs...); err != nil {
		p.logger.Error("Failed to write registration messages",
			zap.Int("count", len(msgs)),
			zap.String("topic", p.topic),
			zap.Error(err))
		return fmt.Errorf("failed to write to Kafka: %w", err)
	}
	p.logger.Debug("Registration messages written", zap.Int("count", len(msgs)), zap.String("topic", p.topic))
	return nil
}

// Close closes the producer
func (p *KafkaProducer) Close() error {
	p.logger.Info("Closing Kafka producer (and flushing buffer)...")
	return p.writer.Close()
}

var _ Producer = (*KafkaProducer)(nil)
