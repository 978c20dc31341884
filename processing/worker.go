package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	blockchain "hashauth/blockchain/client"
	"hashauth/blockchain/types"
	"hashauth/config"
	"hashauth/internal/messaging/consumer"
	"hashauth/internal/metrics"
	"hashauth/internal/models"
	"hashauth/storage/store"

	"go.uber.org/zap"
)

// Worker submits queued product registrations to the registry, one at a time.
// Registrations from one signing account must not be submitted concurrently:
// each transaction takes the account's next nonce.
type Worker struct {
	consumerRetryDelay time.Duration
	blockchainTimeout  time.Duration

	maxTaskRetries int // Business rule for maximum submission attempts
	logger         *zap.Logger
	store          store.Store
	consumer       consumer.Consumer
	registry       blockchain.RegistryClient
}

// New creates a new Worker instance
func New(cfg config.WorkerConfig, maxTaskRetries int, logger *zap.Logger, s store.Store, c consumer.Consumer, rc blockchain.RegistryClient) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	consumerRetryDelay, err := time.ParseDuration(cfg.ConsumerRetryDelay)
	if err != nil {
		logger.Warn("Invalid consumer_retry_delay, using default 5s", zap.String("value", cfg.ConsumerRetryDelay))
		consumerRetryDelay = 5 * time.Second
	}
	blockchainTimeout, err := time.ParseDuration(cfg.BlockchainTimeout)
	if err != nil {
		logger.Warn("Invalid blockchain_timeout, using default 2m", zap.String("value", cfg.BlockchainTimeout))
		blockchainTimeout = 2 * time.Minute
	}
	if maxTaskRetries <= 0 {
		maxTaskRetries = 3
	}

	return &Worker{
		consumerRetryDelay: consumerRetryDelay,
		blockchainTimeout:  blockchainTimeout,
		maxTaskRetries:     maxTaskRetries,
		logger:             logger,
		store:              s,
		consumer:           c,
		registry:           rc,
	}
}

// Run consumes and submits registrations until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Worker started",
		zap.Duration("blockchain_timeout", w.blockchainTimeout),
		zap.Int("max_task_retries", w.maxTaskRetries))

	for {
		msg, ack, err := w.consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker stopped")
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("Consumer error", zap.Error(err))
			if !sleepCtx(ctx, w.consumerRetryDelay) {
				w.logger.Info("Worker stopped")
				return
			}
			continue
		}
		if msg == nil {
			continue
		}

		success := w.handleMessage(ctx, msg)
		ack(success)
	}
}

// handleMessage processes one registration. It reports whether the message
// can be acknowledged: false leaves it on the queue for another attempt.
func (w *Worker) handleMessage(ctx context.Context, msg *models.ProductMessage) bool {
	logger := w.logger.With(zap.String("request_id", msg.RequestID))
	start := time.Now()

	reg, err := w.store.GetAndMarkAsProcessing(ctx, msg.RequestID, w.maxTaskRetries)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Error("Registration has no status record, dropping message")
			metrics.WorkerMessages.WithLabelValues("dropped").Inc()
			return true
		}
		logger.Error("Failed to claim registration", zap.Error(err))
		metrics.WorkerMessages.WithLabelValues("db_error").Inc()
		return false
	}

	switch reg.Status {
	case store.StatusProcessing:
	case store.StatusFailed:
		logger.Warn("Registration failed permanently", zap.String("error", reg.ErrorMessage))
		metrics.WorkerMessages.WithLabelValues("failed").Inc()
		return true
	default:
		logger.Debug("Registration already handled", zap.String("status", string(reg.Status)))
		metrics.WorkerMessages.WithLabelValues("skipped").Inc()
		return true
	}

	// An earlier attempt may have been mined after its receipt wait ran out.
	if reg.RetryCount > 0 {
		if handled, ack := w.completeIfRegistered(ctx, logger, msg); handled {
			return ack
		}
	}

	submitCtx, cancel := context.WithTimeout(ctx, w.blockchainTimeout)
	defer cancel()
	receipt, err := w.registry.AddProduct(submitCtx, &msg.Product)
	if err != nil {
		return w.handleSubmitError(ctx, logger, msg.RequestID, err)
	}

	completion := store.CompletionRecord{
		RequestID:   msg.RequestID,
		TxHash:      receipt.TransactionHash.Hex(),
		BlockHeight: receipt.BlockNumber,
	}
	if receipt.Registered != nil {
		completion.RegisteredHash = receipt.Registered.Hash.Hex()
		if receipt.Registered.Timestamp != nil && receipt.Registered.Timestamp.IsInt64() {
			completion.RegisteredAt = receipt.Registered.Timestamp.Int64()
		}
	}
	w.markCompleted(ctx, logger, completion)

	metrics.WorkerMessages.WithLabelValues("completed").Inc()
	logger.Info("Registration completed",
		zap.String("tx_hash", completion.TxHash),
		zap.Uint64("block", completion.BlockHeight),
		zap.Duration("elapsed", time.Since(start)))
	return true
}

// completeIfRegistered asks the registry whether the product is already
// recorded. handled is false when a new submission is needed.
func (w *Worker) completeIfRegistered(ctx context.Context, logger *zap.Logger, msg *models.ProductMessage) (handled, ack bool) {
	queryCtx, cancel := context.WithTimeout(ctx, w.blockchainTimeout)
	defer cancel()
	status, err := w.registry.AuthProduct(queryCtx, &msg.Product)
	if err != nil {
		return true, w.handleSubmitError(ctx, logger, msg.RequestID, fmt.Errorf("registration check: %w", err))
	}
	if !status.Known {
		return false, false
	}

	// The transaction of the earlier attempt is not known here, only its effect.
	w.markCompleted(ctx, logger, store.CompletionRecord{
		RequestID:      msg.RequestID,
		RegisteredHash: status.Hash.Hex(),
		RegisteredAt:   status.Timestamp,
	})
	metrics.WorkerMessages.WithLabelValues("recovered").Inc()
	logger.Info("Registration found on chain, not resubmitting",
		zap.String("registered_hash", status.Hash.Hex()),
		zap.Int64("registered_at", status.Timestamp))
	return true, true
}

func (w *Worker) markCompleted(ctx context.Context, logger *zap.Logger, completion store.CompletionRecord) {
	if err := w.store.MarkAsCompleted(ctx, completion); err != nil {
		// The product is on chain; redelivery would register it again.
		logger.Error("CRITICAL: registration mined but completion not stored",
			zap.String("tx_hash", completion.TxHash),
			zap.Error(err))
	}
}

func (w *Worker) handleSubmitError(ctx context.Context, logger *zap.Logger, requestID string, err error) bool {
	// A record the encoder rejects will never succeed.
	if errors.Is(err, types.ErrInvalidField) {
		logger.Warn("Registration rejected", zap.Error(err))
		if markErr := w.store.MarkAsFailed(ctx, requestID, err.Error()); markErr != nil {
			logger.Error("MarkAsFailed failed", zap.Error(markErr))
		}
		metrics.WorkerMessages.WithLabelValues("rejected").Inc()
		return true
	}

	logger.Error("Registration submission failed", zap.Error(err))
	if markErr := w.store.MarkForRetry(ctx, requestID, fmt.Sprintf("submission failed: %v", err)); markErr != nil {
		logger.Error("CRITICAL: MarkForRetry failed", zap.Error(markErr))
	}
	metrics.WorkerMessages.WithLabelValues("retry").Inc()
	sleepCtx(ctx, w.consumerRetryDelay)
	return false
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
