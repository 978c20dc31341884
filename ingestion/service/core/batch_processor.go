package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hashauth/config"
	"hashauth/internal/messaging/producer"
	"hashauth/internal/metrics"
	"hashauth/internal/models"
	"hashauth/storage/store"

	"go.uber.org/zap"
)

// BatchProcessor groups accepted registrations into batches: one bulk
// status insert and one queue write per batch.
type BatchProcessor struct {
	batchSize    int
	batchTimeout time.Duration
	logger       *zap.Logger
	store        store.Store
	producer     producer.Producer

	buffer      []*batchEntry
	bufferMutex sync.Mutex
	flushChan   chan []*batchEntry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type batchEntry struct {
	msg      *models.ProductMessage
	received time.Time
}

// NewBatchProcessor creates a new batch processor and starts its goroutines
func NewBatchProcessor(cfg config.BatchProcessorConfig, s store.Store, p producer.Producer, logger *zap.Logger) *BatchProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.SetDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	bp := &BatchProcessor{
		batchSize:    cfg.BatchSize,
		batchTimeout: cfg.BatchTimeout,
		logger:       logger,
		store:        s,
		producer:     p,
		buffer:       make([]*batchEntry, 0, cfg.BatchSize),
		flushChan:    make(chan []*batchEntry, cfg.FlushChannelBuffer),
		ctx:          ctx,
		cancel:       cancel,
	}

	bp.wg.Add(2)
	go bp.batchTimer()
	go bp.batchProcessor()
	return bp
}

// Submit adds an accepted registration to the current batch.
func (bp *BatchProcessor) Submit(msg *models.ProductMessage, received time.Time) {
	bp.bufferMutex.Lock()
	bp.buffer = append(bp.buffer, &batchEntry{msg: msg, received: received})
	shouldFlush := len(bp.buffer) >= bp.batchSize
	bp.bufferMutex.Unlock()

	if shouldFlush {
		bp.flushIfNeeded()
	}
}

// batchTimer handles periodic flushing
func (bp *BatchProcessor) batchTimer() {
	defer bp.wg.Done()

	ticker := time.NewTicker(bp.batchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			bp.flushIfNeeded()
		case <-bp.ctx.Done():
			return
		}
	}
}

// batchProcessor writes flushed batches until shutdown, then drains what is left
func (bp *BatchProcessor) batchProcessor() {
	defer bp.wg.Done()

	for {
		select {
		case batch := <-bp.flushChan:
			bp.processBatch(batch)
		case <-bp.ctx.Done():
			bp.drain()
			bp.bufferMutex.Lock()
			remaining := bp.buffer
			bp.buffer = nil
			bp.bufferMutex.Unlock()
			bp.processBatch(remaining)
			return
		}
	}
}

func (bp *BatchProcessor) drain() {
	for {
		select {
		case batch := <-bp.flushChan:
			bp.processBatch(batch)
		default:
			return
		}
	}
}

// flushIfNeeded hands the buffer to the writer goroutine. When the flush
// channel is full the entries stay buffered for the next tick.
func (bp *BatchProcessor) flushIfNeeded() {
	bp.bufferMutex.Lock()
	if len(bp.buffer) == 0 {
		bp.bufferMutex.Unlock()
		return
	}
	batch := bp.buffer
	bp.buffer = make([]*batchEntry, 0, bp.batchSize)
	bp.bufferMutex.Unlock()

	select {
	case bp.flushChan <- batch:
	default:
		bp.logger.Warn("Flush channel full, will flush on next timer", zap.Int("entries", len(batch)))
		bp.bufferMutex.Lock()
		bp.buffer = append(batch, bp.buffer...)
		bp.bufferMutex.Unlock()
	}
}

// processBatch stores the status rows, then publishes the messages. A batch
// whose publish fails is marked FAILED so its status does not hang at RECEIVED.
func (bp *BatchProcessor) processBatch(batch []*batchEntry) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	ctx := context.Background()

	regs := make([]*store.Registration, len(batch))
	msgs := make([]*models.ProductMessage, len(batch))
	for i, e := range batch {
		regs[i] = &store.Registration{
			RequestID:         e.msg.RequestID,
			Product:           e.msg.Product,
			Status:            store.StatusReceived,
			ReceivedTimestamp: e.received,
		}
		msgs[i] = e.msg
	}

	if err := bp.store.InsertRegistrationBatch(ctx, regs); err != nil {
		// These ids were already returned to clients and will not be found.
		lost := make([]string, len(msgs))
		for i, m := range msgs {
			lost[i] = m.RequestID
		}
		bp.logger.Error("Batch database insert failed, accepted registrations lost",
			zap.Int("size", len(batch)),
			zap.Strings("request_ids", lost),
			zap.Error(err))
		metrics.IngestionBatches.WithLabelValues("db_error").Inc()
		return
	}
	dbDuration := time.Since(start)

	if err := bp.producer.PublishBatch(ctx, msgs); err != nil {
		bp.logger.Error("Batch publish failed", zap.Int("size", len(batch)), zap.Error(err))
		metrics.IngestionBatches.WithLabelValues("publish_error").Inc()
		for _, m := range msgs {
			if markErr := bp.store.MarkAsFailed(ctx, m.RequestID, fmt.Sprintf("queue publish failed: %v", err)); markErr != nil {
				bp.logger.Error("MarkAsFailed failed", zap.String("request_id", m.RequestID), zap.Error(markErr))
			}
		}
		return
	}

	metrics.IngestionBatches.WithLabelValues("ok").Inc()
	bp.logger.Debug("Batch processed",
		zap.Int("size", len(batch)),
		zap.Duration("db", dbDuration),
		zap.Duration("total", time.Since(start)))
}

// Close flushes pending entries and stops the processor
func (bp *BatchProcessor) Close() {
	bp.cancel()
	bp.wg.Wait()
}
