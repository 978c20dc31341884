package service

import (
	"context"
	"errors"
	"time"

	blockchain "hashauth/blockchain/client"
	"hashauth/blockchain/encoder"
	"hashauth/blockchain/types"
	"hashauth/config"
	"hashauth/internal/messaging/producer"
	"hashauth/internal/models"
	"hashauth/storage/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAuthUnavailable is returned by AuthProduct when no registry client is configured.
var ErrAuthUnavailable = errors.New("product authentication is not configured")

// SubmitResult defines the return information after successful submission
type SubmitResult struct {
	RequestID         string
	ReceivedTimestamp time.Time
}

// Service encapsulates the core business logic of the ingestion gateway
type Service struct {
	store          store.Store
	producer       producer.Producer
	registry       blockchain.RegistryClient
	logger         *zap.Logger
	batchProcessor *BatchProcessor
}

// NewService creates a new Service. registry may be nil, in which case
// AuthProduct reports ErrAuthUnavailable.
func NewService(s store.Store, p producer.Producer, registry blockchain.RegistryClient, logger *zap.Logger, cfg config.BatchProcessorConfig) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          s,
		producer:       p,
		registry:       registry,
		logger:         logger,
		batchProcessor: NewBatchProcessor(cfg, s, p, logger),
	}
}

// SubmitProduct validates rec and queues it for registration. The record is
// checked with the same encoder the engine uses, so a request that is
// accepted here cannot fail later with an invalid field.
//
// Acceptance means queued, not stored: the status row is written with the
// next batch, and GetStatus reports ErrNotFound until then. A batch whose
// insert fails is logged with its request ids and never becomes visible.
func (s *Service) SubmitProduct(ctx context.Context, rec *types.ProductRecord) (*SubmitResult, error) {
	if _, err := encoder.Encode(rec); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &SubmitResult{
		RequestID:         uuid.NewString(),
		ReceivedTimestamp: time.Now().UTC(),
	}
	s.batchProcessor.Submit(&models.ProductMessage{
		RequestID:         result.RequestID,
		Product:           *rec,
		ReceivedTimestamp: result.ReceivedTimestamp.Format(time.RFC3339Nano),
	}, result.ReceivedTimestamp)

	s.logger.Debug("Product accepted", zap.String("request_id", result.RequestID), zap.String("name", rec.Name))
	return result, nil
}

// AuthProduct queries the registry for rec.
func (s *Service) AuthProduct(ctx context.Context, rec *types.ProductRecord) (*types.AuthStatus, error) {
	if s.registry == nil {
		return nil, ErrAuthUnavailable
	}
	if _, err := encoder.Encode(rec); err != nil {
		return nil, err
	}
	return s.registry.AuthProduct(ctx, rec)
}

// GetStatus returns the registration tracked under requestID.
func (s *Service) GetStatus(ctx context.Context, requestID string) (*store.Registration, error) {
	return s.store.GetRegistration(ctx, requestID)
}

// Close gracefully shuts down the service
func (s *Service) Close() {
	s.batchProcessor.Close()
}
