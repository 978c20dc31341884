package grpc

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strings"
	"time"

	"hashauth/blockchain/types"
	core "hashauth/ingestion/service/core"
	"hashauth/storage/store"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Largest integer a protobuf double carries exactly.
const maxExactNumber = 1 << 53

// Server implements ProductIngestionServer over the core service
type Server struct {
	svc    *core.Service
	logger *zap.Logger
}

// NewServer creates a new gRPC Server instance
func NewServer(s *core.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{svc: s, logger: logger}
}

// SubmitProduct queues a product for registration.
func (s *Server) SubmitProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := recordFromStruct(req)
	if err != nil {
		return nil, s.toStatus("submit", err)
	}
	result, err := s.svc.SubmitProduct(ctx, rec)
	if err != nil {
		return nil, s.toStatus("submit", err)
	}
	return s.respond(map[string]any{
		"request_id":         result.RequestID,
		"received_timestamp": result.ReceivedTimestamp.Format(time.RFC3339Nano),
		"status":             "ACCEPTED",
	})
}

// AuthProduct asks the registry whether a product was registered.
func (s *Server) AuthProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := recordFromStruct(req)
	if err != nil {
		return nil, s.toStatus("auth", err)
	}
	st, err := s.svc.AuthProduct(ctx, rec)
	if err != nil {
		return nil, s.toStatus("auth", err)
	}
	return s.respond(map[string]any{
		"known":     st.Known,
		"hash":      st.Hash.Hex(),
		"timestamp": st.Timestamp,
		"formatted": st.Formatted,
	})
}

// GetStatus reports the processing state of a submitted registration.
func (s *Server) GetStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	reg, err := s.svc.GetStatus(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus("status", err)
	}
	resp := map[string]any{
		"request_id":         reg.RequestID,
		"status":             string(reg.Status),
		"retry_count":        reg.RetryCount,
		"received_timestamp": reg.ReceivedTimestamp.Format(time.RFC3339Nano),
	}
	if reg.ErrorMessage != "" {
		resp["error_message"] = reg.ErrorMessage
	}
	if reg.Status == store.StatusCompleted {
		resp["tx_hash"] = reg.TxHash
		resp["block_height"] = reg.BlockHeight
		resp["registered_hash"] = reg.RegisteredHash
		resp["registered_at"] = reg.RegisteredAt
	}
	return s.respond(resp)
}

func (s *Server) respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		s.logger.Error("Failed to build gRPC response", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to build response")
	}
	return out, nil
}

func (s *Server) toStatus(op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, types.ErrInvalidField):
		code = codes.InvalidArgument
	case errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, core.ErrAuthUnavailable):
		code = codes.FailedPrecondition
	case errors.Is(err, types.ErrNodeUnavailable):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	if code == codes.Internal || code == codes.Unavailable {
		s.logger.Error("Service layer processing failed", zap.String("op", op), zap.Error(err))
	}
	return status.Error(code, err.Error())
}

// recordFromStruct reads a product from its JSON-shaped Struct. Range checks
// are left to the encoder.
func recordFromStruct(st *structpb.Struct) (*types.ProductRecord, error) {
	if st == nil {
		return nil, &types.FieldError{Field: "record", Reason: "is nil"}
	}
	rec := &types.ProductRecord{}
	text := map[string]*string{
		"name":         &rec.Name,
		"batchNo":      &rec.BatchNo,
		"barcodeNo":    &rec.BarcodeNo,
		"producerName": &rec.ProducerName,
		"scanLocation": &rec.ScanLocation,
		"scanStatus":   &rec.ScanStatus,
	}
	numbers := map[string]**big.Int{
		"expiryDate":     &rec.ExpiryDate,
		"productionDate": &rec.ProductionDate,
		"fdaNo":          &rec.FdaNo,
		"scanTime":       &rec.ScanTime,
		"scanDate":       &rec.ScanDate,
	}

	for key, v := range st.GetFields() {
		if dst, ok := text[key]; ok {
			sv, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return nil, &types.FieldError{Field: key, Reason: "must be a string"}
			}
			*dst = sv.StringValue
			continue
		}
		if dst, ok := numbers[key]; ok {
			n, err := numberValue(key, v)
			if err != nil {
				return nil, err
			}
			*dst = n
			continue
		}
		return nil, &types.FieldError{Field: key, Reason: "is not a product field"}
	}
	return rec, nil
}

func numberValue(field string, v *structpb.Value) (*big.Int, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return nil, &types.FieldError{Field: field, Reason: "is not an integer"}
		}
		if math.Abs(f) > maxExactNumber {
			return nil, &types.FieldError{Field: field, Reason: "is too large for a number, send it as a decimal string"}
		}
		return big.NewInt(int64(f)), nil
	case *structpb.Value_StringValue:
		n, ok := new(big.Int).SetString(strings.TrimSpace(k.StringValue), 10)
		if !ok {
			return nil, &types.FieldError{Field: field, Reason: "is not a decimal integer"}
		}
		return n, nil
	}
	return nil, &types.FieldError{Field: field, Reason: "must be a number"}
}

var _ ProductIngestionServer = (*Server)(nil)
