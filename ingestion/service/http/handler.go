package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"hashauth/blockchain/types"
	core "hashauth/ingestion/service/core"
	"hashauth/storage/store"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ProductHandler encapsulates the logic for handling HTTP product requests
type ProductHandler struct {
	svc    *core.Service
	logger *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(s *core.Service, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{svc: s, logger: logger}
}

// Register mounts the product routes on mux.
func (h *ProductHandler) Register(mux *http.ServeMux, healthPath string) {
	mux.HandleFunc("POST /v1/products", h.SubmitProduct)
	mux.HandleFunc("POST /v1/products/auth", h.AuthProduct)
	mux.HandleFunc("GET /v1/products/{request_id}", h.GetStatus)
	mux.HandleFunc("GET "+healthPath, h.HealthCheck)
}

// SubmitProduct handles POST /v1/products requests
func (h *ProductHandler) SubmitProduct(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	result, err := h.svc.SubmitProduct(r.Context(), rec)
	if err != nil {
		h.respondServiceError(w, "submit", err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"request_id":         result.RequestID,
		"received_timestamp": result.ReceivedTimestamp.Format(time.RFC3339Nano),
		"status":             "ACCEPTED",
	}, http.StatusAccepted)
}

// AuthProduct handles POST /v1/products/auth requests
func (h *ProductHandler) AuthProduct(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	status, err := h.svc.AuthProduct(r.Context(), rec)
	if err != nil {
		h.respondServiceError(w, "auth", err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"known":     status.Known,
		"hash":      status.Hash.Hex(),
		"timestamp": status.Timestamp,
		"formatted": status.Formatted,
	}, http.StatusOK)
}

// GetStatus handles GET /v1/products/{request_id} requests
func (h *ProductHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	reg, err := h.svc.GetStatus(r.Context(), r.PathValue("request_id"))
	if err != nil {
		h.respondServiceError(w, "status", err)
		return
	}

	resp := map[string]interface{}{
		"request_id":         reg.RequestID,
		"status":             reg.Status,
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
	h.respondJSON(w, resp, http.StatusOK)
}

// HealthCheck handles GET /health requests
func (h *ProductHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"service":   "ingestion",
	}, http.StatusOK)
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*types.ProductRecord, bool) {
	if r.Header.Get("Content-Type") != "application/json" {
		h.respondError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return nil, false
	}
	if r.ContentLength > maxBodyBytes {
		h.respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	defer r.Body.Close()

	var rec types.ProductRecord
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		h.logger.Debug("Failed to parse JSON request", zap.Error(err))
		h.respondError(w, "Bad Request: Invalid JSON format", http.StatusBadRequest)
		return nil, false
	}
	return &rec, true
}

func (h *ProductHandler) respondServiceError(w http.ResponseWriter, op string, err error) {
	statusCode := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrInvalidField):
		statusCode = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		statusCode = http.StatusNotFound
	case errors.Is(err, core.ErrAuthUnavailable):
		statusCode = http.StatusServiceUnavailable
	case errors.Is(err, types.ErrNodeUnavailable):
		statusCode = http.StatusBadGateway
	}
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("Service layer processing failed", zap.String("op", op), zap.Error(err))
	}
	h.respondError(w, err.Error(), statusCode)
}

// respondJSON sends JSON response
func (h *ProductHandler) respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends error response
func (h *ProductHandler) respondError(w http.ResponseWriter, message string, statusCode int) {
	h.respondJSON(w, map[string]interface{}{
		"error":   message,
		"status":  statusCode,
		"message": http.StatusText(statusCode),
	}, statusCode)
}
