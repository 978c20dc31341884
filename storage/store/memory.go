package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. State is lost on exit; it serves tests
// and single-process runs.
type MemoryStore struct {
	mu   sync.Mutex
	regs map[string]*Registration
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{regs: make(map[string]*Registration), now: time.Now}
}

func (m *MemoryStore) InsertRegistrationBatch(_ context.Context, regs []*Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range regs {
		if _, exists := m.regs[r.RequestID]; exists {
			return fmt.Errorf("duplicate request id %s", r.RequestID)
		}
	}
	for _, r := range regs {
		cp := *r
		cp.Status = StatusReceived
		cp.UpdatedAt = m.now()
		m.regs[r.RequestID] = &cp
	}
	return nil
}

func (m *MemoryStore) GetAndMarkAsProcessing(_ context.Context, requestID string, maxRetries int) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	switch r.Status {
	case StatusReceived, StatusProcessing:
		if r.RetryCount >= maxRetries {
			r.Status = StatusFailed
			r.ErrorMessage = fmt.Sprintf("max retries (%d) exceeded: %s", maxRetries, r.ErrorMessage)
		} else {
			r.Status = StatusProcessing
		}
		r.UpdatedAt = m.now()
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) MarkAsCompleted(_ context.Context, rec CompletionRecord) error {
	return m.update(rec.RequestID, func(r *Registration) {
		now := m.now()
		r.Status = StatusCompleted
		r.TxHash = rec.TxHash
		r.BlockHeight = rec.BlockHeight
		r.RegisteredHash = rec.RegisteredHash
		r.RegisteredAt = rec.RegisteredAt
		r.ErrorMessage = ""
		r.CompletedAt = &now
	})
}

func (m *MemoryStore) MarkForRetry(_ context.Context, requestID, errMsg string) error {
	return m.update(requestID, func(r *Registration) {
		r.Status = StatusReceived
		r.RetryCount++
		r.ErrorMessage = errMsg
	})
}

func (m *MemoryStore) MarkAsFailed(_ context.Context, requestID, errMsg string) error {
	return m.update(requestID, func(r *Registration) {
		r.Status = StatusFailed
		r.ErrorMessage = errMsg
	})
}

func (m *MemoryStore) update(requestID string, fn func(*Registration)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[requestID]
	if !ok {
		return ErrNotFound
	}
	fn(r)
	r.UpdatedAt = m.now()
	return nil
}

func (m *MemoryStore) GetRegistration(_ context.Context, requestID string) (*Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.regs[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryStore) Close() {}

var _ Store = (*MemoryStore)(nil)
