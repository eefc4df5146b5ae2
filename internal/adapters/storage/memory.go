// Package storage provides Store implementations for scan results and
// quarantine items.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armourmail/armourmail/internal/core"
)

// MemoryStore is an in-memory implementation of core.Store. Entities
// are copied on the way in and out so callers cannot mutate stored
// state behind the store's back.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[uuid.UUID]*core.ScanResult
	items   map[uuid.UUID]*core.QuarantineItem
	logger  *zap.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		results: make(map[uuid.UUID]*core.ScanResult),
		items:   make(map[uuid.UUID]*core.QuarantineItem),
		logger:  logger,
	}
}

// SaveScanResult stores the completed result, keyed by email id.
func (s *MemoryStore) SaveScanResult(_ context.Context, result *core.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.EmailID] = copyResult(result)
	return nil
}

// GetScanResult returns the stored result or core.ErrNotFound.
func (s *MemoryStore) GetScanResult(_ context.Context, emailID uuid.UUID) (*core.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[emailID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyResult(r), nil
}

// SaveQuarantineItem creates an item; a second create for the same id
// fails with core.ErrAlreadyExists.
func (s *MemoryStore) SaveQuarantineItem(_ context.Context, item *core.QuarantineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return core.ErrAlreadyExists
	}
	s.items[item.ID] = copyItem(item)
	return nil
}

// GetQuarantineItem returns the item or core.ErrNotFound.
func (s *MemoryStore) GetQuarantineItem(_ context.Context, id uuid.UUID) (*core.QuarantineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return copyItem(item), nil
}

// UpdateQuarantineItem replaces an existing item.
func (s *MemoryStore) UpdateQuarantineItem(_ context.Context, item *core.QuarantineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return core.ErrNotFound
	}
	s.items[item.ID] = copyItem(item)
	return nil
}

// ListPendingBefore returns pending items due at or before deadline.
func (s *MemoryStore) ListPendingBefore(_ context.Context, deadline time.Time) ([]*core.QuarantineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.QuarantineItem
	for _, item := range s.items {
		if item.Status == core.StatusPending && !item.ExpiresAt.After(deadline) {
			out = append(out, copyItem(item))
		}
	}
	return out, nil
}

func copyResult(r *core.ScanResult) *core.ScanResult {
	cp := *r
	cp.Flags = append([]core.ScanFlag(nil), r.Flags...)
	cp.Detectors = append([]string(nil), r.Detectors...)
	if r.Classifier != nil {
		cls := *r.Classifier
		cp.Classifier = &cls
	}
	return &cp
}

func copyItem(i *core.QuarantineItem) *core.QuarantineItem {
	cp := *i
	cp.Actions = append([]core.QuarantineAction(nil), i.Actions...)
	if i.Resolution != nil {
		res := *i.Resolution
		cp.Resolution = &res
	}
	return &cp
}
