package store

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/glazecorp/glaze-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	glazes map[uint64]model.GlazeRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{glazes: make(map[uint64]model.GlazeRecord)}
}

func (s *MemoryStore) RecordGlaze(_ context.Context, rec *model.GlazeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.glazes[rec.EpochID]; ok {
		return ErrDuplicate
	}
	s.glazes[rec.EpochID] = cloneRecord(*rec)
	return nil
}

func (s *MemoryStore) GetGlaze(_ context.Context, epochID uint64) (*model.GlazeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.glazes[epochID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStore) ListGlazes(_ context.Context, limit int) ([]model.GlazeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.GlazeRecord, 0, len(s.glazes))
	for _, rec := range s.glazes {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpochID > out[j].EpochID })
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// cloneRecord copies the big.Int so stored records cannot be mutated
// through a caller's pointer.
func cloneRecord(rec model.GlazeRecord) model.GlazeRecord {
	if rec.InitPrice != nil {
		rec.InitPrice = new(big.Int).Set(rec.InitPrice)
	}
	return rec
}
