package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/glazecorp/glaze-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Glaze records are immutable, so single records are cached for the
// full TTL; the recent list is invalidated on every write.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) RecordGlaze(ctx context.Context, rec *model.GlazeRecord) error {
	if err := s.primary.RecordGlaze(ctx, rec); err != nil {
		return err
	}
	s.cache(ctx, glazeKey(rec.EpochID), rec)
	s.rdb.Del(ctx, recentKey)
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetGlaze(ctx context.Context, epochID uint64) (*model.GlazeRecord, error) {
	data, err := s.rdb.Get(ctx, glazeKey(epochID)).Bytes()
	if err == nil {
		var rec model.GlazeRecord
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	rec, err := s.primary.GetGlaze(ctx, epochID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, glazeKey(epochID), rec)
	return rec, nil
}

// ListGlazes caches only the default page, the one the terminal polls.
func (s *CachedStore) ListGlazes(ctx context.Context, limit int) ([]model.GlazeRecord, error) {
	if clampLimit(limit) != DefaultListLimit {
		return s.primary.ListGlazes(ctx, limit)
	}

	data, err := s.rdb.Get(ctx, recentKey).Bytes()
	if err == nil {
		var recs []model.GlazeRecord
		if json.Unmarshal(data, &recs) == nil {
			return recs, nil
		}
	}

	recs, err := s.primary.ListGlazes(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, recentKey, recs)
	return recs, nil
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v interface{}) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

const recentKey = "glazes:recent"

func glazeKey(epochID uint64) string { return fmt.Sprintf("glaze:%d", epochID) }
