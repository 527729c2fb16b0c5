// Package store persists the glaze history: one immutable record per miner
// epoch. Implementations include PostgreSQL (source of truth), Redis
// (read-through cache), and in-memory (for testing and development).
package store

import (
	"context"
	"errors"

	"github.com/glazecorp/glaze-engine/internal/model"
)

var (
	// ErrNotFound is returned when no record exists for the query.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an epoch already has a record. Records
	// are never overwritten.
	ErrDuplicate = errors.New("store: epoch already recorded")
)

const (
	// DefaultListLimit applies when ListGlazes is given a non-positive limit.
	DefaultListLimit = 50

	// MaxListLimit caps ListGlazes.
	MaxListLimit = 500
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// RecordGlaze appends the record for a newly observed epoch.
	RecordGlaze(ctx context.Context, rec *model.GlazeRecord) error

	// GetGlaze returns the record for one epoch.
	GetGlaze(ctx context.Context, epochID uint64) (*model.GlazeRecord, error)

	// ListGlazes returns up to limit records, newest epoch first.
	ListGlazes(ctx context.Context, limit int) ([]model.GlazeRecord, error)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)
