package store

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/glazecorp/glaze-engine/internal/model"
)

func rec(epoch uint64) *model.GlazeRecord {
	return &model.GlazeRecord{
		ID:         "g-" + big.NewInt(int64(epoch)).String(),
		EpochID:    epoch,
		Miner:      "0x1111111111111111111111111111111111111111",
		URI:        "gm",
		InitPrice:  big.NewInt(int64(epoch) * 1000),
		StartTime:  1_700_000_000 + int64(epoch),
		RecordedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestMemoryStore_RecordAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.RecordGlaze(ctx, rec(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.GetGlaze(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.URI != "gm" || got.InitPrice.Int64() != 1000 {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestMemoryStore_Duplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.RecordGlaze(ctx, rec(1))

	again := rec(1)
	again.URI = "overwrite"
	if err := s.RecordGlaze(ctx, again); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
	got, _ := s.GetGlaze(ctx, 1)
	if got.URI != "gm" {
		t.Error("existing record must not be overwritten")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	if _, err := NewMemoryStore().GetGlaze(context.Background(), 9); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_Immutable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	r := rec(1)
	s.RecordGlaze(ctx, r)

	r.InitPrice.SetInt64(-1)
	got, _ := s.GetGlaze(ctx, 1)
	got.InitPrice.SetInt64(-2)

	again, _ := s.GetGlaze(ctx, 1)
	if again.InitPrice.Int64() != 1000 {
		t.Errorf("stored record was mutated: %s", again.InitPrice)
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, e := range []uint64{3, 1, 2} {
		s.RecordGlaze(ctx, rec(e))
	}

	got, err := s.ListGlazes(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].EpochID != 3 || got[1].EpochID != 2 {
		t.Errorf("expected epochs [3 2], got %+v", got)
	}

	all, _ := s.ListGlazes(ctx, 0)
	if len(all) != 3 {
		t.Errorf("default limit should return all 3, got %d", len(all))
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{
		-1:   DefaultListLimit,
		0:    DefaultListLimit,
		10:   10,
		5000: MaxListLimit,
	}
	for in, want := range tests {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
