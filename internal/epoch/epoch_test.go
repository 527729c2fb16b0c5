package epoch

import (
	"errors"
	"testing"

	"github.com/glazecorp/glaze-engine/internal/model"
)

var daily = model.EpochSchedule{EpochDurationSeconds: 86400, GenesisTime: 1_000_000}

func TestLocate(t *testing.T) {
	tests := []struct {
		name      string
		now       int64
		index     int64
		remaining int64
	}{
		{"at genesis", 1_000_000, 0, 86400},
		{"one second in", 1_000_001, 0, 86399},
		{"last second", 1_000_000 + 86399, 0, 1},
		{"boundary", 1_000_000 + 86400, 1, 86400},
		{"third epoch", 1_000_000 + 2*86400 + 3600, 2, 86400 - 3600},
		{"before genesis", 10, 0, 86400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Locate(daily, tt.now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Index != tt.index {
				t.Errorf("expected index %d, got %d", tt.index, p.Index)
			}
			if p.Remaining != tt.remaining {
				t.Errorf("expected remaining %d, got %d", tt.remaining, p.Remaining)
			}
		})
	}
}

func TestLocate_ModBoundaryConsistency(t *testing.T) {
	s := model.EpochSchedule{EpochDurationSeconds: 977, GenesisTime: 500}
	for now := s.GenesisTime; now < s.GenesisTime+5000; now += 7 {
		rem, err := Remaining(s, now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rem <= 0 || rem > s.EpochDurationSeconds {
			t.Fatalf("remaining %d out of (0, %d] at t=%d", rem, s.EpochDurationSeconds, now)
		}
		if rem+(now-s.GenesisTime)%s.EpochDurationSeconds != s.EpochDurationSeconds {
			t.Fatalf("mod boundary mismatch at t=%d", now)
		}
	}
}

func TestLocate_NextAt(t *testing.T) {
	p, _ := Locate(daily, 1_000_000+100)
	if p.NextAt != 1_000_000+86400 {
		t.Errorf("expected next boundary at %d, got %d", 1_000_000+86400, p.NextAt)
	}
}

func TestLocate_InvalidDuration(t *testing.T) {
	for _, d := range []int64{0, -60} {
		_, err := Locate(model.EpochSchedule{EpochDurationSeconds: d}, 100)
		if !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("duration %d: expected ErrInvalidDuration, got %v", d, err)
		}
		var se *SchedulingError
		if !errors.As(err, &se) || se.Duration != d {
			t.Errorf("duration %d: expected SchedulingError, got %#v", d, err)
		}
	}
	if _, err := Index(model.EpochSchedule{}, 0); err == nil {
		t.Error("Index: expected error for zero schedule")
	}
}

func TestFormatCountdown(t *testing.T) {
	tests := map[int64]string{
		0:       "0h 0m",
		59:      "0h 0m",
		61:      "0h 1m",
		19379:   "5h 12m",
		2592000: "720h 0m",
		-5:      "0h 0m",
	}
	for in, want := range tests {
		if got := FormatCountdown(in); got != want {
			t.Errorf("FormatCountdown(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := map[int64]string{
		-1:   "0s",
		0:    "0s",
		42:   "42s",
		125:  "2m 5s",
		3723: "1h 2m 3s",
		3600: "1h 0m 0s",
	}
	for in, want := range tests {
		if got := FormatElapsed(in); got != want {
			t.Errorf("FormatElapsed(%d) = %q, want %q", in, got, want)
		}
	}
}
