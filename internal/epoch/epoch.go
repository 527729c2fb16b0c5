// Package epoch computes which epoch a timestamp falls into and how long
// remains until the next boundary, for halvings and auction epochs.
package epoch

import (
	"errors"
	"fmt"

	"github.com/glazecorp/glaze-engine/internal/model"
)

// ErrInvalidDuration is matched by every InvalidDuration SchedulingError.
var ErrInvalidDuration = errors.New("epoch: epoch duration must be positive")

// SchedulingError reports a misconfigured EpochSchedule.
type SchedulingError struct {
	Duration int64
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("epoch: invalid duration %ds", e.Duration)
}

// Is matches ErrInvalidDuration.
func (e *SchedulingError) Is(target error) bool { return target == ErrInvalidDuration }

// Position is where a timestamp sits within a schedule.
type Position struct {
	Index     int64 // epochs completed since genesis
	Remaining int64 // seconds until the next boundary, in (0, duration]
	NextAt    int64 // unix time of the next boundary
}

func validate(s model.EpochSchedule) error {
	if s.EpochDurationSeconds <= 0 {
		return &SchedulingError{Duration: s.EpochDurationSeconds}
	}
	return nil
}

// Locate returns the Position of now within s. now before genesis is
// clamped to genesis: index 0 with the full duration remaining.
func Locate(s model.EpochSchedule, now int64) (Position, error) {
	if err := validate(s); err != nil {
		return Position{}, err
	}
	if now < s.GenesisTime {
		now = s.GenesisTime
	}
	since := now - s.GenesisTime
	d := s.EpochDurationSeconds
	p := Position{
		Index:     since / d,
		Remaining: d - since%d,
	}
	p.NextAt = now + p.Remaining
	return p, nil
}

// Index returns floor((now - genesis) / duration).
func Index(s model.EpochSchedule, now int64) (int64, error) {
	p, err := Locate(s, now)
	return p.Index, err
}

// Remaining returns duration - ((now - genesis) mod duration).
func Remaining(s model.EpochSchedule, now int64) (int64, error) {
	p, err := Locate(s, now)
	return p.Remaining, err
}

// FormatCountdown renders seconds as whole hours and minutes, "5h 12m".
// Leftover seconds are truncated.
func FormatCountdown(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}

// FormatElapsed renders how long the current holder has held the miner:
// "1h 2m 3s", "2m 3s", or "3s".
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		return "0s"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
