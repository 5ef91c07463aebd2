// Package timebase defines the canonical frame grid shared by all evidence
// and decoding code.
//
// A TimeBase maps frame indices to wall-clock time through a fixed hop. The
// canonical grid uses a 10 ms hop; evidence sampled on any other grid must be
// resampled onto it before fusion, never silently reinterpreted.
package timebase

import (
	"fmt"
	"math"
	"time"
)

// CanonicalHop is the hop of the canonical analysis grid.
const CanonicalHop = 10 * time.Millisecond

// TimeBase is an immutable mapping between frame indices and seconds.
// The zero value is not valid; use New or Canonical.
type TimeBase struct {
	hop time.Duration
}

// New returns a TimeBase with the given hop.
func New(hop time.Duration) (TimeBase, error) {
	if hop <= 0 {
		return TimeBase{}, fmt.Errorf("timebase: hop must be positive, got %v", hop)
	}
	return TimeBase{hop: hop}, nil
}

// Canonical returns the canonical 10 ms TimeBase.
func Canonical() TimeBase {
	return TimeBase{hop: CanonicalHop}
}

// Hop returns the frame hop.
func (tb TimeBase) Hop() time.Duration { return tb.hop }

// HopSeconds returns the frame hop in seconds.
func (tb TimeBase) HopSeconds() float64 { return tb.hop.Seconds() }

// IsCanonical reports whether tb uses the canonical 10 ms hop.
func (tb TimeBase) IsCanonical() bool { return tb.hop == CanonicalHop }

// Equal reports whether two TimeBases describe the same grid.
func (tb TimeBase) Equal(other TimeBase) bool { return tb.hop == other.hop }

// FrameToTime converts a frame index to its start time in seconds.
func (tb TimeBase) FrameToTime(frame int) float64 {
	return float64(frame) * tb.hop.Seconds()
}

// TimeToFrame converts a time in seconds to the nearest frame index.
// Ties round toward the lower index so repeated conversions are stable.
// Negative times map to frame 0.
func (tb TimeBase) TimeToFrame(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	// Round half down: ceil(x - 0.5).
	frame := int(math.Ceil(seconds/tb.hop.Seconds() - 0.5))
	if frame < 0 {
		return 0
	}
	return frame
}

// FrameCount returns the number of frames needed to cover a duration.
func (tb TimeBase) FrameCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(tb.hop)))
}

// FrameCountSeconds returns the number of frames needed to cover a duration
// given in seconds.
func (tb TimeBase) FrameCountSeconds(seconds float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(math.Ceil(seconds / tb.hop.Seconds()))
}

// String returns a short description such as "timebase(10ms)".
func (tb TimeBase) String() string {
	return fmt.Sprintf("timebase(%v)", tb.hop)
}
