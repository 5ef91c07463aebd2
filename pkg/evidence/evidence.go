// Package evidence defines the soft-evidence data model consumed by the
// decoder: named per-frame signal tracks and bundles of tracks sharing one
// canonical frame grid.
//
// Tracks are immutable once constructed and validated up front; malformed
// evidence fails construction instead of being clamped or coerced later.
// A bundle may be sparse: any named track can be absent, and absence is
// distinct from a track of zeros.
package evidence

import "errors"

// Sentinel errors. Wrapped errors carry the track name and the expected vs
// actual shape or grid so failures are diagnosable without re-running.
var (
	// ErrValueRange is returned when probability or confidence values fall
	// outside [0, 1], or when values are NaN or infinite.
	ErrValueRange = errors.New("evidence: value out of range")

	// ErrBundleShape is returned when a track's frame count does not match
	// the bundle's frame count, or a track shape is internally inconsistent.
	ErrBundleShape = errors.New("evidence: bundle shape mismatch")

	// ErrTimebaseMismatch is returned when a track's grid differs from the
	// required grid and no resampling has been requested.
	ErrTimebaseMismatch = errors.New("evidence: timebase mismatch")
)

// Semantics declares how a track's values are interpreted during fusion.
type Semantics string

const (
	// Probability values lie in [0, 1].
	Probability Semantics = "probability"

	// Score values are unbounded reals used as additive score offsets.
	Score Semantics = "score"

	// Logit values are unbounded reals on the log-odds scale.
	Logit Semantics = "logit"
)

// Valid reports whether s is one of the declared semantics tags.
func (s Semantics) Valid() bool {
	switch s {
	case Probability, Score, Logit:
		return true
	}
	return false
}
