package evidence

import (
	"fmt"
	"math"

	"github.com/dyadlab/turnline/pkg/timebase"
)

// Track is one named soft-evidence signal on a fixed TimeBase.
//
// Values are stored row-major as frames × Dim; the common single-dimensional
// case has Dim == 1. A Track is immutable: constructors copy their inputs and
// accessors never expose writable state that the Track itself reads.
type Track struct {
	name       string
	tb         timebase.TimeBase
	values     []float64
	dim        int
	semantics  Semantics
	confidence []float64
	metadata   map[string]string
}

// TrackOptions carries the optional parts of a track.
type TrackOptions struct {
	// Dim is the per-frame dimensionality K for multi-dimensional signals.
	// Zero means 1.
	Dim int

	// Confidence is an optional per-frame reliability weight in [0, 1],
	// aligned with the track frames.
	Confidence []float64

	// Metadata records free-form provenance (source name, parameters).
	Metadata map[string]string
}

// NewTrack constructs and validates a Track. The values slice holds
// frames × dim elements row-major. Validation failures wrap ErrValueRange or
// ErrBundleShape; values outside a declared range fail construction rather
// than being clamped.
func NewTrack(name string, tb timebase.TimeBase, values []float64, sem Semantics, opts *TrackOptions) (*Track, error) {
	if name == "" {
		return nil, fmt.Errorf("evidence: track name must not be empty")
	}
	if !sem.Valid() {
		return nil, fmt.Errorf("evidence: track %q: unknown semantics %q", name, sem)
	}

	dim := 1
	var confidence []float64
	var metadata map[string]string
	if opts != nil {
		if opts.Dim < 0 {
			return nil, fmt.Errorf("evidence: track %q: dim must be positive, got %d: %w", name, opts.Dim, ErrBundleShape)
		}
		if opts.Dim > 0 {
			dim = opts.Dim
		}
		confidence = opts.Confidence
		metadata = opts.Metadata
	}

	if len(values) == 0 {
		return nil, fmt.Errorf("evidence: track %q: empty values: %w", name, ErrBundleShape)
	}
	if len(values)%dim != 0 {
		return nil, fmt.Errorf("evidence: track %q: %d values not divisible by dim %d: %w",
			name, len(values), dim, ErrBundleShape)
	}
	frames := len(values) / dim

	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("evidence: track %q: non-finite value at index %d: %w", name, i, ErrValueRange)
		}
		if sem == Probability && (v < 0 || v > 1) {
			return nil, fmt.Errorf("evidence: track %q: probability %g at index %d outside [0,1]: %w",
				name, v, i, ErrValueRange)
		}
	}

	if confidence != nil {
		if len(confidence) != frames {
			return nil, fmt.Errorf("evidence: track %q: confidence length %d, want %d frames: %w",
				name, len(confidence), frames, ErrBundleShape)
		}
		for i, c := range confidence {
			if math.IsNaN(c) || c < 0 || c > 1 {
				return nil, fmt.Errorf("evidence: track %q: confidence %g at frame %d outside [0,1]: %w",
					name, c, i, ErrValueRange)
			}
		}
	}

	tr := &Track{
		name:      name,
		tb:        tb,
		values:    append([]float64(nil), values...),
		dim:       dim,
		semantics: sem,
	}
	if confidence != nil {
		tr.confidence = append([]float64(nil), confidence...)
	}
	if len(metadata) > 0 {
		tr.metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			tr.metadata[k] = v
		}
	}
	return tr, nil
}

// Name returns the track's semantic identifier.
func (t *Track) Name() string { return t.name }

// TimeBase returns the grid the track is sampled on.
func (t *Track) TimeBase() timebase.TimeBase { return t.tb }

// Frames returns the number of frames T.
func (t *Track) Frames() int { return len(t.values) / t.dim }

// Dim returns the per-frame dimensionality K.
func (t *Track) Dim() int { return t.dim }

// Semantics returns the track's value semantics.
func (t *Track) Semantics() Semantics { return t.semantics }

// At returns the value at frame i, dimension k.
func (t *Track) At(i, k int) float64 { return t.values[i*t.dim+k] }

// Value returns the value at frame i for single-dimensional tracks.
func (t *Track) Value(i int) float64 { return t.values[i*t.dim] }

// Values returns the underlying row-major values. Callers must not modify
// the returned slice.
func (t *Track) Values() []float64 { return t.values }

// HasConfidence reports whether a confidence sequence is attached.
func (t *Track) HasConfidence() bool { return t.confidence != nil }

// ConfidenceAt returns the confidence at frame i, or 1 if no confidence
// sequence is attached.
func (t *Track) ConfidenceAt(i int) float64 {
	if t.confidence == nil {
		return 1
	}
	return t.confidence[i]
}

// Confidence returns the confidence sequence, or nil. Callers must not
// modify the returned slice.
func (t *Track) Confidence() []float64 { return t.confidence }

// Metadata returns a copy of the provenance metadata.
func (t *Track) Metadata() map[string]string {
	if t.metadata == nil {
		return nil
	}
	out := make(map[string]string, len(t.metadata))
	for k, v := range t.metadata {
		out[k] = v
	}
	return out
}

// WithName returns a copy of the track under a different name. The underlying
// values are shared; tracks are immutable so sharing is safe.
func (t *Track) WithName(name string) *Track {
	cp := *t
	cp.name = name
	return &cp
}
