// Package resample maps evidence tracks between frame grids.
//
// Grids whose hops are integer multiples of each other are converted exactly:
// replication (zero-order hold) when upsampling, an explicitly chosen
// aggregation when downsampling. There is deliberately no default
// aggregation; a max-style voice-activity track silently averaged into a
// diluted mean would change its meaning. Non-integer hop ratios are an error
// unless the caller explicitly opts in to linear interpolation.
//
// All operations are pure: identical inputs produce bit-identical outputs.
package resample

import (
	"fmt"

	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// Aggregation selects how source frames are combined when downsampling.
type Aggregation string

const (
	// Mean averages the source frames in each target frame.
	Mean Aggregation = "mean"

	// Max keeps the largest source value in each target frame.
	Max Aggregation = "max"

	// Last keeps the final source value in each target frame.
	Last Aggregation = "last"
)

// Valid reports whether a is a known aggregation.
func (a Aggregation) Valid() bool {
	switch a {
	case Mean, Max, Last:
		return true
	}
	return false
}

// Options controls a resampling call.
type Options struct {
	// Aggregation is required when downsampling. It has no effect when
	// upsampling.
	Aggregation Aggregation

	// Interpolate enables linear interpolation for grids whose hops are not
	// integer multiples of each other. Without it such grids fail with
	// evidence.ErrTimebaseMismatch.
	Interpolate bool
}

// ToCanonical resamples a track onto the canonical 10 ms grid.
func ToCanonical(tr *evidence.Track, opts Options) (*evidence.Track, error) {
	return ToTimeBase(tr, timebase.Canonical(), opts)
}

// ToTimeBase resamples a track onto the target grid. A track already on the
// target grid is returned unchanged (tracks are immutable, so sharing is
// safe).
func ToTimeBase(tr *evidence.Track, target timebase.TimeBase, opts Options) (*evidence.Track, error) {
	src := tr.TimeBase()
	if src.Equal(target) {
		return tr, nil
	}

	srcHop, dstHop := src.Hop(), target.Hop()

	switch {
	case srcHop > dstHop && srcHop%dstHop == 0:
		factor := int(srcHop / dstHop)
		return rebuild(tr, target, upsampleHold(tr.Values(), tr.Dim(), factor), holdConfidence(tr.Confidence(), factor))

	case dstHop > srcHop && dstHop%srcHop == 0:
		factor := int(dstHop / srcHop)
		if !opts.Aggregation.Valid() {
			return nil, fmt.Errorf("resample: track %q: downsampling %v -> %v requires an explicit aggregation",
				tr.Name(), src, target)
		}
		values, err := downsample(tr.Values(), tr.Dim(), factor, opts.Aggregation)
		if err != nil {
			return nil, fmt.Errorf("resample: track %q: %w", tr.Name(), err)
		}
		var conf []float64
		if tr.HasConfidence() {
			conf, err = downsample(tr.Confidence(), 1, factor, opts.Aggregation)
			if err != nil {
				return nil, fmt.Errorf("resample: track %q confidence: %w", tr.Name(), err)
			}
		}
		return rebuild(tr, target, values, conf)

	default:
		if !opts.Interpolate {
			return nil, fmt.Errorf("resample: track %q: hops %v and %v are not integer multiples; "+
				"pass Interpolate to allow linear interpolation: %w",
				tr.Name(), srcHop, dstHop, evidence.ErrTimebaseMismatch)
		}
		out := interpolate(tr.Values(), tr.Dim(), tr.Frames(), src, target)
		var conf []float64
		if tr.HasConfidence() {
			conf = interpolate(tr.Confidence(), 1, tr.Frames(), src, target)
		}
		return rebuild(tr, target, out, conf)
	}
}

// rebuild constructs the resampled track, carrying name, semantics,
// confidence, and metadata.
func rebuild(tr *evidence.Track, target timebase.TimeBase, values, confidence []float64) (*evidence.Track, error) {
	opts := &evidence.TrackOptions{
		Dim:        tr.Dim(),
		Confidence: confidence,
		Metadata:   tr.Metadata(),
	}
	out, err := evidence.NewTrack(tr.Name(), target, values, tr.Semantics(), opts)
	if err != nil {
		return nil, fmt.Errorf("resample: rebuilding track %q: %w", tr.Name(), err)
	}
	return out, nil
}

func upsampleHold(values []float64, dim, factor int) []float64 {
	frames := len(values) / dim
	out := make([]float64, 0, frames*factor*dim)
	for i := 0; i < frames; i++ {
		row := values[i*dim : (i+1)*dim]
		for r := 0; r < factor; r++ {
			out = append(out, row...)
		}
	}
	return out
}

func holdConfidence(conf []float64, factor int) []float64 {
	if conf == nil {
		return nil
	}
	return upsampleHold(conf, 1, factor)
}

func downsample(values []float64, dim, factor int, agg Aggregation) ([]float64, error) {
	frames := len(values) / dim
	if frames%factor != 0 {
		return nil, fmt.Errorf("%d frames not divisible by factor %d: %w",
			frames, factor, evidence.ErrTimebaseMismatch)
	}
	outFrames := frames / factor
	out := make([]float64, outFrames*dim)
	for i := 0; i < outFrames; i++ {
		for k := 0; k < dim; k++ {
			switch agg {
			case Mean:
				sum := 0.0
				for r := 0; r < factor; r++ {
					sum += values[(i*factor+r)*dim+k]
				}
				out[i*dim+k] = sum / float64(factor)
			case Max:
				best := values[i*factor*dim+k]
				for r := 1; r < factor; r++ {
					if v := values[(i*factor+r)*dim+k]; v > best {
						best = v
					}
				}
				out[i*dim+k] = best
			case Last:
				out[i*dim+k] = values[(i*factor+factor-1)*dim+k]
			}
		}
	}
	return out, nil
}

// interpolate resamples by sampling a piecewise-linear reconstruction of the
// source signal at target frame times.
func interpolate(values []float64, dim, srcFrames int, src, target timebase.TimeBase) []float64 {
	duration := float64(srcFrames) * src.HopSeconds()
	outFrames := target.FrameCountSeconds(duration)
	out := make([]float64, outFrames*dim)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * target.HopSeconds() / src.HopSeconds()
		lo := int(pos)
		if lo >= srcFrames-1 {
			copy(out[i*dim:(i+1)*dim], values[(srcFrames-1)*dim:srcFrames*dim])
			continue
		}
		frac := pos - float64(lo)
		for k := 0; k < dim; k++ {
			a := values[lo*dim+k]
			b := values[(lo+1)*dim+k]
			out[i*dim+k] = a + frac*(b-a)
		}
	}
	return out
}
