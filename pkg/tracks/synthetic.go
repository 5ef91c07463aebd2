package tracks

import (
	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// Region is a half-open frame interval [Start, End).
type Region struct {
	Start, End int
}

// PiecewiseConstant builds a track that holds on inside the given
// regions and off elsewhere. Used for scripted scenarios and tests.
func PiecewiseConstant(name string, tb timebase.TimeBase, frames int, regions []Region, on, off float64, sem evidence.Semantics) (*evidence.Track, error) {
	values := make([]float64, frames)
	for i := range values {
		values[i] = off
	}
	for _, r := range regions {
		start := max(0, r.Start)
		end := min(frames, r.End)
		for i := start; i < end; i++ {
			values[i] = on
		}
	}
	return evidence.NewTrack(name, tb, values, sem, nil)
}

// SyntheticVAD builds a scripted voice-activity track with probability
// 0.95 in speech regions and 0.05 elsewhere.
func SyntheticVAD(tb timebase.TimeBase, frames int, speech []Region) (*evidence.Track, error) {
	return PiecewiseConstant(NameVAD, tb, frames, speech, 0.95, 0.05, evidence.Probability)
}

// SyntheticDiar builds a scripted per-speaker attribution track with
// probability 0.9 in the given regions and 0.1 elsewhere.
func SyntheticDiar(name string, tb timebase.TimeBase, frames int, regions []Region) (*evidence.Track, error) {
	return PiecewiseConstant(name, tb, frames, regions, 0.9, 0.1, evidence.Probability)
}

// SyntheticLeak builds a scripted leakage track with probability 0.7
// in the given regions and 0.05 elsewhere.
func SyntheticLeak(tb timebase.TimeBase, frames int, regions []Region) (*evidence.Track, error) {
	return PiecewiseConstant(NameLeakage, tb, frames, regions, 0.7, 0.05, evidence.Probability)
}
