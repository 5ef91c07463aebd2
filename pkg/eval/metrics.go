// Package eval scores decoded state sequences against references:
// boundary detection, framewise agreement and stability metrics, plus
// a deterministic synthetic stress case and a terminal scorecard.
package eval

import (
	"math"
	"sort"
	"time"

	"github.com/dyadlab/turnline/pkg/decode"
	"github.com/dyadlab/turnline/pkg/ipu"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// BoundaryScore reports tolerance-matched boundary detection quality.
type BoundaryScore struct {
	Precision float64
	Recall    float64
	F1        float64
	TP        int
	FP        int
	FN        int
}

// BoundaryF1 matches hypothesis boundaries to reference boundaries
// within tol seconds. Each reference boundary is consumed by at most
// one hypothesis; ties go to the closest reference.
func BoundaryF1(ref, hyp []float64, tol float64) BoundaryScore {
	refSorted := append([]float64(nil), ref...)
	hypSorted := append([]float64(nil), hyp...)
	sort.Float64s(refSorted)
	sort.Float64s(hypSorted)

	used := make([]bool, len(refSorted))
	tp := 0
	for _, h := range hypSorted {
		best := -1
		bestDist := math.Inf(1)
		for i, r := range refSorted {
			if used[i] {
				continue
			}
			d := math.Abs(r - h)
			if d <= tol && d < bestDist {
				best = i
				bestDist = d
			}
		}
		if best >= 0 {
			used[best] = true
			tp++
		}
	}

	s := BoundaryScore{TP: tp, FP: len(hypSorted) - tp, FN: len(refSorted) - tp}
	if tp+s.FP > 0 {
		s.Precision = float64(tp) / float64(tp+s.FP)
	}
	if tp+s.FN > 0 {
		s.Recall = float64(tp) / float64(tp+s.FN)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// Boundaries returns the start times of every state change in seconds.
func Boundaries(states []decode.State, tb timebase.TimeBase) []float64 {
	var out []float64
	for i := 1; i < len(states); i++ {
		if states[i] != states[i-1] {
			out = append(out, tb.FrameToTime(i))
		}
	}
	return out
}

// FramewiseIoU computes intersection over union of two boolean masks.
// Two empty masks agree perfectly.
func FramewiseIoU(ref, hyp []bool) float64 {
	inter, union := 0, 0
	for i := range ref {
		r := ref[i]
		h := i < len(hyp) && hyp[i]
		if r && h {
			inter++
		}
		if r || h {
			union++
		}
	}
	for i := len(ref); i < len(hyp); i++ {
		if hyp[i] {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// SpeechMask marks the frames labeled with a speech state.
func SpeechMask(states []decode.State) []bool {
	out := make([]bool, len(states))
	for i, s := range states {
		out[i] = s.IsSpeech()
	}
	return out
}

// MicroIPUsPerMin counts units shorter than maxDur per minute of
// audio. High values indicate an unstable decode.
func MicroIPUsPerMin(units []ipu.IPU, total time.Duration, maxDur time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	count := 0
	for _, u := range units {
		if u.Duration < maxDur {
			count++
		}
	}
	return float64(count) / total.Minutes()
}

// SpeakerSwitchesPerMin counts A/B handovers per minute, ignoring
// frames labeled with any other state.
func SpeakerSwitchesPerMin(states []decode.State, tb timebase.TimeBase) float64 {
	if len(states) == 0 {
		return 0
	}
	var last decode.State = -1
	switches := 0
	for _, s := range states {
		if s != decode.A && s != decode.B {
			continue
		}
		if last >= 0 && s != last {
			switches++
		}
		last = s
	}
	total := time.Duration(len(states)) * tb.Hop()
	return float64(switches) / total.Minutes()
}
