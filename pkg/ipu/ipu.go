// Package ipu extracts inter-pausal units from decoded conversational
// state sequences.
//
// An IPU is a maximal run of a single speech state (A, B or OVL) that
// lasts at least a configurable minimum duration. Runs shorter than the
// minimum are dropped, including runs clipped by the start or end of
// the sequence. Units that start right after a leak run are kept but
// flagged, so downstream consumers can decide whether to trust them.
package ipu

import (
	"time"

	"github.com/dyadlab/turnline/pkg/decode"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// IPU is one inter-pausal unit on the half-open frame interval
// [StartFrame, EndFrame).
type IPU struct {
	Label      decode.State  `yaml:"label" json:"label" msgpack:"label"`
	StartFrame int           `yaml:"start_frame" json:"start_frame" msgpack:"start_frame"`
	EndFrame   int           `yaml:"end_frame" json:"end_frame" msgpack:"end_frame"`
	Start      float64       `yaml:"start" json:"start" msgpack:"start"`
	End        float64       `yaml:"end" json:"end" msgpack:"end"`
	Duration   time.Duration `yaml:"duration" json:"duration" msgpack:"duration"`

	// MeanConfidence averages the per-frame confidence supplied to
	// Extract over the unit, or 1 when none was supplied.
	MeanConfidence float64 `yaml:"mean_confidence" json:"mean_confidence" msgpack:"mean_confidence"`

	// AfterLeak marks units whose first frame directly follows a run
	// of LEAK frames.
	AfterLeak bool `yaml:"after_leak" json:"after_leak" msgpack:"after_leak"`
}

// Frames reports the unit length in frames.
func (u IPU) Frames() int { return u.EndFrame - u.StartFrame }

// Options controls extraction.
type Options struct {
	// MinDuration drops speech runs shorter than this, boundary runs
	// included: a fragment clipped by the start or end of the
	// sequence folds into context rather than becoming a unit. Zero
	// keeps every run.
	MinDuration time.Duration

	// Confidence optionally supplies one value per frame, used for
	// the MeanConfidence of each unit. Length must match the state
	// sequence when set.
	Confidence []float64
}

type run struct {
	state      decode.State
	start, end int
}

func rle(states []decode.State) []run {
	var out []run
	for i, s := range states {
		if len(out) > 0 && out[len(out)-1].state == s {
			out[len(out)-1].end = i + 1
			continue
		}
		out = append(out, run{state: s, start: i, end: i + 1})
	}
	return out
}

// Extract converts a decoded state sequence into ordered,
// non-overlapping inter-pausal units. It never fails: an empty or
// all-silence sequence yields no units.
func Extract(states []decode.State, tb timebase.TimeBase, opts Options) []IPU {
	if len(states) == 0 {
		return nil
	}
	minFrames := tb.FrameCount(opts.MinDuration)

	runs := rle(states)
	var units []IPU
	for i, r := range runs {
		if !r.state.IsSpeech() {
			continue
		}
		n := r.end - r.start
		if n < minFrames {
			continue
		}
		u := IPU{
			Label:      r.state,
			StartFrame: r.start,
			EndFrame:   r.end,
			Start:      tb.FrameToTime(r.start),
			End:        tb.FrameToTime(r.end),
			Duration:   time.Duration(n) * tb.Hop(),
			AfterLeak:  i > 0 && runs[i-1].state == decode.Leak,
		}
		u.MeanConfidence = meanConfidence(opts.Confidence, r.start, r.end)
		units = append(units, u)
	}
	return units
}

func meanConfidence(conf []float64, start, end int) float64 {
	if len(conf) < end {
		return 1
	}
	sum := 0.0
	for _, c := range conf[start:end] {
		sum += c
	}
	return sum / float64(end-start)
}
