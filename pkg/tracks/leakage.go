package tracks

import (
	"fmt"
	"math"
	"time"

	"github.com/dyadlab/turnline/pkg/dsp"
	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// LeakageOptions controls the stereo leakage producer.
type LeakageOptions struct {
	// SpecBins pools the spectrum into this many bins before the
	// cross-channel comparison. Default 64.
	SpecBins int

	// Window is the centered analysis window per frame. Default 25ms.
	Window time.Duration
}

func (o *LeakageOptions) fill() {
	if o.SpecBins == 0 {
		o.SpecBins = 64
	}
	if o.Window == 0 {
		o.Window = 25 * time.Millisecond
	}
}

const leakEps = 1e-8

// centeredWindow extracts win samples around center, zero-padding
// outside the signal for deterministic boundary handling.
func centeredWindow(samples []float64, center, win int) []float64 {
	start := center - win/2
	end := start + win
	if start >= 0 && end <= len(samples) {
		return samples[start:end]
	}
	out := make([]float64, win)
	srcStart := max(0, start)
	srcEnd := min(len(samples), end)
	if srcEnd > srcStart {
		copy(out[srcStart-start:], samples[srcStart:srcEnd])
	}
	return out
}

// Leakage scores each frame for cross-channel bleed in a stereo
// recording: one channel dominating in energy while both carry the
// same spectral shape is the signature of a single talker leaking into
// the other microphone. The score combines channel dominance, pooled
// log-spectrum similarity and an energy gate referenced to the 90th
// percentile of total energy, each clamped to [0, 1].
func Leakage(left, right []float64, sampleRate int, tb timebase.TimeBase, opts LeakageOptions) (*evidence.Track, error) {
	opts.fill()
	if len(left) != len(right) {
		return nil, fmt.Errorf("%w: channel lengths %d and %d differ", ErrAudio, len(left), len(right))
	}
	hop, err := hopSamples(sampleRate, tb)
	if err != nil {
		return nil, err
	}
	frames := len(left) / hop
	if frames == 0 {
		return nil, fmt.Errorf("%w: shorter than one frame", ErrAudio)
	}

	energyL := rmsPerFrame(left, hop, frames)
	energyR := rmsPerFrame(right, hop, frames)

	win := int(math.Round(float64(sampleRate) * opts.Window.Seconds()))
	if win < 1 {
		win = 1
	}

	values := make([]float64, frames)
	totals := make([]float64, frames)
	for i := 0; i < frames; i++ {
		total := energyL[i] + energyR[i]
		totals[i] = total
		dominance := math.Abs(energyL[i]-energyR[i]) / (total + leakEps)
		dominance = math.Min(1, dominance)

		center := i*hop + hop/2
		specL := dsp.PooledLogSpectrum(centeredWindow(left, center, win), opts.SpecBins)
		specR := dsp.PooledLogSpectrum(centeredWindow(right, center, win), opts.SpecBins)
		sim := dsp.CosineSimilarity(specL, specR)
		sim = math.Min(1, math.Max(0, sim))

		values[i] = dominance * sim
	}

	ref := dsp.Percentile(totals, 90)
	for i := range values {
		gate := totals[i] / (ref + leakEps)
		gate = math.Min(1, math.Max(0, gate))
		v := values[i] * gate
		values[i] = math.Min(1, math.Max(0, v))
	}

	return evidence.NewTrack(NameLeakage, tb, values, evidence.Probability, nil)
}
