// Package tracks turns audio samples into evidence tracks on the
// canonical frame grid: frame energy, a soft voice-activity score and
// a stereo leakage likelihood, plus piecewise-constant builders for
// scripted scenarios.
package tracks

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dyadlab/turnline/pkg/dsp"
	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// Track names produced by this package.
const (
	NameEnergyRMS    = "energy_rms"
	NameEnergySmooth = "energy_smooth"
	NameEnergySlope  = "energy_slope"
	NameVAD          = "vad"
	NameVoiced       = "voiced"
	NameLeakage      = "leakage_likelihood"
)

// DefaultSmooth is the box-filter width for smoothed energy.
const DefaultSmooth = 80 * time.Millisecond

// ErrAudio reports audio that cannot be framed.
var ErrAudio = errors.New("tracks: bad audio")

func hopSamples(sampleRate int, tb timebase.TimeBase) (int, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("%w: sample rate %d", ErrAudio, sampleRate)
	}
	hop := int(math.Round(float64(sampleRate) * tb.HopSeconds()))
	if hop <= 0 {
		return 0, fmt.Errorf("%w: hop shorter than one sample at %d Hz", ErrAudio, sampleRate)
	}
	return hop, nil
}

func rmsPerFrame(samples []float64, hop, frames int) []float64 {
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for _, s := range samples[i*hop : (i+1)*hop] {
			sum += s * s
		}
		out[i] = math.Sqrt(sum / float64(hop))
	}
	return out
}

func smoothWindow(d time.Duration, tb timebase.TimeBase) int {
	win := int(math.Round(d.Seconds() / tb.HopSeconds()))
	if win < 1 {
		win = 1
	}
	return win
}

// EnergyRMS computes per-frame root-mean-square energy. Trailing
// samples that do not fill a whole frame are dropped.
func EnergyRMS(samples []float64, sampleRate int, tb timebase.TimeBase) (*evidence.Track, error) {
	hop, err := hopSamples(sampleRate, tb)
	if err != nil {
		return nil, err
	}
	frames := len(samples) / hop
	if frames == 0 {
		return nil, fmt.Errorf("%w: shorter than one frame", ErrAudio)
	}
	rms := rmsPerFrame(samples, hop, frames)
	return evidence.NewTrack(NameEnergyRMS, tb, rms, evidence.Score, nil)
}

// EnergySmooth computes box-filtered RMS energy.
func EnergySmooth(samples []float64, sampleRate int, tb timebase.TimeBase, smooth time.Duration) (*evidence.Track, error) {
	if smooth <= 0 {
		smooth = DefaultSmooth
	}
	base, err := EnergyRMS(samples, sampleRate, tb)
	if err != nil {
		return nil, err
	}
	vals := dsp.MovingAverage(base.Values(), smoothWindow(smooth, tb))
	return evidence.NewTrack(NameEnergySmooth, tb, vals, evidence.Score, nil)
}

// EnergySlope computes the per-second derivative of smoothed energy,
// lightly smoothed again and zeroed over the final 20 ms where the
// padding of the box filter distorts the estimate.
func EnergySlope(samples []float64, sampleRate int, tb timebase.TimeBase, smooth time.Duration) (*evidence.Track, error) {
	smoothed, err := EnergySmooth(samples, sampleRate, tb, smooth)
	if err != nil {
		return nil, err
	}
	vals := smoothed.Values()
	slope := make([]float64, len(vals))
	for i := 1; i < len(vals); i++ {
		slope[i] = (vals[i] - vals[i-1]) / tb.HopSeconds()
	}
	tailWin := smoothWindow(20*time.Millisecond, tb)
	slope = dsp.MovingAverage(slope, tailWin)
	if tailWin < len(slope) {
		for i := len(slope) - tailWin; i < len(slope); i++ {
			slope[i] = 0
		}
	}
	return evidence.NewTrack(NameEnergySlope, tb, slope, evidence.Score, nil)
}
