package tracks

import (
	"fmt"
	"math"

	"github.com/dyadlab/turnline/pkg/dsp"
	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// VADOptions controls the soft voice-activity producer.
type VADOptions struct {
	// NoisePercentile estimates the noise floor from frame energies
	// in dB. Default 10.
	NoisePercentile float64

	// SpeechPercentile estimates the speech reference level. Default
	// 90.
	SpeechPercentile float64

	// BlurFrames is the box-filter width applied to the raw scores so
	// hard on/off decisions become fractional near boundaries.
	// Default 9.
	BlurFrames int
}

func (o *VADOptions) fill() {
	if o.NoisePercentile == 0 {
		o.NoisePercentile = 10
	}
	if o.SpeechPercentile == 0 {
		o.SpeechPercentile = 90
	}
	if o.BlurFrames == 0 {
		o.BlurFrames = 9
	}
}

const dbFloor = -120.0

func frameEnergyDB(rms []float64) []float64 {
	out := make([]float64, len(rms))
	for i, v := range rms {
		if v <= 0 {
			out[i] = dbFloor
			continue
		}
		db := 20 * math.Log10(v)
		if db < dbFloor {
			db = dbFloor
		}
		out[i] = db
	}
	return out
}

// SoftVAD scores each frame's speech likelihood from its energy
// relative to an adaptive noise floor. Frames at the noise floor score
// near 0, frames at the speech reference level near 1, with a smooth
// sigmoid between; a short temporal blur softens the transitions.
func SoftVAD(samples []float64, sampleRate int, tb timebase.TimeBase, opts VADOptions) (*evidence.Track, error) {
	opts.fill()
	hop, err := hopSamples(sampleRate, tb)
	if err != nil {
		return nil, err
	}
	frames := len(samples) / hop
	if frames == 0 {
		return nil, fmt.Errorf("%w: shorter than one frame", ErrAudio)
	}

	db := frameEnergyDB(rmsPerFrame(samples, hop, frames))
	noise := dsp.Percentile(db, opts.NoisePercentile)
	speech := dsp.Percentile(db, opts.SpeechPercentile)
	span := speech - noise
	if span < 6 {
		span = 6 // silence-only audio: keep the sigmoid shallow
	}

	values := make([]float64, frames)
	for i, v := range db {
		// Midpoint halfway between floor and reference, scaled so the
		// reference maps to ~0.95.
		x := (v - (noise + span/2)) / (span / 6)
		values[i] = 1 / (1 + math.Exp(-x))
	}
	values = dsp.MovingAverage(values, opts.BlurFrames)
	for i, v := range values {
		values[i] = math.Min(1, math.Max(0, v))
	}
	return evidence.NewTrack(NameVAD, tb, values, evidence.Probability, nil)
}
