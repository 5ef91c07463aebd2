package tracks

import (
	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// Voiced scores per-frame voicing probability. Without pitch analysis
// the best available proxy is the energy-based voice-activity score,
// republished under its own name so fusion can weight the two cues
// independently.
func Voiced(samples []float64, sampleRate int, tb timebase.TimeBase, opts VADOptions) (*evidence.Track, error) {
	vad, err := SoftVAD(samples, sampleRate, tb, opts)
	if err != nil {
		return nil, err
	}
	return vad.WithName(NameVoiced), nil
}
