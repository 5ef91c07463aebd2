package eval

import (
	"math"

	"github.com/dyadlab/turnline/pkg/decode"
	"github.com/dyadlab/turnline/pkg/wav"
)

// SampleRate of generated synthetic cases.
const SampleRate = 16000

// Case pairs synthetic stereo audio with its reference labeling on
// the canonical frame grid.
type Case struct {
	ID    string
	Audio *wav.Audio
	Ref   []decode.State
}

func tone(freq float64, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/SampleRate)
	}
	return out
}

func scaled(x []float64, k float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * k
	}
	return out
}

func concat(parts ...[]float64) []float64 {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]float64, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// LeakageStress builds the leakage stress scenario: seven half-second
// segments alternating silence, speaker A's tone, a low-level copy of
// A's tone bleeding into an otherwise quiet stretch, and speaker B's
// tone present on both channels. The reference labels 50 frames per
// segment as SIL, A, SIL, LEAK, SIL, B, SIL.
func LeakageStress() *Case {
	seg := SampleRate / 2
	silence := make([]float64, seg)
	toneA := tone(220, seg, 0.06)
	toneB := tone(330, seg, 0.06)
	bleed := tone(220, seg, 0.05)

	left := concat(silence, toneA, silence, bleed, silence, toneB, silence)
	right := concat(silence, scaled(toneA, 0.03), silence, scaled(bleed, 0.01), silence, toneB, silence)

	var ref []decode.State
	for _, s := range []decode.State{
		decode.Sil, decode.A, decode.Sil, decode.Leak, decode.Sil, decode.B, decode.Sil,
	} {
		for i := 0; i < 50; i++ {
			ref = append(ref, s)
		}
	}

	return &Case{
		ID:    "leakage_stress",
		Audio: &wav.Audio{SampleRate: SampleRate, Channels: [][]float64{left, right}},
		Ref:   ref,
	}
}

// WriteWAV persists the case audio as a stereo PCM16 file.
func (c *Case) WriteWAV(path string) error {
	return wav.WriteFile(path, c.Audio)
}
