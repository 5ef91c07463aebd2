package decode

import (
	"fmt"
	"math"

	"github.com/dyadlab/turnline/pkg/evidence"
)

// Track names recognized by the fusion rules.
const (
	TrackVAD     = "vad"
	TrackVoiced  = "voiced"
	TrackDiarA   = "diar_a"
	TrackDiarB   = "diar_b"
	TrackLeakage = "leakage_likelihood"
	TrackLeak    = "leak"
	TrackEnergy  = "energy_smooth"
	TrackPriorAB = "prior_ab"
)

// logEps bounds probabilities away from 0 and 1 before the log-odds map.
const logEps = 1e-6

// contribution is one term of a fusion rule: the per-frame track value,
// scaled by coeff, is added to the named state's score.
type contribution struct {
	state State
	coeff float64
}

// fusionRules maps each recognized track name to its declared, fixed
// contribution rule. Probability and logit tracks enter on the log-odds
// scale; score tracks enter raw. The rules are linear, so summing them is
// associative and commutative: the fused result cannot depend on the order
// tracks were added to the bundle, and a missing track is exactly a track
// with weight zero.
var fusionRules = map[string][]contribution{
	// Voice activity supports every speech state and opposes silence.
	TrackVAD: {
		{Sil, -1.0},
		{A, 0.5}, {B, 0.5}, {Ovl, 0.5},
	},
	// Voicing is a weaker duplicate of VAD from an independent source.
	TrackVoiced: {
		{Sil, -0.5},
		{A, 0.25}, {B, 0.25}, {Ovl, 0.25},
	},
	// Per-speaker attribution; overlap benefits from both.
	TrackDiarA: {{A, 0.5}, {Ovl, 0.25}},
	TrackDiarB: {{B, 0.5}, {Ovl, 0.25}},
	// Leakage likelihood supports LEAK and opposes turn initiation by A/B.
	// It never touches SIL directly.
	TrackLeakage: {
		{Leak, 1.0},
		{A, -0.25}, {B, -0.25},
	},
	// Smoothed energy is an unnormalized speech score.
	TrackEnergy: {
		{Sil, -0.5},
		{A, 0.25}, {B, 0.25}, {Ovl, 0.25},
	},
}

func init() {
	// Short alias used by synthetic bundles.
	fusionRules[TrackLeak] = fusionRules[TrackLeakage]
}

// RecognizedTracks reports whether the fusion rules know the track name.
// Unrecognized tracks are carried in bundles but contribute nothing;
// the pipeline's diagnostic tracks (energy_rms, energy_slope) ride
// along this way for export and inspection.
func RecognizedTracks(name string) bool {
	if name == TrackPriorAB {
		return true
	}
	_, ok := fusionRules[name]
	return ok
}

// Fuse converts a bundle into per-frame, per-state scores (higher is
// better). Only tracks actually present contribute; the result over an empty
// bundle is an all-zero matrix, which the decoder must still handle.
//
// Fuse is stateless and deterministic: tracks are visited in sorted name
// order so the floating-point accumulation order is fixed.
func Fuse(bundle *evidence.Bundle, cfg *Config) ([][]float64, error) {
	frames := bundle.Frames()
	scores := make([][]float64, frames)
	backing := make([]float64, frames*NumStates)
	for t := range scores {
		scores[t] = backing[t*NumStates : (t+1)*NumStates]
	}

	for name, tr := range bundle.All() {
		w := cfg.weight(name)
		if w == 0 {
			continue
		}
		if name == TrackPriorAB {
			if err := fusePrior(scores, tr, w); err != nil {
				return nil, err
			}
			continue
		}
		rule, ok := fusionRules[name]
		if !ok {
			continue
		}
		if err := fuseRule(scores, tr, rule, w); err != nil {
			return nil, err
		}
	}
	return scores, nil
}

func fuseRule(scores [][]float64, tr *evidence.Track, rule []contribution, w float64) error {
	if tr.Dim() != 1 {
		return fmt.Errorf("decode: track %q must be single-dimensional for fusion, got dim %d: %w",
			tr.Name(), tr.Dim(), evidence.ErrBundleShape)
	}
	for t := 0; t < tr.Frames(); t++ {
		x, err := trackValue(tr, t)
		if err != nil {
			return err
		}
		wc := w * tr.ConfidenceAt(t)
		for _, c := range rule {
			scores[t][c.state] += wc * c.coeff * x
		}
	}
	return nil
}

// fusePrior applies the two-column A/B prior offsets.
func fusePrior(scores [][]float64, tr *evidence.Track, w float64) error {
	if tr.Semantics() != evidence.Score {
		return fmt.Errorf("decode: track %q must use score semantics, got %q: %w",
			tr.Name(), tr.Semantics(), evidence.ErrValueRange)
	}
	if tr.Dim() != 2 {
		return fmt.Errorf("decode: track %q must have dim 2 (A and B offsets), got %d: %w",
			tr.Name(), tr.Dim(), evidence.ErrBundleShape)
	}
	for t := 0; t < tr.Frames(); t++ {
		wc := w * tr.ConfidenceAt(t)
		scores[t][A] += wc * tr.At(t, 0)
		scores[t][B] += wc * tr.At(t, 1)
	}
	return nil
}

// trackValue maps a frame value onto the fusion scale: probabilities and
// logits become log-odds, scores pass through.
func trackValue(tr *evidence.Track, t int) (float64, error) {
	v := tr.Value(t)
	switch tr.Semantics() {
	case evidence.Probability:
		return logOdds(v), nil
	case evidence.Logit:
		return v, nil
	case evidence.Score:
		return v, nil
	default:
		return 0, fmt.Errorf("decode: track %q has unknown semantics %q", tr.Name(), tr.Semantics())
	}
}

func logOdds(p float64) float64 {
	if p < logEps {
		p = logEps
	} else if p > 1-logEps {
		p = 1 - logEps
	}
	return math.Log(p / (1 - p))
}
