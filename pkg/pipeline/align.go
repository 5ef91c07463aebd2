package pipeline

import (
	"fmt"

	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/resample"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// Canonicalize resamples every track of a bundle onto the canonical
// 10 ms grid. Bundles already on the grid are returned unchanged.
// Probability tracks downsample with max so short activity bursts
// survive; scores and logits downsample with mean.
func Canonicalize(b *evidence.Bundle) (*evidence.Bundle, error) {
	tb := timebase.Canonical()
	if b.TimeBase().Equal(tb) {
		return b, nil
	}

	var aligned []*evidence.Track
	for _, tr := range b.All() {
		agg := resample.Mean
		if tr.Semantics() == evidence.Probability {
			agg = resample.Max
		}
		res, err := resample.ToCanonical(tr, resample.Options{Aggregation: agg})
		if err != nil {
			return nil, fmt.Errorf("pipeline: align %s: %w", tr.Name(), err)
		}
		aligned = append(aligned, res)
	}

	frames := tb.FrameCountSeconds(b.TimeBase().FrameToTime(b.Frames()))
	if len(aligned) > 0 {
		frames = aligned[0].Frames()
	}
	out, err := evidence.NewBundle(tb, frames)
	if err != nil {
		return nil, err
	}
	for _, tr := range aligned {
		if err := out.Add(tr); err != nil {
			return nil, err
		}
	}
	return out, nil
}
