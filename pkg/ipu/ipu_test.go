package ipu

import (
	"math"
	"testing"
	"time"

	"github.com/dyadlab/turnline/pkg/decode"
	"github.com/dyadlab/turnline/pkg/timebase"
)

func seq(blocks ...struct {
	s decode.State
	n int
}) []decode.State {
	var out []decode.State
	for _, b := range blocks {
		for i := 0; i < b.n; i++ {
			out = append(out, b.s)
		}
	}
	return out
}

func block(s decode.State, n int) struct {
	s decode.State
	n int
} {
	return struct {
		s decode.State
		n int
	}{s, n}
}

func TestExtract(t *testing.T) {
	tb := timebase.Canonical()
	states := seq(
		block(decode.Sil, 20),
		block(decode.A, 50),
		block(decode.Sil, 15),
		block(decode.B, 8), // below the 100 ms floor, dropped
		block(decode.Sil, 10),
		block(decode.Ovl, 30),
	)

	units := Extract(states, tb, Options{MinDuration: 100 * time.Millisecond})
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2: %+v", len(units), units)
	}

	a := units[0]
	if a.Label != decode.A || a.StartFrame != 20 || a.EndFrame != 70 {
		t.Errorf("first unit = %+v, want A [20,70)", a)
	}
	if a.Duration != 500*time.Millisecond {
		t.Errorf("first unit duration = %v, want 500ms", a.Duration)
	}
	if math.Abs(a.Start-0.20) > 1e-9 || math.Abs(a.End-0.70) > 1e-9 {
		t.Errorf("first unit times = [%v,%v), want [0.20,0.70)", a.Start, a.End)
	}
	if a.MeanConfidence != 1 {
		t.Errorf("MeanConfidence without input = %v, want 1", a.MeanConfidence)
	}

	ovl := units[1]
	if ovl.Label != decode.Ovl || ovl.StartFrame != 103 || ovl.EndFrame != 133 {
		t.Errorf("second unit = %+v, want OVL [103,133)", ovl)
	}
}

func TestExtractEmpty(t *testing.T) {
	tb := timebase.Canonical()
	if got := Extract(nil, tb, Options{}); got != nil {
		t.Errorf("Extract(nil) = %v, want nil", got)
	}
	silence := seq(block(decode.Sil, 100))
	if got := Extract(silence, tb, Options{}); got != nil {
		t.Errorf("Extract(all silence) = %v, want nil", got)
	}
	leakOnly := seq(block(decode.Leak, 100))
	if got := Extract(leakOnly, tb, Options{}); got != nil {
		t.Errorf("Extract(all leak) = %v, want nil", got)
	}
}

func TestAfterLeakFlag(t *testing.T) {
	tb := timebase.Canonical()
	states := seq(
		block(decode.Leak, 40),
		block(decode.Ovl, 30),
		block(decode.Sil, 20),
		block(decode.A, 30),
	)
	units := Extract(states, tb, Options{MinDuration: 100 * time.Millisecond})
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if !units[0].AfterLeak {
		t.Error("unit following a leak run must be flagged AfterLeak")
	}
	if units[1].AfterLeak {
		t.Error("unit following silence must not be flagged AfterLeak")
	}
}

func TestShortBoundaryRunsAreDropped(t *testing.T) {
	tb := timebase.Canonical()
	opts := Options{MinDuration: 150 * time.Millisecond}

	// A 50 ms fragment clipped at the start folds into context.
	states := seq(
		block(decode.A, 5),
		block(decode.Sil, 95),
	)
	if got := Extract(states, tb, opts); len(got) != 0 {
		t.Fatalf("leading fragment: got %d units, want 0: %+v", len(got), got)
	}

	// Same at the end, and an interior short run for contrast.
	states = seq(
		block(decode.Sil, 50),
		block(decode.B, 5),
		block(decode.Sil, 50),
		block(decode.A, 20),
		block(decode.Sil, 30),
		block(decode.A, 5),
	)
	units := Extract(states, tb, opts)
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1: %+v", len(units), units)
	}
	if units[0].Label != decode.A || units[0].Frames() != 20 {
		t.Fatalf("surviving unit = %+v, want the 200 ms A run", units[0])
	}
}

func TestMeanConfidence(t *testing.T) {
	tb := timebase.Canonical()
	states := seq(block(decode.A, 4))
	conf := []float64{1, 0.5, 0.5, 0}
	units := Extract(states, tb, Options{Confidence: conf})
	if len(units) != 1 {
		t.Fatalf("got %d units, want 1", len(units))
	}
	if got := units[0].MeanConfidence; math.Abs(got-0.5) > 1e-12 {
		t.Errorf("MeanConfidence = %v, want 0.5", got)
	}
}
