package tracks

import (
	"math"
	"testing"
	"time"

	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

const testRate = 16000

// burst synthesizes silence with a tone between the given sample
// offsets.
func burst(n, start, end int, freq, amp float64) []float64 {
	out := make([]float64, n)
	for i := start; i < end && i < n; i++ {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func TestEnergyRMS(t *testing.T) {
	tb := timebase.Canonical()
	// 2 s of audio, tone on [0.5s, 1.5s).
	samples := burst(2*testRate, testRate/2, 3*testRate/2, 440, 0.5)

	tr, err := EnergyRMS(samples, testRate, tb)
	if err != nil {
		t.Fatalf("EnergyRMS: %v", err)
	}
	if tr.Name() != NameEnergyRMS || tr.Semantics() != evidence.Score {
		t.Fatalf("header = %s/%s", tr.Name(), tr.Semantics())
	}
	if tr.Frames() != 200 {
		t.Fatalf("Frames = %d, want 200", tr.Frames())
	}
	if tr.Value(10) != 0 {
		t.Errorf("silent frame energy = %v, want 0", tr.Value(10))
	}
	// RMS of a 0.5-amplitude sine is about 0.354.
	if got := tr.Value(100); math.Abs(got-0.3536) > 0.02 {
		t.Errorf("tone frame energy = %v, want about 0.354", got)
	}
}

func TestEnergyRMSDeterministic(t *testing.T) {
	tb := timebase.Canonical()
	samples := burst(testRate, 0, testRate, 200, 0.3)
	a, err := EnergyRMS(samples, testRate, tb)
	if err != nil {
		t.Fatalf("EnergyRMS: %v", err)
	}
	b, err := EnergyRMS(samples, testRate, tb)
	if err != nil {
		t.Fatalf("EnergyRMS: %v", err)
	}
	for i := range a.Values() {
		if a.Values()[i] != b.Values()[i] {
			t.Fatalf("frame %d differs between runs", i)
		}
	}
}

func TestEnergySmoothAndSlope(t *testing.T) {
	tb := timebase.Canonical()
	samples := burst(2*testRate, testRate/2, 3*testRate/2, 440, 0.5)

	smooth, err := EnergySmooth(samples, testRate, tb, 0)
	if err != nil {
		t.Fatalf("EnergySmooth: %v", err)
	}
	// Smoothing spreads the onset over the filter width.
	if smooth.Value(48) <= 0 {
		t.Error("smoothed energy should rise before the raw onset")
	}

	slope, err := EnergySlope(samples, testRate, tb, 0)
	if err != nil {
		t.Fatalf("EnergySlope: %v", err)
	}
	if slope.Frames() != 200 {
		t.Fatalf("Frames = %d, want 200", slope.Frames())
	}
	// Rising edge positive, falling edge negative.
	if slope.Value(50) <= 0 {
		t.Errorf("onset slope = %v, want positive", slope.Value(50))
	}
	if slope.Value(150) >= 0 {
		t.Errorf("offset slope = %v, want negative", slope.Value(150))
	}
	// Padding guard zeroes the tail.
	if slope.Value(199) != 0 {
		t.Errorf("tail slope = %v, want 0", slope.Value(199))
	}
}

func TestEnergyTooShort(t *testing.T) {
	tb := timebase.Canonical()
	if _, err := EnergyRMS(make([]float64, 10), testRate, tb); err == nil {
		t.Fatal("sub-frame audio should fail")
	}
}

func TestSoftVAD(t *testing.T) {
	tb := timebase.Canonical()
	samples := burst(2*testRate, testRate/2, 3*testRate/2, 440, 0.5)
	tr, err := SoftVAD(samples, testRate, tb, VADOptions{})
	if err != nil {
		t.Fatalf("SoftVAD: %v", err)
	}
	if tr.Semantics() != evidence.Probability {
		t.Fatalf("semantics = %s", tr.Semantics())
	}
	for i := 0; i < tr.Frames(); i++ {
		if v := tr.Value(i); v < 0 || v > 1 {
			t.Fatalf("frame %d = %v, outside [0,1]", i, v)
		}
	}
	if tr.Value(100) < 0.8 {
		t.Errorf("tone frame = %v, want high", tr.Value(100))
	}
	if tr.Value(10) > 0.2 {
		t.Errorf("silent frame = %v, want low", tr.Value(10))
	}
}

func TestVoiced(t *testing.T) {
	tb := timebase.Canonical()
	samples := burst(2*testRate, testRate/2, 3*testRate/2, 440, 0.5)
	tr, err := Voiced(samples, testRate, tb, VADOptions{})
	if err != nil {
		t.Fatalf("Voiced: %v", err)
	}
	if tr.Name() != NameVoiced || tr.Semantics() != evidence.Probability {
		t.Fatalf("header = %s/%s", tr.Name(), tr.Semantics())
	}
	vad, err := SoftVAD(samples, testRate, tb, VADOptions{})
	if err != nil {
		t.Fatalf("SoftVAD: %v", err)
	}
	if tr.Frames() != vad.Frames() {
		t.Fatalf("Frames = %d, want %d", tr.Frames(), vad.Frames())
	}
	for i := range tr.Values() {
		if tr.Values()[i] != vad.Values()[i] {
			t.Fatalf("frame %d diverges from the activity score", i)
		}
	}
}

func TestLeakageDominantChannel(t *testing.T) {
	tb := timebase.Canonical()
	// Same tone on both channels, right at one tenth the level:
	// dominant left with matching spectra reads as leakage.
	n := testRate
	left := burst(n, 0, n, 300, 0.6)
	right := make([]float64, n)
	for i := range right {
		right[i] = left[i] * 0.1
	}

	tr, err := Leakage(left, right, testRate, tb, LeakageOptions{})
	if err != nil {
		t.Fatalf("Leakage: %v", err)
	}
	mean := 0.0
	for i := 0; i < tr.Frames(); i++ {
		mean += tr.Value(i)
	}
	mean /= float64(tr.Frames())
	if mean < 0.5 {
		t.Errorf("mean leakage = %v, want high for bleed-like stereo", mean)
	}
}

func TestLeakageIndependentChannels(t *testing.T) {
	tb := timebase.Canonical()
	// Different tones at similar levels: no dominance, low leakage.
	n := testRate
	left := burst(n, 0, n, 300, 0.5)
	right := burst(n, 0, n, 1100, 0.5)

	tr, err := Leakage(left, right, testRate, tb, LeakageOptions{})
	if err != nil {
		t.Fatalf("Leakage: %v", err)
	}
	mean := 0.0
	for i := 0; i < tr.Frames(); i++ {
		mean += tr.Value(i)
	}
	mean /= float64(tr.Frames())
	if mean > 0.3 {
		t.Errorf("mean leakage = %v, want low for independent channels", mean)
	}
}

func TestLeakageRejectsRaggedChannels(t *testing.T) {
	tb := timebase.Canonical()
	if _, err := Leakage(make([]float64, 1000), make([]float64, 999), testRate, tb, LeakageOptions{}); err == nil {
		t.Fatal("ragged channels should fail")
	}
}

func TestSyntheticBuilders(t *testing.T) {
	tb := timebase.Canonical()
	vad, err := SyntheticVAD(tb, 100, []Region{{20, 60}})
	if err != nil {
		t.Fatalf("SyntheticVAD: %v", err)
	}
	if vad.Value(0) != 0.05 || vad.Value(20) != 0.95 || vad.Value(59) != 0.95 || vad.Value(60) != 0.05 {
		t.Fatalf("region boundaries wrong: %v %v %v %v",
			vad.Value(0), vad.Value(20), vad.Value(59), vad.Value(60))
	}

	leak, err := SyntheticLeak(tb, 100, []Region{{-5, 200}})
	if err != nil {
		t.Fatalf("SyntheticLeak: %v", err)
	}
	if leak.Value(0) != 0.7 || leak.Value(99) != 0.7 {
		t.Fatal("out-of-range regions must clamp to the track")
	}
}

func TestSmoothWindowFloor(t *testing.T) {
	tb := timebase.Canonical()
	if got := smoothWindow(time.Millisecond, tb); got != 1 {
		t.Fatalf("smoothWindow(1ms) = %d, want 1", got)
	}
}
