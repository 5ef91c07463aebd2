package decode

import (
	"errors"
	"math"
	"testing"

	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

func defaultTestConfig() Config {
	return DefaultParams().Config(timebase.Canonical())
}

func runs(states []State) []State {
	var out []State
	for i, s := range states {
		if i == 0 || s != states[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func runLengths(states []State) map[State][]int {
	out := make(map[State][]int)
	cur, n := states[0], 1
	for _, s := range states[1:] {
		if s == cur {
			n++
			continue
		}
		out[cur] = append(out[cur], n)
		cur, n = s, 1
	}
	out[cur] = append(out[cur], n)
	return out
}

func TestConfigValidation(t *testing.T) {
	cfg := defaultTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := defaultTestConfig()
	bad.MinDuration[A] = -1
	if err := bad.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("negative min duration: err = %v, want ErrConfig", err)
	}

	bad = defaultTestConfig()
	bad.Transition[Sil][A] = math.NaN()
	if err := bad.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("NaN cost: err = %v, want ErrConfig", err)
	}

	bad = defaultTestConfig()
	bad.Transition[A][Sil] = -1 // cheaper than staying: no persistence bonus
	if err := bad.Validate(); !errors.Is(err, ErrConfig) {
		t.Fatalf("missing persistence bonus: err = %v, want ErrConfig", err)
	}
}

func TestEmptyBundleDecodesToAllSilence(t *testing.T) {
	bundle, err := evidence.NewBundle(timebase.Canonical(), 300)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	cfg := defaultTestConfig()
	res, err := Decode(bundle, &cfg, Options{})
	if err != nil {
		t.Fatalf("Decode over empty bundle must not fail: %v", err)
	}
	if len(res.States) != 300 {
		t.Fatalf("len(States) = %d, want 300", len(res.States))
	}
	for i, s := range res.States {
		if s != Sil {
			t.Fatalf("frame %d = %s, want SIL", i, s)
		}
	}
}

func TestDecodeDeterminism(t *testing.T) {
	// Fixed pseudo-random scores; two decodes must match exactly.
	scores := make([][]float64, 200)
	seed := uint64(0x9E3779B97F4A7C15)
	for t2 := range scores {
		row := make([]float64, NumStates)
		for s := range row {
			seed ^= seed << 13
			seed ^= seed >> 7
			seed ^= seed << 17
			row[s] = float64(int64(seed%2000)-1000) / 250.0
		}
		scores[t2] = row
	}
	cfg := defaultTestConfig()
	first, err := DecodeScores(scores, &cfg, Options{})
	if err != nil {
		t.Fatalf("first decode: %v", err)
	}
	second, err := DecodeScores(scores, &cfg, Options{})
	if err != nil {
		t.Fatalf("second decode: %v", err)
	}
	for i := range first.States {
		if first.States[i] != second.States[i] {
			t.Fatalf("decode not deterministic at frame %d: %s vs %s",
				i, first.States[i], second.States[i])
		}
	}
}

func TestMinimumDurationsHold(t *testing.T) {
	scores := make([][]float64, 500)
	seed := uint64(42)
	for t2 := range scores {
		row := make([]float64, NumStates)
		for s := range row {
			seed = seed*6364136223846793005 + 1442695040888963407
			row[s] = float64(int64(seed>>33)%400-200) / 40.0
		}
		scores[t2] = row
	}
	cfg := defaultTestConfig()
	res, err := DecodeScores(scores, &cfg, Options{})
	if err != nil {
		t.Fatalf("DecodeScores: %v", err)
	}

	lengths := runLengths(res.States)
	for s, runs := range lengths {
		minDur := cfg.MinDuration[s]
		// Boundary runs may be truncated; interior runs must respect the
		// floor.
		for i, n := range runs {
			first := i == 0 && res.States[0] == s
			last := i == len(runs)-1 && res.States[len(res.States)-1] == s
			if first || last {
				continue
			}
			if n < minDur {
				t.Errorf("interior %s run of %d frames violates floor %d", s, n, minDur)
			}
		}
	}
}

func TestLeakNeverInitiatesSpeech(t *testing.T) {
	// Strong LEAK evidence followed by strong speaker evidence: the path
	// must route through SIL or OVL, never LEAK->A directly.
	scores := make([][]float64, 120)
	for t2 := range scores {
		row := make([]float64, NumStates)
		switch {
		case t2 < 60:
			row[Leak] = 8
		default:
			row[A] = 8
		}
		scores[t2] = row
	}
	cfg := defaultTestConfig()
	res, err := DecodeScores(scores, &cfg, Options{})
	if err != nil {
		t.Fatalf("DecodeScores: %v", err)
	}
	for i := 1; i < len(res.States); i++ {
		prev, cur := res.States[i-1], res.States[i]
		if prev == Leak && (cur == A || cur == B) {
			t.Fatalf("forbidden transition LEAK->%s at frame %d", cur, i)
		}
	}
}

func TestVADPulseProducesSingleRun(t *testing.T) {
	// VAD probability 1.0 on [50,150), 0 elsewhere: one coherent speech
	// run, attributed to A by the fixed tie-break priority.
	tb := timebase.Canonical()
	values := make([]float64, 200)
	for i := 50; i < 150; i++ {
		values[i] = 1
	}
	tr, err := evidence.NewTrack(TrackVAD, tb, values, evidence.Probability, nil)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	bundle, err := evidence.NewBundle(tb, 200)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	if err := bundle.Add(tr); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cfg := defaultTestConfig()
	res, err := Decode(bundle, &cfg, Options{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	seq := runs(res.States)
	want := []State{Sil, A, Sil}
	if len(seq) != len(want) {
		t.Fatalf("run sequence = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("run sequence = %v, want %v", seq, want)
		}
	}

	// The speech run should cover approximately [50,150).
	start, end := -1, -1
	for i, s := range res.States {
		if s == A {
			if start < 0 {
				start = i
			}
			end = i + 1
		}
	}
	if start < 45 || start > 55 || end < 145 || end > 155 {
		t.Errorf("speech run [%d,%d), want approximately [50,150)", start, end)
	}
}

func TestAlternatingEvidenceCollapses(t *testing.T) {
	// Alternating strong A/B evidence every 5 frames (50 ms) must not
	// produce runs shorter than the 200 ms floor.
	scores := make([][]float64, 400)
	for t2 := range scores {
		row := make([]float64, NumStates)
		if (t2/5)%2 == 0 {
			row[A] = 4
		} else {
			row[B] = 4
		}
		scores[t2] = row
	}
	cfg := defaultTestConfig()
	res, err := DecodeScores(scores, &cfg, Options{})
	if err != nil {
		t.Fatalf("DecodeScores: %v", err)
	}
	lengths := runLengths(res.States)
	for _, s := range []State{A, B} {
		for i, n := range lengths[s] {
			last := i == len(lengths[s])-1
			if !last && n < cfg.MinDuration[s] {
				t.Errorf("%s run of %d frames under alternating evidence, floor is %d",
					s, n, cfg.MinDuration[s])
			}
		}
	}
}

func TestMissingTrackNeverRaises(t *testing.T) {
	tb := timebase.Canonical()
	frames := 250
	bundle, err := evidence.NewBundle(tb, frames)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	vadVals := make([]float64, frames)
	diarVals := make([]float64, frames)
	for i := 60; i < 180; i++ {
		vadVals[i] = 0.95
		diarVals[i] = 0.9
	}
	for _, tc := range []struct {
		name string
		vals []float64
	}{
		{TrackVAD, vadVals},
		{TrackDiarA, diarVals},
	} {
		tr, err := evidence.NewTrack(tc.name, tb, tc.vals, evidence.Probability, nil)
		if err != nil {
			t.Fatalf("NewTrack(%q): %v", tc.name, err)
		}
		if err := bundle.Add(tr); err != nil {
			t.Fatalf("Add(%q): %v", tc.name, err)
		}
	}

	cfg := defaultTestConfig()
	for _, name := range bundle.Names() {
		res, err := Decode(bundle.Without(name), &cfg, Options{})
		if err != nil {
			t.Fatalf("Decode without %q: %v", name, err)
		}
		if len(res.States) != frames {
			t.Fatalf("decode without %q: %d states, want %d", name, len(res.States), frames)
		}
	}
}

func TestMissingTrackEqualsZeroWeight(t *testing.T) {
	tb := timebase.Canonical()
	frames := 250
	vadVals := make([]float64, frames)
	leakVals := make([]float64, frames)
	for i := 30; i < 120; i++ {
		vadVals[i] = 0.95
	}
	for i := 150; i < 200; i++ {
		leakVals[i] = 0.8
	}

	withLeak, err := evidence.NewBundle(tb, frames)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	vad, err := evidence.NewTrack(TrackVAD, tb, vadVals, evidence.Probability, nil)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	leak, err := evidence.NewTrack(TrackLeak, tb, leakVals, evidence.Probability, nil)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	if err := withLeak.Add(vad); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := withLeak.Add(leak); err != nil {
		t.Fatalf("Add: %v", err)
	}

	zeroed := defaultTestConfig()
	zeroed.Weights = map[string]float64{TrackLeak: 0}
	zeroRes, err := Decode(withLeak, &zeroed, Options{})
	if err != nil {
		t.Fatalf("Decode with zero weight: %v", err)
	}

	cfg := defaultTestConfig()
	absentRes, err := Decode(withLeak.Without(TrackLeak), &cfg, Options{})
	if err != nil {
		t.Fatalf("Decode with absent track: %v", err)
	}

	for i := range zeroRes.States {
		if zeroRes.States[i] != absentRes.States[i] {
			t.Fatalf("zero-weight and absent decodes differ at frame %d: %s vs %s",
				i, zeroRes.States[i], absentRes.States[i])
		}
	}
}

func TestFusionOrderIndependence(t *testing.T) {
	tb := timebase.Canonical()
	frames := 100
	mk := func(name string, on float64) *evidence.Track {
		vals := make([]float64, frames)
		for i := 20; i < 80; i++ {
			vals[i] = on
		}
		tr, err := evidence.NewTrack(name, tb, vals, evidence.Probability, nil)
		if err != nil {
			t.Fatalf("NewTrack(%q): %v", name, err)
		}
		return tr
	}

	cfg := defaultTestConfig()
	orders := [][]*evidence.Track{
		{mk(TrackVAD, 0.9), mk(TrackDiarA, 0.8), mk(TrackDiarB, 0.3)},
		{mk(TrackDiarB, 0.3), mk(TrackVAD, 0.9), mk(TrackDiarA, 0.8)},
	}
	var fused [][][]float64
	for _, tracks := range orders {
		b, err := evidence.NewBundle(tb, frames)
		if err != nil {
			t.Fatalf("NewBundle: %v", err)
		}
		for _, tr := range tracks {
			if err := b.Add(tr); err != nil {
				t.Fatalf("Add: %v", err)
			}
		}
		scores, err := Fuse(b, &cfg)
		if err != nil {
			t.Fatalf("Fuse: %v", err)
		}
		fused = append(fused, scores)
	}
	for t2 := range fused[0] {
		for s := range fused[0][t2] {
			if fused[0][t2][s] != fused[1][t2][s] {
				t.Fatalf("fusion depends on insertion order at frame %d state %d", t2, s)
			}
		}
	}
}

func TestConfidenceScalesContribution(t *testing.T) {
	tb := timebase.Canonical()
	frames := 10
	vals := make([]float64, frames)
	conf := make([]float64, frames)
	for i := range vals {
		vals[i] = 0.9
		conf[i] = 0.5
	}
	full, err := evidence.NewTrack(TrackVAD, tb, vals, evidence.Probability, nil)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	half, err := evidence.NewTrack(TrackVAD, tb, vals, evidence.Probability,
		&evidence.TrackOptions{Confidence: conf})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}

	cfg := defaultTestConfig()
	for i, tr := range []*evidence.Track{full, half} {
		b, err := evidence.NewBundle(tb, frames)
		if err != nil {
			t.Fatalf("NewBundle: %v", err)
		}
		if err := b.Add(tr); err != nil {
			t.Fatalf("Add: %v", err)
		}
		scores, err := Fuse(b, &cfg)
		if err != nil {
			t.Fatalf("Fuse: %v", err)
		}
		if i == 1 {
			fullB, _ := evidence.NewBundle(tb, frames)
			_ = fullB.Add(full)
			fullScores, err := Fuse(fullB, &cfg)
			if err != nil {
				t.Fatalf("Fuse: %v", err)
			}
			got := scores[0][A]
			want := fullScores[0][A] / 2
			if math.Abs(got-want) > 1e-12 {
				t.Errorf("confidence 0.5 contribution = %v, want %v", got, want)
			}
		}
	}
}

func TestDiagnostics(t *testing.T) {
	scores := [][]float64{
		{1, 5, 3, 0, 0},
		{0, 0, 0, 0, 0},
	}
	cfg := defaultTestConfig()
	res, err := DecodeScores(scores, &cfg, Options{Diagnostics: true})
	if err != nil {
		t.Fatalf("DecodeScores: %v", err)
	}
	if res.Diagnostics == nil {
		t.Fatal("diagnostics requested but missing")
	}
	if got := res.Diagnostics.BestScore[0]; got != 5 {
		t.Errorf("BestScore[0] = %v, want 5", got)
	}
	if got := res.Diagnostics.Margin[0]; got != 2 {
		t.Errorf("Margin[0] = %v, want 2", got)
	}
	if got := res.Diagnostics.Margin[1]; got != 0 {
		t.Errorf("Margin[1] = %v, want 0", got)
	}
}

func TestParseState(t *testing.T) {
	for _, s := range States() {
		got, err := ParseState(s.String())
		if err != nil {
			t.Fatalf("ParseState(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("ParseState(%q) = %v, want %v", s, got, s)
		}
	}
	if _, err := ParseState("NOISE"); err == nil {
		t.Error("ParseState of unknown name should fail")
	}
}
