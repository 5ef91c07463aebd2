package trackio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

func testBundle(t *testing.T) *evidence.Bundle {
	t.Helper()
	tb := timebase.Canonical()
	bundle, err := evidence.NewBundle(tb, 4)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	vad, err := evidence.NewTrack("vad", tb, []float64{0, 0.2, 0.9, 1}, evidence.Probability, nil)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	energy, err := evidence.NewTrack("energy_smooth", tb, []float64{-40, -35, -20, -18},
		evidence.Score, &evidence.TrackOptions{
			Confidence: []float64{1, 1, 0.5, 0.5},
			Metadata:   map[string]string{"source": "rms"},
		})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	for _, tr := range []*evidence.Track{vad, energy} {
		if err := bundle.Add(tr); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return bundle
}

func TestTrackRoundTrip(t *testing.T) {
	tb := timebase.Canonical()
	orig, err := evidence.NewTrack("diar_a", tb, []float64{0.1, 0.2, 0.3, 0.4},
		evidence.Probability, &evidence.TrackOptions{
			Dim:        2,
			Confidence: []float64{0.9, 0.8},
			Metadata:   map[string]string{"model": "resnet"},
		})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}

	data, err := EncodeTrack(orig)
	if err != nil {
		t.Fatalf("EncodeTrack: %v", err)
	}
	got, err := DecodeTrack(data)
	if err != nil {
		t.Fatalf("DecodeTrack: %v", err)
	}

	if got.Name() != orig.Name() || got.Dim() != orig.Dim() || got.Semantics() != orig.Semantics() {
		t.Fatalf("decoded header differs: %s/%d/%s", got.Name(), got.Dim(), got.Semantics())
	}
	if !got.TimeBase().Equal(orig.TimeBase()) {
		t.Fatalf("decoded timebase = %v", got.TimeBase())
	}
	for i := range orig.Values() {
		if got.Values()[i] != orig.Values()[i] {
			t.Fatalf("value %d differs", i)
		}
	}
	if got.ConfidenceAt(1) != 0.8 {
		t.Fatalf("confidence lost: %v", got.ConfidenceAt(1))
	}
	if got.Metadata()["model"] != "resnet" {
		t.Fatal("metadata lost")
	}
}

func TestDecodeTrackRejectsCorrupted(t *testing.T) {
	if _, err := DecodeTrack([]byte("not msgpack at all")); err == nil {
		t.Fatal("garbage input should fail")
	}
}

func TestDigestDeterministic(t *testing.T) {
	a := testBundle(t)
	b := testBundle(t)

	da, err := Digest(a)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	db, err := Digest(b)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if da != db {
		t.Fatalf("identical bundles disagree: %s vs %s", da, db)
	}

	// Removing a track must change the digest.
	dc, err := Digest(a.Without("vad"))
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if dc == da {
		t.Fatal("digest did not change after removing a track")
	}
}

func TestDirRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	orig := testBundle(t)

	man, err := WriteDir(dir, orig, map[string]string{"session": "s1"})
	if err != nil {
		t.Fatalf("WriteDir: %v", err)
	}
	if len(man.Tracks) != 2 {
		t.Fatalf("manifest lists %d tracks, want 2", len(man.Tracks))
	}

	got, readMan, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if readMan.Digest != man.Digest {
		t.Fatalf("digest drift: %s vs %s", readMan.Digest, man.Digest)
	}
	if readMan.Extra["session"] != "s1" {
		t.Fatal("extra metadata lost")
	}
	if got.Frames() != orig.Frames() || got.Len() != orig.Len() {
		t.Fatalf("bundle shape differs: %d frames %d tracks", got.Frames(), got.Len())
	}
	for name, tr := range orig.All() {
		back, ok := got.Get(name)
		if !ok {
			t.Fatalf("track %q missing after round trip", name)
		}
		for i := range tr.Values() {
			if back.Values()[i] != tr.Values()[i] {
				t.Fatalf("track %q value %d differs", name, i)
			}
		}
	}
}

func TestReadDirDetectsTampering(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	if _, err := WriteDir(dir, testBundle(t), nil); err != nil {
		t.Fatalf("WriteDir: %v", err)
	}

	// Swap a track file for a differently-valued one.
	tb := timebase.Canonical()
	other, err := evidence.NewTrack("vad", tb, []float64{1, 1, 1, 1}, evidence.Probability, nil)
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	data, err := EncodeTrack(other)
	if err != nil {
		t.Fatalf("EncodeTrack: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "vad.msgpack"), data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := ReadDir(dir); !errors.Is(err, ErrManifest) {
		t.Fatalf("tampered bundle: err = %v, want ErrManifest", err)
	}
}
