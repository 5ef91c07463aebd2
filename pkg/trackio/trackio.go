// Package trackio serializes evidence tracks and bundles.
//
// Tracks travel as msgpack blobs. A bundle on disk is a directory with
// one msgpack file per track plus a manifest.yaml naming each file and
// carrying the bundle digest. The digest is a SHA-256 over a canonical
// encoding (tracks in sorted name order), so byte-identical inputs
// always produce the same digest regardless of insertion order.
package trackio

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// ErrManifest reports a malformed or inconsistent bundle directory.
var ErrManifest = errors.New("trackio: bad manifest")

const manifestName = "manifest.yaml"

type trackRecord struct {
	Name       string            `msgpack:"name"`
	HopNanos   int64             `msgpack:"hop_nanos"`
	Dim        int               `msgpack:"dim"`
	Semantics  string            `msgpack:"semantics"`
	Values     []float64         `msgpack:"values"`
	Confidence []float64         `msgpack:"confidence,omitempty"`
	Metadata   map[string]string `msgpack:"metadata,omitempty"`
}

// EncodeTrack serializes a track to msgpack.
func EncodeTrack(tr *evidence.Track) ([]byte, error) {
	rec := trackRecord{
		Name:       tr.Name(),
		HopNanos:   tr.TimeBase().Hop().Nanoseconds(),
		Dim:        tr.Dim(),
		Semantics:  string(tr.Semantics()),
		Values:     tr.Values(),
		Confidence: tr.Confidence(),
		Metadata:   tr.Metadata(),
	}
	return msgpack.Marshal(rec)
}

// DecodeTrack deserializes a msgpack track blob, revalidating it.
func DecodeTrack(data []byte) (*evidence.Track, error) {
	var rec trackRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("trackio: decode track: %w", err)
	}
	tb, err := timebase.New(time.Duration(rec.HopNanos))
	if err != nil {
		return nil, fmt.Errorf("trackio: track %q: %w", rec.Name, err)
	}
	opts := &evidence.TrackOptions{
		Dim:        rec.Dim,
		Confidence: rec.Confidence,
		Metadata:   rec.Metadata,
	}
	return evidence.NewTrack(rec.Name, tb, rec.Values, evidence.Semantics(rec.Semantics), opts)
}

// Digest returns the hex SHA-256 of the bundle's canonical encoding.
// Tracks are hashed in sorted name order.
func Digest(b *evidence.Bundle) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "hop=%d frames=%d\n", b.TimeBase().Hop().Nanoseconds(), b.Frames())
	for _, tr := range b.All() {
		data, err := EncodeTrack(tr)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "track=%s len=%d\n", tr.Name(), len(data))
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Manifest describes a bundle directory.
type Manifest struct {
	HopNanos int64             `yaml:"hop_nanos"`
	Frames   int               `yaml:"frames"`
	Digest   string            `yaml:"digest"`
	Tracks   []ManifestTrack   `yaml:"tracks"`
	Extra    map[string]string `yaml:"extra,omitempty"`
}

// ManifestTrack names one serialized track file.
type ManifestTrack struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// WriteDir persists a bundle as a directory of track files plus a
// manifest. The directory is created if needed; existing files are
// overwritten.
func WriteDir(dir string, b *evidence.Bundle, extra map[string]string) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("trackio: %w", err)
	}
	digest, err := Digest(b)
	if err != nil {
		return nil, err
	}
	man := &Manifest{
		HopNanos: b.TimeBase().Hop().Nanoseconds(),
		Frames:   b.Frames(),
		Digest:   digest,
		Extra:    extra,
	}
	for _, tr := range b.All() {
		data, err := EncodeTrack(tr)
		if err != nil {
			return nil, err
		}
		file := tr.Name() + ".msgpack"
		if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
			return nil, fmt.Errorf("trackio: %w", err)
		}
		man.Tracks = append(man.Tracks, ManifestTrack{Name: tr.Name(), File: file})
	}
	out, err := yaml.Marshal(man)
	if err != nil {
		return nil, fmt.Errorf("trackio: encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), out, 0o644); err != nil {
		return nil, fmt.Errorf("trackio: %w", err)
	}
	return man, nil
}

// ReadDir loads a bundle directory written by [WriteDir] and verifies
// its digest.
func ReadDir(dir string) (*evidence.Bundle, *Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, nil, fmt.Errorf("trackio: %w", err)
	}
	var man Manifest
	if err := yaml.Unmarshal(raw, &man); err != nil {
		return nil, nil, fmt.Errorf("trackio: decode manifest: %w", err)
	}
	tb, err := timebase.New(time.Duration(man.HopNanos))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	bundle, err := evidence.NewBundle(tb, man.Frames)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	for _, mt := range man.Tracks {
		data, err := os.ReadFile(filepath.Join(dir, mt.File))
		if err != nil {
			return nil, nil, fmt.Errorf("trackio: track %q: %w", mt.Name, err)
		}
		tr, err := DecodeTrack(data)
		if err != nil {
			return nil, nil, err
		}
		if tr.Name() != mt.Name {
			return nil, nil, fmt.Errorf("%w: file %s holds track %q, manifest says %q",
				ErrManifest, mt.File, tr.Name(), mt.Name)
		}
		if err := bundle.Add(tr); err != nil {
			return nil, nil, err
		}
	}
	digest, err := Digest(bundle)
	if err != nil {
		return nil, nil, err
	}
	if digest != man.Digest {
		return nil, nil, fmt.Errorf("%w: digest mismatch: computed %s, manifest %s",
			ErrManifest, digest, man.Digest)
	}
	return bundle, &man, nil
}
