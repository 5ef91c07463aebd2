// Package pipeline runs the full labeling chain: audio in, evidence
// tracks out, fused and decoded into a state sequence, segmented into
// inter-pausal units and exported as artifacts. Each stage is pure
// given its inputs; the bundle and decode stages consult a
// digest-addressed cache when one is configured.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dyadlab/turnline/pkg/cache"
	"github.com/dyadlab/turnline/pkg/decode"
	"github.com/dyadlab/turnline/pkg/dsp"
	"github.com/dyadlab/turnline/pkg/evidence"
	"github.com/dyadlab/turnline/pkg/ipu"
	"github.com/dyadlab/turnline/pkg/timebase"
	"github.com/dyadlab/turnline/pkg/trackio"
	"github.com/dyadlab/turnline/pkg/tracks"
	"github.com/dyadlab/turnline/pkg/wav"
)

// DefaultMinIPU is the duration floor for extracted units.
const DefaultMinIPU = 150 * time.Millisecond

// AnalysisRate is the sample rate all evidence is computed at. Input
// audio on any other rate is converted first, so spectral windows and
// pooling behave identically regardless of the source rate.
const AnalysisRate = 16000

// Options configures a run.
type Options struct {
	// Params tunes fusion and decoding. Zero value uses
	// decode.DefaultParams.
	Params decode.Params

	// MinIPU drops units shorter than this. Default 150 ms.
	MinIPU time.Duration

	// Smooth is the energy smoothing window. Default 80 ms.
	Smooth time.Duration

	// Cache, when set, stores computed bundles and decodes keyed by
	// content digest.
	Cache cache.Store

	// Logger receives progress events. Default slog.Default().
	Logger *slog.Logger
}

func (o *Options) fill() {
	if o.Params.SwitchCost == 0 && o.Params.MinSpeech == 0 {
		o.Params = decode.DefaultParams()
	}
	if o.MinIPU == 0 {
		o.MinIPU = DefaultMinIPU
	}
	if o.Smooth == 0 {
		o.Smooth = tracks.DefaultSmooth
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Result is the output of one run.
type Result struct {
	RunID        string
	BundleDigest string
	Bundle       *evidence.Bundle
	States       []decode.State
	Units        []ipu.IPU

	// BundleCached and DecodeCached report cache hits.
	BundleCached bool
	DecodeCached bool
}

// Run executes the full chain over the given audio.
func Run(ctx context.Context, audio *wav.Audio, opts Options) (*Result, error) {
	opts.fill()
	runID := uuid.NewString()
	log := opts.Logger.With("run_id", runID)

	log.Info("building evidence bundle",
		"sample_rate", audio.SampleRate,
		"channels", audio.NumChannels(),
		"duration", audio.Duration())

	bundle, err := BuildBundle(audio, opts)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: runID, Bundle: bundle}

	digest, err := trackio.Digest(bundle)
	if err != nil {
		return nil, err
	}
	res.BundleDigest = digest
	log.Info("evidence bundle ready", "digest", digest, "tracks", bundle.Names(), "frames", bundle.Frames())

	states, units, cached, err := decodeWithCache(ctx, bundle, digest, opts, log)
	if err != nil {
		return nil, err
	}
	res.States = states
	res.Units = units
	res.DecodeCached = cached

	log.Info("decode complete", "frames", len(states), "units", len(units), "cached", cached)
	return res, nil
}

// BuildBundle derives the evidence tracks this pipeline knows how to
// produce: raw, smoothed and slope energy, the soft voice-activity and
// voicing scores from the mono mixdown, plus a leakage likelihood when
// the audio is stereo. Input on any sample rate is converted to
// AnalysisRate first.
func BuildBundle(audio *wav.Audio, opts Options) (*evidence.Bundle, error) {
	opts.fill()
	tb := timebase.Canonical()

	audio, err := toAnalysisRate(audio)
	if err != nil {
		return nil, err
	}
	mono := audio.Mono()

	rms, err := tracks.EnergyRMS(mono, audio.SampleRate, tb)
	if err != nil {
		return nil, fmt.Errorf("pipeline: energy: %w", err)
	}
	energy, err := tracks.EnergySmooth(mono, audio.SampleRate, tb, opts.Smooth)
	if err != nil {
		return nil, fmt.Errorf("pipeline: energy: %w", err)
	}
	slope, err := tracks.EnergySlope(mono, audio.SampleRate, tb, opts.Smooth)
	if err != nil {
		return nil, fmt.Errorf("pipeline: slope: %w", err)
	}
	vad, err := tracks.SoftVAD(mono, audio.SampleRate, tb, tracks.VADOptions{})
	if err != nil {
		return nil, fmt.Errorf("pipeline: vad: %w", err)
	}
	voiced, err := tracks.Voiced(mono, audio.SampleRate, tb, tracks.VADOptions{})
	if err != nil {
		return nil, fmt.Errorf("pipeline: voiced: %w", err)
	}

	bundle, err := evidence.NewBundle(tb, energy.Frames())
	if err != nil {
		return nil, err
	}
	for _, tr := range []*evidence.Track{rms, energy, slope, vad, voiced} {
		if err := bundle.Add(tr); err != nil {
			return nil, err
		}
	}

	if audio.NumChannels() >= 2 {
		leak, err := tracks.Leakage(audio.Channels[0], audio.Channels[1], audio.SampleRate, tb, tracks.LeakageOptions{})
		if err != nil {
			return nil, fmt.Errorf("pipeline: leakage: %w", err)
		}
		if err := bundle.Add(leak); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}

// toAnalysisRate converts audio to AnalysisRate, channel by channel.
// Audio already on the analysis rate is returned unchanged.
func toAnalysisRate(audio *wav.Audio) (*wav.Audio, error) {
	if audio.SampleRate == AnalysisRate {
		return audio, nil
	}
	out := &wav.Audio{
		SampleRate: AnalysisRate,
		Channels:   make([][]float64, len(audio.Channels)),
	}
	for i, ch := range audio.Channels {
		conv, err := dsp.Resample(ch, audio.SampleRate, AnalysisRate)
		if err != nil {
			return nil, fmt.Errorf("pipeline: rate conversion: %w", err)
		}
		out.Channels[i] = conv
	}
	return out, nil
}

// decodeRecord is the cached decode payload.
type decodeRecord struct {
	States []decode.State `msgpack:"states"`
	Units  []ipu.IPU      `msgpack:"units"`
}

func decodeKey(bundleDigest string, opts Options) (string, error) {
	params, err := yaml.Marshal(opts.Params)
	if err != nil {
		return "", fmt.Errorf("pipeline: encode params: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "bundle=%s min_ipu=%d\n", bundleDigest, opts.MinIPU)
	h.Write(params)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func decodeWithCache(ctx context.Context, bundle *evidence.Bundle, digest string, opts Options, log *slog.Logger) (states []decode.State, units []ipu.IPU, cached bool, err error) {
	var key string
	if opts.Cache != nil {
		key, err = decodeKey(digest, opts)
		if err != nil {
			return nil, nil, false, err
		}
		payload, err := opts.Cache.Get(ctx, cache.NSDecode, key)
		if err == nil {
			var rec decodeRecord
			if err := msgpack.Unmarshal(payload, &rec); err == nil {
				return rec.States, rec.Units, true, nil
			}
			log.Warn("discarding undecodable cache entry", "key", key)
		} else if !errors.Is(err, cache.ErrNotFound) {
			return nil, nil, false, err
		}
	}

	cfg := opts.Params.Config(bundle.TimeBase())
	res, err := decode.Decode(bundle, &cfg, decode.Options{})
	if err != nil {
		return nil, nil, false, err
	}
	units = ipu.Extract(res.States, bundle.TimeBase(), ipu.Options{
		MinDuration: opts.MinIPU,
	})

	if opts.Cache != nil {
		payload, err := msgpack.Marshal(decodeRecord{States: res.States, Units: units})
		if err != nil {
			return nil, nil, false, fmt.Errorf("pipeline: encode decode record: %w", err)
		}
		if err := opts.Cache.Put(ctx, cache.NSDecode, key, payload); err != nil {
			return nil, nil, false, err
		}
	}
	return res.States, units, false, nil
}

// CacheBundle stores the bundle as a msgpack-per-track directory
// encoding under its digest and returns the digest.
func CacheBundle(ctx context.Context, store cache.Store, bundle *evidence.Bundle) (string, error) {
	digest, err := trackio.Digest(bundle)
	if err != nil {
		return "", err
	}
	payload, err := encodeBundle(bundle)
	if err != nil {
		return "", err
	}
	if err := store.Put(ctx, cache.NSBundle, digest, payload); err != nil {
		return "", err
	}
	return digest, nil
}

// LoadBundle retrieves a cached bundle by digest.
func LoadBundle(ctx context.Context, store cache.Store, digest string) (*evidence.Bundle, error) {
	payload, err := store.Get(ctx, cache.NSBundle, digest)
	if err != nil {
		return nil, err
	}
	return decodeBundle(payload)
}

type bundleRecord struct {
	HopNanos int64    `msgpack:"hop_nanos"`
	Frames   int      `msgpack:"frames"`
	Tracks   [][]byte `msgpack:"tracks"`
}

func encodeBundle(bundle *evidence.Bundle) ([]byte, error) {
	rec := bundleRecord{
		HopNanos: bundle.TimeBase().Hop().Nanoseconds(),
		Frames:   bundle.Frames(),
	}
	for _, tr := range bundle.All() {
		blob, err := trackio.EncodeTrack(tr)
		if err != nil {
			return nil, err
		}
		rec.Tracks = append(rec.Tracks, blob)
	}
	return msgpack.Marshal(rec)
}

func decodeBundle(payload []byte) (*evidence.Bundle, error) {
	var rec bundleRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("pipeline: decode bundle: %w", err)
	}
	tb, err := timebase.New(time.Duration(rec.HopNanos))
	if err != nil {
		return nil, err
	}
	bundle, err := evidence.NewBundle(tb, rec.Frames)
	if err != nil {
		return nil, err
	}
	for _, blob := range rec.Tracks {
		tr, err := trackio.DecodeTrack(blob)
		if err != nil {
			return nil, err
		}
		if err := bundle.Add(tr); err != nil {
			return nil, err
		}
	}
	return bundle, nil
}
