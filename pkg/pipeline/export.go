package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/dyadlab/turnline/pkg/artifact"
	"github.com/dyadlab/turnline/pkg/decode"
	"github.com/dyadlab/turnline/pkg/ipu"
	"github.com/dyadlab/turnline/pkg/textgrid"
	"github.com/dyadlab/turnline/pkg/timebase"
)

// Tier names in exported TextGrids.
const (
	TierSpeakerA = "SpeakerA"
	TierSpeakerB = "SpeakerB"
	TierOverlap  = "Overlap"
	TierLeak     = "Leak"
)

// Tiers lays decoded output onto four interval tiers: one per
// speaker, one for overlap and one for leak spans taken directly from
// the state sequence.
func Tiers(states []decode.State, tb timebase.TimeBase, units []ipu.IPU) []textgrid.Tier {
	tiers := []textgrid.Tier{
		{Name: TierSpeakerA},
		{Name: TierSpeakerB},
		{Name: TierOverlap},
		{Name: TierLeak},
	}
	for _, u := range units {
		iv := textgrid.Interval{Start: u.Start, End: u.End, Text: u.Label.String()}
		switch u.Label {
		case decode.A:
			tiers[0].Intervals = append(tiers[0].Intervals, iv)
		case decode.B:
			tiers[1].Intervals = append(tiers[1].Intervals, iv)
		case decode.Ovl:
			tiers[2].Intervals = append(tiers[2].Intervals, iv)
		}
	}
	for i := 0; i < len(states); {
		if states[i] != decode.Leak {
			i++
			continue
		}
		start := i
		for i < len(states) && states[i] == decode.Leak {
			i++
		}
		tiers[3].Intervals = append(tiers[3].Intervals, textgrid.Interval{
			Start: tb.FrameToTime(start),
			End:   tb.FrameToTime(i),
			Text:  decode.Leak.String(),
		})
	}
	return tiers
}

// RunManifest summarizes an exported run.
type RunManifest struct {
	RunID        string        `yaml:"run_id"`
	CreatedAt    time.Time     `yaml:"created_at"`
	BundleDigest string        `yaml:"bundle_digest"`
	Frames       int           `yaml:"frames"`
	Units        int           `yaml:"units"`
	DecodeCached bool          `yaml:"decode_cached"`
	Files        []string      `yaml:"files"`
	Params       decode.Params `yaml:"params"`
}

// Export writes the run's TextGrid, unit list and manifest under
// runs/<run id>/ in the given store and returns the manifest.
func Export(ctx context.Context, store artifact.Store, res *Result, params decode.Params) (*RunManifest, error) {
	base := path.Join("runs", res.RunID)

	tiers := Tiers(res.States, res.Bundle.TimeBase(), res.Units)
	var grid bytes.Buffer
	if err := textgrid.Write(&grid, tiers); err != nil {
		return nil, err
	}
	gridPath := path.Join(base, "output.TextGrid")
	if err := store.Put(ctx, gridPath, grid.Bytes()); err != nil {
		return nil, err
	}

	unitsOut, err := yaml.Marshal(res.Units)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encode units: %w", err)
	}
	unitsPath := path.Join(base, "units.yaml")
	if err := store.Put(ctx, unitsPath, unitsOut); err != nil {
		return nil, err
	}

	man := &RunManifest{
		RunID:        res.RunID,
		CreatedAt:    time.Now().UTC(),
		BundleDigest: res.BundleDigest,
		Frames:       len(res.States),
		Units:        len(res.Units),
		DecodeCached: res.DecodeCached,
		Files:        []string{gridPath, unitsPath},
		Params:       params,
	}
	manOut, err := yaml.Marshal(man)
	if err != nil {
		return nil, fmt.Errorf("pipeline: encode manifest: %w", err)
	}
	if err := store.Put(ctx, path.Join(base, "manifest.yaml"), manOut); err != nil {
		return nil, err
	}
	return man, nil
}

// ListRuns returns the run ids present in a store, in lexical order.
func ListRuns(ctx context.Context, store artifact.Store) ([]string, error) {
	keys, err := store.List(ctx, "runs")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	ids := []string{}
	for _, key := range keys {
		rest, ok := strings.CutPrefix(key, "runs/")
		if !ok {
			continue
		}
		id, _, ok := strings.Cut(rest, "/")
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}
