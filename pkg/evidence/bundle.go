package evidence

import (
	"fmt"
	"iter"
	"sort"

	"github.com/dyadlab/turnline/pkg/timebase"
)

// Bundle is a set of uniquely named tracks sharing one TimeBase and one frame
// count. The bundle performs no resampling: every track must already be on
// the bundle grid when added. Iteration order is sorted by name so nothing
// downstream can depend on insertion order.
type Bundle struct {
	tb     timebase.TimeBase
	frames int
	tracks map[string]*Track
}

// NewBundle creates an empty bundle with a fixed grid and frame count.
func NewBundle(tb timebase.TimeBase, frames int) (*Bundle, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("evidence: bundle frame count must be positive, got %d: %w", frames, ErrBundleShape)
	}
	return &Bundle{tb: tb, frames: frames, tracks: make(map[string]*Track)}, nil
}

// Add inserts a track, replacing any existing track with the same name.
// The track's grid and frame count must match the bundle exactly.
func (b *Bundle) Add(tr *Track) error {
	if !tr.TimeBase().Equal(b.tb) {
		return fmt.Errorf("evidence: track %q is on %v, bundle requires %v: %w",
			tr.Name(), tr.TimeBase(), b.tb, ErrTimebaseMismatch)
	}
	if tr.Frames() != b.frames {
		return fmt.Errorf("evidence: track %q has %d frames, bundle requires %d: %w",
			tr.Name(), tr.Frames(), b.frames, ErrBundleShape)
	}
	b.tracks[tr.Name()] = tr
	return nil
}

// Get returns the named track. Absence is not an error: downstream fusion
// treats a missing track as a zero contribution.
func (b *Bundle) Get(name string) (*Track, bool) {
	tr, ok := b.tracks[name]
	return tr, ok
}

// TimeBase returns the bundle grid.
func (b *Bundle) TimeBase() timebase.TimeBase { return b.tb }

// Frames returns the bundle frame count T.
func (b *Bundle) Frames() int { return b.frames }

// Len returns the number of tracks.
func (b *Bundle) Len() int { return len(b.tracks) }

// Names returns the track names in sorted order.
func (b *Bundle) Names() []string {
	names := make([]string, 0, len(b.tracks))
	for name := range b.tracks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All iterates over tracks in sorted name order.
func (b *Bundle) All() iter.Seq2[string, *Track] {
	return func(yield func(string, *Track) bool) {
		for _, name := range b.Names() {
			if !yield(name, b.tracks[name]) {
				return
			}
		}
	}
}

// Without returns a shallow copy of the bundle with one track removed.
// Tracks are immutable, so the copy can share them.
func (b *Bundle) Without(name string) *Bundle {
	out := &Bundle{tb: b.tb, frames: b.frames, tracks: make(map[string]*Track, len(b.tracks))}
	for k, v := range b.tracks {
		if k != name {
			out.tracks[k] = v
		}
	}
	return out
}

// Merge returns a new bundle containing the tracks of b and other; tracks in
// other win on name collision. The grids and frame counts must match.
func (b *Bundle) Merge(other *Bundle) (*Bundle, error) {
	if !b.tb.Equal(other.tb) {
		return nil, fmt.Errorf("evidence: cannot merge bundles on %v and %v: %w",
			b.tb, other.tb, ErrTimebaseMismatch)
	}
	if b.frames != other.frames {
		return nil, fmt.Errorf("evidence: cannot merge bundles with %d and %d frames: %w",
			b.frames, other.frames, ErrBundleShape)
	}
	out := &Bundle{tb: b.tb, frames: b.frames, tracks: make(map[string]*Track, len(b.tracks)+len(other.tracks))}
	for k, v := range b.tracks {
		out.tracks[k] = v
	}
	for k, v := range other.tracks {
		out.tracks[k] = v
	}
	return out, nil
}
