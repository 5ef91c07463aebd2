package decode

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dyadlab/turnline/pkg/timebase"
)

// ErrConfig is returned for invalid decoder configuration: negative minimum
// durations, NaN costs, or a cost structure without a persistence bonus.
var ErrConfig = errors.New("decode: invalid configuration")

// Forbidden is the transition cost that makes a transition impossible.
const Forbidden = math.MaxFloat64

// Config is the fully expanded decoder configuration: a transition-cost
// matrix over the fixed state set, per-state minimum durations in frames,
// optional initial-state costs, and per-track fusion weights.
//
// Most callers should start from Params and call Params.Config rather than
// filling the matrix by hand.
type Config struct {
	// Transition holds the cost of moving from row state to column state
	// between consecutive frames. Forbidden marks impossible transitions.
	// The diagonal must be strictly cheaper than every other entry in its
	// row (persistence bonus).
	Transition [NumStates][NumStates]float64

	// MinDuration is the minimum run length in frames per state. Once a
	// state is entered the decoder may not leave before this many frames,
	// except at sequence boundaries. LEAK is conventionally 1 (exempt).
	MinDuration [NumStates]int

	// Initial is an optional per-state cost applied at frame 0. Zeros mean
	// a free uniform start. Forbidden excludes a starting state.
	Initial [NumStates]float64

	// Weights are per-track fusion weights by track name. A missing entry
	// means weight 1; an explicit 0 disables the track, which is exactly
	// equivalent to the track being absent.
	Weights map[string]float64
}

// Validate checks the configuration. All violations wrap ErrConfig.
func (c *Config) Validate() error {
	for s := 0; s < NumStates; s++ {
		if c.MinDuration[s] < 1 {
			return fmt.Errorf("%w: minimum duration for %s must be at least 1 frame, got %d",
				ErrConfig, State(s), c.MinDuration[s])
		}
		self := c.Transition[s][s]
		if math.IsNaN(self) || self >= Forbidden {
			return fmt.Errorf("%w: self transition cost for %s must be finite, got %g",
				ErrConfig, State(s), self)
		}
		for d := 0; d < NumStates; d++ {
			v := c.Transition[s][d]
			if math.IsNaN(v) {
				return fmt.Errorf("%w: transition cost %s->%s is NaN", ErrConfig, State(s), State(d))
			}
			if d != s && v <= self {
				return fmt.Errorf("%w: transition %s->%s (%g) must cost more than staying in %s (%g)",
					ErrConfig, State(s), State(d), v, State(s), self)
			}
		}
	}
	start := false
	for s := 0; s < NumStates; s++ {
		if math.IsNaN(c.Initial[s]) {
			return fmt.Errorf("%w: initial cost for %s is NaN", ErrConfig, State(s))
		}
		if c.Initial[s] < Forbidden {
			start = true
		}
	}
	if !start {
		return fmt.Errorf("%w: every initial state is forbidden", ErrConfig)
	}
	for name, w := range c.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight for track %q must be finite, got %g", ErrConfig, name, w)
		}
	}
	return nil
}

// weight returns the fusion weight for a track name.
func (c *Config) weight(name string) float64 {
	if c.Weights == nil {
		return 1
	}
	if w, ok := c.Weights[name]; ok {
		return w
	}
	return 1
}

// Params is the serializable tuning surface for the decoder. The numeric
// values are tunables discovered against the evaluation harness, not fixed
// constants; this struct is what a YAML config file decodes into.
type Params struct {
	// SwitchCost is the generic cost of changing state.
	SwitchCost float64 `yaml:"switch_cost"`

	// SpeakerSwitchCost is the cost of a direct A<->B switch. It should be
	// high enough that routing through silence (SilEnterCost +
	// SilExitCost) is cheaper.
	SpeakerSwitchCost float64 `yaml:"speaker_switch_cost"`

	// SilEnterCost is the cost of entering silence from any other state.
	SilEnterCost float64 `yaml:"sil_enter_cost"`

	// SilExitCost is the cost of leaving silence into a speech state.
	SilExitCost float64 `yaml:"sil_exit_cost"`

	// LeakEnterCost is the cost of entering LEAK from any state.
	LeakEnterCost float64 `yaml:"leak_enter_cost"`

	// MinSpeech is the minimum duration of A, B and OVL runs.
	MinSpeech time.Duration `yaml:"min_speech"`

	// MinSilence is the minimum duration of SIL runs.
	MinSilence time.Duration `yaml:"min_silence"`

	// Weights are per-track fusion weights; missing names default to 1.
	Weights map[string]float64 `yaml:"weights,omitempty"`
}

// DefaultParams returns the shipped tuning defaults: 200 ms speech floor,
// 100 ms silence floor, and a direct speaker switch costing three times the
// silence route.
func DefaultParams() Params {
	return Params{
		SwitchCost:        2.5,
		SpeakerSwitchCost: 6.0,
		SilEnterCost:      1.0,
		SilExitCost:       1.0,
		LeakEnterCost:     3.0,
		MinSpeech:         200 * time.Millisecond,
		MinSilence:        100 * time.Millisecond,
	}
}

// Config expands the tuning parameters into a full transition-cost matrix on
// the given grid. LEAK->A and LEAK->B are always forbidden: leakage can never
// initiate a turn directly.
func (p Params) Config(tb timebase.TimeBase) Config {
	var c Config

	for s := 0; s < NumStates; s++ {
		for d := 0; d < NumStates; d++ {
			switch {
			case s == d:
				c.Transition[s][d] = 0
			default:
				c.Transition[s][d] = p.SwitchCost
			}
		}
	}

	c.Transition[A][B] = p.SpeakerSwitchCost
	c.Transition[B][A] = p.SpeakerSwitchCost

	for s := 0; s < NumStates; s++ {
		if State(s) != Sil {
			c.Transition[s][Sil] = p.SilEnterCost
		}
		if State(s) != Leak {
			c.Transition[s][Leak] = p.LeakEnterCost
		}
	}
	c.Transition[Sil][A] = p.SilExitCost
	c.Transition[Sil][B] = p.SilExitCost
	c.Transition[Sil][Ovl] = p.SilExitCost

	c.Transition[Leak][A] = Forbidden
	c.Transition[Leak][B] = Forbidden

	c.MinDuration[Sil] = max(1, tb.FrameCount(p.MinSilence))
	c.MinDuration[A] = max(1, tb.FrameCount(p.MinSpeech))
	c.MinDuration[B] = max(1, tb.FrameCount(p.MinSpeech))
	c.MinDuration[Ovl] = max(1, tb.FrameCount(p.MinSpeech))
	c.MinDuration[Leak] = 1 // leak runs carry no duration floor

	c.Weights = p.Weights
	return c
}
