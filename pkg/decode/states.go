// Package decode turns an evidence bundle into a per-frame conversational
// state sequence.
//
// Fusion maps whatever tracks are present onto per-frame, per-state scores;
// the decoder then runs a constrained Viterbi dynamic program over those
// scores plus transition costs. Structural rules (minimum state durations,
// forbidden transitions, switch penalties) are encoded as costs inside the
// optimization, not applied as cleanup passes, so the globally optimal path
// already satisfies them. Given identical inputs the output is bit-identical.
package decode

import "fmt"

// State is one conversational frame label.
//
// The numeric order SIL < A < B < OVL < LEAK is the fixed priority used for
// every deterministic tie-break in the decoder.
type State int

const (
	// Sil is silence: neither speaker active.
	Sil State = iota

	// A is speaker A holding the floor.
	A

	// B is speaker B holding the floor.
	B

	// Ovl is intentional overlap: both speakers active.
	Ovl

	// Leak is non-agentive speech-like signal (cross-talk, echo,
	// separation residue). It absorbs contamination without producing
	// turns.
	Leak

	// NumStates is the size of the closed state set.
	NumStates = int(Leak) + 1
)

var stateNames = [NumStates]string{"SIL", "A", "B", "OVL", "LEAK"}

// String returns the canonical state name.
func (s State) String() string {
	if s < 0 || int(s) >= NumStates {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state as its canonical name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a canonical state name.
func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Valid reports whether s is a member of the closed state set.
func (s State) Valid() bool { return s >= 0 && int(s) < NumStates }

// ParseState returns the state with the given canonical name.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("decode: unknown state %q", name)
}

// IsSpeech reports whether s is a turn-producing speech state (A, B or OVL).
func (s State) IsSpeech() bool { return s == A || s == B || s == Ovl }

// States returns the full state set in priority order.
func States() [NumStates]State {
	return [NumStates]State{Sil, A, B, Ovl, Leak}
}
