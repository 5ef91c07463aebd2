package decode

import (
	"fmt"
	"math"

	"github.com/dyadlab/turnline/pkg/evidence"
)

// Options controls optional decoder output.
type Options struct {
	// Diagnostics attaches per-frame interpretability data to the result.
	Diagnostics bool
}

// Diagnostics explains a decode without re-running it.
type Diagnostics struct {
	// BestScore is the winning fused emission score per frame.
	BestScore []float64

	// Margin is the winning score's lead over the runner-up state per
	// frame. A small margin marks frames where the evidence was ambiguous
	// and the transition structure decided.
	Margin []float64

	// RunsAfterLeak counts speech runs that begin immediately after a LEAK
	// run. Direct LEAK->A/B transitions are forbidden, so only overlap runs
	// can appear here.
	RunsAfterLeak int
}

// Result is a decoded state sequence.
type Result struct {
	States      []State
	Diagnostics *Diagnostics
}

// Decode fuses the bundle and runs the constrained Viterbi decoder. It never
// fails because evidence is sparse or absent: an empty bundle fuses to
// all-zero scores and still decodes deterministically.
func Decode(bundle *evidence.Bundle, cfg *Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scores, err := Fuse(bundle, cfg)
	if err != nil {
		return nil, err
	}
	return DecodeScores(scores, cfg, opts)
}

// DecodeScores runs the constrained Viterbi decoder over per-frame state
// scores. The objective is the sum of winning scores minus the sum of
// transition costs; minimum durations and forbidden transitions are encoded
// as infinite-cost transitions inside an augmented state space, so the
// optimal path satisfies them exactly.
//
// The augmented state tracks frames spent in the current base state, capped
// at that state's minimum duration: once the floor is met the counter
// saturates and the constraint is simply "free to leave". Ties are broken
// toward the ordinally first state (SIL<A<B<OVL<LEAK), making repeated runs
// bit-identical.
//
// A run truncated by the start or end of the sequence may be shorter than
// its minimum duration; the constraint binds transitions, not boundaries.
func DecodeScores(scores [][]float64, cfg *Config, opts Options) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	frames := len(scores)
	if frames == 0 {
		return nil, fmt.Errorf("%w: empty score matrix", ErrConfig)
	}
	for t, row := range scores {
		if len(row) != NumStates {
			return nil, fmt.Errorf("%w: score row %d has %d states, want %d",
				ErrConfig, t, len(row), NumStates)
		}
	}

	// Expanded state layout: for each base state s, substates
	// (s,0)..(s,minDur-1) in priority order. sub counts frames already
	// spent in s; it saturates at minDur-1.
	var offset [NumStates]int
	total := 0
	for s := 0; s < NumStates; s++ {
		offset[s] = total
		total += cfg.MinDuration[s]
	}
	base := make([]State, total)
	sub := make([]int, total)
	for s := 0; s < NumStates; s++ {
		for k := 0; k < cfg.MinDuration[s]; k++ {
			base[offset[s]+k] = State(s)
			sub[offset[s]+k] = k
		}
	}

	negInf := math.Inf(-1)
	dp := make([]float64, total)
	next := make([]float64, total)
	for j := range dp {
		dp[j] = negInf
	}
	for s := 0; s < NumStates; s++ {
		if cfg.Initial[s] >= Forbidden {
			continue
		}
		dp[offset[s]] = scores[0][s] - cfg.Initial[s]
	}

	bp := make([][]int32, frames)
	for t := 1; t < frames; t++ {
		bpt := make([]int32, total)
		for j := range next {
			next[j] = negInf
			bpt[j] = -1
		}

		// Ascending source order plus strictly-greater relaxation keeps
		// the lowest-index predecessor on ties.
		for i := 0; i < total; i++ {
			if dp[i] == negInf {
				continue
			}
			s := base[i]
			floor := cfg.MinDuration[s]
			if sub[i] < floor-1 {
				// Still inside the duration floor: the only move is
				// deeper into the chain.
				j := i + 1
				if v := dp[i] - cfg.Transition[s][s]; v > next[j] {
					next[j] = v
					bpt[j] = int32(i)
				}
				continue
			}
			// Saturated: stay, or enter another state's chain head.
			if v := dp[i] - cfg.Transition[s][s]; v > next[i] {
				next[i] = v
				bpt[i] = int32(i)
			}
			for d := 0; d < NumStates; d++ {
				if State(d) == s {
					continue
				}
				cost := cfg.Transition[s][d]
				if cost >= Forbidden {
					continue
				}
				j := offset[d]
				if v := dp[i] - cost; v > next[j] {
					next[j] = v
					bpt[j] = int32(i)
				}
			}
		}

		for j := 0; j < total; j++ {
			if next[j] != negInf {
				next[j] += scores[t][base[j]]
			}
		}
		dp, next = next, dp
		bp[t] = bpt
	}

	last := 0
	for j := 1; j < total; j++ {
		if dp[j] > dp[last] {
			last = j
		}
	}
	if dp[last] == negInf {
		// Unreachable with a validated config: some start is allowed and
		// self transitions are always finite.
		return nil, fmt.Errorf("%w: no feasible path", ErrConfig)
	}

	states := make([]State, frames)
	j := last
	for t := frames - 1; t > 0; t-- {
		states[t] = base[j]
		j = int(bp[t][j])
	}
	states[0] = base[j]

	res := &Result{States: states}
	if opts.Diagnostics {
		res.Diagnostics = diagnose(scores, states)
	}
	return res, nil
}

func diagnose(scores [][]float64, states []State) *Diagnostics {
	frames := len(scores)
	d := &Diagnostics{
		BestScore: make([]float64, frames),
		Margin:    make([]float64, frames),
	}
	for t, row := range scores {
		best, runner := 0, -1
		for s := 1; s < NumStates; s++ {
			if row[s] > row[best] {
				runner = best
				best = s
			} else if runner < 0 || row[s] > row[runner] {
				runner = s
			}
		}
		d.BestScore[t] = row[best]
		d.Margin[t] = row[best] - row[runner]
	}

	prev := states[0]
	for t := 1; t < frames; t++ {
		if states[t] == prev {
			continue
		}
		if states[t].IsSpeech() && prev == Leak {
			d.RunsAfterLeak++
		}
		prev = states[t]
	}
	return d
}
