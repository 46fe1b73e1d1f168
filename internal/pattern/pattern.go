// Package pattern produces bring-up test patterns for a bank of 12-bit
// channels, one frame per step.
package pattern

import "fmt"

type Kind string

const (
	IndexSweep Kind = "index_sweep"
	AllOn      Kind = "all_on"
	Ramp       Kind = "ramp"
	Walk       Kind = "walk"
)

// Kinds lists every known pattern.
var Kinds = []Kind{IndexSweep, AllOn, Ramp, Walk}

const full = 4095

const (
	allOnSteps = 8
	rampSteps  = 32
	walkTail   = 3
)

type Plan struct {
	Kind Kind
}

// Runner steps through one plan.
type Runner struct {
	plan Plan
	step int
}

// NewRunner fails for unknown kinds.
func NewRunner(plan Plan) (*Runner, error) {
	r := &Runner{plan: plan}
	switch plan.Kind {
	case IndexSweep, AllOn, Ramp, Walk:
	default:
		return nil, fmt.Errorf("pattern: unknown kind %q", plan.Kind)
	}
	return r, nil
}

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step fills values with the next frame. It returns false, leaving values
// cleared, once the pattern is complete.
func (r *Runner) Step(values []int) bool {
	n := len(values)
	for i := range values {
		values[i] = 0
	}

	switch r.plan.Kind {
	case IndexSweep:
		if r.step >= n {
			return false
		}
		values[r.step] = full
	case AllOn:
		if r.step >= allOnSteps {
			return false
		}
		for i := range values {
			values[i] = full
		}
	case Ramp:
		if r.step >= rampSteps {
			return false
		}
		v := rampLevel(r.step)
		for i := range values {
			values[i] = v
		}
	case Walk:
		// The lead runs off the end until the whole tail has left.
		if r.step >= n+walkTail {
			return false
		}
		for k := 0; k <= walkTail; k++ {
			i := r.step - k
			if i >= 0 && i < n {
				values[i] = full >> (2 * k)
			}
		}
	default:
		return false
	}
	r.step++
	return true
}

// rampLevel is the grayscale level at step i of the ramp: a smoothstep
// rise from 0 to full over the first half, then back down to 0 on the
// last step.
func rampLevel(i int) int {
	peak := rampSteps / 2
	num, den := i, peak
	if i > peak {
		num, den = rampSteps-1-i, rampSteps-1-peak
	}
	if num <= 0 {
		return 0
	}
	// full * u^2 * (3 - 2u) with u = num/den, rounded to nearest.
	d3 := den * den * den
	return (full*num*num*(3*den-2*num) + d3/2) / d3
}
