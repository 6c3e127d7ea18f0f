// Package accuracy converts engine evaluations into win probabilities,
// per-move accuracy and aggregated game/phase scores.
package accuracy

import "math"

// Win-probability sigmoid slope (Lichess calibration).
const winSlope = 0.00368208

// Move accuracy curve constants.
const (
	accuracyScale  = 103.1668
	accuracyOffset = 3.1669

	// Two decay calibrations are in use and the choice between them still
	// needs product sign-off. analysis.decay selects one at runtime.

	// DefaultDecay is the documented calibration for the accuracy curve.
	DefaultDecay = 0.04354
	// SteepDecay punishes lost win probability harder.
	SteepDecay = 0.065
)

// harmonicFloor replaces zero accuracies in the harmonic mean.
const harmonicFloor = 0.01

// WinProbability converts a centipawn evaluation into a win percentage in (0, 100).
// Positive cp favours the side whose perspective the evaluation is from.
func WinProbability(cp int) float64 {
	return 50 + 50*(2/(1+math.Exp(-winSlope*float64(cp)))-1)
}

// Model holds the tunable accuracy calibration.
type Model struct {
	Decay float64
}

// DefaultModel returns the model with DefaultDecay.
func DefaultModel() Model {
	return Model{Decay: DefaultDecay}
}

// MoveAccuracy scores one move from the mover's win probability before and
// after it. Only lost probability counts; gains score 100.
func (m Model) MoveAccuracy(wpBefore, wpAfter float64) float64 {
	decay := m.Decay
	if decay <= 0 {
		decay = DefaultDecay
	}
	lost := math.Max(0, wpBefore-wpAfter)
	acc := accuracyScale*math.Exp(-decay*lost) - accuracyOffset
	return clamp(acc, 0, 100)
}

// Aggregate blends the arithmetic and harmonic means of a list of accuracies.
// An empty list aggregates to 0.
func Aggregate(accs []float64) float64 {
	if len(accs) == 0 {
		return 0
	}
	var sum, inv float64
	for _, a := range accs {
		sum += a
		inv += 1 / math.Max(a, harmonicFloor)
	}
	n := float64(len(accs))
	arith := sum / n
	harmonic := n / inv
	return (arith + harmonic) / 2
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
