package engine

import "fmt"

// MateScore is the magnitude assigned to mate-in-zero on the bounded scale.
// Mate in n maps to MateScore - 10n, which stays above any realistic
// centipawn evaluation for n < 1000.
const MateScore = 10000

// Score is an engine evaluation from the side to move: either a centipawn
// value or a signed mate distance (positive = side to move mates).
type Score struct {
	Centipawns int
	Mate       int
	IsMate     bool
}

// CP builds a centipawn score.
func CP(cp int) Score { return Score{Centipawns: cp} }

// MateIn builds a mate score; n < 0 means the side to move gets mated.
func MateIn(n int) Score { return Score{Mate: n, IsMate: true} }

// Bounded compresses the score onto a single linear centipawn scale.
// Mate n>0 maps to MateScore-10n, mate n<0 to -MateScore-10n, and mate 0
// (side to move already mated) to -MateScore.
func (s Score) Bounded() int {
	if !s.IsMate {
		return s.Centipawns
	}
	switch {
	case s.Mate > 0:
		return MateScore - 10*s.Mate
	case s.Mate < 0:
		return -MateScore - 10*s.Mate
	default:
		return -MateScore
	}
}

// Negate flips the perspective.
func (s Score) Negate() Score {
	if s.IsMate {
		return Score{Mate: -s.Mate, IsMate: true}
	}
	return Score{Centipawns: -s.Centipawns}
}

func (s Score) String() string {
	if s.IsMate {
		return fmt.Sprintf("mate %d", s.Mate)
	}
	return fmt.Sprintf("cp %d", s.Centipawns)
}
