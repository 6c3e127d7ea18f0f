package accuracy

import "fmt"

// Phase is a game segment assigned by full move number.
type Phase uint8

const (
	Opening Phase = iota
	Middlegame
	Endgame
)

// Phases lists every phase in game order.
var Phases = [...]Phase{Opening, Middlegame, Endgame}

func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case Middlegame:
		return "middlegame"
	case Endgame:
		return "endgame"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// PhaseBounds are the last full move numbers of the opening and middlegame.
type PhaseBounds struct {
	OpeningEnd    int
	MiddlegameEnd int
}

// DefaultPhaseBounds: moves 1-15 opening, 16-30 middlegame, 31+ endgame.
var DefaultPhaseBounds = PhaseBounds{OpeningEnd: 15, MiddlegameEnd: 30}

// Classify maps a full move number to its phase.
func (b PhaseBounds) Classify(moveNumber int) Phase {
	switch {
	case moveNumber <= b.OpeningEnd:
		return Opening
	case moveNumber <= b.MiddlegameEnd:
		return Middlegame
	default:
		return Endgame
	}
}

// Quality is the severity bucket for a move's centipawn loss.
type Quality uint8

const (
	QualityNone Quality = iota
	Inaccuracy
	Mistake
	Blunder
)

func (q Quality) String() string {
	switch q {
	case QualityNone:
		return "none"
	case Inaccuracy:
		return "inaccuracy"
	case Mistake:
		return "mistake"
	case Blunder:
		return "blunder"
	default:
		return fmt.Sprintf("quality(%d)", uint8(q))
	}
}

// Thresholds are the inclusive centipawn-loss lower bounds of each bucket.
type Thresholds struct {
	Inaccuracy int
	Mistake    int
	Blunder    int
}

// DefaultThresholds are 50/100/200 centipawns.
var DefaultThresholds = Thresholds{Inaccuracy: 50, Mistake: 100, Blunder: 200}

// Classify buckets a centipawn loss.
func (t Thresholds) Classify(loss int) Quality {
	switch {
	case loss >= t.Blunder:
		return Blunder
	case loss >= t.Mistake:
		return Mistake
	case loss >= t.Inaccuracy:
		return Inaccuracy
	default:
		return QualityNone
	}
}
