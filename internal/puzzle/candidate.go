// Package puzzle mines a player's games for positions where they went wrong
// and checks answers submitted against those positions.
package puzzle

import (
	"fmt"
	"strings"

	"github.com/freeeve/gamecoach/internal/board"
)

// Candidate is one mined mistake: the position before the bad move and the
// move the engine preferred.
type Candidate struct {
	FEN            string   `json:"fen"`
	MoveNumber     int      `json:"move_number"`
	BadMoveSAN     string   `json:"bad_move_san"`
	BadMoveUCI     string   `json:"bad_move_uci"`
	BestMoveSAN    string   `json:"best_move_san"`
	BestMoveUCI    string   `json:"best_move_uci"`
	AcceptedMoves  []string `json:"accepted_moves"`
	CPLoss         int      `json:"cp_loss"`
	GameURL        string   `json:"game_url,omitempty"`
	SourceUsername string   `json:"source_username,omitempty"`
}

// Key identifies a candidate across games.
func (c Candidate) Key() string {
	return c.FEN + "|" + c.BestMoveUCI
}

// Accepts reports whether submitted matches any accepted answer after
// canonicalisation.
func (c Candidate) Accepts(submitted string) bool {
	move := board.CanonicalMove(submitted)
	if move == "" {
		return false
	}
	for _, a := range c.AcceptedMoves {
		if a == move {
			return true
		}
	}
	return false
}

// Attempt is the verdict on one submitted answer.
type Attempt struct {
	Submitted string `json:"submitted_move"`
	Correct   bool   `json:"correct"`
	BestMove  string `json:"best_move"`
	Message   string `json:"message"`
}

// Check grades submitted against c.
func Check(c Candidate, submitted string) Attempt {
	a := Attempt{
		Submitted: strings.TrimSpace(submitted),
		Correct:   c.Accepts(submitted),
		BestMove:  c.BestMoveSAN,
	}
	if a.Correct {
		a.Message = "Correct. Puzzle solved."
	} else {
		a.Message = fmt.Sprintf("Not quite. Best move was %s.", c.BestMoveSAN)
	}
	return a
}

// answerSet collects canonical answers in insertion order without repeats.
type answerSet struct {
	seen  map[string]struct{}
	moves []string
}

func (s *answerSet) add(texts ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, t := range texts {
		c := board.CanonicalMove(t)
		if c == "" {
			continue
		}
		if _, ok := s.seen[c]; ok {
			continue
		}
		s.seen[c] = struct{}{}
		s.moves = append(s.moves, c)
	}
}
