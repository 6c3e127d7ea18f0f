// Package board replays games over pgn positions and converts moves between
// coordinate and algebraic notation.
package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/freeeve/pgn/v3"
)

// Move flag values reported by pgn move generation.
const (
	flagEnPassant = 2
	flagCastle    = 4
)

var (
	// ErrIllegalMove reports a move that cannot be played in its position.
	ErrIllegalMove = errors.New("illegal or malformed move")
	// ErrBadFEN reports an unparseable start position.
	ErrBadFEN = errors.New("invalid FEN")
)

// Color is a side. White moves first.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Opposite returns the other side.
func (c Color) Opposite() Color {
	return 1 - c
}

// SideToMove reads the active colour field of a FEN.
func SideToMove(fen string) Color {
	if strings.Contains(fen, " b ") {
		return Black
	}
	return White
}

// NewPosition returns the standard starting position for an empty fen,
// otherwise the position described by fen, move counters included.
func NewPosition(fen string) (*pgn.GameState, error) {
	if strings.TrimSpace(fen) == "" {
		return pgn.NewStartingPosition(), nil
	}
	pos, err := pgn.NewGame(strings.TrimSpace(fen))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	return pos, nil
}

// Outcome describes whether the side to move has any legal move left.
type Outcome uint8

const (
	InPlay Outcome = iota
	Checkmate
	Stalemate
)

// Terminal reports checkmate or stalemate for the side to move.
func Terminal(pos *pgn.GameState) Outcome {
	if len(pgn.GenerateLegalMoves(pos)) > 0 {
		return InPlay
	}
	if pos.IsInCheck() {
		return Checkmate
	}
	return Stalemate
}

// Ply is one half-move of a replayed game.
type Ply struct {
	Index      int // 0-based
	MoveNumber int
	Mover      Color
	SAN        string
	UCI        string
	Move       pgn.Mv
	FENBefore  string
	FENAfter   string
	Before     pgn.PackedPosition
	After      pgn.PackedPosition
}

// Replay plays moves from startFEN and returns every ply. It fails on the
// first move that cannot be resolved, so a malformed game never yields a
// partial replay.
func Replay(startFEN string, moves []string) ([]Ply, error) {
	pos, err := NewPosition(startFEN)
	if err != nil {
		return nil, err
	}

	// Move numbers count from 1 for White's first move; a Black start
	// shifts ply parity by one.
	offset := 0
	if SideToMove(pos.ToFEN()) == Black {
		offset = 1
	}

	plies := make([]Ply, 0, len(moves))
	for i, text := range moves {
		fenBefore := pos.ToFEN()
		mv, err := ParseMove(pos, text)
		if err != nil {
			return nil, fmt.Errorf("ply %d: %w", i, err)
		}
		p := Ply{
			Index:      i,
			MoveNumber: (i+offset)/2 + 1,
			Mover:      SideToMove(fenBefore),
			SAN:        MoveToSAN(pos, mv),
			UCI:        mv.String(),
			Move:       mv,
			FENBefore:  fenBefore,
			Before:     pos.Pack(),
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return nil, fmt.Errorf("ply %d %q: %w", i, text, ErrIllegalMove)
		}
		p.FENAfter = pos.ToFEN()
		p.After = pos.Pack()
		plies = append(plies, p)
	}
	return plies, nil
}
