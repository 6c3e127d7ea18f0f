// Package game holds normalized game records handed to the analysis core.
package game

import (
	"strings"

	"github.com/freeeve/gamecoach/internal/board"
)

// Game is one normalized game: player names, optional start position and
// the move list in SAN or UCI notation.
type Game struct {
	ID       string   `json:"id,omitempty"`
	URL      string   `json:"url,omitempty"`
	White    string   `json:"white"`
	Black    string   `json:"black"`
	StartFEN string   `json:"start_fen,omitempty"`
	Moves    []string `json:"moves"`
	Result   string   `json:"result,omitempty"` // "1-0", "0-1", "1/2-1/2" or "*"
}

// PlayerColor finds which side username played by case-insensitive substring
// match in either direction, White checked first. When neither side matches
// it returns White and ok=false.
func (g Game) PlayerColor(username string) (c board.Color, ok bool) {
	u := strings.ToLower(strings.TrimSpace(username))
	if nameMatches(u, g.White) {
		return board.White, true
	}
	if nameMatches(u, g.Black) {
		return board.Black, true
	}
	return board.White, false
}

func nameMatches(user, side string) bool {
	side = strings.ToLower(strings.TrimSpace(side))
	if user == "" || side == "" {
		return false
	}
	return strings.Contains(side, user) || strings.Contains(user, side)
}

// Outcome is the game result from one side's point of view.
type Outcome string

const (
	Win     Outcome = "win"
	Loss    Outcome = "loss"
	Draw    Outcome = "draw"
	Unknown Outcome = ""
)

// OutcomeFor maps the PGN result onto c.
func (g Game) OutcomeFor(c board.Color) Outcome {
	switch strings.TrimSpace(g.Result) {
	case "1-0":
		if c == board.White {
			return Win
		}
		return Loss
	case "0-1":
		if c == board.Black {
			return Win
		}
		return Loss
	case "1/2-1/2", "½-½":
		return Draw
	default:
		return Unknown
	}
}

// Label identifies the game in logs.
func (g Game) Label() string {
	switch {
	case g.URL != "":
		return g.URL
	case g.ID != "":
		return g.ID
	default:
		return g.White + " vs " + g.Black
	}
}
