package board

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/freeeve/pgn/v3"
)

const (
	files = "abcdefgh"
	ranks = "12345678"
)

var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// MoveToSAN renders mv in standard algebraic notation for the position it is
// played from. pos is not modified.
func MoveToSAN(pos *pgn.GameState, mv pgn.Mv) string {
	var san string

	if mv.Flags == flagCastle {
		if mv.To > mv.From {
			san = "O-O"
		} else {
			san = "O-O-O"
		}
		return san + checkSuffix(pos, mv)
	}

	fromSq := int(mv.From)
	fromFile := fromSq % 8
	toFile := int(mv.To) % 8
	toRank := int(mv.To) / 8

	// 'P', 'N', ... for white, lowercase for black
	piece := pos.PieceAt(mv.From)
	isPawn := piece == 'P' || piece == 'p'
	isCapture := pos.PieceAt(mv.To) != 0 || (isPawn && mv.Flags == flagEnPassant)

	if isPawn {
		if isCapture {
			san = string(files[fromFile]) + "x"
		}
		san += string(files[toFile]) + string(ranks[toRank])
		switch mv.Promo {
		case pgn.PromoQueen:
			san += "=Q"
		case pgn.PromoRook:
			san += "=R"
		case pgn.PromoBishop:
			san += "=B"
		case pgn.PromoKnight:
			san += "=N"
		}
		return san + checkSuffix(pos, mv)
	}

	pieceChar := upper(piece)
	san = string(pieceChar)

	// Disambiguate when another piece of the same type reaches the square.
	sameFile, sameRank, ambiguous := false, false, false
	for _, other := range pgn.GenerateLegalMoves(pos) {
		if other.To != mv.To || other.From == mv.From {
			continue
		}
		if upper(pos.PieceAt(other.From)) != pieceChar {
			continue
		}
		ambiguous = true
		if int(other.From)%8 == fromFile {
			sameFile = true
		}
		if int(other.From)/8 == fromSq/8 {
			sameRank = true
		}
	}
	if ambiguous {
		switch {
		case !sameFile:
			san += string(files[fromFile])
		case !sameRank:
			san += string(ranks[fromSq/8])
		default:
			san += string(files[fromFile]) + string(ranks[fromSq/8])
		}
	}

	if isCapture {
		san += "x"
	}
	san += string(files[toFile]) + string(ranks[toRank])
	return san + checkSuffix(pos, mv)
}

func checkSuffix(pos *pgn.GameState, mv pgn.Mv) string {
	next := pos.Copy()
	if pgn.ApplyMove(next, mv) != nil || !next.IsInCheck() {
		return ""
	}
	if len(pgn.GenerateLegalMoves(next)) == 0 {
		return "#"
	}
	return "+"
}

func upper[T ~byte | ~rune](c T) T {
	if c >= 'a' && c <= 'z' {
		return c - 32
	}
	return c
}

// ParseMove resolves a move given in SAN ("Nf3", "exd8=Q+", "O-O") or UCI
// ("g1f3", "e7e8q") notation against the legal moves of pos.
func ParseMove(pos *pgn.GameState, text string) (pgn.Mv, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimRight(s, "!?")
	if s == "" {
		return pgn.Mv{}, fmt.Errorf("empty move: %w", ErrIllegalMove)
	}

	if lower := strings.ToLower(s); uciPattern.MatchString(lower) {
		for _, mv := range pgn.GenerateLegalMoves(pos) {
			if mv.String() == lower {
				return mv, nil
			}
		}
	}

	san := strings.TrimRight(s, "+#")
	san = strings.ReplaceAll(san, "0-0-0", "O-O-O")
	san = strings.ReplaceAll(san, "0-0", "O-O")
	mv, err := pgn.ParseSAN(pos, san)
	if err != nil {
		return pgn.Mv{}, fmt.Errorf("%q: %w", text, ErrIllegalMove)
	}
	return mv, nil
}

// CanonicalMove normalises move text for answer matching: trimmed,
// lowercased, with check, mate and annotation marks and whitespace removed.
func CanonicalMove(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '+', '#', '!', '?', ' ', '\t', '\n', '\r':
			return -1
		}
		if r >= 'A' && r <= 'Z' {
			return r + 32
		}
		return r
	}, strings.TrimSpace(text))
}
