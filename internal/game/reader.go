package game

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"
)

// ErrNoMoves is returned for PGN text without any movetext.
var ErrNoMoves = errors.New("pgn has no moves")

// ReadOptions filters games read from a PGN file.
type ReadOptions struct {
	Player   string // keep only games where Player matches a side (empty = all)
	MaxGames int    // stop after this many kept games (0 = unlimited)
	Logger   zerolog.Logger
}

// ReadFile streams games from a .pgn or .pgn.zst file. Moves are stored in
// UCI notation.
func ReadFile(ctx context.Context, path string, opts ReadOptions) ([]Game, error) {
	log := opts.Logger.With().Str("file", filepath.Base(path)).Logger()
	parser := pgn.Games(path)

	var games []Game
	skipped := 0
	stopped := false
gameLoop:
	for pg := range parser.Games {
		select {
		case <-ctx.Done():
			if !stopped {
				parser.Stop()
				stopped = true
			}
			break gameLoop
		default:
		}
		if opts.MaxGames > 0 && len(games) >= opts.MaxGames {
			if !stopped {
				parser.Stop()
				stopped = true
			}
			break gameLoop
		}

		g := fromParsed(pg)
		if opts.Player != "" {
			if _, ok := g.PlayerColor(opts.Player); !ok {
				skipped++
				continue
			}
		}
		games = append(games, g)
	}

	if err := parser.Err(); err != nil {
		return games, err
	}
	if err := ctx.Err(); err != nil {
		return games, err
	}

	log.Debug().Int("games", len(games)).Int("skipped", skipped).Msg("pgn file read")
	return games, nil
}

// ParsePGN reads the first game in text. Moves come back in UCI notation;
// comments, NAGs and variations are dropped by the scanner.
func ParsePGN(text string) (Game, error) {
	sc := pgn.NewPGNScanner(strings.NewReader(text))
	if !sc.Next() {
		return Game{}, ErrNoMoves
	}
	pg, err := sc.Scan()
	if err != nil {
		return Game{}, fmt.Errorf("parse pgn: %w", err)
	}
	g := fromParsed(pg)
	if len(g.Moves) == 0 {
		return g, ErrNoMoves
	}
	return g, nil
}

func fromParsed(pg *pgn.Game) Game {
	g := gameFromTags(pg.Tags)
	g.Moves = make([]string, 0, len(pg.Moves))
	for _, mv := range pg.Moves {
		g.Moves = append(g.Moves, mv.String())
	}
	return g
}

func gameFromTags(tags map[string]string) Game {
	g := Game{
		White:  tags["White"],
		Black:  tags["Black"],
		Result: tags["Result"],
		URL:    tags["Link"],
	}
	if g.URL == "" && strings.HasPrefix(tags["Site"], "http") {
		g.URL = tags["Site"]
	}
	if g.Result == "*" {
		g.Result = ""
	}
	if fen := tags["FEN"]; fen != "" && tags["SetUp"] != "0" {
		g.StartFEN = fen
	}
	return g
}
