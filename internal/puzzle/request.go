package puzzle

import (
	"context"
	"errors"
	"fmt"

	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/engine"
	"github.com/freeeve/gamecoach/internal/game"
)

// Request defaults and bounds.
const (
	DefaultMaxGames   = 15
	DefaultMaxPuzzles = 20
	DefaultMinCPLoss  = 120

	maxGamesLimit   = 50
	maxPuzzlesLimit = 50
	minCPLossFloor  = 60
	minCPLossCeil   = 500
)

// ErrInvalidRequest marks a Request outside its allowed bounds.
var ErrInvalidRequest = errors.New("invalid puzzle request")

// Request asks for puzzles mined from a player's games.
type Request struct {
	Player     string      `json:"username"`
	Games      []game.Game `json:"games"`
	MaxGames   int         `json:"max_games,omitempty"`
	MaxPuzzles int         `json:"max_puzzles,omitempty"`
	MinCPLoss  int         `json:"min_cp_loss,omitempty"`
}

// Normalize fills zero fields with defaults and rejects out-of-range values.
func (r *Request) Normalize() error {
	if r.MaxGames == 0 {
		r.MaxGames = DefaultMaxGames
	}
	if r.MaxPuzzles == 0 {
		r.MaxPuzzles = DefaultMaxPuzzles
	}
	if r.MinCPLoss == 0 {
		r.MinCPLoss = DefaultMinCPLoss
	}

	switch {
	case r.Player == "":
		return fmt.Errorf("%w: username is required", ErrInvalidRequest)
	case r.MaxGames < 1 || r.MaxGames > maxGamesLimit:
		return fmt.Errorf("%w: max_games %d outside 1..%d", ErrInvalidRequest, r.MaxGames, maxGamesLimit)
	case r.MaxPuzzles < 1 || r.MaxPuzzles > maxPuzzlesLimit:
		return fmt.Errorf("%w: max_puzzles %d outside 1..%d", ErrInvalidRequest, r.MaxPuzzles, maxPuzzlesLimit)
	case r.MinCPLoss < minCPLossFloor || r.MinCPLoss > minCPLossCeil:
		return fmt.Errorf("%w: min_cp_loss %d outside %d..%d", ErrInvalidRequest, r.MinCPLoss, minCPLossFloor, minCPLossCeil)
	}
	return nil
}

// MineGames mines up to MaxGames games with a per-game quota of
// MaxPuzzles/games (at least one), dropping candidates whose position and
// best move were already emitted. If the strict pass finds nothing and the
// threshold is above the relaxed one, a second pass runs at the relaxed
// threshold and fallback depth. A game that fails is skipped; only a closed
// session or a cancelled context ends the run with an error.
func (mn *Miner) MineGames(ctx context.Context, ev engine.Evaluator, req Request) ([]Candidate, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	games := req.Games
	if len(games) > req.MaxGames {
		games = games[:req.MaxGames]
	}
	if len(games) == 0 {
		return nil, nil
	}

	r := &run{
		miner: mn,
		req:   req,
		games: games,
		seen:  make(map[string]struct{}),
		quota: max(1, req.MaxPuzzles/len(games)),
	}

	if err := r.pass(ctx, ev, Options{Depth: mn.cfg.Depth, Timeout: mn.cfg.Timeout, MinCPLoss: req.MinCPLoss}); err != nil {
		return r.out, err
	}
	if len(r.out) == 0 && req.MinCPLoss > mn.cfg.RelaxedCPLoss {
		mn.log.Info().
			Str("player", req.Player).
			Int("min_cp_loss", req.MinCPLoss).
			Int("relaxed", mn.cfg.RelaxedCPLoss).
			Msg("no puzzles at strict threshold, relaxing")
		opt := Options{Depth: mn.cfg.FallbackDepth, Timeout: mn.cfg.Timeout, MinCPLoss: mn.cfg.RelaxedCPLoss}
		if err := r.pass(ctx, ev, opt); err != nil {
			return r.out, err
		}
	}

	mn.log.Info().Str("player", req.Player).Int("games", len(games)).Int("puzzles", len(r.out)).Msg("puzzles mined")
	return r.out, nil
}

// MineGamesSession runs MineGames on a session opened for the call.
func (mn *Miner) MineGamesSession(ctx context.Context, ecfg engine.Config, req Request) ([]Candidate, error) {
	var out []Candidate
	err := engine.WithSession(ctx, ecfg, func(s *engine.Session) error {
		var err error
		out, err = mn.MineGames(ctx, s, req)
		return err
	})
	return out, err
}

type run struct {
	miner *Miner
	req   Request
	games []game.Game
	seen  map[string]struct{}
	quota int
	out   []Candidate
}

func (r *run) full() bool { return len(r.out) >= r.req.MaxPuzzles }

func (r *run) pass(ctx context.Context, ev engine.Evaluator, opt Options) error {
	opt.MaxPuzzles = r.quota
	for _, g := range r.games {
		if r.full() {
			return nil
		}
		cands, err := r.miner.Mine(ctx, ev, analysis.Request{Game: g, Player: r.req.Player}, opt)
		if err != nil {
			if analysis.Fatal(ctx, err) {
				return analysis.StopErr(ctx, err)
			}
			r.miner.log.Warn().Err(err).Str("game", g.Label()).Msg("mining failed, skipping game")
			continue
		}
		for _, c := range cands {
			key := c.Key()
			if _, dup := r.seen[key]; dup {
				continue
			}
			r.seen[key] = struct{}{}
			r.out = append(r.out, c)
			r.miner.m.PuzzleMined()
			if r.full() {
				return nil
			}
		}
	}
	return nil
}
