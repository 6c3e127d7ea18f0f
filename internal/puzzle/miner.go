package puzzle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/engine"
	"github.com/freeeve/gamecoach/internal/metrics"
)

// Options bounds one mining pass over one game.
type Options struct {
	Depth      int
	Timeout    time.Duration
	MinCPLoss  int // smallest loss that makes a puzzle
	MaxPuzzles int // 0 = unlimited
	TopK       int // engine candidates accepted as answers
}

// MinerConfig configures a Miner. Zero values take the defaults below.
type MinerConfig struct {
	Depth         int // strict pass depth (14)
	FallbackDepth int // relaxed pass depth (12)
	RelaxedCPLoss int // relaxed pass threshold (80)
	TopK          int // 3
	Timeout       time.Duration
	Logger        zerolog.Logger
	Metrics       *metrics.Manager
}

// Miner finds puzzle candidates in games.
type Miner struct {
	cfg MinerConfig
	log zerolog.Logger
	m   *metrics.Manager
}

// NewMiner creates a miner.
func NewMiner(cfg MinerConfig) *Miner {
	if cfg.Depth == 0 {
		cfg.Depth = 14
	}
	if cfg.FallbackDepth == 0 {
		cfg.FallbackDepth = 12
	}
	if cfg.RelaxedCPLoss == 0 {
		cfg.RelaxedCPLoss = 80
	}
	if cfg.TopK == 0 {
		cfg.TopK = 3
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &Miner{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "miner").Logger(),
		m:   cfg.Metrics,
	}
}

var errEnough = errors.New("puzzle quota reached")

// Mine walks one game and returns a candidate for every target move that
// lost at least opt.MinCPLoss centipawns, in game order. Short games yield
// nothing. A move that matches the engine's first choice is still emitted
// when the evaluations report the loss.
func (mn *Miner) Mine(ctx context.Context, ev engine.Evaluator, req analysis.Request, opt Options) ([]Candidate, error) {
	if opt.TopK <= 0 {
		opt.TopK = mn.cfg.TopK
	}
	g := req.Game
	log := mn.log.With().Str("game", g.Label()).Logger()

	plies, err := board.Replay(g.StartFEN, g.Moves)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", g.Label(), err)
	}
	if len(plies) < analysis.MinPlies {
		log.Debug().Int("plies", len(plies)).Msg("game too short to mine")
		return nil, nil
	}

	color := analysis.PlayerColor(log, mn.m, g, req.Player)
	lim := engine.Limit{Depth: opt.Depth, Timeout: opt.Timeout}

	var out []Candidate
	err = analysis.Sweep(ctx, ev, plies, lim, log, func(p board.Ply, prev, cur int) error {
		if p.Mover != color {
			return nil
		}
		loss := accuracy.CPLoss(prev, cur, color == board.White)
		if loss < opt.MinCPLoss {
			return nil
		}

		lines, err := ev.TopMoves(ctx, p.FENBefore, opt.TopK, lim)
		if err != nil {
			if analysis.Fatal(ctx, err) {
				return analysis.StopErr(ctx, err)
			}
			log.Warn().Err(err).Int("ply", p.Index).Msg("top moves failed, skipping candidate")
			return nil
		}

		c, ok := candidateAt(p, lines, loss)
		if !ok {
			log.Debug().Int("ply", p.Index).Str("played", p.UCI).Msg("no usable best move")
			return nil
		}
		if c.BestMoveUCI == p.UCI {
			log.Debug().Int("ply", p.Index).Str("played", p.UCI).Msg("played move is the engine's first choice")
		}
		c.GameURL = g.URL
		c.SourceUsername = req.Player
		out = append(out, c)

		if opt.MaxPuzzles > 0 && len(out) >= opt.MaxPuzzles {
			return errEnough
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnough) {
		return out, err
	}
	log.Debug().Int("candidates", len(out)).Int("min_cp_loss", opt.MinCPLoss).Msg("game mined")
	return out, nil
}

// candidateAt builds the candidate for ply p from the engine lines of the
// position before it. ok is false when the best move cannot be resolved.
func candidateAt(p board.Ply, lines []engine.Line, loss int) (Candidate, bool) {
	if len(lines) == 0 {
		return Candidate{}, false
	}
	pos := p.Before.Unpack()

	bestMv, err := board.ParseMove(pos, lines[0].Move)
	if err != nil {
		return Candidate{}, false
	}
	c := Candidate{
		FEN:         p.FENBefore,
		MoveNumber:  p.MoveNumber,
		BadMoveSAN:  p.SAN,
		BadMoveUCI:  p.UCI,
		BestMoveSAN: board.MoveToSAN(pos, bestMv),
		BestMoveUCI: bestMv.String(),
		CPLoss:      loss,
	}

	var answers answerSet
	answers.add(c.BestMoveUCI, c.BestMoveSAN)
	for _, l := range lines[1:] {
		mv, err := board.ParseMove(pos, l.Move)
		if err != nil {
			continue
		}
		answers.add(mv.String(), board.MoveToSAN(pos, mv))
	}
	c.AcceptedMoves = answers.moves
	return c, true
}
