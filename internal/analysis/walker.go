package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/engine"
	"github.com/freeeve/gamecoach/internal/game"
	"github.com/freeeve/gamecoach/internal/metrics"
)

// WalkerConfig configures accuracy analysis.
type WalkerConfig struct {
	Scoring accuracy.Scoring
	Depth   int           // engine search depth per position
	Timeout time.Duration // hard bound per engine call (0 = session default)
	Logger  zerolog.Logger
	Metrics *metrics.Manager
}

// Walker replays games and builds accuracy reports for one player.
type Walker struct {
	cfg WalkerConfig
	log zerolog.Logger
	m   *metrics.Manager
}

// NewWalker creates a walker. Zero-value fields take the reference defaults.
func NewWalker(cfg WalkerConfig) *Walker {
	if cfg.Scoring == (accuracy.Scoring{}) {
		cfg.Scoring = accuracy.DefaultScoring()
	}
	if cfg.Depth == 0 {
		cfg.Depth = 15
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &Walker{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "walker").Logger(),
		m:   cfg.Metrics,
	}
}

// Request pairs a game with the player to analyse.
type Request struct {
	Game   game.Game
	Player string
}

// Analyze scores the player's moves in one game using ev. It returns a nil
// report and nil error for games shorter than MinPlies. A move list that
// cannot be replayed fails with board.ErrIllegalMove or board.ErrBadFEN.
func (w *Walker) Analyze(ctx context.Context, ev engine.Evaluator, req Request) (*accuracy.Report, error) {
	g := req.Game
	log := w.log.With().Str("game", g.Label()).Logger()

	plies, err := board.Replay(g.StartFEN, g.Moves)
	if err != nil {
		w.m.Game(metrics.OutcomeFailed)
		return nil, fmt.Errorf("replay %s: %w", g.Label(), err)
	}
	if len(plies) < MinPlies {
		w.m.Game(metrics.OutcomeTooShort)
		log.Debug().Int("plies", len(plies)).Msg("game too short to analyze")
		return nil, nil
	}

	color := PlayerColor(log, w.m, g, req.Player)
	tally := accuracy.NewTally(w.cfg.Scoring)
	lim := engine.Limit{Depth: w.cfg.Depth, Timeout: w.cfg.Timeout}

	err = Sweep(ctx, ev, plies, lim, log, func(p board.Ply, prev, cur int) error {
		if p.Mover == color {
			tally.Record(p.MoveNumber, prev, cur, color == board.White)
		}
		return nil
	})
	if err != nil {
		w.m.Game(metrics.OutcomeFailed)
		return nil, err
	}

	r := tally.Report()
	r.Color = color.String()
	w.m.Game(metrics.OutcomeOK)
	log.Debug().
		Str("color", r.Color).
		Int("moves", r.MovesAnalyzed).
		Float64("accuracy", r.OverallAccuracy).
		Msg("game analyzed")
	return r, nil
}

// PlayerColor resolves which side player had in g. When neither name matches
// it logs a warning, counts it, and falls back to White.
func PlayerColor(log zerolog.Logger, m *metrics.Manager, g game.Game, player string) board.Color {
	color, ok := g.PlayerColor(player)
	if !ok {
		m.AmbiguousColor()
		log.Warn().
			Str("player", player).
			Str("white", g.White).
			Str("black", g.Black).
			Msg("player matches neither side, assuming white")
	}
	return color
}

// AnalyzeGame opens a session for one game and closes it afterwards.
func (w *Walker) AnalyzeGame(ctx context.Context, ecfg engine.Config, req Request) (*accuracy.Report, error) {
	var report *accuracy.Report
	err := engine.WithSession(ctx, ecfg, func(s *engine.Session) error {
		var err error
		report, err = w.Analyze(ctx, s, req)
		return err
	})
	return report, err
}
