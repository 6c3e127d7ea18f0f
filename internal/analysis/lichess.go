package analysis

import (
	"strings"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/evalsource"
	"github.com/freeeve/gamecoach/internal/game"
	"github.com/freeeve/gamecoach/internal/metrics"
)

// PhaseAccuracyFromEvals scores color's moves from pre-computed evaluations,
// where evals[i] is the White-perspective evaluation after ply i. The first
// ply has no prior evaluation and is skipped, as is any ply where either
// side of the pair has no centipawn value.
func PhaseAccuracyFromEvals(evals []evalsource.EvalRecord, color board.Color, s accuracy.Scoring) *accuracy.Report {
	tally := accuracy.NewTally(s)
	start := 0
	if color == board.Black {
		start = 1
	}
	for i := start; i < len(evals); i += 2 {
		if i == 0 {
			continue
		}
		prev, cur := evals[i-1].CP, evals[i].CP
		if prev == nil || cur == nil {
			continue
		}
		tally.Record(i/2+1, *prev, *cur, color == board.White)
	}

	r := tally.Report()
	r.Color = color.String()
	return r
}

// AnalyzeEvals scores player's moves in an exported game without an engine.
func (w *Walker) AnalyzeEvals(g evalsource.GameEvals, player string) *accuracy.Report {
	rec := EvalsGame(g)
	log := w.log.With().Str("game", rec.Label()).Logger()

	color := PlayerColor(log, w.m, rec, player)
	r := PhaseAccuracyFromEvals(g.Analysis, color, w.cfg.Scoring)
	w.m.Game(metrics.OutcomeOK)
	log.Debug().Str("color", r.Color).Int("moves", r.MovesAnalyzed).Msg("game scored from exported evals")
	return r
}

// EvalsGame converts an exported game into a game record. Moves keep the
// export's SAN text.
func EvalsGame(g evalsource.GameEvals) game.Game {
	white, black := g.Names()
	rec := game.Game{ID: g.ID, White: white, Black: black, Moves: strings.Fields(g.Moves)}
	if g.ID != "" {
		rec.URL = "https://lichess.org/" + g.ID
	}
	return rec
}

// EvalsOutcome maps the export's winner field onto color.
func EvalsOutcome(g evalsource.GameEvals, color board.Color) game.Outcome {
	switch g.Winner {
	case "":
		if g.Status == "draw" || g.Status == "stalemate" {
			return game.Draw
		}
		return game.Unknown
	case color.String():
		return game.Win
	default:
		return game.Loss
	}
}
