package analysis_test

import (
	"testing"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/evalsource"
	"github.com/freeeve/gamecoach/internal/game"
)

func evals(cps ...int) []evalsource.EvalRecord {
	out := make([]evalsource.EvalRecord, len(cps))
	for i, cp := range cps {
		out[i] = evalsource.Eval(cp)
	}
	return out
}

func TestPhaseAccuracyFromEvals(t *testing.T) {
	seq := evals(20, 30, 25, 40, -280, -270)

	white := analysis.PhaseAccuracyFromEvals(seq, board.White, accuracy.DefaultScoring())
	// ply 0 is skipped; plies 2 and 4 are scored.
	if white.MovesAnalyzed != 2 {
		t.Errorf("white moves = %d, want 2", white.MovesAnalyzed)
	}
	if white.MoveQuality.Blunder != 1 {
		t.Errorf("white quality = %+v, want one blunder", white.MoveQuality)
	}
	if white.Color != "white" {
		t.Errorf("color = %q", white.Color)
	}

	black := analysis.PhaseAccuracyFromEvals(seq, board.Black, accuracy.DefaultScoring())
	if black.MovesAnalyzed != 3 {
		t.Errorf("black moves = %d, want 3", black.MovesAnalyzed)
	}
	if black.MoveQuality != (accuracy.QualityCounts{}) {
		t.Errorf("black quality = %+v, want none", black.MoveQuality)
	}
}

func TestPhaseAccuracyFromEvalsSkipsMissing(t *testing.T) {
	mate := 3
	seq := evals(20, 30, 0, 40, -280)
	seq[2] = evalsource.EvalRecord{Mate: &mate}

	white := analysis.PhaseAccuracyFromEvals(seq, board.White, accuracy.DefaultScoring())
	if white.MovesAnalyzed != 1 {
		t.Errorf("white moves = %d, want 1", white.MovesAnalyzed)
	}
	black := analysis.PhaseAccuracyFromEvals(seq, board.Black, accuracy.DefaultScoring())
	if black.MovesAnalyzed != 1 {
		t.Errorf("black moves = %d, want 1 (ply 3 has no prior value)", black.MovesAnalyzed)
	}
}

func TestPhaseAccuracyFromEvalsPhases(t *testing.T) {
	seq := make([]evalsource.EvalRecord, 70)
	for i := range seq {
		seq[i] = evalsource.Eval(0)
	}
	r := analysis.PhaseAccuracyFromEvals(seq, board.White, accuracy.DefaultScoring())

	// White plies 2..68: moves 2..15 opening, 16..30 middlegame, 31..35 endgame.
	tests := []struct {
		phase accuracy.Phase
		moves int
	}{
		{accuracy.Opening, 14},
		{accuracy.Middlegame, 15},
		{accuracy.Endgame, 5},
	}
	for _, tt := range tests {
		got := r.PhaseAccuracy.Get(tt.phase)
		if got.MovesAnalyzed != tt.moves {
			t.Errorf("%s moves = %d, want %d", tt.phase, got.MovesAnalyzed, tt.moves)
		}
		if got.Accuracy == nil || *got.Accuracy != 100 {
			t.Errorf("%s accuracy = %v, want 100", tt.phase, got.Accuracy)
		}
	}
}

func TestPhaseAccuracyFromEvalsEmpty(t *testing.T) {
	r := analysis.PhaseAccuracyFromEvals(nil, board.Black, accuracy.DefaultScoring())
	if r.MovesAnalyzed != 0 || r.OverallAccuracy != 0 {
		t.Errorf("got %+v", r)
	}
	if r.PhaseAccuracy.Opening.Accuracy != nil {
		t.Error("opening accuracy should be undefined")
	}
}

func TestAnalyzeEvals(t *testing.T) {
	var g evalsource.GameEvals
	g.ID = "abc"
	g.Winner = "black"
	g.Players.White.User.Name = "Alice"
	g.Players.Black.User.Name = "Bob"
	g.Analysis = evals(10, 20, 30, 40)

	r := newWalker(nil).AnalyzeEvals(g, "bob")
	if r.Color != "black" || r.MovesAnalyzed != 2 {
		t.Errorf("got color %q moves %d", r.Color, r.MovesAnalyzed)
	}
	if got := analysis.EvalsOutcome(g, board.Black); got != game.Win {
		t.Errorf("outcome = %q, want win", got)
	}
	if got := analysis.EvalsOutcome(g, board.White); got != game.Loss {
		t.Errorf("outcome = %q, want loss", got)
	}
	g.Winner, g.Status = "", "draw"
	if got := analysis.EvalsOutcome(g, board.White); got != game.Draw {
		t.Errorf("outcome = %q, want draw", got)
	}
}

func TestEvalsGame(t *testing.T) {
	var g evalsource.GameEvals
	g.ID = "q7ZvsdUF"
	g.Moves = "e4 e5 Nf3"
	g.Players.White.User.ID = "alice"
	g.Players.Black.User.Name = "Bob"

	rec := analysis.EvalsGame(g)
	if rec.White != "alice" || rec.Black != "Bob" {
		t.Errorf("players = %q %q", rec.White, rec.Black)
	}
	if rec.URL != "https://lichess.org/q7ZvsdUF" || len(rec.Moves) != 3 || rec.Moves[2] != "Nf3" {
		t.Errorf("record = %+v", rec)
	}
	if analysis.EvalsGame(evalsource.GameEvals{}).URL != "" {
		t.Error("game without id should have no url")
	}
}
