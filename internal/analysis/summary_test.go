package analysis_test

import (
	"testing"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/eco"
	"github.com/freeeve/gamecoach/internal/game"
)

func ptr(v float64) *float64 { return &v }

func TestSummarize(t *testing.T) {
	items := []analysis.Item{
		{
			Report: &accuracy.Report{
				Color:           "white",
				OverallAccuracy: 90,
				PhaseAccuracy: accuracy.PhaseAccuracy{
					Opening: accuracy.PhaseStats{Accuracy: ptr(90), MovesAnalyzed: 10},
				},
				MoveQuality: accuracy.QualityCounts{Inaccuracy: 1},
			},
			Outcome: game.Win,
		},
		{Report: nil, Outcome: game.Loss},
		{
			Report: &accuracy.Report{
				Color:           "black",
				OverallAccuracy: 71,
				PhaseAccuracy: accuracy.PhaseAccuracy{
					Opening:    accuracy.PhaseStats{Accuracy: ptr(80), MovesAnalyzed: 15},
					Middlegame: accuracy.PhaseStats{Accuracy: ptr(60), MovesAnalyzed: 9},
				},
				MoveQuality: accuracy.QualityCounts{Mistake: 2, Blunder: 1},
			},
			Outcome: game.Draw,
			URL:     "https://lichess.org/xyz",
		},
	}

	s := analysis.Summarize(items)

	if s.TotalAnalyzedGames != 2 || s.GamesAsWhite != 1 || s.GamesAsBlack != 1 {
		t.Errorf("counts = %d/%d/%d", s.TotalAnalyzedGames, s.GamesAsWhite, s.GamesAsBlack)
	}
	if s.Overall.Accuracy == nil || *s.Overall.Accuracy != 80.5 {
		t.Errorf("overall accuracy = %v, want 80.5", s.Overall.Accuracy)
	}
	if s.Overall.Wins != 1 || s.Overall.Losses != 0 || s.Overall.Draws != 1 {
		t.Errorf("results = %+v", s.Overall)
	}
	if w := s.ByColor["white"]; w.Accuracy == nil || *w.Accuracy != 90 || w.Games != 1 {
		t.Errorf("white = %+v", w)
	}
	if b := s.ByColor["black"]; b.Accuracy == nil || *b.Accuracy != 71 || b.Games != 1 {
		t.Errorf("black = %+v", b)
	}

	phases := []struct {
		name  string
		acc   *float64
		count int
	}{
		{"opening", ptr(85), 2},
		{"middlegame", ptr(60), 1},
		{"endgame", nil, 0},
	}
	for _, tt := range phases {
		got := s.ByPhase[tt.name]
		if got.MovesAnalyzed != tt.count {
			t.Errorf("%s count = %d, want %d", tt.name, got.MovesAnalyzed, tt.count)
		}
		switch {
		case tt.acc == nil && got.Accuracy != nil:
			t.Errorf("%s accuracy = %v, want nil", tt.name, *got.Accuracy)
		case tt.acc != nil && (got.Accuracy == nil || *got.Accuracy != *tt.acc):
			t.Errorf("%s accuracy = %v, want %v", tt.name, got.Accuracy, *tt.acc)
		}
	}

	want := accuracy.QualityCounts{Inaccuracy: 1, Mistake: 2, Blunder: 1}
	if s.MoveQuality != want {
		t.Errorf("quality = %+v, want %+v", s.MoveQuality, want)
	}
	if len(s.GameAccuracies) != 2 || s.GameAccuracies[1].URL != "https://lichess.org/xyz" {
		t.Errorf("game list = %+v", s.GameAccuracies)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := analysis.Summarize(nil)
	if s.TotalAnalyzedGames != 0 || s.Overall.Accuracy != nil {
		t.Errorf("got %+v", s)
	}
	if len(s.ByPhase) != 3 || len(s.ByColor) != 2 {
		t.Errorf("by_phase/by_color should list every key: %v %v", s.ByPhase, s.ByColor)
	}
	if s.GameAccuracies == nil {
		t.Error("game list should be empty, not nil")
	}
}

func TestSummarizeOpenings(t *testing.T) {
	italian := &eco.Opening{ECO: "C50", Name: "Italian Game"}
	french := &eco.Opening{ECO: "C00", Name: "French Defense"}
	report := func(acc float64) *accuracy.Report {
		return &accuracy.Report{Color: "white", OverallAccuracy: acc}
	}

	s := analysis.Summarize([]analysis.Item{
		{Report: report(80), Opening: french},
		{Report: report(90), Opening: italian},
		{Report: report(70), Opening: &eco.Opening{ECO: "C50", Name: "Italian Game"}},
		{Report: report(60)},
		{Report: nil, Opening: french},
	})

	if len(s.Openings) != 2 {
		t.Fatalf("openings = %+v", s.Openings)
	}
	first := s.Openings[0]
	if first.ECO != "C50" || first.Games != 2 || first.Accuracy == nil || *first.Accuracy != 80 {
		t.Errorf("first = %+v", first)
	}
	if second := s.Openings[1]; second.ECO != "C00" || second.Games != 1 {
		t.Errorf("second = %+v", second)
	}
	if s.GameAccuracies[1].Opening != italian || s.GameAccuracies[3].Opening != nil {
		t.Errorf("game entries lost their opening")
	}
}
