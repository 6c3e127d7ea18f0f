package puzzle_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/engine"
	"github.com/freeeve/gamecoach/internal/engine/enginetest"
	"github.com/freeeve/gamecoach/internal/game"
	"github.com/freeeve/gamecoach/internal/metrics"
	"github.com/freeeve/gamecoach/internal/puzzle"
)

var sixPlies = []string{"e4", "e5", "Nf3", "Nc6", "Bc4", "Nf6"}

// fenBefore returns the position before ply i of moves.
func fenBefore(moves []string, i int) string {
	plies, err := board.Replay("", moves)
	if err != nil {
		panic(err)
	}
	return plies[i].FENBefore
}

func newMiner(m *metrics.Manager) *puzzle.Miner {
	if m == nil {
		m = metrics.NewManager(nil)
	}
	return puzzle.NewMiner(puzzle.MinerConfig{Logger: zerolog.Nop(), Metrics: m})
}

func aliceGame(moves ...string) game.Game {
	return game.Game{White: "alice", Black: "bob", Moves: moves, URL: "https://example.org/g1"}
}

// blunderEngine scores Nf3 (ply 2) as a 300cp drop for White and offers
// d4, Bc4 and Nc3 as the better moves.
func blunderEngine(swing int) *enginetest.Scripted {
	return &enginetest.Scripted{
		Evals: enginetest.CP(0, 0, 0, -swing, -swing),
		Lines: map[string][]engine.Line{
			fenBefore(sixPlies, 2): {
				enginetest.Line("d2d4", 30),
				enginetest.Line("f1c4", 20),
				enginetest.Line("b1c3", 10),
			},
		},
	}
}

func TestMine(t *testing.T) {
	ctx := context.Background()
	req := analysis.Request{Game: aliceGame(sixPlies[:4]...), Player: "alice"}

	Convey("Given a game where the player loses 300 centipawns on one move", t, func() {
		mn := newMiner(nil)

		Convey("A threshold above the loss finds nothing and never asks for top moves", func() {
			ev := blunderEngine(300)
			cands, err := mn.Mine(ctx, ev, req, puzzle.Options{Depth: 14, MinCPLoss: 301})
			So(err, ShouldBeNil)
			So(cands, ShouldBeEmpty)
			So(ev.TopCalls, ShouldEqual, 0)
		})

		Convey("A threshold at the loss yields exactly one candidate", func() {
			ev := blunderEngine(300)
			cands, err := mn.Mine(ctx, ev, req, puzzle.Options{Depth: 14, MinCPLoss: 300})
			So(err, ShouldBeNil)
			So(cands, ShouldHaveLength, 1)

			c := cands[0]
			So(c.FEN, ShouldEqual, fenBefore(sixPlies, 2))
			So(c.MoveNumber, ShouldEqual, 2)
			So(c.BadMoveSAN, ShouldEqual, "Nf3")
			So(c.BadMoveUCI, ShouldEqual, "g1f3")
			So(c.BestMoveSAN, ShouldEqual, "d4")
			So(c.BestMoveUCI, ShouldEqual, "d2d4")
			So(c.CPLoss, ShouldEqual, 300)
			So(c.GameURL, ShouldEqual, "https://example.org/g1")
			So(c.SourceUsername, ShouldEqual, "alice")
			So(c.AcceptedMoves, ShouldResemble, []string{"d2d4", "d4", "f1c4", "bc4", "b1c3", "nc3"})
		})

		Convey("Accepted answers always contain the best move in both notations", func() {
			cands, _ := mn.Mine(ctx, blunderEngine(300), req, puzzle.Options{MinCPLoss: 100})
			So(cands, ShouldHaveLength, 1)
			c := cands[0]
			So(c.AcceptedMoves, ShouldContain, board.CanonicalMove(c.BestMoveUCI))
			So(c.AcceptedMoves, ShouldContain, board.CanonicalMove(c.BestMoveSAN))
		})

		Convey("Playing the engine's first choice still yields a candidate when the loss is reported", func() {
			ev := blunderEngine(300)
			ev.Lines[fenBefore(sixPlies, 2)] = []engine.Line{enginetest.Line("g1f3", 0)}
			cands, err := mn.Mine(ctx, ev, req, puzzle.Options{MinCPLoss: 100})
			So(err, ShouldBeNil)
			So(cands, ShouldHaveLength, 1)
			So(cands[0].BestMoveUCI, ShouldEqual, "g1f3")
			So(cands[0].BadMoveUCI, ShouldEqual, "g1f3")
			So(cands[0].CPLoss, ShouldEqual, 300)
		})

		Convey("An illegal engine suggestion is skipped", func() {
			ev := blunderEngine(300)
			ev.Lines[fenBefore(sixPlies, 2)] = []engine.Line{enginetest.Line("a1a8", 0)}
			cands, err := mn.Mine(ctx, ev, req, puzzle.Options{MinCPLoss: 100})
			So(err, ShouldBeNil)
			So(cands, ShouldBeEmpty)
		})

		Convey("A failed top-moves query skips the candidate", func() {
			ev := blunderEngine(300)
			ev.TopErr = fmt.Errorf("%w: no lines", engine.ErrEvaluation)
			cands, err := mn.Mine(ctx, ev, req, puzzle.Options{MinCPLoss: 100})
			So(err, ShouldBeNil)
			So(cands, ShouldBeEmpty)
		})

		Convey("A closed session during top-moves ends the walk", func() {
			ev := blunderEngine(300)
			ev.TopErr = engine.ErrSessionClosed
			_, err := mn.Mine(ctx, ev, req, puzzle.Options{MinCPLoss: 100})
			So(errors.Is(err, engine.ErrSessionClosed), ShouldBeTrue)
		})

		Convey("A short game yields nothing", func() {
			ev := blunderEngine(300)
			short := analysis.Request{Game: aliceGame("e4", "e5", "Nf3"), Player: "alice"}
			cands, err := mn.Mine(ctx, ev, short, puzzle.Options{MinCPLoss: 60})
			So(err, ShouldBeNil)
			So(cands, ShouldBeNil)
			So(ev.EvalCalls, ShouldEqual, 0)
		})
	})

	Convey("Given a game with two blunders", t, func() {
		ev := &enginetest.Scripted{
			Evals: enginetest.CP(0, 0, 0, -300, -300, -600, -600),
			Lines: map[string][]engine.Line{
				fenBefore(sixPlies, 2): {enginetest.Line("d2d4", 0)},
				fenBefore(sixPlies, 4): {enginetest.Line("d2d4", 0)},
			},
		}
		req := analysis.Request{Game: aliceGame(sixPlies...), Player: "alice"}

		Convey("MaxPuzzles stops the walk early", func() {
			cands, err := newMiner(nil).Mine(ctx, ev, req, puzzle.Options{MinCPLoss: 100, MaxPuzzles: 1})
			So(err, ShouldBeNil)
			So(cands, ShouldHaveLength, 1)
			So(cands[0].MoveNumber, ShouldEqual, 2)
		})

		Convey("Without a cap both are returned in game order", func() {
			cands, err := newMiner(nil).Mine(ctx, ev, req, puzzle.Options{MinCPLoss: 100})
			So(err, ShouldBeNil)
			So(cands, ShouldHaveLength, 2)
			So(cands[1].MoveNumber, ShouldEqual, 3)
			So(cands[1].BadMoveSAN, ShouldEqual, "Bc4")
		})
	})
}

func TestCheck(t *testing.T) {
	Convey("Given a candidate with best move d4", t, func() {
		c := puzzle.Candidate{
			BestMoveSAN:   "d4",
			BestMoveUCI:   "d2d4",
			AcceptedMoves: []string{"d2d4", "d4", "f1c4", "bc4"},
		}

		Convey("Notation variants of accepted moves are correct", func() {
			for _, move := range []string{"d4", "D4", " d2d4 ", "d4!", "Bc4+", "f1c4"} {
				a := puzzle.Check(c, move)
				So(a.Correct, ShouldBeTrue)
				So(a.Message, ShouldEqual, "Correct. Puzzle solved.")
				So(a.BestMove, ShouldEqual, "d4")
			}
		})

		Convey("Other moves are wrong and name the best move", func() {
			a := puzzle.Check(c, " Nf3 ")
			So(a.Correct, ShouldBeFalse)
			So(a.Submitted, ShouldEqual, "Nf3")
			So(a.Message, ShouldEqual, "Not quite. Best move was d4.")
		})

		Convey("An empty answer is wrong", func() {
			So(puzzle.Check(c, "  ").Correct, ShouldBeFalse)
		})
	})
}

func TestMineGames(t *testing.T) {
	ctx := context.Background()

	Convey("Given the same game submitted twice", t, func() {
		reg := prometheus.NewRegistry()
		mn := newMiner(metrics.NewManager(reg))
		ev := blunderEngine(300)
		ev.Evals = enginetest.CP(0, 0, 0, -300, -300, 0, 0, 0, -300, -300)
		g := aliceGame(sixPlies[:4]...)

		cands, err := mn.MineGames(ctx, ev, puzzle.Request{Player: "alice", Games: []game.Game{g, g}})

		Convey("The duplicate position is emitted once", func() {
			So(err, ShouldBeNil)
			So(cands, ShouldHaveLength, 1)
			So(ev.EvalCalls, ShouldEqual, 10)

			expected := `
# HELP gamecoach_puzzle_candidates_total Puzzle candidates emitted
# TYPE gamecoach_puzzle_candidates_total counter
gamecoach_puzzle_candidates_total 1
`
			So(testutil.GatherAndCompare(reg, strings.NewReader(expected), "gamecoach_puzzle_candidates_total"), ShouldBeNil)
		})
	})

	Convey("Given a game whose only mistake is below the strict threshold", t, func() {
		mn := newMiner(nil)
		g := aliceGame(sixPlies[:4]...)

		Convey("A relaxed pass at the fallback depth finds it", func() {
			ev := blunderEngine(100)
			ev.Evals = enginetest.CP(0, 0, 0, -100, -100, 0, 0, 0, -100, -100)
			cands, err := mn.MineGames(ctx, ev, puzzle.Request{Player: "alice", Games: []game.Game{g}, MinCPLoss: 120})
			So(err, ShouldBeNil)
			So(cands, ShouldHaveLength, 1)
			So(cands[0].CPLoss, ShouldEqual, 100)
			So(ev.Depths, ShouldResemble, []int{14, 14, 14, 14, 14, 12, 12, 12, 12, 12})
		})

		Convey("No relaxed pass runs when the threshold is already low", func() {
			ev := blunderEngine(50)
			cands, err := mn.MineGames(ctx, ev, puzzle.Request{Player: "alice", Games: []game.Game{g}, MinCPLoss: 70})
			So(err, ShouldBeNil)
			So(cands, ShouldBeEmpty)
			So(ev.EvalCalls, ShouldEqual, 5)
		})
	})

	Convey("Given a batch with an unplayable game first", t, func() {
		mn := newMiner(nil)
		bad := aliceGame("e4", "e5", "Ke3", "Nc6")
		ev := blunderEngine(300)

		Convey("The good game still yields its puzzle", func() {
			cands, err := mn.MineGames(ctx, ev, puzzle.Request{
				Player: "alice",
				Games:  []game.Game{bad, aliceGame(sixPlies[:4]...)},
			})
			So(err, ShouldBeNil)
			So(cands, ShouldHaveLength, 1)
		})
	})

	Convey("Given more games than MaxGames", t, func() {
		mn := newMiner(nil)
		ev := &enginetest.Scripted{}
		games := []game.Game{aliceGame(sixPlies...), aliceGame(sixPlies...), aliceGame(sixPlies...)}

		Convey("Only the first MaxGames are mined", func() {
			_, err := mn.MineGames(ctx, ev, puzzle.Request{Player: "alice", Games: games, MaxGames: 2, MinCPLoss: 80})
			So(err, ShouldBeNil)
			So(ev.EvalCalls, ShouldEqual, 14)
		})
	})
}

func TestRequestNormalize(t *testing.T) {
	Convey("Given a request with only a player", t, func() {
		r := puzzle.Request{Player: "alice"}
		So(r.Normalize(), ShouldBeNil)
		So(r.MaxGames, ShouldEqual, puzzle.DefaultMaxGames)
		So(r.MaxPuzzles, ShouldEqual, puzzle.DefaultMaxPuzzles)
		So(r.MinCPLoss, ShouldEqual, puzzle.DefaultMinCPLoss)
	})

	Convey("Out of range values are rejected", t, func() {
		for _, r := range []puzzle.Request{
			{},
			{Player: "a", MinCPLoss: 59},
			{Player: "a", MinCPLoss: 501},
			{Player: "a", MaxGames: 51},
			{Player: "a", MaxPuzzles: -1},
		} {
			So(errors.Is(r.Normalize(), puzzle.ErrInvalidRequest), ShouldBeTrue)
		}
	})
}
