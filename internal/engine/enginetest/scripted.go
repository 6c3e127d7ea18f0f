// Package enginetest provides a scripted Evaluator for tests that should not
// need a real engine binary.
package enginetest

import (
	"context"
	"sync"

	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/engine"
)

// Result is one scripted Evaluate answer, White's perspective.
type Result struct {
	CP  int
	Err error
}

// CP scripts plain centipawn answers.
func CP(values ...int) []Result {
	out := make([]Result, len(values))
	for i, v := range values {
		out[i] = Result{CP: v}
	}
	return out
}

// Scripted answers Evaluate calls in order from Evals and TopMoves calls from
// Lines keyed by FEN. It is safe for concurrent use.
type Scripted struct {
	mu sync.Mutex

	Evals    []Result
	Fallback int                      // answer once Evals is used up
	Lines    map[string][]engine.Line // TopMoves answers by FEN
	TopErr   error                    // returned by TopMoves when set

	EvalCalls int
	TopCalls  int
	Seen      []string // FENs passed to Evaluate, in order
	Depths    []int    // Limit.Depth of each Evaluate call
}

// Evaluate implements engine.Evaluator.
func (s *Scripted) Evaluate(ctx context.Context, fen string, pov board.Color, lim engine.Limit) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Seen = append(s.Seen, fen)
	s.Depths = append(s.Depths, lim.Depth)
	r := Result{CP: s.Fallback}
	if s.EvalCalls < len(s.Evals) {
		r = s.Evals[s.EvalCalls]
	}
	s.EvalCalls++
	if r.Err != nil {
		return 0, r.Err
	}
	if pov == board.Black {
		return -r.CP, nil
	}
	return r.CP, nil
}

// TopMoves implements engine.Evaluator.
func (s *Scripted) TopMoves(ctx context.Context, fen string, n int, lim engine.Limit) ([]engine.Line, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TopCalls++
	if s.TopErr != nil {
		return nil, s.TopErr
	}
	lines := s.Lines[fen]
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines, nil
}

// Line builds a centipawn line for move.
func Line(move string, cp int) engine.Line {
	return engine.Line{Move: move, PV: []string{move}, Score: engine.Score{Centipawns: cp}}
}
