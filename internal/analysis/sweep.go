// Package analysis walks games through an engine and scores a player's moves.
package analysis

import (
	"context"
	"errors"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/engine"
)

// MinPlies is the shortest game worth analysing.
const MinPlies = 4

// Visit receives each ply with White-perspective evaluations before and after it.
type Visit func(p board.Ply, prevCP, curCP int) error

// Sweep evaluates the start position and the position after every ply, in
// order, and calls visit for each ply. A failed evaluation reuses the previous
// value; a closed session or cancelled context stops the sweep.
func Sweep(ctx context.Context, ev engine.Evaluator, plies []board.Ply, lim engine.Limit, log zerolog.Logger, visit Visit) error {
	if len(plies) == 0 {
		return nil
	}

	prev, err := EvaluatePosition(ctx, ev, plies[0].FENBefore, plies[0].Before.Unpack(), lim)
	if err != nil {
		if Fatal(ctx, err) {
			return StopErr(ctx, err)
		}
		log.Warn().Err(err).Msg("start position evaluation failed, seeding 0")
		prev = 0
	}

	for _, p := range plies {
		cur, err := EvaluatePosition(ctx, ev, p.FENAfter, p.After.Unpack(), lim)
		if err != nil {
			if Fatal(ctx, err) {
				return StopErr(ctx, err)
			}
			log.Warn().Err(err).Int("ply", p.Index).Str("fen", p.FENAfter).Msg("evaluation failed, reusing previous")
			cur = prev
		}
		if err := visit(p, prev, cur); err != nil {
			return err
		}
		prev = cur
	}
	return nil
}

// EvaluatePosition scores fen from White's perspective. Finished positions are
// scored without the engine: checkmate as a full mate score, stalemate as 0.
// pos may be nil, in which case the engine is always asked.
func EvaluatePosition(ctx context.Context, ev engine.Evaluator, fen string, pos *pgn.GameState, lim engine.Limit) (int, error) {
	if pos != nil {
		switch board.Terminal(pos) {
		case board.Checkmate:
			if board.SideToMove(fen) == board.White {
				return -engine.MateScore, nil
			}
			return engine.MateScore, nil
		case board.Stalemate:
			return 0, nil
		}
	}
	return ev.Evaluate(ctx, fen, board.White, lim)
}

// Fatal reports whether err should end a walk instead of falling back to the
// previous evaluation.
func Fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, engine.ErrSessionClosed)
}

// StopErr prefers the context error when the walk was cancelled.
func StopErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
