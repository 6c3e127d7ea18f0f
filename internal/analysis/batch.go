package analysis

import (
	"context"
	"errors"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/engine"
)

// AnalyzeEach runs every request through one open evaluator. The result has
// one slot per request; a slot is nil when that game failed or was too short.
// Only a closed session or a cancelled context stops the loop early, and the
// returned slice is still aligned with reqs.
func (w *Walker) AnalyzeEach(ctx context.Context, ev engine.Evaluator, reqs []Request) ([]*accuracy.Report, error) {
	reports := make([]*accuracy.Report, len(reqs))
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r, err := w.Analyze(ctx, ev, req)
		if err != nil {
			if Fatal(ctx, err) {
				return reports, StopErr(ctx, err)
			}
			w.log.Warn().Err(err).Int("index", i).Str("game", req.Game.Label()).Msg("game analysis failed")
			continue
		}
		reports[i] = r
	}
	return reports, nil
}

// AnalyzeBatch shares one engine process across all requests. If the engine
// cannot start every slot is nil and the start error is returned.
func (w *Walker) AnalyzeBatch(ctx context.Context, ecfg engine.Config, reqs []Request) ([]*accuracy.Report, error) {
	reports := make([]*accuracy.Report, len(reqs))
	err := engine.WithSession(ctx, ecfg, func(s *engine.Session) error {
		var err error
		reports, err = w.AnalyzeEach(ctx, s, reqs)
		return err
	})
	if errors.Is(err, engine.ErrEngineStart) {
		w.log.Error().Err(err).Int("games", len(reqs)).Msg("batch aborted, engine did not start")
	}

	ok := 0
	for _, r := range reports {
		if r != nil {
			ok++
		}
	}
	w.log.Info().Int("analyzed", ok).Int("games", len(reqs)).Msg("batch done")
	return reports, err
}
