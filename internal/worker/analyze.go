package worker

import (
	"context"
	"errors"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/engine"
)

// Analyze runs each request on whichever worker is free. The result is
// aligned with reqs and a failed or short game leaves its slot nil. If a
// worker engine cannot start, every slot is nil and the start error is
// returned.
func Analyze(ctx context.Context, p *Pool, w *analysis.Walker, reqs []analysis.Request) ([]*accuracy.Report, error) {
	reports := make([]*accuracy.Report, len(reqs))
	err := p.Map(ctx, len(reqs), func(ctx context.Context, ev engine.Evaluator, i int) error {
		r, err := w.Analyze(ctx, ev, reqs[i])
		if err != nil {
			if analysis.Fatal(ctx, err) {
				return analysis.StopErr(ctx, err)
			}
			p.log.Warn().Err(err).Int("index", i).Str("game", reqs[i].Game.Label()).Msg("game analysis failed")
			return nil
		}
		reports[i] = r
		return nil
	})
	if errors.Is(err, engine.ErrEngineStart) {
		clear(reports)
	}
	return reports, err
}
