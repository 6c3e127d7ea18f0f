package engine

import (
	"fmt"

	"github.com/freeeve/uci"
)

// uciProcess wraps a UCI engine subprocess.
type uciProcess struct {
	eng *uci.Engine
}

func startUCI(cfg Config) (process, error) {
	eng, err := uci.NewEngine(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	opts := uci.Options{
		Hash:    cfg.HashMB,
		Threads: cfg.Threads,
		MultiPV: cfg.MultiPV,
		Ponder:  false,
		OwnBook: false,
	}
	if err := eng.SetOptions(opts); err != nil {
		eng.Close()
		return nil, fmt.Errorf("set options: %w", err)
	}

	// Lower CPU priority after options so the engine is initialised.
	if cfg.Nice > 0 {
		nice := cfg.Nice
		if nice > 19 {
			nice = 19
		}
		if err := eng.SetNice(nice); err != nil {
			cfg.Logger.Warn().Err(err).Int("nice", nice).Msg("failed to set nice value")
		}
	}

	return &uciProcess{eng: eng}, nil
}

// search returns every line reported at the deepest completed iteration.
// Scores are from the side to move.
func (p *uciProcess) search(fen string, depth int) ([]Line, error) {
	if err := p.eng.SetFEN(fen); err != nil {
		return nil, fmt.Errorf("set FEN: %w", err)
	}
	results, err := p.eng.GoDepth(depth, uci.HighestDepthOnly)
	if err != nil {
		return nil, fmt.Errorf("go depth %d: %w", depth, err)
	}
	if len(results.Results) == 0 {
		return nil, errNoLines
	}

	maxDepth := 0
	for _, r := range results.Results {
		if r.Depth > maxDepth {
			maxDepth = r.Depth
		}
	}

	lines := make([]Line, 0, len(results.Results))
	for _, r := range results.Results {
		if r.Depth != maxDepth || len(r.BestMoves) == 0 {
			continue
		}
		score := CP(r.Score)
		if r.Mate {
			score = MateIn(r.Score)
		}
		lines = append(lines, Line{
			Move:  r.BestMoves[0],
			PV:    r.BestMoves,
			Score: score,
			Depth: r.Depth,
		})
	}
	if len(lines) == 0 {
		return nil, errNoLines
	}
	return lines, nil
}

func (p *uciProcess) close() {
	p.eng.Close()
}
