// Package config defines the service configuration and how it maps onto the
// engine, analysis and puzzle packages.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/eco"
	"github.com/freeeve/gamecoach/internal/engine"
	"github.com/freeeve/gamecoach/internal/metrics"
	"github.com/freeeve/gamecoach/internal/puzzle"
)

// Environments.
const (
	Development = "development"
	Production  = "production"
)

// Production caps applied by Effective.
const (
	prodAnalysisDepth = 12
	prodPuzzleDepth   = 12
	prodFallbackDepth = 9
	prodMaxBatchGames = 10
)

// Config contains process configuration.
type Config struct {
	// Environment is "development" or "production"; production lowers
	// search depth and batch size, see Effective.
	Environment string `koanf:"environment"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Workers is the number of engine processes serving requests.
	Workers int `koanf:"workers"`

	Engine   EngineConfig   `koanf:"engine"`
	Analysis AnalysisConfig `koanf:"analysis"`
	Puzzles  PuzzleConfig   `koanf:"puzzles"`
}

// EngineConfig configures each engine process.
type EngineConfig struct {
	Path        string        `koanf:"path"`
	HashMB      int           `koanf:"hash_mb"`
	Threads     int           `koanf:"threads"`
	Nice        int           `koanf:"nice"`
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// AnalysisConfig configures accuracy analysis.
type AnalysisConfig struct {
	Depth         int     `koanf:"depth"`
	OpeningEnd    int     `koanf:"opening_end"`
	MiddlegameEnd int     `koanf:"middlegame_end"`
	Inaccuracy    int     `koanf:"inaccuracy"`
	Mistake       int     `koanf:"mistake"`
	Blunder       int     `koanf:"blunder"`
	Decay         float64 `koanf:"decay"`
	MaxBatchGames int     `koanf:"max_batch_games"`
	ECODir        string  `koanf:"eco_dir"` // directory of ECO .tsv files; empty disables opening names
}

// PuzzleConfig configures puzzle mining.
type PuzzleConfig struct {
	Depth         int `koanf:"depth"`
	FallbackDepth int `koanf:"fallback_depth"`
	MinCPLoss     int `koanf:"min_cp_loss"`
	RelaxedCPLoss int `koanf:"relaxed_cp_loss"`
	MaxPuzzles    int `koanf:"max_puzzles"`
	MaxGames      int `koanf:"max_games"`
	TopK          int `koanf:"top_k"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Addr:        ":8080",
		Workers:     max(1, runtime.NumCPU()/2),
		Engine: EngineConfig{
			Path:        "stockfish",
			HashMB:      128,
			Threads:     1,
			CallTimeout: 10 * time.Second,
		},
		Analysis: AnalysisConfig{
			Depth:         15,
			OpeningEnd:    accuracy.DefaultPhaseBounds.OpeningEnd,
			MiddlegameEnd: accuracy.DefaultPhaseBounds.MiddlegameEnd,
			Inaccuracy:    accuracy.DefaultThresholds.Inaccuracy,
			Mistake:       accuracy.DefaultThresholds.Mistake,
			Blunder:       accuracy.DefaultThresholds.Blunder,
			Decay:         accuracy.DefaultDecay,
			MaxBatchGames: 20,
		},
		Puzzles: PuzzleConfig{
			Depth:         14,
			FallbackDepth: 12,
			MinCPLoss:     puzzle.DefaultMinCPLoss,
			RelaxedCPLoss: 80,
			MaxPuzzles:    puzzle.DefaultMaxPuzzles,
			MaxGames:      puzzle.DefaultMaxGames,
			TopK:          3,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	a, p := c.Analysis, c.Puzzles
	switch {
	case c.Environment != Development && c.Environment != Production:
		return fmt.Errorf("%w: unknown environment %q", ErrInvalidConfig, c.Environment)
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	case c.Engine.CallTimeout <= 0:
		return fmt.Errorf("%w: engine.call_timeout must be positive", ErrInvalidConfig)
	case a.Depth < 1 || p.Depth < 1 || p.FallbackDepth < 1:
		return fmt.Errorf("%w: search depths must be positive", ErrInvalidConfig)
	case a.OpeningEnd < 1 || a.MiddlegameEnd <= a.OpeningEnd:
		return fmt.Errorf("%w: phase bounds %d/%d must be ascending", ErrInvalidConfig, a.OpeningEnd, a.MiddlegameEnd)
	case a.Inaccuracy < 1 || a.Mistake <= a.Inaccuracy || a.Blunder <= a.Mistake:
		return fmt.Errorf("%w: quality thresholds %d/%d/%d must be ascending", ErrInvalidConfig, a.Inaccuracy, a.Mistake, a.Blunder)
	case a.Decay <= 0:
		return fmt.Errorf("%w: analysis.decay must be positive", ErrInvalidConfig)
	case a.MaxBatchGames < 1:
		return fmt.Errorf("%w: analysis.max_batch_games must be at least 1", ErrInvalidConfig)
	case p.TopK < 1:
		return fmt.Errorf("%w: puzzles.top_k must be at least 1", ErrInvalidConfig)
	case p.RelaxedCPLoss < 1:
		return fmt.Errorf("%w: puzzles.relaxed_cp_loss must be positive", ErrInvalidConfig)
	}

	req := puzzle.Request{Player: "-", MaxGames: p.MaxGames, MaxPuzzles: p.MaxPuzzles, MinCPLoss: p.MinCPLoss}
	if err := req.Normalize(); err != nil {
		return fmt.Errorf("%w: puzzles: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Effective returns the configuration with environment overrides applied.
// Production caps search depth and the number of games per batch.
func (c *Config) Effective() *Config {
	out := *c
	if c.Environment == Production {
		out.Analysis.Depth = min(out.Analysis.Depth, prodAnalysisDepth)
		out.Analysis.MaxBatchGames = min(out.Analysis.MaxBatchGames, prodMaxBatchGames)
		out.Puzzles.Depth = min(out.Puzzles.Depth, prodPuzzleDepth)
		out.Puzzles.FallbackDepth = min(out.Puzzles.FallbackDepth, prodFallbackDepth)
	}
	return &out
}

// Scoring returns the accuracy calibration.
func (c *Config) Scoring() accuracy.Scoring {
	a := c.Analysis
	return accuracy.Scoring{
		Model:      accuracy.Model{Decay: a.Decay},
		Bounds:     accuracy.PhaseBounds{OpeningEnd: a.OpeningEnd, MiddlegameEnd: a.MiddlegameEnd},
		Thresholds: accuracy.Thresholds{Inaccuracy: a.Inaccuracy, Mistake: a.Mistake, Blunder: a.Blunder},
	}
}

// EngineConfig returns the settings for one engine session. Sessions report
// enough lines for puzzle answers.
func (c *Config) EngineConfig(log zerolog.Logger, m *metrics.Manager) engine.Config {
	return engine.Config{
		Path:        c.Engine.Path,
		Logger:      log,
		Metrics:     m,
		HashMB:      c.Engine.HashMB,
		Threads:     c.Engine.Threads,
		Nice:        c.Engine.Nice,
		MultiPV:     c.Puzzles.TopK,
		Depth:       c.Analysis.Depth,
		CallTimeout: c.Engine.CallTimeout,
	}
}

// WalkerConfig returns the accuracy walker settings.
func (c *Config) WalkerConfig(log zerolog.Logger, m *metrics.Manager) analysis.WalkerConfig {
	return analysis.WalkerConfig{
		Scoring: c.Scoring(),
		Depth:   c.Analysis.Depth,
		Logger:  log,
		Metrics: m,
	}
}

// MinerConfig returns the puzzle miner settings.
func (c *Config) MinerConfig(log zerolog.Logger, m *metrics.Manager) puzzle.MinerConfig {
	return puzzle.MinerConfig{
		Depth:         c.Puzzles.Depth,
		FallbackDepth: c.Puzzles.FallbackDepth,
		RelaxedCPLoss: c.Puzzles.RelaxedCPLoss,
		TopK:          c.Puzzles.TopK,
		Logger:        log,
		Metrics:       m,
	}
}

// PuzzleDefaults fills unset request limits from the configuration.
func (c *Config) PuzzleDefaults(r *puzzle.Request) {
	if r.MaxGames == 0 {
		r.MaxGames = c.Puzzles.MaxGames
	}
	if r.MaxPuzzles == 0 {
		r.MaxPuzzles = c.Puzzles.MaxPuzzles
	}
	if r.MinCPLoss == 0 {
		r.MinCPLoss = c.Puzzles.MinCPLoss
	}
}

// Openings loads the ECO database from Analysis.ECODir. It returns nil when
// no directory is configured or the load fails; games are then reported
// without opening names.
func (c *Config) Openings(log zerolog.Logger) *eco.Database {
	if c.Analysis.ECODir == "" {
		return nil
	}
	db := eco.NewDatabase()
	if err := db.LoadDir(c.Analysis.ECODir); err != nil {
		log.Warn().Err(err).Str("dir", c.Analysis.ECODir).Msg("failed to load ECO database")
		return nil
	}
	log.Info().Int("openings", db.Count()).Msg("ECO database loaded")
	return db
}
