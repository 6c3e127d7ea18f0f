package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/config"
	"github.com/freeeve/gamecoach/internal/evalsource"
	"github.com/freeeve/gamecoach/internal/game"
	"github.com/freeeve/gamecoach/internal/logx"
	"github.com/freeeve/gamecoach/internal/metrics"
	"github.com/freeeve/gamecoach/internal/store"
	"github.com/freeeve/gamecoach/internal/worker"
)

var errStop = errors.New("game limit reached")

type result struct {
	Player  string             `json:"player"`
	Source  string             `json:"source"`
	Reports []*accuracy.Report `json:"reports"`
	Summary analysis.Summary   `json:"summary"`
}

func main() {
	var (
		pgnPath    = flag.String("pgn", "", "PGN file to analyse with Stockfish (supports .zst)")
		evalsPath  = flag.String("lichess-evals", "", "Lichess game export with evals, one JSON object per line (.jsonl, .gz or .zst)")
		player     = flag.String("player", "", "player whose moves are scored")
		maxGames   = flag.Int("max-games", 0, "maximum games to analyse (0 = config max_batch_games for -pgn, unlimited for -lichess-evals)")
		outputPath = flag.String("output", "-", "output file (- = stdout, .zst compresses)")
		workers    = flag.Int("workers", 0, "engine workers (0 = config)")
		depth      = flag.Int("depth", 0, "search depth (0 = config)")
	)
	flag.Parse()

	if *player == "" || (*pgnPath == "") == (*evalsPath == "") {
		fmt.Fprintln(os.Stderr, "Usage: accuracy -player <name> (-pgn <file.pgn[.zst]> | -lichess-evals <file.jsonl[.zst]>) [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fatalLog := logx.NewLogger("info")
		fatalLog.Fatal().Err(err).Msg("load config")
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *depth > 0 {
		cfg.Analysis.Depth = *depth
	}
	cfg = cfg.Effective()

	logger := logx.NewLogger(cfg.LogLevel)
	m := metrics.Default()
	walker := analysis.NewWalker(cfg.WalkerConfig(logger, m))
	openings := cfg.Openings(logger)
	start := time.Now()

	out := result{Player: *player}
	var items []analysis.Item

	if *evalsPath != "" {
		out.Source = *evalsPath
		n, err := evalsource.ReadFile(ctx, *evalsPath, func(g evalsource.GameEvals) error {
			if *maxGames > 0 && len(items) >= *maxGames {
				return errStop
			}
			rec := analysis.EvalsGame(g)
			color, ok := rec.PlayerColor(*player)
			if !ok {
				return nil
			}
			r := walker.AnalyzeEvals(g, *player)
			out.Reports = append(out.Reports, r)
			items = append(items, analysis.Item{
				Report:  r,
				Outcome: analysis.EvalsOutcome(g, color),
				URL:     rec.URL,
				Opening: openings.ClassifyGame(rec),
			})
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			logger.Fatal().Err(err).Int("games_read", n).Msg("read eval export")
		}
	} else {
		out.Source = *pgnPath
		limit := *maxGames
		if limit <= 0 {
			limit = cfg.Analysis.MaxBatchGames
		}
		games, err := game.ReadFile(ctx, *pgnPath, game.ReadOptions{Player: *player, MaxGames: limit, Logger: logger})
		if err != nil {
			logger.Fatal().Err(err).Msg("read pgn")
		}
		logger.Info().Int("games", len(games)).Int("workers", cfg.Workers).Int("depth", cfg.Analysis.Depth).Msg("analysing")

		pool := worker.New(worker.Config{
			Workers: cfg.Workers,
			Engine:  cfg.EngineConfig(logx.Component(logger, "engine"), m),
			Logger:  logger,
		})
		reqs := make([]analysis.Request, len(games))
		for i, g := range games {
			reqs[i] = analysis.Request{Game: g, Player: *player}
		}
		out.Reports, err = worker.Analyze(ctx, pool, walker, reqs)
		if cerr := pool.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("engine shutdown error")
		}
		if err != nil {
			logger.Fatal().Err(err).Msg("analyse games")
		}
		for i, g := range games {
			color, _ := g.PlayerColor(*player)
			items = append(items, analysis.Item{
				Report:  out.Reports[i],
				Outcome: g.OutcomeFor(color),
				URL:     g.URL,
				Opening: openings.ClassifyGame(g),
			})
		}
	}

	out.Summary = analysis.Summarize(items)

	if *outputPath == "-" {
		err = store.Encode(os.Stdout, *outputPath, out)
	} else {
		err = store.WriteJSON(*outputPath, out)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("write output")
	}

	acc := 0.0
	if out.Summary.Overall.Accuracy != nil {
		acc = *out.Summary.Overall.Accuracy
	}
	logger.Info().
		Int("games", out.Summary.TotalAnalyzedGames).
		Float64("accuracy", acc).
		Dur("elapsed", time.Since(start)).
		Msg("done")
}
