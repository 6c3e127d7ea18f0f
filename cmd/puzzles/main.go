package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freeeve/gamecoach/internal/config"
	"github.com/freeeve/gamecoach/internal/game"
	"github.com/freeeve/gamecoach/internal/logx"
	"github.com/freeeve/gamecoach/internal/metrics"
	"github.com/freeeve/gamecoach/internal/puzzle"
	"github.com/freeeve/gamecoach/internal/store"
)

func main() {
	var (
		pgnPath    = flag.String("pgn", "", "PGN file to mine (supports .zst)")
		player     = flag.String("player", "", "player whose mistakes become puzzles")
		maxGames   = flag.Int("max-games", 0, "games to mine (0 = config)")
		maxPuzzles = flag.Int("max-puzzles", 0, "puzzles to keep (0 = config)")
		minCPLoss  = flag.Int("min-cp-loss", 0, "smallest centipawn loss that makes a puzzle (0 = config)")
		outputPath = flag.String("output", "-", "output file (- = stdout, .zst compresses)")
	)
	flag.Parse()

	if *pgnPath == "" || *player == "" {
		fmt.Fprintln(os.Stderr, "Usage: puzzles -pgn <file.pgn[.zst]> -player <name> [options]")
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
	cfg = cfg.Effective()
	logger := logx.NewLogger(cfg.LogLevel)
	m := metrics.Default()

	req := puzzle.Request{Player: *player, MaxGames: *maxGames, MaxPuzzles: *maxPuzzles, MinCPLoss: *minCPLoss}
	cfg.PuzzleDefaults(&req)
	if err := req.Normalize(); err != nil {
		logger.Fatal().Err(err).Msg("invalid request")
	}

	req.Games, err = game.ReadFile(ctx, *pgnPath, game.ReadOptions{Player: *player, MaxGames: req.MaxGames, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("read pgn")
	}
	logger.Info().
		Int("games", len(req.Games)).
		Int("max_puzzles", req.MaxPuzzles).
		Int("min_cp_loss", req.MinCPLoss).
		Msg("mining puzzles")

	start := time.Now()
	miner := puzzle.NewMiner(cfg.MinerConfig(logger, m))
	found, err := miner.MineGamesSession(ctx, cfg.EngineConfig(logx.Component(logger, "engine"), m), req)
	if err != nil {
		logger.Fatal().Err(err).Msg("mine puzzles")
	}

	if *outputPath == "-" {
		err = store.Encode(os.Stdout, *outputPath, found)
	} else {
		err = store.WriteJSON(*outputPath, found)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("write output")
	}
	logger.Info().Int("puzzles", len(found)).Dur("elapsed", time.Since(start)).Msg("done")
}
