package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/freeeve/gamecoach/internal/config"
	"github.com/freeeve/gamecoach/internal/httpapi"
	"github.com/freeeve/gamecoach/internal/logx"
	"github.com/freeeve/gamecoach/internal/metrics"
	"github.com/freeeve/gamecoach/internal/store"
	"github.com/freeeve/gamecoach/internal/worker"
)

func main() {
	var (
		configPath    = flag.String("config", "", "YAML config file (overrides GAMECOACH_CONFIG)")
		addr          = flag.String("addr", "", "listen address (overrides config)")
		stockfishPath = flag.String("stockfish", "", "path to Stockfish executable (overrides config)")
		workers       = flag.Int("workers", 0, "number of engine workers (0 = config)")
		logLevel      = flag.String("log-level", "", "log level (overrides config)")
		puzzleFile    = flag.String("puzzles", "", "load puzzles from and save them to this file on shutdown (.json or .json.zst)")
	)
	flag.Parse()

	if *configPath != "" {
		if err := os.Setenv("GAMECOACH_CONFIG", *configPath); err != nil {
			fatalLog := logx.NewLogger("info")
			fatalLog.Fatal().Err(err).Msg("set config path")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fatalLog := logx.NewLogger("info")
		fatalLog.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *stockfishPath != "" {
		cfg.Engine.Path = *stockfishPath
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	cfg = cfg.Effective()

	logger := logx.NewLogger(cfg.LogLevel)
	m := metrics.Default()

	pool := worker.New(worker.Config{
		Workers: cfg.Workers,
		Engine:  cfg.EngineConfig(logx.Component(logger, "engine"), m),
		Logger:  logger,
	})

	registry := httpapi.NewRegistry()
	if *puzzleFile != "" {
		var saved []httpapi.StoredPuzzle
		switch err := store.ReadJSON(*puzzleFile, &saved); {
		case err == nil:
			logger.Info().Int("puzzles", registry.Restore(saved)).Str("file", *puzzleFile).Msg("puzzles loaded")
		case errors.Is(err, os.ErrNotExist):
			logger.Info().Str("file", *puzzleFile).Msg("no saved puzzles yet")
		default:
			logger.Fatal().Err(err).Msg("load puzzles")
		}
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.NewRouter(httpapi.Options{
			Config:   cfg,
			Pool:     pool,
			Registry: registry,
			Openings: cfg.Openings(logger),
			Logger:   logx.Component(logger, "http"),
			Metrics:  m,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("environment", cfg.Environment).
			Str("stockfish", cfg.Engine.Path).
			Int("workers", cfg.Workers).
			Int("depth", cfg.Analysis.Depth).
			Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}
	if err := pool.Close(); err != nil {
		logger.Warn().Err(err).Msg("engine shutdown error")
	}

	if *puzzleFile != "" {
		if err := store.WriteJSON(*puzzleFile, registry.Snapshot()); err != nil {
			logger.Error().Err(err).Msg("save puzzles")
		} else {
			logger.Info().Int("puzzles", registry.Len()).Str("file", *puzzleFile).Msg("puzzles saved")
		}
	}

	logger.Info().Msg("shutdown complete")
}
