// Package engine drives an external UCI engine process for position evaluation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/metrics"
)

// DefaultMultiPV matches the number of answers a puzzle accepts.
const DefaultMultiPV = 3

// Config configures an engine session.
type Config struct {
	Path        string
	Logger      zerolog.Logger
	Metrics     *metrics.Manager
	HashMB      int           // Hash table size
	Threads     int           // Search threads
	Nice        int           // Nice value for the process (0 = disabled)
	MultiPV     int           // Lines reported per search (TopMoves returns at most this many)
	Depth       int           // Default search depth when a Limit leaves it unset
	CallTimeout time.Duration // Hard wall-clock bound per search

	// start launches the process; tests replace it.
	start func(Config) (process, error)
}

// Limit bounds one search.
type Limit struct {
	Depth   int
	Timeout time.Duration // overrides Config.CallTimeout when set
}

// Line is one ranked engine candidate, scored from the side to move.
type Line struct {
	Move  string // first move of the PV in UCI notation
	PV    []string
	Score Score
	Depth int
}

// Evaluator is what analysis code needs from an engine session.
type Evaluator interface {
	// Evaluate returns the bounded centipawn score of fen from pov's perspective.
	Evaluate(ctx context.Context, fen string, pov board.Color, lim Limit) (int, error)
	// TopMoves returns up to n candidate moves for the side to move, best first.
	TopMoves(ctx context.Context, fen string, n int, lim Limit) ([]Line, error)
}

// process is one running engine.
type process interface {
	search(fen string, depth int) ([]Line, error)
	close()
}

// errNoLines is a search that completed without reporting any line.
var errNoLines = errors.New("no results from engine")

// Session is one engine process serving sequential queries. It is not meant
// for concurrent use; calls are serialised.
type Session struct {
	cfg Config
	log zerolog.Logger
	m   *metrics.Manager

	mu     sync.Mutex
	proc   process
	closed bool
}

// Open starts the engine process.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Path == "" && cfg.start == nil {
		return nil, fmt.Errorf("%w: engine path required", ErrEngineStart)
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 128
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	if cfg.MultiPV == 0 {
		cfg.MultiPV = DefaultMultiPV
	}
	if cfg.Depth == 0 {
		cfg.Depth = 15
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	if cfg.start == nil {
		cfg.start = startUCI
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineStart, err)
	}

	s := &Session{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "engine").Logger(),
		m:   cfg.Metrics,
	}
	proc, err := s.launch()
	if err != nil {
		return nil, err
	}
	s.proc = proc

	s.log.Debug().
		Str("path", cfg.Path).
		Int("hash_mb", cfg.HashMB).
		Int("threads", cfg.Threads).
		Int("multipv", cfg.MultiPV).
		Msg("engine session opened")
	return s, nil
}

// WithSession opens a session, runs fn and always closes the session.
func WithSession(ctx context.Context, cfg Config, fn func(*Session) error) error {
	s, err := Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (s *Session) launch() (process, error) {
	proc, err := s.cfg.start(s.cfg)
	if err != nil {
		s.m.EngineStartFailed()
		s.log.Error().Err(err).Str("path", s.cfg.Path).Msg("failed to start engine")
		return nil, fmt.Errorf("%w: %v", ErrEngineStart, err)
	}
	s.m.EngineStarted()
	return proc, nil
}

// Close stops the engine process. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.proc != nil {
		s.proc.close()
		s.proc = nil
	}
	s.log.Debug().Msg("engine session closed")
	return nil
}

// Evaluate implements Evaluator.
func (s *Session) Evaluate(ctx context.Context, fen string, pov board.Color, lim Limit) (int, error) {
	lines, err := s.search(ctx, fen, lim)
	if err != nil {
		return 0, err
	}
	score := lines[0].Score
	if board.SideToMove(fen) != pov {
		score = score.Negate()
	}
	return score.Bounded(), nil
}

// TopMoves implements Evaluator. At most Config.MultiPV lines are available.
func (s *Session) TopMoves(ctx context.Context, fen string, n int, lim Limit) ([]Line, error) {
	if n > s.cfg.MultiPV {
		s.log.Debug().Int("requested", n).Int("multipv", s.cfg.MultiPV).Msg("more lines requested than the session reports")
	}
	lines, err := s.search(ctx, fen, lim)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(lines) > n {
		lines = lines[:n]
	}
	return lines, nil
}

type searchResult struct {
	lines []Line
	err   error
}

// search runs one bounded search and returns ranked, de-duplicated lines.
func (s *Session) search(ctx context.Context, fen string, lim Limit) ([]Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.m.Evaluation(metrics.OutcomeClosed, 0)
		return nil, ErrSessionClosed
	}
	if s.proc == nil {
		// Previous process was abandoned after a timeout or crash.
		proc, err := s.launch()
		if err != nil {
			s.m.Evaluation(metrics.OutcomeError, 0)
			return nil, fmt.Errorf("%w: restart: %w", ErrEvaluation, err)
		}
		s.proc = proc
		s.log.Info().Msg("engine restarted")
	}

	depth := lim.Depth
	if depth <= 0 {
		depth = s.cfg.Depth
	}
	timeout := lim.Timeout
	if timeout <= 0 {
		timeout = s.cfg.CallTimeout
	}

	proc := s.proc
	done := make(chan searchResult, 1)
	start := time.Now()
	go func() {
		lines, err := proc.search(fen, depth)
		done <- searchResult{lines: lines, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			s.m.Evaluation(metrics.OutcomeError, 0)
			if !errors.Is(r.err, errNoLines) {
				s.abandon()
			}
			return nil, fmt.Errorf("%w: %v", ErrEvaluation, r.err)
		}
		lines := rank(r.lines)
		if len(lines) == 0 {
			s.m.Evaluation(metrics.OutcomeError, 0)
			return nil, fmt.Errorf("%w: %v", ErrEvaluation, errNoLines)
		}
		s.m.Evaluation(metrics.OutcomeOK, time.Since(start).Seconds())
		return lines, nil
	case <-timer.C:
		s.m.Evaluation(metrics.OutcomeTimeout, 0)
		s.log.Warn().Str("fen", fen).Dur("timeout", timeout).Int("depth", depth).Msg("engine search timed out")
		s.abandon()
		return nil, ErrEvaluationTimeout
	case <-ctx.Done():
		s.m.Evaluation(metrics.OutcomeError, 0)
		s.abandon()
		return nil, fmt.Errorf("%w: %w", ErrEvaluation, ctx.Err())
	}
}

// abandon drops the current process. It is closed in the background so a
// hung engine cannot block the caller; the next search starts a new one.
func (s *Session) abandon() {
	proc := s.proc
	s.proc = nil
	if proc != nil {
		go proc.close()
	}
}

// rank orders lines best-first for the side to move and keeps one line per move.
func rank(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Score.Bounded() > lines[j].Score.Bounded()
	})
	for _, l := range lines {
		if l.Move == "" || seen[l.Move] {
			continue
		}
		seen[l.Move] = true
		out = append(out, l)
	}
	return out
}
