package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/metrics"
)

const (
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	afterE4  = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
)

// fakeProcess answers searches from a script keyed by FEN.
type fakeProcess struct {
	mu      sync.Mutex
	lines   map[string][]Line
	block   chan struct{} // when non-nil, searches wait on it
	err     error
	closed  bool
	queries int
}

func (f *fakeProcess) search(fen string, depth int) ([]Line, error) {
	f.mu.Lock()
	f.queries++
	block, err := f.block, f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return f.lines[fen], nil
}

func (f *fakeProcess) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed && f.block != nil {
		close(f.block)
	}
	f.closed = true
}

func openFake(t *testing.T, procs ...*fakeProcess) (*Session, *int) {
	t.Helper()
	starts := 0
	cfg := Config{
		Metrics:     metrics.NewManager(prometheus.NewRegistry()),
		CallTimeout: 50 * time.Millisecond,
		start: func(Config) (process, error) {
			if starts >= len(procs) {
				return nil, errors.New("no more processes")
			}
			p := procs[starts]
			starts++
			return p, nil
		},
	}
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, &starts
}

func TestScoreBounded(t *testing.T) {
	tests := []struct {
		score Score
		want  int
	}{
		{CP(35), 35},
		{CP(-120), -120},
		{MateIn(1), 9990},
		{MateIn(3), 9970},
		{MateIn(-2), -9980},
		{MateIn(0), -10000},
	}
	for _, tt := range tests {
		if got := tt.score.Bounded(); got != tt.want {
			t.Errorf("%v.Bounded() = %d, want %d", tt.score, got, tt.want)
		}
	}

	// Shorter mates outrank longer ones, any mate outranks centipawns.
	if !(MateIn(2).Bounded() > MateIn(5).Bounded()) {
		t.Error("mate in 2 should outrank mate in 5")
	}
	if !(MateIn(-5).Bounded() > MateIn(-2).Bounded()) {
		t.Error("being mated in 5 should outrank being mated in 2")
	}
	if !(MateIn(40).Bounded() > CP(3000).Bounded()) || !(MateIn(-40).Bounded() < CP(-3000).Bounded()) {
		t.Error("mate scores should be more extreme than centipawn scores")
	}
	if got := MateIn(3).Negate(); got != MateIn(-3) {
		t.Errorf("Negate = %v", got)
	}
}

func TestEvaluatePerspective(t *testing.T) {
	proc := &fakeProcess{lines: map[string][]Line{
		startFEN: {{Move: "e2e4", Score: CP(30)}},
		afterE4:  {{Move: "e7e5", Score: CP(-25)}},
	}}
	s, _ := openFake(t, proc)
	defer s.Close()
	ctx := context.Background()

	tests := []struct {
		fen  string
		pov  board.Color
		want int
	}{
		{startFEN, board.White, 30},
		{startFEN, board.Black, -30},
		{afterE4, board.White, 25},
		{afterE4, board.Black, -25},
	}
	for _, tt := range tests {
		got, err := s.Evaluate(ctx, tt.fen, tt.pov, Limit{Depth: 10})
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got != tt.want {
			t.Errorf("Evaluate(%v) = %d, want %d", tt.pov, got, tt.want)
		}
	}
	if proc.queries != len(tests) {
		t.Errorf("queries = %d, want %d on one process", proc.queries, len(tests))
	}
}

func TestTopMovesRanking(t *testing.T) {
	proc := &fakeProcess{lines: map[string][]Line{
		startFEN: {
			{Move: "d2d4", Score: CP(20)},
			{Move: "e2e4", Score: CP(35)},
			{Move: "e2e4", Score: CP(10)},
			{Move: "g1f3", Score: CP(25)},
			{Move: "c2c4", Score: CP(15)},
		},
	}}
	s, _ := openFake(t, proc)
	defer s.Close()

	lines, err := s.TopMoves(context.Background(), startFEN, 3, Limit{})
	if err != nil {
		t.Fatalf("TopMoves: %v", err)
	}
	want := []string{"e2e4", "g1f3", "d2d4"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i, w := range want {
		if lines[i].Move != w {
			t.Errorf("line %d = %s, want %s", i, lines[i].Move, w)
		}
	}
}

func TestEvaluateNoLines(t *testing.T) {
	proc := &fakeProcess{lines: map[string][]Line{}}
	s, starts := openFake(t, proc)
	defer s.Close()

	_, err := s.Evaluate(context.Background(), startFEN, board.White, Limit{})
	if !errors.Is(err, ErrEvaluation) {
		t.Fatalf("err = %v, want ErrEvaluation", err)
	}
	// An empty answer does not cost the process.
	if _, err := s.Evaluate(context.Background(), startFEN, board.White, Limit{}); !errors.Is(err, ErrEvaluation) {
		t.Fatalf("err = %v", err)
	}
	if *starts != 1 {
		t.Errorf("starts = %d, want 1", *starts)
	}
}

func TestEvaluateTimeoutRestarts(t *testing.T) {
	hung := &fakeProcess{block: make(chan struct{})}
	healthy := &fakeProcess{lines: map[string][]Line{startFEN: {{Move: "e2e4", Score: CP(18)}}}}
	s, starts := openFake(t, hung, healthy)
	defer s.Close()

	began := time.Now()
	_, err := s.Evaluate(context.Background(), startFEN, board.White, Limit{Timeout: 20 * time.Millisecond})
	if !errors.Is(err, ErrEvaluationTimeout) || !errors.Is(err, ErrEvaluation) {
		t.Fatalf("err = %v, want ErrEvaluationTimeout", err)
	}
	if time.Since(began) > 2*time.Second {
		t.Fatalf("timeout took %v", time.Since(began))
	}

	got, err := s.Evaluate(context.Background(), startFEN, board.White, Limit{})
	if err != nil {
		t.Fatalf("Evaluate after restart: %v", err)
	}
	if got != 18 || *starts != 2 {
		t.Errorf("got %d with %d starts, want 18 with 2", got, *starts)
	}

	// The hung process gets closed in the background.
	deadline := time.Now().Add(time.Second)
	for {
		hung.mu.Lock()
		closed := hung.closed
		hung.mu.Unlock()
		if closed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("hung process was not closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEvaluateContextCancel(t *testing.T) {
	hung := &fakeProcess{block: make(chan struct{})}
	s, _ := openFake(t, hung)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := s.Evaluate(ctx, startFEN, board.White, Limit{Timeout: time.Minute})
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrEvaluation) {
		t.Fatalf("err = %v, want cancelled evaluation", err)
	}
}

func TestEvaluateAfterClose(t *testing.T) {
	proc := &fakeProcess{lines: map[string][]Line{startFEN: {{Move: "e2e4", Score: CP(18)}}}}
	s, _ := openFake(t, proc)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !proc.closed {
		t.Error("process not closed")
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Evaluate(context.Background(), startFEN, board.White, Limit{})
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrSessionClosed) {
			t.Errorf("err = %v, want ErrSessionClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Evaluate after Close hung")
	}
	if _, err := s.TopMoves(context.Background(), startFEN, 3, Limit{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("TopMoves err = %v, want ErrSessionClosed", err)
	}
}

func TestOpenFailure(t *testing.T) {
	_, err := Open(context.Background(), Config{
		Metrics: metrics.NewManager(prometheus.NewRegistry()),
		start: func(Config) (process, error) {
			return nil, errors.New("exec: not found")
		},
	})
	if !errors.Is(err, ErrEngineStart) {
		t.Fatalf("err = %v, want ErrEngineStart", err)
	}

	_, err = Open(context.Background(), Config{})
	if !errors.Is(err, ErrEngineStart) {
		t.Fatalf("missing path: err = %v, want ErrEngineStart", err)
	}

	called := false
	err = WithSession(context.Background(), Config{Path: "/nonexistent/stockfish-binary"}, func(*Session) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrEngineStart) || called {
		t.Fatalf("WithSession err = %v, called = %v", err, called)
	}
}

func TestOpenDefaults(t *testing.T) {
	s, _ := openFake(t, &fakeProcess{})
	defer s.Close()
	if s.cfg.MultiPV != DefaultMultiPV || s.cfg.HashMB != 128 || s.cfg.Threads != 1 || s.cfg.Depth != 15 {
		t.Errorf("defaults = %+v", s.cfg)
	}
}

func TestWithSessionCloses(t *testing.T) {
	proc := &fakeProcess{}
	cfg := Config{
		Metrics: metrics.NewManager(prometheus.NewRegistry()),
		start:   func(Config) (process, error) { return proc, nil },
	}
	sentinel := errors.New("analysis failed")
	err := WithSession(context.Background(), cfg, func(s *Session) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v", err)
	}
	if !proc.closed {
		t.Error("session not closed on error path")
	}
}
