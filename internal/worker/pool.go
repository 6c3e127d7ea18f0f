// Package worker runs engine work on a fixed set of engine processes, one
// per worker, so independent games can be analysed in parallel.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/gamecoach/internal/engine"
)

// ErrPoolClosed is returned for work submitted after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// Handle is an open engine owned by one worker.
type Handle interface {
	engine.Evaluator
	Close() error
}

// Opener starts the engine for a worker.
type Opener func(ctx context.Context) (Handle, error)

// Config configures a Pool.
type Config struct {
	Workers int
	Engine  engine.Config
	Logger  zerolog.Logger

	// Open overrides how worker engines start; nil uses engine.Open.
	Open Opener
}

type slot struct {
	id int
	h  Handle // nil until first use
}

// Pool hands out worker engines. Each worker's engine is started on first
// use and kept until Close, and at most one caller uses a worker at a time.
type Pool struct {
	cfg   Config
	log   zerolog.Logger
	open  Opener
	slots chan *slot

	mu     sync.Mutex
	closed bool
}

// New creates a pool. No engine is started yet.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	open := cfg.Open
	if open == nil {
		ecfg := cfg.Engine
		open = func(ctx context.Context) (Handle, error) {
			return engine.Open(ctx, ecfg)
		}
	}

	p := &Pool{
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "worker_pool").Logger(),
		open:  open,
		slots: make(chan *slot, cfg.Workers),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.slots <- &slot{id: i}
	}
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.cfg.Workers }

// Do waits for a free worker and runs fn with its engine. A worker whose
// engine fails to start, or whose session fn found closed, is left empty and
// started again by the next caller.
func (p *Pool) Do(ctx context.Context, fn func(ev engine.Evaluator) error) error {
	var s *slot
	select {
	case s = <-p.slots:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { p.slots <- s }()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}

	if s.h == nil {
		h, err := p.open(ctx)
		if err != nil {
			p.log.Error().Err(err).Int("worker", s.id).Msg("worker engine failed to start")
			return err
		}
		s.h = h
		p.log.Debug().Int("worker", s.id).Msg("worker engine started")
	}
	err := fn(s.h)
	if errors.Is(err, engine.ErrSessionClosed) {
		_ = s.h.Close()
		s.h = nil
		p.log.Warn().Int("worker", s.id).Msg("worker engine closed, restarting on next use")
	}
	return err
}

// Map calls fn for indexes 0..n-1 across the workers. fn owns its own
// per-item failures; any error it returns cancels the remaining items and
// is returned from Map.
func (p *Pool) Map(ctx context.Context, n int, fn func(ctx context.Context, ev engine.Evaluator, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return p.Do(gctx, func(ev engine.Evaluator) error {
				return fn(gctx, ev, i)
			})
		})
	}
	return g.Wait()
}

// Close waits for running work to finish and stops every worker engine.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	held := make([]*slot, 0, p.cfg.Workers)
	for range p.cfg.Workers {
		s := <-p.slots
		if s.h != nil {
			if err := s.h.Close(); err != nil {
				errs = append(errs, err)
			}
			s.h = nil
		}
		held = append(held, s)
	}
	// Later callers still need a slot to observe the closed flag.
	for _, s := range held {
		p.slots <- s
	}
	p.log.Info().Int("workers", p.cfg.Workers).Msg("worker pool closed")
	return errors.Join(errs...)
}
