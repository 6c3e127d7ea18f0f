package httpapi

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freeeve/gamecoach/internal/puzzle"
)

// StoredPuzzle is a mined candidate kept for solving.
type StoredPuzzle struct {
	ID        uuid.UUID        `json:"id"`
	Candidate puzzle.Candidate `json:"puzzle"`
	CreatedAt time.Time        `json:"created_at"`
	Attempts  []puzzle.Attempt `json:"attempts,omitempty"`
}

// Registry keeps generated puzzles in memory, newest last.
type Registry struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*StoredPuzzle
	order []uuid.UUID
	now   func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[uuid.UUID]*StoredPuzzle),
		now:  time.Now,
	}
}

// Add stores c under a new id.
func (r *Registry) Add(c puzzle.Candidate) StoredPuzzle {
	p := &StoredPuzzle{ID: uuid.New(), Candidate: c, CreatedAt: r.now().UTC()}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	return *p
}

// Get returns the puzzle with id.
func (r *Registry) Get(id uuid.UUID) (StoredPuzzle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return StoredPuzzle{}, false
	}
	out := *p
	out.Attempts = append([]puzzle.Attempt(nil), p.Attempts...)
	return out, true
}

// List returns up to limit puzzles, newest first. A non-empty username keeps
// only puzzles mined for that player.
func (r *Registry) List(username string, limit int) []StoredPuzzle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StoredPuzzle, 0, min(limit, len(r.order)))
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		p := r.byID[r.order[i]]
		if username != "" && p.Candidate.SourceUsername != username {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// Attempt grades move against the puzzle and records the attempt.
func (r *Registry) Attempt(id uuid.UUID, move string) (puzzle.Attempt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return puzzle.Attempt{}, false
	}
	a := puzzle.Check(p.Candidate, move)
	p.Attempts = append(p.Attempts, a)
	return a, true
}

// Snapshot copies every stored puzzle, oldest first.
func (r *Registry) Snapshot() []StoredPuzzle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StoredPuzzle, len(r.order))
	for i, id := range r.order {
		p := *r.byID[id]
		p.Attempts = append([]puzzle.Attempt(nil), p.Attempts...)
		out[i] = p
	}
	return out
}

// Restore adds previously saved puzzles, keeping their ids. Puzzles whose id
// is already present are skipped; the number added is returned.
func (r *Registry) Restore(saved []StoredPuzzle) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range saved {
		if _, dup := r.byID[p.ID]; dup || p.ID == uuid.Nil {
			continue
		}
		r.byID[p.ID] = &p
		r.order = append(r.order, p.ID)
		n++
	}
	return n
}

// Len returns the number of stored puzzles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
