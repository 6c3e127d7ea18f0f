// Package httpapi exposes game analysis and puzzle mining over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/config"
	"github.com/freeeve/gamecoach/internal/eco"
	"github.com/freeeve/gamecoach/internal/engine"
	"github.com/freeeve/gamecoach/internal/evalsource"
	"github.com/freeeve/gamecoach/internal/metrics"
	"github.com/freeeve/gamecoach/internal/puzzle"
	"github.com/freeeve/gamecoach/internal/worker"
)

const (
	maxBodyBytes     = 8 << 20
	defaultListLimit = 20
	maxListLimit     = 100
	maxMoveLength    = 40
)

// Options wires the router to its collaborators. Config should already be
// passed through Effective.
type Options struct {
	Config   *config.Config
	Pool     *worker.Pool
	Registry *Registry     // nil creates an empty one
	Openings *eco.Database // nil leaves games unclassified
	Logger   zerolog.Logger
	Metrics  *metrics.Manager // nil uses metrics.Default
}

// Handler serves the analysis and puzzle endpoints.
type Handler struct {
	cfg      *config.Config
	pool     *worker.Pool
	walker   *analysis.Walker
	miner    *puzzle.Miner
	puzzles  *Registry
	openings *eco.Database
	log      zerolog.Logger
	m        *metrics.Manager
	maxBatch int
}

// NewRouter creates the HTTP router.
func NewRouter(opts Options) http.Handler {
	m := opts.Metrics
	if m == nil {
		m = metrics.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	h := &Handler{
		cfg:      opts.Config,
		pool:     opts.Pool,
		walker:   analysis.NewWalker(opts.Config.WalkerConfig(opts.Logger, m)),
		miner:    puzzle.NewMiner(opts.Config.MinerConfig(opts.Logger, m)),
		puzzles:  reg,
		openings: opts.Openings,
		log:      opts.Logger,
		m:        m,
		maxBatch: opts.Config.Analysis.MaxBatchGames,
	}

	r := chi.NewRouter()
	r.Use(CORS, RequestID, AccessLog(opts.Logger), middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Get("/readyz", h.health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", h.analyze)
		r.Post("/analyze/batch", h.analyzeBatch)
		r.Post("/phase-accuracy", h.phaseAccuracy)

		r.Route("/puzzles", func(r chi.Router) {
			r.Post("/", h.generatePuzzles)
			r.Get("/", h.listPuzzles)
			r.Get("/{id}", h.getPuzzle)
			r.Post("/{id}/attempt", h.attempt)
		})
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var body AnalyzeRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	g, err := body.resolve()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	var report *accuracy.Report
	err = h.pool.Do(r.Context(), func(ev engine.Evaluator) error {
		var err error
		report, err = h.walker.Analyze(r.Context(), ev, analysis.Request{Game: g, Player: body.Username})
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AnalyzeResponse{Report: report})
}

func (h *Handler) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if body.Username == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("username is required"))
		return
	}
	if len(body.Games) > h.maxBatch {
		h.log.Debug().Int("games", len(body.Games)).Int("max", h.maxBatch).Msg("batch truncated")
		body.Games = body.Games[:h.maxBatch]
	}
	log := h.log.With().Str("rid", GetRequestID(r.Context())).Logger()
	games, slots := resolveGames(log, body.Games)

	reqs := make([]analysis.Request, len(games))
	for i, g := range games {
		reqs[i] = analysis.Request{Game: g, Player: body.Username}
	}
	analyzed, err := worker.Analyze(r.Context(), h.pool, h.walker, reqs)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Unreadable games keep a nil slot so reports line up with the request.
	reports := make([]*accuracy.Report, len(body.Games))
	items := make([]analysis.Item, len(games))
	for i, g := range games {
		reports[slots[i]] = analyzed[i]
		color, _ := g.PlayerColor(body.Username)
		items[i] = analysis.Item{
			Report:  analyzed[i],
			Outcome: g.OutcomeFor(color),
			URL:     g.URL,
			Opening: h.openings.ClassifyGame(g),
		}
	}
	writeJSON(w, http.StatusOK, BatchResponse{Reports: reports, Summary: analysis.Summarize(items)})
}

type phaseAccuracyRequest struct {
	Username string                 `json:"username"`
	Games    []evalsource.GameEvals `json:"games"`
}

func (h *Handler) phaseAccuracy(w http.ResponseWriter, r *http.Request) {
	var body phaseAccuracyRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if body.Username == "" {
		writeError(w, r, http.StatusBadRequest, errors.New("username is required"))
		return
	}

	reports := make([]*accuracy.Report, len(body.Games))
	items := make([]analysis.Item, len(body.Games))
	for i, g := range body.Games {
		reports[i] = h.walker.AnalyzeEvals(g, body.Username)
		rec := analysis.EvalsGame(g)
		color, _ := rec.PlayerColor(body.Username)
		items[i] = analysis.Item{
			Report:  reports[i],
			Outcome: analysis.EvalsOutcome(g, color),
			URL:     rec.URL,
			Opening: h.openings.ClassifyGame(rec),
		}
	}
	writeJSON(w, http.StatusOK, PhaseAccuracyResponse{Reports: reports, Summary: analysis.Summarize(items)})
}

func (h *Handler) generatePuzzles(w http.ResponseWriter, r *http.Request) {
	var body PuzzlesRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	req := toPuzzleRequest(h.log.With().Str("rid", GetRequestID(r.Context())).Logger(), body)
	h.cfg.PuzzleDefaults(&req)
	if err := req.Normalize(); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	var found []puzzle.Candidate
	err := h.pool.Do(r.Context(), func(ev engine.Evaluator) error {
		var err error
		found, err = h.miner.MineGames(r.Context(), ev, req)
		return err
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	views := make([]PuzzleView, len(found))
	for i, c := range found {
		views[i] = toView(h.puzzles.Add(c))
	}
	n := len(found)
	h.log.Info().Str("username", req.Player).Int("games", len(req.Games)).Int("puzzles", n).Msg("puzzles generated")
	writeJSON(w, http.StatusCreated, PuzzlesResponse{Generated: &n, Puzzles: views})
}

func (h *Handler) listPuzzles(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, r, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	stored := h.puzzles.List(r.URL.Query().Get("username"), limit)
	views := make([]PuzzleView, len(stored))
	for i, p := range stored {
		views[i] = toView(p)
	}
	writeJSON(w, http.StatusOK, PuzzlesResponse{Puzzles: views})
}

func (h *Handler) getPuzzle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.puzzleID(w, r)
	if !ok {
		return
	}
	p, found := h.puzzles.Get(id)
	if !found {
		writeError(w, r, http.StatusNotFound, errors.New("puzzle not found"))
		return
	}
	writeJSON(w, http.StatusOK, toView(p))
}

func (h *Handler) attempt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.puzzleID(w, r)
	if !ok {
		return
	}
	var body AttemptRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	move := strings.TrimSpace(body.Move)
	if move == "" || len(move) > maxMoveLength {
		writeError(w, r, http.StatusBadRequest, fmt.Errorf("move must be 1 to %d characters", maxMoveLength))
		return
	}

	a, found := h.puzzles.Attempt(id, move)
	if !found {
		writeError(w, r, http.StatusNotFound, errors.New("puzzle not found"))
		return
	}
	h.m.PuzzleAttempt(a.Correct)
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) puzzleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, errors.New("puzzle not found"))
		return uuid.UUID{}, false
	}
	return id, true
}

// fail maps an analysis error onto a status code.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, board.ErrIllegalMove), errors.Is(err, board.ErrBadFEN):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrEngineStart), errors.Is(err, engine.ErrSessionClosed),
		errors.Is(err, worker.ErrPoolClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Msg("request failed")
	}
	writeError(w, r, status, err)
}
