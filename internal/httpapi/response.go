package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/analysis"
	"github.com/freeeve/gamecoach/internal/game"
	"github.com/freeeve/gamecoach/internal/puzzle"
)

const bestMoveHint = "Find the best move for this position"

var errNoGame = errors.New("game or pgn is required")

// GameInput is a game given either as a structured record or as PGN text.
type GameInput struct {
	Game *game.Game `json:"game,omitempty"`
	PGN  string     `json:"pgn,omitempty"`
}

func (in GameInput) resolve() (game.Game, error) {
	switch {
	case in.Game != nil:
		return *in.Game, nil
	case in.PGN != "":
		return game.ParsePGN(in.PGN)
	default:
		return game.Game{}, errNoGame
	}
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Username string `json:"username"`
	GameInput
}

// AnalyzeResponse wraps one report; Report is null for games too short to score.
type AnalyzeResponse struct {
	Report *accuracy.Report `json:"report"`
}

// BatchRequest is the body of POST /v1/analyze/batch.
type BatchRequest struct {
	Username string      `json:"username"`
	Games    []GameInput `json:"games"`
}

// BatchResponse carries per-game reports aligned with the request and their
// summary.
type BatchResponse struct {
	Reports []*accuracy.Report `json:"reports"`
	Summary analysis.Summary   `json:"summary"`
}

// PhaseAccuracyResponse is the reply of POST /v1/phase-accuracy.
type PhaseAccuracyResponse struct {
	Reports []*accuracy.Report `json:"reports"`
	Summary analysis.Summary   `json:"summary"`
}

// PuzzlesRequest is the body of POST /v1/puzzles.
type PuzzlesRequest struct {
	Username   string      `json:"username"`
	Games      []GameInput `json:"games"`
	MaxGames   int         `json:"max_games,omitempty"`
	MaxPuzzles int         `json:"max_puzzles,omitempty"`
	MinCPLoss  int         `json:"min_cp_loss,omitempty"`
}

// PuzzleView is a stored puzzle without its solution.
type PuzzleView struct {
	ID             string    `json:"id"`
	FEN            string    `json:"fen"`
	MoveNumber     int       `json:"move_number"`
	BadMoveSAN     string    `json:"bad_move_san"`
	CPLoss         int       `json:"cp_loss"`
	BestMoveHint   string    `json:"best_move_hint"`
	GameURL        string    `json:"game_url,omitempty"`
	SourceUsername string    `json:"source_username,omitempty"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"created_at"`
}

func toView(p StoredPuzzle) PuzzleView {
	c := p.Candidate
	return PuzzleView{
		ID:             p.ID.String(),
		FEN:            c.FEN,
		MoveNumber:     c.MoveNumber,
		BadMoveSAN:     c.BadMoveSAN,
		CPLoss:         c.CPLoss,
		BestMoveHint:   bestMoveHint,
		GameURL:        c.GameURL,
		SourceUsername: c.SourceUsername,
		Attempts:       len(p.Attempts),
		CreatedAt:      p.CreatedAt,
	}
}

// PuzzlesResponse lists puzzles; Generated is set only on creation.
type PuzzlesResponse struct {
	Generated *int         `json:"generated,omitempty"`
	Puzzles   []PuzzleView `json:"puzzles"`
}

// AttemptRequest is the body of POST /v1/puzzles/{id}/attempt.
type AttemptRequest struct {
	Move string `json:"move"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), RequestID: GetRequestID(r.Context())})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// resolveGames resolves each input on its own. Inputs that cannot be read are
// logged and left out; slots[i] is the input index of games[i].
func resolveGames(log zerolog.Logger, inputs []GameInput) (games []game.Game, slots []int) {
	for i, in := range inputs {
		g, err := in.resolve()
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping unreadable game")
			continue
		}
		games = append(games, g)
		slots = append(slots, i)
	}
	return games, slots
}

func toPuzzleRequest(log zerolog.Logger, in PuzzlesRequest) puzzle.Request {
	games, _ := resolveGames(log, in.Games)
	return puzzle.Request{
		Player:     in.Username,
		Games:      games,
		MaxGames:   in.MaxGames,
		MaxPuzzles: in.MaxPuzzles,
		MinCPLoss:  in.MinCPLoss,
	}
}
