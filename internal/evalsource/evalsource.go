// Package evalsource reads pre-computed per-ply evaluations exported by
// Lichess (one game JSON object per line, optionally zstd or gzip compressed).
package evalsource

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// EvalRecord is the evaluation after one ply. CP is nil when the export has
// no centipawn value for the ply (mate announcements, missing analysis).
type EvalRecord struct {
	CP       *int      `json:"eval,omitempty"`
	Mate     *int      `json:"mate,omitempty"`
	Best     string    `json:"best,omitempty"`
	Judgment *Judgment `json:"judgment,omitempty"`
}

// Judgment is Lichess' own annotation of a ply.
type Judgment struct {
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
}

// Eval returns a record carrying a centipawn value.
func Eval(cp int) EvalRecord { return EvalRecord{CP: &cp} }

type user struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type player struct {
	User   user `json:"user"`
	Rating int  `json:"rating,omitempty"`
}

// GameEvals is one exported game with its analysis.
type GameEvals struct {
	ID      string `json:"id"`
	Winner  string `json:"winner,omitempty"` // "white", "black" or empty for a draw
	Status  string `json:"status,omitempty"`
	Moves   string `json:"moves,omitempty"` // space separated SAN
	Players struct {
		White player `json:"white"`
		Black player `json:"black"`
	} `json:"players"`
	Analysis []EvalRecord `json:"analysis"`
}

// Names returns the display names of both sides.
func (g GameEvals) Names() (white, black string) {
	return displayName(g.Players.White.User), displayName(g.Players.Black.User)
}

func displayName(u user) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// open returns a reader for path, decompressing by file suffix.
func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(path, ".zst"):
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			f.Close()
			return nil, err
		}
		return readCloser{Reader: zr, close: func() error { zr.Close(); return f.Close() }}, nil
	case strings.HasSuffix(path, ".gz"):
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return readCloser{Reader: gr, close: func() error { gr.Close(); return f.Close() }}, nil
	default:
		return f, nil
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }

// Decode reads newline-delimited game objects from r and calls fn for each.
// Blank lines are skipped; a malformed line fails with its line number.
func Decode(ctx context.Context, r io.Reader, fn func(GameEvals) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	count, lineNum := 0, 0
	for scanner.Scan() {
		lineNum++
		if err := ctx.Err(); err != nil {
			return count, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var g GameEvals
		if err := json.Unmarshal([]byte(line), &g); err != nil {
			return count, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if err := fn(g); err != nil {
			return count, err
		}
		count++
	}
	return count, scanner.Err()
}

// ReadFile decodes every game in a .jsonl, .jsonl.gz or .jsonl.zst file.
func ReadFile(ctx context.Context, path string, fn func(GameEvals) error) (int, error) {
	rc, err := open(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return Decode(ctx, rc, fn)
}
