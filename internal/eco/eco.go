// Package eco provides ECO (Encyclopedia of Chess Openings) lookup.
package eco

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/game"
)

// Opening represents an ECO opening classification.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

// Database holds ECO opening data indexed by position.
type Database struct {
	byPosition map[pgn.PackedPosition]Opening
	maxPlies   int
}

// NewDatabase creates an empty ECO database.
func NewDatabase() *Database {
	return &Database{
		byPosition: make(map[pgn.PackedPosition]Opening),
	}
}

// moveNumberRegex matches move numbers like "1." or "12..."
var moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)

// LoadDir loads all .tsv files from a directory.
func (db *Database) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .tsv files found in %s", dir)
	}

	for _, file := range files {
		if err := db.LoadFile(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile loads a single TSV file.
func (db *Database) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return db.Load(f)
}

// Load reads "eco<TAB>name<TAB>moves" lines. A header line and lines whose
// moves do not replay are skipped.
func (db *Database) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if lineNum == 1 && strings.HasPrefix(line, "eco\t") {
			continue
		}

		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}

		moves := strings.Fields(moveNumberRegex.ReplaceAllString(parts[2], " "))
		plies, err := board.Replay("", moves)
		if err != nil || len(plies) == 0 {
			continue
		}

		db.byPosition[plies[len(plies)-1].After] = Opening{ECO: parts[0], Name: parts[1]}
		db.maxPlies = max(db.maxPlies, len(plies))
	}

	return scanner.Err()
}

// Lookup returns the ECO opening for a position, or nil if not found.
func (db *Database) Lookup(pos pgn.PackedPosition) *Opening {
	if db == nil {
		return nil
	}
	if o, ok := db.byPosition[pos]; ok {
		return &o
	}
	return nil
}

// Classify returns the opening of the deepest known position reached by
// plies. A nil database classifies nothing.
func (db *Database) Classify(plies []board.Ply) *Opening {
	if db == nil {
		return nil
	}
	n := min(len(plies), db.maxPlies)
	for i := n - 1; i >= 0; i-- {
		if o := db.Lookup(plies[i].After); o != nil {
			return o
		}
	}
	return nil
}

// ClassifyGame replays g and classifies it. Games that do not replay have no
// opening.
func (db *Database) ClassifyGame(g game.Game) *Opening {
	if db == nil {
		return nil
	}
	plies, err := board.Replay(g.StartFEN, g.Moves)
	if err != nil {
		return nil
	}
	return db.Classify(plies)
}

// Count returns the number of openings loaded.
func (db *Database) Count() int {
	if db == nil {
		return 0
	}
	return len(db.byPosition)
}
