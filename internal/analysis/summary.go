package analysis

import (
	"sort"

	"github.com/freeeve/gamecoach/internal/accuracy"
	"github.com/freeeve/gamecoach/internal/board"
	"github.com/freeeve/gamecoach/internal/eco"
	"github.com/freeeve/gamecoach/internal/game"
)

// Item is one analysed game feeding a Summary.
type Item struct {
	Report  *accuracy.Report
	Outcome game.Outcome
	URL     string
	Opening *eco.Opening // nil when unclassified
}

// ColorStats is the per-colour slice of a Summary.
type ColorStats struct {
	Accuracy *float64 `json:"accuracy"`
	Games    int      `json:"games"`
}

// Overall carries the headline numbers of a Summary.
type Overall struct {
	Accuracy *float64 `json:"accuracy"`
	Wins     int      `json:"wins"`
	Losses   int      `json:"losses"`
	Draws    int      `json:"draws"`
}

// GameEntry is one line of the per-game accuracy list.
type GameEntry struct {
	Accuracy float64      `json:"accuracy"`
	Result   game.Outcome `json:"result,omitempty"`
	Color    string       `json:"color"`
	URL      string       `json:"url,omitempty"`
	Opening  *eco.Opening `json:"opening,omitempty"`
}

// OpeningStats is the accuracy of the games in one opening.
type OpeningStats struct {
	eco.Opening
	Games    int      `json:"games"`
	Accuracy *float64 `json:"accuracy"`
}

// Summary aggregates many reports for one player.
type Summary struct {
	TotalAnalyzedGames int                            `json:"total_analyzed_games"`
	GamesAsWhite       int                            `json:"games_as_white"`
	GamesAsBlack       int                            `json:"games_as_black"`
	Overall            Overall                        `json:"overall"`
	ByColor            map[string]ColorStats          `json:"by_color"`
	ByPhase            map[string]accuracy.PhaseStats `json:"by_phase"`
	MoveQuality        accuracy.QualityCounts         `json:"move_quality"`
	GameAccuracies     []GameEntry                    `json:"game_accuracies"`
	Openings           []OpeningStats                 `json:"openings,omitempty"`
}

// Summarize builds a dashboard view over items, skipping nil reports. Overall
// and per-colour accuracies are plain means of game accuracies; a phase's
// accuracy is the mean over games that had moves in that phase, and its
// MovesAnalyzed counts those games.
func Summarize(items []Item) Summary {
	var (
		all     []float64
		byColor = map[board.Color][]float64{}
		byPhase [len(accuracy.Phases)][]float64
		byECO   = map[eco.Opening][]float64{}
	)
	s := Summary{GameAccuracies: []GameEntry{}}

	for _, it := range items {
		r := it.Report
		if r == nil {
			continue
		}
		color := board.White
		if r.Color == board.Black.String() {
			color = board.Black
			s.GamesAsBlack++
		} else {
			s.GamesAsWhite++
		}
		all = append(all, r.OverallAccuracy)
		byColor[color] = append(byColor[color], r.OverallAccuracy)

		switch it.Outcome {
		case game.Win:
			s.Overall.Wins++
		case game.Loss:
			s.Overall.Losses++
		case game.Draw:
			s.Overall.Draws++
		}

		for _, p := range accuracy.Phases {
			if acc := r.PhaseAccuracy.Get(p).Accuracy; acc != nil {
				byPhase[p] = append(byPhase[p], *acc)
			}
		}
		s.MoveQuality.Merge(r.MoveQuality)
		s.GameAccuracies = append(s.GameAccuracies, GameEntry{
			Accuracy: r.OverallAccuracy,
			Result:   it.Outcome,
			Color:    color.String(),
			URL:      it.URL,
			Opening:  it.Opening,
		})
		if it.Opening != nil {
			byECO[*it.Opening] = append(byECO[*it.Opening], r.OverallAccuracy)
		}
	}

	s.TotalAnalyzedGames = len(all)
	s.Overall.Accuracy = mean(all)
	s.ByColor = map[string]ColorStats{
		board.White.String(): {Accuracy: mean(byColor[board.White]), Games: s.GamesAsWhite},
		board.Black.String(): {Accuracy: mean(byColor[board.Black]), Games: s.GamesAsBlack},
	}
	s.ByPhase = make(map[string]accuracy.PhaseStats, len(accuracy.Phases))
	for _, p := range accuracy.Phases {
		s.ByPhase[p.String()] = accuracy.PhaseStats{
			Accuracy:      mean(byPhase[p]),
			MovesAnalyzed: len(byPhase[p]),
		}
	}
	for o, accs := range byECO {
		s.Openings = append(s.Openings, OpeningStats{Opening: o, Games: len(accs), Accuracy: mean(accs)})
	}
	// Most played first.
	sort.Slice(s.Openings, func(i, j int) bool {
		a, b := s.Openings[i], s.Openings[j]
		if a.Games != b.Games {
			return a.Games > b.Games
		}
		return a.ECO+a.Name < b.ECO+b.Name
	})
	return s
}

// mean returns the rounded arithmetic mean, or nil for no values.
func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	v := accuracy.Round1(sum / float64(len(xs)))
	return &v
}
