package accuracy

// Scoring bundles the calibration used to turn evaluations into a Report.
type Scoring struct {
	Model      Model
	Bounds     PhaseBounds
	Thresholds Thresholds
}

// DefaultScoring returns the reference calibration.
func DefaultScoring() Scoring {
	return Scoring{
		Model:      DefaultModel(),
		Bounds:     DefaultPhaseBounds,
		Thresholds: DefaultThresholds,
	}
}

// PhaseStats is the aggregated accuracy of one phase. Accuracy is nil when
// the target player made no move in that phase.
type PhaseStats struct {
	Accuracy      *float64 `json:"accuracy"`
	MovesAnalyzed int      `json:"moves_analyzed"`
}

// PhaseAccuracy holds stats for every phase.
type PhaseAccuracy struct {
	Opening    PhaseStats `json:"opening"`
	Middlegame PhaseStats `json:"middlegame"`
	Endgame    PhaseStats `json:"endgame"`
}

// Get returns the stats of one phase.
func (pa PhaseAccuracy) Get(p Phase) PhaseStats {
	switch p {
	case Opening:
		return pa.Opening
	case Middlegame:
		return pa.Middlegame
	default:
		return pa.Endgame
	}
}

func (pa *PhaseAccuracy) set(p Phase, s PhaseStats) {
	switch p {
	case Opening:
		pa.Opening = s
	case Middlegame:
		pa.Middlegame = s
	default:
		pa.Endgame = s
	}
}

// QualityCounts counts target moves per severity bucket.
type QualityCounts struct {
	Inaccuracy int `json:"inaccuracy"`
	Mistake    int `json:"mistake"`
	Blunder    int `json:"blunder"`
}

// Add increments the counter for q. QualityNone is not counted.
func (qc *QualityCounts) Add(q Quality) {
	switch q {
	case Inaccuracy:
		qc.Inaccuracy++
	case Mistake:
		qc.Mistake++
	case Blunder:
		qc.Blunder++
	}
}

// Merge adds other's counts into qc.
func (qc *QualityCounts) Merge(other QualityCounts) {
	qc.Inaccuracy += other.Inaccuracy
	qc.Mistake += other.Mistake
	qc.Blunder += other.Blunder
}

// Report is the accuracy summary of one game for one player.
type Report struct {
	Color           string        `json:"color,omitempty"`
	OverallAccuracy float64       `json:"overall_accuracy"`
	MovesAnalyzed   int           `json:"moves_analyzed"`
	PhaseAccuracy   PhaseAccuracy `json:"phase_accuracy"`
	MoveQuality     QualityCounts `json:"move_quality"`
}

// MoveScore describes one scored target move.
type MoveScore struct {
	MoveNumber int
	Phase      Phase
	Accuracy   float64
	CPLoss     int
	Quality    Quality
}

// Tally accumulates scored moves and builds a Report.
type Tally struct {
	scoring Scoring
	all     []float64
	phases  [len(Phases)][]float64
	quality QualityCounts
}

// NewTally creates an empty tally.
func NewTally(s Scoring) *Tally {
	return &Tally{scoring: s}
}

// Record scores one target move given evaluations before and after it, both
// from White's perspective. moverWhite selects whose win probability is used
// and the direction of the centipawn loss.
func (t *Tally) Record(moveNumber, prevCP, curCP int, moverWhite bool) MoveScore {
	wpBefore := WinProbability(prevCP)
	wpAfter := WinProbability(curCP)
	if !moverWhite {
		wpBefore = 100 - wpBefore
		wpAfter = 100 - wpAfter
	}
	loss := CPLoss(prevCP, curCP, moverWhite)

	ms := MoveScore{
		MoveNumber: moveNumber,
		Phase:      t.scoring.Bounds.Classify(moveNumber),
		Accuracy:   t.scoring.Model.MoveAccuracy(wpBefore, wpAfter),
		CPLoss:     loss,
		Quality:    t.scoring.Thresholds.Classify(loss),
	}
	t.all = append(t.all, ms.Accuracy)
	t.phases[ms.Phase] = append(t.phases[ms.Phase], ms.Accuracy)
	t.quality.Add(ms.Quality)
	return ms
}

// CPLoss is the centipawn loss of a move from the mover's side, given
// White-perspective evaluations before and after it. Gains count as 0.
func CPLoss(prevCP, curCP int, moverWhite bool) int {
	loss := prevCP - curCP
	if !moverWhite {
		loss = -loss
	}
	return max(loss, 0)
}

// Moves returns how many moves have been recorded.
func (t *Tally) Moves() int {
	return len(t.all)
}

// Report builds the immutable report, rounding accuracies to one decimal.
func (t *Tally) Report() *Report {
	r := &Report{
		OverallAccuracy: Round1(Aggregate(t.all)),
		MovesAnalyzed:   len(t.all),
		MoveQuality:     t.quality,
	}
	for _, p := range Phases {
		accs := t.phases[p]
		stats := PhaseStats{MovesAnalyzed: len(accs)}
		if len(accs) > 0 {
			v := Round1(Aggregate(accs))
			stats.Accuracy = &v
		}
		r.PhaseAccuracy.set(p, stats)
	}
	return r
}
