/*
score.go - Composite performance score

PURPOSE:
  Applies the timeline reconstruction over a trailing period and
  computes a 0-100 composite score with a per-factor breakdown and a
  grade band. This is the analytics view of the same reconstruction
  the live dashboard uses.

FORMULA:
  present_score     = min(present / (active_days * 8h), 1) * 100
  away_score        = max(0, 100 - away_ratio * 200)
  break_score       = max(0, 100 - |break_per_day - 45m| / 45m * 50)
  consistency_score = min(active_days / period_days, 1) * 100

  score = round(present*0.40 + away*0.25 + break*0.15 + consistency*0.20)

  Weights and bands are configuration, not derived; they live in
  ScoreConfig so they can be tuned without touching reconstruction.

NO-DATA SENTINEL:
  Zero events in the period yields score 0 with grade "N/A". No data is
  deliberately distinct from "Poor": an unprovisioned subject is not a
  badly performing one.

SEE ALSO:
  - timeline.go:       Reconstruction (run here in clamped mode)
  - factory/config.go: Named ScoreConfig presets
  - report.go:         Batch caller over arbitrary ranges
*/
package activity

import (
	"math"
	"time"
)

// =============================================================================
// CONFIGURATION - Weights, expectations, grade bands
// =============================================================================

// GradeBand maps a minimum score to a grade label. Bands are evaluated
// highest cutoff first.
type GradeBand struct {
	Min   int
	Grade string
}

// GradeNoData is the grade for a period containing zero events.
const GradeNoData = "N/A"

// ScoreConfig holds the tunable constants of the scoring formula.
// Factor weights must sum to 1.0.
type ScoreConfig struct {
	PresentWeight     float64
	AwayWeight        float64
	BreakWeight       float64
	ConsistencyWeight float64

	// ExpectedDailyWork is the present time that earns full credit for
	// one active day.
	ExpectedDailyWork time.Duration

	// IdealDailyBreak is the break time per active day considered
	// healthy; deviation in either direction is penalized.
	IdealDailyBreak time.Duration

	// GapClamp bounds a single inter-event interval during
	// reconstruction. Zero disables clamping (not recommended for
	// scoring).
	GapClamp time.Duration

	// Bands in descending Min order; the last band should have Min 0.
	Bands []GradeBand
}

// DefaultScoreConfig returns the production scoring configuration.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		PresentWeight:     0.40,
		AwayWeight:        0.25,
		BreakWeight:       0.15,
		ConsistencyWeight: 0.20,
		ExpectedDailyWork: 8 * time.Hour,
		IdealDailyBreak:   45 * time.Minute,
		GapClamp:          ScoringGapClamp,
		Bands: []GradeBand{
			{Min: 90, Grade: "Excellent"},
			{Min: 75, Grade: "Good"},
			{Min: 60, Grade: "Average"},
			{Min: 40, Grade: "Needs Improvement"},
			{Min: 0, Grade: "Poor"},
		},
	}
}

// GradeFor maps a score to its band label.
func (c ScoreConfig) GradeFor(score int) string {
	for _, b := range c.Bands {
		if score >= b.Min {
			return b.Grade
		}
	}
	return GradeNoData
}

// =============================================================================
// RESULT
// =============================================================================

// Factors is the per-dimension breakdown behind a composite score.
// Each factor is 0-100 before weighting; useful for rendering
// per-dimension bars in the UI.
type Factors struct {
	Present     float64
	Away        float64
	Break       float64
	Consistency float64
}

// ScoreResult is the outcome of scoring one subject over one period.
// Ephemeral: recomputed per query.
type ScoreResult struct {
	Score      int
	Grade      string
	Timeline   Timeline
	ActiveDays int
	Factors    Factors
}

// =============================================================================
// SCORING
// =============================================================================

// Score reconstructs the period in clamped mode and applies the
// composite formula. periodDays is the trailing period length D; end is
// the window close (usually now). Events must already be restricted to
// the period and sorted.
func (c ScoreConfig) Score(events []StatusEvent, periodDays int, end time.Time) (ScoreResult, error) {
	tl, err := Reconstruct(events, end, c.GapClamp)
	if err != nil {
		return ScoreResult{}, err
	}

	if len(events) == 0 {
		return ScoreResult{Grade: GradeNoData, Timeline: tl}, nil
	}

	activeDays := len(ActiveDays(events))

	presentScore := 0.0
	if expected := float64(activeDays) * c.ExpectedDailyWork.Seconds(); expected > 0 {
		presentScore = math.Min(tl.Present.Seconds()/expected, 1.0) * 100
	}

	awayRatio := tl.Away.Seconds() / math.Max(tl.Tracked().Seconds(), 1)
	awayScore := math.Max(0, 100-awayRatio*200)

	ideal := c.IdealDailyBreak.Seconds()
	breakPerDay := tl.Break.Seconds() / float64(activeDays)
	breakScore := math.Max(0, 100-math.Abs(breakPerDay-ideal)/ideal*50)

	consistencyScore := math.Min(float64(activeDays)/float64(periodDays), 1.0) * 100

	score := int(math.Round(presentScore*c.PresentWeight +
		awayScore*c.AwayWeight +
		breakScore*c.BreakWeight +
		consistencyScore*c.ConsistencyWeight))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return ScoreResult{
		Score:      score,
		Grade:      c.GradeFor(score),
		Timeline:   tl,
		ActiveDays: activeDays,
		Factors: Factors{
			Present:     presentScore,
			Away:        awayScore,
			Break:       breakScore,
			Consistency: consistencyScore,
		},
	}, nil
}
