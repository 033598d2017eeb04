/*
Package factory builds score configurations from JSON definitions and
named presets.

PURPOSE:
  The scoring weights, expectations and grade bands are product
  configuration, not engine logic. This package keeps them external to
  the reconstruction code so they can be tuned per deployment without
  touching the math.

PRESETS:
  default:  The production formula (40/25/15/20 weights, 8h day,
            45m ideal break)
  strict:   Heavier present weighting, 9h expected day
  lenient:  Heavier consistency weighting, 7h expected day

USAGE:
  cfg, err := factory.ParseScoreConfig(jsonBytes)
  cfg := factory.Preset("strict")

SEE ALSO:
  - activity/score.go: The formula these configs feed
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/presence-engine/activity"
)

// =============================================================================
// JSON SHAPE
// =============================================================================

// ScoreConfigJSON is the external JSON shape of a scoring configuration.
// Durations are expressed in minutes for readability of config files.
type ScoreConfigJSON struct {
	PresentWeight     float64 `json:"present_weight"`
	AwayWeight        float64 `json:"away_weight"`
	BreakWeight       float64 `json:"break_weight"`
	ConsistencyWeight float64 `json:"consistency_weight"`

	ExpectedDailyWorkMinutes int `json:"expected_daily_work_minutes"`
	IdealDailyBreakMinutes   int `json:"ideal_daily_break_minutes"`
	GapClampMinutes          int `json:"gap_clamp_minutes"`

	Bands []BandJSON `json:"bands,omitempty"`
}

// BandJSON is one grade band: the minimum score earning a grade.
type BandJSON struct {
	Min   int    `json:"min"`
	Grade string `json:"grade"`
}

// ParseScoreConfig parses and validates a JSON configuration. Omitted
// bands fall back to the default bands.
func ParseScoreConfig(data []byte) (activity.ScoreConfig, error) {
	var j ScoreConfigJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return activity.ScoreConfig{}, fmt.Errorf("invalid score config: %w", err)
	}

	cfg := activity.ScoreConfig{
		PresentWeight:     j.PresentWeight,
		AwayWeight:        j.AwayWeight,
		BreakWeight:       j.BreakWeight,
		ConsistencyWeight: j.ConsistencyWeight,
		ExpectedDailyWork: time.Duration(j.ExpectedDailyWorkMinutes) * time.Minute,
		IdealDailyBreak:   time.Duration(j.IdealDailyBreakMinutes) * time.Minute,
		GapClamp:          time.Duration(j.GapClampMinutes) * time.Minute,
	}
	for _, b := range j.Bands {
		cfg.Bands = append(cfg.Bands, activity.GradeBand{Min: b.Min, Grade: b.Grade})
	}
	if cfg.Bands == nil {
		cfg.Bands = activity.DefaultScoreConfig().Bands
	}

	if err := validate(cfg); err != nil {
		return activity.ScoreConfig{}, err
	}
	return cfg, nil
}

func validate(cfg activity.ScoreConfig) error {
	sum := cfg.PresentWeight + cfg.AwayWeight + cfg.BreakWeight + cfg.ConsistencyWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("score config weights must sum to 1.0, got %.3f", sum)
	}
	if cfg.ExpectedDailyWork <= 0 {
		return fmt.Errorf("expected daily work must be positive")
	}
	if cfg.IdealDailyBreak <= 0 {
		return fmt.Errorf("ideal daily break must be positive")
	}
	return nil
}

// =============================================================================
// PRESETS
// =============================================================================

// Preset returns a named configuration. Unknown names return the
// default configuration.
func Preset(name string) activity.ScoreConfig {
	switch name {
	case "strict":
		cfg := activity.DefaultScoreConfig()
		cfg.PresentWeight = 0.50
		cfg.AwayWeight = 0.25
		cfg.BreakWeight = 0.10
		cfg.ConsistencyWeight = 0.15
		cfg.ExpectedDailyWork = 9 * time.Hour
		return cfg
	case "lenient":
		cfg := activity.DefaultScoreConfig()
		cfg.PresentWeight = 0.35
		cfg.AwayWeight = 0.20
		cfg.BreakWeight = 0.15
		cfg.ConsistencyWeight = 0.30
		cfg.ExpectedDailyWork = 7 * time.Hour
		return cfg
	default:
		return activity.DefaultScoreConfig()
	}
}
