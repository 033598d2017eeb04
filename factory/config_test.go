package factory

import (
	"testing"
	"time"

	"github.com/warp/presence-engine/activity"
)

// =============================================================================
// PARSING AND VALIDATION TESTS
// =============================================================================

func TestParseScoreConfig_Valid(t *testing.T) {
	data := []byte(`{
		"present_weight": 0.4,
		"away_weight": 0.25,
		"break_weight": 0.15,
		"consistency_weight": 0.2,
		"expected_daily_work_minutes": 480,
		"ideal_daily_break_minutes": 45,
		"gap_clamp_minutes": 120,
		"bands": [
			{"min": 50, "grade": "Pass"},
			{"min": 0, "grade": "Fail"}
		]
	}`)

	cfg, err := ParseScoreConfig(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExpectedDailyWork != 8*time.Hour {
		t.Errorf("expected daily work = %v, want 8h", cfg.ExpectedDailyWork)
	}
	if cfg.GapClamp != 2*time.Hour {
		t.Errorf("gap clamp = %v, want 2h", cfg.GapClamp)
	}
	if len(cfg.Bands) != 2 || cfg.Bands[0].Grade != "Pass" {
		t.Errorf("bands = %+v, want the two custom bands", cfg.Bands)
	}
}

func TestParseScoreConfig_OmittedBandsUseDefaults(t *testing.T) {
	data := []byte(`{
		"present_weight": 0.4,
		"away_weight": 0.25,
		"break_weight": 0.15,
		"consistency_weight": 0.2,
		"expected_daily_work_minutes": 480,
		"ideal_daily_break_minutes": 45
	}`)

	cfg, err := ParseScoreConfig(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := activity.DefaultScoreConfig().Bands
	if len(cfg.Bands) != len(want) {
		t.Fatalf("bands = %+v, want defaults", cfg.Bands)
	}
	for i := range want {
		if cfg.Bands[i] != want[i] {
			t.Errorf("band[%d] = %+v, want %+v", i, cfg.Bands[i], want[i])
		}
	}
}

func TestParseScoreConfig_WeightsMustSumToOne(t *testing.T) {
	data := []byte(`{
		"present_weight": 0.5,
		"away_weight": 0.5,
		"break_weight": 0.5,
		"consistency_weight": 0.5,
		"expected_daily_work_minutes": 480,
		"ideal_daily_break_minutes": 45
	}`)

	if _, err := ParseScoreConfig(data); err == nil {
		t.Error("expected weight-sum validation error")
	}
}

func TestParseScoreConfig_RejectsZeroExpectations(t *testing.T) {
	data := []byte(`{
		"present_weight": 0.4,
		"away_weight": 0.25,
		"break_weight": 0.15,
		"consistency_weight": 0.2,
		"expected_daily_work_minutes": 0,
		"ideal_daily_break_minutes": 45
	}`)

	if _, err := ParseScoreConfig(data); err == nil {
		t.Error("expected positive-duration validation error")
	}
}

func TestParseScoreConfig_MalformedJSON(t *testing.T) {
	if _, err := ParseScoreConfig([]byte(`{not json`)); err == nil {
		t.Error("expected parse error")
	}
}

// =============================================================================
// PRESET TESTS
// =============================================================================

func TestPreset_KnownNames(t *testing.T) {
	strict := Preset("strict")
	if strict.ExpectedDailyWork != 9*time.Hour {
		t.Errorf("strict expected day = %v, want 9h", strict.ExpectedDailyWork)
	}
	lenient := Preset("lenient")
	if lenient.ExpectedDailyWork != 7*time.Hour {
		t.Errorf("lenient expected day = %v, want 7h", lenient.ExpectedDailyWork)
	}
}

func TestPreset_WeightsStayNormalized(t *testing.T) {
	for _, name := range []string{"default", "strict", "lenient", "bogus"} {
		cfg := Preset(name)
		if err := validate(cfg); err != nil {
			t.Errorf("preset %q: %v", name, err)
		}
	}
}
