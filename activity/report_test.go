package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/warp/presence-engine/activity"
	"github.com/warp/presence-engine/activity/store"
)

// =============================================================================
// REPORT GENERATION TESTS
// =============================================================================

func seedSubject(t *testing.T, mem *store.Memory, id, department string, events []activity.StatusEvent) {
	t.Helper()
	err := mem.CreateSubject(context.Background(), activity.Subject{
		ID:         id,
		Name:       "Subject " + id,
		Department: department,
	})
	if err != nil {
		t.Fatalf("create subject: %v", err)
	}
	for _, e := range events {
		e.SubjectID = id
		if _, err := mem.AppendEvent(context.Background(), e); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}
}

func TestGenerate_OneRowPerMatchedSubject(t *testing.T) {
	// GIVEN: Two subjects with event history, one without
	// WHEN: Generating an account-wide report
	// THEN: Every subject gets a row; the silent one carries the
	//       no-data grade instead of a zero score

	mem := store.NewMemory()
	seedSubject(t, mem, "emp-1", "eng", workday("emp-1"))
	seedSubject(t, mem, "emp-2", "sales", workday("emp-2"))
	seedSubject(t, mem, "emp-3", "eng", nil)

	r := &activity.Reporter{Events: mem, Subjects: mem, Config: activity.DefaultScoreConfig()}
	report, err := r.Generate(context.Background(), activity.ReportFilter{}, ts(0, 0), ts(23, 59))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(report.Rows))
	}
	byID := map[string]activity.ScoreResult{}
	for _, row := range report.Rows {
		byID[row.Subject.ID] = row.Result
	}
	if byID["emp-3"].Grade != activity.GradeNoData {
		t.Errorf("silent subject grade = %q, want %q", byID["emp-3"].Grade, activity.GradeNoData)
	}
	if byID["emp-1"].Grade == activity.GradeNoData {
		t.Errorf("active subject should not get the no-data grade")
	}
}

func TestGenerate_DepartmentFilter(t *testing.T) {
	// GIVEN: Subjects across two departments
	// WHEN: Filtering the report to one department
	// THEN: Only that department's subjects appear

	mem := store.NewMemory()
	seedSubject(t, mem, "emp-1", "eng", workday("emp-1"))
	seedSubject(t, mem, "emp-2", "sales", workday("emp-2"))

	r := &activity.Reporter{Events: mem, Subjects: mem, Config: activity.DefaultScoreConfig()}
	report, err := r.Generate(context.Background(), activity.ReportFilter{Department: "eng"}, ts(0, 0), ts(23, 59))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Rows) != 1 || report.Rows[0].Subject.ID != "emp-1" {
		t.Fatalf("rows = %+v, want exactly emp-1", report.Rows)
	}
}

func TestGenerate_SingleSubjectFilterMissing(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Requesting a report for an unknown subject
	// THEN: Not-found error, no partial report

	mem := store.NewMemory()
	r := &activity.Reporter{Events: mem, Subjects: mem, Config: activity.DefaultScoreConfig()}

	_, err := r.Generate(context.Background(), activity.ReportFilter{SubjectID: "ghost"}, ts(0, 0), ts(23, 59))
	if !activity.IsNotFound(err) {
		t.Errorf("err = %v, want subject-not-found", err)
	}
}

func TestGenerate_InvertedRangeRejected(t *testing.T) {
	mem := store.NewMemory()
	r := &activity.Reporter{Events: mem, Subjects: mem, Config: activity.DefaultScoreConfig()}

	_, err := r.Generate(context.Background(), activity.ReportFilter{}, ts(12, 0), ts(9, 0))
	if err != activity.ErrInvalidWindow {
		t.Errorf("err = %v, want ErrInvalidWindow", err)
	}
}

func TestGenerate_PeriodDaysRoundsUp(t *testing.T) {
	// GIVEN: A three-and-a-half-day range
	// WHEN: Generating a report
	// THEN: The scoring denominator rounds up to four days

	mem := store.NewMemory()
	r := &activity.Reporter{Events: mem, Subjects: mem, Config: activity.DefaultScoreConfig()}

	start := ts(0, 0)
	report, err := r.Generate(context.Background(), activity.ReportFilter{}, start, start.Add(84*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.PeriodDays != 4 {
		t.Errorf("period days = %d, want 4", report.PeriodDays)
	}
}

func TestGenerate_MatchesLiveScorePath(t *testing.T) {
	// GIVEN: One subject with a standard workday
	// WHEN: Scoring directly and via a report over the same window
	// THEN: Identical results (a single code path serves both)

	mem := store.NewMemory()
	events := workday("emp-1")
	seedSubject(t, mem, "emp-1", "eng", events)

	start, end := ts(0, 0), ts(23, 59)
	direct, err := activity.DefaultScoreConfig().Score(events, 1, end)
	if err != nil {
		t.Fatalf("direct score: %v", err)
	}

	r := &activity.Reporter{Events: mem, Subjects: mem, Config: activity.DefaultScoreConfig()}
	report, err := r.Generate(context.Background(), activity.ReportFilter{SubjectID: "emp-1"}, start, end)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	got := report.Rows[0].Result
	if got.Score != direct.Score || got.Grade != direct.Grade {
		t.Errorf("report score %d/%s differs from direct %d/%s",
			got.Score, got.Grade, direct.Score, direct.Grade)
	}
}
