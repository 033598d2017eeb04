/*
report.go - Batch reports over arbitrary date ranges

PURPOSE:
  The batch variant of timeline.go + score.go: given an explicit
  [start, end] range and a filter (one subject, one department, or
  account-wide), reconstruct and score every matching subject.

KEY INSIGHT:
  Reports MUST go through the identical Reconstruct/Score code path the
  live dashboard uses. There is deliberately no parallel
  reimplementation here, so the definition of "present" can never
  diverge between the live view and a historical export.

SEE ALSO:
  - timeline.go: Reconstruction
  - score.go:    Scoring (D = range length in days)
*/
package activity

import (
	"context"
	"time"
)

// =============================================================================
// FILTER AND RESULT TYPES
// =============================================================================

// ReportFilter selects which subjects a report covers. Zero value means
// account-wide (every subject).
type ReportFilter struct {
	// SubjectID restricts the report to one subject when non-empty.
	SubjectID string

	// Department restricts the report to one department when non-empty
	// and SubjectID is empty.
	Department string
}

// ReportRow is one subject's reconstructed and scored slice of the range.
type ReportRow struct {
	Subject Subject
	Result  ScoreResult
}

// Report is the batch output plus range metadata.
type Report struct {
	Start       time.Time
	End         time.Time
	PeriodDays  int
	Filter      ReportFilter
	GeneratedAt time.Time
	Rows        []ReportRow
}

// =============================================================================
// GENERATION
// =============================================================================

// Reporter generates batch reports from the stores it is given. It
// holds no mutable state; a single Reporter serves concurrent requests.
type Reporter struct {
	Events   EventStore
	Subjects SubjectStore
	Config   ScoreConfig
}

// Generate reconstructs and scores every subject matched by the filter
// over [start, end). The scoring period length D is the range length in
// days, rounded up, minimum one day.
func (r *Reporter) Generate(ctx context.Context, filter ReportFilter, start, end time.Time) (*Report, error) {
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}

	subjects, err := r.matchSubjects(ctx, filter)
	if err != nil {
		return nil, err
	}

	periodDays := int((end.Sub(start) + 24*time.Hour - 1) / (24 * time.Hour))
	if periodDays < 1 {
		periodDays = 1
	}

	report := &Report{
		Start:       start,
		End:         end,
		PeriodDays:  periodDays,
		Filter:      filter,
		GeneratedAt: time.Now().UTC(),
		Rows:        make([]ReportRow, 0, len(subjects)),
	}

	for _, subject := range subjects {
		events, err := r.Events.LoadRange(ctx, subject.ID, start, end)
		if err != nil {
			return nil, err
		}
		result, err := r.Config.Score(events, periodDays, end)
		if err != nil {
			return nil, err
		}
		report.Rows = append(report.Rows, ReportRow{Subject: subject, Result: result})
	}

	return report, nil
}

func (r *Reporter) matchSubjects(ctx context.Context, filter ReportFilter) ([]Subject, error) {
	if filter.SubjectID != "" {
		subject, err := r.Subjects.GetSubject(ctx, filter.SubjectID)
		if err != nil {
			return nil, err
		}
		if subject == nil {
			return nil, ErrSubjectNotFound
		}
		return []Subject{*subject}, nil
	}
	return r.Subjects.ListSubjects(ctx, filter.Department)
}
