/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract,
  allowing field renaming, API-specific formatting (e.g. "7h 30m"
  duration strings) and version evolution without touching the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/warp/presence-engine/activity"
	"github.com/warp/presence-engine/billing"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SubjectDTO represents a subject in API responses.
type SubjectDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Department    string `json:"department,omitempty"`
	AccountID     string `json:"account_id,omitempty"`
	ActivationKey string `json:"activation_key,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// CreateSubjectRequest is the request to register a subject.
type CreateSubjectRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	AccountID  string `json:"account_id"`
}

// LogActivityRequest is a status-change event from a client device.
type LogActivityRequest struct {
	ActivationKey string `json:"activation_key"`
	Status        string `json:"status"`
}

// PingRequest is a liveness heartbeat from a client device.
type PingRequest struct {
	ActivationKey string `json:"activation_key"`
}

// VerifyCheckinRequest verifies a device at the start of a shift.
type VerifyCheckinRequest struct {
	ActivationKey string `json:"activation_key"`
}

// TimelineDTO is a reconstructed bucket set formatted for display.
type TimelineDTO struct {
	PresentSeconds int64  `json:"present_seconds"`
	AwaySeconds    int64  `json:"away_seconds"`
	BreakSeconds   int64  `json:"break_seconds"`
	Present        string `json:"present"`
	Away           string `json:"away"`
	Break          string `json:"break"`
	FinalState     string `json:"final_state"`
}

// SubjectStatsDTO is the detail view: today's buckets plus the
// transition-only history.
type SubjectStatsDTO struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Today    TimelineDTO   `json:"today"`
	Display  string        `json:"display_status"`
	LastSeen *string       `json:"last_seen,omitempty"`
	History  []HistoryItem `json:"history"`
}

// HistoryItem is one status transition in the history table.
type HistoryItem struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// DashboardStatsDTO is the live dashboard payload: headcounts by
// display status plus a per-subject summary row.
type DashboardStatsDTO struct {
	CountPresent int          `json:"count_present"`
	CountBreak   int          `json:"count_break"`
	CountAway    int          `json:"count_away"`
	CountOffline int          `json:"count_offline"`
	Subjects     []SubjectRow `json:"subjects"`
}

// SubjectRow is one dashboard table row.
type SubjectRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	PresentTime string `json:"present_time"`
	LastEvent   string `json:"last_event,omitempty"`
}

// ScoreDTO is a composite score with its factor breakdown.
type ScoreDTO struct {
	Score        int     `json:"score"`
	Grade        string  `json:"grade"`
	PresentHours string  `json:"present_hours"`
	AwayHours    string  `json:"away_hours"`
	BreakHours   string  `json:"break_hours"`
	ActiveDays   int     `json:"active_days"`
	Factors      Factors `json:"factors"`
}

// Factors mirrors activity.Factors for JSON.
type Factors struct {
	Present     float64 `json:"present"`
	Away        float64 `json:"away"`
	Break       float64 `json:"break"`
	Consistency float64 `json:"consistency"`
}

// ReportRequest asks for a batch report over an explicit range.
// Dates are YYYY-MM-DD; end is inclusive of that whole UTC day.
type ReportRequest struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	SubjectID  string `json:"subject_id,omitempty"`
	Department string `json:"department,omitempty"`
}

// ReportResponse is the batch report plus range metadata.
type ReportResponse struct {
	Start       string         `json:"start"`
	End         string         `json:"end"`
	PeriodDays  int            `json:"period_days"`
	GeneratedAt string         `json:"generated_at"`
	Rows        []ReportRowDTO `json:"rows"`
}

// ReportRowDTO is one subject's slice of a report.
type ReportRowDTO struct {
	SubjectID  string   `json:"subject_id"`
	Name       string   `json:"name"`
	Department string   `json:"department,omitempty"`
	Score      ScoreDTO `json:"score"`
}

// AccountDTO represents a billing account in API responses.
type AccountDTO struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	CustomerRef         string `json:"customer_ref,omitempty"`
	SubscriptionItemRef string `json:"subscription_item_ref,omitempty"`
	BillingMode         string `json:"billing_mode,omitempty"`
}

// CreateAccountRequest registers a billing account.
type CreateAccountRequest struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	CustomerRef         string `json:"customer_ref"`
	SubscriptionItemRef string `json:"subscription_item_ref"`
	BillingMode         string `json:"billing_mode"`
}

// SyncOutcomeDTO surfaces a billing reconciliation outcome.
type SyncOutcomeDTO struct {
	AccountID string `json:"account_id"`
	Count     int64  `json:"count"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTimelineDTO(tl activity.Timeline) TimelineDTO {
	return TimelineDTO{
		PresentSeconds: int64(tl.Present / time.Second),
		AwaySeconds:    int64(tl.Away / time.Second),
		BreakSeconds:   int64(tl.Break / time.Second),
		Present:        formatDuration(tl.Present),
		Away:           formatDuration(tl.Away),
		Break:          formatDuration(tl.Break),
		FinalState:     string(tl.FinalState),
	}
}

func toScoreDTO(res activity.ScoreResult) ScoreDTO {
	return ScoreDTO{
		Score:        res.Score,
		Grade:        res.Grade,
		PresentHours: res.Timeline.PresentHours().String(),
		AwayHours:    res.Timeline.AwayHours().String(),
		BreakHours:   res.Timeline.BreakHours().String(),
		ActiveDays:   res.ActiveDays,
		Factors: Factors{
			Present:     res.Factors.Present,
			Away:        res.Factors.Away,
			Break:       res.Factors.Break,
			Consistency: res.Factors.Consistency,
		},
	}
}

func toSubjectDTO(s activity.Subject) SubjectDTO {
	return SubjectDTO{
		ID:            s.ID,
		Name:          s.Name,
		Department:    s.Department,
		AccountID:     s.AccountID,
		ActivationKey: s.ActivationKey,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
}

func toAccountDTO(a billing.Account) AccountDTO {
	return AccountDTO{
		ID:                  a.ID,
		Name:                a.Name,
		CustomerRef:         a.CustomerRef,
		SubscriptionItemRef: a.SubscriptionItemRef,
		BillingMode:         string(a.Mode),
	}
}

// formatDuration renders a duration as "7h 30m", matching the
// dashboard's historical format.
func formatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%dh %dm", total/3600, (total%3600)/60)
}
