/*
handlers.go - HTTP handler implementations

PURPOSE:
  HTTP handlers for the presence engine API: subject management, device
  activity ingestion, liveness pings, the live dashboard, per-subject
  stats and scores, batch reports, and billing account administration.

HANDLER PATTERN:
  1. Parse/validate input
  2. Call domain logic (activity, billing)
  3. Serialize response
  4. Handle errors

BILLING TRIGGERS:
  Every handler that changes an account's live-subject count
  (CreateSubject, DeleteSubject) reconciles the external billed
  quantity afterwards. The outcome is logged and surfaced but NEVER
  fails the local operation - billing is a best-effort side effect,
  converged by the periodic sweep if a trigger fails.

INGESTION HOT PATH:
  LogActivity and Ping never call the billing provider and never block
  on Slack; notifications go out on a detached goroutine with their own
  timeout.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Unknown activation key
  - 404: Resource not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/presence-engine/activity"
	"github.com/warp/presence-engine/billing"
	"github.com/warp/presence-engine/notify"
	"github.com/warp/presence-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Billing  *billing.Syncer
	Notifier *notify.Notifier
	Config   activity.ScoreConfig

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewHandler creates a new handler with the given store and billing syncer.
func NewHandler(store *sqlite.Store, syncer *billing.Syncer, notifier *notify.Notifier) *Handler {
	return &Handler{
		Store:    store,
		Billing:  syncer,
		Notifier: notifier,
		Config:   activity.DefaultScoreConfig(),
		Now:      time.Now,
	}
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// =============================================================================
// SUBJECT HANDLERS
// =============================================================================

// ListSubjects returns all subjects.
func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.Store.ListSubjects(r.Context(), r.URL.Query().Get("department"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subjects", err)
		return
	}

	dtos := make([]SubjectDTO, len(subjects))
	for i, s := range subjects {
		dtos[i] = toSubjectDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSubject registers a subject and reconciles the account's billed
// quantity.
func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req CreateSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing name", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	subject := activity.Subject{
		ID:            req.ID,
		Name:          req.Name,
		Department:    req.Department,
		AccountID:     req.AccountID,
		ActivationKey: uuid.NewString(),
		CreatedAt:     h.now().UTC(),
	}

	if err := h.Store.CreateSubject(r.Context(), subject); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create subject", err)
		return
	}

	// Count changed: reconcile. Best effort, never fails the create.
	h.syncAccount(r.Context(), subject.AccountID)

	writeJSON(w, http.StatusCreated, toSubjectDTO(subject))
}

// GetSubject returns a single subject.
func (h *Handler) GetSubject(w http.ResponseWriter, r *http.Request) {
	subject, err := h.Store.GetSubject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get subject", err)
		return
	}
	if subject == nil {
		writeError(w, http.StatusNotFound, "Subject not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSubjectDTO(*subject))
}

// DeleteSubject removes a subject and reconciles the account's billed
// quantity. Event history is retained.
func (h *Handler) DeleteSubject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	subject, err := h.Store.GetSubject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get subject", err)
		return
	}
	if subject == nil {
		writeError(w, http.StatusNotFound, "Subject not found", nil)
		return
	}

	if err := h.Store.DeleteSubject(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete subject", err)
		return
	}

	h.syncAccount(r.Context(), subject.AccountID)

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DEVICE HANDLERS - Activity ingestion and liveness
// =============================================================================

// LogActivity ingests a status-change event from a client device. The
// event also proves reachability, so liveness is touched too.
func (h *Handler) LogActivity(w http.ResponseWriter, r *http.Request) {
	var req LogActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	subject, err := h.Store.GetSubjectByKey(r.Context(), req.ActivationKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up device", err)
		return
	}
	if subject == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	now := h.now().UTC()
	status := activity.Status(req.Status)

	if _, err := h.Store.AppendEvent(r.Context(), activity.StatusEvent{
		SubjectID: subject.ID,
		Status:    status,
		At:        now,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record event", err)
		return
	}
	if err := h.Store.Touch(r.Context(), subject.ID, now); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record liveness", err)
		return
	}

	// Notify off the ingestion path; a Slack outage never slows clients.
	if h.Notifier != nil && notify.Important(status) {
		name := subject.Name
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			h.Notifier.StatusChanged(ctx, name, status)
		}()
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ACTIVE"})
}

// Ping records a liveness heartbeat without any status semantics.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	var req PingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	subject, err := h.Store.GetSubjectByKey(r.Context(), req.ActivationKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up device", err)
		return
	}
	if subject == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}

	if err := h.Store.Touch(r.Context(), subject.ID, h.now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record liveness", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ACTIVE"})
}

// VerifyCheckin verifies a device key at the start of a shift.
func (h *Handler) VerifyCheckin(w http.ResponseWriter, r *http.Request) {
	var req VerifyCheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActivationKey == "" {
		writeError(w, http.StatusBadRequest, "Missing activation_key", nil)
		return
	}

	subject, err := h.Store.GetSubjectByKey(r.Context(), req.ActivationKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up device", err)
		return
	}
	if subject == nil {
		writeError(w, http.StatusUnauthorized, "Invalid key", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":       "ACTIVE",
		"subject_name": subject.Name,
	})
}

// CheckStatus lets a device poll whether its key is still valid.
func (h *Handler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	subject, err := h.Store.GetSubjectByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up device", err)
		return
	}
	if subject == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "INVALID"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ACTIVE"})
}

// =============================================================================
// DASHBOARD AND STATS HANDLERS
// =============================================================================

// DashboardStats returns headcounts by display status plus a summary
// row per subject, computed over the UTC "today" window.
func (h *Handler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()
	dayStart := activity.StartOfDayUTC(now)

	subjects, err := h.Store.ListSubjects(ctx, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subjects", err)
		return
	}

	stats := DashboardStatsDTO{Subjects: make([]SubjectRow, 0, len(subjects))}
	for _, subject := range subjects {
		events, err := h.Store.LoadRange(ctx, subject.ID, dayStart, dayStart.Add(24*time.Hour))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load events", err)
			return
		}

		// Live view is unclamped: the window is at most one day.
		tl, err := activity.Reconstruct(events, now, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reconstruct timeline", err)
			return
		}

		rec, seen, err := h.Store.LastSeen(ctx, subject.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load liveness", err)
			return
		}
		var lastSeen time.Time
		if seen {
			lastSeen = rec.LastSeen
		}
		display := activity.DisplayStatus(tl.FinalState, lastSeen, now, activity.LivenessTimeout)

		switch display.Classify() {
		case activity.BucketPresent:
			stats.CountPresent++
		case activity.BucketBreak:
			stats.CountBreak++
		case activity.BucketAway:
			stats.CountAway++
		default:
			stats.CountOffline++
		}

		row := SubjectRow{
			ID:          subject.ID,
			Name:        subject.Name,
			Status:      string(display),
			PresentTime: formatDuration(tl.Present),
		}
		if len(events) > 0 {
			row.LastEvent = events[len(events)-1].At.Format(time.RFC3339)
		}
		stats.Subjects = append(stats.Subjects, row)
	}

	writeJSON(w, http.StatusOK, stats)
}

// SubjectStats returns today's buckets, the display status, and the
// transition-only event history for one subject.
func (h *Handler) SubjectStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()
	dayStart := activity.StartOfDayUTC(now)

	subject, err := h.Store.GetSubject(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get subject", err)
		return
	}
	if subject == nil {
		writeError(w, http.StatusNotFound, "Subject not found", nil)
		return
	}

	todayEvents, err := h.Store.LoadRange(ctx, subject.ID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load events", err)
		return
	}
	tl, err := activity.Reconstruct(todayEvents, now, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconstruct timeline", err)
		return
	}

	allEvents, err := h.Store.LoadRange(ctx, subject.ID, time.Unix(0, 0).UTC(), dayStart.Add(24*time.Hour))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	// Newest first for the UI, transitions only.
	transitions := activity.Transitions(allEvents)
	history := make([]HistoryItem, 0, len(transitions))
	for i := len(transitions) - 1; i >= 0; i-- {
		history = append(history, HistoryItem{
			Status:    string(transitions[i].Status),
			Timestamp: transitions[i].At.Format(time.RFC3339),
		})
	}

	dto := SubjectStatsDTO{
		ID:      subject.ID,
		Name:    subject.Name,
		Today:   toTimelineDTO(tl),
		History: history,
	}

	rec, seen, err := h.Store.LastSeen(ctx, subject.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load liveness", err)
		return
	}
	var lastSeen time.Time
	if seen {
		lastSeen = rec.LastSeen
		ls := rec.LastSeen.Format(time.RFC3339)
		dto.LastSeen = &ls
	}
	dto.Display = string(activity.DisplayStatus(tl.FinalState, lastSeen, now, activity.LivenessTimeout))

	writeJSON(w, http.StatusOK, dto)
}

// SubjectScore computes the composite score over a trailing period.
// GET /api/subjects/{id}/score?days=7
func (h *Handler) SubjectScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now().UTC()

	days := 7
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "Invalid days parameter", err)
			return
		}
		days = parsed
	}

	subject, err := h.Store.GetSubject(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get subject", err)
		return
	}
	if subject == nil {
		writeError(w, http.StatusNotFound, "Subject not found", nil)
		return
	}

	events, err := h.Store.LoadRange(ctx, subject.ID, now.Add(-time.Duration(days)*24*time.Hour), now.Add(time.Second))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load events", err)
		return
	}

	result, err := h.Config.Score(events, days, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute score", err)
		return
	}

	writeJSON(w, http.StatusOK, toScoreDTO(result))
}

// GenerateReport produces a batch report over an explicit date range.
func (h *Handler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
		return
	}
	endDay, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date (use YYYY-MM-DD)", err)
		return
	}
	// End date is inclusive of the whole UTC day.
	end := endDay.Add(24 * time.Hour)
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "End date before start date", nil)
		return
	}

	reporter := &activity.Reporter{Events: h.Store, Subjects: h.Store, Config: h.Config}
	report, err := reporter.Generate(r.Context(), activity.ReportFilter{
		SubjectID:  req.SubjectID,
		Department: req.Department,
	}, start, end)
	if err != nil {
		if activity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Subject not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to generate report", err)
		return
	}

	resp := ReportResponse{
		Start:       req.Start,
		End:         req.End,
		PeriodDays:  report.PeriodDays,
		GeneratedAt: report.GeneratedAt.Format(time.RFC3339),
		Rows:        make([]ReportRowDTO, 0, len(report.Rows)),
	}
	for _, row := range report.Rows {
		resp.Rows = append(resp.Rows, ReportRowDTO{
			SubjectID:  row.Subject.ID,
			Name:       row.Subject.Name,
			Department: row.Subject.Department,
			Score:      toScoreDTO(row.Result),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// BILLING ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all billing accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount registers a billing account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing name", nil)
		return
	}

	account := billing.Account{
		ID:                  req.ID,
		Name:                req.Name,
		CustomerRef:         req.CustomerRef,
		SubscriptionItemRef: req.SubscriptionItemRef,
		Mode:                billing.Mode(req.BillingMode),
	}
	if err := h.Store.CreateAccount(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// SyncBilling runs the reconciliation sweep over every account and
// returns the outcomes. Also used by the scheduler.
func (h *Handler) SyncBilling(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.SyncAllAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to sweep accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// SyncAllAccounts recomputes and resyncs every account unconditionally.
// Covers drift from out-of-band external edits.
func (h *Handler) SyncAllAccounts(ctx context.Context) ([]SyncOutcomeDTO, error) {
	accounts, err := h.Store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]SyncOutcomeDTO, 0, len(accounts))
	for _, account := range accounts {
		count, err := h.Store.CountByAccount(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		outcome := h.Billing.Sync(ctx, account, count)
		outcomes = append(outcomes, SyncOutcomeDTO{
			AccountID: account.ID,
			Count:     count,
			Status:    string(outcome.Status),
			Reason:    outcome.Reason,
			Mode:      string(outcome.Mode),
		})
	}
	return outcomes, nil
}

// syncAccount reconciles one account after a count-changing operation.
// Failures are already logged by the syncer; nothing propagates.
func (h *Handler) syncAccount(ctx context.Context, accountID string) {
	if accountID == "" || h.Billing == nil {
		return
	}
	account, err := h.Store.GetAccount(ctx, accountID)
	if err != nil || account == nil {
		return
	}
	count, err := h.Store.CountByAccount(ctx, accountID)
	if err != nil {
		return
	}
	h.Billing.Sync(ctx, *account, count)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
