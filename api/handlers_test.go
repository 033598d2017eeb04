/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Subject CRUD and the billing triggers around it
- Device ingestion (activity, ping, check-in)
- Dashboard, stats, score and report endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/presence-engine/activity"
	"github.com/warp/presence-engine/billing"
	"github.com/warp/presence-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// testClock is 5pm UTC so a full workday fits inside "today".
var testClock = time.Date(2026, time.March, 10, 17, 0, 0, 0, time.UTC)

type fakeBillingProvider struct {
	mu         sync.Mutex
	quantities map[string]int64
}

func (f *fakeBillingProvider) SetQuantity(_ context.Context, itemRef string, quantity int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quantities == nil {
		f.quantities = make(map[string]int64)
	}
	f.quantities[itemRef] = quantity
	return nil
}

func (f *fakeBillingProvider) RecordUsage(_ context.Context, itemRef string, quantity int64, _ time.Time) error {
	return f.SetQuantity(context.Background(), itemRef, quantity)
}

func (f *fakeBillingProvider) billed(itemRef string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quantities[itemRef]
}

func newTestAPI(t *testing.T) (http.Handler, *Handler, *fakeBillingProvider) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := &fakeBillingProvider{}
	h := NewHandler(store, billing.NewSyncer(provider, store), nil)
	h.Now = func() time.Time { return testClock }
	return NewRouter(h), h, provider
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

// seedBilledAccount creates a billing account with an external
// subscription item so syncs actually reach the provider.
func seedBilledAccount(t *testing.T, h *Handler, id string) {
	t.Helper()
	require.NoError(t, h.Store.CreateAccount(context.Background(), billing.Account{
		ID:                  id,
		Name:                "Account " + id,
		CustomerRef:         "cus_" + id,
		SubscriptionItemRef: "si_" + id,
		Mode:                billing.ModeLicensed,
	}))
}

// =============================================================================
// SUBJECT HANDLERS
// =============================================================================

func TestCreateSubject_IssuesActivationKey(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/subjects", CreateSubjectRequest{
		Name: "Alice", Department: "eng",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	dto := decode[SubjectDTO](t, rec)
	assert.NotEmpty(t, dto.ID)
	assert.NotEmpty(t, dto.ActivationKey)
	assert.Equal(t, "eng", dto.Department)
}

func TestCreateSubject_MissingNameRejected(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/subjects", CreateSubjectRequest{Department: "eng"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSubject_ReconcilesBilledQuantity(t *testing.T) {
	// GIVEN: A billed account
	// WHEN: Registering two subjects under it
	// THEN: The external quantity tracks the live count

	router, h, provider := newTestAPI(t)
	seedBilledAccount(t, h, "acct-1")

	for _, name := range []string{"Alice", "Bob"} {
		rec := doJSON(t, router, http.MethodPost, "/api/subjects", CreateSubjectRequest{
			Name: name, AccountID: "acct-1",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	assert.EqualValues(t, 2, provider.billed("si_acct-1"))
}

func TestDeleteSubject_ReconcilesBilledQuantity(t *testing.T) {
	router, h, provider := newTestAPI(t)
	seedBilledAccount(t, h, "acct-1")

	rec := doJSON(t, router, http.MethodPost, "/api/subjects", CreateSubjectRequest{
		Name: "Alice", AccountID: "acct-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[SubjectDTO](t, rec)

	rec = doJSON(t, router, http.MethodDelete, "/api/subjects/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.EqualValues(t, 0, provider.billed("si_acct-1"))
}

func TestGetSubject_NotFound(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/subjects/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// DEVICE HANDLERS
// =============================================================================

func createSubject(t *testing.T, router http.Handler, name, accountID string) SubjectDTO {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/subjects", CreateSubjectRequest{
		Name: name, AccountID: accountID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[SubjectDTO](t, rec)
}

func TestLogActivity_UnknownKeyUnauthorized(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/activity", LogActivityRequest{
		ActivationKey: "bogus", Status: "WORK_START",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogActivity_RecordsEventAndLiveness(t *testing.T) {
	router, h, _ := newTestAPI(t)
	subject := createSubject(t, router, "Alice", "")

	rec := doJSON(t, router, http.MethodPost, "/api/activity", LogActivityRequest{
		ActivationKey: subject.ActivationKey, Status: "WORK_START",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	ctx := context.Background()
	events, err := h.Store.LoadRange(ctx, subject.ID, testClock.Add(-time.Hour), testClock.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, activity.StatusWorkStart, events[0].Status)

	liveness, ok, err := h.Store.LastSeen(ctx, subject.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, liveness.LastSeen.Equal(testClock))
}

func TestPing_TouchesLivenessOnly(t *testing.T) {
	router, h, _ := newTestAPI(t)
	subject := createSubject(t, router, "Alice", "")

	rec := doJSON(t, router, http.MethodPost, "/api/ping", PingRequest{ActivationKey: subject.ActivationKey})
	require.Equal(t, http.StatusOK, rec.Code)

	ctx := context.Background()
	_, ok, err := h.Store.LastSeen(ctx, subject.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	events, err := h.Store.LoadRange(ctx, subject.ID, testClock.Add(-time.Hour), testClock.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events, "heartbeats must not pollute the event ledger")
}

func TestVerifyCheckin(t *testing.T) {
	router, _, _ := newTestAPI(t)
	subject := createSubject(t, router, "Alice", "")

	rec := doJSON(t, router, http.MethodPost, "/api/checkin/verify", VerifyCheckinRequest{
		ActivationKey: subject.ActivationKey,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "ACTIVE", resp["status"])
	assert.Equal(t, "Alice", resp["subject_name"])

	rec = doJSON(t, router, http.MethodPost, "/api/checkin/verify", VerifyCheckinRequest{ActivationKey: "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckStatus_InvalidKeyIsNotAnError(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/status/bogus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]string](t, rec)
	assert.Equal(t, "INVALID", resp["status"])
}

// =============================================================================
// DASHBOARD AND STATS
// =============================================================================

// seedDay writes a standard workday for the subject: work at 9, break
// at noon, back at 12:30, with hourly heartbeat events in between the
// way a real client reports, and a liveness touch at each event.
func seedDay(t *testing.T, h *Handler, subjectID string) {
	t.Helper()
	ctx := context.Background()
	day := []struct {
		status activity.Status
		at     time.Time
	}{
		{activity.StatusWorkStart, testClock.Add(-8 * time.Hour)},
		{activity.StatusPresent, testClock.Add(-7 * time.Hour)},
		{activity.StatusPresent, testClock.Add(-6 * time.Hour)},
		{activity.StatusBreakStart, testClock.Add(-5 * time.Hour)},
		{activity.StatusBreakEnd, testClock.Add(-4*time.Hour - 30*time.Minute)},
		{activity.StatusPresent, testClock.Add(-3*time.Hour - 30*time.Minute)},
		{activity.StatusPresent, testClock.Add(-2*time.Hour - 30*time.Minute)},
		{activity.StatusPresent, testClock.Add(-time.Hour - 30*time.Minute)},
		{activity.StatusPresent, testClock.Add(-30 * time.Minute)},
	}
	for _, e := range day {
		_, err := h.Store.AppendEvent(ctx, activity.StatusEvent{SubjectID: subjectID, Status: e.status, At: e.at})
		require.NoError(t, err)
		require.NoError(t, h.Store.Touch(ctx, subjectID, e.at))
	}
}

func TestDashboardStats_CountsByDisplayStatus(t *testing.T) {
	// GIVEN: One subject active moments ago, one whose device went
	//        silent after its last event
	// WHEN: Loading the dashboard
	// THEN: The fresh one counts as present, the stale one as offline
	//       even though its event history says present

	router, h, _ := newTestAPI(t)
	ctx := context.Background()

	alice := createSubject(t, router, "Alice", "")
	seedDay(t, h, alice.ID)
	require.NoError(t, h.Store.Touch(ctx, alice.ID, testClock.Add(-30*time.Second)))

	carol := createSubject(t, router, "Carol", "")
	seedDay(t, h, carol.ID)
	require.NoError(t, h.Store.Touch(ctx, carol.ID, testClock.Add(-3*time.Minute)))

	rec := doJSON(t, router, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[DashboardStatsDTO](t, rec)

	assert.Equal(t, 1, stats.CountPresent)
	assert.Equal(t, 1, stats.CountOffline)
	require.Len(t, stats.Subjects, 2)

	// Buckets come from the event log alone; both show the same
	// present time regardless of the liveness overlay.
	for _, row := range stats.Subjects {
		assert.Equal(t, "7h 30m", row.PresentTime)
	}
}

func TestSubjectStats_TodayAndHistory(t *testing.T) {
	router, h, _ := newTestAPI(t)
	alice := createSubject(t, router, "Alice", "")
	seedDay(t, h, alice.ID)

	rec := doJSON(t, router, http.MethodGet, "/api/subjects/"+alice.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[SubjectStatsDTO](t, rec)

	assert.EqualValues(t, 7*3600+30*60, stats.Today.PresentSeconds)
	assert.EqualValues(t, 30*60, stats.Today.BreakSeconds)
	assert.Equal(t, "7h 30m", stats.Today.Present)

	// Newest first, transitions only: the repeated Present heartbeats
	// collapse into one entry per stretch.
	require.Len(t, stats.History, 5)
	assert.Equal(t, "Present", stats.History[0].Status)
	assert.Equal(t, "BREAK_END", stats.History[1].Status)
	assert.Equal(t, "BREAK_START", stats.History[2].Status)
	assert.Equal(t, "WORK_START", stats.History[4].Status)
}

func TestSubjectScore_TrailingWindow(t *testing.T) {
	router, h, _ := newTestAPI(t)
	alice := createSubject(t, router, "Alice", "")
	seedDay(t, h, alice.ID)

	rec := doJSON(t, router, http.MethodGet, "/api/subjects/"+alice.ID+"/score?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	score := decode[ScoreDTO](t, rec)

	assert.Equal(t, 1, score.ActiveDays)
	assert.Equal(t, "7.5", score.PresentHours)
	assert.NotEqual(t, activity.GradeNoData, score.Grade)
}

func TestSubjectScore_NoEventsGetsNoDataGrade(t *testing.T) {
	router, _, _ := newTestAPI(t)
	alice := createSubject(t, router, "Alice", "")

	rec := doJSON(t, router, http.MethodGet, "/api/subjects/"+alice.ID+"/score", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	score := decode[ScoreDTO](t, rec)

	assert.Equal(t, 0, score.Score)
	assert.Equal(t, activity.GradeNoData, score.Grade)
}

func TestSubjectScore_InvalidDaysRejected(t *testing.T) {
	router, _, _ := newTestAPI(t)
	alice := createSubject(t, router, "Alice", "")

	rec := doJSON(t, router, http.MethodGet, "/api/subjects/"+alice.ID+"/score?days=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REPORTS
// =============================================================================

func TestGenerateReport_EndpointRoundTrip(t *testing.T) {
	router, h, _ := newTestAPI(t)
	alice := createSubject(t, router, "Alice", "")
	seedDay(t, h, alice.ID)

	rec := doJSON(t, router, http.MethodPost, "/api/reports", ReportRequest{
		Start: "2026-03-10", End: "2026-03-10",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReportResponse](t, rec)

	assert.Equal(t, 1, resp.PeriodDays)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, alice.ID, resp.Rows[0].SubjectID)

	// 7.5h from the event log plus the clamped trailing stretch between
	// the last heartbeat and midnight.
	assert.Equal(t, "9", resp.Rows[0].Score.PresentHours)
	assert.NotEqual(t, activity.GradeNoData, resp.Rows[0].Score.Grade)
}

func TestGenerateReport_BadDatesRejected(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/reports", ReportRequest{Start: "yesterday", End: "2026-03-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/reports", ReportRequest{Start: "2026-03-12", End: "2026-03-10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateReport_UnknownSubjectNotFound(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/reports", ReportRequest{
		Start: "2026-03-10", End: "2026-03-10", SubjectID: "ghost",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// BILLING ADMIN
// =============================================================================

func TestSyncBilling_SweepAllAccounts(t *testing.T) {
	// GIVEN: A billed account and a trial account
	// WHEN: Running the admin sweep
	// THEN: One success outcome, one skipped

	router, h, provider := newTestAPI(t)
	seedBilledAccount(t, h, "acct-1")
	require.NoError(t, h.Store.CreateAccount(context.Background(), billing.Account{ID: "acct-2", Name: "Trial"}))

	createSubject(t, router, "Alice", "acct-1")
	createSubject(t, router, "Bob", "acct-1")
	createSubject(t, router, "Carol", "acct-2")

	rec := doJSON(t, router, http.MethodPost, "/api/admin/billing/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	outcomes := decode[[]SyncOutcomeDTO](t, rec)

	require.Len(t, outcomes, 2)
	byAccount := map[string]SyncOutcomeDTO{}
	for _, o := range outcomes {
		byAccount[o.AccountID] = o
	}
	assert.Equal(t, "success", byAccount["acct-1"].Status)
	assert.EqualValues(t, 2, byAccount["acct-1"].Count)
	assert.Equal(t, "skipped", byAccount["acct-2"].Status)

	assert.EqualValues(t, 2, provider.billed("si_acct-1"))
}

func TestCreateAndListAccounts(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", CreateAccountRequest{
		Name: "Acme", CustomerRef: "cus_1", SubscriptionItemRef: "si_1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accounts := decode[[]AccountDTO](t, rec)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Acme", accounts[0].Name)
	assert.Equal(t, "si_1", accounts[0].SubscriptionItemRef)
}
