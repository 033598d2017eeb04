/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with
	realistic activity streams for demos and local development. Each
	scenario creates subjects, billing accounts, status events and
	liveness records that demonstrate specific dashboard features.

AVAILABLE SCENARIOS:

	office-day:   Three subjects mid-workday: one present, one on
	              break, one gone silent (liveness overlay demo)
	trailing-week: One subject with five active days of history, for
	              score and report demos

HOW SCENARIOS WORK:
 1. Create billing account(s)
 2. Create subjects with activation keys
 3. Append status events relative to "now"
 4. Touch liveness for subjects that should display live

NOTE:

	Scenarios append to the current database. Only use in
	development/demo environments.

SEE ALSO:
  - handlers.go: writeJSON/writeError helpers
  - server.go:   /api/scenarios routes
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/presence-engine/activity"
	"github.com/warp/presence-engine/billing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "office-day",
		Name:        "Office Day",
		Description: "Three subjects mid-workday: present, on break, and gone silent",
	},
	{
		ID:          "trailing-week",
		Name:        "Trailing Week",
		Description: "One subject with five active days of history for score demos",
	},
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds the database with a named scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var err error
	switch name {
	case "office-day":
		err = h.loadOfficeDay(r.Context())
	case "trailing-week":
		err = h.loadTrailingWeek(r.Context())
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario %q", name), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"loaded": name})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadOfficeDay(ctx context.Context) error {
	now := h.now().UTC()

	if err := h.Store.CreateAccount(ctx, billing.Account{
		ID:   "acct-demo",
		Name: "Demo Co",
	}); err != nil {
		return err
	}

	type seed struct {
		subject activity.Subject
		events  []activity.StatusEvent
		// lastSeen offset from now; zero means no liveness record
		seenAgo time.Duration
	}

	seeds := []seed{
		{
			subject: activity.Subject{ID: "demo-alice", Name: "Alice", Department: "Engineering", AccountID: "acct-demo", ActivationKey: "demo-key-alice", CreatedAt: now},
			events: []activity.StatusEvent{
				{SubjectID: "demo-alice", Status: activity.StatusWorkStart, At: now.Add(-4 * time.Hour)},
				{SubjectID: "demo-alice", Status: activity.StatusPresent, At: now.Add(-2 * time.Hour)},
			},
			seenAgo: 30 * time.Second,
		},
		{
			subject: activity.Subject{ID: "demo-bob", Name: "Bob", Department: "Engineering", AccountID: "acct-demo", ActivationKey: "demo-key-bob", CreatedAt: now},
			events: []activity.StatusEvent{
				{SubjectID: "demo-bob", Status: activity.StatusWorkStart, At: now.Add(-5 * time.Hour)},
				{SubjectID: "demo-bob", Status: activity.StatusBreakStart, At: now.Add(-10 * time.Minute)},
			},
			seenAgo: 20 * time.Second,
		},
		{
			// Carol's client died an hour ago: history says Present,
			// the overlay will display Offline.
			subject: activity.Subject{ID: "demo-carol", Name: "Carol", Department: "Support", AccountID: "acct-demo", ActivationKey: "demo-key-carol", CreatedAt: now},
			events: []activity.StatusEvent{
				{SubjectID: "demo-carol", Status: activity.StatusWorkStart, At: now.Add(-6 * time.Hour)},
			},
			seenAgo: 1 * time.Hour,
		},
	}

	for _, s := range seeds {
		if err := h.Store.CreateSubject(ctx, s.subject); err != nil {
			return err
		}
		for _, ev := range s.events {
			if _, err := h.Store.AppendEvent(ctx, ev); err != nil {
				return err
			}
		}
		if s.seenAgo > 0 {
			if err := h.Store.Touch(ctx, s.subject.ID, now.Add(-s.seenAgo)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) loadTrailingWeek(ctx context.Context) error {
	now := h.now().UTC()

	subject := activity.Subject{
		ID:            "demo-dana",
		Name:          "Dana",
		Department:    "Engineering",
		ActivationKey: "demo-key-dana",
		CreatedAt:     now,
	}
	if err := h.Store.CreateSubject(ctx, subject); err != nil {
		return err
	}

	// Five full workdays: 09:00 start, 12:00-12:45 break, 17:00 away.
	for back := 5; back >= 1; back-- {
		day := activity.StartOfDayUTC(now.Add(-time.Duration(back) * 24 * time.Hour))
		events := []activity.StatusEvent{
			{SubjectID: subject.ID, Status: activity.StatusWorkStart, At: day.Add(9 * time.Hour)},
			{SubjectID: subject.ID, Status: activity.StatusBreakStart, At: day.Add(12 * time.Hour)},
			{SubjectID: subject.ID, Status: activity.StatusBreakEnd, At: day.Add(12*time.Hour + 45*time.Minute)},
			{SubjectID: subject.ID, Status: activity.StatusAway, At: day.Add(17 * time.Hour)},
		}
		for _, ev := range events {
			if _, err := h.Store.AppendEvent(ctx, ev); err != nil {
				return err
			}
		}
	}
	return nil
}
