/*
scenarios_test.go - Tests for demo scenario loaders
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListScenarios(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "office-day", list[0].ID)
	assert.Equal(t, "trailing-week", list[1].ID)
}

func TestLoadScenario_UnknownName(t *testing.T) {
	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/bogus", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoadScenario_OfficeDay(t *testing.T) {
	// GIVEN: The office-day scenario
	// WHEN: Loading it and reading the dashboard
	// THEN: Alice is present, Bob on break, and Carol displays Offline
	//       because her client went silent an hour ago

	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/office-day", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/dashboard/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[DashboardStatsDTO](t, rec)

	assert.Equal(t, 1, stats.CountPresent)
	assert.Equal(t, 1, stats.CountBreak)
	assert.Equal(t, 1, stats.CountOffline)

	byName := map[string]SubjectRow{}
	for _, row := range stats.Subjects {
		byName[row.Name] = row
	}
	assert.Equal(t, "Offline", byName["Carol"].Status)
}

func TestLoadScenario_TrailingWeek(t *testing.T) {
	// GIVEN: Five seeded workdays
	// WHEN: Scoring Dana over a 7-day window
	// THEN: Five active days and a real grade

	router, _, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/trailing-week", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/subjects/demo-dana/score?days=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	score := decode[ScoreDTO](t, rec)

	assert.Equal(t, 5, score.ActiveDays)
	assert.Greater(t, score.Score, 0)
	assert.NotEmpty(t, score.Grade)
}
