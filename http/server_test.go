package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecobins/binwatch/config"
	"github.com/ecobins/binwatch/db"
	"github.com/ecobins/binwatch/engine"
	binhttp "github.com/ecobins/binwatch/http"
)

func newTestServer(t *testing.T, cfg config.Config, now time.Time) (*binhttp.Server, *db.Memory) {
	t.Helper()
	store := db.NewMemory()
	eng := engine.New(store, engine.Config{
		AlertPolicy: engine.AlertPolicy(cfg.AlertPolicy),
		Now:         func() time.Time { return now },
	}, nil)
	return binhttp.New(cfg, eng, nil), store
}

func doJSON(t *testing.T, srv *binhttp.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestReportMeasurementEndpoint(t *testing.T) {
	srv, store := newTestServer(t, config.Config{}, time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC))

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/hardware/waste-levels", `{
		"bin_type": "bio",
		"ultrasonic_connected": true,
		"distance_cm": 7,
		"measured_at": "2025-09-03T11:58:00Z"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Status          string   `json:"status"`
		LevelPercentage *int     `json:"level_percentage"`
		IsFull          bool     `json:"is_full"`
		Alerts          []string `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.LevelPercentage)
	assert.Equal(t, 100, *resp.LevelPercentage)
	assert.True(t, resp.IsFull)
	assert.Len(t, resp.Alerts, 4)

	level, err := store.Level(context.Background(), engine.CategoryBio)
	require.NoError(t, err)
	require.NotNil(t, level)
	assert.Equal(t, 100, level.LevelPercentage)
}

func TestReportMeasurementStaleEndpoint(t *testing.T) {
	srv, store := newTestServer(t, config.Config{}, time.Now())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/hardware/waste-levels", `{
		"bin_type": "non_bio",
		"ultrasonic_connected": false
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"stale"`)

	level, err := store.Level(context.Background(), engine.CategoryNonBio)
	require.NoError(t, err)
	assert.Nil(t, level, "stale report must not write")
}

func TestReportMeasurementValidationResponses(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, time.Now())

	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{`, "body"},
		{"missing connected flag", `{"bin_type":"bio","distance_cm":7,"measured_at":"2025-09-03T10:00:00Z"}`, "ultrasonic_connected"},
		{"missing distance", `{"bin_type":"bio","ultrasonic_connected":true,"measured_at":"2025-09-03T10:00:00Z"}`, "distance_cm"},
		{"bad timestamp", `{"bin_type":"bio","ultrasonic_connected":true,"distance_cm":7,"measured_at":"yesterday"}`, "measured_at"},
		{"unknown category", `{"bin_type":"plastic","ultrasonic_connected":true,"distance_cm":7,"measured_at":"2025-09-03T10:00:00Z"}`, "bin_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/hardware/waste-levels", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestReportClassificationEndpoint(t *testing.T) {
	srv, store := newTestServer(t, config.Config{}, time.Now())

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/hardware/waste-logs", `{
		"bin_type": "bio",
		"label": "banana peel",
		"confidence_score": 0.93,
		"logged_at": "2025-09-03T10:00:00Z"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Waste log stored successfully.")
	assert.Equal(t, 1, store.EventCount())

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/hardware/waste-logs", `{
		"bin_type": "bio",
		"label": "banana peel",
		"confidence_score": 1.7,
		"logged_at": "2025-09-03T10:00:00Z"
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "confidence_score")
	assert.Equal(t, 1, store.EventCount(), "rejected event must not be stored")
}

func TestLatestLevelsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, time.Now())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/waste-levels/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]struct {
		LevelPercentage *int     `json:"level_percentage"`
		Alerts          []string `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 3)
	for _, cat := range []string{"bio", "non_bio", "unclassified"} {
		entry, ok := resp[cat]
		require.True(t, ok, "missing category %s", cat)
		assert.Nil(t, entry.LevelPercentage)
		assert.NotNil(t, entry.Alerts)
		assert.Empty(t, entry.Alerts)
	}
}

func TestDailyBreakdownEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC))

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/waste-logs/daily?start=2025-09-01&end=2025-09-03", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []engine.DailyBreakdown `json:"data"`
		Meta struct {
			Days int `json:"days"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 3)
	assert.Equal(t, 3, resp.Meta.Days)

	// Default window with no params is the current ISO week.
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/waste-logs/daily", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 7)
}

func TestDailyBreakdownRejectsBadRanges(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, time.Now())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/waste-logs/daily?start=2025-09-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/waste-logs/daily?start=bogus&end=2025-09-03", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/waste-logs/daily?start=2025-09-05&end=2025-09-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonthlySummaryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, time.Now())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/waste-logs/monthly?month=2025-09", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "September 2025")

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/waste-logs/monthly?month=last-month", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardEndpoint(t *testing.T) {
	now := time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC)
	srv, _ := newTestServer(t, config.Config{}, now)

	doJSON(t, srv, http.MethodPost, "/api/v1/hardware/waste-logs", `{
		"bin_type": "bio",
		"label": "leaves",
		"confidence_score": 0.8,
		"count": 3,
		"logged_at": "2025-09-02T10:00:00Z"
	}`)
	doJSON(t, srv, http.MethodPost, "/api/v1/hardware/waste-levels", `{
		"bin_type": "bio",
		"ultrasonic_connected": true,
		"distance_cm": 7,
		"measured_at": "2025-09-03T11:00:00Z"
	}`)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))

	require.Len(t, snap.Daily, 7)
	assert.Equal(t, engine.CategoryTotals{Bio: 3}, snap.RangeTotals)
	assert.Equal(t, engine.CategoryTotals{Bio: 3}, snap.AllTimeTotals)
	require.NotNil(t, snap.Levels[engine.CategoryBio].LevelPercentage)
	assert.Equal(t, 100, *snap.Levels[engine.CategoryBio].LevelPercentage)
	assert.Len(t, snap.Warnings, 4)
}

func TestBearerAuth(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{BearerToken: "sekret"}, time.Now())

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/waste-levels/latest", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/waste-levels/latest", nil)
	req.Header.Set("Authorization", "Bearer sekret")
	okRec := httptest.NewRecorder()
	srv.Router().ServeHTTP(okRec, req)
	assert.Equal(t, http.StatusOK, okRec.Code)

	// Probes stay open without a token.
	health := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t, config.Config{}, time.Now())

	rec := doJSON(t, srv, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
