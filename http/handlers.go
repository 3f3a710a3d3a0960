package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecobins/binwatch/engine"
	"github.com/ecobins/binwatch/metrics"
)

type measurementRequest struct {
	BinType             string   `json:"bin_type"`
	UltrasonicConnected *bool    `json:"ultrasonic_connected"`
	DistanceCM          *float64 `json:"distance_cm"`
	BinHeightCM         *float64 `json:"bin_height_cm"`
	MeasuredAt          string   `json:"measured_at"`
}

// handleReportMeasurement ingests one ultrasonic reading cycle.
// POST /api/v1/hardware/waste-levels
func (s *Server) handleReportMeasurement(c *gin.Context) {
	var req measurementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "body", "invalid JSON payload")
		return
	}
	if req.UltrasonicConnected == nil {
		respondValidation(c, "ultrasonic_connected", "is required")
		return
	}

	m := engine.Measurement{
		Category:    engine.BinCategory(req.BinType),
		Connected:   *req.UltrasonicConnected,
		BinHeightCM: req.BinHeightCM,
	}
	if m.Connected {
		if req.DistanceCM == nil {
			respondValidation(c, "distance_cm", "is required when the sensor is connected")
			return
		}
		m.DistanceCM = *req.DistanceCM

		if req.MeasuredAt == "" {
			respondValidation(c, "measured_at", "is required")
			return
		}
		measuredAt, err := time.Parse(time.RFC3339, req.MeasuredAt)
		if err != nil {
			respondValidation(c, "measured_at", "invalid timestamp, expected RFC3339")
			return
		}
		m.MeasuredAt = measuredAt
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	result, err := s.eng.ReportMeasurement(ctx, m)
	if err != nil {
		s.respondError(c, "report measurement", err)
		return
	}

	metrics.MeasurementsTotal.WithLabelValues(string(result.Category), result.Status).Inc()
	if result.Percentage != nil {
		metrics.FillLevel.WithLabelValues(string(result.Category)).Set(float64(*result.Percentage))
	}

	c.JSON(http.StatusOK, result)
}

type classificationRequest struct {
	BinType         string   `json:"bin_type"`
	Label           string   `json:"label"`
	ConfidenceScore *float64 `json:"confidence_score"`
	Count           *int64   `json:"count"`
	LoggedAt        string   `json:"logged_at"`
}

// handleReportClassification appends one detection event to the log.
// POST /api/v1/hardware/waste-logs
func (s *Server) handleReportClassification(c *gin.Context) {
	var req classificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, "body", "invalid JSON payload")
		return
	}
	if req.ConfidenceScore == nil {
		respondValidation(c, "confidence_score", "is required")
		return
	}
	if req.LoggedAt == "" {
		respondValidation(c, "logged_at", "is required")
		return
	}
	loggedAt, err := time.Parse(time.RFC3339, req.LoggedAt)
	if err != nil {
		respondValidation(c, "logged_at", "invalid timestamp, expected RFC3339")
		return
	}

	ev := engine.ClassificationEvent{
		Category:        engine.BinCategory(req.BinType),
		Label:           req.Label,
		ConfidenceScore: *req.ConfidenceScore,
		LoggedAt:        loggedAt,
	}
	if req.Count != nil {
		ev.Count = *req.Count
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	if err := s.eng.ReportClassification(ctx, ev); err != nil {
		s.respondError(c, "report classification", err)
		return
	}

	metrics.ClassificationsTotal.WithLabelValues(string(ev.Category)).Inc()
	c.JSON(http.StatusOK, gin.H{"message": "Waste log stored successfully."})
}

// handleLatestLevels returns the current fill state for every category.
// GET /api/v1/waste-levels/latest
func (s *Server) handleLatestLevels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	levels, err := s.eng.LatestLevels(ctx)
	if err != nil {
		s.respondError(c, "latest levels", err)
		return
	}

	c.JSON(http.StatusOK, levels)
}

// handleDailyBreakdown returns the dense daily series for a date range.
// GET /api/v1/waste-logs/daily?start=YYYY-MM-DD&end=YYYY-MM-DD
// Both bounds together or neither; the default is the current ISO week.
func (s *Server) handleDailyBreakdown(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	rng, err := s.rangeFromQuery(c)
	if err != nil {
		s.respondError(c, "daily breakdown", err)
		return
	}

	dateRange := s.eng.DefaultRange()
	if rng != nil {
		dateRange = *rng
	}
	rows, err := s.eng.SumRange(ctx, dateRange)
	if err != nil {
		s.respondError(c, "daily breakdown", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": rows,
		"meta": gin.H{
			"start": dateRange.Start.Format("2006-01-02"),
			"end":   dateRange.End.Format("2006-01-02"),
			"days":  len(rows),
		},
	})
}

// handleWeeklySummary returns all-time totals bucketed by ISO week.
// GET /api/v1/waste-logs/weekly
func (s *Server) handleWeeklySummary(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	weeks, err := s.eng.WeeklyHistory(ctx)
	if err != nil {
		s.respondError(c, "weekly summary", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": weeks,
		"meta": gin.H{"count": len(weeks)},
	})
}

// handleMonthlySummary returns totals for one calendar month.
// GET /api/v1/waste-logs/monthly?month=YYYY-MM (defaults to current month)
func (s *Server) handleMonthlySummary(c *gin.Context) {
	monthParam := c.Query("month")
	if monthParam == "" {
		monthParam = time.Now().UTC().Format("2006-01")
	}
	month, err := time.Parse("2006-01", monthParam)
	if err != nil {
		respondValidation(c, "month", "invalid month, expected YYYY-MM")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	summary, err := s.eng.SumMonth(ctx, month.Year(), month.Month())
	if err != nil {
		s.respondError(c, "monthly summary", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// handleAllTimeTotals returns per-category totals over the whole log.
// GET /api/v1/waste-logs/total
func (s *Server) handleAllTimeTotals(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	totals, err := s.eng.SumAllTime(ctx)
	if err != nil {
		s.respondError(c, "all-time totals", err)
		return
	}

	c.JSON(http.StatusOK, totals)
}

// handleDashboard returns the composed dashboard snapshot.
// GET /api/v1/dashboard?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *Server) handleDashboard(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	rng, err := s.rangeFromQuery(c)
	if err != nil {
		s.respondError(c, "dashboard", err)
		return
	}

	snapshot, err := s.eng.Snapshot(ctx, rng)
	if err != nil {
		s.respondError(c, "dashboard", err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// rangeFromQuery parses optional start/end query params. Supplying only one
// bound is a validation error.
func (s *Server) rangeFromQuery(c *gin.Context) (*engine.DateRange, error) {
	start := c.Query("start")
	end := c.Query("end")
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, &engine.ValidationError{Field: "range", Message: "start and end must be supplied together"}
	}
	rng, err := engine.ParseDateRange(start, end)
	if err != nil {
		return nil, err
	}
	return &rng, nil
}

func respondValidation(c *gin.Context, field, msg string) {
	metrics.ValidationFailures.WithLabelValues(c.FullPath()).Inc()
	c.JSON(http.StatusBadRequest, gin.H{"error": field + ": " + msg})
}

func (s *Server) respondError(c *gin.Context, op string, err error) {
	var verr *engine.ValidationError
	if errors.As(err, &verr) {
		metrics.ValidationFailures.WithLabelValues(c.FullPath()).Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	}

	var serr *engine.StorageError
	if errors.As(err, &serr) {
		s.log.Error("storage failure", "op", op, "error", serr)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, retry later"})
		return
	}

	s.log.Error("request failed", "op", op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
