package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config tunes the engine's numeric policy.
type Config struct {
	Band        DistanceBand
	AlertPolicy AlertPolicy
	// Now overrides the clock used for default aggregation windows. Tests
	// only; nil means time.Now in UTC.
	Now func() time.Time
}

// Engine implements the telemetry normalization and aggregation core. It is
// stateless between calls; all authoritative state lives in the Store.
type Engine struct {
	store  Store
	cfg    Config
	log    *slog.Logger
	nowUTC func() time.Time
}

// New constructs an Engine. Zero config fields fall back to the default
// distance band and stacked alerts.
func New(store Store, cfg Config, log *slog.Logger) *Engine {
	if cfg.Band == (DistanceBand{}) {
		cfg.Band = DefaultBand
	}
	if cfg.AlertPolicy == "" {
		cfg.AlertPolicy = AlertPolicyStacked
	}
	if log == nil {
		log = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:  store,
		cfg:    cfg,
		log:    log,
		nowUTC: func() time.Time { return now().UTC() },
	}
}

// Measurement is one ultrasonic reading cycle for a bin.
type Measurement struct {
	Category    BinCategory
	Connected   bool
	DistanceCM  float64
	BinHeightCM *float64 // height-relative formula when set
	MeasuredAt  time.Time
}

// Measurement outcome statuses.
const (
	StatusOK    = "ok"
	StatusStale = "stale"
)

// MeasurementResult is the outcome of ReportMeasurement. Percentage is nil
// on the stale path, where nothing was computed or written.
type MeasurementResult struct {
	Category   BinCategory `json:"bin_type"`
	Status     string      `json:"status"`
	Percentage *int        `json:"level_percentage,omitempty"`
	IsFull     bool        `json:"is_full"`
	Alerts     []string    `json:"alerts"`
	Applied    bool        `json:"-"`
	Message    string      `json:"message"`
}

// ReportMeasurement validates a reading, normalizes it to a fill level and
// upserts the category's current-level record. A disconnected sensor is a
// first-class stale outcome: the stored record is left untouched. Writes
// whose measured_at is older than the stored record are dropped by the
// store's monotonic guard, which makes out-of-order sensor retries harmless.
func (e *Engine) ReportMeasurement(ctx context.Context, m Measurement) (MeasurementResult, error) {
	if err := validateMeasurement(m); err != nil {
		return MeasurementResult{}, err
	}

	if !m.Connected {
		return MeasurementResult{
			Category: m.Category,
			Status:   StatusStale,
			Alerts:   []string{},
			Message:  fmt.Sprintf("Ultrasonic not connected. Keeping last known value for %s", m.Category),
		}, nil
	}

	var est Estimate
	if m.BinHeightCM != nil {
		est = estimateFromHeight(m.DistanceCM, *m.BinHeightCM)
	} else {
		est = estimateFromBand(m.DistanceCM, e.cfg.Band)
	}

	rec := CurrentLevelRecord{
		Category:        m.Category,
		LevelPercentage: est.Percentage,
		IsFull:          est.IsFull,
		MeasuredAt:      m.MeasuredAt.UTC(),
	}
	applied, err := e.store.UpsertLevel(ctx, rec)
	if err != nil {
		return MeasurementResult{}, storagef("upsert level", err)
	}

	msg := fmt.Sprintf("Waste level updated for %s", m.Category)
	if !applied {
		msg = fmt.Sprintf("Ignored out-of-order measurement for %s", m.Category)
		e.log.Debug("dropped out-of-order measurement",
			"category", m.Category, "measured_at", rec.MeasuredAt)
	}

	pct := est.Percentage
	return MeasurementResult{
		Category:   m.Category,
		Status:     StatusOK,
		Percentage: &pct,
		IsFull:     est.IsFull,
		Alerts:     AlertsFor(est.Percentage, m.Category, e.cfg.AlertPolicy),
		Applied:    applied,
		Message:    msg,
	}, nil
}

// ReportClassification validates and appends one detection event. Count
// defaults to 1; a larger count represents a batched detection.
func (e *Engine) ReportClassification(ctx context.Context, ev ClassificationEvent) error {
	if ev.Count == 0 {
		ev.Count = 1
	}
	if err := validateEvent(ev); err != nil {
		return err
	}
	ev.LoggedAt = ev.LoggedAt.UTC()
	if err := e.store.AppendEvent(ctx, ev); err != nil {
		return storagef("append event", err)
	}
	return nil
}

// LevelStatus is the read-side view of one category's fill state. A nil
// percentage means the category has never been measured, which is distinct
// from a 0% reading.
type LevelStatus struct {
	LevelPercentage *int     `json:"level_percentage"`
	Alerts          []string `json:"alerts"`
}

// LatestLevels returns the current fill state for every category, with
// alerts recomputed from the stored percentage.
func (e *Engine) LatestLevels(ctx context.Context) (map[BinCategory]LevelStatus, error) {
	records, err := e.store.Levels(ctx)
	if err != nil {
		return nil, storagef("read levels", err)
	}

	byCategory := make(map[BinCategory]CurrentLevelRecord, len(records))
	for _, rec := range records {
		byCategory[rec.Category] = rec
	}

	out := make(map[BinCategory]LevelStatus, len(Categories()))
	for _, cat := range Categories() {
		rec, ok := byCategory[cat]
		if !ok {
			out[cat] = LevelStatus{LevelPercentage: nil, Alerts: []string{}}
			continue
		}
		pct := rec.LevelPercentage
		out[cat] = LevelStatus{
			LevelPercentage: &pct,
			Alerts:          AlertsFor(pct, cat, e.cfg.AlertPolicy),
		}
	}
	return out, nil
}

func validateMeasurement(m Measurement) error {
	if !m.Category.Valid() {
		return invalidf("bin_type", "must be one of bio, non_bio, unclassified")
	}
	if !m.Connected {
		return nil
	}
	if m.DistanceCM < 0 {
		return invalidf("distance_cm", "must not be negative")
	}
	if m.BinHeightCM != nil && *m.BinHeightCM < 1 {
		return invalidf("bin_height_cm", "must be at least 1")
	}
	if m.MeasuredAt.IsZero() {
		return invalidf("measured_at", "is required")
	}
	return nil
}

func validateEvent(ev ClassificationEvent) error {
	if !ev.Category.Valid() {
		return invalidf("bin_type", "must be one of bio, non_bio, unclassified")
	}
	if ev.Label == "" {
		return invalidf("label", "is required")
	}
	if ev.ConfidenceScore < 0 || ev.ConfidenceScore > 1 {
		return invalidf("confidence_score", "must be between 0 and 1")
	}
	if ev.Count < 1 {
		return invalidf("count", "must be at least 1")
	}
	if ev.LoggedAt.IsZero() {
		return invalidf("logged_at", "is required")
	}
	return nil
}
